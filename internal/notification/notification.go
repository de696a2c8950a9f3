package notification

import (
	"context"
	"log/slog"
)

const (
	// KindReconcileCompleted signals a finished per-wallet reconciliation.
	KindReconcileCompleted = "reconciliation_completed"
	// KindCriticalAlert signals a sweep that surfaced critical issues.
	KindCriticalAlert = "reconciliation_critical_alert"
	// KindRunFailed signals a sweep that could not complete.
	KindRunFailed = "reconciliation_run_failed"
)

// Message describes an alert payload routed to the operations channel.
type Message struct {
	Kind    string
	Subject string
	Body    string
	Fields  map[string]string
}

// Notifier delivers reconciliation alerts to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes alerts to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{"kind", message.Kind, "subject", message.Subject, "body", message.Body}
	for k, v := range message.Fields {
		attrs = append(attrs, k, v)
	}
	n.logger.Info("notification", attrs...)
	return nil
}
