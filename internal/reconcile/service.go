package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deskhive/reconciler/internal/audit"
	"github.com/deskhive/reconciler/internal/ledger"
	"github.com/deskhive/reconciler/internal/notification"
	"github.com/deskhive/reconciler/internal/payments"
	"github.com/deskhive/reconciler/internal/wallet"
)

const (
	defaultSweepHour        = 2 // 02:00 UTC, after the nightly settlement window
	defaultSweepConcurrency = 4
	defaultSweepTimeout     = time.Hour
	defaultWalletTimeout    = 30 * time.Second
)

// Deps aggregates everything the reconciliation service needs. Wallets,
// Entries, Payments, Refunds and Audit are required; the rest default.
type Deps struct {
	Wallets  wallet.Repository
	Entries  ledger.Store
	Payments payments.PaymentStore
	Refunds  payments.RefundStore
	Audit    audit.Log
	Notifier notification.Notifier
	Locker   Locker
	Clock    Clock
	Logger   *slog.Logger

	SweepHour        int
	SweepConcurrency int
	SweepTimeout     time.Duration
	WalletTimeout    time.Duration
}

// Service is the wallet reconciliation engine: it recomputes balances,
// detects ledger issues, classifies wallets and keeps the audit trail. It
// never moves money and never touches a wallet's balance column.
type Service struct {
	wallets  wallet.Repository
	entries  ledger.Store
	payments payments.PaymentStore
	refunds  payments.RefundStore
	auditLog audit.Log
	notifier notification.Notifier
	locker   Locker
	clock    Clock
	logger   *slog.Logger
	calc     *Calculator

	sweepHour        int
	sweepConcurrency int
	sweepTimeout     time.Duration
	walletTimeout    time.Duration
}

// NewService builds the reconciliation service, applying defaults for
// optional dependencies.
func NewService(d Deps) (*Service, error) {
	if d.Wallets == nil || d.Entries == nil || d.Payments == nil || d.Refunds == nil || d.Audit == nil {
		return nil, fmt.Errorf("wallet, ledger, payment, refund stores and audit log are required")
	}
	if d.Locker == nil {
		d.Locker = NewMemoryLocker()
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.SweepHour == 0 {
		d.SweepHour = defaultSweepHour
	}
	if d.SweepConcurrency <= 0 {
		d.SweepConcurrency = defaultSweepConcurrency
	}
	if d.SweepTimeout <= 0 {
		d.SweepTimeout = defaultSweepTimeout
	}
	if d.WalletTimeout <= 0 {
		d.WalletTimeout = defaultWalletTimeout
	}
	return &Service{
		wallets:          d.Wallets,
		entries:          d.Entries,
		payments:         d.Payments,
		refunds:          d.Refunds,
		auditLog:         d.Audit,
		notifier:         d.Notifier,
		locker:           d.Locker,
		clock:            d.Clock,
		logger:           d.Logger,
		calc:             NewCalculator(d.Entries),
		sweepHour:        d.SweepHour,
		sweepConcurrency: d.SweepConcurrency,
		sweepTimeout:     d.SweepTimeout,
		walletTimeout:    d.WalletTimeout,
	}, nil
}

// ManualRecord is the audit payload of an operator-triggered run.
type ManualRecord struct {
	Report      Report `json:"report"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// ReconcileWallet runs an on-demand reconciliation of one wallet and records
// it as a manual run in the audit trail. triggeredBy identifies the operator
// when known.
func (s *Service) ReconcileWallet(ctx context.Context, partnerID, currency, triggeredBy string) (Report, error) {
	s.logger.Info("manual reconciliation requested",
		"partner_id", partnerID, "currency", currency, "triggered_by", triggeredBy)

	report, err := s.reconcile(ctx, partnerID, currency, TriggerManual)
	if err != nil {
		return Report{}, err
	}

	payload, err := json.Marshal(ManualRecord{Report: report, TriggeredBy: triggeredBy})
	if err != nil {
		return Report{}, fmt.Errorf("%w: encode manual run record: %w", ErrRunFailed, err)
	}
	event := audit.Event{
		Type:        audit.EventManualRun,
		AggregateID: report.PartnerID,
		Payload:     payload,
		Metadata:    map[string]string{"manual": "true", "triggered_by": triggeredBy},
	}
	if err := s.auditLog.Append(ctx, event); err != nil {
		return Report{}, fmt.Errorf("%w: persist manual run record: %w", ErrRunFailed, err)
	}
	return report, nil
}

// reconcile performs one wallet run: load, lock, recompute, detect, classify,
// persist metadata, emit the completion signal. The wallet's balance column
// is never written; reconciliation detects, it does not correct.
func (s *Service) reconcile(ctx context.Context, partnerID, currency string, trigger Trigger) (Report, error) {
	w, err := s.wallets.Get(ctx, partnerID, currency)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return Report{}, fmt.Errorf("%w: partner %s currency %s", ErrWalletNotFound, partnerID, currency)
		}
		return Report{}, fmt.Errorf("%w: load wallet: %w", ErrDataSource, err)
	}

	release, err := s.locker.Acquire(ctx, w.ID)
	if err != nil {
		return Report{}, err
	}
	defer release()

	expected, err := s.calc.ExpectedBalance(ctx, w.ID)
	if err != nil {
		return Report{}, err
	}

	actual := w.Balance
	discrepancy := actual.Sub(expected)
	percent := decimal.Zero
	if !expected.IsZero() {
		percent = discrepancy.Div(expected).Mul(decimal.NewFromInt(100))
	}

	issues, err := s.detectIssues(ctx, w)
	if err != nil {
		return Report{}, err
	}

	count, err := s.entries.CountByWallet(ctx, w.ID)
	if err != nil {
		return Report{}, fmt.Errorf("%w: count transactions: %w", ErrDataSource, err)
	}

	report := Report{
		WalletID:           w.ID,
		PartnerID:          w.PartnerID,
		Currency:           w.Currency,
		ExpectedBalance:    expected,
		ActualBalance:      actual,
		Discrepancy:        discrepancy,
		DiscrepancyPercent: percent,
		TransactionCount:   count,
		Issues:             issues,
		Status:             classify(discrepancy, percent, issues),
		Trigger:            trigger,
		ReconciledAt:       s.clock.Now(),
	}

	if err := s.saveReconciliationMetadata(ctx, w, report); err != nil {
		return Report{}, err
	}

	s.emitCompleted(ctx, report)
	return report, nil
}

// detectIssues runs the three independent checks and concatenates their
// findings. Any underlying read failure fails the whole run; a partial check
// must not masquerade as a clean one.
func (s *Service) detectIssues(ctx context.Context, w wallet.Wallet) ([]Issue, error) {
	entries, err := s.entries.ListByWallet(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %w", ErrDataSource, err)
	}
	issues := integrityIssues(entries)

	fromPayments, err := paymentIssues(ctx, s.payments, s.entries, w.Currency)
	if err != nil {
		return nil, err
	}
	issues = append(issues, fromPayments...)

	fromRefunds, err := refundIssues(ctx, s.refunds, s.entries, w.Currency)
	if err != nil {
		return nil, err
	}
	issues = append(issues, fromRefunds...)

	return issues, nil
}

// classify derives the overall wallet status from the discrepancy and the
// issue findings.
func classify(discrepancy, percent decimal.Decimal, issues []Issue) Status {
	critical := false
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			critical = true
			break
		}
	}
	if critical || percent.Abs().GreaterThan(criticalPercent) {
		return StatusCritical
	}
	if discrepancy.Abs().GreaterThan(tolerance) {
		return StatusDiscrepancy
	}
	return StatusBalanced
}

func (s *Service) saveReconciliationMetadata(ctx context.Context, w wallet.Wallet, report Report) error {
	metadata := make(map[string]string, len(w.Metadata)+3)
	for k, v := range w.Metadata {
		metadata[k] = v
	}
	metadata[wallet.MetaLastReconciliation] = report.ReconciledAt.Format(time.RFC3339Nano)
	metadata[wallet.MetaReconciliationStatus] = string(report.Status)
	metadata[wallet.MetaLastDiscrepancy] = report.Discrepancy.String()

	if err := s.wallets.SaveMetadata(ctx, w.ID, metadata); err != nil {
		return fmt.Errorf("%w: save wallet metadata: %w", ErrDataSource, err)
	}
	return nil
}

// emitCompleted signals subscribers that a wallet run finished. Delivery is
// best effort; the report itself is already persisted where required.
func (s *Service) emitCompleted(ctx context.Context, report Report) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Message{
		Kind:    notification.KindReconcileCompleted,
		Subject: report.WalletID,
		Body:    fmt.Sprintf("wallet %s reconciled: %s", report.WalletID, report.Status),
		Fields: map[string]string{
			"partner_id":  report.PartnerID,
			"currency":    report.Currency,
			"status":      string(report.Status),
			"discrepancy": report.Discrepancy.String(),
			"issue_count": fmt.Sprintf("%d", len(report.Issues)),
		},
	})
	if err != nil {
		s.logger.Warn("send reconciliation completed notification", "wallet_id", report.WalletID, "error", err)
	}
}

// History returns persisted reconciliation events, newest first. partnerID
// narrows the result to one partner's manual runs when set.
func (s *Service) History(ctx context.Context, partnerID string, limit, offset int) ([]audit.Event, error) {
	events, err := s.auditLog.Query(ctx, audit.Filter{
		AggregateID: partnerID,
		EventTypes:  []string{audit.EventSweepCompleted, audit.EventManualRun},
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query audit log: %w", ErrDataSource, err)
	}
	return events, nil
}

// Stats computes the fleet-level view from each wallet's reconciliation
// metadata.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	wallets, err := s.wallets.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: list wallets: %w", ErrDataSource, err)
	}

	stats := Stats{TotalWallets: len(wallets)}
	sum := decimal.Zero
	sampled := 0
	var lastRun time.Time
	for _, w := range wallets {
		status := w.ReconciliationStatus()
		if status != "" && status != string(StatusBalanced) {
			stats.WalletsWithIssues++
		}
		if status == string(StatusCritical) {
			stats.CriticalWallets++
		}
		if d, ok := w.LastDiscrepancy(); ok {
			sum = sum.Add(d.Abs())
			sampled++
		}
		if ts, ok := w.LastReconciliation(); ok && ts.After(lastRun) {
			lastRun = ts
		}
	}
	if sampled > 0 {
		stats.AverageDiscrepancy = sum.Div(decimal.NewFromInt(int64(sampled)))
	}
	if !lastRun.IsZero() {
		stats.LastRun = &lastRun
	}
	return stats, nil
}
