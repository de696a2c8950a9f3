package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopspring/decimal"

	"github.com/deskhive/reconciler/internal/audit"
	"github.com/deskhive/reconciler/internal/notification"
	"github.com/deskhive/reconciler/internal/wallet"
)

// SweepRecord is the audit payload of one fleet sweep: the summary plus the
// reports that found something. Balanced reports are excluded to bound
// storage growth.
type SweepRecord struct {
	Summary Summary  `json:"summary"`
	Reports []Report `json:"reports"`
}

// ReconcileAll sweeps every wallet. Individual wallet failures are logged
// and counted but never abort the sweep; one broken wallet must not block
// reconciliation of the rest. The summary is always persisted, and a
// critical alert is raised when any run surfaced critical issues. Sweep-level
// failures raise the run-failed signal before propagating.
func (s *Service) ReconcileAll(ctx context.Context) (Summary, error) {
	start := s.clock.Now()

	wallets, err := s.wallets.List(ctx)
	if err != nil {
		err = fmt.Errorf("%w: list wallets: %w", ErrRunFailed, err)
		s.reportRunFailure(ctx, err)
		return Summary{}, err
	}

	var (
		mu      sync.Mutex
		reports []Report
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sweepConcurrency)
	for _, w := range wallets {
		w := w
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(gctx, s.walletTimeout)
			defer cancel()

			report, err := s.reconcile(wctx, w.PartnerID, w.Currency, TriggerScheduled)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Failed wallets are neither balanced nor discrepant; they
				// wait for the next run or a manual trigger.
				failed++
				s.logger.Error("wallet reconciliation failed",
					"wallet_id", w.ID, "partner_id", w.PartnerID, "currency", w.Currency, "error", err)
				return nil
			}
			reports = append(reports, report)
			return nil
		})
	}
	_ = g.Wait()

	summary := s.summarize(wallets, reports, failed, start)

	record := SweepRecord{Summary: summary}
	for _, report := range reports {
		if report.Status != StatusBalanced {
			record.Reports = append(record.Reports, report)
		}
	}
	payload, err := json.Marshal(record)
	if err != nil {
		err = fmt.Errorf("%w: encode sweep record: %w", ErrRunFailed, err)
		s.reportRunFailure(ctx, err)
		return Summary{}, err
	}
	event := audit.Event{
		Type:        audit.EventSweepCompleted,
		AggregateID: audit.SystemAggregate,
		Payload:     payload,
		Metadata:    map[string]string{"automated": "true"},
	}
	if err := s.auditLog.Append(ctx, event); err != nil {
		err = fmt.Errorf("%w: persist sweep summary: %w", ErrRunFailed, err)
		s.reportRunFailure(ctx, err)
		return Summary{}, err
	}

	s.logger.Info("reconciliation sweep completed",
		"balanced", summary.BalancedWallets,
		"total", summary.TotalWallets,
		"failed", summary.FailedWallets,
		"critical_issues", summary.CriticalIssues,
		"duration_ms", summary.ProcessingMillis)

	if summary.CriticalIssues > 0 {
		s.raiseCriticalAlert(ctx, summary)
	}
	return summary, nil
}

func (s *Service) summarize(wallets []wallet.Wallet, reports []Report, failed int, start time.Time) Summary {
	summary := Summary{
		TotalWallets:     len(wallets),
		FailedWallets:    failed,
		TotalDiscrepancy: decimal.Zero,
	}
	for _, report := range reports {
		if report.Status == StatusBalanced {
			summary.BalancedWallets++
		} else {
			summary.WalletsWithIssues++
		}
		if report.Status == StatusCritical {
			summary.CriticalIssues += report.CriticalIssueCount()
		}
		summary.TotalDiscrepancy = summary.TotalDiscrepancy.Add(report.Discrepancy.Abs())
	}
	now := s.clock.Now()
	summary.LastRun = now
	summary.NextScheduledRun = nextDailyRun(now, s.sweepHour)
	summary.ProcessingMillis = now.Sub(start).Milliseconds()
	return summary
}

// raiseCriticalAlert records and sends the critical-findings alert. Both
// paths are best effort; a flaky sink must not fail an otherwise complete
// sweep.
func (s *Service) raiseCriticalAlert(ctx context.Context, summary Summary) {
	s.logger.Error("critical reconciliation issues found", "count", summary.CriticalIssues)

	if payload, err := json.Marshal(summary); err == nil {
		event := audit.Event{
			Type:        audit.EventCriticalAlert,
			AggregateID: audit.SystemAggregate,
			Payload:     payload,
		}
		if err := s.auditLog.Append(ctx, event); err != nil {
			s.logger.Warn("persist critical alert event", "error", err)
		}
	}
	if s.notifier != nil {
		err := s.notifier.Send(ctx, notification.Message{
			Kind:    notification.KindCriticalAlert,
			Subject: "wallet reconciliation",
			Body:    fmt.Sprintf("%d critical reconciliation issues found", summary.CriticalIssues),
			Fields: map[string]string{
				"critical_issues":   fmt.Sprintf("%d", summary.CriticalIssues),
				"total_discrepancy": summary.TotalDiscrepancy.String(),
			},
		})
		if err != nil {
			s.logger.Warn("send critical alert notification", "error", err)
		}
	}
}

// reportRunFailure raises the run-failed signal. A failed sweep must be
// visible, never silently dropped.
func (s *Service) reportRunFailure(ctx context.Context, cause error) {
	s.logger.Error("reconciliation sweep failed", "error", cause)

	payload, _ := json.Marshal(map[string]string{"error": cause.Error()})
	event := audit.Event{
		Type:        audit.EventRunFailed,
		AggregateID: audit.SystemAggregate,
		Payload:     payload,
	}
	if err := s.auditLog.Append(ctx, event); err != nil {
		s.logger.Warn("persist run failure event", "error", err)
	}
	if s.notifier != nil {
		err := s.notifier.Send(ctx, notification.Message{
			Kind:    notification.KindRunFailed,
			Subject: "wallet reconciliation",
			Body:    cause.Error(),
		})
		if err != nil {
			s.logger.Warn("send run failure notification", "error", err)
		}
	}
}
