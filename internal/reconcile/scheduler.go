package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler owns the recurring fleet sweep: one run per day at a fixed UTC
// hour. It is an explicit timer with a Start/Stop lifecycle, not background
// magic; the process decides when it runs.
type Scheduler struct {
	service *Service
	logger  *slog.Logger
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler builds a scheduler around the reconciliation service. The
// sweep hour and clock come from the service configuration.
func NewScheduler(service *Service, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service: service,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the scheduling loop in its own goroutine.
func (sc *Scheduler) Start() {
	go sc.run()
}

// Stop halts the loop and waits for it to exit. A sweep already in flight
// finishes first.
func (sc *Scheduler) Stop() {
	close(sc.stop)
	<-sc.done
}

func (sc *Scheduler) run() {
	defer close(sc.done)
	for {
		now := sc.service.clock.Now()
		next := nextDailyRun(now, sc.service.sweepHour)
		sc.logger.Info("next scheduled reconciliation", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			sc.runOnce()
		case <-sc.stop:
			timer.Stop()
			return
		}
	}
}

func (sc *Scheduler) runOnce() {
	sc.logger.Info("starting scheduled wallet reconciliation")

	// A scheduled sweep must not run unbounded into the next slot.
	ctx, cancel := context.WithTimeout(context.Background(), sc.service.sweepTimeout)
	defer cancel()

	summary, err := sc.service.ReconcileAll(ctx)
	if err != nil {
		// ReconcileAll already raised the run-failed signal.
		sc.logger.Error("scheduled reconciliation failed", "error", err)
		return
	}
	sc.logger.Info("scheduled reconciliation completed",
		"balanced", summary.BalancedWallets, "total", summary.TotalWallets)
}

// nextDailyRun returns the first occurrence of hour:00 UTC strictly after
// now.
func nextDailyRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
