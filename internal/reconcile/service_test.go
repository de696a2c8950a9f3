package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deskhive/reconciler/internal/audit"
	"github.com/deskhive/reconciler/internal/ledger"
	"github.com/deskhive/reconciler/internal/logging"
	"github.com/deskhive/reconciler/internal/payments"
	"github.com/deskhive/reconciler/internal/wallet"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	wallets  *wallet.MemoryRepository
	entries  *ledger.MemoryStore
	payments *payments.MemoryPaymentStore
	refunds  *payments.MemoryRefundStore
	auditLog *audit.MemoryLog
	clock    *fakeClock
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		wallets:  wallet.NewMemoryRepository(),
		entries:  ledger.NewMemoryStore(),
		payments: payments.NewMemoryPaymentStore(),
		refunds:  payments.NewMemoryRefundStore(),
		auditLog: audit.NewMemoryLog(),
		clock:    &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
	}
	svc, err := NewService(Deps{
		Wallets:  f.wallets,
		Entries:  f.entries,
		Payments: f.payments,
		Refunds:  f.refunds,
		Audit:    f.auditLog,
		Clock:    f.clock,
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	f.svc = svc
	return f
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func (f *fixture) addWallet(t *testing.T, id, partnerID, currency, balance string) {
	t.Helper()
	f.wallets.Put(wallet.Wallet{
		ID:        id,
		PartnerID: partnerID,
		Currency:  currency,
		Balance:   dec(t, balance),
		CreatedAt: f.clock.Now(),
	})
}

func entry(t *testing.T, id, walletID string, typ ledger.EntryType, status ledger.EntryStatus, amount, balanceAfter string, at time.Time) ledger.Transaction {
	t.Helper()
	return ledger.Transaction{
		ID:           id,
		WalletID:     walletID,
		Type:         typ,
		Status:       status,
		Amount:       dec(t, amount),
		BalanceAfter: dec(t, balanceAfter),
		CreatedAt:    at,
	}
}

func TestReconcileWalletNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReconcileWallet(context.Background(), "p-missing", "USD", "")
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestReconcileEmptyWalletBalanced(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, "w1", "p1", "USD", "0")

	report, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", "ops@example.com")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !report.ExpectedBalance.IsZero() {
		t.Fatalf("expected balance 0, got %s", report.ExpectedBalance)
	}
	if !report.Discrepancy.Equal(report.ActualBalance) {
		t.Fatalf("discrepancy %s should equal actual balance %s", report.Discrepancy, report.ActualBalance)
	}
	if report.Status != StatusBalanced {
		t.Fatalf("expected BALANCED, got %s", report.Status)
	}
	if report.Trigger != TriggerManual {
		t.Fatalf("expected manual trigger, got %s", report.Trigger)
	}
	if !report.ReconciledAt.Equal(f.clock.Now()) {
		t.Fatalf("expected reconciled_at %s, got %s", f.clock.Now(), report.ReconciledAt)
	}
}

func TestReconcileEmptyWalletWithResidualBalance(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, "w1", "p1", "USD", "0.50")

	report, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// Zero expected balance keeps the percentage at 0, so a residual actual
	// balance is a plain discrepancy, not critical.
	if report.Status != StatusDiscrepancy {
		t.Fatalf("expected DISCREPANCY, got %s", report.Status)
	}
	if !report.Discrepancy.Equal(dec(t, "0.50")) {
		t.Fatalf("expected discrepancy 0.50, got %s", report.Discrepancy)
	}
}

func TestReconcileMissingPaymentTransactionIsCritical(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, "w1", "p1", "USD", "0")
	f.payments.Add(payments.Payment{ID: "pay_1", Currency: "USD", Amount: dec(t, "100"), Status: payments.StatusCompleted})

	report, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d", len(report.Issues))
	}
	issue := report.Issues[0]
	if issue.Type != IssueMissingTransaction || issue.Severity != SeverityCritical {
		t.Fatalf("expected MISSING_TRANSACTION/CRITICAL, got %s/%s", issue.Type, issue.Severity)
	}
	if issue.PaymentID != "pay_1" {
		t.Fatalf("expected payment pay_1, got %q", issue.PaymentID)
	}
	if report.Status != StatusCritical {
		t.Fatalf("expected CRITICAL, got %s", report.Status)
	}
}

func TestClassifyThresholdBoundary(t *testing.T) {
	cases := []struct {
		name   string
		actual string
		want   Status
	}{
		{name: "under five percent", actual: "1049", want: StatusDiscrepancy},
		{name: "over five percent", actual: "1051", want: StatusCritical},
		{name: "exactly balanced", actual: "1000", want: StatusBalanced},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.addWallet(t, "w1", "p1", "USD", tc.actual)
			f.entries.Add(entry(t, "t1", "w1", ledger.Credit, ledger.StatusCompleted, "1000", "1000", f.clock.Now().Add(-time.Hour)))

			report, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", "")
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("actual %s: expected %s, got %s (discrepancy %s%%)",
					tc.actual, tc.want, report.Status, report.DiscrepancyPercent)
			}
		})
	}
}

func TestReconcileWritesWalletMetadataOnly(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, "w1", "p1", "USD", "25")
	f.entries.Add(entry(t, "t1", "w1", ledger.Credit, ledger.StatusCompleted, "20", "20", f.clock.Now().Add(-time.Hour)))

	report, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	stored, err := f.wallets.Get(context.Background(), "p1", "USD")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.ReconciliationStatus() != string(report.Status) {
		t.Fatalf("expected stored status %s, got %s", report.Status, stored.ReconciliationStatus())
	}
	d, ok := stored.LastDiscrepancy()
	if !ok || !d.Equal(dec(t, "5")) {
		t.Fatalf("expected stored discrepancy 5, got %s (ok=%v)", d, ok)
	}
	ts, ok := stored.LastReconciliation()
	if !ok || !ts.Equal(f.clock.Now()) {
		t.Fatalf("expected stored timestamp %s, got %s (ok=%v)", f.clock.Now(), ts, ok)
	}
	// Detect but never correct: the materialized balance stays untouched.
	if !stored.Balance.Equal(dec(t, "25")) {
		t.Fatalf("wallet balance must not be rewritten, got %s", stored.Balance)
	}
}

func TestManualRunAppendsAuditEvent(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, "w1", "p1", "USD", "0")

	if _, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", "ops@example.com"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	events := f.auditLog.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	event := events[0]
	if event.Type != audit.EventManualRun {
		t.Fatalf("expected %s, got %s", audit.EventManualRun, event.Type)
	}
	if event.AggregateID != "p1" {
		t.Fatalf("expected aggregate p1, got %s", event.AggregateID)
	}
	if event.Metadata["manual"] != "true" || event.Metadata["triggered_by"] != "ops@example.com" {
		t.Fatalf("unexpected metadata: %v", event.Metadata)
	}

	var record ManualRecord
	if err := json.Unmarshal(event.Payload, &record); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if record.Report.WalletID != "w1" || record.TriggeredBy != "ops@example.com" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestReconcileFailsOnDataSourceError(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, "w1", "p1", "USD", "0")
	f.entries.FailWallet("w1", errors.New("connection reset"))

	_, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", "")
	if !errors.Is(err, ErrDataSource) {
		t.Fatalf("expected ErrDataSource, got %v", err)
	}
}

func TestStatsFromWalletMetadata(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, "w1", "p1", "USD", "0")
	f.addWallet(t, "w2", "p2", "USD", "10")
	f.addWallet(t, "w3", "p3", "USD", "0")
	f.payments.Add(payments.Payment{ID: "pay_x", Currency: "EUR", Amount: dec(t, "5"), Status: payments.StatusCompleted})

	if _, err := f.svc.ReconcileWallet(context.Background(), "p1", "USD", ""); err != nil {
		t.Fatalf("reconcile p1: %v", err)
	}
	if _, err := f.svc.ReconcileWallet(context.Background(), "p2", "USD", ""); err != nil {
		t.Fatalf("reconcile p2: %v", err)
	}

	stats, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalWallets != 3 {
		t.Fatalf("expected 3 wallets, got %d", stats.TotalWallets)
	}
	if stats.WalletsWithIssues != 1 {
		t.Fatalf("expected 1 wallet with issues, got %d", stats.WalletsWithIssues)
	}
	// Mean of |0| and |10| over the two reconciled wallets.
	if !stats.AverageDiscrepancy.Equal(dec(t, "5")) {
		t.Fatalf("expected average discrepancy 5, got %s", stats.AverageDiscrepancy)
	}
	if stats.LastRun == nil || !stats.LastRun.Equal(f.clock.Now()) {
		t.Fatalf("expected last run %s, got %v", f.clock.Now(), stats.LastRun)
	}
}
