package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/deskhive/reconciler/internal/ledger"
)

func TestExpectedBalanceSumsOnlyCompletedEntries(t *testing.T) {
	store := ledger.NewMemoryStore()
	calc := NewCalculator(store)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	store.Add(
		entry(t, "t1", "w1", ledger.Credit, ledger.StatusCompleted, "100", "100", at),
		entry(t, "t2", "w1", ledger.Debit, ledger.StatusCompleted, "30", "70", at.Add(time.Minute)),
		entry(t, "t3", "w1", ledger.Credit, ledger.StatusCompleted, "5.25", "75.25", at.Add(2*time.Minute)),
	)

	got, err := calc.ExpectedBalance(ctx, "w1")
	if err != nil {
		t.Fatalf("expected balance: %v", err)
	}
	if !got.Equal(dec(t, "75.25")) {
		t.Fatalf("expected 75.25, got %s", got)
	}

	// Balance purity: pending and failed entries must not move the result.
	store.Add(
		entry(t, "t4", "w1", ledger.Credit, ledger.StatusPending, "1000", "1075.25", at.Add(3*time.Minute)),
		entry(t, "t5", "w1", ledger.Debit, ledger.StatusFailed, "50", "1025.25", at.Add(4*time.Minute)),
	)
	got, err = calc.ExpectedBalance(ctx, "w1")
	if err != nil {
		t.Fatalf("expected balance after non-completed entries: %v", err)
	}
	if !got.Equal(dec(t, "75.25")) {
		t.Fatalf("pending/failed entries changed the balance: got %s", got)
	}
}

func TestExpectedBalanceEmptyLedgerIsZero(t *testing.T) {
	calc := NewCalculator(ledger.NewMemoryStore())

	got, err := calc.ExpectedBalance(context.Background(), "w-empty")
	if err != nil {
		t.Fatalf("expected balance: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected 0 for empty ledger, got %s", got)
	}
}
