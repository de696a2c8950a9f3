package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGetAndSaveMetadata(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(Wallet{ID: "w1", PartnerID: "p1", Currency: "USD", Balance: decimal.NewFromInt(100)})

	ctx := context.Background()
	w, err := repo.Get(ctx, "p1", "USD")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.ID != "w1" {
		t.Fatalf("expected w1, got %s", w.ID)
	}

	if _, err := repo.Get(ctx, "p1", "EUR"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	at := time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)
	metadata := map[string]string{
		MetaLastReconciliation:   at.Format(time.RFC3339Nano),
		MetaReconciliationStatus: "BALANCED",
		MetaLastDiscrepancy:      "0",
	}
	if err := repo.SaveMetadata(ctx, "w1", metadata); err != nil {
		t.Fatalf("save metadata: %v", err)
	}
	if err := repo.SaveMetadata(ctx, "w-missing", metadata); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	w, err = repo.Get(ctx, "p1", "USD")
	if err != nil {
		t.Fatalf("get after save: %v", err)
	}
	if w.ReconciliationStatus() != "BALANCED" {
		t.Fatalf("expected BALANCED, got %q", w.ReconciliationStatus())
	}
	d, ok := w.LastDiscrepancy()
	if !ok || !d.IsZero() {
		t.Fatalf("expected zero discrepancy, got %s (ok=%v)", d, ok)
	}
	ts, ok := w.LastReconciliation()
	if !ok || !ts.Equal(at) {
		t.Fatalf("expected %s, got %s (ok=%v)", at, ts, ok)
	}
	// The balance column is outside the metadata write path.
	if !w.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance changed: %s", w.Balance)
	}
}

func TestMetadataAccessorsOnEmptyWallet(t *testing.T) {
	w := Wallet{ID: "w1"}
	if w.ReconciliationStatus() != "" {
		t.Fatalf("expected empty status")
	}
	if _, ok := w.LastDiscrepancy(); ok {
		t.Fatalf("expected no discrepancy")
	}
	if _, ok := w.LastReconciliation(); ok {
		t.Fatalf("expected no timestamp")
	}
}
