package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEntryNotFound indicates no ledger entry matches the requested reference.
var ErrEntryNotFound = errors.New("ledger entry not found")

// EntryType is the signed role of a ledger entry.
type EntryType string

const (
	// Credit increases the wallet balance.
	Credit EntryType = "CREDIT"
	// Debit decreases the wallet balance.
	Debit EntryType = "DEBIT"
)

// EntryStatus is the settlement state of a ledger entry. Only completed
// entries count toward a wallet's balance.
type EntryStatus string

const (
	StatusPending   EntryStatus = "PENDING"
	StatusCompleted EntryStatus = "COMPLETED"
	StatusFailed    EntryStatus = "FAILED"
	StatusCancelled EntryStatus = "CANCELLED"
)

// Reference types linking a ledger entry back to the money movement that
// produced it.
const (
	ReferencePayment = "PAYMENT"
	ReferenceRefund  = "REFUND"
)

// Transaction is one immutable ledger entry. Created by the debit/credit
// mutation path; never modified afterwards.
type Transaction struct {
	ID            string
	WalletID      string
	Type          EntryType
	Status        EntryStatus
	Amount        decimal.Decimal // non-negative; sign comes from Type
	BalanceAfter  decimal.Decimal // wallet balance snapshot recorded at write time
	ReferenceID   string          // empty when the entry has no external cause
	ReferenceType string
	CreatedAt     time.Time
}

// Signed returns the entry amount with its sign applied: positive for
// credits, negative for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Store defines the read-only ledger accessors used by reconciliation.
// Implementations must return ListByWallet results ordered by creation time
// with the entry ID as tie-breaker, so repeated runs see an identical
// sequence.
type Store interface {
	ListByWallet(ctx context.Context, walletID string) ([]Transaction, error)
	CountByWallet(ctx context.Context, walletID string) (int, error)
	FindByReference(ctx context.Context, referenceID, referenceType string) (Transaction, error)
}
