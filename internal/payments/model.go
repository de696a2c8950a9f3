package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statuses shared by payments and refunds. Only completed records take part
// in reconciliation cross-checks.
const (
	StatusCompleted = "COMPLETED"
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
)

// Payment is a settled customer payment, owned by the payment subsystem and
// read-only here. A completed payment must leave exactly one ledger entry
// with reference type PAYMENT.
type Payment struct {
	ID        string
	Currency  string
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
}

// Refund is a settled refund, read-only here. A completed refund must leave
// exactly one debit ledger entry with reference type REFUND.
type Refund struct {
	ID        string
	Currency  string
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
}
