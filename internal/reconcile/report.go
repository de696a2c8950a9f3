package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// IssueType classifies a detected ledger inconsistency.
type IssueType string

const (
	IssueMissingTransaction   IssueType = "MISSING_TRANSACTION"
	IssueDuplicateTransaction IssueType = "DUPLICATE_TRANSACTION"
	IssueAmountMismatch       IssueType = "AMOUNT_MISMATCH"
	IssueStatusMismatch       IssueType = "STATUS_MISMATCH"
)

// Severity ranks how dangerous an issue is. Critical issues indicate money
// moved without a ledger trace.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Status is the overall outcome of one wallet reconciliation.
type Status string

const (
	StatusBalanced    Status = "BALANCED"
	StatusDiscrepancy Status = "DISCREPANCY"
	StatusCritical    Status = "CRITICAL"
)

// Trigger records whether a run was started by the scheduler or an operator.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Issue is one finding produced by an issue detector. Issues are ephemeral:
// rebuilt on every run and persisted only embedded in a report.
type Issue struct {
	Type           IssueType        `json:"type"`
	Severity       Severity         `json:"severity"`
	Description    string           `json:"description"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	PaymentID      string           `json:"payment_id,omitempty"`
	RefundID       string           `json:"refund_id,omitempty"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	ActualAmount   *decimal.Decimal `json:"actual_amount,omitempty"`
}

// Report is the outcome of reconciling one wallet.
type Report struct {
	WalletID           string          `json:"wallet_id"`
	PartnerID          string          `json:"partner_id"`
	Currency           string          `json:"currency"`
	ExpectedBalance    decimal.Decimal `json:"expected_balance"`
	ActualBalance      decimal.Decimal `json:"actual_balance"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`
	DiscrepancyPercent decimal.Decimal `json:"discrepancy_percentage"`
	TransactionCount   int             `json:"transaction_count"`
	Issues             []Issue         `json:"issues"`
	Status             Status          `json:"status"`
	Trigger            Trigger         `json:"trigger"`
	ReconciledAt       time.Time       `json:"reconciled_at"`
}

// CriticalIssueCount returns how many issues in the report carry critical
// severity.
func (r Report) CriticalIssueCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Summary aggregates one fleet sweep. Persisted in full to the audit log
// regardless of findings, so clean runs stay auditable.
type Summary struct {
	TotalWallets       int             `json:"total_wallets"`
	BalancedWallets    int             `json:"balanced_wallets"`
	WalletsWithIssues  int             `json:"wallets_with_discrepancies"`
	FailedWallets      int             `json:"failed_wallets"`
	CriticalIssues     int             `json:"critical_issues"`
	TotalDiscrepancy   decimal.Decimal `json:"total_discrepancy_amount"`
	LastRun            time.Time       `json:"last_reconciliation_run"`
	NextScheduledRun   time.Time       `json:"next_scheduled_run"`
	ProcessingMillis   int64           `json:"processing_time_ms"`
}

// Stats is the fleet-level view computed from each wallet's reconciliation
// metadata.
type Stats struct {
	TotalWallets       int             `json:"total_wallets"`
	WalletsWithIssues  int             `json:"wallets_with_issues"`
	CriticalWallets    int             `json:"critical_issues"`
	AverageDiscrepancy decimal.Decimal `json:"average_discrepancy"`
	LastRun            *time.Time      `json:"last_reconciliation_run"`
}
