package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/deskhive/reconciler/internal/ledger"
	"github.com/deskhive/reconciler/internal/payments"
)

// integrityIssues runs the transaction integrity check over a wallet's ledger
// entries. It flags entries sharing a reference ID and amount with an earlier
// entry as duplicates, then walks completed entries in canonical order and
// flags any recorded balance_after that deviates from the recomputed running
// balance by more than the tolerance. It is pure: the result depends only on
// the entry list.
func integrityIssues(entries []ledger.Transaction) []Issue {
	var issues []Issue

	type dupKey struct {
		referenceID string
		amount      string
	}
	seen := make(map[dupKey]string) // first transaction ID per key
	for _, entry := range entries {
		if entry.ReferenceID == "" {
			continue
		}
		key := dupKey{referenceID: entry.ReferenceID, amount: entry.Amount.String()}
		if firstID, ok := seen[key]; ok && firstID != entry.ID {
			issues = append(issues, Issue{
				Type:          IssueDuplicateTransaction,
				Severity:      SeverityHigh,
				Description:   fmt.Sprintf("duplicate transaction for reference %s", entry.ReferenceID),
				TransactionID: entry.ID,
			})
			continue
		}
		seen[key] = entry.ID
	}

	running := decimal.Zero
	for _, entry := range entries {
		if entry.Status != ledger.StatusCompleted {
			continue
		}
		running = running.Add(entry.Signed())
		if running.Sub(entry.BalanceAfter).Abs().GreaterThan(tolerance) {
			expected := running
			actual := entry.BalanceAfter
			issues = append(issues, Issue{
				Type:           IssueAmountMismatch,
				Severity:       SeverityMedium,
				Description:    "recorded balance_after deviates from recomputed running balance",
				TransactionID:  entry.ID,
				ExpectedAmount: &expected,
				ActualAmount:   &actual,
			})
		}
	}

	return issues
}

// paymentIssues cross-checks completed payments against the ledger: every
// completed payment in the currency must have exactly one ledger entry with
// reference type PAYMENT and a matching amount. A missing trace means money
// moved without reaching the wallet, the most dangerous failure a ledger can
// have, hence critical severity.
func paymentIssues(ctx context.Context, store payments.PaymentStore, entries ledger.Store, currency string) ([]Issue, error) {
	completed, err := store.ListCompleted(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments: %w", ErrDataSource, err)
	}

	var issues []Issue
	for _, payment := range completed {
		entry, err := entries.FindByReference(ctx, payment.ID, ledger.ReferencePayment)
		if err != nil {
			if errors.Is(err, ledger.ErrEntryNotFound) {
				expected := payment.Amount
				issues = append(issues, Issue{
					Type:           IssueMissingTransaction,
					Severity:       SeverityCritical,
					Description:    "no ledger entry for completed payment",
					PaymentID:      payment.ID,
					ExpectedAmount: &expected,
				})
				continue
			}
			return nil, fmt.Errorf("%w: find payment entry: %w", ErrDataSource, err)
		}
		if entry.Amount.Sub(payment.Amount).Abs().GreaterThan(tolerance) {
			expected := payment.Amount
			actual := entry.Amount
			issues = append(issues, Issue{
				Type:           IssueAmountMismatch,
				Severity:       SeverityHigh,
				Description:    "ledger entry amount differs from payment amount",
				PaymentID:      payment.ID,
				TransactionID:  entry.ID,
				ExpectedAmount: &expected,
				ActualAmount:   &actual,
			})
		}
	}
	return issues, nil
}

// refundIssues mirrors paymentIssues for completed refunds. Refund entries
// are debits, so the stored amount is compared by absolute value.
func refundIssues(ctx context.Context, store payments.RefundStore, entries ledger.Store, currency string) ([]Issue, error) {
	completed, err := store.ListCompleted(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: list refunds: %w", ErrDataSource, err)
	}

	var issues []Issue
	for _, refund := range completed {
		entry, err := entries.FindByReference(ctx, refund.ID, ledger.ReferenceRefund)
		if err != nil {
			if errors.Is(err, ledger.ErrEntryNotFound) {
				expected := refund.Amount.Neg()
				issues = append(issues, Issue{
					Type:           IssueMissingTransaction,
					Severity:       SeverityCritical,
					Description:    "no ledger entry for completed refund",
					RefundID:       refund.ID,
					ExpectedAmount: &expected,
				})
				continue
			}
			return nil, fmt.Errorf("%w: find refund entry: %w", ErrDataSource, err)
		}
		if entry.Amount.Abs().Sub(refund.Amount).Abs().GreaterThan(tolerance) {
			expected := refund.Amount
			actual := entry.Amount.Abs()
			issues = append(issues, Issue{
				Type:           IssueAmountMismatch,
				Severity:       SeverityHigh,
				Description:    "ledger entry amount differs from refund amount",
				RefundID:       refund.ID,
				TransactionID:  entry.ID,
				ExpectedAmount: &expected,
				ActualAmount:   &actual,
			})
		}
	}
	return issues, nil
}
