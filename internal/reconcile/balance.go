package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/deskhive/reconciler/internal/ledger"
)

// tolerance absorbs rounding noise in balance comparisons: differences of at
// most one cent are not discrepancies.
var tolerance = decimal.New(1, -2)

// criticalPercent is the discrepancy percentage beyond which a wallet is
// classified critical regardless of issue findings.
var criticalPercent = decimal.NewFromInt(5)

// Calculator recomputes a wallet's expected balance from its ledger entries.
type Calculator struct {
	entries ledger.Store
}

// NewCalculator builds a balance calculator over the given ledger store.
func NewCalculator(entries ledger.Store) *Calculator {
	return &Calculator{entries: entries}
}

// ExpectedBalance sums the wallet's completed entries: credits add, debits
// subtract. Pending, failed and cancelled entries are excluded entirely. A
// wallet with no completed entries yields zero. The computation is a pure
// read; it never mutates anything.
func (c *Calculator) ExpectedBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	entries, err := c.entries.ListByWallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: list transactions: %w", ErrDataSource, err)
	}
	return sumCompleted(entries), nil
}

func sumCompleted(entries []ledger.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if entry.Status != ledger.StatusCompleted {
			continue
		}
		total = total.Add(entry.Signed())
	}
	return total
}
