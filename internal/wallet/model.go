package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metadata keys written by the reconciliation engine. These are the only
// wallet fields reconciliation is allowed to mutate.
const (
	MetaLastReconciliation   = "lastReconciliation"
	MetaReconciliationStatus = "reconciliationStatus"
	MetaLastDiscrepancy      = "lastDiscrepancy"
)

// Wallet is the materialized balance record for one (partner, currency) pair.
// The balance field is maintained by the money-movement subsystem; this
// service only ever reads it.
type Wallet struct {
	ID        string
	PartnerID string
	Currency  string
	Balance   decimal.Decimal
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReconciliationStatus returns the status recorded by the most recent
// reconciliation run, or the empty string if the wallet was never reconciled.
func (w Wallet) ReconciliationStatus() string {
	return w.Metadata[MetaReconciliationStatus]
}

// LastDiscrepancy parses the discrepancy recorded by the most recent
// reconciliation run. The boolean reports whether a valid value was present.
func (w Wallet) LastDiscrepancy() (decimal.Decimal, bool) {
	raw, ok := w.Metadata[MetaLastDiscrepancy]
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// LastReconciliation parses the timestamp of the most recent reconciliation
// run, if any.
func (w Wallet) LastReconciliation() (time.Time, bool) {
	raw, ok := w.Metadata[MetaLastReconciliation]
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
