package reconcile

import "errors"

var (
	// ErrWalletNotFound indicates the requested (partner, currency) pair has
	// no wallet. Fatal to a single-wallet run, skipped by a sweep.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrDataSource wraps a read failure from any backing store. The affected
	// wallet's run fails rather than producing a false balanced result.
	ErrDataSource = errors.New("data source failure")

	// ErrRunFailed indicates the sweep's own bookkeeping failed, e.g. the
	// audit log rejected the summary. A failed sweep is always surfaced.
	ErrRunFailed = errors.New("reconciliation run failed")

	// ErrWalletBusy indicates another reconciliation of the same wallet holds
	// the per-wallet lock.
	ErrWalletBusy = errors.New("wallet reconciliation already in progress")
)
