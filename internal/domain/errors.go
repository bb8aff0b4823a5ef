package domain

import "errors"

// Send-path errors. All of them are terminal for a single send attempt and
// remove any optimistic message inserted for that attempt.
var (
	// ErrNotPermitted: the cached access hint is false. Raised before any
	// network call.
	ErrNotPermitted = errors.New("not permitted: no channel access")

	// ErrAccessDenied: the authoritative ownership check failed. Surfaced as
	// a denial, never as a network error.
	ErrAccessDenied = errors.New("access denied: no linked wallet owns a qualifying asset")

	// ErrWalletSwitchFailed: switching to the relay wallet was rejected or
	// aborted. The send never reached submission.
	ErrWalletSwitchFailed = errors.New("wallet switch failed")

	// ErrSubmissionFailed: the relay rejected or errored. Wrapped with the
	// collaborator's error text when available.
	ErrSubmissionFailed = errors.New("relay submission failed")

	// ErrSendInFlight: a previous send has not resolved yet.
	ErrSendInFlight = errors.New("a send is already in flight")
)

// ErrFetchFailed marks a transient poll failure. Internal only: the sync
// loop logs it and retries on the next tick, the store is untouched and the
// user never sees it.
var ErrFetchFailed = errors.New("feed fetch failed")
