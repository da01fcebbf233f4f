package domain

import "errors"

// Ledger error taxonomy. Callers branch on these with errors.Is; wrapping via
// pkg/errors keeps the chain intact.
var (
	// ErrNoPriceAvailable means no price could be resolved. Fatal to any
	// operation requiring valuation; never substituted with a default.
	ErrNoPriceAvailable = errors.New("no price available")

	// ErrInsufficientFunds rejects a buy that would overdraw cash.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings rejects a sell exceeding held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrStorageUnavailable means the persistence layer cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConcurrentModification is an optimistic-concurrency conflict on the
	// balance row. The whole trade application is safe to retry from a fresh
	// read.
	ErrConcurrentModification = errors.New("concurrent balance modification")
)
