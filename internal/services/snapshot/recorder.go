// Package snapshot materializes point-in-time valuations of the ledger.
package snapshot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentfolio/agentfolio/internal/domain"
)

// Store is the slice of the ledger store the recorder needs.
type Store interface {
	Balance(ctx context.Context) (domain.Balance, error)
	AppendSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// PriceResolver resolves the current market price.
type PriceResolver interface {
	Resolve(ctx context.Context) (decimal.Decimal, error)
}

// Recorder appends valuation snapshots. Each call yields a new valid snapshot
// with no other side effects, so it is safe to invoke on any cadence.
type Recorder struct {
	store    Store
	resolver PriceResolver
	logger   *zap.Logger
}

// NewRecorder creates a snapshot recorder.
func NewRecorder(store Store, resolver PriceResolver, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, resolver: resolver, logger: logger}
}

// Record values the current balance at the resolved price and appends the
// snapshot to the history.
func (r *Recorder) Record(ctx context.Context) (domain.Snapshot, error) {
	balance, err := r.store.Balance(ctx)
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "read balance for snapshot")
	}

	price, err := r.resolver.Resolve(ctx)
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "resolve price for snapshot")
	}

	snap := domain.Snapshot{
		Timestamp:  time.Now().UTC(),
		BaseQty:    balance.BaseQty,
		QuoteQty:   balance.QuoteQty,
		Price:      price,
		TotalValue: balance.TotalValue(price),
	}

	if err := r.store.AppendSnapshot(ctx, snap); err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "append snapshot")
	}

	r.logger.Debug("snapshot recorded",
		zap.String("total_value", snap.TotalValue.String()),
		zap.String("price", price.String()))

	return snap, nil
}
