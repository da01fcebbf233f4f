// Package ledger is the facade external collaborators (decision agents,
// dashboards) use to interact with the portfolio. It composes the store, the
// price resolver, the snapshot recorder and the analytics engine, and is the
// only component allowed to submit trades.
package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentfolio/agentfolio/internal/domain"
)

// submitAttempts bounds retries after an optimistic-concurrency conflict.
// Each retry re-reads the balance, so losing a race is recoverable.
const submitAttempts = 3

// Store is the persistence surface the facade requires.
type Store interface {
	ApplyTrade(ctx context.Context, side domain.Side, qty, price, fee decimal.Decimal, rationale, marketContext string) (domain.Trade, error)
	Balance(ctx context.Context) (domain.Balance, error)
	Trades(ctx context.Context) ([]domain.Trade, error)
	TradeHistory(ctx context.Context, limit int) ([]domain.Trade, error)
	Snapshots(ctx context.Context) ([]domain.Snapshot, error)
	SnapshotHistory(ctx context.Context, limit int) ([]domain.Snapshot, error)
}

// PriceResolver resolves the current market price.
type PriceResolver interface {
	Resolve(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotRecorder materializes a valuation snapshot.
type SnapshotRecorder interface {
	Record(ctx context.Context) (domain.Snapshot, error)
}

// ReportEngine computes the performance report from the logs.
type ReportEngine interface {
	Report(trades []domain.Trade, snapshots []domain.Snapshot, balance domain.Balance, currentPrice decimal.Decimal, now time.Time) domain.PerformanceReport
}

// SubmitRequest is a trade instruction. A zero Price means "trade at the
// current market price", resolved before the trade is applied so the network
// fetch never happens inside the store's critical section.
type SubmitRequest struct {
	Side          domain.Side
	BaseQty       decimal.Decimal
	Price         decimal.Decimal
	Fee           decimal.Decimal
	Rationale     string
	MarketContext string
}

// Ledger is an explicitly constructed portfolio handle. Build one at process
// start and pass it to collaborators; there is no package-global instance.
type Ledger struct {
	store    Store
	resolver PriceResolver
	recorder SnapshotRecorder
	engine   ReportEngine
	logger   *zap.Logger
}

// New creates the ledger facade.
func New(store Store, resolver PriceResolver, recorder SnapshotRecorder, engine ReportEngine, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		resolver: resolver,
		recorder: recorder,
		engine:   engine,
		logger:   logger,
	}
}

// Balance returns the current balance.
func (l *Ledger) Balance(ctx context.Context) (domain.Balance, error) {
	return l.store.Balance(ctx)
}

// SubmitTrade applies a trade instruction. Precondition violations come back
// as ErrInsufficientFunds or ErrInsufficientHoldings; the trade is never
// coerced into a smaller valid one.
func (l *Ledger) SubmitTrade(ctx context.Context, req SubmitRequest) (domain.Trade, error) {
	price := req.Price
	if price.LessThanOrEqual(decimal.Zero) {
		resolved, err := l.resolver.Resolve(ctx)
		if err != nil {
			return domain.Trade{}, errors.Wrap(err, "resolve price for trade")
		}
		price = resolved
	}

	var (
		trade domain.Trade
		err   error
	)
	for attempt := 0; attempt < submitAttempts; attempt++ {
		trade, err = l.store.ApplyTrade(ctx, req.Side, req.BaseQty, price, req.Fee, req.Rationale, req.MarketContext)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return domain.Trade{}, err
		}
		l.logger.Warn("trade application lost a balance race, retrying",
			zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return domain.Trade{}, err
	}

	l.logger.Info("trade recorded",
		zap.Int64("id", trade.ID),
		zap.String("side", string(trade.Side)),
		zap.String("base_qty", trade.BaseQty.String()),
		zap.String("price", trade.Price.String()),
		zap.String("fee", trade.Fee.String()))

	return trade, nil
}

// TradeHistory returns up to limit trades, most recent first.
func (l *Ledger) TradeHistory(ctx context.Context, limit int) ([]domain.Trade, error) {
	return l.store.TradeHistory(ctx, limit)
}

// SnapshotHistory returns up to limit snapshots, most recent first.
func (l *Ledger) SnapshotHistory(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	return l.store.SnapshotHistory(ctx, limit)
}

// RecordSnapshotNow materializes a valuation snapshot immediately.
func (l *Ledger) RecordSnapshotNow(ctx context.Context) (domain.Snapshot, error) {
	return l.recorder.Record(ctx)
}

// PerformanceReport replays the trade and snapshot logs through the analytics
// engine. A failed log read propagates: a zeroed report would be
// indistinguishable from genuinely no activity.
func (l *Ledger) PerformanceReport(ctx context.Context) (domain.PerformanceReport, error) {
	trades, err := l.store.Trades(ctx)
	if err != nil {
		return domain.PerformanceReport{}, errors.Wrap(err, "read trade log")
	}

	snapshots, err := l.store.Snapshots(ctx)
	if err != nil {
		return domain.PerformanceReport{}, errors.Wrap(err, "read snapshot log")
	}

	balance, err := l.store.Balance(ctx)
	if err != nil {
		return domain.PerformanceReport{}, errors.Wrap(err, "read balance")
	}

	price, err := l.resolver.Resolve(ctx)
	if err != nil {
		return domain.PerformanceReport{}, errors.Wrap(err, "resolve price for report")
	}

	return l.engine.Report(trades, snapshots, balance, price, time.Now()), nil
}
