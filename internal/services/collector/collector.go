// Package collector polls the external market data endpoint and appends price
// observations to the ledger store, where the price resolver prefers them
// over live fetches.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentfolio/agentfolio/internal/domain"
	"github.com/agentfolio/agentfolio/internal/services/pricer"
	"github.com/agentfolio/agentfolio/pkg/indicators"
	"github.com/agentfolio/agentfolio/pkg/retrier"
)

const (
	emaPeriod = 20
	rsiPeriod = 14

	// contextWindow bounds how much price history feeds the indicators.
	contextWindow = 120
)

// Store is the slice of the ledger store the collector writes to.
type Store interface {
	AppendPricePoint(ctx context.Context, p domain.PricePoint) error
	RecentPrices(ctx context.Context, limit int) ([]decimal.Decimal, error)
}

// Collector periodically records market prices.
type Collector struct {
	pair     domain.Pair
	source   pricer.Source
	store    Store
	retrier  *retrier.Retrier
	interval time.Duration
	logger   *zap.Logger
}

// New creates a price collector polling the source on the given interval.
func New(pair domain.Pair, source pricer.Source, store Store, interval time.Duration, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		pair:   pair,
		source: source,
		store:  store,
		retrier: retrier.New(
			retrier.WithInitialInterval(2*time.Second),
			retrier.WithMaxRetries(3),
		),
		interval: interval,
		logger:   logger,
	}
}

// Run polls the price source until ctx is cancelled. Individual failures are
// logged and skipped; the ledger core never depends on a collection tick
// having happened.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("starting price collection",
		zap.String("pair", c.pair.String()),
		zap.Duration("interval", c.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.CollectOnce(ctx); err != nil {
				c.logger.Warn("price collection tick failed", zap.Error(err))
			}
		}
	}
}

// CollectOnce fetches the current price with retries and appends it to the
// price point log.
func (c *Collector) CollectOnce(ctx context.Context) (decimal.Decimal, error) {
	price, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return c.source.GetPrice(ctx, c.pair)
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "fetch price for %s", c.pair.String())
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Errorf("source returned non-positive price %s", price.String())
	}

	point := domain.PricePoint{Timestamp: time.Now().UTC(), Price: price}
	if err := c.store.AppendPricePoint(ctx, point); err != nil {
		return decimal.Decimal{}, err
	}

	c.logger.Debug("price point collected",
		zap.String("pair", c.pair.String()),
		zap.String("price", price.String()))

	return price, nil
}

// MarketContext summarizes recent price action with EMA and RSI. Returns an
// empty string when there is not enough history yet.
func (c *Collector) MarketContext(ctx context.Context) string {
	prices, err := c.store.RecentPrices(ctx, contextWindow)
	if err != nil {
		c.logger.Warn("failed to load prices for market context", zap.Error(err))
		return ""
	}
	if len(prices) == 0 {
		return ""
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("last price %s", prices[len(prices)-1].StringFixed(2)))

	if ema, err := indicators.EMA(prices, emaPeriod); err == nil && len(ema) > 0 {
		parts = append(parts, fmt.Sprintf("EMA%d %s", emaPeriod, ema[len(ema)-1].StringFixed(2)))
	}
	if rsi, err := indicators.RSI(prices, rsiPeriod); err == nil && len(rsi) > 0 {
		parts = append(parts, fmt.Sprintf("RSI%d %s", rsiPeriod, rsi[len(rsi)-1].StringFixed(1)))
	}

	return strings.Join(parts, ", ")
}
