package pricer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentfolio/agentfolio/internal/domain"
)

const defaultFetchTimeout = 10 * time.Second

// PricePointReader reads the newest collected price observation.
type PricePointReader interface {
	LatestPricePoint(ctx context.Context) (*domain.PricePoint, error)
}

// Resolver returns the latest known price for the traded pair. It prefers the
// newest collected PricePoint and falls back to exactly one external fetch.
// When neither yields a positive price it fails with ErrNoPriceAvailable: a
// silently substituted default would corrupt valuation and every metric
// derived from it.
type Resolver struct {
	pair         domain.Pair
	points       PricePointReader
	source       Source
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// NewResolver creates a price resolver for the pair.
func NewResolver(pair domain.Pair, points PricePointReader, source Source, fetchTimeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Resolver{
		pair:         pair,
		points:       points,
		source:       source,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Resolve returns the current price or ErrNoPriceAvailable.
func (r *Resolver) Resolve(ctx context.Context) (decimal.Decimal, error) {
	point, err := r.points.LatestPricePoint(ctx)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "read latest price point")
	}
	if point != nil && point.Price.GreaterThan(decimal.Zero) {
		return point.Price, nil
	}

	if r.source == nil {
		return decimal.Decimal{}, errors.Wrap(domain.ErrNoPriceAvailable, "no collected price and no external source")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	price, err := r.source.GetPrice(fetchCtx, r.pair)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(domain.ErrNoPriceAvailable, "external fetch for %s: %v", r.pair.String(), err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Wrapf(domain.ErrNoPriceAvailable, "external source returned non-positive price %s", price.String())
	}

	r.logger.Debug("price resolved via external fetch",
		zap.String("pair", r.pair.String()),
		zap.String("price", price.String()))

	return price, nil
}
