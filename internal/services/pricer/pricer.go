// Package pricer resolves the current market price for the traded pair,
// preferring locally collected observations over live exchange fetches.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/agentfolio/agentfolio/internal/domain"
)

// Source fetches the current price from an external market data endpoint.
type Source interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}
