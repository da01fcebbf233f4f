package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/agentfolio/agentfolio/internal/domain"
)

// BinanceSource fetches prices from the Binance public API without
// requiring authentication.
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource creates a price source backed by the Binance public API.
func NewBinanceSource(client *binance.Client) *BinanceSource {
	return &BinanceSource{client: client}
}

// GetPrice fetches the current market price for the pair.
func (s *BinanceSource) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := s.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(prices[0].Price)
}
