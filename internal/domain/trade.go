package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side marks the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is a single immutable entry of the append-only trade log.
// QuoteQty is the gross cash amount exchanged (BaseQty * Price); the fee is
// tracked separately and settled against the cash balance on both sides.
type Trade struct {
	ID            int64           `json:"id"`
	Timestamp     time.Time       `json:"ts"`
	Side          Side            `json:"side"`
	BaseQty       decimal.Decimal `json:"base_qty"`
	Price         decimal.Decimal `json:"price"`
	Fee           decimal.Decimal `json:"fee"`
	QuoteQty      decimal.Decimal `json:"quote_qty"`
	Rationale     string          `json:"rationale,omitempty"`
	MarketContext string          `json:"market_context,omitempty"`
}

// String returns a human-readable string representation.
func (t *Trade) String() string {
	return fmt.Sprintf("#%d %s %s @ %s fee %s", t.ID, t.Side, t.BaseQty.String(), t.Price.String(), t.Fee.String())
}
