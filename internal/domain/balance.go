package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the single authoritative wallet state. It is a materialized fold
// over the trade log: replaying every trade from the initial endowment must
// reproduce it exactly. Version increments on every accepted trade and guards
// concurrent read-compute-write cycles.
type Balance struct {
	BaseQty   decimal.Decimal `json:"base_qty"`
	QuoteQty  decimal.Decimal `json:"quote_qty"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TotalValue values the balance at the given price.
func (b Balance) TotalValue(price decimal.Decimal) decimal.Decimal {
	return b.QuoteQty.Add(b.BaseQty.Mul(price))
}
