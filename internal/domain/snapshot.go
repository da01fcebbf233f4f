package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time valuation of the ledger. Snapshots feed drawdown
// computation and charting only; they are never read back into the balance.
type Snapshot struct {
	Timestamp  time.Time       `json:"ts"`
	BaseQty    decimal.Decimal `json:"base_qty"`
	QuoteQty   decimal.Decimal `json:"quote_qty"`
	Price      decimal.Decimal `json:"price"`
	TotalValue decimal.Decimal `json:"total_value"`
}
