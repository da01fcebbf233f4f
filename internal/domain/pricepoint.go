package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a market price observation appended by the collector. The
// price resolver prefers the newest point over a live external fetch.
type PricePoint struct {
	Timestamp time.Time       `json:"ts"`
	Price     decimal.Decimal `json:"price"`
}
