package domain

import "github.com/shopspring/decimal"

// PerformanceReport aggregates every metric derived from the trade and
// snapshot logs. All fields keep full precision; rounding happens only at the
// presentation boundary.
type PerformanceReport struct {
	TotalTrades      int             `json:"total_trades"`
	ProfitableTrades int             `json:"profitable_trades"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	AvgTradeSize     decimal.Decimal `json:"avg_trade_size"`
	WinRate          decimal.Decimal `json:"win_rate"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	DailyVolume      decimal.Decimal `json:"daily_volume"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	AvgReturn        decimal.Decimal `json:"avg_return"`
	RealizedProfit   decimal.Decimal `json:"realized_profit"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	SharpeRatio      decimal.Decimal `json:"sharpe_ratio"`
	MaxDrawdown      decimal.Decimal `json:"max_drawdown"`
	TotalReturn      decimal.Decimal `json:"total_return"`
}
