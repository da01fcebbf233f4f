// Package analytics derives performance statistics from the trade and
// snapshot logs. Nothing here is stored independently: every metric is a pure
// replay of source data, so repeated runs over the same logs are identical.
package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentfolio/agentfolio/internal/domain"
)

// DefaultRiskFreeRate is the Sharpe baseline, in the same percent units as
// per-pair returns.
var DefaultRiskFreeRate = decimal.NewFromInt(2)

var hundred = decimal.NewFromInt(100)

// Engine computes the performance report.
type Engine struct {
	initialCash  decimal.Decimal
	riskFreeRate decimal.Decimal
}

// NewEngine creates an analytics engine. initialCash is the starting cash
// endowment the total return is measured against.
func NewEngine(initialCash, riskFreeRate decimal.Decimal) *Engine {
	return &Engine{initialCash: initialCash, riskFreeRate: riskFreeRate}
}

// tradePair is the k-th chronological buy matched with the k-th chronological
// sell. The pairing is positional, not FIFO lot accounting: one sell is
// assumed to close exactly one prior buy. Interleavings like buy-buy-sell
// leave the second buy unpaired.
type tradePair struct {
	netProfit decimal.Decimal
	returnPct decimal.Decimal
	// hasReturn is false when the buy gross amount is zero and the return
	// percentage is therefore undefined.
	hasReturn bool
}

// Report computes all metrics from the given logs. trades and snapshots must
// be in chronological order; currentPrice values the held quantity; now fixes
// the calendar day for the daily volume.
func (e *Engine) Report(trades []domain.Trade, snapshots []domain.Snapshot, balance domain.Balance, currentPrice decimal.Decimal, now time.Time) domain.PerformanceReport {
	report := domain.PerformanceReport{
		TotalFees:        decimal.Zero,
		AvgTradeSize:     decimal.Zero,
		WinRate:          decimal.Zero,
		TotalVolume:      decimal.Zero,
		DailyVolume:      decimal.Zero,
		CostBasis:        decimal.Zero,
		AvgReturn:        decimal.Zero,
		RealizedProfit:   decimal.Zero,
		UnrealizedProfit: decimal.Zero,
		TotalProfit:      decimal.Zero,
		SharpeRatio:      decimal.Zero,
		MaxDrawdown:      decimal.Zero,
		TotalReturn:      decimal.Zero,
	}

	report.TotalTrades = len(trades)

	totalQty := decimal.Zero
	year, month, day := now.UTC().Date()
	for _, t := range trades {
		report.TotalFees = report.TotalFees.Add(t.Fee)
		report.TotalVolume = report.TotalVolume.Add(t.QuoteQty)
		totalQty = totalQty.Add(t.BaseQty)

		ty, tm, td := t.Timestamp.UTC().Date()
		if ty == year && tm == month && td == day {
			report.DailyVolume = report.DailyVolume.Add(t.QuoteQty)
		}
	}
	if len(trades) > 0 {
		report.AvgTradeSize = totalQty.Div(decimal.NewFromInt(int64(len(trades))))
	}

	report.CostBasis = costBasis(trades)

	pairs := pairTrades(trades)
	wins := 0
	returns := make([]decimal.Decimal, 0, len(pairs))
	for _, p := range pairs {
		report.RealizedProfit = report.RealizedProfit.Add(p.netProfit)
		if p.netProfit.GreaterThan(decimal.Zero) {
			wins++
		}
		if p.hasReturn {
			returns = append(returns, p.returnPct)
		}
	}
	report.ProfitableTrades = wins
	if len(pairs) > 0 {
		report.WinRate = decimal.NewFromInt(int64(wins)).Mul(hundred).Div(decimal.NewFromInt(int64(len(pairs))))
	}
	if len(returns) > 0 {
		sum := decimal.Zero
		for _, r := range returns {
			sum = sum.Add(r)
		}
		report.AvgReturn = sum.Div(decimal.NewFromInt(int64(len(returns))))
	}

	report.SharpeRatio = e.sharpe(returns)
	report.MaxDrawdown = maxDrawdown(snapshots)

	report.UnrealizedProfit = balance.BaseQty.Mul(currentPrice.Sub(report.CostBasis))
	report.TotalProfit = report.RealizedProfit.Add(report.UnrealizedProfit)

	if e.initialCash.GreaterThan(decimal.Zero) {
		report.TotalReturn = balance.TotalValue(currentPrice).Sub(e.initialCash).Mul(hundred).Div(e.initialCash)
	}

	return report
}

// pairTrades partitions the chronological trade log into buys and sells and
// matches them positionally.
func pairTrades(trades []domain.Trade) []tradePair {
	var buys, sells []domain.Trade
	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			buys = append(buys, t)
		case domain.SideSell:
			sells = append(sells, t)
		}
	}

	n := len(buys)
	if len(sells) < n {
		n = len(sells)
	}

	pairs := make([]tradePair, 0, n)
	for k := 0; k < n; k++ {
		buy, sell := buys[k], sells[k]
		p := tradePair{
			netProfit: sell.QuoteQty.Sub(buy.QuoteQty).Sub(sell.Fee).Sub(buy.Fee),
		}
		if buy.QuoteQty.GreaterThan(decimal.Zero) {
			p.returnPct = p.netProfit.Mul(hundred).Div(buy.QuoteQty)
			p.hasReturn = true
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// costBasis is the fee-inclusive weighted average entry price over all buys.
func costBasis(trades []domain.Trade) decimal.Decimal {
	spent, qty := decimal.Zero, decimal.Zero
	for _, t := range trades {
		if t.Side != domain.SideBuy {
			continue
		}
		spent = spent.Add(t.BaseQty.Mul(t.Price)).Add(t.Fee)
		qty = qty.Add(t.BaseQty)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return spent.Div(qty)
}

// sharpe computes (mean - riskFree) / stddev over pair returns. Fewer than
// two returns, or a flat series, yields zero.
func (e *Engine) sharpe(returns []decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	vals := make([]float64, len(returns))
	for i, r := range returns {
		vals[i] = r.InexactFloat64()
	}

	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	variance := 0.0
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals))

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat((mean - e.riskFreeRate.InexactFloat64()) / stddev)
}

// maxDrawdown is the largest percentage decline from a running peak valuation
// over the chronological snapshot log.
func maxDrawdown(snapshots []domain.Snapshot) decimal.Decimal {
	maxDD := decimal.Zero
	peak := decimal.Zero
	for _, snap := range snapshots {
		if snap.TotalValue.GreaterThan(peak) {
			peak = snap.TotalValue
		}
		if peak.LessThanOrEqual(decimal.Zero) {
			continue
		}
		dd := peak.Sub(snap.TotalValue).Mul(hundred).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}
