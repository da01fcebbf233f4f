package domain

import "time"

// DecisionEvent records one agent decision cycle: what the agent chose to do,
// the canned reasoning it sampled, and the trade outcome if one was submitted.
type DecisionEvent struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"ts"`
	Pair          string    `json:"pair"`
	Action        string    `json:"action"`
	Reasoning     string    `json:"reasoning"`
	MarketContext string    `json:"market_context,omitempty"`
	Price         string    `json:"price,omitempty"`
	BaseQty       string    `json:"base_qty,omitempty"`
	TradeID       int64     `json:"trade_id,omitempty"`
	Rejected      bool      `json:"rejected,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// DecisionEventRecord bundles a decision event with its journal index.
type DecisionEventRecord struct {
	Index uint64        `json:"index"`
	Event DecisionEvent `json:"event"`
}
