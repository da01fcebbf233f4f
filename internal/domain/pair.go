// Package domain defines the core data structures of the portfolio ledger.
package domain

import "fmt"

// Pair is the traded asset pair.
type Pair struct {
	// Base asset symbol, e.g. BTC.
	Base string
	// Quote currency symbol, e.g. USDT.
	Quote string
}

// String returns the underscore-separated representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol representation.
func (p *Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}
