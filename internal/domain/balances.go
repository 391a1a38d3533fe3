package domain

import "github.com/shopspring/decimal"

// Balances is the ledger of owned quantities per currency symbol.
// It lives for the duration of one backtest run and is mutated only
// by simulated order execution.
type Balances map[string]decimal.Decimal

// NewBalances copies the initial amounts into a fresh ledger.
func NewBalances(initial map[string]decimal.Decimal) Balances {
	b := make(Balances, len(initial))
	for symbol, amount := range initial {
		b[symbol] = amount
	}
	return b
}

// Get returns the owned amount, zero for unknown symbols.
func (b Balances) Get(symbol string) decimal.Decimal {
	return b[symbol]
}

// Add credits the symbol by amount.
func (b Balances) Add(symbol string, amount decimal.Decimal) {
	b[symbol] = b[symbol].Add(amount)
}

// Sub debits the symbol by amount.
func (b Balances) Sub(symbol string, amount decimal.Decimal) {
	b[symbol] = b[symbol].Sub(amount)
}

// Clone returns an independent copy of the ledger.
func (b Balances) Clone() Balances {
	return NewBalances(b)
}
