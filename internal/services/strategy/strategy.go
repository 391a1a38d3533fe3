// Package strategy contains trading strategies driven by the backtest loop.
package strategy

import "context"

// Strategy is the decision component evaluated once per virtual clock tick.
type Strategy interface {
	// Initialize computes the strategy's internal thresholds before the run.
	Initialize(ctx context.Context) error
	// Scout evaluates the market once and may trade against the exchange.
	Scout(ctx context.Context) error
}
