// Package exchange simulates spot order execution against historical prices
// under a virtual clock.
package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// HistoryPricer resolves the pair price at an exact minute.
type HistoryPricer interface {
	PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error)
}

// Sizing computes the order size from the available balance.
type Sizing func(available decimal.Decimal) decimal.Decimal

// WholeBalance spends the entire available balance on every order.
var WholeBalance Sizing = func(available decimal.Decimal) decimal.Decimal {
	return available
}

// DefaultFee is the taker fee charged on the received leg of every trade.
var DefaultFee = decimal.NewFromFloat(0.0075)

// SimExchange keeps a balance ledger and fills simulated market orders at
// prices resolved for the current virtual time. The fee is charged on the
// received side only, identically for buys and sells.
type SimExchange struct {
	mu       sync.Mutex
	clock    *domain.Clock
	balances domain.Balances
	fee      decimal.Decimal
	sizing   Sizing
	history  HistoryPricer
	logger   *zap.Logger
}

// Option configures the simulated exchange.
type Option func(*SimExchange)

// WithFee overrides the fee rate.
func WithFee(fee decimal.Decimal) Option {
	return func(e *SimExchange) {
		e.fee = fee
	}
}

// WithSizing overrides the order sizing policy.
func WithSizing(s Sizing) Option {
	return func(e *SimExchange) {
		e.sizing = s
	}
}

// NewSimExchange creates a simulated exchange over the given ledger.
func NewSimExchange(clock *domain.Clock, balances domain.Balances, history HistoryPricer, logger *zap.Logger, opts ...Option) *SimExchange {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &SimExchange{
		clock:    clock,
		balances: balances,
		fee:      DefaultFee,
		sizing:   WholeBalance,
		history:  history,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Clock returns the virtual clock driving price resolution.
func (e *SimExchange) Clock() *domain.Clock {
	return e.clock
}

// Fee returns the fee rate for a trade between origin and target.
func (e *SimExchange) Fee(origin, target string, selling bool) decimal.Decimal {
	return e.fee
}

// GetPrice resolves the pair price at the current virtual time.
// Returns pricer.ErrNoData when the venue has no trade for that minute.
func (e *SimExchange) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return e.history.PriceAt(ctx, pair, e.clock.Now())
}

// GetBalance returns the owned amount of the symbol, zero when unknown.
func (e *SimExchange) GetBalance(symbol string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.balances.Get(symbol)
}

// Balances returns a snapshot of the ledger.
func (e *SimExchange) Balances() domain.Balances {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.balances.Clone()
}

// Buy converts the sized part of the target (quote) balance into origin at
// the given price. Returns the fill price.
func (e *SimExchange) Buy(ctx context.Context, origin, target string, price decimal.Decimal) (decimal.Decimal, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Errorf("invalid buy price %s for %s%s", price.String(), origin, target)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	available := e.balances.Get(target)
	quantity := e.sizing(available).Div(price)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Errorf("nothing to spend: zero %s balance", target)
	}

	spent := quantity.Mul(price)
	// division rounding must never overdraw the quote balance
	if spent.GreaterThan(available) {
		spent = available
	}

	e.balances.Sub(target, spent)
	received := quantity.Mul(decimal.NewFromInt(1).Sub(e.fee))
	e.balances.Add(origin, received)

	e.logger.Info("simulated buy filled",
		zap.String("order_id", uuid.NewString()),
		zap.String("pair", origin+target),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
		zap.Time("at", e.clock.Now()))

	return price, nil
}

// Sell converts the sized part of the origin (base) balance into target at
// the price of the current virtual minute. Returns the fill price.
// An unknown price propagates as-is and leaves the ledger untouched.
func (e *SimExchange) Sell(ctx context.Context, origin, target string) (decimal.Decimal, error) {
	price, err := e.GetPrice(ctx, domain.Pair{From: origin, To: target})
	if err != nil {
		return decimal.Decimal{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	quantity := e.sizing(e.balances.Get(origin))
	if quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, errors.Errorf("nothing to sell: zero %s balance", origin)
	}

	received := quantity.Mul(price).Mul(decimal.NewFromInt(1).Sub(e.fee))
	e.balances.Add(target, received)
	e.balances.Sub(origin, quantity)

	e.logger.Info("simulated sell filled",
		zap.String("order_id", uuid.NewString()),
		zap.String("pair", origin+target),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
		zap.Time("at", e.clock.Now()))

	return price, nil
}
