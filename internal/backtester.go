package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/config"
	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/services/exchange"
	"github.com/vadiminshakov/rotor/internal/services/pricer"
	"github.com/vadiminshakov/rotor/internal/services/strategy"
)

// tickerPricer supplies the live snapshot price for the opening buy.
type tickerPricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// Backtester replays history tick by tick, letting the strategy trade
// against the simulated exchange.
type Backtester struct {
	clock        *domain.Clock
	exchange     *exchange.SimExchange
	strategy     strategy.Strategy
	ticker       tickerPricer
	end          time.Time
	interval     int
	startingCoin string
	bridge       string
	logger       *zap.Logger
}

// NewBacktester assembles a backtester from pre-built collaborators.
func NewBacktester(clock *domain.Clock, ex *exchange.SimExchange, strat strategy.Strategy,
	ticker tickerPricer, end time.Time, intervalMinutes int,
	startingCoin, bridge string, logger *zap.Logger) *Backtester {

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backtester{
		clock:        clock,
		exchange:     ex,
		strategy:     strat,
		ticker:       ticker,
		end:          end,
		interval:     intervalMinutes,
		startingCoin: startingCoin,
		bridge:       bridge,
		logger:       logger,
	}
}

// NewBacktesterFromConfig wires the full backtest stack: platform clients,
// cached history, simulated exchange and the rotation strategy.
func NewBacktesterFromConfig(cfg config.Config, cache pricer.Cache, provider ServiceProvider, logger *zap.Logger) (*Backtester, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	history := pricer.NewCachedHistory(cache, provider.History(), newSourceRetrier(cfg), logger)

	clock := domain.NewClock(cfg.Start)
	ex := exchange.NewSimExchange(clock, domain.NewBalances(cfg.InitialBalances), history, logger,
		exchange.WithFee(cfg.Fee))

	rotation, err := strategy.NewRotation(ex, cfg.Bridge, cfg.Coins, cfg.StartingCoin, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create rotation strategy")
	}

	return NewBacktester(clock, ex, rotation, provider.Pricer(),
		cfg.End, cfg.IntervalMinutes, cfg.StartingCoin, cfg.Bridge, logger), nil
}

// Run drives the clock from start to end, evaluating the strategy once per
// tick. Operator cancellation stops the loop and still returns the ledger
// accumulated so far; any other failure aborts the run without a ledger.
func (b *Backtester) Run(ctx context.Context) (domain.Balances, error) {
	if err := b.openStartingPosition(ctx); err != nil {
		return nil, err
	}

	if err := b.strategy.Initialize(ctx); err != nil {
		return nil, errors.Wrap(err, "initialize strategy")
	}

	b.logger.Info("starting backtest loop",
		zap.Time("from", b.clock.Now()),
		zap.Time("to", b.end),
		zap.Int("interval_minutes", b.interval))

	for b.clock.Before(b.end) {
		select {
		case <-ctx.Done():
			b.logger.Info("backtest interrupted, returning partial ledger", zap.Time("at", b.clock.Now()))
			return b.exchange.Balances(), nil
		default:
		}

		if err := b.strategy.Scout(ctx); err != nil {
			switch {
			case errors.Is(err, pricer.ErrNoData):
				b.logger.Debug("no data this tick", zap.Time("at", b.clock.Now()))
			case errors.Is(err, context.Canceled):
				b.logger.Info("backtest interrupted, returning partial ledger", zap.Time("at", b.clock.Now()))
				return b.exchange.Balances(), nil
			default:
				return nil, errors.Wrap(err, "scout")
			}
		}

		b.clock.Advance(b.interval)
	}

	b.logger.Info("backtest finished", zap.Time("at", b.clock.Now()))
	return b.exchange.Balances(), nil
}

// Valuation prices the ledger in the bridge currency using live ticker
// snapshots. Symbols without a resolvable price are skipped with a warning
// so a partial ledger still gets a total.
func (b *Backtester) Valuation(ctx context.Context, ledger domain.Balances) decimal.Decimal {
	total := ledger.Get(b.bridge)
	for symbol, amount := range ledger {
		if symbol == b.bridge || amount.IsZero() {
			continue
		}

		price, err := b.ticker.GetPrice(ctx, domain.BridgePair(symbol, b.bridge))
		if err != nil {
			b.logger.Warn("no snapshot price for symbol, excluded from valuation",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}

		total = total.Add(amount.Mul(price))
	}

	return total
}

// openStartingPosition buys the starting coin from the bridge balance when
// it is not held yet. The live ticker snapshot prices the opening buy, the
// historical source only serves the loop itself.
func (b *Backtester) openStartingPosition(ctx context.Context) error {
	if !b.exchange.GetBalance(b.startingCoin).IsZero() {
		return nil
	}

	price, err := b.ticker.GetPrice(ctx, domain.BridgePair(b.startingCoin, b.bridge))
	if err != nil {
		return errors.Wrapf(err, "snapshot price for opening %s buy", b.startingCoin)
	}

	if _, err := b.exchange.Buy(ctx, b.startingCoin, b.bridge, price); err != nil {
		return errors.Wrapf(err, "opening %s buy", b.startingCoin)
	}

	b.logger.Info("opened starting position",
		zap.String("coin", b.startingCoin),
		zap.String("price", price.String()))

	return nil
}
