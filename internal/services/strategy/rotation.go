package strategy

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/services/pricer"
)

// Exchange is the surface the rotation strategy trades against.
type Exchange interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	GetBalance(symbol string) decimal.Decimal
	Buy(ctx context.Context, origin, target string, price decimal.Decimal) (decimal.Decimal, error)
	Sell(ctx context.Context, origin, target string) (decimal.Decimal, error)
	Fee(origin, target string, selling bool) decimal.Decimal
}

// Rotation holds one coin at a time and jumps to another when the
// cross-coin price ratio beats the ratio recorded at the last jump by
// more than the round-trip fees.
type Rotation struct {
	exchange Exchange
	bridge   string
	coins    []string
	current  string
	// thresholds[from][to] is the from/to price ratio recorded when the
	// strategy last held "from"; zero means not yet observed.
	thresholds map[string]map[string]decimal.Decimal
	logger     *zap.Logger
}

// NewRotation creates a rotation strategy over the given coin list.
func NewRotation(exchange Exchange, bridge string, coins []string, startingCoin string, logger *zap.Logger) (*Rotation, error) {
	if len(coins) == 0 {
		return nil, errors.New("rotation strategy needs at least one coin")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if startingCoin == "" {
		startingCoin = coins[0]
	}

	thresholds := make(map[string]map[string]decimal.Decimal, len(coins))
	for _, coin := range coins {
		thresholds[coin] = make(map[string]decimal.Decimal, len(coins)-1)
	}

	return &Rotation{
		exchange:   exchange,
		bridge:     bridge,
		coins:      coins,
		current:    startingCoin,
		thresholds: thresholds,
		logger:     logger,
	}, nil
}

// Current returns the coin the strategy is holding.
func (r *Rotation) Current() string {
	return r.current
}

// Initialize records the current cross-coin ratios as jump thresholds.
// Pairs with no trade data this minute stay unset and are picked up
// lazily during scouting.
func (r *Rotation) Initialize(ctx context.Context) error {
	prices, err := r.bridgePrices(ctx)
	if err != nil {
		return err
	}

	for _, from := range r.coins {
		fromPrice, ok := prices[from]
		if !ok {
			continue
		}
		for _, to := range r.coins {
			if to == from {
				continue
			}
			toPrice, ok := prices[to]
			if !ok {
				continue
			}
			r.thresholds[from][to] = fromPrice.Div(toPrice)
		}
	}

	return nil
}

// Scout compares the held coin against every other coin and jumps through
// the bridge when a ratio improved beyond the fees. Returns pricer.ErrNoData
// when the held coin has no price this minute.
func (r *Rotation) Scout(ctx context.Context) error {
	currentPrice, err := r.exchange.GetPrice(ctx, domain.BridgePair(r.current, r.bridge))
	if err != nil {
		return err
	}

	best := ""
	bestGain := decimal.Zero

	for _, coin := range r.coins {
		if coin == r.current {
			continue
		}

		coinPrice, err := r.exchange.GetPrice(ctx, domain.BridgePair(coin, r.bridge))
		if err != nil {
			if errors.Is(err, pricer.ErrNoData) {
				continue
			}
			return err
		}

		ratio := currentPrice.Div(coinPrice)

		threshold := r.thresholds[r.current][coin]
		if threshold.IsZero() {
			r.thresholds[r.current][coin] = ratio
			continue
		}

		fees := r.exchange.Fee(r.current, r.bridge, true).Add(r.exchange.Fee(coin, r.bridge, false))
		net := ratio.Sub(ratio.Mul(fees))
		gain := net.Sub(threshold)
		if gain.GreaterThan(decimal.Zero) && gain.GreaterThan(bestGain) {
			best = coin
			bestGain = gain
		}
	}

	if best == "" {
		return nil
	}

	return r.jump(ctx, best)
}

// jump rotates the whole position from the held coin into target via the bridge.
func (r *Rotation) jump(ctx context.Context, target string) error {
	sellPrice, err := r.exchange.Sell(ctx, r.current, r.bridge)
	if err != nil {
		return errors.Wrapf(err, "sell %s", r.current)
	}

	buyPrice, err := r.exchange.GetPrice(ctx, domain.BridgePair(target, r.bridge))
	if err != nil {
		return errors.Wrapf(err, "price %s for jump", target)
	}

	if _, err := r.exchange.Buy(ctx, target, r.bridge, buyPrice); err != nil {
		return errors.Wrapf(err, "buy %s", target)
	}

	previous := r.current
	r.current = target
	r.refreshThresholds(ctx, target)

	r.logger.Info("rotated to new coin",
		zap.String("from", previous),
		zap.String("to", target),
		zap.String("sell_price", sellPrice.String()),
		zap.String("buy_price", buyPrice.String()))

	return nil
}

// refreshThresholds re-records the held coin's ratios at post-jump prices.
func (r *Rotation) refreshThresholds(ctx context.Context, held string) {
	prices, err := r.bridgePrices(ctx)
	if err != nil {
		r.logger.Warn("failed to refresh thresholds", zap.Error(err))
		return
	}

	heldPrice, ok := prices[held]
	if !ok {
		return
	}
	for _, coin := range r.coins {
		if coin == held {
			continue
		}
		coinPrice, ok := prices[coin]
		if !ok {
			continue
		}
		r.thresholds[held][coin] = heldPrice.Div(coinPrice)
	}
}

// bridgePrices resolves every coin's price against the bridge, skipping
// coins with no data this minute.
func (r *Rotation) bridgePrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(r.coins))
	for _, coin := range r.coins {
		price, err := r.exchange.GetPrice(ctx, domain.BridgePair(coin, r.bridge))
		if err != nil {
			if errors.Is(err, pricer.ErrNoData) {
				r.logger.Debug("no price for coin", zap.String("coin", coin))
				continue
			}
			return nil, errors.Wrapf(err, "price %s", coin)
		}
		prices[coin] = price
	}
	return prices, nil
}
