package internal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/services/exchange"
	"github.com/vadiminshakov/rotor/internal/services/pricer"
)

type staticHistory struct {
	price decimal.Decimal
}

func (s *staticHistory) PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error) {
	if s.price.IsZero() {
		return decimal.Decimal{}, pricer.ErrNoData
	}
	return s.price, nil
}

type staticTicker struct {
	price decimal.Decimal
}

func (s *staticTicker) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return s.price, nil
}

// pricedTicker serves snapshot prices per symbol.
type pricedTicker struct {
	prices map[string]decimal.Decimal
}

func (p *pricedTicker) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	price, ok := p.prices[pair.Symbol()]
	if !ok {
		return decimal.Decimal{}, pricer.ErrNoData
	}
	return price, nil
}

// scriptedStrategy counts ticks and runs optional per-tick hooks.
type scriptedStrategy struct {
	initialized bool
	scouts      int
	onScout     func(tick int) error
}

func (s *scriptedStrategy) Initialize(ctx context.Context) error {
	s.initialized = true
	return nil
}

func (s *scriptedStrategy) Scout(ctx context.Context) error {
	tick := s.scouts
	s.scouts++
	if s.onScout != nil {
		return s.onScout(tick)
	}
	return nil
}

func startTime() time.Time {
	return time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestBacktester_LoopTermination(t *testing.T) {
	clock := domain.NewClock(startTime())
	ex := exchange.NewSimExchange(clock,
		domain.NewBalances(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1)}),
		&staticHistory{price: decimal.NewFromInt(100)}, nil)
	strat := &scriptedStrategy{}

	bt := NewBacktester(clock, ex, strat, &staticTicker{price: decimal.NewFromInt(100)},
		startTime().Add(10*time.Minute), 1, "BTC", "USDT", nil)

	ledger, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ledger)

	assert.True(t, strat.initialized)
	assert.Equal(t, 10, strat.scouts)
	assert.Equal(t, startTime().Add(10*time.Minute), clock.Now())
}

func TestBacktester_OpeningPosition(t *testing.T) {
	clock := domain.NewClock(startTime())
	ex := exchange.NewSimExchange(clock,
		domain.NewBalances(map[string]decimal.Decimal{"USDT": decimal.NewFromInt(100)}),
		&staticHistory{price: decimal.NewFromInt(50)}, nil)
	strat := &scriptedStrategy{}

	bt := NewBacktester(clock, ex, strat, &staticTicker{price: decimal.NewFromInt(50)},
		startTime().Add(time.Minute), 1, "BTC", "USDT", nil)

	ledger, err := bt.Run(context.Background())
	require.NoError(t, err)

	// 100 USDT bought 2 BTC at 50, fee charged on the received coin
	wantBTC := decimal.NewFromInt(2).Mul(decimal.NewFromInt(1).Sub(exchange.DefaultFee))
	assert.True(t, ledger.Get("BTC").Equal(wantBTC))
	assert.True(t, ledger.Get("USDT").IsZero())
}

func TestBacktester_SkipsOpeningBuyWhenHeld(t *testing.T) {
	clock := domain.NewClock(startTime())
	ex := exchange.NewSimExchange(clock,
		domain.NewBalances(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(3)}),
		&staticHistory{price: decimal.NewFromInt(50)}, nil)
	strat := &scriptedStrategy{}

	bt := NewBacktester(clock, ex, strat, &staticTicker{price: decimal.NewFromInt(50)},
		startTime().Add(time.Minute), 1, "BTC", "USDT", nil)

	ledger, err := bt.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ledger.Get("BTC").Equal(decimal.NewFromInt(3)))
}

func TestBacktester_CancellationReturnsPartialLedger(t *testing.T) {
	clock := domain.NewClock(startTime())
	history := &staticHistory{price: decimal.NewFromInt(100)}
	ex := exchange.NewSimExchange(clock,
		domain.NewBalances(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1)}),
		history, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strat := &scriptedStrategy{onScout: func(tick int) error {
		if tick == 3 {
			// the only trade of the run
			if _, err := ex.Sell(context.Background(), "BTC", "USDT"); err != nil {
				return err
			}
		}
		if tick == 5 {
			cancel()
		}
		return nil
	}}

	bt := NewBacktester(clock, ex, strat, &staticTicker{price: decimal.NewFromInt(100)},
		startTime().Add(10*time.Minute), 1, "BTC", "USDT", nil)

	ledger, err := bt.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, ledger)

	// ticks 6-10 never ran
	assert.Equal(t, 6, strat.scouts)

	// ledger reflects exactly the tick-3 sell
	want := decimal.NewFromInt(100).Mul(decimal.NewFromInt(1).Sub(exchange.DefaultFee))
	assert.True(t, ledger.Get("USDT").Equal(want))
	assert.True(t, ledger.Get("BTC").IsZero())
}

func TestBacktester_Valuation(t *testing.T) {
	clock := domain.NewClock(startTime())
	ex := exchange.NewSimExchange(clock, domain.NewBalances(nil),
		&staticHistory{price: decimal.NewFromInt(50)}, nil)
	ticker := &pricedTicker{prices: map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(50),
		"ETHUSDT": decimal.NewFromInt(10),
	}}

	bt := NewBacktester(clock, ex, &scriptedStrategy{}, ticker,
		startTime().Add(time.Minute), 1, "BTC", "USDT", nil)

	ledger := domain.NewBalances(map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(25),
		"BTC":  decimal.NewFromInt(2),
		"ETH":  decimal.NewFromFloat(0.5),
		"DOGE": decimal.NewFromInt(1000), // unpriced, excluded from the total
		"BNB":  decimal.Zero,
	})

	total := bt.Valuation(context.Background(), ledger)

	// 25 USDT + 2 BTC at 50 + 0.5 ETH at 10
	assert.True(t, total.Equal(decimal.NewFromInt(130)), total.String())
}

func TestBacktester_FatalScoutErrorAbortsRun(t *testing.T) {
	clock := domain.NewClock(startTime())
	ex := exchange.NewSimExchange(clock,
		domain.NewBalances(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1)}),
		&staticHistory{price: decimal.NewFromInt(100)}, nil)

	strat := &scriptedStrategy{onScout: func(tick int) error {
		if tick == 2 {
			return assert.AnError
		}
		return nil
	}}

	bt := NewBacktester(clock, ex, strat, &staticTicker{price: decimal.NewFromInt(100)},
		startTime().Add(10*time.Minute), 1, "BTC", "USDT", nil)

	ledger, err := bt.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, ledger)
}

func TestBacktester_NoDataTickIsSkipped(t *testing.T) {
	clock := domain.NewClock(startTime())
	ex := exchange.NewSimExchange(clock,
		domain.NewBalances(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(1)}),
		&staticHistory{price: decimal.NewFromInt(100)}, nil)

	strat := &scriptedStrategy{onScout: func(tick int) error {
		if tick%2 == 0 {
			return pricer.ErrNoData
		}
		return nil
	}}

	bt := NewBacktester(clock, ex, strat, &staticTicker{price: decimal.NewFromInt(100)},
		startTime().Add(10*time.Minute), 1, "BTC", "USDT", nil)

	ledger, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ledger)
	assert.Equal(t, 10, strat.scouts)
}
