package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/services/pricer"
)

// scriptedExchange serves adjustable prices and records trades.
type scriptedExchange struct {
	prices map[string]decimal.Decimal
	sells  []string
	buys   []string
	fee    decimal.Decimal
}

func newScriptedExchange(prices map[string]decimal.Decimal) *scriptedExchange {
	return &scriptedExchange{prices: prices, fee: decimal.NewFromFloat(0.0075)}
}

func (s *scriptedExchange) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	price, ok := s.prices[pair.Symbol()]
	if !ok {
		return decimal.Decimal{}, pricer.ErrNoData
	}
	return price, nil
}

func (s *scriptedExchange) GetBalance(symbol string) decimal.Decimal {
	return decimal.NewFromInt(1)
}

func (s *scriptedExchange) Buy(ctx context.Context, origin, target string, price decimal.Decimal) (decimal.Decimal, error) {
	s.buys = append(s.buys, origin)
	return price, nil
}

func (s *scriptedExchange) Sell(ctx context.Context, origin, target string) (decimal.Decimal, error) {
	s.sells = append(s.sells, origin)
	return s.prices[origin+"USDT"], nil
}

func (s *scriptedExchange) Fee(origin, target string, selling bool) decimal.Decimal {
	return s.fee
}

func coins() []string { return []string{"BTC", "ETH", "BNB"} }

func TestRotation_InitializeRecordsRatios(t *testing.T) {
	ex := newScriptedExchange(map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(30000),
		"ETHUSDT": decimal.NewFromInt(1000),
		"BNBUSDT": decimal.NewFromInt(300),
	})

	r, err := NewRotation(ex, "USDT", coins(), "BTC", nil)
	require.NoError(t, err)
	require.NoError(t, r.Initialize(context.Background()))

	assert.True(t, r.thresholds["BTC"]["ETH"].Equal(decimal.NewFromInt(30)))
	assert.True(t, r.thresholds["ETH"]["BNB"].Equal(decimal.NewFromFloat(1000).Div(decimal.NewFromFloat(300))))
}

func TestRotation_NoJumpWhenRatioUnchanged(t *testing.T) {
	ex := newScriptedExchange(map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(30000),
		"ETHUSDT": decimal.NewFromInt(1000),
		"BNBUSDT": decimal.NewFromInt(300),
	})

	r, err := NewRotation(ex, "USDT", coins(), "BTC", nil)
	require.NoError(t, err)
	require.NoError(t, r.Initialize(context.Background()))

	require.NoError(t, r.Scout(context.Background()))
	assert.Empty(t, ex.sells)
	assert.Empty(t, ex.buys)
	assert.Equal(t, "BTC", r.Current())
}

func TestRotation_JumpsWhenRatioBeatsFees(t *testing.T) {
	ex := newScriptedExchange(map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(30000),
		"ETHUSDT": decimal.NewFromInt(1000),
		"BNBUSDT": decimal.NewFromInt(300),
	})

	r, err := NewRotation(ex, "USDT", coins(), "BTC", nil)
	require.NoError(t, err)
	require.NoError(t, r.Initialize(context.Background()))

	// ETH halves against BTC: BTC/ETH ratio doubles, far beyond the fees
	ex.prices["ETHUSDT"] = decimal.NewFromInt(500)

	require.NoError(t, r.Scout(context.Background()))
	assert.Equal(t, []string{"BTC"}, ex.sells)
	assert.Equal(t, []string{"ETH"}, ex.buys)
	assert.Equal(t, "ETH", r.Current())

	// thresholds re-recorded for the new coin at post-jump prices
	assert.True(t, r.thresholds["ETH"]["BTC"].Equal(decimal.NewFromInt(500).Div(decimal.NewFromInt(30000))))
}

func TestRotation_NoJumpWithinFeeMargin(t *testing.T) {
	ex := newScriptedExchange(map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(30000),
		"ETHUSDT": decimal.NewFromInt(1000),
		"BNBUSDT": decimal.NewFromInt(300),
	})

	r, err := NewRotation(ex, "USDT", coins(), "BTC", nil)
	require.NoError(t, err)
	require.NoError(t, r.Initialize(context.Background()))

	// ratio improves by 1%, round-trip fees eat 1.5%
	ex.prices["ETHUSDT"] = decimal.NewFromFloat(990.1)

	require.NoError(t, r.Scout(context.Background()))
	assert.Empty(t, ex.sells)
	assert.Equal(t, "BTC", r.Current())
}

func TestRotation_HeldCoinMissingData(t *testing.T) {
	ex := newScriptedExchange(map[string]decimal.Decimal{
		"ETHUSDT": decimal.NewFromInt(1000),
	})

	r, err := NewRotation(ex, "USDT", coins(), "BTC", nil)
	require.NoError(t, err)

	err = r.Scout(context.Background())
	require.ErrorIs(t, err, pricer.ErrNoData)
	assert.Empty(t, ex.sells)
}

func TestRotation_LazyThresholdForUnseenPair(t *testing.T) {
	ex := newScriptedExchange(map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(30000),
		"ETHUSDT": decimal.NewFromInt(1000),
	})

	r, err := NewRotation(ex, "USDT", coins(), "BTC", nil)
	require.NoError(t, err)
	require.NoError(t, r.Initialize(context.Background()))

	// BNB had no data at init; first sighting records the threshold, no jump
	ex.prices["BNBUSDT"] = decimal.NewFromInt(300)
	require.NoError(t, r.Scout(context.Background()))
	assert.Empty(t, ex.sells)
	assert.True(t, r.thresholds["BTC"]["BNB"].Equal(decimal.NewFromInt(100)))
}

func TestNewRotation_Validation(t *testing.T) {
	_, err := NewRotation(newScriptedExchange(nil), "USDT", nil, "", nil)
	require.Error(t, err)

	r, err := NewRotation(newScriptedExchange(nil), "USDT", coins(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "BTC", r.Current())
}
