package pricer

import (
	"context"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// BybitPricer fetches current spot prices from the Bybit V5 API.
type BybitPricer struct {
	client *bybit.Client
}

// NewBybitPricer creates a new Bybit pricer.
func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

// GetPrice fetches the current market price from the Bybit V5 API.
func (p *BybitPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(pair.Symbol())

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, &APIStatusError{Venue: "bybit", Message: "empty ticker list for " + pair.String()}
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}

// BybitHistory resolves per-minute historical prices from Bybit V5 klines.
type BybitHistory struct {
	client *bybit.Client
}

// NewBybitHistory creates a new Bybit historical price source.
func NewBybitHistory(client *bybit.Client) *BybitHistory {
	return &BybitHistory{client: client}
}

// PriceAt returns the open price of the 1m kline covering at.
func (h *BybitHistory) PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error) {
	minute := at.Truncate(time.Minute)
	start := minute.UnixMilli()
	end := start + time.Minute.Milliseconds() - 1
	limit := 1

	result, err := h.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(pair.Symbol()),
		Interval: bybit.Interval("1"),
		Start:    &start,
		End:      &end,
		Limit:    &limit,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if result == nil || len(result.Result.List) == 0 {
		return decimal.Decimal{}, ErrNoData
	}

	price, err := decimal.NewFromString(result.Result.List[0].Open)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse open price for %s", pair.String())
	}

	return price, nil
}
