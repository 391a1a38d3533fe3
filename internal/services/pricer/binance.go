package pricer

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// BinancePricer fetches current market prices from the Binance public API
// without requiring authentication.
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a new Binance pricer.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// GetPrice fetches the current market price from the Binance public API.
func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, errors.Errorf("binance API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(prices[0].Price)
}

// BinanceHistory resolves per-minute historical prices from Binance klines.
type BinanceHistory struct {
	client *binance.Client
}

// NewBinanceHistory creates a new Binance historical price source.
func NewBinanceHistory(client *binance.Client) *BinanceHistory {
	return &BinanceHistory{client: client}
}

// PriceAt returns the open price of the 1m kline covering at.
func (h *BinanceHistory) PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error) {
	minute := at.Truncate(time.Minute)
	start := minute.UnixMilli()
	end := start + time.Minute.Milliseconds() - 1

	klines, err := h.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval("1m").
		StartTime(start).
		EndTime(end).
		Limit(1).
		Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(klines) == 0 {
		return decimal.Decimal{}, ErrNoData
	}

	price, err := decimal.NewFromString(klines[0].Open)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse open price for %s", pair.String())
	}

	return price, nil
}
