package pricer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// HyperliquidPricer fetches current mid prices from the Hyperliquid public
// Info API without requiring authentication.
type HyperliquidPricer struct {
	info *hyperliquid.Info
}

// NewHyperliquidPricer creates a new Hyperliquid pricer.
func NewHyperliquidPricer(info *hyperliquid.Info) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

// GetPrice fetches the current mid price from the Hyperliquid public API.
// Hyperliquid mids are keyed by base coin (e.g., "BTC"), markets are
// USD-quoted.
func (p *HyperliquidPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	mid, ok := mids[strings.ToUpper(pair.From)]
	if !ok || mid == "" {
		return decimal.Decimal{}, errors.Errorf("hyperliquid API returned empty mid price for %s", pair.From)
	}

	return decimal.NewFromString(mid)
}

// HyperliquidHistory resolves per-minute historical prices from Hyperliquid
// candle snapshots.
type HyperliquidHistory struct {
	info *hyperliquid.Info
}

// NewHyperliquidHistory creates a new Hyperliquid historical price source.
func NewHyperliquidHistory(info *hyperliquid.Info) *HyperliquidHistory {
	return &HyperliquidHistory{info: info}
}

// PriceAt returns the open price of the 1m candle covering at.
func (h *HyperliquidHistory) PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error) {
	minute := at.Truncate(time.Minute)
	start := minute.UnixMilli()
	end := start + time.Minute.Milliseconds() - 1

	candles, err := h.info.CandlesSnapshot(ctx, strings.ToUpper(pair.From), "1m", start, end)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(candles) == 0 {
		return decimal.Decimal{}, ErrNoData
	}

	price, err := decimal.NewFromString(candles[0].Open)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse open price for %s", pair.String())
	}

	return price, nil
}
