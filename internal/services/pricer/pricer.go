// Package pricer resolves market prices: live ticker snapshots and
// minute-resolution historical klines, optionally cached on disk.
package pricer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// Pricer returns the current market price of a pair.
type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// History returns the trade price of a pair at a specific minute.
// Implementations return ErrNoData when the venue has no trade for
// that minute.
type History interface {
	PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error)
}
