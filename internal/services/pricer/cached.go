package pricer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/pkg/retrier"
)

// Cache is the durable store consulted before the network source.
type Cache interface {
	Get(pair domain.Pair, at time.Time) (decimal.Decimal, bool)
	Put(pair domain.Pair, at time.Time, price decimal.Decimal) error
}

// CachedHistory resolves historical prices through a durable cache and
// retries transient connectivity failures of the underlying source.
// Minutes the venue has no trade for resolve to ErrNoData and are not cached.
type CachedHistory struct {
	cache   Cache
	source  History
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewCachedHistory wraps source with cache-through lookups.
// A nil retr falls back to unbounded retries with a 5-10s random delay.
func NewCachedHistory(cache Cache, source History, retr *retrier.Retrier, logger *zap.Logger) *CachedHistory {
	if retr == nil {
		retr = retrier.New(retrier.WithRetryIf(IsTransient))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedHistory{cache: cache, source: source, retrier: retr, logger: logger}
}

// PriceAt returns the trade price of the pair at the given minute.
func (c *CachedHistory) PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error) {
	at = at.Truncate(time.Minute)

	if price, ok := c.cache.Get(pair, at); ok {
		return price, nil
	}

	price, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return c.source.PriceAt(ctx, pair, at)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	if err := c.cache.Put(pair, at, price); err != nil {
		// a failed cache write costs one extra network call later, the run goes on
		c.logger.Warn("failed to cache price",
			zap.String("pair", pair.String()),
			zap.Time("at", at),
			zap.Error(err))
	}

	return price, nil
}
