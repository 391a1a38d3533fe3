// Package pricecache persists historical prices fetched from an exchange
// so repeated backtests over the same window never hit the network twice.
package pricecache

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/rotor/internal/domain"
)

const (
	DefaultDir = "./wal/prices"

	keyTimeLayout    = "2006-01-02T15:04"
	segmentThreshold = 100000
	maxSegments      = 1000
)

// Key builds the storage key for a pair at minute precision.
func Key(pair domain.Pair, at time.Time) string {
	return fmt.Sprintf("%s_%s", pair.Symbol(), at.UTC().Format(keyTimeLayout))
}

// Cache is a durable (pair, minute) -> price store backed by a WAL.
// The log is replayed on open into an in-memory index for point lookups.
// Writes are idempotent: a key already present is never overwritten.
type Cache struct {
	mu    sync.RWMutex
	wal   *gowal.Wal
	index map[string]decimal.Decimal
}

// New opens (or creates) a price cache in dir.
func New(dir string) (*Cache, error) {
	if dir == "" {
		dir = DefaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "price_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init price cache WAL")
	}

	index := make(map[string]decimal.Decimal)
	for m := range wal.Iterator() {
		var price decimal.Decimal
		if err := price.UnmarshalBinary(m.Value); err != nil {
			return nil, errors.Wrapf(err, "decode cached price for %s", m.Key)
		}
		index[m.Key] = price
	}

	return &Cache{wal: wal, index: index}, nil
}

// Get returns the cached price for the pair at the given minute.
func (c *Cache) Get(pair domain.Pair, at time.Time) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	price, ok := c.index[Key(pair, at)]
	return price, ok
}

// Put records the price for the pair at the given minute.
// Re-recording an existing key is a no-op.
func (c *Cache) Put(pair domain.Pair, at time.Time, price decimal.Decimal) error {
	key := Key(pair, at)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[key]; ok {
		return nil
	}

	payload, err := price.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode price")
	}

	if err := c.wal.Write(c.wal.CurrentIndex()+1, key, payload); err != nil {
		return errors.Wrapf(err, "write price for %s", key)
	}

	c.index[key] = price
	return nil
}

// Len returns the number of cached datapoints.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.index)
}

// Close closes the underlying WAL.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.wal.Close()
}
