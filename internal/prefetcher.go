package internal

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/config"
	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/services/pricer"
)

const (
	defaultReportEvery = 5 * time.Second
	apiBackoffMin      = 10 * time.Second
	apiBackoffMax      = 30 * time.Second
)

// historyPricer resolves the pair price at an exact minute.
type historyPricer interface {
	PriceAt(ctx context.Context, pair domain.Pair, at time.Time) (decimal.Decimal, error)
}

// Prefetcher walks the simulated timeline once per coin, populating the
// price cache ahead of backtest runs. Workers are independent: each owns a
// private clock and a counter, sharing only the durable cache.
type Prefetcher struct {
	history     historyPricer
	coins       []string
	bridge      string
	start       time.Time
	end         time.Time
	interval    int
	reportEvery time.Duration
	backoffMin  time.Duration
	backoffMax  time.Duration
	logger      *zap.Logger
}

// NewPrefetcher wires a prefetcher from the config and a cached source.
func NewPrefetcher(cfg config.Config, cache pricer.Cache, provider ServiceProvider, logger *zap.Logger) *Prefetcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	history := pricer.NewCachedHistory(cache, provider.History(), newSourceRetrier(cfg), logger)

	return &Prefetcher{
		history:     history,
		coins:       cfg.Coins,
		bridge:      cfg.Bridge,
		start:       cfg.Start,
		end:         cfg.End,
		interval:    cfg.IntervalMinutes,
		reportEvery: defaultReportEvery,
		backoffMin:  apiBackoffMin,
		backoffMax:  apiBackoffMax,
		logger:      logger,
	}
}

// Run spawns one worker per coin and reports aggregate progress until all
// workers finish their timeline or the context is cancelled.
func (p *Prefetcher) Run(ctx context.Context) error {
	counters := make([]*atomic.Int64, len(p.coins))
	var wg sync.WaitGroup

	for i, coin := range p.coins {
		counters[i] = &atomic.Int64{}
		pair := domain.BridgePair(coin, p.bridge)

		wg.Add(1)
		go func(pair domain.Pair, counter *atomic.Int64) {
			defer wg.Done()
			p.worker(ctx, pair, counter)
		}(pair, counters[i])
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(p.reportEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			p.report(counters)
			return ctx.Err()
		case <-done:
			p.report(counters)
			if err := ctx.Err(); err != nil {
				return err
			}
			p.logger.Info("prefetch finished")
			return nil
		case <-ticker.C:
			p.report(counters)
		}
	}
}

// worker walks the timeline for one pair with its own virtual clock.
// Venue API failures back off 10-30s and retry the same tick; transient
// network failures are already retried inside the cached source.
func (p *Prefetcher) worker(ctx context.Context, pair domain.Pair, counter *atomic.Int64) {
	clock := domain.NewClock(p.start)

	for clock.Before(p.end) {
		if ctx.Err() != nil {
			return
		}

		_, err := p.history.PriceAt(ctx, pair, clock.Now())
		if err != nil && !errors.Is(err, pricer.ErrNoData) {
			if errors.Is(err, context.Canceled) {
				return
			}
			if pricer.IsAPIStatus(err) {
				p.logger.Warn("venue rejected prefetch request, backing off",
					zap.String("pair", pair.String()),
					zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(randomDelay(p.backoffMin, p.backoffMax)):
				}
				continue
			}

			p.logger.Error("prefetch worker stopped",
				zap.String("pair", pair.String()),
				zap.Time("at", clock.Now()),
				zap.Error(err))
			return
		}

		clock.Advance(p.interval)
		counter.Add(1)
	}
}

// report logs totals, the per-symbol average and the average covered
// timestamp. Purely observational.
func (p *Prefetcher) report(counters []*atomic.Int64) {
	if len(counters) == 0 {
		return
	}

	var total int64
	for _, counter := range counters {
		total += counter.Load()
	}
	avg := total / int64(len(counters))
	covered := p.start.Add(time.Duration(avg*int64(p.interval)) * time.Minute)

	p.logger.Info("prefetch progress",
		zap.Int64("total_datapoints", total),
		zap.Int64("avg_per_symbol", avg),
		zap.Time("avg_covered", covered))
}

func randomDelay(min, max time.Duration) time.Duration {
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
