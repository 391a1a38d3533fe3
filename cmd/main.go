// Command rotor replays historical market data against a multi-coin
// rotation strategy without touching a live exchange.
//
// Usage:
//
//	rotor --config rotor.yaml
//	rotor -mode prefetch -coins BTC,ETH,BNB -start "2021-01-01 00:00"
//	rotor -mode setup
//
// Only public market data is fetched, no API keys are required.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/config"
	"github.com/vadiminshakov/rotor/internal"
	"github.com/vadiminshakov/rotor/internal/setup"
	"github.com/vadiminshakov/rotor/internal/storage/pricecache"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Mode == config.ModeSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// operator interrupt stops the run but keeps partial results
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := pricecache.New(cfg.CacheDir)
	if err != nil {
		logger.Fatal("failed to open price cache", zap.Error(err))
	}
	defer cache.Close()

	provider, err := internal.NewServiceProvider(cfg.Platform)
	if err != nil {
		logger.Fatal("failed to create service provider", zap.Error(err))
	}

	switch cfg.Mode {
	case config.ModeBacktest:
		backtester, err := internal.NewBacktesterFromConfig(cfg, cache, provider, logger)
		if err != nil {
			logger.Fatal("failed to assemble backtester", zap.Error(err))
		}

		ledger, err := backtester.Run(ctx)
		if err != nil {
			logger.Fatal("backtest failed", zap.Error(err))
		}

		for symbol, amount := range ledger {
			logger.Info("final balance",
				zap.String("symbol", symbol),
				zap.String("amount", amount.String()))
		}

		// fresh context so an operator interrupt still gets its partial
		// ledger valued
		logger.Info("final ledger valuation",
			zap.String("bridge", cfg.Bridge),
			zap.String("total", backtester.Valuation(context.Background(), ledger).String()))
	case config.ModePrefetch:
		prefetcher := internal.NewPrefetcher(cfg, cache, provider, logger)
		if err := prefetcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Fatal("prefetch failed", zap.Error(err))
		}
	default:
		logger.Fatal("unsupported mode", zap.String("mode", cfg.Mode))
	}
}
