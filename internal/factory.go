// Package internal wires platform clients, the price cache and the
// simulation services together and orchestrates backtest and prefetch runs.
package internal

import (
	"context"
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/rotor/config"
	"github.com/vadiminshakov/rotor/internal/services/pricer"
	"github.com/vadiminshakov/rotor/pkg/retrier"
)

// ServiceProvider creates platform-specific price services.
type ServiceProvider interface {
	Pricer() pricer.Pricer
	History() pricer.History
}

// NewServiceProvider dispatches to the platform named in the config.
// Only public market data is used, no API keys are required.
func NewServiceProvider(platform string) (ServiceProvider, error) {
	switch platform {
	case "binance":
		return &binanceProvider{client: binance.NewClient("", "")}, nil
	case "bybit":
		return &bybitProvider{client: bybit.NewClient()}, nil
	case "hyperliquid":
		// mids and candle snapshots are served by the public Info endpoint,
		// metadata is fetched lazily by the SDK
		info := hyperliquid.NewInfo(context.Background(), hyperliquid.MainnetAPIURL, true, nil, nil)
		return &hyperliquidProvider{info: info}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", platform)
	}
}

type binanceProvider struct {
	client *binance.Client
}

func (p *binanceProvider) Pricer() pricer.Pricer {
	return pricer.NewBinancePricer(p.client)
}

func (p *binanceProvider) History() pricer.History {
	return pricer.NewBinanceHistory(p.client)
}

type bybitProvider struct {
	client *bybit.Client
}

func (p *bybitProvider) Pricer() pricer.Pricer {
	return pricer.NewBybitPricer(p.client)
}

func (p *bybitProvider) History() pricer.History {
	return pricer.NewBybitHistory(p.client)
}

type hyperliquidProvider struct {
	info *hyperliquid.Info
}

func (p *hyperliquidProvider) Pricer() pricer.Pricer {
	return pricer.NewHyperliquidPricer(p.info)
}

func (p *hyperliquidProvider) History() pricer.History {
	return pricer.NewHyperliquidHistory(p.info)
}

// newSourceRetrier builds the transient-failure retrier from config bounds.
func newSourceRetrier(cfg config.Config) *retrier.Retrier {
	return retrier.New(
		retrier.WithDelayRange(cfg.RetryMinDelay, cfg.RetryMaxDelay),
		retrier.WithMaxAttempts(cfg.RetryMaxAttempts),
		retrier.WithRetryIf(pricer.IsTransient),
	)
}
