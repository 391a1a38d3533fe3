// Package config loads simulation settings from flags or a yaml file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02 15:04"

// Run modes.
const (
	ModeBacktest = "backtest"
	ModePrefetch = "prefetch"
	ModeSetup    = "setup"
)

// Config holds the settings of one simulation run.
type Config struct {
	Mode     string
	Platform string

	Bridge       string
	Coins        []string
	StartingCoin string

	Start           time.Time
	End             time.Time
	IntervalMinutes int

	InitialBalances map[string]decimal.Decimal
	Fee             decimal.Decimal

	CacheDir string

	RetryMinDelay    time.Duration
	RetryMaxDelay    time.Duration
	RetryMaxAttempts int
}

type configTmp struct {
	Platform        string            `yaml:"platform"`
	Bridge          string            `yaml:"bridge"`
	Coins           []string          `yaml:"coins"`
	StartingCoin    string            `yaml:"starting_coin,omitempty"`
	Start           string            `yaml:"start"`
	End             string            `yaml:"end,omitempty"`
	IntervalMinutes int               `yaml:"interval_minutes,omitempty"`
	InitialBalances map[string]string `yaml:"initial_balances,omitempty"`
	Fee             string            `yaml:"fee,omitempty"`
	CacheDir        string            `yaml:"cache_dir,omitempty"`
	RetryMinDelay   time.Duration     `yaml:"retry_min_delay,omitempty"`
	RetryMaxDelay   time.Duration     `yaml:"retry_max_delay,omitempty"`
	RetryMax        int               `yaml:"retry_max_attempts,omitempty"`
}

// Get parses command line flags, loading the yaml file when -config is set.
func Get() (Config, error) {
	var (
		mode     = flag.String("mode", ModeBacktest, "run mode: backtest, prefetch or setup")
		path     = flag.String("config", "", "path to yaml config")
		platform = flag.String("platform", "binance", "historical data platform: binance, bybit or hyperliquid")
		bridge   = flag.String("bridge", "USDT", "bridge (quote) currency")
		coins    = flag.String("coins", "BTC,ETH,BNB", "comma-separated coin list")
		starting = flag.String("startingcoin", "", "coin to start the rotation on, default: first in list")
		start    = flag.String("start", "2021-01-01 00:00", "simulation start, format: 2006-01-02 15:04")
		end      = flag.String("end", "", "simulation end, default: now")
		interval = flag.Int("interval", 1, "virtual minutes between ticks")
		cacheDir = flag.String("cachedir", "", "price cache directory")
		fee      = flag.String("fee", "", "trade fee ratio charged on the received coin, default: 0.0075")
		balances = flag.String("balances", "", "comma-separated initial balances, e.g. USDT:100,BTC:0.5")
		retryMin = flag.Duration("retry-min-delay", 5*time.Second, "minimum delay before a source retry")
		retryMax = flag.Duration("retry-max-delay", 10*time.Second, "maximum delay before a source retry")
		attempts = flag.Int("retry-max-attempts", 0, "source retry attempts, 0 means unbounded")
	)
	flag.Parse()

	if *path != "" {
		cfg, err := getYaml(*path)
		if err != nil {
			return Config{}, err
		}
		cfg.Mode = *mode
		return cfg, nil
	}

	cfg := defaults()
	cfg.Mode = *mode
	cfg.Platform = *platform
	cfg.Bridge = *bridge
	cfg.Coins = splitCoins(*coins)
	cfg.StartingCoin = *starting
	cfg.IntervalMinutes = *interval
	cfg.CacheDir = *cacheDir
	cfg.RetryMinDelay = *retryMin
	cfg.RetryMaxDelay = *retryMax
	cfg.RetryMaxAttempts = *attempts

	var err error
	if *fee != "" {
		cfg.Fee, err = decimal.NewFromString(*fee)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --fee provided, --fee=%s: %w", *fee, err)
		}
	}
	cfg.InitialBalances, err = splitBalances(*balances)
	if err != nil {
		return Config{}, err
	}
	cfg.Start, err = time.Parse(dateLayout, *start)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --start provided, --start=%s: %w", *start, err)
	}
	if *end != "" {
		cfg.End, err = time.Parse(dateLayout, *end)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --end provided, --end=%s: %w", *end, err)
		}
	}

	return validate(cfg)
}

func defaults() Config {
	return Config{
		Platform:        "binance",
		Bridge:          "USDT",
		IntervalMinutes: 1,
		End:             time.Now().UTC().Truncate(time.Minute),
		InitialBalances: nil,
		Fee:             decimal.NewFromFloat(0.0075),
		RetryMinDelay:   5 * time.Second,
		RetryMaxDelay:   10 * time.Second,
	}
}

func getYaml(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return Config{}, err
	}

	cfg := defaults()
	if tmp.Platform != "" {
		cfg.Platform = tmp.Platform
	}
	if tmp.Bridge != "" {
		cfg.Bridge = tmp.Bridge
	}
	cfg.Coins = tmp.Coins
	cfg.StartingCoin = tmp.StartingCoin
	if tmp.IntervalMinutes != 0 {
		cfg.IntervalMinutes = tmp.IntervalMinutes
	}
	cfg.CacheDir = tmp.CacheDir
	if tmp.RetryMinDelay != 0 {
		cfg.RetryMinDelay = tmp.RetryMinDelay
	}
	if tmp.RetryMaxDelay != 0 {
		cfg.RetryMaxDelay = tmp.RetryMaxDelay
	}
	cfg.RetryMaxAttempts = tmp.RetryMax

	cfg.Start, err = time.Parse(dateLayout, tmp.Start)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'start' param in yaml config: %s, error: %w", tmp.Start, err)
	}
	if tmp.End != "" {
		cfg.End, err = time.Parse(dateLayout, tmp.End)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'end' param in yaml config: %s, error: %w", tmp.End, err)
		}
	}

	if tmp.Fee != "" {
		cfg.Fee, err = decimal.NewFromString(tmp.Fee)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'fee' param in yaml config (must be a decimal), error: %w", err)
		}
	}

	if len(tmp.InitialBalances) > 0 {
		cfg.InitialBalances = make(map[string]decimal.Decimal, len(tmp.InitialBalances))
		for symbol, amountStr := range tmp.InitialBalances {
			amount, err := decimal.NewFromString(amountStr)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect balance for %s in yaml config: %w", symbol, err)
			}
			cfg.InitialBalances[symbol] = amount
		}
	}

	return validate(cfg)
}

func validate(cfg Config) (Config, error) {
	if len(cfg.Coins) == 0 {
		return Config{}, fmt.Errorf("coin list is empty")
	}
	switch cfg.Platform {
	case "binance", "bybit", "hyperliquid":
	default:
		return Config{}, fmt.Errorf("unsupported platform: %s", cfg.Platform)
	}
	if !cfg.Start.Before(cfg.End) {
		return Config{}, fmt.Errorf("start %s is not before end %s", cfg.Start, cfg.End)
	}
	if cfg.IntervalMinutes <= 0 {
		return Config{}, fmt.Errorf("interval must be positive, got %d", cfg.IntervalMinutes)
	}
	if cfg.Fee.IsNegative() || cfg.Fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("fee must be in [0, 1), got %s", cfg.Fee.String())
	}

	if cfg.InitialBalances == nil {
		// default: 100 units of the bridge currency
		cfg.InitialBalances = map[string]decimal.Decimal{cfg.Bridge: decimal.NewFromInt(100)}
	}
	if cfg.StartingCoin == "" {
		cfg.StartingCoin = cfg.Coins[0]
	}

	return cfg, nil
}

func splitBalances(s string) (map[string]decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}

	balances := make(map[string]decimal.Decimal)
	for _, entry := range strings.Split(s, ",") {
		symbol, amountStr, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid balance entry %q, expected SYMBOL:AMOUNT", entry)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(amountStr))
		if err != nil {
			return nil, fmt.Errorf("invalid balance amount in %q: %w", entry, err)
		}
		balances[strings.ToUpper(strings.TrimSpace(symbol))] = amount
	}

	return balances, nil
}

func splitCoins(s string) []string {
	var coins []string
	for _, coin := range strings.Split(s, ",") {
		coin = strings.TrimSpace(strings.ToUpper(coin))
		if coin != "" {
			coins = append(coins, coin)
		}
	}
	return coins
}
