// Package setup provides a terminal wizard that writes the yaml config.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02 15:04"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type yamlConfig struct {
	Platform        string            `yaml:"platform"`
	Bridge          string            `yaml:"bridge"`
	Coins           []string          `yaml:"coins"`
	StartingCoin    string            `yaml:"starting_coin,omitempty"`
	Start           string            `yaml:"start"`
	End             string            `yaml:"end,omitempty"`
	IntervalMinutes int               `yaml:"interval_minutes"`
	InitialBalances map[string]string `yaml:"initial_balances"`
	Fee             string            `yaml:"fee"`
}

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		platform    string
		bridge      string
		coinsStr    string
		startStr    string
		endStr      string
		intervalStr string
		feeStr      string
		balanceStr  string
		confirm     bool
	)

	// defaults
	bridge = "USDT"
	coinsStr = "BTC,ETH,BNB"
	startStr = "2021-01-01 00:00"
	intervalStr = "1"
	feeStr = "0.0075"
	balanceStr = "100"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("ROTOR CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Configure your backtest run.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MARKET DATA"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Historical data platform").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
				).
				Value(&platform),
			huh.NewInput().
				Title("Bridge (quote) currency").
				Value(&bridge),
			huh.NewInput().
				Title("Coins to rotate through (comma-separated)").
				Value(&coinsStr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 2: TIMELINE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Start (YYYY-MM-DD HH:MM)").
				Validate(validateDate).
				Value(&startStr),
			huh.NewInput().
				Title("End (YYYY-MM-DD HH:MM, empty = now)").
				Validate(validateOptionalDate).
				Value(&endStr),
			huh.NewInput().
				Title("Tick interval in virtual minutes").
				Validate(validatePositiveInt).
				Value(&intervalStr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Println(stepStyle.Render("STEP 3: LEDGER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Initial %s balance", bridge)).
				Validate(validateDecimal).
				Value(&balanceStr),
			huh.NewInput().
				Title("Fee rate charged on the received leg").
				Validate(validateDecimal).
				Value(&feeStr),
			huh.NewConfirm().
				Title("Write rotor.yaml?").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Aborted, nothing written."))
		return nil
	}

	interval, _ := strconv.Atoi(intervalStr)
	cfg := yamlConfig{
		Platform:        platform,
		Bridge:          bridge,
		Coins:           splitCoins(coinsStr),
		Start:           startStr,
		End:             endStr,
		IntervalMinutes: interval,
		InitialBalances: map[string]string{bridge: balanceStr},
		Fee:             feeStr,
	}

	payload, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile("rotor.yaml", payload, 0o644); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("\nrotor.yaml written. Run: rotor --config rotor.yaml"))
	return nil
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

func validateDate(s string) error {
	_, err := time.Parse(dateLayout, s)
	return err
}

func validateOptionalDate(s string) error {
	if s == "" {
		return nil
	}
	return validateDate(s)
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateDecimal(s string) error {
	_, err := decimal.NewFromString(s)
	return err
}
