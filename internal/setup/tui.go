// Package setup provides the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)
)

type wizardConfig struct {
	Platform         string `yaml:"platform"`
	Pair             string `yaml:"pair"`
	DBPath           string `yaml:"db_path"`
	DashboardAddr    string `yaml:"dashboard_addr"`
	InitialCash      string `yaml:"initial_cash"`
	TradePercent     string `yaml:"trade_percent"`
	FeeRate          string `yaml:"fee_rate"`
	DecisionInterval string `yaml:"decision_interval"`
	CollectInterval  string `yaml:"collect_interval"`
	SnapshotInterval string `yaml:"snapshot_interval"`
}

// RunTUI launches the terminal configuration wizard and writes config.yaml.
func RunTUI() error {
	conf := wizardConfig{
		Pair:             "BTC_USDT",
		DBPath:           "agentfolio.db",
		DashboardAddr:    ":8080",
		InitialCash:      "10000",
		TradePercent:     "25",
		FeeRate:          "0.001",
		DecisionInterval: "15m",
		CollectInterval:  "1m",
		SnapshotInterval: "10m",
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("AGENTFOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up the ledger and decision loop.\n"))

	var confirm bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Price source").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&conf.Platform),
			huh.NewInput().
				Title("Trading pair").
				Description("Base and quote separated by underscore, e.g. BTC_USDT").
				Value(&conf.Pair),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Initial cash endowment").
				Value(&conf.InitialCash).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Trade size, percent of balance").
				Value(&conf.TradePercent).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Simulated fee rate").
				Value(&conf.FeeRate).
				Validate(validateDecimal),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Decision interval").
				Value(&conf.DecisionInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Price collection interval").
				Value(&conf.CollectInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Snapshot interval").
				Value(&conf.SnapshotInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Dashboard address").
				Value(&conf.DashboardAddr),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write config.yaml?").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled")
	}

	payload, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	if err := os.WriteFile("config.yaml", payload, 0o644); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("\nconfig.yaml written. Start with: agentfolio --config config.yaml"))
	return nil
}

func validateDecimal(s string) error {
	_, err := decimal.NewFromString(s)
	return err
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}
