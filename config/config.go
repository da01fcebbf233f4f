// Package config loads runtime configuration from a YAML file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/agentfolio/agentfolio/internal/domain"
)

// Defaults applied when a field is omitted.
var (
	defaultInitialCash  = decimal.NewFromInt(10000)
	defaultRiskFreeRate = decimal.NewFromFloat(2.0)
	defaultTradePercent = decimal.NewFromInt(25)
	defaultFeeRate      = decimal.NewFromFloat(0.001)
)

const (
	defaultDBPath           = "agentfolio.db"
	defaultWALDir           = "./wal/decisions"
	defaultDashboardAddr    = ":8080"
	defaultDecisionInterval = 15 * time.Minute
	defaultCollectInterval  = 1 * time.Minute
	defaultSnapshotInterval = 10 * time.Minute
	defaultPriceTimeout     = 10 * time.Second
)

// Config is the parsed runtime configuration.
type Config struct {
	Platform         string
	Pair             domain.Pair
	DBPath           string
	WALDir           string
	DashboardAddr    string
	TLSDomains       []string
	InitialCash      decimal.Decimal
	RiskFreeRate     decimal.Decimal
	TradePercent     decimal.Decimal
	FeeRate          decimal.Decimal
	DecisionInterval time.Duration
	CollectInterval  time.Duration
	SnapshotInterval time.Duration
	PriceTimeout     time.Duration
}

type configTmp struct {
	Platform         string        `yaml:"platform"`
	Pair             string        `yaml:"pair"`
	DBPath           string        `yaml:"db_path,omitempty"`
	WALDir           string        `yaml:"wal_dir,omitempty"`
	DashboardAddr    string        `yaml:"dashboard_addr,omitempty"`
	TLSDomains       []string      `yaml:"tls_domains,omitempty"`
	InitialCash      string        `yaml:"initial_cash,omitempty"`
	RiskFreeRate     string        `yaml:"risk_free_rate,omitempty"`
	TradePercent     string        `yaml:"trade_percent,omitempty"`
	FeeRate          string        `yaml:"fee_rate,omitempty"`
	DecisionInterval string        `yaml:"decision_interval,omitempty"`
	CollectInterval  string        `yaml:"collect_interval,omitempty"`
	SnapshotInterval string        `yaml:"snapshot_interval,omitempty"`
	PriceTimeout     string        `yaml:"price_timeout,omitempty"`
}

// Get parses configuration from the -config YAML file, falling back to CLI
// flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", "binance", "price source platform: binance or bybit")
	pairFlag := flag.String("pair", "BTC_USDT", "trade pair, example: BTC_USDT")
	dbPath := flag.String("db", defaultDBPath, "path to the ledger database")
	dashboardAddr := flag.String("dashboard", defaultDashboardAddr, "dashboard listen address")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	pair, err := pairFromString(*pairFlag)
	if err != nil {
		return Config{}, err
	}

	conf := Config{
		Platform:      *platform,
		Pair:          pair,
		DBPath:        *dbPath,
		DashboardAddr: *dashboardAddr,
	}
	applyDefaults(&conf)
	return conf, validate(conf)
}

// Load parses a YAML configuration file without touching CLI flags.
func Load(path string) (Config, error) {
	return getYaml(path)
}

func getYaml(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(payload, &tmp); err != nil {
		return Config{}, err
	}

	pair, err := pairFromString(tmp.Pair)
	if err != nil {
		return Config{}, err
	}

	conf := Config{
		Platform:      tmp.Platform,
		Pair:          pair,
		DBPath:        tmp.DBPath,
		WALDir:        tmp.WALDir,
		DashboardAddr: tmp.DashboardAddr,
		TLSDomains:    tmp.TLSDomains,
	}

	if conf.InitialCash, err = decimalOrDefault(tmp.InitialCash, defaultInitialCash); err != nil {
		return Config{}, fmt.Errorf("invalid initial_cash: %w", err)
	}
	if conf.RiskFreeRate, err = decimalOrDefault(tmp.RiskFreeRate, defaultRiskFreeRate); err != nil {
		return Config{}, fmt.Errorf("invalid risk_free_rate: %w", err)
	}
	if conf.TradePercent, err = decimalOrDefault(tmp.TradePercent, defaultTradePercent); err != nil {
		return Config{}, fmt.Errorf("invalid trade_percent: %w", err)
	}
	if conf.FeeRate, err = decimalOrDefault(tmp.FeeRate, defaultFeeRate); err != nil {
		return Config{}, fmt.Errorf("invalid fee_rate: %w", err)
	}

	if conf.DecisionInterval, err = durationOrDefault(tmp.DecisionInterval, defaultDecisionInterval); err != nil {
		return Config{}, fmt.Errorf("invalid decision_interval: %w", err)
	}
	if conf.CollectInterval, err = durationOrDefault(tmp.CollectInterval, defaultCollectInterval); err != nil {
		return Config{}, fmt.Errorf("invalid collect_interval: %w", err)
	}
	if conf.SnapshotInterval, err = durationOrDefault(tmp.SnapshotInterval, defaultSnapshotInterval); err != nil {
		return Config{}, fmt.Errorf("invalid snapshot_interval: %w", err)
	}
	if conf.PriceTimeout, err = durationOrDefault(tmp.PriceTimeout, defaultPriceTimeout); err != nil {
		return Config{}, fmt.Errorf("invalid price_timeout: %w", err)
	}

	applyDefaults(&conf)
	return conf, validate(conf)
}

func applyDefaults(conf *Config) {
	if conf.Platform == "" {
		conf.Platform = "binance"
	}
	if conf.DBPath == "" {
		conf.DBPath = defaultDBPath
	}
	if conf.WALDir == "" {
		conf.WALDir = defaultWALDir
	}
	if conf.DashboardAddr == "" {
		conf.DashboardAddr = defaultDashboardAddr
	}
	if conf.InitialCash.IsZero() {
		conf.InitialCash = defaultInitialCash
	}
	if conf.RiskFreeRate.IsZero() {
		conf.RiskFreeRate = defaultRiskFreeRate
	}
	if conf.TradePercent.IsZero() {
		conf.TradePercent = defaultTradePercent
	}
	if conf.FeeRate.IsZero() {
		conf.FeeRate = defaultFeeRate
	}
	if conf.DecisionInterval <= 0 {
		conf.DecisionInterval = defaultDecisionInterval
	}
	if conf.CollectInterval <= 0 {
		conf.CollectInterval = defaultCollectInterval
	}
	if conf.SnapshotInterval <= 0 {
		conf.SnapshotInterval = defaultSnapshotInterval
	}
	if conf.PriceTimeout <= 0 {
		conf.PriceTimeout = defaultPriceTimeout
	}
}

func validate(conf Config) error {
	switch conf.Platform {
	case "binance", "bybit":
	default:
		return fmt.Errorf("unsupported platform %q", conf.Platform)
	}
	if conf.InitialCash.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("initial_cash must be positive, got %s", conf.InitialCash.String())
	}
	tp := conf.TradePercent
	if tp.LessThanOrEqual(decimal.Zero) || tp.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("trade_percent must be in (0, 100], got %s", tp.String())
	}
	if conf.FeeRate.LessThan(decimal.Zero) {
		return fmt.Errorf("fee_rate must not be negative, got %s", conf.FeeRate.String())
	}
	return nil
}

func decimalOrDefault(raw string, def decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return def, nil
	}
	return decimal.NewFromString(raw)
}

func durationOrDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

func pairFromString(raw string) (domain.Pair, error) {
	parts := strings.Split(raw, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, fmt.Errorf("invalid pair %q, expected BASE_QUOTE", raw)
	}
	return domain.Pair{Base: parts[0], Quote: parts[1]}, nil
}
