package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "platform: binance\npair: BTC_USDT\n")

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "binance", conf.Platform)
	assert.Equal(t, "BTC", conf.Pair.Base)
	assert.Equal(t, "USDT", conf.Pair.Quote)
	assert.True(t, conf.InitialCash.Equal(defaultInitialCash))
	assert.True(t, conf.TradePercent.Equal(defaultTradePercent))
	assert.Equal(t, defaultDecisionInterval, conf.DecisionInterval)
	assert.Equal(t, defaultDBPath, conf.DBPath)
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `platform: bybit
pair: ETH_USDT
db_path: /tmp/ledger.db
initial_cash: "5000"
trade_percent: "10"
fee_rate: "0.002"
decision_interval: 5m
`)

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bybit", conf.Platform)
	assert.Equal(t, "/tmp/ledger.db", conf.DBPath)
	assert.True(t, conf.InitialCash.Equal(dec(t, "5000")))
	assert.True(t, conf.TradePercent.Equal(dec(t, "10")))
	assert.True(t, conf.FeeRate.Equal(dec(t, "0.002")))
	assert.Equal(t, 5*time.Minute, conf.DecisionInterval)
}

func TestLoad_RejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown platform":   "platform: kraken\npair: BTC_USDT\n",
		"malformed pair":     "platform: binance\npair: BTCUSDT\n",
		"negative cash":      "platform: binance\npair: BTC_USDT\ninitial_cash: \"-1\"\n",
		"percent over 100":   "platform: binance\npair: BTC_USDT\ntrade_percent: \"150\"\n",
		"negative fee rate":  "platform: binance\npair: BTC_USDT\nfee_rate: \"-0.1\"\n",
		"non-decimal number": "platform: binance\npair: BTC_USDT\ninitial_cash: \"abc\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestPairFromString(t *testing.T) {
	pair, err := pairFromString("SOL_USDC")
	require.NoError(t, err)
	assert.Equal(t, "SOL", pair.Base)
	assert.Equal(t, "USDC", pair.Quote)

	_, err = pairFromString("SOL")
	assert.Error(t, err)
	_, err = pairFromString("_USDC")
	assert.Error(t, err)
}
