package ledgerdb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfolio/agentfolio/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"), decimal.NewFromInt(10000))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testTime(i int) time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
}

func TestOpen_SeedsInitialBalance(t *testing.T) {
	store := newTestStore(t)

	bal, err := store.Balance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal.BaseQty.IsZero())
	assert.True(t, bal.QuoteQty.Equal(dec("10000")))
	assert.Equal(t, int64(0), bal.Version)
}

func TestOpen_DoesNotReseedExistingBalance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	store, err := Open(path, decimal.NewFromInt(10000))
	require.NoError(t, err)

	_, err = store.ApplyTrade(context.Background(), domain.SideBuy, dec("0.1"), dec("40000"), dec("5"), "", "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path, decimal.NewFromInt(10000))
	require.NoError(t, err)
	defer reopened.Close()

	bal, err := reopened.Balance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal.QuoteQty.Equal(dec("5995")), "quote: %s", bal.QuoteQty)
	assert.True(t, bal.BaseQty.Equal(dec("0.1")))
}

func TestApplyTrade_BuyThenSell(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	buy, err := store.ApplyTrade(ctx, domain.SideBuy, dec("0.1"), dec("40000"), dec("5"), "dip buy", "RSI14 28.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1), buy.ID)
	assert.True(t, buy.QuoteQty.Equal(dec("4000")))

	bal, err := store.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.QuoteQty.Equal(dec("5995")), "quote: %s", bal.QuoteQty)
	assert.True(t, bal.BaseQty.Equal(dec("0.1")))
	assert.Equal(t, int64(1), bal.Version)

	sell, err := store.ApplyTrade(ctx, domain.SideSell, dec("0.1"), dec("45000"), dec("5"), "take profit", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sell.ID)

	bal, err = store.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.QuoteQty.Equal(dec("10490")), "quote: %s", bal.QuoteQty)
	assert.True(t, bal.BaseQty.IsZero())
	assert.Equal(t, int64(2), bal.Version)
}

func TestApplyTrade_InsufficientFunds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ApplyTrade(ctx, domain.SideBuy, dec("1"), dec("40000"), dec("0"), "", "")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// ledger untouched
	bal, err := store.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.QuoteQty.Equal(dec("10000")))
	assert.Equal(t, int64(0), bal.Version)

	trades, err := store.Trades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestApplyTrade_InsufficientHoldings(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ApplyTrade(context.Background(), domain.SideSell, dec("0.1"), dec("40000"), dec("0"), "", "")
	require.ErrorIs(t, err, domain.ErrInsufficientHoldings)
}

func TestApplyTrade_FeeCountsTowardsFunds(t *testing.T) {
	store := newTestStore(t)

	// gross exactly equals the balance, but the fee pushes it over
	_, err := store.ApplyTrade(context.Background(), domain.SideBuy, dec("0.25"), dec("40000"), dec("1"), "", "")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestApplyTrade_RejectsInvalidInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ApplyTrade(ctx, domain.SideBuy, dec("0"), dec("40000"), dec("0"), "", "")
	assert.Error(t, err)

	_, err = store.ApplyTrade(ctx, domain.SideBuy, dec("0.1"), dec("-1"), dec("0"), "", "")
	assert.Error(t, err)

	_, err = store.ApplyTrade(ctx, domain.SideBuy, dec("0.1"), dec("40000"), dec("-1"), "", "")
	assert.Error(t, err)

	_, err = store.ApplyTrade(ctx, domain.Side("short"), dec("0.1"), dec("40000"), dec("0"), "", "")
	assert.Error(t, err)
}

func TestBalanceFoldInvariant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	steps := []struct {
		side            domain.Side
		qty, price, fee string
	}{
		{domain.SideBuy, "0.1", "40000", "5"},
		{domain.SideBuy, "0.05", "41000", "2.5"},
		{domain.SideSell, "0.08", "42000", "3"},
		{domain.SideBuy, "0.02", "39500", "1"},
		{domain.SideSell, "0.09", "43000", "4"},
	}
	for _, step := range steps {
		_, err := store.ApplyTrade(ctx, step.side, dec(step.qty), dec(step.price), dec(step.fee), "", "")
		require.NoError(t, err)
	}

	// replay the log from the initial endowment
	trades, err := store.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, len(steps))

	base, quote := decimal.Zero, dec("10000")
	for _, tr := range trades {
		switch tr.Side {
		case domain.SideBuy:
			quote = quote.Sub(tr.QuoteQty).Sub(tr.Fee)
			base = base.Add(tr.BaseQty)
		case domain.SideSell:
			base = base.Sub(tr.BaseQty)
			quote = quote.Add(tr.QuoteQty).Sub(tr.Fee)
		}
	}

	bal, err := store.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.BaseQty.Equal(base), "base fold %s != %s", base, bal.BaseQty)
	assert.True(t, bal.QuoteQty.Equal(quote), "quote fold %s != %s", quote, bal.QuoteQty)
	assert.Equal(t, int64(len(steps)), bal.Version)
}

func TestApplyTrade_ConcurrentOverdraw(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// each buy costs 4000; only two fit into the 10000 endowment
	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.ApplyTrade(ctx, domain.SideBuy, dec("0.1"), dec("40000"), dec("0"), "", "")
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 2, accepted)

	bal, err := store.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.QuoteQty.Equal(dec("2000")), "quote: %s", bal.QuoteQty)
	assert.True(t, bal.BaseQty.Equal(dec("0.2")))

	trades, err := store.Trades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestTradeHistory_MostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.ApplyTrade(ctx, domain.SideBuy, dec("0.01"), dec("40000"), dec("0"), "", "")
		require.NoError(t, err)
	}

	history, err := store.TradeHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].ID)
	assert.Equal(t, int64(2), history[1].ID)

	all, err := store.TradeHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSnapshots_AppendAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, total := range []string{"10000", "10200", "9900"} {
		require.NoError(t, store.AppendSnapshot(ctx, domain.Snapshot{
			Timestamp:  testTime(i),
			BaseQty:    dec("0.1"),
			QuoteQty:   dec("6000"),
			Price:      dec("40000"),
			TotalValue: dec(total),
		}))
	}

	chrono, err := store.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, chrono, 3)
	assert.True(t, chrono[0].TotalValue.Equal(dec("10000")))
	assert.True(t, chrono[2].TotalValue.Equal(dec("9900")))

	recent, err := store.SnapshotHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].TotalValue.Equal(dec("9900")))
}

func TestPricePoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestPricePoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i, price := range []string{"40000", "40500", "39800"} {
		require.NoError(t, store.AppendPricePoint(ctx, domain.PricePoint{
			Timestamp: testTime(i),
			Price:     dec(price),
		}))
	}

	latest, err = store.LatestPricePoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Price.Equal(dec("39800")))

	recent, err := store.RecentPrices(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// chronological, oldest first
	assert.True(t, recent[0].Equal(dec("40500")))
	assert.True(t, recent[1].Equal(dec("39800")))
}
