package snapshot

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfolio/agentfolio/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeStore struct {
	balance   domain.Balance
	appended  []domain.Snapshot
	appendErr error
}

func (f *fakeStore) Balance(ctx context.Context) (domain.Balance, error) { return f.balance, nil }

func (f *fakeStore) AppendSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, snap)
	return nil
}

type fakeResolver struct {
	price decimal.Decimal
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context) (decimal.Decimal, error) {
	return f.price, f.err
}

func TestRecord_ValuesBalanceAtResolvedPrice(t *testing.T) {
	store := &fakeStore{balance: domain.Balance{BaseQty: dec("0.1"), QuoteQty: dec("6000")}}
	r := NewRecorder(store, &fakeResolver{price: dec("40000")}, nil)

	snap, err := r.Record(context.Background())
	require.NoError(t, err)

	// 0.1 * 40000 + 6000
	assert.True(t, snap.TotalValue.Equal(dec("10000")), "total: %s", snap.TotalValue)
	assert.True(t, snap.Price.Equal(dec("40000")))
	assert.True(t, snap.BaseQty.Equal(dec("0.1")))
	require.Len(t, store.appended, 1)
	assert.True(t, store.appended[0].TotalValue.Equal(dec("10000")))
}

func TestRecord_FailsWithoutPrice(t *testing.T) {
	store := &fakeStore{balance: domain.Balance{QuoteQty: dec("10000")}}
	r := NewRecorder(store, &fakeResolver{err: errors.Wrap(domain.ErrNoPriceAvailable, "fetch")}, nil)

	_, err := r.Record(context.Background())
	require.ErrorIs(t, err, domain.ErrNoPriceAvailable)
	assert.Empty(t, store.appended, "no snapshot may be written without a price")
}

func TestRecord_AppendFailurePropagates(t *testing.T) {
	store := &fakeStore{
		balance:   domain.Balance{QuoteQty: dec("10000")},
		appendErr: errors.Wrap(domain.ErrStorageUnavailable, "insert snapshot"),
	}
	r := NewRecorder(store, &fakeResolver{price: dec("40000")}, nil)

	_, err := r.Record(context.Background())
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
