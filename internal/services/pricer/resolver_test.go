package pricer

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfolio/agentfolio/internal/domain"
)

var testPair = domain.Pair{Base: "BTC", Quote: "USDT"}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakePoints struct {
	point *domain.PricePoint
	err   error
}

func (f *fakePoints) LatestPricePoint(ctx context.Context) (*domain.PricePoint, error) {
	return f.point, f.err
}

type fakeSource struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fakeSource) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func TestResolve_PrefersCollectedPoint(t *testing.T) {
	points := &fakePoints{point: &domain.PricePoint{Timestamp: time.Now(), Price: dec("40000")}}
	source := &fakeSource{price: dec("41000")}
	r := NewResolver(testPair, points, source, 0, nil)

	price, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("40000")))
	assert.Equal(t, 0, source.calls, "external source must not be hit when a point exists")
}

func TestResolve_FallsBackToExternalFetch(t *testing.T) {
	source := &fakeSource{price: dec("41000")}
	r := NewResolver(testPair, &fakePoints{}, source, 0, nil)

	price, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("41000")))
	assert.Equal(t, 1, source.calls)
}

func TestResolve_FailsFastWhenFetchErrors(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	r := NewResolver(testPair, &fakePoints{}, source, 0, nil)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, domain.ErrNoPriceAvailable)
	assert.Equal(t, 1, source.calls, "exactly one fetch attempt")
}

func TestResolve_RejectsNonPositivePrice(t *testing.T) {
	source := &fakeSource{price: decimal.Zero}
	r := NewResolver(testPair, &fakePoints{}, source, 0, nil)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, domain.ErrNoPriceAvailable)
}

func TestResolve_IgnoresStalePointWithZeroPrice(t *testing.T) {
	points := &fakePoints{point: &domain.PricePoint{Timestamp: time.Now(), Price: decimal.Zero}}
	source := &fakeSource{price: dec("39500")}
	r := NewResolver(testPair, points, source, 0, nil)

	price, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("39500")))
}

func TestResolve_NoSourceNoPoint(t *testing.T) {
	r := NewResolver(testPair, &fakePoints{}, nil, 0, nil)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, domain.ErrNoPriceAvailable)
}

func TestResolve_PointReadErrorPropagates(t *testing.T) {
	points := &fakePoints{err: errors.Wrap(domain.ErrStorageUnavailable, "query price_points")}
	r := NewResolver(testPair, points, &fakeSource{price: dec("40000")}, 0, nil)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
