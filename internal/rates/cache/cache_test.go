package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricesync/internal/rates"
	"pricesync/internal/rates/cache"
)

type stubProvider struct {
	calls atomic.Int32
	fail  atomic.Bool
	gate  chan struct{}
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Rate(_ context.Context, day time.Time) (rates.Quote, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.fail.Load() {
		return rates.Quote{}, errors.New("upstream down")
	}
	return rates.Quote{Day: day, Rate: decimal.RequireFromString("1.08"), Source: "stub"}, nil
}

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestProvider_CachesPerDayWithinTTL(t *testing.T) {
	t.Parallel()

	// Arrange
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	inner := &stubProvider{}
	p := &cache.Provider{P: inner, TTL: time.Hour, Now: func() time.Time { return now }}

	// Act
	_, err := p.Rate(t.Context(), day)
	require.NoError(t, err)
	q, err := p.Rate(t.Context(), day)
	require.NoError(t, err)

	// Assert
	require.Equal(t, int32(1), inner.calls.Load())
	require.True(t, decimal.RequireFromString("1.08").Equal(q.Rate))

	// a different day is a separate entry
	_, err = p.Rate(t.Context(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, int32(2), inner.calls.Load())

	// expiry sends the next lookup upstream again
	now = now.Add(2 * time.Hour)
	_, err = p.Rate(t.Context(), day)
	require.NoError(t, err)
	require.Equal(t, int32(3), inner.calls.Load())
}

func TestProvider_DoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{}
	inner.fail.Store(true)
	p := &cache.Provider{P: inner, TTL: time.Hour}

	_, err := p.Rate(t.Context(), day)
	require.Error(t, err)

	inner.fail.Store(false)
	_, err = p.Rate(t.Context(), day)
	require.NoError(t, err)
	require.Equal(t, int32(2), inner.calls.Load())
}

func TestProvider_CoalescesConcurrentLookups(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{gate: make(chan struct{})}
	p := &cache.Provider{P: inner, TTL: time.Hour}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Rate(context.Background(), day)
			errs <- err
		}()
	}
	// let the callers pile up behind the first upstream call
	time.Sleep(50 * time.Millisecond)
	close(inner.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), inner.calls.Load())
}

func TestProvider_MaxItems(t *testing.T) {
	t.Parallel()

	inner := &stubProvider{}
	p := &cache.Provider{P: inner, TTL: time.Hour, MaxItems: 2}

	for i := range 4 {
		_, err := p.Rate(t.Context(), day.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	// most recent day survives eviction
	_, err := p.Rate(t.Context(), day.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Equal(t, int32(4), inner.calls.Load())
}
