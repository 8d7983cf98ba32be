package bitcoin

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwhitelam/Tracker/internal/metrics"
	"github.com/cwhitelam/Tracker/internal/upstream"
)

type fakeQuoteSource struct {
	calls int
	fetch func(ctx context.Context) (CurrentQuote, error)
}

func (f *fakeQuoteSource) FetchCurrentQuote(ctx context.Context) (CurrentQuote, error) {
	f.calls++
	return f.fetch(ctx)
}

type fakeHistorySource struct {
	openCalls    int
	historyCalls int
	open         func(ctx context.Context) (float64, error)
	history      func(ctx context.Context, days int) ([]PricePoint, error)
}

func (f *fakeHistorySource) FetchOpenToday(ctx context.Context) (float64, error) {
	f.openCalls++
	return f.open(ctx)
}

func (f *fakeHistorySource) FetchDailyHistory(ctx context.Context, days int) ([]PricePoint, error) {
	f.historyCalls++
	return f.history(ctx, days)
}

func newTestService(quotes QuoteSource, history HistorySource, ttl time.Duration) *Service {
	synth := NewSynthesizer(testAnchors, rand.New(rand.NewSource(1)))
	m := metrics.New(prometheus.NewRegistry())
	log := slog.New(slog.DiscardHandler)
	return NewService(quotes, history, ttl, synth, m, log)
}

func TestGetBitcoinData_Scenario366Days(t *testing.T) {
	quotes := &fakeQuoteSource{fetch: func(context.Context) (CurrentQuote, error) {
		return CurrentQuote{Price: 60000, PercentChange24h: -1.5}, nil
	}}
	s := newTestService(quotes, nil, 10*time.Minute)
	s.now = func() time.Time { return time.Date(2024, 8, 11, 0, 0, 0, 0, time.UTC) }

	start := time.Date(2023, 8, 11, 0, 0, 0, 0, time.UTC)
	snap, err := s.GetBitcoinData(context.Background(), start)
	require.NoError(t, err)

	assert.Equal(t, 60000.0, snap.CurrentPrice)
	assert.InDelta(t, -900.0, snap.DailyChangeUSD, 1e-9)
	require.Len(t, snap.PriceHistory, 366)
	assert.Equal(t, 60000.0, snap.PriceHistory[365].Price)
}

func TestGetBitcoinData_DailyChangeFromPercent(t *testing.T) {
	quotes := &fakeQuoteSource{fetch: func(context.Context) (CurrentQuote, error) {
		return CurrentQuote{Price: 50000, PercentChange24h: 2.0}, nil
	}}
	s := newTestService(quotes, nil, 10*time.Minute)

	snap, err := s.GetBitcoinData(context.Background(), time.Now().AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, snap.DailyChangeUSD, 1e-9)
}

func TestGetBitcoinData_CacheFirst(t *testing.T) {
	quotes := &fakeQuoteSource{fetch: func(context.Context) (CurrentQuote, error) {
		return CurrentQuote{Price: 60000, PercentChange24h: 1.0}, nil
	}}
	s := newTestService(quotes, nil, 10*time.Minute)

	start := time.Now().AddDate(0, 0, -30)
	first, err := s.GetBitcoinData(context.Background(), start)
	require.NoError(t, err)

	second, err := s.GetBitcoinData(context.Background(), start)
	require.NoError(t, err)

	assert.Equal(t, 1, quotes.calls, "second call within TTL must not hit upstream")
	assert.Equal(t, first, second)
}

func TestGetBitcoinData_FailedRefreshLeavesCacheUntouched(t *testing.T) {
	healthy := true
	quotes := &fakeQuoteSource{fetch: func(context.Context) (CurrentQuote, error) {
		if !healthy {
			return CurrentQuote{}, upstream.Transport("gateway", errors.New("connection refused"))
		}
		return CurrentQuote{Price: 60000, PercentChange24h: 1.0}, nil
	}}
	s := newTestService(quotes, nil, 10*time.Minute)

	start := time.Now().AddDate(0, 0, -30)
	first, err := s.GetBitcoinData(context.Background(), start)
	require.NoError(t, err)

	healthy = false
	second, err := s.GetBitcoinData(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, first, second, "valid cached snapshot keeps serving while upstream is down")
}

func TestGetBitcoinData_PartialFailureAbortsWholeBatch(t *testing.T) {
	quotes := &fakeQuoteSource{fetch: func(context.Context) (CurrentQuote, error) {
		return CurrentQuote{Price: 60000}, nil
	}}
	history := &fakeHistorySource{
		open: func(context.Context) (float64, error) { return 59000, nil },
		history: func(context.Context, int) ([]PricePoint, error) {
			return nil, upstream.Status("cryptocompare", 502)
		},
	}
	s := newTestService(quotes, history, 10*time.Minute)

	start := time.Now().AddDate(0, 0, -30)
	_, err := s.GetBitcoinData(context.Background(), start)
	require.Error(t, err)
	assert.Equal(t, upstream.KindPartialFailure, upstream.KindOf(err))

	// Nothing was cached by the failed cycle: the next call fetches again.
	history.history = func(_ context.Context, days int) ([]PricePoint, error) {
		return []PricePoint{{Date: time.Now(), Price: 59500}}, nil
	}
	snap, err := s.GetBitcoinData(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, 2, history.historyCalls)
	assert.Equal(t, 60000.0, snap.CurrentPrice)
	assert.InDelta(t, 1000.0, snap.DailyChangeUSD, 1e-9, "derived from open price, not percent")
}

func TestGetBitcoinData_HistoryPathIssuesThreeConcurrentCalls(t *testing.T) {
	quotes := &fakeQuoteSource{fetch: func(context.Context) (CurrentQuote, error) {
		return CurrentQuote{Price: 61000}, nil
	}}
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	history := &fakeHistorySource{
		open: func(context.Context) (float64, error) { return 60500, nil },
		history: func(_ context.Context, days int) ([]PricePoint, error) {
			// Deliberately unsorted; the service must sort ascending.
			return []PricePoint{
				{Date: base.AddDate(0, 0, 2), Price: 60900},
				{Date: base, Price: 60100},
				{Date: base.AddDate(0, 0, 1), Price: 60400},
			}, nil
		},
	}
	s := newTestService(quotes, history, 10*time.Minute)

	snap, err := s.GetBitcoinData(context.Background(), base.AddDate(0, 0, -3))
	require.NoError(t, err)

	assert.Equal(t, 1, quotes.calls)
	assert.Equal(t, 1, history.openCalls)
	assert.Equal(t, 1, history.historyCalls)
	require.Len(t, snap.PriceHistory, 3)
	assert.True(t, snap.PriceHistory[0].Date.Equal(base))
	assert.True(t, snap.PriceHistory[2].Date.Equal(base.AddDate(0, 0, 2)))
	assert.InDelta(t, 500.0, snap.DailyChangeUSD, 1e-9)
}

func TestGetCurrentQuote_CachedSeparately(t *testing.T) {
	quotes := &fakeQuoteSource{fetch: func(context.Context) (CurrentQuote, error) {
		return CurrentQuote{Price: 42000, PercentChange24h: 0.5}, nil
	}}
	s := newTestService(quotes, nil, 10*time.Minute)

	q1, err := s.GetCurrentQuote(context.Background())
	require.NoError(t, err)
	q2, err := s.GetCurrentQuote(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, quotes.calls)
	assert.Equal(t, q1, q2)
}
