package bitcoin

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwhitelam/Tracker/internal/cache"
	"github.com/cwhitelam/Tracker/internal/metrics"
	"github.com/cwhitelam/Tracker/internal/upstream"
)

// Cache keys for the well-known logical resources.
const (
	quoteCacheKey    = "priceData"
	snapshotCacheKey = "bitcoinData"
)

// QuoteSource fetches the latest spot quote from one configured upstream.
type QuoteSource interface {
	FetchCurrentQuote(ctx context.Context) (CurrentQuote, error)
}

// HistorySource fetches real daily history and today's opening price.
// Upstreams without history endpoints leave this nil and the service
// synthesizes a series instead.
type HistorySource interface {
	FetchOpenToday(ctx context.Context) (float64, error)
	FetchDailyHistory(ctx context.Context, days int) ([]PricePoint, error)
}

// Service is the price data service. One instance owns its caches; construct
// it once at startup and pass it by reference to consumers.
type Service struct {
	quotes  QuoteSource
	history HistorySource
	quoteC  *cache.Cache[CurrentQuote]
	snapC   *cache.Cache[Snapshot]
	synth   *Synthesizer
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewService wires a service over the given sources. history may be nil.
func NewService(quotes QuoteSource, history HistorySource, ttl time.Duration, synth *Synthesizer, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		quotes:  quotes,
		history: history,
		quoteC:  cache.New[CurrentQuote](ttl),
		snapC:   cache.New[Snapshot](ttl),
		synth:   synth,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// GetBitcoinData is the aggregate read operation. It returns a cached
// snapshot when one is still valid; otherwise it fetches the quote, obtains
// or synthesizes the price history, derives the daily change, caches the
// assembled snapshot and returns it. Any upstream failure aborts the cycle
// without touching previously cached data.
func (s *Service) GetBitcoinData(ctx context.Context, startDate time.Time) (Snapshot, error) {
	if snap, ok := s.snapC.Get(snapshotCacheKey); ok {
		s.metrics.CacheHitsTotal.Inc()
		s.log.Debug("serving cached bitcoin data")
		return snap, nil
	}
	s.metrics.CacheMissesTotal.Inc()
	s.log.Info("fetching fresh bitcoin data")

	started := s.now()
	var snap Snapshot
	var err error
	if s.history != nil {
		snap, err = s.fetchWithHistory(ctx, startDate)
	} else {
		snap, err = s.fetchWithSynthesis(ctx, startDate)
	}
	if err != nil {
		s.log.Error("bitcoin data fetch failed", "error", err, "kind", upstream.KindOf(err).String())
		return Snapshot{}, err
	}
	s.metrics.FetchDuration.Observe(s.now().Sub(started).Seconds())
	s.metrics.SnapshotRefreshesTotal.Inc()

	s.snapC.Set(snapshotCacheKey, snap)
	return snap, nil
}

// GetCurrentQuote returns the latest spot quote, cached separately from the
// aggregate snapshot.
func (s *Service) GetCurrentQuote(ctx context.Context) (CurrentQuote, error) {
	if q, ok := s.quoteC.Get(quoteCacheKey); ok {
		s.metrics.CacheHitsTotal.Inc()
		return q, nil
	}
	s.metrics.CacheMissesTotal.Inc()

	q, err := s.quotes.FetchCurrentQuote(ctx)
	if err != nil {
		return CurrentQuote{}, err
	}
	s.quoteC.Set(quoteCacheKey, q)
	return q, nil
}

// fetchWithHistory issues the current price, today's opening price and the
// N-day daily history as three concurrent requests and joins them. The first
// failed response aborts the batch; no partial snapshot is ever assembled.
func (s *Service) fetchWithHistory(ctx context.Context, startDate time.Time) (Snapshot, error) {
	days := daysBetween(startDate, s.now())

	var (
		quote   CurrentQuote
		open    float64
		history []PricePoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quote, err = s.quotes.FetchCurrentQuote(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = s.history.FetchOpenToday(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.history.FetchDailyHistory(gctx, days)
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.UpstreamRequestsTotal.WithLabelValues("history-batch", "error").Inc()
		return Snapshot{}, upstream.Partial("history-batch", err)
	}
	s.metrics.UpstreamRequestsTotal.WithLabelValues("history-batch", "ok").Inc()

	sort.Slice(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })

	return Snapshot{
		CurrentPrice:   quote.Price,
		DailyChangeUSD: quote.Price - open,
		PriceHistory:   history,
	}, nil
}

// fetchWithSynthesis serves upstreams that only expose a current price: the
// daily change is derived from the 24h percentage move and the history is
// synthetic.
func (s *Service) fetchWithSynthesis(ctx context.Context, startDate time.Time) (Snapshot, error) {
	quote, err := s.quotes.FetchCurrentQuote(ctx)
	if err != nil {
		s.metrics.UpstreamRequestsTotal.WithLabelValues("quote", "error").Inc()
		return Snapshot{}, err
	}
	s.metrics.UpstreamRequestsTotal.WithLabelValues("quote", "ok").Inc()

	return Snapshot{
		CurrentPrice:   quote.Price,
		DailyChangeUSD: quote.Price * quote.PercentChange24h / 100,
		PriceHistory:   s.synth.Synthesize(startDate, s.now(), quote.Price),
	}, nil
}
