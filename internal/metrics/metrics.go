package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	UpstreamRequestsTotal *prometheus.CounterVec
	FetchDuration         prometheus.Histogram

	SnapshotRefreshesTotal prometheus.Counter
	PollTicksSkippedTotal  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Total number of upstream fetch attempts",
			},
			[]string{"provider", "outcome"},
		),

		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fetch_duration_seconds",
				Help:    "Duration of a full snapshot fetch cycle in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		SnapshotRefreshesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "snapshot_refreshes_total",
				Help: "Total number of successfully assembled snapshots",
			},
		),

		PollTicksSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "poll_ticks_skipped_total",
				Help: "Total number of poll ticks dropped because a fetch was in flight",
			},
		),
	}
}
