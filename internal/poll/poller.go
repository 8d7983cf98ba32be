// Package poll drives the periodic snapshot refresh.
package poll

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Poller invokes fetch on a fixed interval. A tick that would overlap an
// in-flight cycle is dropped, not queued; the started cycle always runs to
// completion or failure.
type Poller struct {
	interval time.Duration
	fetch    func(ctx context.Context) error
	log      *slog.Logger
	onSkip   func()

	inFlight atomic.Bool
}

// New builds a poller. onSkip is invoked for every dropped tick and may be
// nil.
func New(interval time.Duration, fetch func(ctx context.Context) error, log *slog.Logger, onSkip func()) *Poller {
	return &Poller{interval: interval, fetch: fetch, log: log, onSkip: onSkip}
}

// Run ticks until ctx is canceled. The first fetch fires immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Debug("fetch already in flight, skipping tick")
		if p.onSkip != nil {
			p.onSkip()
		}
		return
	}
	go func() {
		defer p.inFlight.Store(false)
		if err := p.fetch(ctx); err != nil {
			p.log.Error("poll fetch failed", "error", err)
		}
	}()
}
