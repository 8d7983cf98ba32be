// Package ratelimit spaces out calls to rate-limited quote providers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
)

// MinInterval wraps a quote source and enforces a minimum time between
// upstream calls. A caller arriving early waits for the remainder of the
// interval, or returns when its context is canceled.
type MinInterval struct {
	Source   bitcoin.QuoteSource
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) FetchCurrentQuote(ctx context.Context) (bitcoin.CurrentQuote, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return bitcoin.CurrentQuote{}, ctx.Err()
			case <-t.C:
			}
		}
	}

	q, err := m.Source.FetchCurrentQuote(ctx)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return q, err
}
