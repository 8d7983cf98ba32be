package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwhitelam/Tracker/internal/bitcoin"
)

type countingSource struct{ calls int }

func (c *countingSource) FetchCurrentQuote(ctx context.Context) (bitcoin.CurrentQuote, error) {
	c.calls++
	return bitcoin.CurrentQuote{Price: 60000}, nil
}

func TestMinInterval_SpacesOutCalls(t *testing.T) {
	src := &countingSource{}
	m := &MinInterval{Source: src, Interval: 50 * time.Millisecond}

	start := time.Now()
	_, err := m.FetchCurrentQuote(context.Background())
	require.NoError(t, err)
	_, err = m.FetchCurrentQuote(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, src.calls)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMinInterval_ZeroIntervalPassesThrough(t *testing.T) {
	src := &countingSource{}
	m := &MinInterval{Source: src}

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := m.FetchCurrentQuote(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.calls)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestMinInterval_ContextCancelWhileWaiting(t *testing.T) {
	src := &countingSource{}
	m := &MinInterval{Source: src, Interval: time.Minute}

	_, err := m.FetchCurrentQuote(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.FetchCurrentQuote(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, src.calls)
}
