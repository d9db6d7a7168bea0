package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePager struct {
	hasMore atomic.Bool
	loading atomic.Bool
	calls   atomic.Int32
}

func newFakePager() *fakePager {
	p := &fakePager{}
	p.hasMore.Store(true)
	return p
}

func (p *fakePager) HasMore() bool { return p.hasMore.Load() }
func (p *fakePager) Loading() bool { return p.loading.Load() }

func (p *fakePager) LoadMore(context.Context) error {
	p.calls.Add(1)
	return nil
}

func TestPrefetcher_FiresOnVisibilityTransition(t *testing.T) {
	ctx := context.Background()
	pager := newFakePager()
	p := NewPrefetcher(pager)

	require.False(t, p.Observe(ctx, false))
	require.True(t, p.Observe(ctx, true))
	require.False(t, p.Observe(ctx, true), "still visible")
	require.False(t, p.Observe(ctx, false))
	require.True(t, p.Observe(ctx, true))
	require.Equal(t, int32(2), pager.calls.Load())
}

func TestPrefetcher_SkipsWhileLoadingOrExhausted(t *testing.T) {
	ctx := context.Background()
	pager := newFakePager()
	p := NewPrefetcher(pager)

	pager.loading.Store(true)
	require.False(t, p.Observe(ctx, true))
	p.Observe(ctx, false)

	pager.loading.Store(false)
	pager.hasMore.Store(false)
	require.False(t, p.Observe(ctx, true))
	require.Zero(t, pager.calls.Load())
}

func TestPrefetcher_ResetAllowsRetrigger(t *testing.T) {
	ctx := context.Background()
	pager := newFakePager()
	p := NewPrefetcher(pager)

	require.True(t, p.Observe(ctx, true))
	p.Reset()
	require.True(t, p.Observe(ctx, true))
	require.Equal(t, int32(2), pager.calls.Load())
}

func TestPrefetcher_RunConsumesSignals(t *testing.T) {
	pager := newFakePager()
	p := NewPrefetcher(pager)

	signals := make(chan bool)
	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), signals)
		close(done)
	}()

	for _, v := range []bool{true, false, true, true} {
		signals <- v
	}
	close(signals)
	<-done
	require.Equal(t, int32(2), pager.calls.Load())
}

func TestPrefetcher_DrivesController(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("bob", "alice", 3)...)
	c, _ := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))
	p := NewPrefetcher(c)

	require.True(t, p.Observe(ctx, true))
	require.Equal(t, []string{"m1", "m2", "m3"}, displayIDs(c.Snapshot()))
	require.False(t, c.HasMore())

	p.Observe(ctx, false)
	calls := b.fetchCalls.Load()
	require.False(t, p.Observe(ctx, true))
	require.Equal(t, calls, b.fetchCalls.Load())
}

func TestPollSignal_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var samples atomic.Int32
	ch := PollSignal(ctx, time.Millisecond, func() bool {
		return samples.Add(1)%2 == 0
	})

	require.Eventually(t, func() bool { return samples.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("signal channel not closed after cancel")
		}
	}
}
