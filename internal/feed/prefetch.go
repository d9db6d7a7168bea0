package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/logging"
)

// Pager is the part of the feed the prefetcher drives.
type Pager interface {
	HasMore() bool
	Loading() bool
	LoadMore(ctx context.Context) error
}

// Prefetcher requests the next page when the sentinel at the oldest loaded
// edge of the list becomes visible. It fires once per not-visible to
// visible transition and never while a page is loading or after the end of
// history.
type Prefetcher struct {
	pager  Pager
	logger zerolog.Logger

	mu      sync.Mutex
	visible bool
}

// NewPrefetcher creates a prefetcher driving pager.
func NewPrefetcher(pager Pager) *Prefetcher {
	return &Prefetcher{
		pager:  pager,
		logger: logging.Component("prefetcher"),
	}
}

// Observe records one visibility sample. It reports whether a page request
// was issued.
func (p *Prefetcher) Observe(ctx context.Context, visible bool) bool {
	p.mu.Lock()
	wasVisible := p.visible
	p.visible = visible
	p.mu.Unlock()

	if !visible || wasVisible {
		return false
	}
	if !p.pager.HasMore() || p.pager.Loading() {
		return false
	}
	if err := p.pager.LoadMore(ctx); err != nil {
		p.logger.Debug().Err(err).Msg("prefetch failed")
	}
	return true
}

// Reset forgets the last sample, e.g. after the conversation changes.
func (p *Prefetcher) Reset() {
	p.mu.Lock()
	p.visible = false
	p.mu.Unlock()
}

// Run consumes visibility samples until ctx is done or signals is closed.
func (p *Prefetcher) Run(ctx context.Context, signals <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case visible, ok := <-signals:
			if !ok {
				return
			}
			p.Observe(ctx, visible)
		}
	}
}

// PollSignal samples visible every interval and delivers the result on the
// returned channel, which is closed when ctx is done.
func PollSignal(ctx context.Context, interval time.Duration, visible func() bool) <-chan bool {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- visible():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
