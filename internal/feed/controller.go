// Package feed implements the direct-message feed: paginated history merged
// with optimistic sends and deletes, grouped for display.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/events"
	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

// currentGen makes mutate run against whatever generation is active.
const currentGen uint64 = 0

// Backend is the document store contract the feed consumes.
type Backend interface {
	PageFetcher
	MutationBackend
}

// Session is the explicit per-client context: who is viewing the feed.
type Session struct {
	Viewer models.User
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the number of messages fetched per page.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithPublisher delivers snapshots and notices through p.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithClock overrides the time source used for pending messages.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides provisional id generation.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// Controller owns the merged message sequence of the active conversation.
// Every change is applied atomically and followed by a new immutable
// snapshot.
type Controller struct {
	session   Session
	backend   Backend
	publisher events.Publisher
	logger    zerolog.Logger
	pageSize  int
	now       func() time.Time
	newID     func() string

	cursors    *CursorStore
	reconciler *Reconciler

	// pubMu serializes delivery. It is never acquired while mu is held;
	// handlers run under pubMu and may take mu through the read accessors.
	pubMu     sync.Mutex
	published uint64

	mu        sync.Mutex
	conv      models.ConversationID
	contactID string
	gen       uint64
	list      messageList
	hasMore   bool
	loading   bool
	version   uint64
	snapshot  models.Snapshot
}

// NewController creates a feed controller for the session's viewer.
func NewController(session Session, backend Backend, opts ...Option) (*Controller, error) {
	if strings.TrimSpace(session.Viewer.ID) == "" {
		return nil, fmt.Errorf("session viewer required")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}

	c := &Controller{
		session:   session,
		backend:   backend,
		publisher: events.NewBus(),
		logger:    logging.WithUser(logging.Component("feed"), session.Viewer.ID),
		pageSize:  defaultPageSize,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     models.NewProvisionalID,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cursors = NewCursorStore(backend, c.pageSize)
	c.reconciler = newReconciler(backend, c, c.now, c.newID)
	c.snapshot = models.Snapshot{Viewer: session.Viewer}
	return c, nil
}

// LoadInitial switches to the conversation with contactID, discarding all
// local state of the previous one, and loads the newest page.
func (c *Controller) LoadInitial(ctx context.Context, contactID string) error {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" || contactID == c.session.Viewer.ID {
		return fmt.Errorf("%w: invalid contact %q", ErrNoConversation, contactID)
	}
	conv := models.NewConversationID(c.session.Viewer.ID, contactID)

	var (
		prev models.ConversationID
		gen  uint64
	)
	c.mutateEvent(ctx, currentGen, models.EventTypeReset, func() bool {
		prev = c.conv
		c.gen++
		gen = c.gen
		c.conv = conv
		c.contactID = contactID
		c.list.reset()
		c.hasMore = true
		c.loading = true
		c.reconciler.reset(gen)
		return true
	})
	if !prev.IsZero() {
		c.cursors.Reset(prev)
	}
	c.cursors.Reset(conv)

	logger := logging.WithConversation(c.logger, conv.String())
	logger.Debug().Uint64("generation", gen).Msg("conversation selected")
	return c.fetchPage(ctx, gen, conv)
}

// LoadMore appends the next older page. It is a no-op while a page request
// is in flight or once the end of history has been reached.
func (c *Controller) LoadMore(ctx context.Context) error {
	var (
		selected bool
		start    bool
		gen      uint64
		conv     models.ConversationID
	)
	c.mutate(ctx, currentGen, func() bool {
		if c.conv.IsZero() {
			return false
		}
		selected = true
		if c.loading || !c.hasMore {
			return false
		}
		c.loading = true
		start = true
		gen, conv = c.gen, c.conv
		return true
	})
	if !selected {
		return ErrNoConversation
	}
	if !start {
		return nil
	}
	return c.fetchPage(ctx, gen, conv)
}

func (c *Controller) fetchPage(ctx context.Context, gen uint64, conv models.ConversationID) error {
	logger := logging.WithConversation(c.logger, conv.String())

	page, err := c.cursors.RequestNextPage(ctx, conv)
	switch {
	case errors.Is(err, ErrEndOfHistory):
		c.mutate(ctx, gen, func() bool {
			c.loading = false
			c.hasMore = false
			return true
		})
		return nil
	case err != nil:
		if !c.mutate(ctx, gen, func() bool {
			c.loading = false
			return true
		}) {
			return nil
		}
		c.notify(ctx, conv, err, "")
		return err
	}

	var added int
	if !c.mutate(ctx, gen, func() bool {
		c.loading = false
		c.hasMore = !page.End()
		added = c.list.appendPage(page.Messages)
		return true
	}) {
		logger.Debug().Msg("discarding page for abandoned conversation")
		return nil
	}
	logger.Debug().Int("fetched", len(page.Messages)).Int("added", added).Bool("end", page.End()).Msg("page applied")
	return nil
}

// Send optimistically adds content as a pending message and creates it on
// the backend. Failures are reported as notices and returned.
func (c *Controller) Send(ctx context.Context, content string) (models.Message, error) {
	t, conv, err := c.target()
	if err != nil {
		return models.Message{}, err
	}
	msg, err := c.reconciler.Send(ctx, t, content)
	if err != nil {
		c.notify(ctx, conv, err, msg.ID)
	}
	return msg, err
}

// Delete removes the viewer's own message immediately and deletes it on the
// backend. A failed backend delete is reported but not rolled back; the next
// full refresh reconciles the list with the store.
func (c *Controller) Delete(ctx context.Context, messageID string) error {
	t, conv, err := c.target()
	if err != nil {
		return err
	}
	err = c.reconciler.Delete(ctx, t, messageID)
	if err != nil {
		c.notify(ctx, conv, err, messageID)
	}
	return err
}

// Snapshot returns the latest render-ready view of the feed.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Subscribe registers handler for snapshot, reset and notice events.
// Handlers run synchronously on the goroutine that changed the feed. They
// may read Snapshot, HasMore, Loading, Pending and Conversation but must not
// call Send, Delete, LoadInitial or LoadMore.
func (c *Controller) Subscribe(id string, handler events.EventHandler) error {
	return c.publisher.Subscribe(id, events.Filter{}, handler)
}

// Unsubscribe removes a subscription.
func (c *Controller) Unsubscribe(id string) error {
	return c.publisher.Unsubscribe(id)
}

// Conversation returns the active conversation.
func (c *Controller) Conversation() models.ConversationID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

// Viewer returns the session user.
func (c *Controller) Viewer() models.User {
	return c.session.Viewer
}

// HasMore reports whether older history may still be loaded.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Loading reports whether a page request is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Pending lists unresolved sends and deletes of the active conversation.
func (c *Controller) Pending() []models.Mutation {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.reconciler.mutations(gen)
}

func (c *Controller) target() (target, models.ConversationID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv.IsZero() {
		return target{}, models.ConversationID{}, ErrNoConversation
	}
	return target{
		gen:       c.gen,
		viewerID:  c.session.Viewer.ID,
		contactID: c.contactID,
	}, c.conv, nil
}

// apply implements sequence for the reconciler.
func (c *Controller) apply(ctx context.Context, gen uint64, fn func(list *messageList) bool) bool {
	return c.mutate(ctx, gen, func() bool {
		return fn(&c.list)
	})
}

func (c *Controller) mutate(ctx context.Context, gen uint64, fn func() bool) bool {
	return c.mutateEvent(ctx, gen, models.EventTypeSnapshot, fn)
}

// mutateEvent runs fn under the controller lock if gen is still active and,
// when fn reports a change, rebuilds and publishes the snapshot. It returns
// false only for a stale generation.
func (c *Controller) mutateEvent(ctx context.Context, gen uint64, eventType models.EventType, fn func() bool) bool {
	c.mu.Lock()
	if gen != currentGen && gen != c.gen {
		c.mu.Unlock()
		return false
	}
	if !fn() {
		c.mu.Unlock()
		return true
	}

	c.version++
	c.snapshot = models.Snapshot{
		Conversation: c.conv,
		Viewer:       c.session.Viewer,
		Sequence:     Render(c.list.items),
		HasMore:      c.hasMore,
		Loading:      c.loading,
		Pending:      c.reconciler.pendingCount(c.gen),
		Version:      c.version,
	}
	c.mu.Unlock()

	c.publish(ctx, eventType)
	return true
}

// publish delivers the newest snapshot. Mutations release mu before
// publishing, so two of them may race here; the loser finds its version
// already delivered and skips, keeping versions monotonic for subscribers.
// Reset events are always delivered since they carry the conversation
// switch itself.
func (c *Controller) publish(ctx context.Context, eventType models.EventType) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	snap := c.snapshot
	c.mu.Unlock()
	if snap.Version <= c.published && eventType != models.EventTypeReset {
		return
	}
	c.published = snap.Version

	c.publisher.Publish(context.WithoutCancel(ctx), &models.Event{
		Type:         eventType,
		Conversation: snap.Conversation,
		Timestamp:    c.now(),
		Snapshot:     &snap,
	})
}

func (c *Controller) notify(ctx context.Context, conv models.ConversationID, err error, messageID string) {
	notice, ok := NoticeFor(err, messageID)
	if !ok {
		return
	}
	logger := logging.WithConversation(c.logger, conv.String())
	logger.Warn().
		Err(err).
		Str("notice", string(notice.Kind)).
		Str("message_id", messageID).
		Msg("feed operation failed")

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.publisher.Publish(context.WithoutCancel(ctx), &models.Event{
		Type:         models.EventTypeNotice,
		Conversation: conv,
		Timestamp:    c.now(),
		Notice:       &notice,
	})
}
