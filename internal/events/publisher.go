// Package events provides in-process delivery of feed snapshots and notices.
package events

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

// Subscription errors.
var (
	ErrInvalidSubscriptionID = errors.New("subscription ID is required")
	ErrNilHandler            = errors.New("handler cannot be nil")
	ErrSubscriptionExists    = errors.New("subscription with this ID already exists")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
)

// EventHandler receives one feed event. Handlers run on the publishing
// goroutine and must not block for long.
type EventHandler func(event *models.Event)

// Filter selects the events a subscriber receives. The zero value matches
// every event.
type Filter struct {
	Types        []models.EventType
	Conversation models.ConversationID
}

// Matches reports whether event passes the filter.
func (f Filter) Matches(event *models.Event) bool {
	if event == nil {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, event.Type) {
		return false
	}
	return f.Conversation.IsZero() || event.Conversation == f.Conversation
}

// Publisher delivers feed events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event)
	Subscribe(id string, filter Filter, handler EventHandler) error
	Unsubscribe(id string) error
	SubscriberCount() int
}

type subscriber struct {
	id      string
	filter  Filter
	handler EventHandler
}

// Bus is a synchronous in-process Publisher. Subscribers are called in
// registration order.
type Bus struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	subs []subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{logger: logging.Component("events")}
}

// Publish calls every matching handler. Delivery stops early if ctx is done.
// A panicking handler is logged and skipped.
func (b *Bus) Publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}

	b.mu.RLock()
	targets := make([]subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.Matches(event) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	// Handlers run unlocked so they may unsubscribe themselves.
	for _, sub := range targets {
		if ctx.Err() != nil {
			return
		}
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub subscriber, event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("subscriber", sub.id).
				Str("type", string(event.Type)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	sub.handler(event)
}

// Subscribe registers handler under id.
func (b *Bus) Subscribe(id string, filter Filter, handler EventHandler) error {
	switch {
	case id == "":
		return ErrInvalidSubscriptionID
	case handler == nil:
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexOf(id) >= 0 {
		return ErrSubscriptionExists
	}
	b.subs = append(b.subs, subscriber{id: id, filter: filter, handler: handler})
	return nil
}

// Unsubscribe removes the subscription registered under id.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(id)
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	return nil
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) indexOf(id string) int {
	return slices.IndexFunc(b.subs, func(s subscriber) bool { return s.id == id })
}
