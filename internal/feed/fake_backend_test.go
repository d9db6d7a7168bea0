package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tOgg1/dmfeed/internal/models"
)

var errOffline = errors.New("network unreachable")

// fakeBackend serves history from memory. Hooks, when set, override the
// default behaviour so tests can block or fail individual calls.
type fakeBackend struct {
	mu       sync.Mutex
	history  map[models.ConversationID][]models.Message // newest first
	pageSize int
	nextID   int

	fetchCalls  atomic.Int32
	createCalls atomic.Int32
	deleteCalls atomic.Int32
	cursors     []string

	onFetch  func(ctx context.Context, conv models.ConversationID, cursor string) error
	onCreate func(ctx context.Context, content string) error
	onDelete func(ctx context.Context, id string) (bool, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{history: make(map[models.ConversationID][]models.Message)}
}

func (b *fakeBackend) seed(msgs ...models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, msg := range msgs {
		if msg.Status == "" {
			msg.Status = models.StatusConfirmed
		}
		conv := msg.Conversation()
		b.history[conv] = append(b.history[conv], msg)
	}
}

func (b *fakeBackend) FetchMessages(ctx context.Context, conv models.ConversationID, cursor string, limit int) (models.Page, error) {
	b.fetchCalls.Add(1)
	b.mu.Lock()
	b.cursors = append(b.cursors, cursor)
	b.mu.Unlock()
	if b.onFetch != nil {
		if err := b.onFetch(ctx, conv, cursor); err != nil {
			return models.Page{}, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	all := b.history[conv]
	start := 0
	if cursor != "" {
		for i, msg := range all {
			if msg.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := models.Page{Messages: append([]models.Message(nil), all[start:end]...)}
	if end < len(all) {
		page.NextCursor = all[end-1].ID
	}
	return page, nil
}

func (b *fakeBackend) CreateMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	b.createCalls.Add(1)
	if b.onCreate != nil {
		if err := b.onCreate(ctx, content); err != nil {
			return models.Message{}, err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	msg := models.Message{
		ID:         fmt.Sprintf("srv-%d", b.nextID),
		Content:    content,
		SenderID:   senderID,
		ReceiverID: receiverID,
		CreatedAt:  time.Now().UTC(),
		Status:     models.StatusConfirmed,
	}
	conv := msg.Conversation()
	b.history[conv] = append([]models.Message{msg}, b.history[conv]...)
	return msg, nil
}

func (b *fakeBackend) DeleteMessage(ctx context.Context, id string) (bool, error) {
	b.deleteCalls.Add(1)
	if b.onDelete != nil {
		return b.onDelete(ctx, id)
	}
	return true, nil
}

// makeHistory builds n messages from sender to receiver, newest first,
// with ids m<n>..m1.
func makeHistory(sender, receiver string, n int) []models.Message {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]models.Message, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, models.Message{
			ID:         fmt.Sprintf("m%d", i),
			Content:    fmt.Sprintf("message %d", i),
			SenderID:   sender,
			ReceiverID: receiver,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			Status:     models.StatusConfirmed,
		})
	}
	return out
}

type recorder struct {
	mu      sync.Mutex
	events  []models.Event
	notices []models.Notice
}

func (r *recorder) handle(e *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	if e.Notice != nil {
		r.notices = append(r.notices, *e.Notice)
	}
}

func (r *recorder) noticeKinds() []models.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NoticeKind, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Kind)
	}
	return out
}

func (r *recorder) snapshots() []models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Snapshot
	for _, e := range r.events {
		if e.Snapshot != nil {
			out = append(out, *e.Snapshot)
		}
	}
	return out
}
