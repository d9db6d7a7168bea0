package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

// MutationBackend persists sends and deletes.
type MutationBackend interface {
	CreateMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (bool, error)
}

// sequence is the controller-owned message list. apply runs fn atomically
// against the live list when gen is still the active generation and
// republishes the feed if fn reports a change. It returns false for a
// stale generation.
type sequence interface {
	apply(ctx context.Context, gen uint64, fn func(list *messageList) bool) bool
}

// target identifies the conversation an optimistic mutation was issued in.
type target struct {
	gen       uint64
	viewerID  string
	contactID string
}

type pendingEntry struct {
	mutation models.Mutation
	gen      uint64
}

// Reconciler applies sends and deletes to the feed before the backend
// confirms them, then reconciles by message id once it answers.
type Reconciler struct {
	backend MutationBackend
	seq     sequence
	now     func() time.Time
	newID   func() string
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

func newReconciler(backend MutationBackend, seq sequence, now func() time.Time, newID func() string) *Reconciler {
	return &Reconciler{
		backend: backend,
		seq:     seq,
		now:     now,
		newID:   newID,
		logger:  logging.Component("reconciler"),
		pending: make(map[string]*pendingEntry),
	}
}

// Send inserts a pending message at the head of the feed and creates it on
// the backend. On success the provisional entry is replaced in place by the
// confirmed record; on failure it is removed and the error wraps
// ErrCreateFailed. Failed sends are not retried.
func (r *Reconciler) Send(ctx context.Context, t target, content string) (models.Message, error) {
	if err := models.ValidateContent(content); err != nil {
		return models.Message{}, err
	}
	content = strings.TrimSpace(content)

	provisional := models.Message{
		ID:         r.newID(),
		Content:    content,
		SenderID:   t.viewerID,
		ReceiverID: t.contactID,
		CreatedAt:  r.now(),
		Status:     models.StatusPending,
	}
	mutationID := r.track(t.gen, models.MutationSend, provisional.ID)

	if !r.seq.apply(ctx, t.gen, func(list *messageList) bool {
		list.prepend(provisional)
		return true
	}) {
		r.resolve(mutationID, models.OutcomeFailed)
		return models.Message{}, ErrConversationChanged
	}

	confirmed, err := r.backend.CreateMessage(ctx, t.viewerID, t.contactID, content)
	if err != nil {
		r.resolve(mutationID, models.OutcomeFailed)
		provisional.Status = models.StatusFailed
		r.seq.apply(ctx, t.gen, func(list *messageList) bool {
			_, removed := list.remove(provisional.ID)
			return removed
		})
		r.logger.Warn().Err(err).Str("message_id", provisional.ID).Msg("send failed")
		return provisional, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	confirmed.Status = models.StatusConfirmed
	r.resolve(mutationID, models.OutcomeSucceeded)
	r.seq.apply(ctx, t.gen, func(list *messageList) bool {
		if list.index(confirmed.ID) >= 0 {
			// A page load already brought in the confirmed record.
			_, removed := list.remove(provisional.ID)
			return removed
		}
		return list.replace(provisional.ID, confirmed)
	})
	r.logger.Debug().Str("provisional_id", provisional.ID).Str("message_id", confirmed.ID).Msg("send confirmed")
	return confirmed, nil
}

// Delete removes a confirmed message authored by the viewer immediately and
// then deletes it on the backend. A backend failure returns an error
// wrapping ErrDeleteFailed; the message is not reinserted.
func (r *Reconciler) Delete(ctx context.Context, t target, messageID string) error {
	messageID = strings.TrimSpace(messageID)

	var checkErr error
	applied := r.seq.apply(ctx, t.gen, func(list *messageList) bool {
		msg, ok := list.get(messageID)
		switch {
		case !ok:
			checkErr = ErrMessageNotFound
		case msg.SenderID != t.viewerID:
			checkErr = ErrUnauthorized
		case msg.Status != models.StatusConfirmed || msg.IsProvisional():
			checkErr = ErrMessagePending
		}
		if checkErr != nil {
			return false
		}
		list.remove(messageID)
		return true
	})
	if !applied {
		return ErrConversationChanged
	}
	if checkErr != nil {
		return checkErr
	}

	mutationID := r.track(t.gen, models.MutationDelete, messageID)
	deleted, err := r.backend.DeleteMessage(ctx, messageID)
	if err == nil && !deleted {
		err = fmt.Errorf("message %s was not removed", messageID)
	}
	if err != nil {
		r.resolve(mutationID, models.OutcomeFailed)
		r.logger.Warn().Err(err).Str("message_id", messageID).Msg("delete failed")
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	r.resolve(mutationID, models.OutcomeSucceeded)
	return nil
}

// mutations returns the unresolved mutations issued in generation gen.
func (r *Reconciler) mutations(gen uint64) []models.Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Mutation, 0, len(r.pending))
	for _, entry := range r.pending {
		if entry.gen == gen {
			out = append(out, entry.mutation)
		}
	}
	return out
}

func (r *Reconciler) pendingCount(gen uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entry := range r.pending {
		if entry.gen == gen {
			n++
		}
	}
	return n
}

// reset discards mutations issued before generation gen.
func (r *Reconciler) reset(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.pending {
		if entry.gen < gen {
			delete(r.pending, id)
		}
	}
}

func (r *Reconciler) track(gen uint64, kind models.MutationKind, targetID string) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[id] = &pendingEntry{
		gen: gen,
		mutation: models.Mutation{
			ID:        id,
			Kind:      kind,
			TargetID:  targetID,
			Submitted: r.now(),
			Outcome:   models.OutcomeUnresolved,
		},
	}
	return id
}

// resolve records the outcome and discards the mutation.
func (r *Reconciler) resolve(id string, outcome models.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.pending[id]
	if !ok {
		return
	}
	entry.mutation.Outcome = outcome
	r.logger.Debug().
		Str("mutation_id", id).
		Str("kind", string(entry.mutation.Kind)).
		Str("outcome", string(outcome)).
		Dur("elapsed", r.now().Sub(entry.mutation.Submitted)).
		Msg("mutation resolved")
	delete(r.pending, id)
}
