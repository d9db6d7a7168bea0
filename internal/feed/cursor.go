package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

const defaultPageSize = 20

// PageFetcher loads one page of history, newest first.
type PageFetcher interface {
	FetchMessages(ctx context.Context, conv models.ConversationID, cursor string, limit int) (models.Page, error)
}

type cursorState struct {
	cursor    string
	exhausted bool
	epoch     uint64
}

// CursorStore tracks pagination state per conversation and guarantees at
// most one in-flight page request per conversation.
type CursorStore struct {
	fetcher  PageFetcher
	pageSize int
	logger   zerolog.Logger

	flights singleflight.Group

	mu     sync.Mutex
	states map[models.ConversationID]*cursorState
	epoch  uint64
}

// NewCursorStore creates a store that fetches pageSize messages per request.
func NewCursorStore(fetcher PageFetcher, pageSize int) *CursorStore {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &CursorStore{
		fetcher:  fetcher,
		pageSize: pageSize,
		logger:   logging.Component("cursor-store"),
		states:   make(map[models.ConversationID]*cursorState),
	}
}

// RequestNextPage fetches the page after the conversation's cursor.
// Callers arriving while a request is outstanding share its result.
// Once the end of history is reached it returns ErrEndOfHistory without
// contacting the backend. On failure the cursor is left as it was.
func (s *CursorStore) RequestNextPage(ctx context.Context, conv models.ConversationID) (models.Page, error) {
	if conv.IsZero() {
		return models.Page{}, ErrNoConversation
	}

	s.mu.Lock()
	state := s.stateLocked(conv)
	if state.exhausted {
		s.mu.Unlock()
		return models.Page{}, ErrEndOfHistory
	}
	key := fmt.Sprintf("%s#%d", conv, state.epoch)
	s.mu.Unlock()

	for {
		result, err, shared := s.flights.Do(key, func() (any, error) {
			return s.fetch(ctx, conv, state)
		})
		if shared {
			s.logger.Debug().Str("conversation", conv.String()).Msg("joined in-flight page request")
		}
		// The flight ran under the context of whichever caller started it.
		// If that caller gave up, the cursor did not move; a caller that is
		// still live starts its own request.
		if shared && ctx.Err() == nil && isContextError(err) {
			continue
		}
		if err != nil {
			return models.Page{}, err
		}
		return result.(models.Page), nil
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *CursorStore) fetch(ctx context.Context, conv models.ConversationID, state *cursorState) (models.Page, error) {
	// The cursor is read inside the flight so a caller that starts right
	// after a previous flight finished sees the advanced cursor.
	s.mu.Lock()
	if state.exhausted {
		s.mu.Unlock()
		return models.Page{}, ErrEndOfHistory
	}
	cursor := state.cursor
	s.mu.Unlock()

	page, err := s.fetcher.FetchMessages(ctx, conv, cursor, s.pageSize)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation", conv.String()).Str("cursor", cursor).Msg("page fetch failed")
		return models.Page{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[conv] != state {
		// Reset while in flight; the result belongs to an abandoned cursor.
		return page, nil
	}
	state.cursor = page.NextCursor
	state.exhausted = page.End()
	return page, nil
}

// Reset drops the cursor for conv. A request still in flight for the old
// cursor will not update the new state.
func (s *CursorStore) Reset(conv models.ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, conv)
}

// Cursor returns the current continuation token for conv.
func (s *CursorStore) Cursor(conv models.ConversationID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[conv]; ok {
		return state.cursor
	}
	return ""
}

// Exhausted reports whether the end of history has been observed for conv.
func (s *CursorStore) Exhausted(conv models.ConversationID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[conv]
	return ok && state.exhausted
}

func (s *CursorStore) stateLocked(conv models.ConversationID) *cursorState {
	state, ok := s.states[conv]
	if !ok {
		s.epoch++
		state = &cursorState{epoch: s.epoch}
		s.states[conv] = state
	}
	return state
}
