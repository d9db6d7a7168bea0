package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/dmfeed/internal/models"
)

func newTestController(t *testing.T, b *fakeBackend) (*Controller, *recorder) {
	t.Helper()
	c, err := NewController(Session{Viewer: models.User{ID: "alice", Username: "alice"}}, b, WithPageSize(2))
	require.NoError(t, err)
	rec := &recorder{}
	require.NoError(t, c.Subscribe("test", rec.handle))
	return c, rec
}

func displayIDs(s models.Snapshot) []string {
	msgs := s.Sequence.Messages()
	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, msg.ID)
	}
	return ids
}

func TestNewController_RequiresViewerAndBackend(t *testing.T) {
	_, err := NewController(Session{}, newFakeBackend())
	require.Error(t, err)
	_, err = NewController(Session{Viewer: models.User{ID: "alice"}}, nil)
	require.Error(t, err)
}

func TestController_EmptyConversation(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c, _ := newTestController(t, b)

	require.NoError(t, c.LoadInitial(ctx, "bob"))
	snap := c.Snapshot()
	require.Zero(t, snap.Sequence.Len())
	require.False(t, snap.HasMore)
	require.False(t, snap.Loading)
	require.Equal(t, models.NewConversationID("alice", "bob"), snap.Conversation)

	calls := b.fetchCalls.Load()
	require.NoError(t, c.LoadMore(ctx))
	require.Equal(t, calls, b.fetchCalls.Load())
}

func TestController_LoadMoreAppendsOlderPages(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("bob", "alice", 5)...)
	c, rec := newTestController(t, b)

	require.NoError(t, c.LoadInitial(ctx, "bob"))
	require.Equal(t, []string{"m4", "m5"}, displayIDs(c.Snapshot()))
	require.True(t, c.HasMore())

	require.NoError(t, c.LoadMore(ctx))
	require.NoError(t, c.LoadMore(ctx))
	snap := c.Snapshot()
	require.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, displayIDs(snap))
	require.False(t, snap.HasMore)
	require.Len(t, snap.Sequence.Groups, 1)

	var last uint64
	for _, s := range rec.snapshots() {
		require.Greater(t, s.Version, last)
		last = s.Version
	}
}

func TestController_LoadMoreWhileInFlightIsNoop(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("bob", "alice", 5)...)
	c, _ := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	b.onFetch = func(context.Context, models.ConversationID, string) error {
		started <- struct{}{}
		<-release
		return nil
	}
	before := b.fetchCalls.Load()

	done := make(chan error, 1)
	go func() { done <- c.LoadMore(ctx) }()
	<-started
	require.True(t, c.Loading())
	require.True(t, c.Snapshot().Loading)

	require.NoError(t, c.LoadMore(ctx))
	close(release)
	require.NoError(t, <-done)

	require.Equal(t, before+1, b.fetchCalls.Load())
	require.Equal(t, []string{"m2", "m3", "m4", "m5"}, displayIDs(c.Snapshot()))
	require.False(t, c.Loading())
}

func TestController_FetchFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("bob", "alice", 5)...)
	c, rec := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	b.onFetch = func(context.Context, models.ConversationID, string) error { return errOffline }
	err := c.LoadMore(ctx)
	require.ErrorIs(t, err, ErrFetchFailed)
	require.Equal(t, []models.NoticeKind{models.NoticeFetchFailed}, rec.noticeKinds())
	require.True(t, c.HasMore())
	require.False(t, c.Loading())
	require.Equal(t, []string{"m4", "m5"}, displayIDs(c.Snapshot()))

	b.onFetch = nil
	require.NoError(t, c.LoadMore(ctx))
	require.Equal(t, []string{"m2", "m3", "m4", "m5"}, displayIDs(c.Snapshot()))
	require.Equal(t, []string{"", "m4", "m4"}, b.cursors)
}

func TestController_SendFailureRemovesPendingEntry(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c, rec := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	release := make(chan struct{})
	entered := make(chan struct{})
	b.onCreate = func(context.Context, string) error {
		close(entered)
		<-release
		return errOffline
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, "hi")
		done <- err
	}()
	<-entered

	snap := c.Snapshot()
	require.Equal(t, 1, snap.Sequence.Len())
	pending := snap.Sequence.Messages()[0]
	require.Equal(t, "hi", pending.Content)
	require.Equal(t, models.StatusPending, pending.Status)
	require.True(t, pending.IsProvisional())
	require.Equal(t, 1, snap.Pending)
	require.Len(t, c.Pending(), 1)

	close(release)
	err := <-done
	require.ErrorIs(t, err, ErrCreateFailed)
	require.ErrorIs(t, err, errOffline)

	require.Zero(t, c.Snapshot().Sequence.Len())
	require.Zero(t, c.Snapshot().Pending)
	require.Equal(t, []models.NoticeKind{models.NoticeCreateFailed}, rec.noticeKinds())
	require.Equal(t, int32(1), b.createCalls.Load())
}

func TestController_SendConfirmReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("bob", "alice", 2)...)
	c, _ := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	release := make(chan struct{})
	entered := make(chan struct{})
	b.onCreate = func(_ context.Context, content string) error {
		if content == "one" {
			close(entered)
			<-release
		}
		return nil
	}

	type result struct {
		msg models.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.Send(ctx, "one")
		done <- result{msg, err}
	}()
	<-entered

	two, err := c.Send(ctx, "  two  ")
	require.NoError(t, err)
	require.Equal(t, "two", two.Content)

	ids := displayIDs(c.Snapshot())
	require.Len(t, ids, 4)
	require.Equal(t, two.ID, ids[3])
	provisionalID := ids[2]
	require.Contains(t, provisionalID, models.ProvisionalPrefix)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	one := res.msg

	snap := c.Snapshot()
	ids = displayIDs(snap)
	require.Equal(t, []string{"m1", "m2", one.ID, two.ID}, ids)
	require.NotContains(t, ids, provisionalID)
	for _, msg := range snap.Sequence.Messages() {
		require.Equal(t, models.StatusConfirmed, msg.Status)
	}
	require.Len(t, snap.Sequence.Groups, 2)
}

func TestController_ConfirmAfterRecordAlreadyLoaded(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c, _ := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	release := make(chan struct{})
	entered := make(chan struct{})
	b.onCreate = func(context.Context, string) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, "hello")
		done <- err
	}()
	<-entered

	// Simulate the confirmed record arriving with a page before the create
	// call returns.
	c.apply(ctx, currentGen, func(list *messageList) bool {
		list.appendPage([]models.Message{{ID: "srv-1", SenderID: "alice", ReceiverID: "bob", Content: "hello"}})
		return true
	})
	close(release)
	require.NoError(t, <-done)

	ids := displayIDs(c.Snapshot())
	require.Equal(t, []string{"srv-1"}, ids)
}

func TestController_WhitespaceSendIsRejected(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c, _ := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))
	version := c.Snapshot().Version

	_, err := c.Send(ctx, "  \n\t")
	require.ErrorIs(t, err, ErrEmptyContent)
	require.Zero(t, b.createCalls.Load())
	require.Zero(t, c.Snapshot().Sequence.Len())
	require.Equal(t, version, c.Snapshot().Version)
}

func TestController_DeleteRemovesImmediately(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("alice", "bob", 2)...)
	c, rec := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	release := make(chan struct{})
	entered := make(chan struct{})
	b.onDelete = func(context.Context, string) (bool, error) {
		close(entered)
		<-release
		return true, nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Delete(ctx, "m1") }()
	<-entered

	require.Equal(t, []string{"m2"}, displayIDs(c.Snapshot()))
	close(release)
	require.NoError(t, <-done)
	require.Equal(t, []string{"m2"}, displayIDs(c.Snapshot()))
	require.Empty(t, rec.noticeKinds())
}

func TestController_DeleteByNonAuthorIsRejected(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("bob", "alice", 2)...)
	c, rec := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	err := c.Delete(ctx, "m1")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, b.deleteCalls.Load())
	require.Equal(t, []string{"m1", "m2"}, displayIDs(c.Snapshot()))
	require.Equal(t, []models.NoticeKind{models.NoticeUnauthorized}, rec.noticeKinds())
}

func TestController_DeleteFailureIsNotRolledBack(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("alice", "bob", 2)...)
	c, rec := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	b.onDelete = func(context.Context, string) (bool, error) { return false, nil }
	err := c.Delete(ctx, "m2")
	require.ErrorIs(t, err, ErrDeleteFailed)
	require.Equal(t, []string{"m1"}, displayIDs(c.Snapshot()))
	require.Equal(t, []models.NoticeKind{models.NoticeDeleteFailed}, rec.noticeKinds())
}

func TestController_DeleteUnknownOrPending(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c, _ := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	require.ErrorIs(t, c.Delete(ctx, "missing"), ErrMessageNotFound)

	release := make(chan struct{})
	entered := make(chan struct{})
	b.onCreate = func(context.Context, string) error {
		close(entered)
		<-release
		return nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, "draft")
		done <- err
	}()
	<-entered

	provisionalID := displayIDs(c.Snapshot())[0]
	require.ErrorIs(t, c.Delete(ctx, provisionalID), ErrMessagePending)
	require.Zero(t, b.deleteCalls.Load())

	close(release)
	require.NoError(t, <-done)
}

func TestController_StalePageIsDiscarded(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.seed(makeHistory("carol", "alice", 3)...)
	b.seed(makeHistory("bob", "alice", 2)...)
	c, _ := newTestController(t, b)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	b.onFetch = func(_ context.Context, conv models.ConversationID, _ string) error {
		if conv.Contains("carol") {
			started <- struct{}{}
			<-release
		}
		return nil
	}

	doneA := make(chan error, 1)
	go func() { doneA <- c.LoadInitial(ctx, "carol") }()
	<-started

	require.NoError(t, c.LoadInitial(ctx, "bob"))
	before := c.Snapshot()
	require.Equal(t, models.NewConversationID("alice", "bob"), before.Conversation)

	close(release)
	require.NoError(t, <-doneA)

	after := c.Snapshot()
	require.Equal(t, before, after)
	require.Equal(t, []string{"m1", "m2"}, displayIDs(after))
}

func TestController_SwitchDropsPendingMutations(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c, _ := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	release := make(chan struct{})
	entered := make(chan struct{})
	b.onCreate = func(context.Context, string) error {
		close(entered)
		<-release
		return nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Send(ctx, "for bob")
		done <- err
	}()
	<-entered

	require.NoError(t, c.LoadInitial(ctx, "carol"))
	require.Empty(t, c.Pending())
	require.Zero(t, c.Snapshot().Pending)

	close(release)
	require.NoError(t, <-done)
	require.Zero(t, c.Snapshot().Sequence.Len())
	require.Equal(t, models.NewConversationID("alice", "carol"), c.Conversation())
}

func TestController_OperationsRequireConversation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestController(t, newFakeBackend())

	require.ErrorIs(t, c.LoadMore(ctx), ErrNoConversation)
	_, err := c.Send(ctx, "hi")
	require.ErrorIs(t, err, ErrNoConversation)
	require.ErrorIs(t, c.Delete(ctx, "m1"), ErrNoConversation)
	require.ErrorIs(t, c.LoadInitial(ctx, "alice"), ErrNoConversation)
}

func TestController_HandlerMayReadStateDuringConcurrentMutation(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	c, rec := newTestController(t, b)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	inHandler := make(chan struct{})
	var once sync.Once
	require.NoError(t, c.Subscribe("reader", func(e *models.Event) {
		first := false
		once.Do(func() { first = true })
		if !first {
			return
		}
		close(inHandler)
		// Give the second send time to reach its own publish.
		time.Sleep(50 * time.Millisecond)
		_ = c.Snapshot()
		_ = c.HasMore()
		_ = c.Loading()
	}))

	done := make(chan error, 2)
	go func() {
		_, err := c.Send(ctx, "first")
		done <- err
	}()
	<-inHandler
	go func() {
		_, err := c.Send(ctx, "second")
		done <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("send blocked while a handler read controller state")
		}
	}
	require.Len(t, c.Snapshot().Sequence.Messages(), 2)

	snaps := rec.snapshots()
	for i := 1; i < len(snaps); i++ {
		require.Greater(t, snaps[i].Version, snaps[i-1].Version, "snapshots delivered out of order")
	}
}
