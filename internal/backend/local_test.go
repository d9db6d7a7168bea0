package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/dmfeed/internal/feed"
	"github.com/tOgg1/dmfeed/internal/models"
	"github.com/tOgg1/dmfeed/internal/testutil"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	database, _ := testutil.NewTestDB(t)
	return NewLocal(database)
}

func TestLocal_PagingSurvivesDeletingPageBoundary(t *testing.T) {
	ctx := context.Background()
	database, _ := testutil.NewTestDB(t)
	testutil.SeedMessages(t, database, "alice", "bob", 5)

	c, err := feed.NewController(feed.Session{Viewer: models.User{ID: "alice"}}, NewLocal(database), feed.WithPageSize(2))
	require.NoError(t, err)
	require.NoError(t, c.LoadInitial(ctx, "bob"))

	// m4 is the oldest loaded message, the one the next page starts after.
	require.NoError(t, c.Delete(ctx, "m4"))

	require.NoError(t, c.LoadMore(ctx))
	require.NoError(t, c.LoadMore(ctx))
	require.False(t, c.HasMore())

	var ids []string
	for _, msg := range c.Snapshot().Sequence.Messages() {
		ids = append(ids, msg.ID)
	}
	require.ElementsMatch(t, []string{"m1", "m2", "m3", "m5"}, ids)
}

func TestLocal_CreateFetchDelete(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	first, err := l.CreateMessage(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	second, err := l.CreateMessage(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, second.Status)

	page, err := l.FetchMessages(ctx, models.NewConversationID("alice", "bob"), "", 10)
	require.NoError(t, err)
	require.True(t, page.End())
	require.Len(t, page.Messages, 2)
	require.Equal(t, second.ID, page.Messages[0].ID)

	ok, err := l.DeleteMessage(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.DeleteMessage(ctx, first.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocal_CreateRejectsEmpty(t *testing.T) {
	_, err := newLocal(t).CreateMessage(context.Background(), "alice", "bob", " ")
	require.ErrorIs(t, err, models.ErrContentRequired)
}

func TestLocal_Directory(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	created, err := l.CreateUser(ctx, models.User{Name: "Bob", Username: "bob"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = l.CreateUser(ctx, models.User{Username: "bob"})
	require.True(t, errors.Is(err, ErrUserExists))

	got, err := l.ResolveUser(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = l.ResolveUser(ctx, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)

	users, err := l.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}
