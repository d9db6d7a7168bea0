package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextString(t *testing.T) {
	cases := map[string]struct {
		ctx  Context
		want string
	}{
		"empty":          {Context{}, "(none)"},
		"handle":         {Context{User: Party{ID: "u-123", Handle: "alice"}}, "@alice"},
		"long id":        {Context{User: Party{ID: "0123456789abcdef"}}, "01234567"},
		"conversation":   {Context{User: Party{ID: "u-1", Handle: "alice"}, Contact: Party{ID: "u-2", Handle: "bob"}}, "@alice -> @bob"},
		"contact no tag": {Context{User: Party{ID: "u-1", Handle: "alice"}, Contact: Party{ID: "u-2"}}, "@alice -> u-2"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.ctx.String())
		})
	}
}

func TestContextSwitchingUserDropsContact(t *testing.T) {
	var c Context
	c.SetUser("u-1", "alice")
	c.SetContact("u-2", "bob")

	c.SetUser("u-1", "alice")
	require.Equal(t, "u-2", c.Contact.ID)

	c.SetUser("u-3", "carol")
	require.Empty(t, c.Contact.ID)
	require.Equal(t, Party{ID: "u-3", Handle: "carol"}, c.User)
	require.False(t, c.UpdatedAt.IsZero())
}

func TestContextStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "context.yaml")
	store := NewContextStore(path)

	empty, err := store.Load()
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())

	saved := &Context{User: Party{ID: "u-1", Handle: "alice"}, Contact: Party{ID: "u-2", Handle: "bob"}}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, saved.User, loaded.User)
	require.Equal(t, saved.Contact, loaded.Contact)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are cleaned up")

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestContextStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user: [unterminated"), 0o644))
	_, err := NewContextStore(path).Load()
	require.Error(t, err)
}
