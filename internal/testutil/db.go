// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tOgg1/dmfeed/internal/db"
	"github.com/tOgg1/dmfeed/internal/models"
)

// SeedEpoch is the creation time of the first seeded message.
var SeedEpoch = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

// NewTestDB opens a migrated SQLite database in a temporary directory.
// The returned cleanup closes it; it is also registered with t.Cleanup.
func NewTestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	cfg := db.DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	database, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	cleanup := func() { _ = database.Close() }
	t.Cleanup(cleanup)

	if _, err := database.MigrateUp(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return database, cleanup
}

// SeedUsers registers one user per username and returns them in order.
func SeedUsers(t *testing.T, database *db.DB, usernames ...string) []models.User {
	t.Helper()
	repo := db.NewUserRepository(database)
	users := make([]models.User, 0, len(usernames))
	for _, username := range usernames {
		user := &models.User{ID: "u-" + username, Name: username, Username: username}
		if err := repo.Create(context.Background(), user); err != nil {
			t.Fatalf("failed to seed user %s: %v", username, err)
		}
		users = append(users, *user)
	}
	return users
}

// SeedMessages stores n messages m1..mn from sender to receiver, one minute
// apart starting at SeedEpoch, and returns them oldest first.
func SeedMessages(t *testing.T, database *db.DB, sender, receiver string, n int) []models.Message {
	t.Helper()
	repo := db.NewMessageRepository(database)
	out := make([]models.Message, 0, n)
	for i := 1; i <= n; i++ {
		msg := &models.Message{
			ID:         fmt.Sprintf("m%d", i),
			SenderID:   sender,
			ReceiverID: receiver,
			Content:    fmt.Sprintf("message %d", i),
			CreatedAt:  SeedEpoch.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), msg); err != nil {
			t.Fatalf("failed to seed message %d: %v", i, err)
		}
		out = append(out, *msg)
	}
	return out
}
