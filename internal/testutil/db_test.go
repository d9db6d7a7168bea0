package testutil

import (
	"context"
	"testing"

	"github.com/tOgg1/dmfeed/internal/db"
	"github.com/tOgg1/dmfeed/internal/models"
)

func TestNewTestDBIsMigrated(t *testing.T) {
	database, cleanup := NewTestDB(t)
	defer cleanup()

	version, err := database.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version < 1 {
		t.Fatalf("expected migrated schema, got version %d", version)
	}
}

func TestSeedFixtures(t *testing.T) {
	database, _ := NewTestDB(t)
	users := SeedUsers(t, database, "alice", "bob")
	if users[1].ID != "u-bob" {
		t.Fatalf("unexpected seeded id %q", users[1].ID)
	}

	msgs := SeedMessages(t, database, users[0].ID, users[1].ID, 3)
	if len(msgs) != 3 || msgs[2].ID != "m3" {
		t.Fatalf("unexpected seeded messages: %+v", msgs)
	}

	conv := models.NewConversationID(users[0].ID, users[1].ID)
	page, err := db.NewMessageRepository(database).ListConversation(context.Background(), conv, "", 10)
	if err != nil {
		t.Fatalf("ListConversation: %v", err)
	}
	if len(page.Messages) != 3 || page.Messages[0].ID != "m3" {
		t.Fatalf("expected newest first, got %+v", page.Messages)
	}
}
