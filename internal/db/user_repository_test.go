package db

import (
	"context"
	"errors"
	"testing"

	"github.com/tOgg1/dmfeed/internal/models"
)

func TestUserRepositoryCreateAndResolve(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	defer database.Close()
	repo := NewUserRepository(database)

	user := &models.User{Name: "Alice", Username: "alice"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	byID, err := repo.Resolve(ctx, user.ID)
	if err != nil {
		t.Fatalf("Resolve by id: %v", err)
	}
	byName, err := repo.Resolve(ctx, "@alice")
	if err != nil {
		t.Fatalf("Resolve by username: %v", err)
	}
	if byID.ID != byName.ID || byName.Name != "Alice" {
		t.Fatalf("unexpected users: %+v %+v", byID, byName)
	}
	if byName.Avatar() != models.DefaultAvatar {
		t.Fatalf("expected default avatar, got %q", byName.Avatar())
	}

	if _, err := repo.Resolve(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepositoryDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	defer database.Close()
	repo := NewUserRepository(database)

	if err := repo.Create(ctx, &models.User{ID: "u1", Username: "bob"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, &models.User{ID: "u2", Username: "bob"})
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	if err := repo.Create(ctx, &models.User{ID: "u3", Username: "carol", ImageURL: "https://img/c.png"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].Username != "bob" || users[1].ImageURL != "https://img/c.png" {
		t.Fatalf("unexpected users: %+v", users)
	}
}
