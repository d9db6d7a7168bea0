package backend

import (
	"context"
	"errors"

	"github.com/tOgg1/dmfeed/internal/feed"
	"github.com/tOgg1/dmfeed/internal/models"
)

// Directory errors shared by all backends.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// Directory resolves platform identities.
type Directory interface {
	ResolveUser(ctx context.Context, ref string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
}

// Store is a full backend: feed document store plus user directory.
type Store interface {
	feed.Backend
	Directory
}

var (
	_ Store = (*Local)(nil)
	_ Store = (*Client)(nil)
)
