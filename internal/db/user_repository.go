package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tOgg1/dmfeed/internal/models"
)

// User repository errors.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this username already exists")
)

// UserRepository handles user persistence.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create adds a user. A missing ID is generated.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if strings.TrimSpace(user.ID) == "" {
		user.ID = uuid.New().String()
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	var imageURL *string
	if user.ImageURL != "" {
		imageURL = &user.ImageURL
	}

	_, err := r.db.exec(ctx, `
		INSERT INTO users (id, name, username, image_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Name,
		user.Username,
		imageURL,
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", strings.TrimPrefix(username, "@"))
}

// Resolve looks up ref as an ID first, then as a username.
func (r *UserRepository) Resolve(ctx context.Context, ref string) (*models.User, error) {
	user, err := r.Get(ctx, ref)
	if errors.Is(err, ErrUserNotFound) {
		return r.GetByUsername(ctx, ref)
	}
	return user, err
}

// List returns all users ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, username, image_url FROM users ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, username, image_url FROM users WHERE `+column+` = ?`, value)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		imageURL sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Username, &imageURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.ImageURL = imageURL.String
	return &user, nil
}
