// Package backend provides the document stores the feed controller talks
// to: the local SQLite database and a remote dmfeed server.
package backend

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tOgg1/dmfeed/internal/db"
	"github.com/tOgg1/dmfeed/internal/logging"
	"github.com/tOgg1/dmfeed/internal/models"
)

// Local serves the feed straight from the SQLite database.
type Local struct {
	messages *db.MessageRepository
	users    *db.UserRepository
	logger   zerolog.Logger
}

// NewLocal creates a backend over database.
func NewLocal(database *db.DB) *Local {
	return &Local{
		messages: db.NewMessageRepository(database),
		users:    db.NewUserRepository(database),
		logger:   logging.Component("backend-local"),
	}
}

// FetchMessages returns one page of conv, newest first.
func (l *Local) FetchMessages(ctx context.Context, conv models.ConversationID, cursor string, limit int) (models.Page, error) {
	return l.messages.ListConversation(ctx, conv, cursor, limit)
}

// CreateMessage stores a new message and returns the persisted record.
func (l *Local) CreateMessage(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	msg := models.Message{SenderID: senderID, ReceiverID: receiverID, Content: content}
	if err := l.messages.Create(ctx, &msg); err != nil {
		return models.Message{}, err
	}
	l.logger.Debug().Str("message_id", msg.ID).Str("conversation", msg.Conversation().String()).Msg("message created")
	return msg, nil
}

// DeleteMessage removes a message. It reports false when the message did
// not exist.
func (l *Local) DeleteMessage(ctx context.Context, messageID string) (bool, error) {
	err := l.messages.Delete(ctx, messageID)
	if errors.Is(err, db.ErrMessageNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResolveUser looks up a user by id or username.
func (l *Local) ResolveUser(ctx context.Context, ref string) (models.User, error) {
	user, err := l.users.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return *user, nil
}

// ListUsers returns every known user.
func (l *Local) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := l.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, *u)
	}
	return out, nil
}

// CreateUser registers a user. A missing id is generated.
func (l *Local) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if err := l.users.Create(ctx, &user); err != nil {
		if errors.Is(err, db.ErrUserAlreadyExists) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}
	return user, nil
}
