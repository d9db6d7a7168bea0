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

// Message repository errors.
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidCursor   = errors.New("invalid cursor")
)

const defaultMessageLimit = 20

// MessageRepository handles direct message persistence.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a new message. ID and CreatedAt are assigned when empty.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := models.ValidateNewMessage(msg.SenderID, msg.ReceiverID, msg.Content); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	msg.SenderID = strings.TrimSpace(msg.SenderID)
	msg.ReceiverID = strings.TrimSpace(msg.ReceiverID)
	msg.Content = strings.TrimSpace(msg.Content)

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	} else {
		msg.CreatedAt = msg.CreatedAt.UTC()
	}
	msg.Status = models.StatusConfirmed

	_, err := r.db.exec(ctx, `
		INSERT INTO messages (id, conversation, sender_id, receiver_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.Conversation().String(),
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		formatTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Get retrieves a message by ID.
func (r *MessageRepository) Get(ctx context.Context, id string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	return msg, err
}

// Delete removes a message. It returns ErrMessageNotFound when nothing was
// deleted.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.exec(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ListConversation returns one page of the conversation, newest first.
// cursor is the NextCursor of the previous page; an empty cursor starts at
// the newest message. NextCursor is empty on the last page.
func (r *MessageRepository) ListConversation(ctx context.Context, conv models.ConversationID, cursor string, limit int) (models.Page, error) {
	if conv.IsZero() {
		return models.Page{}, fmt.Errorf("conversation is required")
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	query := `SELECT id, sender_id, receiver_id, content, created_at FROM messages WHERE conversation = ?`
	args := []any{conv.String()}

	if cursor != "" {
		pos, err := decodeCursor(conv, cursor)
		if err != nil {
			return models.Page{}, err
		}
		query += ` AND (created_at, id) < (?, ?)`
		args = append(args, pos.CreatedAt, pos.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return models.Page{}, err
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return models.Page{}, fmt.Errorf("error iterating messages: %w", err)
	}

	page := models.Page{Messages: msgs}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		page.NextCursor = encodeCursor(conv, msgs[limit-1])
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg       models.Message
		createdAt string
	)
	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	ts, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	msg.CreatedAt = ts
	msg.Status = models.StatusConfirmed
	return &msg, nil
}
