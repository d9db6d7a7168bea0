// Package models defines the core data types for the direct-message feed.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a message in the feed.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// ProvisionalPrefix marks ids generated locally for messages not yet persisted.
const ProvisionalPrefix = "tmp-"

// MaxContentLength is the maximum message length in runes.
const MaxContentLength = 2000

// Message is a single direct message.
type Message struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
	Status     Status    `json:"status,omitempty"`
}

// NewProvisionalID returns a locally generated id for a pending message.
func NewProvisionalID() string {
	return ProvisionalPrefix + uuid.NewString()
}

// IsProvisional reports whether the message carries a locally generated id.
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

// Conversation returns the conversation this message belongs to.
func (m Message) Conversation() ConversationID {
	return NewConversationID(m.SenderID, m.ReceiverID)
}

// ReceivedBy reports whether userID is the receiver of the message.
func (m Message) ReceivedBy(userID string) bool {
	return userID != "" && m.ReceiverID == userID
}

// Page is one batch of messages returned by a history fetch, newest first.
type Page struct {
	Messages   []Message `json:"documents"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// End reports whether this page is the last one in the history.
func (p Page) End() bool {
	return strings.TrimSpace(p.NextCursor) == ""
}
