package models

import (
	"fmt"
	"strings"
)

// ConversationID identifies the history between two users.
// The pair is unordered: A always sorts before or equal to B.
type ConversationID struct {
	A string
	B string
}

// NewConversationID normalizes the unordered pair (x, y).
func NewConversationID(x, y string) ConversationID {
	x = strings.TrimSpace(x)
	y = strings.TrimSpace(y)
	if y < x {
		x, y = y, x
	}
	return ConversationID{A: x, B: y}
}

// ParseConversationID parses the form produced by String.
func ParseConversationID(s string) (ConversationID, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return ConversationID{}, fmt.Errorf("invalid conversation id %q", s)
	}
	return NewConversationID(a, b), nil
}

func (c ConversationID) String() string {
	if c.IsZero() {
		return ""
	}
	return c.A + ":" + c.B
}

// IsZero reports whether no conversation is selected.
func (c ConversationID) IsZero() bool {
	return c.A == "" && c.B == ""
}

// Contains reports whether userID participates in the conversation.
func (c ConversationID) Contains(userID string) bool {
	return userID != "" && (c.A == userID || c.B == userID)
}

// Other returns the participant that is not viewerID.
func (c ConversationID) Other(viewerID string) string {
	if c.A == viewerID {
		return c.B
	}
	return c.A
}
