package db

import (
	"encoding/base64"
	"encoding/json"

	"github.com/tOgg1/dmfeed/internal/models"
)

// pageCursor marks the boundary after the last message of a page. It holds
// the keyset position itself, so it stays valid after that message is
// deleted.
type pageCursor struct {
	Conversation string `json:"c"`
	CreatedAt    string `json:"t"`
	ID           string `json:"i"`
}

func encodeCursor(conv models.ConversationID, last models.Message) string {
	data, _ := json.Marshal(pageCursor{
		Conversation: conv.String(),
		CreatedAt:    formatTime(last.CreatedAt),
		ID:           last.ID,
	})
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor returns ErrInvalidCursor for malformed cursors and for
// cursors issued for another conversation.
func decodeCursor(conv models.ConversationID, raw string) (pageCursor, error) {
	var c pageCursor
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return c, ErrInvalidCursor
	}
	if err := json.Unmarshal(data, &c); err != nil || c.ID == "" || c.Conversation != conv.String() {
		return c, ErrInvalidCursor
	}
	if _, err := parseTime(c.CreatedAt); err != nil {
		return c, ErrInvalidCursor
	}
	return c, nil
}
