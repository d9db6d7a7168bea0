package models

// CreateMessageRequest is the body of a message create call.
type CreateMessageRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserIDHeader carries the caller's identity on mutating requests.
const UserIDHeader = "X-User-ID"
