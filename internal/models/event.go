package models

import "time"

// EventType categorizes feed events delivered to subscribers.
type EventType string

const (
	// EventTypeSnapshot carries a new render-ready snapshot.
	EventTypeSnapshot EventType = "feed.snapshot"
	// EventTypeNotice carries a user-visible failure notice.
	EventTypeNotice EventType = "feed.notice"
	// EventTypeReset is emitted when the active conversation changes.
	EventTypeReset EventType = "feed.reset"
)

// Event is published by the feed controller after every state change.
type Event struct {
	Type         EventType
	Conversation ConversationID
	Timestamp    time.Time

	// Snapshot is set for EventTypeSnapshot and EventTypeReset.
	Snapshot *Snapshot
	// Notice is set for EventTypeNotice.
	Notice *Notice
}

// Snapshot is an immutable view of the feed for the rendering layer.
type Snapshot struct {
	Conversation ConversationID
	Viewer       User
	Sequence     GroupedSequence
	HasMore      bool
	Loading      bool
	Pending      int
	Version      uint64
}
