package models

// Entry is one rendered message row.
type Entry struct {
	Message    Message
	ShowAvatar bool
}

// Group is a display-consecutive run of messages from one sender,
// oldest first.
type Group struct {
	SenderID string
	Entries  []Entry
}

// AvatarID returns the id of the message that carries the group's avatar.
func (g Group) AvatarID() string {
	for i := len(g.Entries) - 1; i >= 0; i-- {
		if g.Entries[i].ShowAvatar {
			return g.Entries[i].Message.ID
		}
	}
	return ""
}

// GroupedSequence is the render-ready feed: groups top to bottom,
// oldest to newest.
type GroupedSequence struct {
	Groups []Group
}

// Len returns the number of messages across all groups.
func (s GroupedSequence) Len() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Entries)
	}
	return n
}

// Messages returns every message in display order.
func (s GroupedSequence) Messages() []Message {
	out := make([]Message, 0, s.Len())
	for _, g := range s.Groups {
		for _, e := range g.Entries {
			out = append(out, e.Message)
		}
	}
	return out
}
