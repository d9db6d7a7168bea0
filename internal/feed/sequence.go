package feed

import "github.com/tOgg1/dmfeed/internal/models"

// messageList is the merged in-memory history, newest first.
// Lookups go by id because indices shift as pages load and items are removed.
type messageList struct {
	items []models.Message
}

func (l *messageList) reset() {
	l.items = nil
}

func (l *messageList) len() int {
	return len(l.items)
}

func (l *messageList) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *messageList) get(id string) (models.Message, bool) {
	if i := l.index(id); i >= 0 {
		return l.items[i], true
	}
	return models.Message{}, false
}

// prepend inserts msg as the newest message.
func (l *messageList) prepend(msg models.Message) {
	l.items = append(l.items, models.Message{})
	copy(l.items[1:], l.items)
	l.items[0] = msg
}

// appendPage adds an older page to the tail, skipping ids already present.
func (l *messageList) appendPage(msgs []models.Message) int {
	added := 0
	for _, msg := range msgs {
		if l.index(msg.ID) >= 0 {
			continue
		}
		if msg.Status == "" {
			msg.Status = models.StatusConfirmed
		}
		l.items = append(l.items, msg)
		added++
	}
	return added
}

// replace swaps the entry with id for msg in place.
func (l *messageList) replace(id string, msg models.Message) bool {
	i := l.index(id)
	if i < 0 {
		return false
	}
	l.items[i] = msg
	return true
}

func (l *messageList) remove(id string) (models.Message, bool) {
	i := l.index(id)
	if i < 0 {
		return models.Message{}, false
	}
	msg := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	return msg, true
}
