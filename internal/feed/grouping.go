package feed

import "github.com/tOgg1/dmfeed/internal/models"

// Render orders a newest-first sequence for display (oldest at the top,
// newest at the bottom) and groups consecutive messages by sender. The
// avatar is shown once per group, on its chronologically last message.
// Render does not modify seq and always returns the same grouping for the
// same input.
func Render(seq []models.Message) models.GroupedSequence {
	var out models.GroupedSequence
	for i := len(seq) - 1; i >= 0; i-- {
		msg := seq[i]
		n := len(out.Groups)
		if n == 0 || out.Groups[n-1].SenderID != msg.SenderID {
			out.Groups = append(out.Groups, models.Group{SenderID: msg.SenderID})
			n++
		}
		out.Groups[n-1].Entries = append(out.Groups[n-1].Entries, models.Entry{Message: msg})
	}
	for i := range out.Groups {
		entries := out.Groups[i].Entries
		entries[len(entries)-1].ShowAvatar = true
	}
	return out
}
