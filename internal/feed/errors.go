package feed

import (
	"errors"

	"github.com/tOgg1/dmfeed/internal/models"
)

// Failure categories surfaced to the rendering layer. All are recoverable.
var (
	ErrFetchFailed  = errors.New("fetch failed")
	ErrCreateFailed = errors.New("create failed")
	ErrDeleteFailed = errors.New("delete failed")
	ErrUnauthorized = errors.New("only the author can delete a message")
)

// Controller errors.
var (
	ErrEndOfHistory        = errors.New("end of history")
	ErrEmptyContent        = models.ErrContentRequired
	ErrNoConversation      = errors.New("no conversation selected")
	ErrConversationChanged = errors.New("conversation changed")
	ErrMessageNotFound     = errors.New("message not found")
	ErrMessagePending      = errors.New("message is not confirmed yet")
)

// NoticeFor maps a failed operation to the notice shown to the user.
// It returns false for errors that are not user-facing failures,
// such as validation errors the form already reports.
func NoticeFor(err error, messageID string) (models.Notice, bool) {
	notice := models.Notice{MessageID: messageID, Err: err}
	switch {
	case err == nil:
		return models.Notice{}, false
	case errors.Is(err, ErrCreateFailed):
		notice.Kind = models.NoticeCreateFailed
		notice.Title = "Message Failed!"
		notice.Description = "There was an error in sending your message. Please try again."
	case errors.Is(err, ErrDeleteFailed):
		notice.Kind = models.NoticeDeleteFailed
		notice.Title = "Delete Failed!"
		notice.Description = "There was an error in deleting your message. Please try again."
	case errors.Is(err, ErrFetchFailed):
		notice.Kind = models.NoticeFetchFailed
		notice.Title = "Loading Failed!"
		notice.Description = "Older messages could not be loaded. Scroll up to try again."
	case errors.Is(err, ErrUnauthorized):
		notice.Kind = models.NoticeUnauthorized
		notice.Title = "Delete Not Allowed"
		notice.Description = "You can only delete your own messages."
	default:
		return models.Notice{}, false
	}
	return notice, true
}
