package models

// NoticeKind categorizes user-visible failure notifications.
type NoticeKind string

const (
	NoticeFetchFailed  NoticeKind = "fetch_failed"
	NoticeCreateFailed NoticeKind = "create_failed"
	NoticeDeleteFailed NoticeKind = "delete_failed"
	NoticeUnauthorized NoticeKind = "unauthorized"
)

// Notice is a recoverable, non-fatal notification for the rendering layer.
type Notice struct {
	Kind        NoticeKind
	Title       string
	Description string
	MessageID   string
	Err         error
}

func (n Notice) String() string {
	if n.Description == "" {
		return n.Title
	}
	return n.Title + " " + n.Description
}
