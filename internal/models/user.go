package models

// User is a platform identity as seen by the feed.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// DefaultAvatar is shown for users without an image.
const DefaultAvatar = "/assets/icons/user.svg"

// Avatar returns the user's image or the default icon.
func (u User) Avatar() string {
	if u.ImageURL == "" {
		return DefaultAvatar
	}
	return u.ImageURL
}

// Handle returns the @username form used in headers.
func (u User) Handle() string {
	if u.Username == "" {
		return ""
	}
	return "@" + u.Username
}
