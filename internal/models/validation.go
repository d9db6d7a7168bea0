package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrContentRequired = errors.New("content is required")
	ErrContentTooLong  = errors.New("content too long")
	ErrUserIDRequired  = errors.New("user id is required")
	ErrUsernameInvalid = errors.New("username must be letters, digits, '-', '_' or '.'")
	ErrSelfMessage     = errors.New("sender and receiver must differ")
)

// FieldError ties a validation failure to the request field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// IsInvalid reports whether err contains at least one FieldError, i.e. the
// caller sent bad input rather than hitting a storage failure.
func IsInvalid(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

// check collects field failures in order.
type check []error

func (c *check) field(name string, err error) {
	if err != nil {
		*c = append(*c, &FieldError{Field: name, Err: err})
	}
}

func (c check) err() error { return errors.Join(c...) }

// ValidateContent rejects blank and oversized message text. Length is
// measured after trimming.
func ValidateContent(content string) error {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return ErrContentRequired
	case utf8.RuneCountInString(content) > MaxContentLength:
		return fmt.Errorf("%w (max %d characters)", ErrContentTooLong, MaxContentLength)
	}
	return nil
}

// ValidateNewMessage checks a send request.
func ValidateNewMessage(senderID, receiverID, content string) error {
	var c check
	senderID, receiverID = strings.TrimSpace(senderID), strings.TrimSpace(receiverID)
	if senderID == "" {
		c.field("senderId", ErrUserIDRequired)
	}
	switch receiverID {
	case "":
		c.field("receiverId", ErrUserIDRequired)
	case senderID:
		c.field("receiverId", ErrSelfMessage)
	}
	c.field("content", ValidateContent(content))
	return c.err()
}

// Validate checks a user record before it is stored.
func (u User) Validate() error {
	var c check
	if strings.TrimSpace(u.ID) == "" {
		c.field("id", ErrUserIDRequired)
	}
	c.field("username", validateUsername(u.Username))
	return c.err()
}

func validateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("username is required")
	}
	for _, r := range name {
		ok := r == '-' || r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return ErrUsernameInvalid
		}
	}
	return nil
}
