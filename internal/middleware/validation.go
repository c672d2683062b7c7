package middleware

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxContentLength bounds a single chat message.
	MaxContentLength = 100000
	// MaxMessageIDLength bounds message ids, which are not always UUIDs.
	MaxMessageIDLength = 128
	// MinPasswordLength is the shortest accepted password on sign-up.
	MinPasswordLength = 6
	maxNameLength     = 100
	maxQueryLength    = 256
	maxTitleLength    = 200
)

// ValidateMessageContent validates message content. Blank content is left to
// the session, which rejects it after trimming.
func ValidateMessageContent(content string) error {
	if len(content) > MaxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateMessageID validates a message ID. Greeting messages carry
// non-UUID ids such as "welcome", so only the shape is checked.
func ValidateMessageID(id string) error {
	if id == "" || len(id) > MaxMessageIDLength || strings.ContainsAny(id, "/\\") {
		return errors.New("invalid message ID format")
	}
	return nil
}

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address")
	}
	return nil
}

// ValidatePassword validates a new password.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

// ValidateName validates a display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return errors.New("name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("name must be valid UTF-8")
	}
	return nil
}

// ValidateTitle validates a conversation title. An empty title is allowed
// and falls back to the default.
func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > maxTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// ValidateSearchQuery validates a conversation search filter.
func ValidateSearchQuery(q string) error {
	if len(q) > maxQueryLength {
		return errors.New("search query exceeds maximum length")
	}
	if !utf8.ValidString(q) {
		return errors.New("search query must be valid UTF-8")
	}
	return nil
}
