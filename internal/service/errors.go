package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup of an unknown id.
	ErrNotFound = errors.New("not found")
	// ErrBusy is returned when a send is attempted while a reply is being
	// generated. The session is left untouched.
	ErrBusy = errors.New("session is generating a reply")
	// ErrUnauthenticated is returned when a session is started without a
	// signed-in identity.
	ErrUnauthenticated = errors.New("no signed-in identity")

	ErrEmptyMessage         = fmt.Errorf("%w: message content cannot be empty", ErrValidation)
	ErrEmptyConversation    = fmt.Errorf("%w: conversation has no messages", ErrValidation)
	ErrInvalidRole          = fmt.Errorf("%w: unknown message role", ErrValidation)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)
)
