package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned when a message has neither text nor an image.
	ErrEmptyMessage = errors.New("message needs text or an image")
	// ErrMessageTooLong is returned when message text exceeds MaxTextLength.
	ErrMessageTooLong = errors.New("message text too long")
	// ErrNotFound is returned when the target item is not in the feed.
	ErrNotFound = errors.New("not found")
	// ErrNoMorePages is returned when a next page is requested after the last one.
	ErrNoMorePages = errors.New("no more pages")
	// ErrNotLoaded is returned when a continuation is requested before the first page.
	ErrNotLoaded = errors.New("feed not loaded")
	// ErrClosed is returned by a view that has gone out of scope.
	ErrClosed = errors.New("feed closed")
	// ErrMessageNotSent is returned when reacting to a message the server never accepted.
	ErrMessageNotSent = errors.New("message not sent")
	// ErrNotFailed is returned when retrying or dismissing a message that has not failed.
	ErrNotFailed = errors.New("message has not failed")
	// ErrRejected marks a typed failure returned by the gateway, as opposed to a
	// transport error.
	ErrRejected = errors.New("rejected by gateway")
	// ErrRolledBack is wrapped by every MutationError.
	ErrRolledBack = errors.New("mutation rolled back")
)

// MutationError is returned when an optimistic mutation failed remotely and its local
// effect was rolled back.
type MutationError struct {
	Kind   MutationKind
	Target string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Target, e.Err)
}

// Unwrap exposes both the rollback marker and the remote cause.
func (e *MutationError) Unwrap() []error {
	return []error{ErrRolledBack, e.Err}
}
