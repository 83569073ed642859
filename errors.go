package meshsandbox

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/meshsandbox/errcode"
	"github.com/rbaliyan/meshsandbox/store"
)

// Sentinel errors for the meshsandbox package.
// Use errors.Is() to check for these errors.
//
// Errors that have a store-level counterpart wrap it, so
// errors.Is(err, meshsandbox.ErrNotFound) matches store.ErrNotFound too.
var (
	// ErrNotFound is returned when a mailbox or message cannot be found.
	ErrNotFound = fmt.Errorf("meshsandbox: %w", store.ErrNotFound)

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("meshsandbox: store is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("meshsandbox: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("meshsandbox: already connected")

	// ErrUnauthorised matches every *AuthorisationError.
	ErrUnauthorised = errors.New("meshsandbox: unauthorised")

	// ErrInvalidArgument is returned for blank lookup arguments and bad report requests.
	ErrInvalidArgument = errors.New("meshsandbox: invalid argument")

	// ErrMultipleMatches is returned when a local id tracks more than one message.
	ErrMultipleMatches = errors.New("meshsandbox: multiple messages match")

	// ErrResetNotSupported is returned when resetting a read-only store.
	ErrResetNotSupported = fmt.Errorf("meshsandbox: reset not supported: %w", errcode.ErrUnsupported)

	// ErrInvalidPlugin is returned for plugin registrations that cannot be dispatched.
	ErrInvalidPlugin = errors.New("meshsandbox: invalid plugin")
)

// Reasons carried by AuthorisationError.
const (
	ReasonNoMailbox = "no mailbox matched"
)

// AuthorisationError is returned by AuthoriseMailbox.
// Reason is ReasonNoMailbox when the mailbox does not exist, and the
// verifier's reason for every other failure.
type AuthorisationError struct {
	MailboxID string
	Reason    string
	Err       error
}

func (e *AuthorisationError) Error() string {
	return fmt.Sprintf("meshsandbox: mailbox %s not authorised: %s", e.MailboxID, e.Reason)
}

func (e *AuthorisationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnauthorised}
	}
	return []error{ErrUnauthorised, e.Err}
}

// EventPublishError is returned when event publishing fails but the operation succeeded.
// Only returned when WithEventErrorsFatal(true) is set.
type EventPublishError struct {
	Event     string // The event name (e.g., "MessageSent")
	MessageID string // The message ID the event was for
	Err       error  // The underlying publish error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("meshsandbox: event %s publish failed for message %s: %v", e.Event, e.MessageID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and returns details.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}

// failure helpers keep call sites short.

func validation(key errcode.Key, args ...any) *errcode.Error {
	return errcode.New(errcode.ErrValidation, key, args...)
}

func notFound(messageID string) *errcode.Error {
	return errcode.New(errcode.ErrNotFound, errcode.KeyMessageDoesNotExist).WithMessageID(messageID)
}

func forbidden(messageID string) *errcode.Error {
	return errcode.New(errcode.ErrForbidden, errcode.KeyForbidden).WithMessageID(messageID)
}

func gone(messageID string) *errcode.Error {
	return errcode.New(errcode.ErrGone, errcode.KeyMessageGone).WithMessageID(messageID)
}
