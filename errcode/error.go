package errcode

import (
	"errors"
	"strings"
)

// Kind sentinels. A *Error unwraps to exactly one of them.
var (
	// ErrAuthentication covers unreadable headers, token mismatches and unknown mailboxes.
	ErrAuthentication = errors.New("errcode: authentication failed")

	// ErrValidation covers malformed request values: chunk headers, encodings, checksums.
	ErrValidation = errors.New("errcode: validation failed")

	// ErrNotFound is returned for an unknown mailbox or message.
	ErrNotFound = errors.New("errcode: not found")

	// ErrForbidden is returned when a mailbox acts on a message it does not own.
	ErrForbidden = errors.New("errcode: forbidden")

	// ErrConflict is returned when a message is in the wrong state for the operation.
	ErrConflict = errors.New("errcode: state conflict")

	// ErrGone is returned when a message is outside its deliverable status window.
	ErrGone = errors.New("errcode: gone")

	// ErrUnsupported is returned for mutations against a read-only store.
	ErrUnsupported = errors.New("errcode: unsupported")
)

// Error is a typed failure carrying a taxonomy key.
// The transport layer renders it; the core never formats wire responses.
type Error struct {
	Key       Key
	Kind      error    // one of the kind sentinels
	Args      []any    // description template arguments
	MessageID string   // optional
	Fields    []string // offending fields, when the failure names them
	Err       error    // optional cause
}

// New returns an *Error for key with the given kind sentinel.
func New(kind error, key Key, args ...any) *Error {
	return &Error{Key: key, Kind: kind, Args: args}
}

// WithMessageID sets the message id and returns e.
func (e *Error) WithMessageID(id string) *Error {
	e.MessageID = id
	return e
}

// WithFields records the offending fields and returns e.
func (e *Error) WithFields(fields ...string) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

// WithCause records an underlying error and returns e.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Entry returns the taxonomy entry for the key, if any.
func (e *Error) Entry() (Entry, bool) {
	return Lookup(e.Key)
}

// Description renders the entry description, or the key when the key has no entry.
func (e *Error) Description() string {
	if entry, ok := Lookup(e.Key); ok {
		return Render(entry.Description, e.Args...)
	}
	return Render(string(e.Key), e.Args...)
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("errcode: ")
	sb.WriteString(e.Description())
	if e.MessageID != "" {
		sb.WriteString(" (message ")
		sb.WriteString(e.MessageID)
		sb.WriteString(")")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the kind sentinel and the cause, so errors.Is matches either.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKey reports whether err carries the given taxonomy key.
func IsKey(err error, key Key) bool {
	e, ok := As(err)
	return ok && e.Key == key
}

// KindOf returns the kind sentinel of err, or nil when err is not classified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrAuthentication, ErrValidation, ErrNotFound, ErrForbidden,
		ErrConflict, ErrGone, ErrUnsupported,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Payload is the wire body for a taxonomy failure.
type Payload struct {
	MessageID        string   `json:"messageID,omitempty"`
	ErrorEvent       string   `json:"errorEvent,omitempty"`
	ErrorCode        string   `json:"errorCode,omitempty"`
	ErrorDescription string   `json:"errorDescription"`
	Fields           []string `json:"fields,omitempty"`
}

// PayloadOf builds the wire body for err. Keys without a taxonomy entry
// produce a description-only payload.
func PayloadOf(err error) Payload {
	e, ok := As(err)
	if !ok {
		return Payload{ErrorDescription: err.Error()}
	}
	p := Payload{
		MessageID:        e.MessageID,
		ErrorDescription: e.Description(),
		Fields:           e.Fields,
	}
	if entry, ok := e.Entry(); ok {
		p.ErrorEvent = string(entry.Phase)
		p.ErrorCode = entry.Code
	}
	return p
}
