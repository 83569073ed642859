package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a mailbox or message cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrChunkNotFound is returned when a chunk is out of range or missing.
	ErrChunkNotFound = errors.New("store: chunk not found")

	// ErrNotImplemented is returned by mutations against a read-only store.
	ErrNotImplemented = errors.New("store: not implemented")

	// ErrInvalidID is returned when an empty or malformed id is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrInvalidChunk is returned for a chunk number outside 1..TotalChunks.
	ErrInvalidChunk = errors.New("store: invalid chunk number")

	// ErrClosed is returned when operations are attempted after Close().
	ErrClosed = errors.New("store: closed")
)

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsChunkNotFound(err error) bool {
	return errors.Is(err, ErrChunkNotFound)
}

func IsNotImplemented(err error) bool {
	return errors.Is(err, ErrNotImplemented)
}

func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
