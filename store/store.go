// Package store provides the data model and capability interfaces for mailbox,
// message and chunk persistence.
//
// There is a single concrete store, in store/memory, holding the mailbox and
// message indices. What varies between the canned, in-memory and file-backed
// modes is the Persistence strategy injected into it:
//
//   - memory.ReadOnly: serves the canned fixture dataset; every mutation
//     returns ErrNotImplemented.
//   - memory.NewChunkStore: keeps chunk bytes in memory.
//   - file.New: writes message metadata and chunks under a directory.
//
// # Concurrency
//
// A store owns exactly one lock. Every multi-step mutation (send, accept,
// acknowledge, index updates) holds it for its whole critical section, which
// serializes writers across all mailboxes. This is simulator-grade by intent:
// there is no per-mailbox locking and no cross-process coordination.
package store

import (
	"context"
)

// Store is the full capability set of a mailbox store.
type Store interface {
	MailboxReader
	MessageReader
	Mutator
	Lifecycle

	// ReadOnly reports whether mutations are unsupported.
	ReadOnly() bool

	// Close releases persistence resources.
	Close(ctx context.Context) error
}

// MailboxReader provides mailbox lookups.
type MailboxReader interface {
	// GetMailbox returns a copy of the mailbox with InboxCount recomputed.
	// When accessed is true LastAccessed is set to now.
	// Returns ErrNotFound if the mailbox doesn't exist.
	GetMailbox(ctx context.Context, id string, accessed bool) (*Mailbox, error)

	// Mailboxes returns every mailbox, ordered by id.
	Mailboxes(ctx context.Context) ([]*Mailbox, error)

	// LookupByODSCodeAndWorkflowID returns the receiving mailboxes registered
	// for the workflow within the ODS code.
	LookupByODSCodeAndWorkflowID(ctx context.Context, odsCode, workflowID string) ([]*Mailbox, error)

	// LookupByWorkflowID returns the receiving mailboxes registered for the workflow.
	LookupByWorkflowID(ctx context.Context, workflowID string) ([]*Mailbox, error)
}

// MessageReader provides read operations for messages and chunks.
type MessageReader interface {
	// GetMessage returns a copy of the message.
	// Returns ErrNotFound if the message doesn't exist.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// GetChunk returns the payload of chunk n (1-based).
	// Returns ErrChunkNotFound if the chunk is out of range or missing.
	GetChunk(ctx context.Context, msg *Message, n int) ([]byte, error)

	// GetFileSize returns the total size of the stored chunks.
	GetFileSize(ctx context.Context, msg *Message) (int64, error)

	// GetInbox returns the standard inbox: accepted messages, oldest first.
	GetInbox(ctx context.Context, mailboxID string) ([]*Message, error)

	// GetInboxMessages returns the standard inbox filtered by match.
	// A nil match returns the whole standard inbox.
	GetInboxMessages(ctx context.Context, mailboxID string, match func(*Message) bool) ([]*Message, error)

	// GetRichInbox returns every message delivered to the mailbox regardless of status.
	GetRichInbox(ctx context.Context, mailboxID string) ([]*Message, error)

	// GetOutbox returns every message sent by the mailbox, newest first.
	GetOutbox(ctx context.Context, mailboxID string) ([]*Message, error)

	// GetByLocalID returns the sender's messages carrying localID, newest first.
	GetByLocalID(ctx context.Context, mailboxID, localID string) ([]*Message, error)
}

// Mutator provides low-level index and persistence mutations.
// All methods return ErrNotImplemented on a read-only store.
type Mutator interface {
	// SaveMessage stores msg, replacing any previous version.
	SaveMessage(ctx context.Context, msg *Message) error

	// SaveChunk stores chunk n of msg. A nil data removes the chunk.
	SaveChunk(ctx context.Context, msg *Message, n int, data []byte) error

	// AddToInbox appends msg to its recipient's inbox, once.
	AddToInbox(ctx context.Context, msg *Message) error

	// AddToOutbox registers msg in its sender's outbox and local-id index, newest first.
	AddToOutbox(ctx context.Context, msg *Message) error

	// Reset rebuilds all state from the baseline dataset. When clearDisk is true
	// the persistence strategy also removes its stored content.
	Reset(ctx context.Context, clearDisk bool) error

	// ResetMailbox clears one mailbox's inbox, outbox and local-id entries.
	// Messages stay retrievable by id. When clearDisk is true the persistence
	// strategy also removes the mailbox's stored content.
	ResetMailbox(ctx context.Context, mailboxID string, clearDisk bool) error
}

// Lifecycle provides the message state machine transitions.
// Each transition runs under the store lock for its full critical section.
type Lifecycle interface {
	// SendMessage stores chunk 1 (when TotalChunks > 0) and registers msg in
	// the sender's outbox. Single-chunk and REPORT messages are accepted
	// immediately; others stay uploading.
	SendMessage(ctx context.Context, msg *Message, body []byte) error

	// AcceptMessage appends an accepted event if the status differs, recomputes
	// FileSize from the stored chunks and adds msg to the recipient inbox.
	AcceptMessage(ctx context.Context, msg *Message) error

	// AcknowledgeMessage appends an acknowledged event only if msg is accepted.
	AcknowledgeMessage(ctx context.Context, msg *Message) error

	// AddMessageEvent appends ev to msg and saves it.
	AddMessageEvent(ctx context.Context, msg *Message, ev Event) error
}

// Persistence is the strategy a store uses to keep message metadata and chunk
// bytes. The store serializes calls that mutate; implementations still must be
// safe for concurrent reads.
type Persistence interface {
	// ReadOnly reports whether the strategy rejects writes.
	ReadOnly() bool

	// SaveMessage persists message metadata.
	SaveMessage(ctx context.Context, msg *Message) error

	// SaveChunk persists chunk n; nil data removes it.
	SaveChunk(ctx context.Context, msg *Message, n int, data []byte) error

	// GetChunk returns chunk n or ErrChunkNotFound.
	GetChunk(ctx context.Context, msg *Message, n int) ([]byte, error)

	// ChunkSize returns the stored size of chunk n or ErrChunkNotFound.
	ChunkSize(ctx context.Context, msg *Message, n int) (int64, error)

	// Reset drops persisted state. clearDisk controls removal of durable content.
	Reset(ctx context.Context, clearDisk bool) error

	// ResetMailbox drops the persisted state of messages delivered to mailboxID.
	ResetMailbox(ctx context.Context, mailboxID string, clearDisk bool) error

	// Close releases resources.
	Close(ctx context.Context) error
}
