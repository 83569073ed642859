package memory

import (
	"context"
	"sync"

	"github.com/rbaliyan/meshsandbox/store"
)

type readOnly struct{}

// ReadOnly returns a persistence strategy that rejects every write. A store
// using it serves only its baseline dataset.
func ReadOnly() store.Persistence {
	return readOnly{}
}

func (readOnly) ReadOnly() bool { return true }

func (readOnly) SaveMessage(context.Context, *store.Message) error {
	return store.ErrNotImplemented
}

func (readOnly) SaveChunk(context.Context, *store.Message, int, []byte) error {
	return store.ErrNotImplemented
}

func (readOnly) GetChunk(context.Context, *store.Message, int) ([]byte, error) {
	return nil, store.ErrChunkNotFound
}

func (readOnly) ChunkSize(context.Context, *store.Message, int) (int64, error) {
	return 0, store.ErrChunkNotFound
}

func (readOnly) Reset(context.Context, bool) error { return store.ErrNotImplemented }

func (readOnly) ResetMailbox(context.Context, string, bool) error {
	return store.ErrNotImplemented
}

func (readOnly) Close(context.Context) error { return nil }

// ChunkStore keeps chunk payloads in memory. Message metadata lives only in the
// owning store's index, so SaveMessage is a no-op.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]map[int][]byte
}

var _ store.Persistence = (*ChunkStore)(nil)

// NewChunkStore creates an empty in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[string]map[int][]byte)}
}

// ReadOnly returns false.
func (c *ChunkStore) ReadOnly() bool { return false }

// SaveMessage is a no-op.
func (c *ChunkStore) SaveMessage(context.Context, *store.Message) error { return nil }

// SaveChunk stores a copy of data as chunk n. A nil data removes the chunk.
func (c *ChunkStore) SaveChunk(_ context.Context, msg *store.Message, n int, data []byte) error {
	if n < 1 {
		return store.ErrInvalidChunk
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if data == nil {
		delete(c.chunks[msg.ID], n)
		return nil
	}
	byNum := c.chunks[msg.ID]
	if byNum == nil {
		byNum = make(map[int][]byte)
		c.chunks[msg.ID] = byNum
	}
	byNum[n] = append([]byte(nil), data...)
	return nil
}

// GetChunk returns a copy of chunk n.
func (c *ChunkStore) GetChunk(_ context.Context, msg *store.Message, n int) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.chunks[msg.ID][n]
	if !ok {
		return nil, store.ErrChunkNotFound
	}
	return append([]byte(nil), data...), nil
}

// ChunkSize returns the length of chunk n.
func (c *ChunkStore) ChunkSize(_ context.Context, msg *store.Message, n int) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.chunks[msg.ID][n]
	if !ok {
		return 0, store.ErrChunkNotFound
	}
	return int64(len(data)), nil
}

// Reset drops every chunk.
func (c *ChunkStore) Reset(context.Context, bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = make(map[string]map[int][]byte)
	return nil
}

// ResetMailbox keeps chunks; messages stay retrievable by id after a mailbox reset.
func (c *ChunkStore) ResetMailbox(context.Context, string, bool) error { return nil }

// Close is a no-op.
func (c *ChunkStore) Close(context.Context) error { return nil }
