// Package file provides a filesystem persistence strategy for the memory store.
//
// Layout under the root directory:
//
//	{recipient}/in/{message_id}.json   message metadata
//	{recipient}/in/{message_id}/{n}    chunk n
//
// Writes go to a temp file that is renamed into place.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rbaliyan/meshsandbox/store"
)

// Store persists message metadata and chunks under a directory.
type Store struct {
	dir       string
	retention time.Duration
	logger    *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ store.Persistence = (*Store)(nil)

// New creates the root directory if needed and returns a file persistence.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("file: empty directory")
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		retention: o.retention,
		logger:    o.logger,
		done:      make(chan struct{}),
	}

	if s.retention > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}
	return s, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// ReadOnly returns false.
func (s *Store) ReadOnly() bool { return false }

func (s *Store) messageDir(msg *store.Message) string {
	return filepath.Join(s.dir, msg.Recipient.MailboxID, "in", msg.ID)
}

func (s *Store) chunkPath(msg *store.Message, n int) string {
	return filepath.Join(s.messageDir(msg), strconv.Itoa(n))
}

// SaveMessage writes the message metadata as JSON.
func (s *Store) SaveMessage(_ context.Context, msg *store.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.writeFile(s.messageDir(msg)+".json", data)
}

// SaveChunk writes chunk n. A nil data removes the chunk file.
func (s *Store) SaveChunk(_ context.Context, msg *store.Message, n int, data []byte) error {
	if n < 1 {
		return store.ErrInvalidChunk
	}
	path := s.chunkPath(msg, n)
	if data == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove chunk: %w", err)
		}
		return nil
	}
	return s.writeFile(path, data)
}

// GetChunk reads chunk n.
func (s *Store) GetChunk(_ context.Context, msg *store.Message, n int) ([]byte, error) {
	data, err := os.ReadFile(s.chunkPath(msg, n))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrChunkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read chunk: %w", err)
	}
	return data, nil
}

// ChunkSize returns the on-disk size of chunk n.
func (s *Store) ChunkSize(_ context.Context, msg *store.Message, n int) (int64, error) {
	info, err := os.Stat(s.chunkPath(msg, n))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, store.ErrChunkNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("stat chunk: %w", err)
	}
	return info.Size(), nil
}

// Reset removes every stored file when clearDisk is true.
func (s *Store) Reset(_ context.Context, clearDisk bool) error {
	if !clearDisk {
		return nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read store dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}
	s.logger.Info("file store cleared", "dir", s.dir)
	return nil
}

// ResetMailbox removes the mailbox directory when clearDisk is true.
func (s *Store) ResetMailbox(_ context.Context, mailboxID string, clearDisk bool) error {
	if !clearDisk {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.dir, store.NormalizeID(mailboxID))); err != nil {
		return fmt.Errorf("remove mailbox dir: %w", err)
	}
	return nil
}

// Close stops the cleanup loop.
func (s *Store) Close(_ context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

func (s *Store) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// cleanupLoop periodically removes expired message files.
func (s *Store) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanupExpired(time.Now())
		}
	}
}

// cleanupExpired removes message metadata and chunk directories last
// modified before now minus the retention period.
func (s *Store) cleanupExpired(now time.Time) int {
	inboxes, err := filepath.Glob(filepath.Join(s.dir, "*", "in"))
	if err != nil {
		s.logger.Warn("failed to list inboxes for cleanup", "error", err)
		return 0
	}

	var removed int
	for _, inbox := range inboxes {
		entries, err := os.ReadDir(inbox)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil || now.Sub(info.ModTime()) <= s.retention {
				continue
			}
			if err := os.RemoveAll(filepath.Join(inbox, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Info("file store cleanup completed", "removed", removed)
	}
	return removed
}
