// Package memory provides the indexed mailbox store used by every store mode.
//
// The store keeps mailboxes, messages and the inbox, outbox, local-id and
// workflow endpoint indices in memory. Chunk bytes and message metadata are
// delegated to an injected store.Persistence: ReadOnly for the canned fixture
// mode, NewChunkStore for the in-memory mode, or file.New for the file mode.
package memory

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/meshsandbox/store"
)

// Store implements store.Store.
// Safe for concurrent use. All mutations are serialized by a single lock.
type Store struct {
	mu sync.RWMutex

	base        *store.Dataset
	persistence store.Persistence
	logger      *slog.Logger
	now         func() time.Time

	mailboxes map[string]*store.Mailbox
	messages  map[string]*store.Message
	// inboxes holds message ids per recipient, oldest first.
	inboxes map[string][]string
	// outboxes holds message ids per sender, newest first.
	outboxes map[string][]string
	// localIDs maps sender -> local id -> message ids, newest first.
	localIDs map[string]map[string][]string
	// endpoints maps "WORKFLOW" and "ODS/WORKFLOW" to receiving mailbox ids.
	endpoints  map[string][]string
	baseChunks map[string][][]byte
	accessed   map[string]time.Time

	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

// New creates a store over the baseline dataset. A nil dataset yields an empty
// store. Without WithPersistence chunks are kept in memory.
func New(data *store.Dataset, opts ...Option) *Store {
	o := newOptions(opts...)
	s := &Store{
		base:        data.Clone(),
		persistence: o.persistence,
		logger:      o.logger,
		now:         o.clock,
	}
	s.rebuild()
	return s
}

// ReadOnly reports whether mutations are rejected.
func (s *Store) ReadOnly() bool {
	return s.persistence.ReadOnly()
}

// Close releases the persistence strategy. Further calls fail with store.ErrClosed.
func (s *Store) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.persistence.Close(ctx)
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) checkWritable() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.persistence.ReadOnly() {
		return store.ErrNotImplemented
	}
	return nil
}

// rebuild replaces all indices with a fresh copy of the baseline.
// Callers must hold s.mu for writing, except from New.
func (s *Store) rebuild() {
	data := s.base.Clone()

	s.mailboxes = make(map[string]*store.Mailbox, len(data.Mailboxes))
	s.messages = make(map[string]*store.Message, len(data.Messages))
	s.inboxes = make(map[string][]string)
	s.outboxes = make(map[string][]string)
	s.localIDs = make(map[string]map[string][]string)
	s.endpoints = make(map[string][]string)
	s.baseChunks = data.Chunks
	s.accessed = make(map[string]time.Time)

	for _, mb := range data.Mailboxes {
		mb.ID = store.NormalizeID(mb.ID)
		mb.InboxCount = 0
		mb.LastAccessed = time.Time{}
		s.mailboxes[mb.ID] = mb
	}

	for _, wf := range data.Workflows {
		for _, id := range wf.Receivers {
			mb, ok := s.mailboxes[id]
			if !ok {
				continue
			}
			s.endpoints[wf.ID] = appendOnce(s.endpoints[wf.ID], id)
			if mb.ODSCode != "" {
				key := endpointKey(mb.ODSCode, wf.ID)
				s.endpoints[key] = appendOnce(s.endpoints[key], id)
			}
		}
	}

	msgs := slices.Clone(data.Messages)
	slices.SortStableFunc(msgs, func(a, b *store.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, m := range msgs {
		s.messages[m.ID] = m
		if _, ok := s.mailboxes[m.Sender.MailboxID]; ok {
			s.addOutboxLocked(m)
		}
		if m.CurrentStatus() == store.StatusAccepted {
			if _, ok := s.mailboxes[m.Recipient.MailboxID]; ok {
				s.addInboxLocked(m)
			}
		}
	}
}

func endpointKey(odsCode, workflowID string) string {
	return store.NormalizeID(odsCode) + "/" + workflowID
}

func appendOnce(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func prependOnce(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return slices.Insert(ids, 0, id)
}

// inboxCountLocked counts the accepted messages in a mailbox inbox.
func (s *Store) inboxCountLocked(mailboxID string) int {
	n := 0
	for _, id := range s.inboxes[mailboxID] {
		if m, ok := s.messages[id]; ok && m.CurrentStatus() == store.StatusAccepted {
			n++
		}
	}
	return n
}

func (s *Store) mailboxViewLocked(mb *store.Mailbox) *store.Mailbox {
	c := mb.Clone()
	c.InboxCount = s.inboxCountLocked(mb.ID)
	c.LastAccessed = s.accessed[mb.ID]
	return c
}

func (s *Store) collectLocked(ids []string, match func(*store.Message) bool) []*store.Message {
	out := make([]*store.Message, 0, len(ids))
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		if match != nil && !match(m) {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

func sortMailboxes(mbs []*store.Mailbox) {
	slices.SortFunc(mbs, func(a, b *store.Mailbox) int { return cmp.Compare(a.ID, b.ID) })
}
