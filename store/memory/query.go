package memory

import (
	"context"
	"errors"

	"github.com/rbaliyan/meshsandbox/store"
)

// GetMailbox returns a copy of the mailbox with its inbox count recomputed.
func (s *Store) GetMailbox(ctx context.Context, id string, accessed bool) (*store.Mailbox, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	id = store.NormalizeID(id)
	if id == "" {
		return nil, store.ErrInvalidID
	}

	if accessed {
		s.mu.Lock()
		defer s.mu.Unlock()
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	mb, ok := s.mailboxes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if accessed {
		s.accessed[id] = s.now()
	}
	return s.mailboxViewLocked(mb), nil
}

// Mailboxes returns every mailbox ordered by id.
func (s *Store) Mailboxes(ctx context.Context) ([]*store.Mailbox, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Mailbox, 0, len(s.mailboxes))
	for _, mb := range s.mailboxes {
		out = append(out, s.mailboxViewLocked(mb))
	}
	sortMailboxes(out)
	return out, nil
}

// LookupByODSCodeAndWorkflowID returns the receivers of workflowID within odsCode.
func (s *Store) LookupByODSCodeAndWorkflowID(ctx context.Context, odsCode, workflowID string) ([]*store.Mailbox, error) {
	return s.lookup(endpointKey(odsCode, workflowID))
}

// LookupByWorkflowID returns the receivers of workflowID.
func (s *Store) LookupByWorkflowID(ctx context.Context, workflowID string) ([]*store.Mailbox, error) {
	return s.lookup(workflowID)
}

func (s *Store) lookup(key string) ([]*store.Mailbox, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.endpoints[key]
	out := make([]*store.Mailbox, 0, len(ids))
	for _, id := range ids {
		if mb, ok := s.mailboxes[id]; ok {
			out = append(out, s.mailboxViewLocked(mb))
		}
	}
	return out, nil
}

// GetMessage returns a copy of the message.
func (s *Store) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	id = store.NormalizeID(id)
	if id == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

// GetChunk returns chunk n of msg. Persisted chunks take precedence over the
// baseline dataset.
func (s *Store) GetChunk(ctx context.Context, msg *store.Message, n int) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if n < 1 || n > msg.TotalChunks {
		return nil, store.ErrChunkNotFound
	}

	data, err := s.persistence.GetChunk(ctx, msg, n)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, store.ErrChunkNotFound) {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.baseChunkLocked(msg.ID, n); ok {
		return append([]byte(nil), b...), nil
	}
	return nil, store.ErrChunkNotFound
}

func (s *Store) baseChunkLocked(id string, n int) ([]byte, bool) {
	chunks := s.baseChunks[id]
	if n < 1 || n > len(chunks) {
		return nil, false
	}
	return chunks[n-1], true
}

// GetFileSize sums the sizes of the stored chunks of msg.
func (s *Store) GetFileSize(ctx context.Context, msg *store.Message) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileSizeLocked(ctx, msg)
}

func (s *Store) fileSizeLocked(ctx context.Context, msg *store.Message) (int64, error) {
	var total int64
	for n := 1; n <= msg.TotalChunks; n++ {
		size, err := s.persistence.ChunkSize(ctx, msg, n)
		switch {
		case err == nil:
			total += size
		case errors.Is(err, store.ErrChunkNotFound):
			if b, ok := s.baseChunkLocked(msg.ID, n); ok {
				total += int64(len(b))
			}
		default:
			return 0, err
		}
	}
	return total, nil
}

// GetInbox returns the accepted messages in the mailbox inbox, oldest first.
func (s *Store) GetInbox(ctx context.Context, mailboxID string) ([]*store.Message, error) {
	return s.GetInboxMessages(ctx, mailboxID, nil)
}

// GetInboxMessages returns the standard inbox filtered by match.
func (s *Store) GetInboxMessages(ctx context.Context, mailboxID string, match func(*store.Message) bool) ([]*store.Message, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	accepted := store.StatusIn(store.StatusAccepted)
	return s.collectLocked(s.inboxes[store.NormalizeID(mailboxID)], func(m *store.Message) bool {
		return accepted(m) && (match == nil || match(m))
	}), nil
}

// GetRichInbox returns every message delivered to the mailbox, oldest first.
func (s *Store) GetRichInbox(ctx context.Context, mailboxID string) ([]*store.Message, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.inboxes[store.NormalizeID(mailboxID)], nil), nil
}

// GetOutbox returns the messages sent by the mailbox, newest first.
func (s *Store) GetOutbox(ctx context.Context, mailboxID string) ([]*store.Message, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(s.outboxes[store.NormalizeID(mailboxID)], nil), nil
}

// GetByLocalID returns the sender's messages carrying localID, newest first.
func (s *Store) GetByLocalID(ctx context.Context, mailboxID, localID string) ([]*store.Message, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLocal := s.localIDs[store.NormalizeID(mailboxID)]
	if byLocal == nil {
		return []*store.Message{}, nil
	}
	return s.collectLocked(byLocal[localID], nil), nil
}
