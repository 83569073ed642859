package memory

import (
	"context"

	"github.com/rbaliyan/meshsandbox/store"
)

var _ store.StatsStore = (*Store)(nil)

// MailboxStats counts the inbox and outbox of a mailbox under one read lock.
func (s *Store) MailboxStats(ctx context.Context, mailboxID string) (*store.MailboxStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	id := store.NormalizeID(mailboxID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mailboxes[id]; !ok {
		return nil, store.ErrNotFound
	}

	stats := &store.MailboxStats{
		InboxCount: int64(s.inboxCountLocked(id)),
		Delivered:  int64(len(s.inboxes[id])),
		Statuses:   make(map[store.Status]int64),
	}
	for _, msgID := range s.outboxes[id] {
		m, ok := s.messages[msgID]
		if !ok {
			continue
		}
		stats.Sent++
		stats.Statuses[m.CurrentStatus()]++
	}
	return stats, nil
}
