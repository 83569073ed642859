package store

import (
	"context"
	"maps"
)

// MailboxStats holds aggregate counts for one mailbox.
type MailboxStats struct {
	// InboxCount is the number of accepted messages awaiting download.
	InboxCount int64 `json:"inbox_count"`
	// Delivered is the number of messages ever delivered to the inbox.
	Delivered int64 `json:"delivered"`
	// Sent is the number of messages in the outbox.
	Sent int64 `json:"sent"`
	// Statuses counts outbox messages by current status.
	Statuses map[Status]int64 `json:"statuses"`
}

// Clone returns a deep copy of the stats.
func (s *MailboxStats) Clone() *MailboxStats {
	c := *s
	if s.Statuses != nil {
		c.Statuses = make(map[Status]int64, len(s.Statuses))
		maps.Copy(c.Statuses, s.Statuses)
	}
	return &c
}

// StatsStore provides aggregate mailbox statistics.
type StatsStore interface {
	// MailboxStats returns the counts for a mailbox in a single pass.
	// Returns ErrNotFound if the mailbox doesn't exist.
	MailboxStats(ctx context.Context, mailboxID string) (*MailboxStats, error)
}
