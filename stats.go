package meshsandbox

import (
	"context"
	"sync"
	"time"

	"github.com/rbaliyan/meshsandbox/store"
)

// statsEntry holds a cached stats snapshot for a single mailbox.
type statsEntry struct {
	mu        sync.Mutex
	stats     *store.MailboxStats
	updatedAt time.Time
}

// Stats returns inbox and outbox counters for a mailbox.
// Results are cached for the stats refresh interval and dropped whenever the
// engine mutates one of the mailbox's messages.
// Returns ErrNotFound for an unknown mailbox, and errors when the store does
// not implement store.StatsStore.
func (e *Engine) Stats(ctx context.Context, mailboxID string) (*store.MailboxStats, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	ss, ok := e.store.(store.StatsStore)
	if !ok {
		return nil, store.ErrNotImplemented
	}
	mailboxID = store.NormalizeID(mailboxID)
	now := time.Now()

	// Fast path: return cached entry if within TTL.
	if val, ok := e.statsCache.Load(mailboxID); ok {
		entry := val.(*statsEntry)
		entry.mu.Lock()
		if entry.stats != nil && now.Sub(entry.updatedAt) < e.opts.statsRefreshInterval {
			clone := entry.stats.Clone()
			entry.mu.Unlock()
			return clone, nil
		}
		entry.mu.Unlock()
	}

	// Slow path: fetch from store. A snapshot read across an invalidation
	// may predate the write, so it is returned but not cached.
	e.statsMu.Lock()
	gen := e.statsGen
	e.statsMu.Unlock()

	stats, err := ss.MailboxStats(ctx, mailboxID)
	if err != nil {
		return nil, err
	}

	e.statsMu.Lock()
	if e.statsGen == gen {
		e.statsCache.Store(mailboxID, &statsEntry{stats: stats, updatedAt: now})
	}
	e.statsMu.Unlock()
	return stats.Clone(), nil
}

// invalidateStats drops the cached stats of the given mailboxes.
func (e *Engine) invalidateStats(mailboxIDs ...string) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.statsGen++
	for _, id := range mailboxIDs {
		if id != "" {
			e.statsCache.Delete(store.NormalizeID(id))
		}
	}
}

// clearStats drops every cached snapshot.
func (e *Engine) clearStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.statsGen++
	e.statsCache.Clear()
}
