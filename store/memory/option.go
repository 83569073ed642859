package memory

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/meshsandbox/store"
)

type options struct {
	persistence store.Persistence
	logger      *slog.Logger
	clock       func() time.Time
}

// Option configures a Store.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		persistence: NewChunkStore(),
		logger:      slog.Default(),
		clock:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithPersistence sets the strategy used for message metadata and chunks.
func WithPersistence(p store.Persistence) Option {
	return func(o *options) {
		if p != nil {
			o.persistence = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for access timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}
