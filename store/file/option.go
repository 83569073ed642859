package file

import (
	"log/slog"
	"time"
)

// options holds file persistence configuration.
type options struct {
	retention time.Duration
	logger    *slog.Logger
}

// Option configures the file persistence.
type Option func(*options)

// WithRetention enables periodic removal of message files older than d.
// Default is 0, which disables cleanup.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retention = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
