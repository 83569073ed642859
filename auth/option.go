package auth

import "log/slog"

type options struct {
	mode      Mode
	sharedKey string
	logger    *slog.Logger
}

// Option configures a Verifier.
type Option func(*options)

// DefaultSharedKey is the HMAC secret used when none is configured.
const DefaultSharedKey = "Banana"

func newOptions(opts ...Option) *options {
	o := &options{
		mode:      ModeNone,
		sharedKey: DefaultSharedKey,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithMode sets the verification mode.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithSharedKey sets the HMAC secret used in full mode.
func WithSharedKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.sharedKey = key
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
