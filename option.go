package meshsandbox

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/meshsandbox/auth"
	"github.com/rbaliyan/meshsandbox/content"
	"github.com/rbaliyan/meshsandbox/retry"
	"github.com/rbaliyan/meshsandbox/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	DefaultShutdownTimeout = 30 * time.Second
	MinShutdownTimeout     = time.Second

	// Detached after/error hooks running at once.
	DefaultMaxConcurrentHooks = 64

	DefaultInboxRetention = store.DefaultInboxRetention
	DefaultServiceName    = "meshsandbox"

	DefaultStatsRefreshInterval = 30 * time.Second
)

// options holds engine configuration.
type options struct {
	store  store.Store
	logger *slog.Logger
	clock  func() time.Time

	authMode  auth.Mode
	sharedKey string

	plugins         []pluginSpec
	pluginInstances []Plugin

	codecs   *content.Registry
	tokenKey []byte

	inboxRetention time.Duration

	maxConcurrentHooks int
	shutdownTimeout    time.Duration

	// telemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	statsRefreshInterval time.Duration

	// lifecycle events
	eventErrorsFatal      bool
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	connectRetry          retry.Policy
	onEventPublishFailure EventPublishFailureFunc
}

type pluginSpec struct {
	name     string
	factory  PluginFactory
	triggers []Trigger
}

// EventPublishFailureFunc receives lifecycle events the bus rejected, such as
// "MessageAccepted", together with the publish error.
type EventPublishFailureFunc func(eventName string, err error)

// safeEventPublishFailure runs the failure callback, recovering a panic in it.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("event failure handler panicked",
				"event", eventName, "publish_error", err, "panic", r)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// newOptions applies opts over the engine defaults.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:               slog.Default(),
		clock:                func() time.Time { return time.Now().UTC() },
		authMode:             auth.ModeNone,
		sharedKey:            auth.DefaultSharedKey,
		inboxRetention:       DefaultInboxRetention,
		maxConcurrentHooks:   DefaultMaxConcurrentHooks,
		shutdownTimeout:      DefaultShutdownTimeout,
		serviceName:          DefaultServiceName,
		statsRefreshInterval: DefaultStatsRefreshInterval,
		connectRetry:         retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.codecs == nil {
		o.codecs = content.DefaultRegistry()
	}
	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("publish lifecycle event", "event", eventName, "error", err)
		}
	}
	return o
}

// Option configures an Engine.
type Option func(*options)

// --- Core Options ---

// WithStore sets the mailbox store (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithLogger sets the engine logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithInboxRetention sets how long a sent message stays in the recipient inbox.
// Default is 5 days.
func WithInboxRetention(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.inboxRetention = d
		}
	}
}

// --- Auth Options ---

// WithAuthMode sets how AuthoriseMailbox checks headers. Default is auth.ModeNone.
func WithAuthMode(m auth.Mode) Option {
	return func(o *options) {
		if m != "" {
			o.authMode = m
		}
	}
}

// WithSharedKey sets the HMAC secret used in auth.ModeFull.
func WithSharedKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.sharedKey = key
		}
	}
}

// --- Transfer Options ---

// WithCodecs sets the content-encoding registry used on download.
// Default is content.DefaultRegistry().
func WithCodecs(r *content.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.codecs = r
		}
	}
}

// WithTokenKey fixes the 32-byte key for v2 continuation tokens.
// By default a random key is generated per engine, so tokens do not
// survive a restart.
func WithTokenKey(key []byte) Option {
	return func(o *options) {
		if len(key) > 0 {
			o.tokenKey = key
		}
	}
}

// --- Plugin Options ---

// WithPlugin registers a plugin factory for triggers.
// The factory runs lazily, once per trigger, on first dispatch.
func WithPlugin(name string, factory PluginFactory, triggers ...Trigger) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, pluginSpec{name: name, factory: factory, triggers: triggers})
	}
}

// WithPluginInstance registers p for the triggers it declares.
func WithPluginInstance(p Plugin) Option {
	return func(o *options) {
		o.pluginInstances = append(o.pluginInstances, p)
	}
}

// --- OTel Options ---

// WithTracing turns on spans for engine operations. Off by default.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics turns on the engine counters and histograms. Off by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel sets tracing and metrics together.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled, o.metricsEnabled = enabled, enabled
	}
}

// WithServiceName sets the service name used for the event bus and telemetry.
// Default is "meshsandbox".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Concurrency Options ---

// WithMaxConcurrentHooks caps the detached after/error hook tasks that run at once.
// Default is 64.
func WithMaxConcurrentHooks(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentHooks = n
		}
	}
}

// WithShutdownTimeout sets the maximum time Close waits for detached hooks.
// Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- Stats Options ---

// WithStatsRefreshInterval bounds how long cached inbox counts are served
// before the store is asked again. Writes invalidate the cache earlier.
func WithStatsRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.statsRefreshInterval = d
		}
	}
}

// --- Event Options ---

// WithEventErrorsFatal makes a failed lifecycle event publish fail the
// operation that raised it. By default the failure is only reported.
func WithEventErrorsFatal(fatal bool) Option {
	return func(o *options) {
		o.eventErrorsFatal = fatal
	}
}

// WithEventTransport sets the lifecycle event transport. Without one, and
// without a redis client, events go to a noop transport.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient publishes lifecycle events to redis streams through client.
// Connect pings it first, retrying per WithConnectRetry.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithConnectRetry sets how Connect retries reaching the redis client.
func WithConnectRetry(p retry.Policy) Option {
	return func(o *options) {
		o.connectRetry = p
	}
}

// WithEventPublishFailureHandler replaces the default failure logging.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}
