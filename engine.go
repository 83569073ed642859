package meshsandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"github.com/rbaliyan/meshsandbox/auth"
	"github.com/rbaliyan/meshsandbox/content"
	"github.com/rbaliyan/meshsandbox/pagination"
	"github.com/rbaliyan/meshsandbox/retry"
	"github.com/rbaliyan/meshsandbox/store"
	"golang.org/x/sync/semaphore"
)

// Connection states for the engine.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// Engine is the messaging engine. It wraps a store with plugin hooks,
// authorisation, the transfer protocol, queries and admin operations.
// Safe for concurrent use once connected.
type Engine struct {
	store    store.Store
	logger   *slog.Logger
	opts     *options
	state    int32 // stateDisconnected, stateConnecting, or stateConnected
	now      func() time.Time
	verifier *auth.Verifier
	plugins  *Registry
	otel     *otelInstrumentation
	codecs   *content.Registry
	tokens   pagination.Codec

	hookSem *semaphore.Weighted // bounds detached hooks
	hooks   sync.WaitGroup

	eventBus *event.Bus
	events   *EngineEvents

	statsCache sync.Map // mailbox id -> *statsEntry
	statsMu    sync.Mutex
	statsGen   uint64 // bumped by every invalidation; guarded by statsMu
}

// NewEngine creates an engine. Call Connect before use.
func NewEngine(opts ...Option) (*Engine, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}

	plugins := NewRegistry(o.logger)
	for _, p := range o.plugins {
		// invalid plugins are logged and skipped
		_ = plugins.Register(p.name, p.triggers, p.factory)
	}
	for _, p := range o.pluginInstances {
		_ = plugins.RegisterPlugin(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	var tokens *pagination.V2
	if o.tokenKey != nil {
		tokens, err = pagination.NewV2WithKey(o.tokenKey)
	} else {
		tokens, err = pagination.NewV2()
	}
	if err != nil {
		return nil, fmt.Errorf("init continuation tokens: %w", err)
	}

	return &Engine{
		store:  o.store,
		logger: o.logger,
		opts:   o,
		now:    o.clock,
		verifier: auth.NewVerifier(
			auth.WithMode(o.authMode),
			auth.WithSharedKey(o.sharedKey),
			auth.WithLogger(o.logger),
		),
		plugins: plugins,
		otel:    otelInstr,
		codecs:  o.codecs,
		tokens:  tokens,
		hookSem: semaphore.NewWeighted(int64(o.maxConcurrentHooks)),
	}, nil
}

// Events returns per-engine event instances for subscribing and publishing.
// It is nil until Connect succeeds.
func (e *Engine) Events() *EngineEvents {
	return e.events
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *Registry {
	return e.plugins
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store {
	return e.store
}

// AuthMode returns the configured authorisation mode.
func (e *Engine) AuthMode() auth.Mode {
	return e.verifier.Mode()
}

// ReadOnly reports whether mutations are silently skipped.
func (e *Engine) ReadOnly() bool {
	return e.store.ReadOnly()
}

// IsConnected returns true if the engine is connected and ready.
func (e *Engine) IsConnected() bool {
	return atomic.LoadInt32(&e.state) == stateConnected
}

func (e *Engine) checkAccess() error {
	if !e.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Connect initializes the event bus.
func (e *Engine) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&e.state, stateConnected)
		} else {
			atomic.StoreInt32(&e.state, stateDisconnected)
		}
	}()

	if err := e.initEventBus(ctx); err != nil {
		return fmt.Errorf("init event bus: %w", err)
	}

	success = true
	e.logger.Info("messaging engine connected",
		"read_only", e.store.ReadOnly(),
		"auth_mode", e.verifier.Mode(),
		"plugin_triggers", e.plugins.Triggers(),
	)
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this engine.
func (e *Engine) initEventBus(ctx context.Context) error {
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", e.opts.serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case e.opts.eventTransport != nil:
		e.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(e.opts.eventTransport))
	case e.opts.redisClient != nil:
		e.logger.Info("initializing event bus with Redis transport")
		if err := e.pingRedis(ctx); err != nil {
			return err
		}
		t, transportErr := eventredis.New(e.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		e.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}

	events := newEngineEvents(busName)
	if err := registerEngineEvents(ctx, bus, events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register engine events: %w", err)
	}

	e.eventBus = bus
	e.events = events
	return nil
}

// pingRedis waits for the redis client to answer, retrying per the
// connect retry policy.
func (e *Engine) pingRedis(ctx context.Context) error {
	p := e.opts.connectRetry
	if p.OnRetry == nil {
		p.OnRetry = func(attempt int, wait time.Duration, err error) {
			e.logger.Warn("redis not reachable, retrying", "attempt", attempt, "wait", wait, "error", err)
		}
	}
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		return e.opts.redisClient.Ping(ctx).Err()
	})
	if err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// WaitForHooks blocks until every detached hook has finished or ctx is done.
func (e *Engine) WaitForHooks(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.hooks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains detached hooks, then closes the event bus and the store.
func (e *Engine) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// After the state flips no new operations start. Acquiring every
	// semaphore slot waits for running hooks; the wait group covers hooks
	// still queued on the semaphore.
	e.logger.Info("waiting for detached hooks to complete...", "timeout", e.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, e.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := e.hookSem.Acquire(shutdownCtx, int64(e.opts.maxConcurrentHooks)); err != nil {
		e.logger.Warn("timeout waiting for detached hooks, proceeding with shutdown", "error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		e.hookSem.Release(int64(e.opts.maxConcurrentHooks))
		if err := e.WaitForHooks(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
		} else {
			e.logger.Info("all detached hooks completed")
		}
	}

	if e.eventBus != nil {
		if err := e.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := e.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}
