package meshsandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rbaliyan/meshsandbox/store"
	"golang.org/x/sync/errgroup"
)

// Trigger names a hook point around a mutating engine operation.
type Trigger string

// Hook triggers. Values are wire-exact plugin trigger names.
const (
	BeforeAcceptMessage      Trigger = "before_accept_message"
	AfterAcceptMessage       Trigger = "after_accept_message"
	AcceptMessageError       Trigger = "accept_message_error"
	BeforeSaveMessage        Trigger = "before_save_message"
	AfterSaveMessage         Trigger = "after_save_message"
	SaveMessageError         Trigger = "save_message_error"
	BeforeSendMessage        Trigger = "before_send_message"
	AfterSendMessage         Trigger = "after_send_message"
	SendMessageError         Trigger = "send_message_error"
	BeforeAcknowledgeMessage Trigger = "before_acknowledge_message"
	AfterAcknowledgeMessage  Trigger = "after_acknowledge_message"
	AcknowledgeMessageError  Trigger = "acknowledge_message_error"
	BeforeSaveChunk          Trigger = "before_save_chunk"
	AfterSaveChunk           Trigger = "after_save_chunk"
	SaveChunkError           Trigger = "save_chunk_error"
)

var allTriggers = []Trigger{
	BeforeAcceptMessage, AfterAcceptMessage, AcceptMessageError,
	BeforeSaveMessage, AfterSaveMessage, SaveMessageError,
	BeforeSendMessage, AfterSendMessage, SendMessageError,
	BeforeAcknowledgeMessage, AfterAcknowledgeMessage, AcknowledgeMessageError,
	BeforeSaveChunk, AfterSaveChunk, SaveChunkError,
}

// ValidTrigger reports whether t is a known trigger.
func ValidTrigger(t Trigger) bool {
	return slices.Contains(allTriggers, t)
}

// AllTriggers returns every known trigger.
func AllTriggers() []Trigger {
	return slices.Clone(allTriggers)
}

// HookArgs is passed to plugins. Message is a copy; plugins cannot alter
// the operation through it.
type HookArgs struct {
	Message     *store.Message
	ChunkNumber int
	Data        []byte
	Event       *store.Event
	FileSize    int64
}

// Plugin handles hook triggers.
//
// OnEvent receives the trigger, the operation arguments, and for *_error
// triggers the error the operation failed with. Returned errors are logged;
// they never change the outcome of the operation.
type Plugin interface {
	Triggers() []Trigger
	OnEvent(ctx context.Context, trigger Trigger, args HookArgs, err error) error
}

// PluginFactory constructs a plugin instance. It is called at most once per
// trigger, on the first dispatch of that trigger.
type PluginFactory func() (Plugin, error)

// PluginError represents a failed or panicking plugin handler.
type PluginError struct {
	Plugin  string
	Trigger Trigger
	Err     error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + " " + string(e.Trigger) + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

type registration struct {
	name     string
	triggers []Trigger
	factory  PluginFactory
}

// handler is a lazily constructed plugin bound to one trigger.
type handler struct {
	reg  *registration
	once sync.Once
	p    Plugin
	err  error
}

func (h *handler) instance() (Plugin, error) {
	h.once.Do(func() {
		h.p, h.err = h.reg.factory()
		if h.err == nil && h.p == nil {
			h.err = fmt.Errorf("%w: factory returned nil", ErrInvalidPlugin)
		}
	})
	return h.p, h.err
}

// Registry indexes plugins by trigger.
// Safe for concurrent use. Register before the engine starts dispatching.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Trigger][]*handler
	logger   *slog.Logger
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[Trigger][]*handler),
		logger:   logger,
	}
}

// Register adds a plugin factory for triggers. Invalid registrations are
// skipped with a warning and the validation error is returned.
func (r *Registry) Register(name string, triggers []Trigger, factory PluginFactory) error {
	if err := validateRegistration(triggers, factory); err != nil {
		r.logger.Warn("skipping plugin", "plugin", name, "error", err)
		return err
	}
	reg := &registration{name: name, triggers: slices.Clone(triggers), factory: factory}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range reg.triggers {
		// one instance per trigger
		r.handlers[t] = append(r.handlers[t], &handler{reg: reg})
	}
	r.logger.Debug("plugin registered", "plugin", name, "triggers", reg.triggers)
	return nil
}

// RegisterPlugin registers an existing instance for its declared triggers.
func (r *Registry) RegisterPlugin(p Plugin) error {
	if p == nil {
		err := fmt.Errorf("%w: nil plugin", ErrInvalidPlugin)
		r.logger.Warn("skipping plugin", "error", err)
		return err
	}
	return r.Register(fmt.Sprintf("%T", p), p.Triggers(), func() (Plugin, error) { return p, nil })
}

func validateRegistration(triggers []Trigger, factory PluginFactory) error {
	if factory == nil {
		return fmt.Errorf("%w: nil factory", ErrInvalidPlugin)
	}
	if len(triggers) == 0 {
		return fmt.Errorf("%w: no triggers", ErrInvalidPlugin)
	}
	for _, t := range triggers {
		if !ValidTrigger(t) {
			return fmt.Errorf("%w: unknown trigger %q", ErrInvalidPlugin, t)
		}
	}
	return nil
}

// Triggers returns the triggers that have at least one handler.
func (r *Registry) Triggers() []Trigger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Trigger, 0, len(r.handlers))
	for _, t := range allTriggers {
		if len(r.handlers[t]) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// HasHandlers reports whether any handler is registered for trigger.
func (r *Registry) HasHandlers(trigger Trigger) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[trigger]) > 0
}

// Dispatch runs every handler for trigger concurrently and waits for them.
// Handler errors and panics are recovered, logged and joined into the
// returned error as *PluginError values.
func (r *Registry) Dispatch(ctx context.Context, trigger Trigger, args HookArgs, cause error) error {
	r.mu.RLock()
	handlers := slices.Clone(r.handlers[trigger])
	r.mu.RUnlock()
	if len(handlers) == 0 {
		return nil
	}

	errs := make([]error, len(handlers))
	var g errgroup.Group
	for i, h := range handlers {
		g.Go(func() error {
			errs[i] = r.invoke(ctx, h, trigger, args, cause)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (r *Registry) invoke(ctx context.Context, h *handler, trigger Trigger, args HookArgs, cause error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PluginError{Plugin: h.reg.name, Trigger: trigger, Err: fmt.Errorf("panic: %v", rec)}
		}
		if err != nil {
			r.logger.Warn("plugin hook failed", "plugin", h.reg.name, "trigger", trigger, "error", err)
		}
	}()

	p, err := h.instance()
	if err != nil {
		return &PluginError{Plugin: h.reg.name, Trigger: trigger, Err: err}
	}
	if err := p.OnEvent(ctx, trigger, args, cause); err != nil {
		return &PluginError{Plugin: h.reg.name, Trigger: trigger, Err: err}
	}
	return nil
}
