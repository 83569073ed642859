package meshsandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for lifecycle events.
const (
	EventNameMessageSent         = "meshsandbox.message.sent"
	EventNameMessageAccepted     = "meshsandbox.message.accepted"
	EventNameMessageAcknowledged = "meshsandbox.message.acknowledged"
	EventNameChunkSaved          = "meshsandbox.chunk.saved"
	EventNameHookFailed          = "meshsandbox.hook.failed"
)

// MessageSentEvent is published when a message is registered in its sender's outbox.
type MessageSentEvent struct {
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	WorkflowID  string    `json:"workflow_id"`
	TotalChunks int       `json:"total_chunks"`
	Status      string    `json:"status"`
	SentAt      time.Time `json:"sent_at"`
}

// MessageAcceptedEvent is published when a message becomes deliverable.
type MessageAcceptedEvent struct {
	MessageID   string    `json:"message_id"`
	RecipientID string    `json:"recipient_id"`
	FileSize    int64     `json:"file_size"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

// MessageAcknowledgedEvent is published when the recipient acknowledges a message.
type MessageAcknowledgedEvent struct {
	MessageID      string    `json:"message_id"`
	RecipientID    string    `json:"recipient_id"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// ChunkSavedEvent is published for every stored chunk.
type ChunkSavedEvent struct {
	MessageID   string `json:"message_id"`
	ChunkNumber int    `json:"chunk_number"`
	Size        int    `json:"size"`
}

// HookFailedEvent is published when a before hook fails.
type HookFailedEvent struct {
	Trigger   string `json:"trigger"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error"`
}

// EngineEvents provides access to per-engine event instances.
// Each engine creates its own events bound to its own event bus.
//
// Subscribe to events:
//
//	eng.Events().MessageAccepted.Subscribe(ctx, handler)
type EngineEvents struct {
	MessageSent         event.Event[MessageSentEvent]
	MessageAccepted     event.Event[MessageAcceptedEvent]
	MessageAcknowledged event.Event[MessageAcknowledgedEvent]
	ChunkSaved          event.Event[ChunkSavedEvent]
	HookFailed          event.Event[HookFailedEvent]
}

// newEngineEvents creates per-engine event instances with a unique name prefix.
func newEngineEvents(namePrefix string) *EngineEvents {
	return &EngineEvents{
		MessageSent:         event.New[MessageSentEvent](namePrefix + "." + EventNameMessageSent),
		MessageAccepted:     event.New[MessageAcceptedEvent](namePrefix + "." + EventNameMessageAccepted),
		MessageAcknowledged: event.New[MessageAcknowledgedEvent](namePrefix + "." + EventNameMessageAcknowledged),
		ChunkSaved:          event.New[ChunkSavedEvent](namePrefix + "." + EventNameChunkSaved),
		HookFailed:          event.New[HookFailedEvent](namePrefix + "." + EventNameHookFailed),
	}
}

// registerEngineEvents registers per-engine events with the given bus.
func registerEngineEvents(ctx context.Context, bus *event.Bus, events *EngineEvents) error {
	if err := event.Register(ctx, bus, events.MessageSent); err != nil {
		return fmt.Errorf("register MessageSent: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageAccepted); err != nil {
		return fmt.Errorf("register MessageAccepted: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageAcknowledged); err != nil {
		return fmt.Errorf("register MessageAcknowledged: %w", err)
	}
	if err := event.Register(ctx, bus, events.ChunkSaved); err != nil {
		return fmt.Errorf("register ChunkSaved: %w", err)
	}
	if err := event.Register(ctx, bus, events.HookFailed); err != nil {
		return fmt.Errorf("register HookFailed: %w", err)
	}
	return nil
}

// publish sends data on ev. Failures go to the publish failure handler and
// are returned only when event errors are fatal.
func publish[T any](ctx context.Context, e *Engine, name string, ev event.Event[T], messageID string, data T) error {
	err := ev.Publish(ctx, data)
	if err == nil {
		return nil
	}
	if e.opts.eventErrorsFatal {
		return &EventPublishError{Event: name, MessageID: messageID, Err: err}
	}
	e.opts.safeEventPublishFailure(name, err)
	return nil
}
