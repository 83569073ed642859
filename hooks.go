package meshsandbox

import (
	"context"
	"slices"

	"github.com/rbaliyan/meshsandbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// Hooked operation names. Triggers are before_<op>, after_<op> and <op>_error.
const (
	hookSendMessage        = "send_message"
	hookAcceptMessage      = "accept_message"
	hookAcknowledgeMessage = "acknowledge_message"
	hookSaveChunk          = "save_chunk"
	hookSaveMessage        = "save_message"
)

// hookCall is one hooked operation committed by a store call.
type hookCall struct {
	op    string
	chunk int
	data  []byte
}

func (c hookCall) args(msg *store.Message) HookArgs {
	return HookArgs{Message: msg.Clone(), ChunkNumber: c.chunk, Data: c.data, FileSize: msg.FileSize}
}

// run executes fn inside the before/after/error hook triples of calls.
//
// A single store transition can commit nested operations (a send saves its
// first chunk and may accept the message), so calls lists them outermost
// first. Before hooks run synchronously in that order; a failure is logged
// and does not abort fn. After or error hooks then run detached from ctx
// cancellation, innermost first, and see msg as fn left it. The error from
// fn is returned unchanged.
func (e *Engine) run(ctx context.Context, msg *store.Message, calls []hookCall, fn func(context.Context) error) error {
	for _, c := range calls {
		before := Trigger("before_" + c.op)
		if !e.plugins.HasHandlers(before) {
			continue
		}
		args := c.args(msg)
		if err := e.plugins.Dispatch(ctx, before, args, nil); err != nil {
			e.hookFailed(ctx, before, args, err)
		}
	}

	err := fn(ctx)
	for _, c := range slices.Backward(calls) {
		if err != nil {
			e.detach(ctx, Trigger(c.op+"_error"), c.args(msg), err)
		} else {
			e.detach(ctx, Trigger("after_"+c.op), c.args(msg), nil)
		}
	}
	return err
}

// detach schedules trigger on a goroutine bounded by the hook semaphore.
func (e *Engine) detach(ctx context.Context, trigger Trigger, args HookArgs, cause error) {
	if !e.plugins.HasHandlers(trigger) {
		return
	}
	dctx := context.WithoutCancel(ctx)

	e.hooks.Add(1)
	go func() {
		defer e.hooks.Done()
		if err := e.hookSem.Acquire(dctx, 1); err != nil {
			return
		}
		defer e.hookSem.Release(1)

		if err := e.plugins.Dispatch(dctx, trigger, args, cause); err != nil {
			e.hookFailed(dctx, trigger, args, err)
		}
	}()
}

func (e *Engine) hookFailed(ctx context.Context, trigger Trigger, args HookArgs, err error) {
	var messageID string
	if args.Message != nil {
		messageID = args.Message.ID
	}
	e.logger.Warn("hook failed", "trigger", trigger, "message_id", messageID, "error", err)
	e.otel.recordHookFailure(ctx, trigger)
	if e.events != nil {
		_ = publish(ctx, e, "HookFailed", e.events.HookFailed, messageID, HookFailedEvent{
			Trigger:   string(trigger),
			MessageID: messageID,
			Error:     err.Error(),
		})
	}
}

func messageAttrs(msg *store.Message) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("message_id", msg.ID),
		attribute.String("sender", msg.Sender.MailboxID),
		attribute.String("recipient", msg.Recipient.MailboxID),
	}
}

// SendMessage stores chunk 1 of msg and registers it in the sender's outbox.
// Single-chunk and REPORT messages are accepted immediately. A no-op on a
// read-only store.
func (e *Engine) SendMessage(ctx context.Context, msg *store.Message, body []byte) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}

	calls := []hookCall{{op: hookSendMessage, chunk: 1, data: body}}
	if msg.TotalChunks > 0 {
		calls = append(calls, hookCall{op: hookSaveChunk, chunk: 1, data: body})
	}
	accepts := msg.AcceptsOnSend()
	if accepts {
		calls = append(calls, hookCall{op: hookAcceptMessage})
	}
	calls = append(calls, hookCall{op: hookSaveMessage})

	err := e.run(ctx, msg, calls, func(ctx context.Context) error {
		return e.otel.observe(ctx, opSend, messageAttrs(msg), func(ctx context.Context) error {
			return e.store.SendMessage(ctx, msg, body)
		})
	})
	if err != nil {
		return err
	}

	e.invalidateStats(msg.Sender.MailboxID, msg.Recipient.MailboxID)
	if msg.TotalChunks > 0 {
		if err := e.publishChunk(ctx, msg, 1, len(body)); err != nil {
			return err
		}
	}
	if err := publish(ctx, e, "MessageSent", e.events.MessageSent, msg.ID, MessageSentEvent{
		MessageID:   msg.ID,
		SenderID:    msg.Sender.MailboxID,
		RecipientID: msg.Recipient.MailboxID,
		WorkflowID:  msg.WorkflowID,
		TotalChunks: msg.TotalChunks,
		Status:      string(msg.CurrentStatus()),
		SentAt:      msg.CreatedAt,
	}); err != nil {
		return err
	}
	if accepts {
		return e.publishAccepted(ctx, msg)
	}
	return nil
}

// AcceptMessage completes an upload: it appends an accepted event if the
// status differs, recomputes the file size, saves msg and delivers it to the
// inbox. A no-op on a read-only store.
func (e *Engine) AcceptMessage(ctx context.Context, msg *store.Message) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}

	calls := []hookCall{{op: hookAcceptMessage}, {op: hookSaveMessage}}
	err := e.run(ctx, msg, calls, func(ctx context.Context) error {
		return e.otel.observe(ctx, opAccept, messageAttrs(msg), func(ctx context.Context) error {
			return e.store.AcceptMessage(ctx, msg)
		})
	})
	if err != nil {
		return err
	}
	e.invalidateStats(msg.Sender.MailboxID, msg.Recipient.MailboxID)
	return e.publishAccepted(ctx, msg)
}

func (e *Engine) publishAccepted(ctx context.Context, msg *store.Message) error {
	at, _ := msg.StatusTimestamp(store.StatusAccepted)
	return publish(ctx, e, "MessageAccepted", e.events.MessageAccepted, msg.ID, MessageAcceptedEvent{
		MessageID:   msg.ID,
		RecipientID: msg.Recipient.MailboxID,
		FileSize:    msg.FileSize,
		AcceptedAt:  at,
	})
}

// AcknowledgeMessage appends an acknowledged event when msg is accepted.
// A no-op on a read-only store.
func (e *Engine) AcknowledgeMessage(ctx context.Context, msg *store.Message) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}

	wasAccepted := msg.CurrentStatus() == store.StatusAccepted
	calls := []hookCall{{op: hookAcknowledgeMessage}}
	if wasAccepted {
		calls = append(calls, hookCall{op: hookSaveMessage})
	}
	err := e.run(ctx, msg, calls, func(ctx context.Context) error {
		return e.otel.observe(ctx, opAcknowledge, messageAttrs(msg), func(ctx context.Context) error {
			return e.store.AcknowledgeMessage(ctx, msg)
		})
	})
	if err != nil || !wasAccepted {
		return err
	}

	e.invalidateStats(msg.Sender.MailboxID, msg.Recipient.MailboxID)
	at, _ := msg.StatusTimestamp(store.StatusAcknowledged)
	return publish(ctx, e, "MessageAcknowledged", e.events.MessageAcknowledged, msg.ID, MessageAcknowledgedEvent{
		MessageID:      msg.ID,
		RecipientID:    msg.Recipient.MailboxID,
		AcknowledgedAt: at,
	})
}

// SaveChunk stores chunk n of msg. A no-op on a read-only store.
func (e *Engine) SaveChunk(ctx context.Context, msg *store.Message, n int, data []byte) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}

	attrs := append(messageAttrs(msg), attribute.Int("chunk", n))
	err := e.run(ctx, msg, []hookCall{{op: hookSaveChunk, chunk: n, data: data}}, func(ctx context.Context) error {
		return e.otel.observe(ctx, opChunk, attrs, func(ctx context.Context) error {
			return e.store.SaveChunk(ctx, msg, n, data)
		})
	})
	if err != nil {
		return err
	}
	return e.publishChunk(ctx, msg, n, len(data))
}

func (e *Engine) publishChunk(ctx context.Context, msg *store.Message, n, size int) error {
	return publish(ctx, e, "ChunkSaved", e.events.ChunkSaved, msg.ID, ChunkSavedEvent{
		MessageID:   msg.ID,
		ChunkNumber: n,
		Size:        size,
	})
}

// SaveMessage stores msg. A no-op on a read-only store.
func (e *Engine) SaveMessage(ctx context.Context, msg *store.Message) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}
	return e.run(ctx, msg, []hookCall{{op: hookSaveMessage}}, func(ctx context.Context) error {
		return e.store.SaveMessage(ctx, msg)
	})
}

// AddMessageEvent appends ev to msg and saves it. Not hooked.
// A no-op on a read-only store.
func (e *Engine) AddMessageEvent(ctx context.Context, msg *store.Message, ev store.Event) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}
	if err := e.store.AddMessageEvent(ctx, msg, ev); err != nil {
		return err
	}
	e.invalidateStats(msg.Sender.MailboxID, msg.Recipient.MailboxID)
	return nil
}

// Reset rebuilds the store from its baseline. Not hooked.
// A no-op on a read-only store.
func (e *Engine) Reset(ctx context.Context, clearDisk bool) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}
	if err := e.store.Reset(ctx, clearDisk); err != nil {
		return err
	}
	e.clearStats()
	e.logger.Info("store reset", "clear_disk", clearDisk)
	return nil
}

// ResetMailbox clears one mailbox's boxes. Not hooked.
// A no-op on a read-only store.
func (e *Engine) ResetMailbox(ctx context.Context, mailboxID string, clearDisk bool) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return nil
	}
	if err := e.store.ResetMailbox(ctx, mailboxID, clearDisk); err != nil {
		return err
	}
	e.invalidateStats(mailboxID)
	e.logger.Info("mailbox reset", "mailbox_id", mailboxID, "clear_disk", clearDisk)
	return nil
}
