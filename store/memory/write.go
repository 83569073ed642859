package memory

import (
	"context"
	"fmt"

	"github.com/rbaliyan/meshsandbox/store"
)

// SaveMessage stores a copy of msg and persists its metadata.
func (s *Store) SaveMessage(ctx context.Context, msg *store.Message) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, msg)
}

func (s *Store) saveLocked(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		return store.ErrInvalidID
	}
	stored := msg.Clone()
	if err := s.persistence.SaveMessage(ctx, stored); err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	s.messages[stored.ID] = stored
	return nil
}

// SaveChunk stores chunk n of msg. A nil data removes the chunk.
func (s *Store) SaveChunk(ctx context.Context, msg *store.Message, n int, data []byte) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if n < 1 {
		return store.ErrInvalidChunk
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistence.SaveChunk(ctx, msg, n, data)
}

// AddToInbox appends msg to its recipient's inbox once.
func (s *Store) AddToInbox(ctx context.Context, msg *store.Message) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addInboxLocked(msg)
	return nil
}

// AddToOutbox registers msg in its sender's outbox and local-id index.
func (s *Store) AddToOutbox(ctx context.Context, msg *store.Message) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addOutboxLocked(msg)
	return nil
}

func (s *Store) addInboxLocked(msg *store.Message) {
	id := msg.Recipient.MailboxID
	s.inboxes[id] = appendOnce(s.inboxes[id], msg.ID)
}

func (s *Store) addOutboxLocked(msg *store.Message) {
	sender := msg.Sender.MailboxID
	s.outboxes[sender] = prependOnce(s.outboxes[sender], msg.ID)

	localID := msg.Metadata.LocalID
	if localID == "" {
		return
	}
	byLocal := s.localIDs[sender]
	if byLocal == nil {
		byLocal = make(map[string][]string)
		s.localIDs[sender] = byLocal
	}
	byLocal[localID] = prependOnce(byLocal[localID], msg.ID)
}

// Reset rebuilds every index from the baseline dataset.
func (s *Store) Reset(ctx context.Context, clearDisk bool) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistence.Reset(ctx, clearDisk); err != nil {
		return fmt.Errorf("reset persistence: %w", err)
	}
	s.rebuild()
	s.logger.Info("store reset", "clear_disk", clearDisk, "messages", len(s.messages))
	return nil
}

// ResetMailbox clears one mailbox's inbox, outbox and local-id entries.
func (s *Store) ResetMailbox(ctx context.Context, mailboxID string, clearDisk bool) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	id := store.NormalizeID(mailboxID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[id]; !ok {
		return store.ErrNotFound
	}
	if err := s.persistence.ResetMailbox(ctx, id, clearDisk); err != nil {
		return fmt.Errorf("reset mailbox %s: %w", id, err)
	}
	delete(s.inboxes, id)
	delete(s.outboxes, id)
	delete(s.localIDs, id)
	s.logger.Info("mailbox reset", "mailbox_id", id, "clear_disk", clearDisk)
	return nil
}

// SendMessage stores chunk 1 and registers msg in the sender's outbox.
// Single-chunk and REPORT messages are accepted immediately. On success msg
// is updated with the stored state.
func (s *Store) SendMessage(ctx context.Context, msg *store.Message, body []byte) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := msg.Clone()
	if target.TotalChunks > 0 {
		if err := s.persistence.SaveChunk(ctx, target, 1, body); err != nil {
			return fmt.Errorf("save chunk 1 of %s: %w", target.ID, err)
		}
	}
	s.addOutboxLocked(target)

	if target.AcceptsOnSend() {
		if err := s.acceptLocked(ctx, target); err != nil {
			return err
		}
	} else if err := s.saveLocked(ctx, target); err != nil {
		return err
	}
	*msg = *target
	return nil
}

// AcceptMessage completes an upload and delivers msg to its recipient.
func (s *Store) AcceptMessage(ctx context.Context, msg *store.Message) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.currentLocked(msg)
	if err := s.acceptLocked(ctx, target); err != nil {
		return err
	}
	*msg = *target
	return nil
}

func (s *Store) acceptLocked(ctx context.Context, msg *store.Message) error {
	if msg.CurrentStatus() != store.StatusAccepted {
		msg.AppendEvent(store.Event{Status: store.StatusAccepted, Timestamp: s.now()})
	}
	size, err := s.fileSizeLocked(ctx, msg)
	if err != nil {
		return fmt.Errorf("file size of %s: %w", msg.ID, err)
	}
	msg.FileSize = size
	if err := s.saveLocked(ctx, msg); err != nil {
		return err
	}
	s.addInboxLocked(msg)
	return nil
}

// AcknowledgeMessage appends an acknowledged event when msg is accepted.
// Acknowledging a message in any other status is a no-op.
func (s *Store) AcknowledgeMessage(ctx context.Context, msg *store.Message) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.currentLocked(msg)
	if target.CurrentStatus() != store.StatusAccepted {
		*msg = *target
		return nil
	}
	target.AppendEvent(store.Event{Status: store.StatusAcknowledged, Timestamp: s.now()})
	if err := s.saveLocked(ctx, target); err != nil {
		return err
	}
	*msg = *target
	return nil
}

// AddMessageEvent appends ev to msg and saves it.
func (s *Store) AddMessageEvent(ctx context.Context, msg *store.Message, ev store.Event) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.currentLocked(msg)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	target.AppendEvent(ev)
	if err := s.saveLocked(ctx, target); err != nil {
		return err
	}
	*msg = *target
	return nil
}

// currentLocked returns a working copy of the stored version of msg, or of msg
// itself when it has not been stored yet.
func (s *Store) currentLocked(msg *store.Message) *store.Message {
	if stored, ok := s.messages[msg.ID]; ok {
		return stored.Clone()
	}
	return msg.Clone()
}
