package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbaliyan/meshsandbox/store"
	"github.com/rbaliyan/meshsandbox/store/memory"
)

func newMessage(id, recipient string, chunks int) *store.Message {
	status := store.StatusAccepted
	if chunks > 1 {
		status = store.StatusUploading
	}
	m := store.NewMessage(id, time.Time{}, store.Event{Status: status})
	m.Sender = store.Party{MailboxID: "X26ABC1"}
	m.Recipient = store.Party{MailboxID: recipient}
	m.Type = store.MessageTypeData
	m.TotalChunks = chunks
	return m
}

func TestChunkRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close(ctx)

	msg := newMessage("MSG1", "X26ABC2", 2)
	if err := s.SaveChunk(ctx, msg, 1, []byte("first")); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}

	path := filepath.Join(dir, "X26ABC2", "in", "MSG1", "1")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("chunk file missing: %v", err)
	}

	got, err := s.GetChunk(ctx, msg, 1)
	if err != nil || string(got) != "first" {
		t.Errorf("GetChunk = %q, %v", got, err)
	}
	size, err := s.ChunkSize(ctx, msg, 1)
	if err != nil || size != 5 {
		t.Errorf("ChunkSize = %d, %v", size, err)
	}
	if _, err := s.GetChunk(ctx, msg, 2); !errors.Is(err, store.ErrChunkNotFound) {
		t.Errorf("missing chunk err = %v", err)
	}

	if err := s.SaveChunk(ctx, msg, 1, nil); err != nil {
		t.Fatalf("SaveChunk(nil): %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("chunk file not removed: %v", err)
	}
	// removing a missing chunk is fine
	if err := s.SaveChunk(ctx, msg, 1, nil); err != nil {
		t.Errorf("SaveChunk(nil) twice: %v", err)
	}
}

func TestSaveMessageWritesMetadata(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close(ctx)

	msg := newMessage("MSG2", "X26ABC2", 1)
	msg.Metadata.Subject = "hello"
	if err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), "X26ABC2", "in", "MSG2.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var saved store.Message
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if saved.ID != "MSG2" || saved.Metadata.Subject != "hello" || saved.CurrentStatus() != store.StatusAccepted {
		t.Errorf("saved = %+v", saved)
	}
}

func TestMemoryStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := &store.Dataset{
		Mailboxes: []*store.Mailbox{{ID: "X26ABC1"}, {ID: "X26ABC2"}},
	}
	s := memory.New(data, memory.WithPersistence(p))
	defer s.Close(ctx)

	msg := newMessage("CHUNKED", "X26ABC2", 2)
	if err := s.SendMessage(ctx, msg, make([]byte, 100)); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := s.SaveChunk(ctx, msg, 2, make([]byte, 50)); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}
	if err := s.AcceptMessage(ctx, msg); err != nil {
		t.Fatalf("AcceptMessage: %v", err)
	}
	if msg.FileSize != 150 {
		t.Errorf("FileSize = %d, want 150", msg.FileSize)
	}

	if _, err := os.Stat(filepath.Join(dir, "X26ABC2", "in", "CHUNKED.json")); err != nil {
		t.Errorf("metadata file missing: %v", err)
	}

	if err := s.ResetMailbox(ctx, "X26ABC2", true); err != nil {
		t.Fatalf("ResetMailbox: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "X26ABC2")); !os.IsNotExist(err) {
		t.Errorf("mailbox dir not removed: %v", err)
	}
}

func TestResetClearDisk(t *testing.T) {
	for _, clearDisk := range []bool{true, false} {
		ctx := context.Background()
		dir := t.TempDir()
		s, err := New(dir)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		msg := newMessage("MSG3", "X26ABC1", 1)
		if err := s.SaveChunk(ctx, msg, 1, []byte("x")); err != nil {
			t.Fatalf("SaveChunk: %v", err)
		}
		if err := s.Reset(ctx, clearDisk); err != nil {
			t.Fatalf("Reset: %v", err)
		}

		_, err = os.Stat(filepath.Join(dir, "X26ABC1"))
		if clearDisk && !os.IsNotExist(err) {
			t.Errorf("clearDisk=true: dir still present (%v)", err)
		}
		if !clearDisk && err != nil {
			t.Errorf("clearDisk=false: dir removed (%v)", err)
		}
		s.Close(ctx)
	}
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close(ctx)
	s.retention = time.Hour

	msg := newMessage("OLD", "X26ABC1", 1)
	if err := s.SaveChunk(ctx, msg, 1, []byte("x")); err != nil {
		t.Fatalf("SaveChunk: %v", err)
	}

	if n := s.cleanupExpired(time.Now()); n != 0 {
		t.Errorf("removed %d fresh entries", n)
	}
	if n := s.cleanupExpired(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Errorf("removed %d entries, want 1", n)
	}
}
