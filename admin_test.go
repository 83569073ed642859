package meshsandbox

import (
	"context"
	"errors"
	"testing"

	"github.com/rbaliyan/meshsandbox/store"
)

func TestAdminReset(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	sendN(t, e, 2, "TEST_WORKFLOW")
	msg := mustSend(t, e, "X26ABC2", SendRequest{To: "X26ABC1", Body: []byte("back")})

	t.Run("unknown mailbox", func(t *testing.T) {
		if err := e.AdminReset(ctx, "X26ZZZ9", false); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("one mailbox", func(t *testing.T) {
		if err := e.AdminReset(ctx, "X26ABC2", false); err != nil {
			t.Fatalf("reset: %v", err)
		}
		inbox, _ := e.GetInbox(ctx, "X26ABC2")
		if len(inbox) != 0 {
			t.Errorf("expected empty inbox, got %d", len(inbox))
		}
		other, _ := e.GetInbox(ctx, "X26ABC1")
		if len(other) != 1 {
			t.Errorf("expected X26ABC1 inbox untouched, got %d", len(other))
		}
		// messages stay retrievable by id
		if _, err := e.GetMessage(ctx, msg.ID); err != nil {
			t.Errorf("get message after mailbox reset: %v", err)
		}
	})

	t.Run("everything", func(t *testing.T) {
		if err := e.AdminReset(ctx, "", false); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if _, err := e.GetMessage(ctx, msg.ID); !store.IsNotFound(err) {
			t.Errorf("expected message gone after full reset, got %v", err)
		}
	})
}

func TestCreateReport(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	recipient := mustMailbox(t, e, "X26ABC1")

	t.Run("invalid status", func(t *testing.T) {
		_, err := e.CreateReport(ctx, ReportRequest{MailboxID: "X26ABC1", Status: store.StatusAccepted})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("unknown mailbox", func(t *testing.T) {
		_, err := e.CreateReport(ctx, ReportRequest{MailboxID: "X26ZZZ9", Status: store.StatusError})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	report, err := e.CreateReport(ctx, ReportRequest{
		MailboxID:       "X26ABC1",
		Status:          store.StatusUndeliverable,
		Code:            "14",
		Description:     "Message not collected",
		WorkflowID:      "TEST_WORKFLOW",
		LinkedMessageID: "ORIGINAL",
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if report.Type != store.MessageTypeReport || report.TotalChunks != 0 {
		t.Errorf("unexpected report shape: %s %d", report.Type, report.TotalChunks)
	}
	if report.Sender != CentralSystem {
		t.Errorf("unexpected sender %+v", report.Sender)
	}
	events := report.Events()
	if len(events) != 2 || events[0].Status != store.StatusAccepted || events[1].Status != store.StatusUndeliverable {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[1].Event != "TRANSFER" || events[1].LinkedMessageID != "ORIGINAL" {
		t.Errorf("unexpected status event %+v", events[1])
	}

	d, err := e.Retrieve(ctx, recipient, report.ID, 1, RetrieveOptions{})
	if err != nil {
		t.Fatalf("retrieve report: %v", err)
	}
	if len(d.Data) != 0 {
		t.Errorf("expected empty report body, got %d bytes", len(d.Data))
	}
	if d.Headers.Get(HeaderMessageType) != "REPORT" || d.Headers.Get(HeaderContentEncoding) != "" {
		t.Errorf("unexpected report headers %v", d.Headers)
	}
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	msg := mustSend(t, e, "X26ABC1", SendRequest{To: "X26ABC2", Body: []byte("a")})

	if _, err := e.AddEvent(ctx, "MISSING", store.Event{Status: store.StatusError}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.AddEvent(ctx, msg.ID, store.Event{Status: "lost"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	got, err := e.AddEvent(ctx, msg.ID, store.Event{Status: store.StatusError, Code: "14"})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	if got.CurrentStatus() != store.StatusError {
		t.Errorf("expected error status, got %s", got.CurrentStatus())
	}
	stored, _ := e.GetMessage(ctx, msg.ID)
	if stored.EventCount() != got.EventCount() {
		t.Errorf("expected event persisted")
	}
}

func TestHandshake(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mb, err := e.Handshake(ctx, "x26abc1")
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if mb.ID != "X26ABC1" || mb.LastAccessed.IsZero() {
		t.Errorf("expected accessed X26ABC1, got %+v", mb)
	}
	if _, err := e.Handshake(ctx, "X26ZZZ9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
