package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeID(t *testing.T) {
	for _, in := range []string{"x26abc1", " X26abc1 ", "X26ABC1", "\tx26ABC1\n"} {
		got := NormalizeID(in)
		if got != "X26ABC1" {
			t.Errorf("NormalizeID(%q) = %q", in, got)
		}
		if NormalizeID(got) != got {
			t.Errorf("NormalizeID not idempotent for %q", in)
		}
	}
}

func TestNewMessageDefaults(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMessage("abc123", created)

	if m.ID != "ABC123" {
		t.Errorf("ID = %q, want ABC123", m.ID)
	}
	if m.CurrentStatus() != StatusAccepted {
		t.Errorf("CurrentStatus() = %q, want accepted", m.CurrentStatus())
	}
	if m.EventCount() != 1 {
		t.Errorf("EventCount() = %d, want 1", m.EventCount())
	}
	if m.WorkflowID != DefaultWorkflowID {
		t.Errorf("WorkflowID = %q", m.WorkflowID)
	}
	if m.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d", m.TotalChunks)
	}
	if !m.InboxExpiresAt.Equal(created.Add(5 * 24 * time.Hour)) {
		t.Errorf("InboxExpiresAt = %v", m.InboxExpiresAt)
	}
}

func TestAppendEventOrdering(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMessage("m1", created, Event{Status: StatusUploading, Timestamp: created})

	m.AppendEvent(Event{Status: StatusAccepted, Timestamp: created.Add(time.Minute)})
	// older timestamp is raised to the latest
	m.AppendEvent(Event{Status: StatusAcknowledged, Timestamp: created.Add(-time.Hour)})
	m.AppendEvent(Event{Status: StatusError, Code: "14"})

	if m.CurrentStatus() != StatusError {
		t.Fatalf("CurrentStatus() = %q", m.CurrentStatus())
	}

	events := m.Events()
	if len(events) != 4 {
		t.Fatalf("len(Events()) = %d", len(events))
	}
	if events[0].Status != StatusError || events[3].Status != StatusUploading {
		t.Errorf("Events() not newest first: %+v", events)
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].Timestamp.Before(events[i].Timestamp) {
			t.Errorf("event %d older than event %d", i-1, i)
		}
	}

	ev, ok := m.ErrorEvent()
	if !ok || ev.Code != "14" {
		t.Errorf("ErrorEvent() = %+v, %v", ev, ok)
	}

	ts, ok := m.StatusTimestamp(StatusAccepted)
	if !ok || !ts.Equal(created.Add(time.Minute)) {
		t.Errorf("StatusTimestamp(accepted) = %v, %v", ts, ok)
	}
	if _, ok := m.StatusTimestamp(StatusUndeliverable); ok {
		t.Error("StatusTimestamp(undeliverable) should not be found")
	}
}

func TestCloneIsolation(t *testing.T) {
	m := NewMessage("m1", time.Time{})
	c := m.Clone()
	c.AppendEvent(Event{Status: StatusAcknowledged})

	if m.EventCount() != 1 {
		t.Errorf("original mutated: EventCount() = %d", m.EventCount())
	}
	if c.CurrentStatus() != StatusAcknowledged {
		t.Errorf("clone CurrentStatus() = %q", c.CurrentStatus())
	}
}

func TestMessageJSON(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMessage("m1", created, Event{Status: StatusUploading, Timestamp: created})
	m.AppendEvent(Event{Status: StatusAccepted, Timestamp: created.Add(time.Second)})
	m.Sender = Party{MailboxID: "X26ABC1"}
	m.Recipient = Party{MailboxID: "X26ABC2"}
	m.Type = MessageTypeData
	m.TotalChunks = 2

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal raw: %v", err)
	}
	if raw.Events[0].Status != StatusAccepted {
		t.Errorf("wire events not newest first: %+v", raw.Events)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.CurrentStatus() != StatusAccepted || decoded.EventCount() != 2 {
		t.Errorf("decoded status = %q, events = %d", decoded.CurrentStatus(), decoded.EventCount())
	}
	if decoded.TotalChunks != 2 {
		t.Errorf("decoded TotalChunks = %d", decoded.TotalChunks)
	}
}

func TestDecodeNormalizes(t *testing.T) {
	input := `{"message_id":"abc","sender":{"mailbox_id":" x26abc1 "},"recipient":{"mailbox_id":"x26abc2"},"events":[]}`
	var m Message
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.ID != "ABC" || m.Sender.MailboxID != "X26ABC1" || m.Recipient.MailboxID != "X26ABC2" {
		t.Errorf("ids not normalized: %q %q %q", m.ID, m.Sender.MailboxID, m.Recipient.MailboxID)
	}
	if m.CurrentStatus() != StatusAccepted {
		t.Errorf("default event missing: %q", m.CurrentStatus())
	}

	var wf Workflow
	if err := json.Unmarshal([]byte(`{"workflow_id":"WF","senders":["a", " "],"receivers":["b"]}`), &wf); err != nil {
		t.Fatalf("Unmarshal workflow: %v", err)
	}
	if len(wf.Senders) != 1 || wf.Senders[0] != "A" || wf.Receivers[0] != "B" {
		t.Errorf("workflow not normalized: %+v", wf)
	}
}
