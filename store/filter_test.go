package store

import (
	"testing"
	"time"
)

func TestWorkflowFilter(t *testing.T) {
	ids := []string{"TEST_WORKFLOW", "TEST_WORKFLOW_ACK", "OTHER", "MY_TEST"}

	tests := []struct {
		expr string
		want []string
	}{
		{"", ids},
		{"   ", ids},
		{"TEST_WORKFLOW", []string{"TEST_WORKFLOW"}},
		{"!TEST_WORKFLOW", []string{"TEST_WORKFLOW_ACK", "OTHER", "MY_TEST"}},
		{"TEST*", []string{"TEST_WORKFLOW", "TEST_WORKFLOW_ACK"}},
		{"!TEST*", []string{"OTHER", "MY_TEST"}},
		{"*TEST*", []string{"TEST_WORKFLOW", "TEST_WORKFLOW_ACK", "MY_TEST"}},
		{"!*TEST*", []string{"OTHER"}},
	}

	msgs := make([]*Message, 0, len(ids))
	for _, id := range ids {
		m := NewMessage(id, time.Time{})
		m.WorkflowID = id
		msgs = append(msgs, m)
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := Apply(msgs, WorkflowFilter(tt.expr))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d messages, want %d", len(got), len(tt.want))
			}
			for i, m := range got {
				if m.WorkflowID != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, m.WorkflowID, tt.want[i])
				}
			}
		})
	}
}

func TestCombinedFilters(t *testing.T) {
	now := time.Now().UTC()
	old := NewMessage("old", now.Add(-48*time.Hour))
	recent := NewMessage("recent", now)
	recent.AppendEvent(Event{Status: StatusAcknowledged})

	f := All(CreatedAfter(now.Add(-time.Hour)), nil)
	if f(old) || !f(recent) {
		t.Error("CreatedAfter mismatch")
	}

	if !StatusIn(StatusAccepted)(old) || StatusIn(StatusAccepted)(recent) {
		t.Error("StatusIn mismatch")
	}

	var none MessageFilter
	if !none.Match(old) {
		t.Error("nil filter should match")
	}
}
