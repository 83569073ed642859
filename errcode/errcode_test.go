package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestLookupWireCodes(t *testing.T) {
	tests := []struct {
		key   Key
		phase Phase
		code  string
	}{
		{KeyMalformedControlFile, PhaseTransfer, "06"},
		{KeyUnregisteredRecipient, PhaseSend, "12"},
		{KeyInvalidToAddress, PhaseSend, "12"},
		{KeyUndeliveredMessage, PhaseSend, "14"},
		{KeyMailboxDeactivated, PhaseSend, "14"},
		{KeyTooManyMailboxMatches, PhaseSend, "EPL-150"},
		{KeyNoMailboxMatches, PhaseSend, "EPL-151"},
		{KeyMessageDoesNotExist, PhaseReceive, "20"},
		{KeyMissingDataFile, PhaseCollect, "02"},
		{KeyInvalidHeaderChunks, PhaseSend, "InvalidHeaderChunks"},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			entry, ok := Lookup(tt.key)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.key)
			}
			if entry.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", entry.Phase, tt.phase)
			}
			if entry.Code != tt.code {
				t.Errorf("code = %s, want %s", entry.Code, tt.code)
			}
		})
	}

	if _, ok := Lookup(KeyMessageLocked); ok {
		t.Error("state keys should not have a taxonomy entry")
	}
}

func TestRender(t *testing.T) {
	err := New(ErrGone, KeyUndeliveredMessage, 5)
	if got, want := err.Description(), "Message not collected by recipient after 5 days"; got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}

	ons := New(ErrValidation, KeyONSNotEnabled, Named{Name: "workflowId", Value: "CIVREG"})
	if got, want := ons.Description(), "ONS Civil Registration for workflowId CIVREG is not enabled via MESH"; got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}

	if got := Render("no placeholders", 1, 2); got != "no placeholders" {
		t.Errorf("Render() = %q", got)
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := New(ErrValidation, KeyInvalidHeaderChunks).WithMessageID("ABC").WithCause(cause)
	wrapped := fmt.Errorf("upload: %w", err)

	if !errors.Is(wrapped, ErrValidation) {
		t.Error("expected errors.Is(ErrValidation)")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is(cause)")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("unexpected errors.Is(ErrNotFound)")
	}
	if !IsKey(wrapped, KeyInvalidHeaderChunks) {
		t.Error("expected IsKey to match")
	}
	if KindOf(wrapped) != ErrValidation {
		t.Errorf("KindOf() = %v", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != nil {
		t.Error("KindOf(plain) should be nil")
	}
}

func TestPayloadOf(t *testing.T) {
	p := PayloadOf(New(ErrValidation, KeyUnregisteredRecipient).WithMessageID("M1"))
	if p.ErrorEvent != "SEND" || p.ErrorCode != "12" || p.ErrorDescription != "Unregistered to address" {
		t.Errorf("unexpected payload %+v", p)
	}
	if p.MessageID != "M1" {
		t.Errorf("MessageID = %q", p.MessageID)
	}

	p = PayloadOf(New(ErrConflict, KeyMessageLocked))
	if p.ErrorCode != "" || p.ErrorDescription != "Message locked" {
		t.Errorf("unexpected payload %+v", p)
	}

	p = PayloadOf(errors.New("plain"))
	if p.ErrorDescription != "plain" {
		t.Errorf("unexpected payload %+v", p)
	}
}
