package store

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle status of a message, as carried by its events.
type Status string

// Message status constants. Values are wire-exact.
const (
	StatusUploading     Status = "uploading"     // still uploading chunks
	StatusAccepted      Status = "accepted"      // upload complete, deliverable
	StatusAcknowledged  Status = "acknowledged"  // recipient has acknowledged
	StatusUndeliverable Status = "undeliverable" // could not be delivered
	StatusError         Status = "error"         // delivery failed
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploading, StatusAccepted, StatusAcknowledged, StatusUndeliverable, StatusError:
		return true
	}
	return false
}

// MessageType distinguishes data transfers from delivery reports.
type MessageType string

// Message types.
const (
	MessageTypeData   MessageType = "DATA"
	MessageTypeReport MessageType = "REPORT"
)

// Defaults applied by NewMessage.
const (
	DefaultWorkflowID     = "UNDEFINED"
	DefaultInboxRetention = 5 * 24 * time.Hour
)

// NormalizeID upper-cases and trims a mailbox or message identifier.
// It is idempotent.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Party is the sender or recipient of a message. Name and organisation fields
// are captured at send time so history survives mailbox edits.
type Party struct {
	MailboxID     string `json:"mailbox_id"`
	MailboxName   string `json:"mailbox_name,omitempty"`
	OrgCode       string `json:"org_code,omitempty"`
	ODSCode       string `json:"ods_code,omitempty"`
	OrgName       string `json:"org_name,omitempty"`
	BillingEntity string `json:"billing_entity,omitempty"`
}

// PartyFromMailbox captures a mailbox as a message party.
func PartyFromMailbox(mb *Mailbox) Party {
	if mb == nil {
		return Party{}
	}
	return Party{
		MailboxID:     NormalizeID(mb.ID),
		MailboxName:   mb.Name,
		OrgCode:       mb.OrgCode,
		ODSCode:       mb.ODSCode,
		OrgName:       mb.OrgName,
		BillingEntity: mb.BillingEntity,
	}
}

// Metadata holds sender-supplied message attributes.
type Metadata struct {
	Subject         string `json:"subject,omitempty"`
	ContentEncoding string `json:"content_encoding,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
	FileName        string `json:"file_name,omitempty"`
	LocalID         string `json:"local_id,omitempty"`
	PartnerID       string `json:"partner_id,omitempty"`
	Checksum        string `json:"checksum,omitempty"`
	Encrypted       bool   `json:"encrypted,omitempty"`
	Compressed      bool   `json:"is_compressed,omitempty"`
	ETag            string `json:"etag,omitempty"`
	LastModified    string `json:"last_modified,omitempty"`
}

// Event is a single entry in a message's status history.
// Events are never mutated or removed once appended.
type Event struct {
	Status          Status    `json:"status"`
	Code            string    `json:"code,omitempty"`
	Event           string    `json:"event,omitempty"`
	Description     string    `json:"description,omitempty"`
	LinkedMessageID string    `json:"linked_message_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Message is a unit of transfer with a lifecycle status.
//
// The status history is held oldest-first in an append-only slice; the latest
// event is always the last element. Use CurrentStatus, LastEvent and
// AppendEvent rather than indexing into the history.
type Message struct {
	ID             string
	Sender         Party
	Recipient      Party
	Metadata       Metadata
	WorkflowID     string
	Type           MessageType
	TotalChunks    int
	FileSize       int64
	CreatedAt      time.Time
	InboxExpiresAt time.Time

	events []Event
}

// NewMessage returns a message with defaults applied. When no events are
// supplied an accepted event stamped at created is synthesized. Events are
// given oldest first.
func NewMessage(id string, created time.Time, events ...Event) *Message {
	if created.IsZero() {
		created = time.Now().UTC()
	}
	m := &Message{
		ID:             NormalizeID(id),
		WorkflowID:     DefaultWorkflowID,
		TotalChunks:    1,
		CreatedAt:      created,
		InboxExpiresAt: created.Add(DefaultInboxRetention),
	}
	if len(events) == 0 {
		events = []Event{{Status: StatusAccepted, Timestamp: created}}
	}
	for _, e := range events {
		m.AppendEvent(e)
	}
	return m
}

// CurrentStatus returns the status of the latest event.
func (m *Message) CurrentStatus() Status {
	if len(m.events) == 0 {
		return ""
	}
	return m.events[len(m.events)-1].Status
}

// AcceptsOnSend reports whether sending m completes it at once. That holds
// for single-chunk and REPORT messages and for messages already accepted.
func (m *Message) AcceptsOnSend() bool {
	return m.TotalChunks <= 1 || m.Type == MessageTypeReport || m.CurrentStatus() == StatusAccepted
}

// LastEvent returns the latest event.
func (m *Message) LastEvent() (Event, bool) {
	if len(m.events) == 0 {
		return Event{}, false
	}
	return m.events[len(m.events)-1], true
}

// AppendEvent adds e as the latest event. A zero timestamp is stamped with the
// current time, and a timestamp older than the current latest event is raised
// to it so the history stays ordered.
func (m *Message) AppendEvent(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if last, ok := m.LastEvent(); ok && e.Timestamp.Before(last.Timestamp) {
		e.Timestamp = last.Timestamp
	}
	m.events = append(m.events, e)
}

// EventCount returns the number of events in the history.
func (m *Message) EventCount() int {
	return len(m.events)
}

// Events returns a copy of the history, newest first.
func (m *Message) Events() []Event {
	out := slices.Clone(m.events)
	slices.Reverse(out)
	return out
}

// ErrorEvent returns the most recent error event.
func (m *Message) ErrorEvent() (Event, bool) {
	return m.findEvent(func(e Event) bool { return e.Status == StatusError })
}

// StatusTimestamp returns the timestamp of the most recent event matching any
// of statuses, or of the latest event when none are given.
func (m *Message) StatusTimestamp(statuses ...Status) (time.Time, bool) {
	if len(statuses) == 0 {
		last, ok := m.LastEvent()
		return last.Timestamp, ok
	}
	e, ok := m.findEvent(func(e Event) bool { return slices.Contains(statuses, e.Status) })
	return e.Timestamp, ok
}

func (m *Message) findEvent(match func(Event) bool) (Event, bool) {
	for i := len(m.events) - 1; i >= 0; i-- {
		if match(m.events[i]) {
			return m.events[i], true
		}
	}
	return Event{}, false
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.events = slices.Clone(m.events)
	return &c
}

// messageJSON is the wire/persisted form of a Message. Events are newest first.
type messageJSON struct {
	MessageID      string      `json:"message_id"`
	Sender         Party       `json:"sender"`
	Recipient      Party       `json:"recipient"`
	Metadata       Metadata    `json:"metadata"`
	WorkflowID     string      `json:"workflow_id,omitempty"`
	MessageType    MessageType `json:"message_type,omitempty"`
	TotalChunks    *int        `json:"total_chunks,omitempty"`
	FileSize       int64       `json:"file_size"`
	Events         []Event     `json:"events"`
	CreatedAt      time.Time   `json:"created_timestamp"`
	InboxExpiresAt time.Time   `json:"inbox_expiry_timestamp"`
}

// MarshalJSON encodes the message with its history newest first.
func (m *Message) MarshalJSON() ([]byte, error) {
	total := m.TotalChunks
	return json.Marshal(messageJSON{
		MessageID:      m.ID,
		Sender:         m.Sender,
		Recipient:      m.Recipient,
		Metadata:       m.Metadata,
		WorkflowID:     m.WorkflowID,
		MessageType:    m.Type,
		TotalChunks:    &total,
		FileSize:       m.FileSize,
		Events:         m.Events(),
		CreatedAt:      m.CreatedAt,
		InboxExpiresAt: m.InboxExpiresAt,
	})
}

// UnmarshalJSON decodes a message, normalizing identifiers and applying the
// same defaults as NewMessage.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// history arrives newest first
	events := slices.Clone(raw.Events)
	slices.Reverse(events)

	decoded := NewMessage(raw.MessageID, raw.CreatedAt, events...)
	decoded.Sender = raw.Sender
	decoded.Sender.MailboxID = NormalizeID(raw.Sender.MailboxID)
	decoded.Recipient = raw.Recipient
	decoded.Recipient.MailboxID = NormalizeID(raw.Recipient.MailboxID)
	decoded.Metadata = raw.Metadata
	if raw.WorkflowID != "" {
		decoded.WorkflowID = raw.WorkflowID
	}
	decoded.Type = raw.MessageType
	if raw.TotalChunks != nil {
		decoded.TotalChunks = *raw.TotalChunks
	}
	decoded.FileSize = raw.FileSize
	if !raw.InboxExpiresAt.IsZero() {
		decoded.InboxExpiresAt = raw.InboxExpiresAt
	}
	*m = *decoded
	return nil
}
