package store

import (
	"encoding/json"
	"time"
)

// Mailbox is an addressable endpoint authenticated by a shared secret.
//
// LastAccessed and InboxCount are derived: stores recompute them on every read
// and never persist them.
type Mailbox struct {
	ID            string    `json:"mailbox_id"`
	Name          string    `json:"mailbox_name,omitempty"`
	Password      string    `json:"password,omitempty"`
	ODSCode       string    `json:"ods_code,omitempty"`
	OrgCode       string    `json:"org_code,omitempty"`
	OrgName       string    `json:"org_name,omitempty"`
	BillingEntity string    `json:"billing_entity,omitempty"`
	LastAccessed  time.Time `json:"last_accessed,omitempty"`
	InboxCount    int       `json:"inbox_count"`
}

// UnmarshalJSON normalizes the mailbox id on decode.
func (mb *Mailbox) UnmarshalJSON(data []byte) error {
	type alias Mailbox
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw.ID = NormalizeID(raw.ID)
	*mb = Mailbox(raw)
	return nil
}

// Clone returns a copy of mb.
func (mb *Mailbox) Clone() *Mailbox {
	if mb == nil {
		return nil
	}
	c := *mb
	return &c
}

// Workflow routes a workflow id between sending and receiving mailboxes.
// Workflows come from fixture data only and are immutable after load.
type Workflow struct {
	ID        string   `json:"workflow_id"`
	Senders   []string `json:"senders"`
	Receivers []string `json:"receivers"`
}

// UnmarshalJSON normalizes sender and receiver ids and drops empty entries.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	type alias Workflow
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw.Senders = normalizeIDs(raw.Senders)
	raw.Receivers = normalizeIDs(raw.Receivers)
	*w = Workflow(raw)
	return nil
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = NormalizeID(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Dataset is the baseline a store is built from and reset to.
type Dataset struct {
	Mailboxes []*Mailbox
	Workflows []*Workflow
	Messages  []*Message
	// Chunks maps a message id to its chunk payloads, chunk 1 at index 0.
	Chunks map[string][][]byte
}

// Clone returns a deep copy of d so a store can mutate it freely.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return &Dataset{Chunks: map[string][][]byte{}}
	}
	c := &Dataset{
		Mailboxes: make([]*Mailbox, 0, len(d.Mailboxes)),
		Workflows: make([]*Workflow, 0, len(d.Workflows)),
		Messages:  make([]*Message, 0, len(d.Messages)),
		Chunks:    make(map[string][][]byte, len(d.Chunks)),
	}
	for _, mb := range d.Mailboxes {
		c.Mailboxes = append(c.Mailboxes, mb.Clone())
	}
	for _, wf := range d.Workflows {
		w := *wf
		w.Senders = append([]string(nil), wf.Senders...)
		w.Receivers = append([]string(nil), wf.Receivers...)
		c.Workflows = append(c.Workflows, &w)
	}
	for _, m := range d.Messages {
		c.Messages = append(c.Messages, m.Clone())
	}
	for id, chunks := range d.Chunks {
		cp := make([][]byte, len(chunks))
		for i, b := range chunks {
			cp[i] = append([]byte(nil), b...)
		}
		c.Chunks[id] = cp
	}
	return c
}
