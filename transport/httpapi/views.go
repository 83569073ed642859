package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/meshsandbox"
	"github.com/rbaliyan/meshsandbox/store"
)

// SendMessageV1 acknowledges a send.
type SendMessageV1 struct {
	MessageID string `json:"messageID"`
}

// SendMessageV2 acknowledges a send.
type SendMessageV2 struct {
	MessageID string `json:"message_id"`
}

// UploadChunkV1 acknowledges a chunk upload. Version 2 has no body.
type UploadChunkV1 struct {
	MessageID string `json:"messageID"`
	BlockID   int    `json:"blockID"`
}

// InboxV1 lists message ids.
type InboxV1 struct {
	Messages []string `json:"messages"`
}

// InboxV2 lists message ids with paging links.
type InboxV2 struct {
	Messages         []string          `json:"messages"`
	Links            meshsandbox.Links `json:"links"`
	ApproxInboxCount int               `json:"approx_inbox_count"`
}

// InboxCountV1 is the inbox size.
type InboxCountV1 struct {
	Count              int    `json:"count"`
	InternalID         string `json:"internalID"`
	AllResultsIncluded bool   `json:"allResultsIncluded"`
}

// InboxCountV2 is the inbox size.
type InboxCountV2 struct {
	Count int `json:"count"`
}

// AcknowledgeV1 confirms an acknowledgement. Version 2 has no body.
type AcknowledgeV1 struct {
	MessageID string `json:"messageId"`
}

// HandshakeV1 echoes the authorised mailbox. Version 2 has no body.
type HandshakeV1 struct {
	MailboxID string `json:"mailboxId"`
}

// RichMessage is one entry of a rich inbox or outbox.
type RichMessage struct {
	MessageID       string     `json:"message_id"`
	ExpiryTimestamp *time.Time `json:"expiry_timestamp,omitempty"`
	LocalID         string     `json:"local_id,omitempty"`
	MessageType     string     `json:"message_type,omitempty"`
	Recipient       string     `json:"recipient"`
	RecipientName   string     `json:"recipient_name,omitempty"`
	Sender          string     `json:"sender,omitempty"`
	SenderName      string     `json:"sender_name,omitempty"`
	SentDate        *time.Time `json:"sent_date,omitempty"`
	Status          string     `json:"status"`
	StatusCode      string     `json:"status_code,omitempty"`
	WorkflowID      string     `json:"workflow_id,omitempty"`
}

// MailboxAdminView is the admin view of a mailbox: its settings without the
// password, plus its counters when the store keeps them.
type MailboxAdminView struct {
	Mailbox *store.Mailbox      `json:"mailbox"`
	Stats   *store.MailboxStats `json:"stats,omitempty"`
}

// RichView is the rich inbox and outbox body.
type RichView struct {
	ValidAt  string            `json:"valid_at"`
	Messages []RichMessage     `json:"messages"`
	Links    meshsandbox.Links `json:"links"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// richInboxMessage dates a message by its acceptance and reports the code of
// its latest error event.
func richInboxMessage(m *store.Message) RichMessage {
	r := richMessage(m)
	r.SentDate = nil
	if ts, ok := m.StatusTimestamp(store.StatusAccepted); ok {
		r.SentDate = timePtr(ts)
	}
	if ev, ok := m.ErrorEvent(); ok {
		r.StatusCode = ev.Code
	}
	return r
}

func richMessage(m *store.Message) RichMessage {
	return RichMessage{
		MessageID:       m.ID,
		ExpiryTimestamp: timePtr(m.InboxExpiresAt),
		LocalID:         m.Metadata.LocalID,
		MessageType:     string(m.Type),
		Recipient:       m.Recipient.MailboxID,
		RecipientName:   m.Recipient.MailboxName,
		Sender:          m.Sender.MailboxID,
		SenderName:      m.Sender.MailboxName,
		SentDate:        timePtr(m.CreatedAt),
		Status:          string(m.CurrentStatus()),
		WorkflowID:      m.WorkflowID,
	}
}

func richView(page *meshsandbox.RichPage, convert func(*store.Message) RichMessage) RichView {
	msgs := make([]RichMessage, 0, len(page.Messages))
	for _, m := range page.Messages {
		msgs = append(msgs, convert(m))
	}
	return RichView{
		ValidAt:  page.ValidAt.UTC().Format(time.RFC3339Nano),
		Messages: msgs,
		Links:    page.Links,
	}
}

// TrackingV1 is the version 1 tracking body.
type TrackingV1 struct {
	MessageID            string     `json:"messageId"`
	LocalID              string     `json:"localId,omitempty"`
	StatusSuccess        string     `json:"statusSuccess"`
	MessageType          string     `json:"messageType,omitempty"`
	StatusTimestamp      *time.Time `json:"statusTimestamp,omitempty"`
	RecipientName        string     `json:"recipientName,omitempty"`
	StatusCode           string     `json:"statusCode,omitempty"`
	StatusEvent          string     `json:"statusEvent,omitempty"`
	StatusDescription    string     `json:"statusDescription,omitempty"`
	Status               string     `json:"status"`
	WorkflowID           string     `json:"workflowId,omitempty"`
	RecipientOrgName     string     `json:"recipientOrgName,omitempty"`
	ExpiryTime           *time.Time `json:"expiryTime,omitempty"`
	FileName             string     `json:"fileName,omitempty"`
	MeshRecipientODSCode string     `json:"meshRecipientOdsCode,omitempty"`
	UploadTimestamp      *time.Time `json:"uploadTimestamp,omitempty"`
	Recipient            string     `json:"recipient,omitempty"`
	Sender               string     `json:"sender,omitempty"`
	RecipientOrgCode     string     `json:"recipientOrgCode,omitempty"`
}

// TrackingV2 is the version 2 tracking body.
type TrackingV2 struct {
	MessageID         string     `json:"message_id"`
	LocalID           string     `json:"local_id,omitempty"`
	WorkflowID        string     `json:"workflow_id,omitempty"`
	FileName          string     `json:"filename,omitempty"`
	ExpiryTime        *time.Time `json:"expiry_time,omitempty"`
	UploadTimestamp   *time.Time `json:"upload_timestamp,omitempty"`
	Recipient         string     `json:"recipient,omitempty"`
	RecipientName     string     `json:"recipient_name,omitempty"`
	RecipientODSCode  string     `json:"recipient_ods_code,omitempty"`
	RecipientOrgCode  string     `json:"recipient_org_code,omitempty"`
	RecipientOrgName  string     `json:"recipient_org_name,omitempty"`
	StatusSuccess     bool       `json:"status_success"`
	Status            string     `json:"status"`
	StatusEvent       string     `json:"status_event,omitempty"`
	StatusTimestamp   *time.Time `json:"status_timestamp,omitempty"`
	StatusDescription string     `json:"status_description,omitempty"`
	StatusCode        string     `json:"status_code,omitempty"`
}

func tracking(m *store.Message, version int) any {
	status := m.CurrentStatus()
	successful := status == store.StatusAccepted || status == store.StatusAcknowledged
	last, _ := m.LastEvent()

	if version < meshsandbox.APIVersion2 {
		success := "ERROR"
		if successful {
			success = "SUCCESS"
		}
		return TrackingV1{
			MessageID:            m.ID,
			LocalID:              m.Metadata.LocalID,
			StatusSuccess:        success,
			MessageType:          string(m.Type),
			StatusTimestamp:      timePtr(last.Timestamp),
			RecipientName:        m.Recipient.MailboxName,
			StatusCode:           last.Code,
			StatusEvent:          last.Event,
			StatusDescription:    last.Description,
			Status:               string(status),
			WorkflowID:           m.WorkflowID,
			RecipientOrgName:     m.Recipient.OrgName,
			ExpiryTime:           timePtr(m.InboxExpiresAt),
			FileName:             m.Metadata.FileName,
			MeshRecipientODSCode: m.Recipient.ODSCode,
			UploadTimestamp:      timePtr(m.CreatedAt),
			Recipient:            m.Recipient.MailboxID,
			Sender:               m.Sender.MailboxID,
			RecipientOrgCode:     m.Recipient.OrgCode,
		}
	}
	return TrackingV2{
		MessageID:         m.ID,
		LocalID:           m.Metadata.LocalID,
		WorkflowID:        m.WorkflowID,
		FileName:          m.Metadata.FileName,
		ExpiryTime:        timePtr(m.InboxExpiresAt),
		UploadTimestamp:   timePtr(m.CreatedAt),
		Recipient:         m.Recipient.MailboxID,
		RecipientName:     m.Recipient.MailboxName,
		RecipientODSCode:  m.Recipient.ODSCode,
		RecipientOrgCode:  m.Recipient.OrgCode,
		RecipientOrgName:  m.Recipient.OrgName,
		StatusSuccess:     successful,
		Status:            string(status),
		StatusEvent:       last.Event,
		StatusTimestamp:   timePtr(last.Timestamp),
		StatusDescription: last.Description,
		StatusCode:        last.Code,
	}
}

// EndpointLookupV1 lists mailboxes receiving a workflow.
type EndpointLookupV1 struct {
	QueryID string                 `json:"query_id"`
	Results []EndpointLookupItemV1 `json:"results"`
}

// EndpointLookupItemV1 is one EndpointLookupV1 result.
type EndpointLookupItemV1 struct {
	Address      string `json:"address"`
	Description  string `json:"description"`
	EndpointType string `json:"endpoint_type"`
}

// MailboxLookupV2 lists mailboxes receiving a workflow.
type MailboxLookupV2 struct {
	Results []MailboxLookupItem `json:"results"`
}

// MailboxLookupItem is one MailboxLookupV2 result.
type MailboxLookupItem struct {
	MailboxID   string `json:"mailbox_id"`
	MailboxName string `json:"mailbox_name"`
}

func endpointLookup(mbs []*store.Mailbox, version int) any {
	if version < meshsandbox.APIVersion2 {
		out := EndpointLookupV1{
			QueryID: uuid.NewString(),
			Results: make([]EndpointLookupItemV1, 0, len(mbs)),
		}
		for _, mb := range mbs {
			out.Results = append(out.Results, EndpointLookupItemV1{
				Address:      mb.ID,
				Description:  mb.Name,
				EndpointType: "MESH",
			})
		}
		return out
	}
	return mailboxLookup(mbs)
}

func mailboxLookup(mbs []*store.Mailbox) MailboxLookupV2 {
	out := MailboxLookupV2{Results: make([]MailboxLookupItem, 0, len(mbs))}
	for _, mb := range mbs {
		out.Results = append(out.Results, MailboxLookupItem{MailboxID: mb.ID, MailboxName: mb.Name})
	}
	return out
}

// ReportRequest is the admin report body.
type ReportRequest struct {
	MailboxID       string `json:"mailbox_id"`
	Code            string `json:"code"`
	Description     string `json:"description"`
	WorkflowID      string `json:"workflow_id"`
	Subject         string `json:"subject,omitempty"`
	LocalID         string `json:"local_id,omitempty"`
	Status          string `json:"status,omitempty"`
	FileName        string `json:"file_name,omitempty"`
	LinkedMessageID string `json:"linked_message_id,omitempty"`
}

// EventRequest is the admin add-event body.
type EventRequest struct {
	Status          string `json:"status"`
	Code            string `json:"code,omitempty"`
	Event           string `json:"event,omitempty"`
	Description     string `json:"description,omitempty"`
	LinkedMessageID string `json:"linked_message_id,omitempty"`
}
