package meshsandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/rbaliyan/meshsandbox/store"
)

// CentralSystem is the sender of every delivery report.
var CentralSystem = store.Party{
	MailboxID:     "",
	MailboxName:   "Central System Mailbox",
	OrgCode:       "X26",
	ODSCode:       "X26",
	OrgName:       "NHS England",
	BillingEntity: "England",
}

// AdminReset clears state. An empty mailboxID rebuilds the whole store from
// its baseline; otherwise only that mailbox's boxes are cleared.
// Returns ErrResetNotSupported on a read-only store.
func (e *Engine) AdminReset(ctx context.Context, mailboxID string, clearDisk bool) error {
	if err := e.checkAccess(); err != nil {
		return err
	}
	if e.store.ReadOnly() {
		return ErrResetNotSupported
	}

	if strings.TrimSpace(mailboxID) == "" {
		return e.Reset(ctx, clearDisk)
	}
	err := e.ResetMailbox(ctx, mailboxID, clearDisk)
	if store.IsNotFound(err) {
		return fmt.Errorf("%w: mailbox %s", ErrNotFound, store.NormalizeID(mailboxID))
	}
	return err
}

// ReportRequest describes a delivery report raised against a mailbox.
type ReportRequest struct {
	MailboxID       string
	Status          store.Status // undeliverable or error
	Code            string
	Description     string
	WorkflowID      string
	Subject         string
	LocalID         string
	FileName        string
	LinkedMessageID string
}

// CreateReport delivers a REPORT message from the central system to
// req.MailboxID.
func (e *Engine) CreateReport(ctx context.Context, req ReportRequest) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	if req.Status != store.StatusUndeliverable && req.Status != store.StatusError {
		return nil, fmt.Errorf("%w: report status must be %s or %s, got %q",
			ErrInvalidArgument, store.StatusUndeliverable, store.StatusError, req.Status)
	}

	recipient, err := e.store.GetMailbox(ctx, req.MailboxID, false)
	if store.IsNotFound(err) || store.IsInvalidID(err) {
		return nil, fmt.Errorf("%w: mailbox %s", ErrNotFound, store.NormalizeID(req.MailboxID))
	}
	if err != nil {
		return nil, err
	}

	now := e.now()
	msg := store.NewMessage(NewMessageID(), now,
		store.Event{
			Status:          req.Status,
			Event:           "TRANSFER",
			Code:            req.Code,
			Description:     req.Description,
			LinkedMessageID: req.LinkedMessageID,
			Timestamp:       now,
		},
		store.Event{Status: store.StatusAccepted, Timestamp: now},
	)
	msg.Sender = CentralSystem
	msg.Recipient = store.PartyFromMailbox(recipient)
	msg.Type = store.MessageTypeReport
	msg.TotalChunks = 0
	msg.InboxExpiresAt = now.Add(e.opts.inboxRetention)
	if req.WorkflowID != "" {
		msg.WorkflowID = req.WorkflowID
	}
	msg.Metadata = store.Metadata{
		Subject:  req.Subject,
		LocalID:  req.LocalID,
		FileName: req.FileName,
	}

	if err := e.SendMessage(ctx, msg, nil); err != nil {
		return nil, err
	}
	e.logger.Info("report created",
		"message_id", msg.ID,
		"recipient", msg.Recipient.MailboxID,
		"status", req.Status,
		"linked_message_id", req.LinkedMessageID,
	)
	return msg, nil
}

// AddEvent appends ev to a stored message.
func (e *Engine) AddEvent(ctx context.Context, messageID string, ev store.Event) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	msg, err := e.store.GetMessage(ctx, messageID)
	if store.IsNotFound(err) || store.IsInvalidID(err) {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, store.NormalizeID(messageID))
	}
	if err != nil {
		return nil, err
	}
	if !ev.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, ev.Status)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if err := e.AddMessageEvent(ctx, msg, ev); err != nil {
		return nil, err
	}
	return msg, nil
}

// Handshake records that a mailbox connected and returns it.
func (e *Engine) Handshake(ctx context.Context, mailboxID string) (*store.Mailbox, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	mb, err := e.store.GetMailbox(ctx, mailboxID, true)
	if store.IsNotFound(err) || store.IsInvalidID(err) {
		return nil, fmt.Errorf("%w: mailbox %s", ErrNotFound, store.NormalizeID(mailboxID))
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("handshake", "mailbox_id", mb.ID)
	return mb, nil
}
