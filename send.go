package meshsandbox

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rbaliyan/meshsandbox/chunk"
	"github.com/rbaliyan/meshsandbox/content"
	"github.com/rbaliyan/meshsandbox/errcode"
	"github.com/rbaliyan/meshsandbox/store"
)

// Field names reported by MalformedControlFile failures.
const (
	FieldTo              = "mex-To"
	FieldWorkflowID      = "mex-WorkflowID"
	FieldChunkRange      = "mex-Chunk-Range"
	FieldSubject         = "mex-Subject"
	FieldLocalID         = "mex-LocalID"
	FieldPartnerID       = "mex-PartnerID"
	FieldFileName        = "mex-FileName"
	FieldChecksum        = "mex-Content-Checksum"
	FieldContentEncoding = "Content-Encoding"
)

// SendRequest is the first chunk of an outbound transfer.
type SendRequest struct {
	To              string
	WorkflowID      string
	ChunkRange      string
	ContentEncoding string
	Subject         string
	LocalID         string
	PartnerID       string
	FileName        string
	Checksum        string
	Encrypted       bool
	Compressed      bool
	Body            []byte
}

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f]`)
	urlPrefix    = regexp.MustCompile(`(?i)^https?://`)
)

// validate checks the request fields that do not need the store.
func (r *SendRequest) validate() error {
	if strings.TrimSpace(r.To) == "" {
		return validation(errcode.KeyMissingToAddress)
	}

	var bad []string
	for _, f := range []struct {
		name, value string
	}{
		{FieldTo, r.To},
		{FieldWorkflowID, r.WorkflowID},
		{FieldChunkRange, r.ChunkRange},
		{FieldContentEncoding, r.ContentEncoding},
		{FieldSubject, r.Subject},
		{FieldLocalID, r.LocalID},
		{FieldPartnerID, r.PartnerID},
		{FieldFileName, r.FileName},
		{FieldChecksum, r.Checksum},
	} {
		if controlChars.MatchString(f.value) {
			bad = append(bad, f.name)
		}
	}
	if urlPrefix.MatchString(r.To) {
		bad = append(bad, FieldTo)
	}
	if urlPrefix.MatchString(r.WorkflowID) {
		bad = append(bad, FieldWorkflowID)
	}
	if urlPrefix.MatchString(r.Checksum) {
		bad = append(bad, FieldChecksum)
	}
	if len(bad) > 0 {
		return validation(errcode.KeyMalformedControlFile).WithFields(bad...)
	}

	if !validChecksum(r.Checksum) {
		return validation(errcode.KeyInvalidChecksum)
	}

	if r.ContentEncoding != "" && r.ContentEncoding != content.EncodingGzip {
		return validation(errcode.KeyUnsupportedEncoding)
	}
	return nil
}

// validChecksum allows letters, digits, whitespace and ":-/".
func validChecksum(s string) bool {
	for _, c := range strings.TrimSpace(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune(" \t\n\r\v\f:-/", c):
		default:
			return false
		}
	}
	return true
}

// NewMessageID returns a new message id: the hex of a random UUID, upper-cased.
func NewMessageID() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
}

// Send validates req and sends its first chunk from sender. Multi-chunk
// messages stay uploading until the last chunk arrives via UploadChunk.
func (e *Engine) Send(ctx context.Context, sender *store.Mailbox, req SendRequest) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	rng, err := chunk.Parse(req.ChunkRange, 1)
	if err != nil || rng.Number > 1 {
		return nil, validation(errcode.KeyInvalidHeaderChunks).WithCause(err)
	}

	recipient, err := e.store.GetMailbox(ctx, req.To, false)
	switch {
	case store.IsNotFound(err), store.IsInvalidID(err):
		return nil, validation(errcode.KeyUnregisteredRecipient)
	case err != nil:
		return nil, err
	}

	if len(req.Body) == 0 {
		return nil, validation(errcode.KeyMissingDataFile)
	}

	status := store.StatusAccepted
	if rng.Total >= 2 {
		status = store.StatusUploading
	}

	now := e.now()
	id := NewMessageID()
	msg := store.NewMessage(id, now, store.Event{Status: status, Timestamp: now})
	msg.Sender = store.PartyFromMailbox(sender)
	msg.Recipient = store.PartyFromMailbox(recipient)
	msg.Type = store.MessageTypeData
	msg.TotalChunks = rng.Total
	msg.InboxExpiresAt = now.Add(e.opts.inboxRetention)
	if req.WorkflowID != "" {
		msg.WorkflowID = req.WorkflowID
	}
	msg.Metadata = store.Metadata{
		Subject:         req.Subject,
		ContentEncoding: req.ContentEncoding,
		FileName:        req.FileName,
		LocalID:         req.LocalID,
		PartnerID:       req.PartnerID,
		Checksum:        req.Checksum,
		Encrypted:       req.Encrypted,
		Compressed:      req.Compressed,
	}
	if msg.Metadata.FileName == "" {
		msg.Metadata.FileName = id + ".dat"
	}
	if status == store.StatusAccepted {
		msg.FileSize = int64(len(req.Body))
	}

	if err := e.SendMessage(ctx, msg, req.Body); err != nil {
		return nil, err
	}
	e.logger.Debug("message sent",
		"message_id", msg.ID,
		"sender", msg.Sender.MailboxID,
		"recipient", msg.Recipient.MailboxID,
		"total_chunks", msg.TotalChunks,
	)
	return msg, nil
}
