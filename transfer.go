package meshsandbox

import (
	"context"
	"net/http"
	"strings"

	"github.com/rbaliyan/meshsandbox/chunk"
	"github.com/rbaliyan/meshsandbox/content"
	"github.com/rbaliyan/meshsandbox/errcode"
	"github.com/rbaliyan/meshsandbox/store"
)

// UploadChunk stores chunk chunkNo of an uploading message. The last chunk
// completes the upload and delivers the message.
func (e *Engine) UploadChunk(ctx context.Context, sender *store.Mailbox, messageID string, chunkNo int, chunkRange, contentEncoding string, body []byte) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(chunkRange) == "" {
		return nil, validation(errcode.KeyInvalidHeaderChunks).WithMessageID(messageID)
	}
	rng, err := chunk.Parse(chunkRange, chunkNo)
	if err != nil {
		return nil, validation(errcode.KeyInvalidHeaderChunks).WithMessageID(messageID).WithCause(err)
	}

	msg, err := e.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender.MailboxID != store.NormalizeID(sender.ID) {
		return nil, forbidden(msg.ID)
	}
	// The total is fixed by the first chunk's header.
	if rng.Total != msg.TotalChunks {
		return nil, validation(errcode.KeyInvalidHeaderChunks).WithMessageID(msg.ID)
	}
	if msg.CurrentStatus() != store.StatusUploading {
		return nil, errcode.New(errcode.ErrConflict, errcode.KeyMessageLocked).WithMessageID(msg.ID)
	}
	if chunkNo > msg.TotalChunks || msg.Type != store.MessageTypeData {
		return nil, errcode.New(errcode.ErrConflict, errcode.KeyChunkOutOfRange).WithMessageID(msg.ID)
	}
	if strings.TrimSpace(contentEncoding) != msg.Metadata.ContentEncoding {
		return nil, validation(errcode.KeyContentEncodingChanged).WithMessageID(msg.ID)
	}

	if err := e.SaveChunk(ctx, msg, chunkNo, body); err != nil {
		return nil, err
	}
	if chunkNo == msg.TotalChunks {
		if err := e.AcceptMessage(ctx, msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// message loads a message, mapping a missing or blank id to a not-found failure.
func (e *Engine) message(ctx context.Context, messageID string) (*store.Message, error) {
	msg, err := e.store.GetMessage(ctx, messageID)
	if store.IsNotFound(err) || store.IsInvalidID(err) {
		return nil, notFound(store.NormalizeID(messageID))
	}
	return msg, err
}

// RetrieveOptions carries the negotiated request attributes of a download.
type RetrieveOptions struct {
	AcceptEncoding string
	APIVersion     int
}

// Download is one chunk of a delivered message, ready to send.
type Download struct {
	Message         *store.Message
	Chunk           int
	Data            []byte
	ContentEncoding string
	Partial         bool
	Headers         http.Header
}

// Retrieve returns chunk chunkNo of a message delivered to recipient,
// decoded or encoded to suit opts.AcceptEncoding.
func (e *Engine) Retrieve(ctx context.Context, recipient *store.Mailbox, messageID string, chunkNo int, opts RetrieveOptions) (*Download, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}

	msg, err := e.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Recipient.MailboxID != store.NormalizeID(recipient.ID) {
		return nil, forbidden(msg.ID)
	}
	if !deliverable(msg) {
		return nil, gone(msg.ID)
	}

	d := &Download{Message: msg, Chunk: chunkNo}
	if msg.Type == store.MessageTypeReport {
		d.Data = []byte{}
		d.Headers = ResponseHeaders(msg, chunkNo)
		return d, nil
	}

	if chunkNo < 1 || chunkNo > msg.TotalChunks {
		return nil, notFound(msg.ID)
	}
	data, err := e.store.GetChunk(ctx, msg, chunkNo)
	if store.IsChunkNotFound(err) {
		return nil, notFound(msg.ID)
	}
	if err != nil {
		return nil, err
	}

	encoding := strings.TrimSpace(msg.Metadata.ContentEncoding)
	gzipAccepted := content.Accepts(opts.AcceptEncoding, content.EncodingGzip)
	switch {
	case encoding == content.EncodingGzip && !gzipAccepted:
		if data, err = e.codecs.Decode(encoding, data); err != nil {
			return nil, err
		}
		encoding = ""
	case encoding == "" && opts.APIVersion >= 2 && gzipAccepted:
		if data, err = e.codecs.Encode(content.EncodingGzip, data); err != nil {
			return nil, err
		}
		encoding = content.EncodingGzip
	}

	d.Data = data
	d.ContentEncoding = encoding
	d.Partial = chunkNo < msg.TotalChunks

	// headers describe the bytes actually served
	served := msg.Clone()
	served.Metadata.ContentEncoding = encoding
	d.Headers = ResponseHeaders(served, chunkNo)
	return d, nil
}

func deliverable(msg *store.Message) bool {
	switch msg.CurrentStatus() {
	case store.StatusAccepted, store.StatusAcknowledged:
		return true
	}
	return false
}

// Head returns the headers of a message without its content. The recipient
// sees delivered messages; the sender sees its messages in any status.
func (e *Engine) Head(ctx context.Context, mailbox *store.Mailbox, messageID string) (http.Header, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}

	msg, err := e.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	id := store.NormalizeID(mailbox.ID)
	switch id {
	case msg.Recipient.MailboxID:
		if !deliverable(msg) {
			return nil, gone(msg.ID)
		}
	case msg.Sender.MailboxID:
	default:
		return nil, notFound(msg.ID)
	}
	return ResponseHeaders(msg, 1), nil
}

// Acknowledge marks a delivered message as acknowledged by its recipient.
// Messages that are not accepted are left unchanged.
func (e *Engine) Acknowledge(ctx context.Context, recipient *store.Mailbox, messageID string) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}

	msg, err := e.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Recipient.MailboxID != store.NormalizeID(recipient.ID) {
		return nil, forbidden(msg.ID)
	}
	if err := e.AcknowledgeMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
