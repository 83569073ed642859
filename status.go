package meshsandbox

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rbaliyan/meshsandbox/content"
	"github.com/rbaliyan/meshsandbox/store"
)

// Wire header names.
const (
	HeaderFrom              = "mex-From"
	HeaderTo                = "mex-To"
	HeaderWorkflowID        = "mex-WorkflowID"
	HeaderChunkRange        = "mex-Chunk-Range"
	HeaderAddressType       = "mex-AddressType"
	HeaderLocalID           = "mex-LocalID"
	HeaderPartnerID         = "mex-PartnerID"
	HeaderFileName          = "mex-FileName"
	HeaderSubject           = "mex-Subject"
	HeaderVersion           = "mex-Version"
	HeaderMessageType       = "mex-MessageType"
	HeaderMessageID         = "mex-MessageID"
	HeaderContentEncoding   = "Content-Encoding"
	HeaderContentCompressed = "mex-Content-Compressed"
	HeaderContentEncrypted  = "mex-Content-Encrypted"
	HeaderContentChecksum   = "mex-Content-Checksum"
	HeaderLastModified      = "Last-Modified"

	HeaderLinkedMsgID       = "mex-LinkedMsgID"
	HeaderStatusCode        = "mex-StatusCode"
	HeaderStatusEvent       = "mex-StatusEvent"
	HeaderStatusDescription = "mex-StatusDescription"
	HeaderStatusSuccess     = "mex-StatusSuccess"
	HeaderStatusTimestamp   = "mex-StatusTimestamp"
)

// StatusTimestampFormat is the layout of mex-StatusTimestamp.
const StatusTimestampFormat = "20060102150405"

const (
	statusSuccess = "SUCCESS"
	statusError   = "ERROR"
	flagYes       = "Y"
)

// StatusHeaders returns the mex-Status* headers describing msg's delivery.
func StatusHeaders(msg *store.Message) http.Header {
	h := http.Header{}
	if errEvent, ok := msg.ErrorEvent(); ok {
		setHeader(h, HeaderLinkedMsgID, errEvent.LinkedMessageID)
		setHeader(h, HeaderStatusCode, errEvent.Code)
		setHeader(h, HeaderStatusEvent, errEvent.Event)
		setHeader(h, HeaderStatusDescription, errEvent.Description)
		setHeader(h, HeaderStatusSuccess, statusError)
		setHeader(h, HeaderStatusTimestamp, statusTimestamp(msg))
		return h
	}

	if msg.Type != store.MessageTypeData {
		setHeader(h, HeaderStatusSuccess, statusError)
		setHeader(h, HeaderStatusTimestamp, statusTimestamp(msg))
		return h
	}

	setHeader(h, HeaderStatusCode, "00")
	setHeader(h, HeaderStatusEvent, "TRANSFER")
	setHeader(h, HeaderStatusDescription, "Transferred to recipient mailbox")
	setHeader(h, HeaderStatusSuccess, statusSuccess)
	setHeader(h, HeaderStatusTimestamp, statusTimestamp(msg))
	return h
}

func statusTimestamp(msg *store.Message) string {
	ts, ok := msg.StatusTimestamp(store.StatusAccepted, store.StatusError)
	if !ok {
		ts = time.Now().UTC()
	}
	return ts.UTC().Format(StatusTimestampFormat)
}

// ResponseHeaders returns the headers sent with chunk n of msg, including the
// status headers. Empty values are omitted.
func ResponseHeaders(msg *store.Message, n int) http.Header {
	h := http.Header{}
	md := msg.Metadata

	setHeader(h, HeaderFrom, msg.Sender.MailboxID)
	setHeader(h, HeaderTo, msg.Recipient.MailboxID)
	setHeader(h, HeaderWorkflowID, msg.WorkflowID)
	if msg.TotalChunks > 0 {
		setHeader(h, HeaderChunkRange, strconv.Itoa(n)+":"+strconv.Itoa(msg.TotalChunks))
	}
	setHeader(h, HeaderAddressType, "ALL")
	setHeader(h, HeaderLocalID, md.LocalID)
	setHeader(h, HeaderPartnerID, md.PartnerID)

	fileName := md.FileName
	if fileName == "" {
		fileName = msg.ID + ".dat"
	}
	setHeader(h, HeaderFileName, fileName)
	setHeader(h, HeaderSubject, md.Subject)
	setHeader(h, HeaderVersion, "1.0")
	setHeader(h, HeaderMessageType, string(msg.Type))
	setHeader(h, HeaderMessageID, msg.ID)
	setHeader(h, HeaderContentChecksum, md.Checksum)
	if msg.Type != store.MessageTypeReport {
		setHeader(h, HeaderContentEncoding, md.ContentEncoding)
	}

	for k, v := range StatusHeaders(msg) {
		h[k] = v
	}

	if md.Compressed || h.Get(HeaderContentEncoding) == content.EncodingGzip {
		setHeader(h, HeaderContentCompressed, flagYes)
	}
	if md.Encrypted {
		setHeader(h, HeaderContentEncrypted, flagYes)
	}
	if last, ok := msg.LastEvent(); ok {
		setHeader(h, HeaderLastModified, last.Timestamp.UTC().Format(http.TimeFormat))
	}
	return h
}

func setHeader(h http.Header, key, value string) {
	if value == "" {
		return
	}
	h.Set(key, value)
}
