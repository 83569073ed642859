// Package errcode holds the fixed error taxonomy used to build protocol-correct
// error payloads, and the typed failure value that carries a taxonomy key.
//
// Every key maps to a (phase, code, description) triple. The literal codes and
// descriptions are wire-exact: integration clients assert on them.
package errcode

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is the transfer phase an error is reported against.
type Phase string

// Transfer phases.
const (
	PhaseSend     Phase = "SEND"
	PhaseTransfer Phase = "TRANSFER"
	PhaseCollect  Phase = "COLLECT"
	PhaseReceive  Phase = "RECEIVE"
)

// Key identifies an entry in the taxonomy.
type Key string

// Taxonomy keys.
const (
	KeyMalformedControlFile    Key = "MalformedControlFile"
	KeyInvalidFromAddress      Key = "Invalid From Address"
	KeyMissingToAddress        Key = "TO_DTS missing"
	KeyInvalidVersion          Key = "Invalid Version"
	KeyInvalidMessageType      Key = "Invalid message type"
	KeyInvalidExpiryPeriod     Key = "Invalid expiry period"
	KeyUnregisteredRecipient   Key = "Unregistered recipient"
	KeyUndeliveredMessage      Key = "Message not collected by recipient after {0} days"
	KeyMailboxDeactivated      Key = "Message was not collected as the mailbox is deactivated"
	KeyMissingDataFile         Key = "MissingDataFile"
	KeyWorkflowNotRegistered   Key = "Workflow ID not registered for mailbox"
	KeyTooManyMailboxMatches   Key = "Multiple mailboxes matches"
	KeyNoMailboxMatches        Key = "No mailbox matched"
	KeyMessageGone             Key = "Message already accepted"
	KeyMessageDoesNotExist     Key = "Message does not exist"
	KeyONSNotEnabled           Key = "ONS Civil Registration Workflow ID not enabled via MESH"
	KeyInvalidToAddress        Key = "Invalid to Address"
	KeyInvalidHeaderChunks     Key = "InvalidHeaderChunks"
	KeyUnsupportedEncoding     Key = "UnsupportedContentEncoding"
	KeyInvalidChecksum         Key = "Invalid checksum"
	KeyInvalidFileFormat       Key = "Invalid file format"
	KeyReadingAuthHeader       Key = "Error reading from Authorization header"
	KeyMailboxTokenMismatch    Key = "Mailbox id does not match token"
	KeyInvalidAuthToken        Key = "Invalid Authentication Token"
	KeyDuplicatedAuthToken     Key = "Error Duplicated Authentication Token"
	KeyContentEncodingChanged  Key = "cannot change content encoding"
	KeyMessageUnexpectedStatus Key = "Message in unexpected status"
	KeyInactiveMailbox         Key = "Request Received from Inactive Mailbox"
	KeyMessageLocked           Key = "Message locked"
	KeyChunkOutOfRange         Key = "Chunk out of range"
	KeyForbidden               Key = "Forbidden"
)

// Entry is a single row of the taxonomy.
type Entry struct {
	Phase       Phase
	Code        string
	Description string
}

// Codes that are shared between several keys.
const (
	codeUnregisteredRecipient = "12"
	codeUndeliveredMessage    = "14"
	codeMalformedControlFile  = "06"
)

// table is keyed by Key; some codes repeat deliberately (14 and 12).
var table = map[Key]Entry{
	KeyMalformedControlFile:  {PhaseTransfer, codeMalformedControlFile, "Malformed control file"},
	KeyInvalidFromAddress:    {PhaseSend, "07", "Invalid From Address in the control file"},
	KeyMissingToAddress:      {PhaseSend, "08", "TO_DTS missing"},
	KeyInvalidVersion:        {PhaseSend, "09", "Invalid version of the control file"},
	KeyInvalidMessageType:    {PhaseSend, "11", "Invalid Message Type for the transfer"},
	KeyInvalidExpiryPeriod:   {PhaseSend, "19", "Invalid expiry period"},
	KeyUnregisteredRecipient: {PhaseSend, codeUnregisteredRecipient, "Unregistered to address"},
	KeyUndeliveredMessage:    {PhaseSend, codeUndeliveredMessage, string(KeyUndeliveredMessage)},
	KeyMailboxDeactivated:    {PhaseSend, codeUndeliveredMessage, string(KeyMailboxDeactivated)},
	KeyMissingDataFile:       {PhaseCollect, "02", "Data file is missing or inaccessible."},
	KeyWorkflowNotRegistered: {PhaseSend, "17", string(KeyWorkflowNotRegistered)},
	KeyTooManyMailboxMatches: {PhaseSend, "EPL-150", string(KeyTooManyMailboxMatches)},
	KeyNoMailboxMatches:      {PhaseSend, "EPL-151", string(KeyNoMailboxMatches)},
	KeyMessageGone:           {PhaseSend, string(KeyMessageGone), "Message no longer available for download"},
	KeyMessageDoesNotExist:   {PhaseReceive, "20", string(KeyMessageDoesNotExist)},
	KeyONSNotEnabled: {
		PhaseSend, "18", "ONS Civil Registration for workflowId {workflowId} is not enabled via MESH",
	},
	KeyInvalidToAddress:    {PhaseSend, codeUnregisteredRecipient, "Cannot send messages to internal mailbox"},
	KeyInvalidHeaderChunks: {PhaseSend, string(KeyInvalidHeaderChunks), "Invalid chunk values sent in mex-Chunk-Range header"},
	KeyUnsupportedEncoding: {PhaseSend, string(KeyUnsupportedEncoding), "Unsupported content encoding"},
	KeyInvalidChecksum:     {PhaseSend, string(KeyInvalidChecksum), "Invalid checksum"},
	KeyInvalidFileFormat:   {PhaseSend, string(KeyInvalidFileFormat), "File Level Error (file not formed correctly)"},
}

// Lookup returns the taxonomy entry for key.
// Keys without an entry (auth and state failures) report ok=false; their
// description is the key itself.
func Lookup(key Key) (Entry, bool) {
	e, ok := table[key]
	return e, ok
}

// Keys returns every key that has a taxonomy entry.
func Keys() []Key {
	keys := make([]Key, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	return keys
}

// Named is a named template argument, e.g. Named{"workflowId", "X"} fills {workflowId}.
type Named struct {
	Name  string
	Value any
}

// Render fills a description template. Positional arguments replace {0}, {1}, ...
// and Named arguments replace {name}.
func Render(template string, args ...any) string {
	if len(args) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(args)*2)
	pos := 0
	for _, a := range args {
		if n, ok := a.(Named); ok {
			pairs = append(pairs, "{"+n.Name+"}", fmt.Sprint(n.Value))
			continue
		}
		pairs = append(pairs, "{"+strconv.Itoa(pos)+"}", fmt.Sprint(a))
		pos++
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
