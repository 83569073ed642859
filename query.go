package meshsandbox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rbaliyan/meshsandbox/pagination"
	"github.com/rbaliyan/meshsandbox/store"
	"go.opentelemetry.io/otel/attribute"
)

// API versions negotiated from the Accept header.
const (
	APIVersion1 = 1
	APIVersion2 = 2
)

// Paging limits.
const (
	DefaultInboxMaxResults = 500
	DefaultRichMaxResults  = 100
	MaxRichResults         = 100
	DefaultRichWindow      = 30 * 24 * time.Hour
)

const linkPrefix = "/messageexchange/"

// Links are the self and next URLs of a page. Next is empty on the last page.
type Links struct {
	Self string `json:"self,omitempty"`
	Next string `json:"next,omitempty"`
}

// InboxQuery selects a page of the standard inbox.
type InboxQuery struct {
	APIVersion     int
	MaxResults     int // 0 means DefaultInboxMaxResults
	ContinueFrom   string
	WorkflowFilter string
}

// InboxPage is a page of message ids from the standard inbox.
type InboxPage struct {
	Messages         []string
	ApproxInboxCount int
	Links            Links
	Next             string // continuation token; empty on the last page
}

// ListInbox returns a page of accepted message ids for mailbox, oldest first.
// Under APIVersion2 continuation tokens are opaque and links are filled in.
func (e *Engine) ListInbox(ctx context.Context, mailbox *store.Mailbox, q InboxQuery) (*InboxPage, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultInboxMaxResults
	}
	codec := pagination.V1()
	if q.APIVersion >= APIVersion2 {
		codec = e.tokens
	}

	var page *InboxPage
	attrs := []attribute.KeyValue{
		attribute.String("mailbox_id", mailbox.ID),
		attribute.String("box", "inbox"),
	}
	err := e.otel.observe(ctx, opList, attrs, func(ctx context.Context) error {
		after, err := decodeToken(codec, q.ContinueFrom)
		if err != nil {
			return err
		}
		msgs, err := e.store.GetInboxMessages(ctx, mailbox.ID, store.WorkflowFilter(q.WorkflowFilter))
		if err != nil {
			return err
		}

		items, last := pagination.Page(msgs, messageID, after, q.MaxResults)
		next, err := encodeToken(codec, last)
		if err != nil {
			return err
		}

		page = &InboxPage{
			Messages:         make([]string, 0, len(items)),
			ApproxInboxCount: len(msgs),
			Next:             next,
		}
		for _, m := range items {
			page.Messages = append(page.Messages, m.ID)
		}
		if q.APIVersion >= APIVersion2 {
			page.Links = inboxLinks(mailbox.ID, q, next)
		}
		return nil
	})
	return page, err
}

func inboxLinks(mailboxID string, q InboxQuery, next string) Links {
	link := func(token string) string {
		v := url.Values{}
		if q.MaxResults != DefaultInboxMaxResults {
			v.Set("max_results", strconv.Itoa(q.MaxResults))
		}
		if q.WorkflowFilter != "" {
			v.Set("workflow_filter", q.WorkflowFilter)
		}
		if token != "" {
			v.Set("continue_from", token)
		}
		return buildLink(mailboxID, "inbox", v)
	}

	links := Links{Self: link(q.ContinueFrom)}
	if next != "" {
		links.Next = link(next)
	}
	return links
}

// RichQuery selects a page of the rich inbox or outbox.
type RichQuery struct {
	StartTime    *time.Time // nil means DefaultRichWindow before now
	ContinueFrom string
	MaxResults   int // 0 means DefaultRichMaxResults, capped at MaxRichResults
}

// RichPage is a page of full messages.
type RichPage struct {
	ValidAt  time.Time
	Messages []*store.Message
	Links    Links
}

// RichInbox returns every message delivered to mailbox since the start
// time, whatever its status.
func (e *Engine) RichInbox(ctx context.Context, mailbox *store.Mailbox, q RichQuery) (*RichPage, error) {
	return e.richPage(ctx, mailbox, q, "inbox/rich", e.store.GetRichInbox)
}

// RichOutbox returns every message sent by mailbox since the start time,
// newest first.
func (e *Engine) RichOutbox(ctx context.Context, mailbox *store.Mailbox, q RichQuery) (*RichPage, error) {
	return e.richPage(ctx, mailbox, q, "outbox/rich", e.store.GetOutbox)
}

func (e *Engine) richPage(ctx context.Context, mailbox *store.Mailbox, q RichQuery, path string,
	load func(context.Context, string) ([]*store.Message, error)) (*RichPage, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}

	limit := q.MaxResults
	if limit == 0 {
		limit = DefaultRichMaxResults
	}
	limit = min(max(limit, 0), MaxRichResults)

	now := e.now()
	start := now.Add(-DefaultRichWindow)
	if q.StartTime != nil {
		start = *q.StartTime
	}

	var page *RichPage
	attrs := []attribute.KeyValue{
		attribute.String("mailbox_id", mailbox.ID),
		attribute.String("box", path),
	}
	err := e.otel.observe(ctx, opList, attrs, func(ctx context.Context) error {
		after, err := decodeToken(e.tokens, q.ContinueFrom)
		if err != nil {
			return err
		}
		msgs, err := load(ctx, mailbox.ID)
		if err != nil {
			return err
		}
		msgs = store.Apply(msgs, store.CreatedAfter(start))

		items, last := pagination.Page(msgs, messageID, after, limit)
		next, err := encodeToken(e.tokens, last)
		if err != nil {
			return err
		}

		link := func(token string) string {
			v := url.Values{}
			v.Set("start_time", start.UTC().Format(time.RFC3339))
			v.Set("max_results", strconv.Itoa(limit))
			if token != "" {
				v.Set("continue_from", token)
			}
			return buildLink(mailbox.ID, path, v)
		}
		page = &RichPage{
			ValidAt:  now,
			Messages: items,
			Links:    Links{Self: link(q.ContinueFrom)},
		}
		if next != "" {
			page.Links.Next = link(next)
		}
		return nil
	})
	return page, err
}

func buildLink(mailboxID, path string, v url.Values) string {
	link := linkPrefix + url.PathEscape(mailboxID) + "/" + path
	if len(v) > 0 {
		link += "?" + v.Encode()
	}
	return link
}

func messageID(m *store.Message) string { return m.ID }

func decodeToken(codec pagination.Codec, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", nil
	}
	c, err := codec.Decode(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return c.MessageID, nil
}

func encodeToken(codec pagination.Codec, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	return codec.Encode(pagination.Cursor{MessageID: id})
}

// InboxCount returns the number of accepted messages awaiting download,
// served from the stats cache when the store keeps stats.
func (e *Engine) InboxCount(ctx context.Context, mailbox *store.Mailbox) (int, error) {
	if err := e.checkAccess(); err != nil {
		return 0, err
	}
	stats, err := e.Stats(ctx, mailbox.ID)
	if err == nil {
		return int(stats.InboxCount), nil
	}
	if !errors.Is(err, store.ErrNotImplemented) {
		return 0, err
	}
	msgs, err := e.store.GetInbox(ctx, mailbox.ID)
	if err != nil {
		return 0, err
	}
	return len(msgs), nil
}

// TrackByMessageID returns a message sent by sender.
func (e *Engine) TrackByMessageID(ctx context.Context, sender *store.Mailbox, messageID string) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	msg, err := e.message(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender.MailboxID != store.NormalizeID(sender.ID) {
		return nil, notFound(msg.ID)
	}
	return msg, nil
}

// TrackByLocalID returns the single message sent by sender with localID.
// Returns ErrMultipleMatches when the local id was reused.
func (e *Engine) TrackByLocalID(ctx context.Context, sender *store.Mailbox, localID string) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	msgs, err := e.store.GetByLocalID(ctx, sender.ID, localID)
	if err != nil {
		return nil, err
	}
	switch len(msgs) {
	case 0:
		return nil, notFound("")
	case 1:
		return msgs[0], nil
	default:
		return nil, fmt.Errorf("%w: local id %q matches %d messages", ErrMultipleMatches, localID, len(msgs))
	}
}

// Lookup returns the mailboxes receiving workflowID within odsCode.
func (e *Engine) Lookup(ctx context.Context, odsCode, workflowID string) ([]*store.Mailbox, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(odsCode) == "" || strings.TrimSpace(workflowID) == "" {
		return nil, fmt.Errorf("%w: ods code and workflow id are required", ErrInvalidArgument)
	}
	return e.store.LookupByODSCodeAndWorkflowID(ctx, odsCode, workflowID)
}

// LookupWorkflow returns the mailboxes receiving workflowID.
func (e *Engine) LookupWorkflow(ctx context.Context, workflowID string) ([]*store.Mailbox, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(workflowID) == "" {
		return nil, fmt.Errorf("%w: workflow id is required", ErrInvalidArgument)
	}
	return e.store.LookupByWorkflowID(ctx, workflowID)
}

// Pass-through reads.

// GetMailbox returns a mailbox, optionally marking it accessed.
func (e *Engine) GetMailbox(ctx context.Context, id string, accessed bool) (*store.Mailbox, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.GetMailbox(ctx, id, accessed)
}

func (e *Engine) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.GetMessage(ctx, id)
}

func (e *Engine) GetChunk(ctx context.Context, msg *store.Message, n int) ([]byte, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.GetChunk(ctx, msg, n)
}

func (e *Engine) GetFileSize(ctx context.Context, msg *store.Message) (int64, error) {
	if err := e.checkAccess(); err != nil {
		return 0, err
	}
	return e.store.GetFileSize(ctx, msg)
}

func (e *Engine) GetInbox(ctx context.Context, mailboxID string) ([]*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.GetInbox(ctx, mailboxID)
}

// GetAcceptedInboxMessages returns the standard inbox.
func (e *Engine) GetAcceptedInboxMessages(ctx context.Context, mailboxID string) ([]*store.Message, error) {
	return e.GetInbox(ctx, mailboxID)
}

func (e *Engine) GetRichInbox(ctx context.Context, mailboxID string) ([]*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.GetRichInbox(ctx, mailboxID)
}

func (e *Engine) GetOutbox(ctx context.Context, mailboxID string) ([]*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.GetOutbox(ctx, mailboxID)
}

func (e *Engine) GetByLocalID(ctx context.Context, mailboxID, localID string) ([]*store.Message, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.GetByLocalID(ctx, mailboxID, localID)
}

func (e *Engine) LookupByODSCodeAndWorkflowID(ctx context.Context, odsCode, workflowID string) ([]*store.Mailbox, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.LookupByODSCodeAndWorkflowID(ctx, odsCode, workflowID)
}

func (e *Engine) LookupByWorkflowID(ctx context.Context, workflowID string) ([]*store.Mailbox, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}
	return e.store.LookupByWorkflowID(ctx, workflowID)
}
