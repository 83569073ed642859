package meshsandbox

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/rbaliyan/meshsandbox/errcode"
	"github.com/rbaliyan/meshsandbox/store"
)

// sendN sends n single-chunk messages from X26ABC1 to X26ABC2 and returns their ids in order.
func sendN(t *testing.T, e *Engine, n int, workflow string) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for range n {
		msg := mustSend(t, e, "X26ABC1", SendRequest{To: "X26ABC2", WorkflowID: workflow, Body: []byte("x")})
		ids = append(ids, msg.ID)
	}
	return ids
}

func continueFrom(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	return u.Query().Get("continue_from")
}

func TestListInbox(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	recipient := mustMailbox(t, e, "X26ABC2")

	ids := sendN(t, e, 3, "TEST_WORKFLOW")
	ids = append(ids, sendN(t, e, 2, "TEST_WORKFLOW2")...)

	t.Run("defaults", func(t *testing.T) {
		page, err := e.ListInbox(ctx, recipient, InboxQuery{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if !slices.Equal(page.Messages, ids) {
			t.Errorf("expected %v, got %v", ids, page.Messages)
		}
		if page.ApproxInboxCount != 5 {
			t.Errorf("expected count 5, got %d", page.ApproxInboxCount)
		}
		if page.Links != (Links{}) {
			t.Errorf("expected no links under v1, got %+v", page.Links)
		}
	})

	t.Run("v1 continues from raw id", func(t *testing.T) {
		first, err := e.ListInbox(ctx, recipient, InboxQuery{MaxResults: 2})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if !slices.Equal(first.Messages, ids[:2]) {
			t.Fatalf("first page %v", first.Messages)
		}
		second, err := e.ListInbox(ctx, recipient, InboxQuery{MaxResults: 2, ContinueFrom: ids[1]})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if !slices.Equal(second.Messages, ids[2:4]) {
			t.Errorf("second page %v", second.Messages)
		}
	})

	t.Run("v2 pages with opaque tokens", func(t *testing.T) {
		var got []string
		q := InboxQuery{APIVersion: APIVersion2, MaxResults: 2}
		for range 5 {
			page, err := e.ListInbox(ctx, recipient, q)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got = append(got, page.Messages...)
			if page.Links.Self == "" {
				t.Error("expected self link")
			}
			if page.Links.Next == "" {
				break
			}
			token := continueFrom(t, page.Links.Next)
			if slices.Contains(ids, token) {
				t.Fatalf("v2 token leaks the message id: %s", token)
			}
			q.ContinueFrom = token
		}
		if !slices.Equal(got, ids) {
			t.Errorf("expected %v, got %v", ids, got)
		}
	})

	t.Run("v2 self link", func(t *testing.T) {
		page, err := e.ListInbox(ctx, recipient, InboxQuery{APIVersion: APIVersion2, WorkflowFilter: "TEST_WORKFLOW2"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := "/messageexchange/X26ABC2/inbox?workflow_filter=TEST_WORKFLOW2"
		if page.Links.Self != want {
			t.Errorf("self = %q, want %q", page.Links.Self, want)
		}
		if page.Links.Next != "" {
			t.Errorf("expected no next link, got %q", page.Links.Next)
		}
	})

	t.Run("workflow filter", func(t *testing.T) {
		tests := []struct {
			filter string
			want   []string
		}{
			{"TEST_WORKFLOW2", ids[3:]},
			{"!TEST_WORKFLOW2", ids[:3]},
			{"TEST_*", ids},
			{"*WORKFLOW2*", ids[3:]},
		}
		for _, tt := range tests {
			page, err := e.ListInbox(ctx, recipient, InboxQuery{WorkflowFilter: tt.filter})
			if err != nil {
				t.Fatalf("list %q: %v", tt.filter, err)
			}
			if !slices.Equal(page.Messages, tt.want) {
				t.Errorf("filter %q: expected %v, got %v", tt.filter, tt.want, page.Messages)
			}
		}
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := e.ListInbox(ctx, recipient, InboxQuery{APIVersion: APIVersion2, ContinueFrom: "not-a-token"})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestRichBoxes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	sender := mustMailbox(t, e, "X26ABC1")
	recipient := mustMailbox(t, e, "X26ABC2")

	ids := sendN(t, e, 2, "TEST_WORKFLOW")
	uploading := mustSend(t, e, "X26ABC1", SendRequest{To: "X26ABC2", ChunkRange: "1:2", Body: []byte("a")})

	t.Run("inbox holds every delivered message", func(t *testing.T) {
		page, err := e.RichInbox(ctx, recipient, RichQuery{})
		if err != nil {
			t.Fatalf("rich inbox: %v", err)
		}
		if len(page.Messages) != 2 {
			t.Errorf("expected 2 delivered messages, got %d", len(page.Messages))
		}
		if page.ValidAt.IsZero() {
			t.Error("expected valid_at")
		}
	})

	t.Run("outbox includes uploading, newest first", func(t *testing.T) {
		page, err := e.RichOutbox(ctx, sender, RichQuery{})
		if err != nil {
			t.Fatalf("rich outbox: %v", err)
		}
		if len(page.Messages) != 3 || page.Messages[0].ID != uploading.ID {
			t.Fatalf("unexpected outbox %d messages", len(page.Messages))
		}
		if page.Messages[2].ID != ids[0] {
			t.Errorf("expected oldest last, got %s", page.Messages[2].ID)
		}
	})

	t.Run("start time excludes older messages", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		page, err := e.RichOutbox(ctx, sender, RichQuery{StartTime: &future})
		if err != nil {
			t.Fatalf("rich outbox: %v", err)
		}
		if len(page.Messages) != 0 {
			t.Errorf("expected no messages, got %d", len(page.Messages))
		}
	})

	t.Run("paging", func(t *testing.T) {
		page, err := e.RichOutbox(ctx, sender, RichQuery{MaxResults: 2})
		if err != nil {
			t.Fatalf("rich outbox: %v", err)
		}
		if len(page.Messages) != 2 || page.Links.Next == "" {
			t.Fatalf("expected 2 messages and a next link, got %d %q", len(page.Messages), page.Links.Next)
		}
		u, _ := url.Parse(page.Links.Next)
		if u.Path != "/messageexchange/X26ABC1/outbox/rich" {
			t.Errorf("unexpected next path %q", u.Path)
		}
		if u.Query().Get("max_results") != "2" || u.Query().Get("start_time") == "" {
			t.Errorf("unexpected next query %q", u.RawQuery)
		}

		rest, err := e.RichOutbox(ctx, sender, RichQuery{MaxResults: 2, ContinueFrom: continueFrom(t, page.Links.Next)})
		if err != nil {
			t.Fatalf("rich outbox page 2: %v", err)
		}
		if len(rest.Messages) != 1 || rest.Messages[0].ID != ids[0] {
			t.Errorf("unexpected second page")
		}
	})

	t.Run("max results is capped", func(t *testing.T) {
		page, err := e.RichOutbox(ctx, sender, RichQuery{MaxResults: 1000})
		if err != nil {
			t.Fatalf("rich outbox: %v", err)
		}
		if got := continueFrom(t, page.Links.Self); got != "" {
			t.Errorf("unexpected continue_from %q", got)
		}
		u, _ := url.Parse(page.Links.Self)
		if u.Query().Get("max_results") != "100" {
			t.Errorf("expected max_results=100, got %q", u.Query().Get("max_results"))
		}
	})
}

func TestTracking(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	sender := mustMailbox(t, e, "X26ABC1")
	recipient := mustMailbox(t, e, "X26ABC2")

	msg := mustSend(t, e, "X26ABC1", SendRequest{To: "X26ABC2", LocalID: "once", Body: []byte("a")})
	mustSend(t, e, "X26ABC1", SendRequest{To: "X26ABC2", LocalID: "twice", Body: []byte("a")})
	mustSend(t, e, "X26ABC1", SendRequest{To: "X26ABC2", LocalID: "twice", Body: []byte("b")})

	t.Run("by message id", func(t *testing.T) {
		got, err := e.TrackByMessageID(ctx, sender, msg.ID)
		if err != nil {
			t.Fatalf("track: %v", err)
		}
		if got.ID != msg.ID {
			t.Errorf("expected %s, got %s", msg.ID, got.ID)
		}
		if _, err := e.TrackByMessageID(ctx, recipient, msg.ID); !errors.Is(err, errcode.ErrNotFound) {
			t.Errorf("expected not found for non-sender, got %v", err)
		}
	})

	t.Run("by local id", func(t *testing.T) {
		got, err := e.TrackByLocalID(ctx, sender, "once")
		if err != nil {
			t.Fatalf("track: %v", err)
		}
		if got.ID != msg.ID {
			t.Errorf("expected %s, got %s", msg.ID, got.ID)
		}
		if _, err := e.TrackByLocalID(ctx, sender, "twice"); !errors.Is(err, ErrMultipleMatches) {
			t.Errorf("expected ErrMultipleMatches, got %v", err)
		}
		if _, err := e.TrackByLocalID(ctx, sender, "never"); !errors.Is(err, errcode.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mbs, err := e.Lookup(ctx, "X26", "TEST_WORKFLOW")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(mbs) != 1 || mbs[0].ID != "X26ABC2" {
		t.Errorf("expected X26ABC2, got %v", mailboxIDs(mbs))
	}

	mbs, err = e.LookupWorkflow(ctx, "TEST_WORKFLOW_ACK")
	if err != nil {
		t.Fatalf("lookup workflow: %v", err)
	}
	if got := mailboxIDs(mbs); !slices.Equal(got, []string{"X26ABC1", "X26ABC3"}) {
		t.Errorf("unexpected receivers %v", got)
	}

	if _, err := e.Lookup(ctx, " ", "TEST_WORKFLOW"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := e.LookupWorkflow(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func mailboxIDs(mbs []*store.Mailbox) []string {
	out := make([]string, 0, len(mbs))
	for _, mb := range mbs {
		out = append(out, mb.ID)
	}
	return out
}
