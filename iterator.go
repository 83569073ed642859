package meshsandbox

import (
	"context"
	"iter"

	"github.com/rbaliyan/meshsandbox/store"
)

// InboxIDs walks every page of mailbox's standard inbox, following
// continuation tokens, and yields message ids oldest first. q.ContinueFrom
// is the starting point; q.MaxResults sets the page size. Iteration stops at
// the first error, which is yielded with an empty id.
//
//	for id, err := range engine.InboxIDs(ctx, mb, InboxQuery{MaxResults: 100}) {
//	    if err != nil {
//	        return err
//	    }
//	    // download id
//	}
func (e *Engine) InboxIDs(ctx context.Context, mailbox *store.Mailbox, q InboxQuery) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			page, err := e.ListInbox(ctx, mailbox, q)
			if err != nil {
				yield("", err)
				return
			}
			for _, id := range page.Messages {
				if !yield(id, nil) {
					return
				}
			}
			if page.Next == "" {
				return
			}
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			q.ContinueFrom = page.Next
		}
	}
}
