package meshsandbox

import (
	"context"
	"errors"

	"github.com/rbaliyan/meshsandbox/auth"
	"github.com/rbaliyan/meshsandbox/store"
)

// AuthoriseMailbox authenticates header for mailboxID and returns the
// mailbox, marked as accessed. Every failure is an *AuthorisationError.
func (e *Engine) AuthoriseMailbox(ctx context.Context, mailboxID, header string) (*store.Mailbox, error) {
	if err := e.checkAccess(); err != nil {
		return nil, err
	}

	mb, err := e.verifier.Verify(ctx, e.store, mailboxID, header)
	if err == nil {
		e.logger.Debug("mailbox authorised", "mailbox_id", mb.ID)
		return mb, nil
	}

	var f *auth.Failure
	if !errors.As(err, &f) {
		return nil, err
	}

	reason := string(f.Reason)
	if f.Reason == auth.ReasonNoMailbox {
		reason = ReasonNoMailbox
		e.logger.Info("authorisation failed: no mailbox matched", "mailbox_id", mailboxID)
	} else {
		e.logger.Info("authorisation failed", "mailbox_id", mailboxID, "reason", reason, "problems", f.Problems)
	}
	return nil, &AuthorisationError{MailboxID: mailboxID, Reason: reason, Err: f.Err()}
}
