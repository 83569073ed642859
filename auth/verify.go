package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbaliyan/meshsandbox/errcode"
	"github.com/rbaliyan/meshsandbox/store"
)

// Mode selects how strictly headers are checked.
type Mode string

// Verification modes.
const (
	// ModeNone skips header checks; the mailbox only has to exist.
	ModeNone Mode = "none"
	// ModeCanned accepts any well-addressed header whose nonce is "valid".
	ModeCanned Mode = "canned"
	// ModeFull checks the header structure and the HMAC token.
	ModeFull Mode = "full"
)

// ParseMode parses a mode name. "no_auth" is an alias of none.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "no_auth", "":
		return ModeNone, nil
	case "canned":
		return ModeCanned, nil
	case "full":
		return ModeFull, nil
	}
	return "", fmt.Errorf("auth: unknown mode %q", s)
}

// ErrAuthenticationFailed matches every *Failure.
var ErrAuthenticationFailed = errors.New("auth: authentication failed")

// Reason classifies an authentication failure.
type Reason string

// Failure reasons.
const (
	ReasonHeaderUnreadable Reason = "header unreadable"
	ReasonMailboxMismatch  Reason = "mailbox id does not match token"
	ReasonInvalidToken     Reason = "invalid token"
	ReasonNoMailbox        Reason = "no mailbox matched"
)

var reasonKeys = map[Reason]errcode.Key{
	ReasonHeaderUnreadable: errcode.KeyReadingAuthHeader,
	ReasonMailboxMismatch:  errcode.KeyMailboxTokenMismatch,
	ReasonInvalidToken:     errcode.KeyInvalidAuthToken,
	ReasonNoMailbox:        errcode.KeyNoMailboxMatches,
}

// Failure is a typed authentication failure.
type Failure struct {
	Reason   Reason
	Problems []string
}

func (f *Failure) Error() string {
	if len(f.Problems) == 0 {
		return "auth: " + string(f.Reason)
	}
	return "auth: " + string(f.Reason) + ": " + strings.Join(f.Problems, ", ")
}

// Is reports whether target is ErrAuthenticationFailed.
func (f *Failure) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// Err returns the taxonomy error for the failure.
func (f *Failure) Err() *errcode.Error {
	return errcode.New(errcode.ErrAuthentication, reasonKeys[f.Reason]).WithCause(f)
}

// MailboxLookup finds a mailbox by id. store.Store satisfies it.
type MailboxLookup interface {
	GetMailbox(ctx context.Context, id string, accessed bool) (*store.Mailbox, error)
}

// Verifier authenticates requests against mailbox records.
type Verifier struct {
	mode      Mode
	sharedKey string
	logger    *slog.Logger
}

// NewVerifier returns a verifier. The default mode is ModeNone.
func NewVerifier(opts ...Option) *Verifier {
	o := newOptions(opts...)
	return &Verifier{mode: o.mode, sharedKey: o.sharedKey, logger: o.logger}
}

// Mode returns the configured mode.
func (v *Verifier) Mode() Mode { return v.mode }

// Verify authenticates header for the mailbox addressed by mailboxID and
// returns the mailbox, marked as accessed. Failures are *Failure; lookup
// errors other than store.ErrNotFound are returned as is.
func (v *Verifier) Verify(ctx context.Context, lookup MailboxLookup, mailboxID, header string) (*store.Mailbox, error) {
	if v.mode == ModeNone {
		return v.lookup(ctx, lookup, mailboxID)
	}

	h, ok := ParseHeader(header)
	if !ok {
		return nil, &Failure{Reason: ReasonHeaderUnreadable}
	}
	if !strings.EqualFold(h.MailboxID, mailboxID) {
		return nil, &Failure{Reason: ReasonMailboxMismatch}
	}

	if v.mode == ModeCanned {
		if !strings.EqualFold(h.Nonce, "valid") {
			return nil, &Failure{Reason: ReasonInvalidToken}
		}
		return v.lookup(ctx, lookup, mailboxID)
	}

	if problems := h.Problems(); len(problems) > 0 {
		v.logger.Debug("auth header rejected", "mailbox_id", mailboxID, "problems", problems)
		return nil, &Failure{Reason: ReasonHeaderUnreadable, Problems: problems}
	}

	mb, err := v.lookup(ctx, lookup, mailboxID)
	if err != nil {
		return nil, err
	}
	expected := CipherText(v.sharedKey, h.MailboxID, h.Nonce, h.NonceCount, mb.Password, h.Timestamp)
	if !cipherEqual(h.CipherText, expected) {
		return nil, &Failure{Reason: ReasonInvalidToken}
	}
	return mb, nil
}

func (v *Verifier) lookup(ctx context.Context, lookup MailboxLookup, mailboxID string) (*store.Mailbox, error) {
	mb, err := lookup.GetMailbox(ctx, mailboxID, true)
	if errors.Is(err, store.ErrNotFound) || (err == nil && mb == nil) {
		return nil, &Failure{Reason: ReasonNoMailbox}
	}
	if err != nil {
		return nil, err
	}
	return mb, nil
}
