// Package auth implements the NHSMESH authorization header: parsing, the
// HMAC token scheme and verification against a mailbox record.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Scheme is the authorization scheme token.
const Scheme = "NHSMESH"

const headerParts = 5

// Header is a parsed authorization header.
// Missing trailing fields are empty so that Problems can classify them.
type Header struct {
	Scheme     string
	MailboxID  string
	Nonce      string
	NonceCount string
	Timestamp  string
	CipherText string
	// Parts is the number of colon-separated fields present.
	Parts int
}

// ParseHeader parses raw. It reports false only for a blank header.
func ParseHeader(raw string) (Header, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Header{}, false
	}

	var h Header
	if len(raw) >= len(Scheme) && strings.EqualFold(raw[:len(Scheme)], Scheme) {
		h.Scheme = Scheme
		if len(raw) > len(Scheme) {
			raw = raw[len(Scheme)+1:]
		} else {
			raw = ""
		}
	}

	parts := strings.Split(raw, ":")
	h.Parts = len(parts)
	for len(parts) < headerParts {
		parts = append(parts, "")
	}
	h.MailboxID = parts[0]
	h.Nonce = parts[1]
	h.NonceCount = parts[2]
	h.Timestamp = parts[3]
	h.CipherText = parts[4]
	return h, true
}

// Problems lists the structural reasons the header is invalid.
func (h Header) Problems() []string {
	var reasons []string
	if h.Parts != headerParts {
		reasons = append(reasons, fmt.Sprintf("invalid num header parts: %d", h.Parts))
	}
	if !isDigits(h.NonceCount) {
		reasons = append(reasons, "nonce count is not digits")
	}
	if h.Scheme != Scheme && h.Scheme != "" {
		reasons = append(reasons, "invalid auth scheme or mailbox_id contains a space")
	}
	if strings.Contains(h.MailboxID, " ") {
		reasons = append(reasons, "mailbox_id contains a space")
	}
	return reasons
}

// String renders the header in wire form.
func (h Header) String() string {
	fields := strings.Join([]string{h.MailboxID, h.Nonce, h.NonceCount, h.Timestamp, h.CipherText}, ":")
	if h.Scheme == "" {
		return fields
	}
	return h.Scheme + " " + fields
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// CipherText returns the hex HMAC-SHA256 of
// "{mailbox}:{nonce}:{nonceCount}:{password}:{timestamp}" keyed by secret.
func CipherText(secret, mailboxID, nonce, nonceCount, password, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(mailboxID + ":" + nonce + ":" + nonceCount + ":" + password + ":" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildHeader returns a valid header for the mailbox credentials.
func BuildHeader(secret, mailboxID, password, nonce, nonceCount, timestamp string) string {
	return Header{
		Scheme:     Scheme,
		MailboxID:  mailboxID,
		Nonce:      nonce,
		NonceCount: nonceCount,
		Timestamp:  timestamp,
		CipherText: CipherText(secret, mailboxID, nonce, nonceCount, password, timestamp),
		Parts:      headerParts,
	}.String()
}

func cipherEqual(a, b string) bool {
	return hmac.Equal([]byte(strings.ToLower(a)), []byte(strings.ToLower(b)))
}
