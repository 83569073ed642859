// Package pagination encodes continuation tokens and slices pages of results.
//
// Two token schemes exist. V1 tokens are the raw id of the last message on the
// previous page. V2 tokens are the same cursor sealed with XChaCha20-Poly1305
// under a key generated per process, so tokens are opaque to clients and stop
// working after a restart.
package pagination

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidToken is returned when a continuation token cannot be decoded.
var ErrInvalidToken = errors.New("pagination: invalid continuation token")

// Cursor marks the last item of a page.
type Cursor struct {
	MessageID string `json:"message_id"`
}

// Codec converts cursors to and from continuation tokens.
type Codec interface {
	Encode(c Cursor) (string, error)
	Decode(token string) (Cursor, error)
}

type v1 struct{}

// V1 returns the identity codec: the token is the message id.
func V1() Codec { return v1{} }

func (v1) Encode(c Cursor) (string, error) { return c.MessageID, nil }

func (v1) Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, ErrInvalidToken
	}
	return Cursor{MessageID: token}, nil
}

// V2 seals cursors with XChaCha20-Poly1305. Safe for concurrent use.
type V2 struct {
	aead cipher.AEAD
}

// NewV2 returns a V2 codec with a random key.
func NewV2() (*V2, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("pagination: generate key: %w", err)
	}
	return NewV2WithKey(key)
}

// NewV2WithKey returns a V2 codec using a 32-byte key.
func NewV2WithKey(key []byte) (*V2, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("pagination: %w", err)
	}
	return &V2{aead: aead}, nil
}

// Encode seals c and returns nonce||ciphertext as unpadded URL-safe base64.
func (v *V2) Encode(c Cursor) (string, error) {
	plain, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("pagination: encode cursor: %w", err)
	}
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("pagination: generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a token produced by Encode with the same key.
func (v *V2) Decode(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < v.aead.NonceSize()+v.aead.Overhead() {
		return Cursor{}, ErrInvalidToken
	}
	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(plain, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Page skips items up to and including the one whose id is after, then
// truncates to limit. When truncation happens next is the id of the last
// returned item; otherwise it is empty. An after id that is not found starts
// from the beginning. A negative limit is treated as zero.
func Page[T any](items []T, id func(T) string, after string, limit int) (page []T, next string) {
	if after != "" {
		for i, item := range items {
			if id(item) == after {
				items = items[i+1:]
				break
			}
		}
	}
	limit = max(limit, 0)
	if len(items) <= limit {
		return items, ""
	}
	page = items[:limit]
	if len(page) > 0 {
		next = id(page[len(page)-1])
	}
	return page, next
}
