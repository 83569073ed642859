// Package content provides the content-encoding codec layer for message chunks.
//
// Chunks are stored exactly as uploaded. When a sender declares a
// Content-Encoding, the codec for that encoding can decode a chunk on the way
// out to a recipient that does not accept the encoding, or encode plain bytes
// for senders and tests that need compressed payloads.
//
// # Usage
//
//	codec, ok := content.DefaultRegistry().Lookup(msg.Metadata.ContentEncoding)
//	if ok && !content.Accepts(acceptEncoding, codec.Encoding()) {
//	    chunk, err = codec.Decode(chunk)
//	}
package content

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Encoding names.
const (
	EncodingGzip     = "gzip"
	EncodingIdentity = "identity"
)

// Sentinel errors.
var (
	// ErrUnsupportedEncoding is returned when no codec is registered for an encoding.
	ErrUnsupportedEncoding = errors.New("content: unsupported content encoding")

	// ErrEncoding is returned when a codec fails to encode data.
	ErrEncoding = errors.New("content: encoding failed")

	// ErrDecoding is returned when a codec fails to decode data.
	ErrDecoding = errors.New("content: decoding failed")
)

// Codec converts chunk bytes to and from a content encoding.
type Codec interface {
	// Encoding returns the Content-Encoding token this codec handles.
	Encoding() string

	// Encode applies the encoding to plain bytes.
	Encode(data []byte) ([]byte, error)

	// Decode removes the encoding.
	Decode(data []byte) ([]byte, error)
}

// Registry maps content encodings to codecs.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates a registry pre-loaded with the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{
		codecs: make(map[string]Codec, len(codecs)),
	}
	for _, c := range codecs {
		r.codecs[normalize(c.Encoding())] = c
	}
	return r
}

// Register adds a codec to the registry, replacing any codec for the same encoding.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	r.codecs[normalize(c.Encoding())] = c
	r.mu.Unlock()
}

// Lookup returns the codec for encoding. Matching ignores case and
// surrounding space.
func (r *Registry) Lookup(encoding string) (Codec, bool) {
	r.mu.RLock()
	c, ok := r.codecs[normalize(encoding)]
	r.mu.RUnlock()
	return c, ok
}

// Decode removes encoding from data. An empty or identity encoding returns
// data unchanged.
func (r *Registry) Decode(encoding string, data []byte) ([]byte, error) {
	c, err := r.codec(encoding)
	if err != nil || c == nil {
		return data, err
	}
	out, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	return out, nil
}

// Encode applies encoding to data. An empty or identity encoding returns
// data unchanged.
func (r *Registry) Encode(encoding string, data []byte) ([]byte, error) {
	c, err := r.codec(encoding)
	if err != nil || c == nil {
		return data, err
	}
	out, err := c.Encode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return out, nil
}

func (r *Registry) codec(encoding string) (Codec, error) {
	enc := normalize(encoding)
	if enc == "" || enc == EncodingIdentity {
		return nil, nil
	}
	c, ok := r.Lookup(enc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
	}
	return c, nil
}

// Accepts reports whether an Accept-Encoding header value lists encoding.
// Matching is by substring, so "gzip, deflate" accepts gzip.
func Accepts(acceptEncoding, encoding string) bool {
	enc := normalize(encoding)
	if enc == "" {
		return true
	}
	return strings.Contains(strings.ToLower(acceptEncoding), enc)
}

func normalize(encoding string) string {
	return strings.ToLower(strings.TrimSpace(encoding))
}
