package content

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Built-in codecs.
var (
	// Gzip compresses and decompresses with gzip.
	Gzip Codec = gzipCodec{}

	// Identity passes data through unchanged.
	Identity Codec = identityCodec{}
)

// DefaultRegistry returns a registry pre-loaded with all built-in codecs.
func DefaultRegistry() *Registry {
	return NewRegistry(Gzip, Identity)
}

type gzipCodec struct{}

func (gzipCodec) Encoding() string { return EncodingGzip }

func (gzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

type identityCodec struct{}

func (identityCodec) Encoding() string                   { return EncodingIdentity }
func (identityCodec) Encode(data []byte) ([]byte, error) { return data, nil }
func (identityCodec) Decode(data []byte) ([]byte, error) { return data, nil }
