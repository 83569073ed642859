package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptVersion(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		want   int
	}{
		{"empty", "", 1},
		{"plain json", "application/json", 1},
		{"wildcard", "*/*", 1},
		{"v1", "application/vnd.mesh.v1+json", 1},
		{"v2", "application/vnd.mesh.v2+json", 2},
		{"v2 with parameters", "application/json; application/vnd.mesh.v2+json", 2},
		{"padded", "  application/vnd.mesh.v2+json  ", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAcceptVersion(tt.accept)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAcceptVersion_Invalid(t *testing.T) {
	for _, accept := range []string{
		"application/vnd.mesh.vX+json",
		"application/vnd.mesh+json",
		"application/vnd.mesh.v2+xml",
	} {
		_, err := ParseAcceptVersion(accept)
		assert.ErrorIs(t, err, ErrInvalidAccept, accept)
	}
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "application/json", mediaType(1))
	assert.Equal(t, MediaTypeV2, mediaType(2))
	assert.Equal(t, MediaTypeV2, mediaType(3))
}
