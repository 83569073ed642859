package httpapi

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rbaliyan/meshsandbox"
)

// Media types of versioned responses.
const (
	MediaTypeV1 = "application/vnd.mesh.v1+json"
	MediaTypeV2 = "application/vnd.mesh.v2+json"
)

// ErrInvalidAccept is returned for a vnd.mesh Accept value that names no version.
var ErrInvalidAccept = errors.New("httpapi: invalid accept header")

var acceptVersion = regexp.MustCompile(`^application/vnd\.mesh\.v(\d+)\+json$`)

// ParseAcceptVersion returns the API version requested by an Accept header.
// Values without "vnd.mesh" select version 1.
func ParseAcceptVersion(accept string) (int, error) {
	if strings.TrimSpace(accept) == "" {
		return meshsandbox.APIVersion1, nil
	}
	for _, part := range strings.Split(accept, ";") {
		part = strings.TrimSpace(part)
		if part == "" || !strings.Contains(part, "vnd.mesh") {
			continue
		}
		m := acceptVersion.FindStringSubmatch(part)
		if m == nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAccept, part)
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAccept, part)
		}
		return v, nil
	}
	return meshsandbox.APIVersion1, nil
}

// apiVersion is the negotiated version of the request. The version middleware
// has already rejected unreadable values.
func apiVersion(c echo.Context) int {
	if v, ok := c.Get(ctxAPIVersion).(int); ok {
		return v
	}
	v, err := ParseAcceptVersion(c.Request().Header.Get(echo.HeaderAccept))
	if err != nil {
		return meshsandbox.APIVersion1
	}
	return v
}

func mediaType(version int) string {
	if version >= meshsandbox.APIVersion2 {
		return MediaTypeV2
	}
	return echo.MIMEApplicationJSON
}
