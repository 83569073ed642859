package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rbaliyan/meshsandbox"
	"github.com/rbaliyan/meshsandbox/errcode"
	"github.com/rbaliyan/meshsandbox/store"
)

const internalErrorMessage = "An internal error occurred.\n\nPlease contact support."

// keyStatus overrides the kind-level status for specific taxonomy keys.
var keyStatus = map[errcode.Key]int{
	errcode.KeyMissingToAddress:     http.StatusBadRequest,
	errcode.KeyMalformedControlFile: http.StatusBadRequest,
	errcode.KeyInvalidChecksum:      http.StatusBadRequest,
	errcode.KeyReadingAuthHeader:    http.StatusBadRequest,
	errcode.KeyUnsupportedEncoding:  http.StatusUnprocessableEntity,
	errcode.KeyMessageLocked:        http.StatusLocked,
	errcode.KeyChunkOutOfRange:      http.StatusNotAcceptable,
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, meshsandbox.ErrUnauthorised):
		return http.StatusForbidden
	case errors.Is(err, meshsandbox.ErrMultipleMatches):
		return http.StatusMultipleChoices
	case errors.Is(err, meshsandbox.ErrResetNotSupported):
		return http.StatusMethodNotAllowed
	case errors.Is(err, meshsandbox.ErrInvalidArgument), errors.Is(err, ErrInvalidAccept):
		return http.StatusBadRequest
	}

	if e, ok := errcode.As(err); ok {
		if code, ok := keyStatus[e.Key]; ok {
			return code
		}
	}

	switch errcode.KindOf(err) {
	case errcode.ErrValidation:
		return http.StatusExpectationFailed
	case errcode.ErrAuthentication, errcode.ErrForbidden:
		return http.StatusForbidden
	case errcode.ErrNotFound:
		return http.StatusNotFound
	case errcode.ErrConflict:
		return http.StatusConflict
	case errcode.ErrGone:
		return http.StatusGone
	case errcode.ErrUnsupported:
		return http.StatusMethodNotAllowed
	}

	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// ErrorV2 is the version 2 error body.
type ErrorV2 struct {
	MessageID string        `json:"message_id,omitempty"`
	Detail    []ErrorDetail `json:"detail"`
}

// ErrorDetail is one entry of ErrorV2.Detail.
type ErrorDetail struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`
}

// handleError is the echo error handler. Taxonomy failures are rendered as
// the versioned error body; authorisation failures have no body.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}

	var body any
	var he *echo.HTTPError
	switch {
	case c.Request().Method == http.MethodHead:
	case errors.As(err, &he):
		body = map[string]any{"message": he.Message}
	case errors.Is(err, meshsandbox.ErrUnauthorised):
	case code >= http.StatusInternalServerError:
		body = map[string]string{"message": internalErrorMessage}
	default:
		body = errorBody(err, apiVersion(c))
	}

	if body == nil {
		_ = c.NoContent(code)
		return
	}
	if err := writeJSON(c, code, apiVersion(c), body); err != nil {
		s.logger.Error("write error response", "error", err)
	}
}

func errorBody(err error, version int) any {
	if _, ok := errcode.As(err); !ok {
		return map[string]string{"detail": err.Error()}
	}
	p := errcode.PayloadOf(err)
	if version < meshsandbox.APIVersion2 {
		return p
	}
	return ErrorV2{
		MessageID: p.MessageID,
		Detail:    []ErrorDetail{{Event: p.ErrorEvent, Code: p.ErrorCode, Msg: p.ErrorDescription}},
	}
}

// writeJSON renders v with the media type of version.
func writeJSON(c echo.Context, code, version int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(code, mediaType(version), data)
}
