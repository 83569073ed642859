package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rbaliyan/meshsandbox"
	"github.com/rbaliyan/meshsandbox/errcode"
	"github.com/rbaliyan/meshsandbox/store"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing to", errcode.New(errcode.ErrValidation, errcode.KeyMissingToAddress), http.StatusBadRequest},
		{"malformed control file", errcode.New(errcode.ErrValidation, errcode.KeyMalformedControlFile), http.StatusBadRequest},
		{"bad checksum", errcode.New(errcode.ErrValidation, errcode.KeyInvalidChecksum), http.StatusBadRequest},
		{"unsupported encoding", errcode.New(errcode.ErrValidation, errcode.KeyUnsupportedEncoding), http.StatusUnprocessableEntity},
		{"other validation", errcode.New(errcode.ErrValidation, errcode.KeyMissingDataFile), http.StatusExpectationFailed},
		{"locked", errcode.New(errcode.ErrConflict, errcode.KeyMessageLocked), http.StatusLocked},
		{"chunk out of range", errcode.New(errcode.ErrConflict, errcode.KeyChunkOutOfRange), http.StatusNotAcceptable},
		{"forbidden", errcode.New(errcode.ErrForbidden, errcode.KeyForbidden), http.StatusForbidden},
		{"not found", errcode.New(errcode.ErrNotFound, errcode.KeyMessageDoesNotExist), http.StatusNotFound},
		{"gone", errcode.New(errcode.ErrGone, errcode.KeyMessageGone), http.StatusGone},
		{"unauthorised", &meshsandbox.AuthorisationError{MailboxID: "X26ABC1", Reason: "bad"}, http.StatusForbidden},
		{"multiple matches", fmt.Errorf("%w: local id", meshsandbox.ErrMultipleMatches), http.StatusMultipleChoices},
		{"read-only reset", meshsandbox.ErrResetNotSupported, http.StatusMethodNotAllowed},
		{"invalid argument", meshsandbox.ErrInvalidArgument, http.StatusBadRequest},
		{"invalid accept", ErrInvalidAccept, http.StatusBadRequest},
		{"store not found", fmt.Errorf("lookup: %w", store.ErrNotFound), http.StatusNotFound},
		{"echo error", echo.NewHTTPError(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestErrorBody(t *testing.T) {
	err := errcode.New(errcode.ErrGone, errcode.KeyMessageGone).WithMessageID("ABC")

	t.Run("v1 uses the taxonomy payload", func(t *testing.T) {
		body, ok := errorBody(err, 1).(errcode.Payload)
		if assert.True(t, ok) {
			assert.Equal(t, "ABC", body.MessageID)
			assert.NotEmpty(t, body.ErrorDescription)
		}
	})

	t.Run("v2 uses detail entries", func(t *testing.T) {
		body, ok := errorBody(err, 2).(ErrorV2)
		if assert.True(t, ok) {
			assert.Equal(t, "ABC", body.MessageID)
			assert.Len(t, body.Detail, 1)
		}
	})

	t.Run("plain errors", func(t *testing.T) {
		body := errorBody(meshsandbox.ErrInvalidArgument, 2)
		assert.Equal(t, map[string]string{"detail": meshsandbox.ErrInvalidArgument.Error()}, body)
	})
}
