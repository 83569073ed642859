package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rbaliyan/meshsandbox"
)

// headerFlag reads a Y/N style header.
func headerFlag(h http.Header, key string) bool {
	switch strings.ToLower(strings.TrimSpace(h.Get(key))) {
	case "y", "yes", "true", "1":
		return true
	}
	return false
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

func chunkParam(c echo.Context) (int, error) {
	raw := c.Param("chunk")
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: chunk number %q", meshsandbox.ErrInvalidArgument, raw)
	}
	return n, nil
}

// send starts an outbound transfer with chunk 1.
func (s *Server) send(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	h := c.Request().Header
	req := meshsandbox.SendRequest{
		To:              h.Get(meshsandbox.HeaderTo),
		WorkflowID:      h.Get(meshsandbox.HeaderWorkflowID),
		ChunkRange:      h.Get(meshsandbox.HeaderChunkRange),
		ContentEncoding: h.Get(meshsandbox.HeaderContentEncoding),
		Subject:         h.Get(meshsandbox.HeaderSubject),
		LocalID:         h.Get(meshsandbox.HeaderLocalID),
		PartnerID:       h.Get(meshsandbox.HeaderPartnerID),
		FileName:        h.Get(meshsandbox.HeaderFileName),
		Checksum:        h.Get(meshsandbox.HeaderContentChecksum),
		Encrypted:       headerFlag(h, meshsandbox.HeaderContentEncrypted),
		Compressed:      headerFlag(h, meshsandbox.HeaderContentCompressed),
		Body:            body,
	}

	msg, err := s.engine.Send(c.Request().Context(), mailboxFrom(c), req)
	if err != nil {
		return err
	}

	v := apiVersion(c)
	if v < meshsandbox.APIVersion2 {
		return writeJSON(c, http.StatusAccepted, v, SendMessageV1{MessageID: msg.ID})
	}
	return writeJSON(c, http.StatusAccepted, v, SendMessageV2{MessageID: msg.ID})
}

// uploadChunk stores chunk 2..n of a transfer.
func (s *Server) uploadChunk(c echo.Context) error {
	n, err := chunkParam(c)
	if err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	h := c.Request().Header
	msg, err := s.engine.UploadChunk(c.Request().Context(), mailboxFrom(c), c.Param("message"), n,
		h.Get(meshsandbox.HeaderChunkRange), h.Get(meshsandbox.HeaderContentEncoding), body)
	if err != nil {
		return err
	}

	v := apiVersion(c)
	if v < meshsandbox.APIVersion2 {
		return writeJSON(c, http.StatusAccepted, v, UploadChunkV1{MessageID: msg.ID, BlockID: n})
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) richOutbox(c echo.Context) error {
	q, err := richQuery(c)
	if err != nil {
		return err
	}
	page, err := s.engine.RichOutbox(c.Request().Context(), mailboxFrom(c), q)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, apiVersion(c), richView(page, richMessage))
}

func (s *Server) trackByMessageID(c echo.Context) error {
	msg, err := s.engine.TrackByMessageID(c.Request().Context(), mailboxFrom(c), c.Param("message"))
	if err != nil {
		return err
	}
	v := apiVersion(c)
	return writeJSON(c, http.StatusOK, v, tracking(msg, v))
}

// trackByLocalID accepts localID, local_id, or messageID as the query.
func (s *Server) trackByLocalID(c echo.Context) error {
	ctx := c.Request().Context()
	mb := mailboxFrom(c)
	v := apiVersion(c)

	if id := c.QueryParam("messageID"); id != "" {
		msg, err := s.engine.TrackByMessageID(ctx, mb, id)
		if err != nil {
			return err
		}
		return writeJSON(c, http.StatusOK, v, tracking(msg, v))
	}

	localID := c.QueryParam("localID")
	if localID == "" {
		localID = c.QueryParam("local_id")
	}
	if localID == "" {
		return fmt.Errorf("%w: localID is required", meshsandbox.ErrInvalidArgument)
	}
	msg, err := s.engine.TrackByLocalID(ctx, mb, localID)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, v, tracking(msg, v))
}
