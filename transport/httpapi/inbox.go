package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rbaliyan/meshsandbox"
)

func intQuery(c echo.Context, names ...string) (int, error) {
	for _, name := range names {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %s %q", meshsandbox.ErrInvalidArgument, name, raw)
		}
		return n, nil
	}
	return 0, nil
}

func richQuery(c echo.Context) (meshsandbox.RichQuery, error) {
	var q meshsandbox.RichQuery
	limit, err := intQuery(c, "max_results")
	if err != nil {
		return q, err
	}
	q.MaxResults = limit
	q.ContinueFrom = c.QueryParam("continue_from")

	if raw := c.QueryParam("start_time"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return q, fmt.Errorf("%w: start_time %q", meshsandbox.ErrInvalidArgument, raw)
		}
		q.StartTime = &ts
	}
	return q, nil
}

func (s *Server) handshake(c echo.Context) error {
	mb, err := s.engine.Handshake(c.Request().Context(), mailboxFrom(c).ID)
	if err != nil {
		return err
	}
	v := apiVersion(c)
	if v < meshsandbox.APIVersion2 {
		return writeJSON(c, http.StatusOK, v, HandshakeV1{MailboxID: mb.ID})
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) listInbox(c echo.Context) error {
	limit, err := intQuery(c, "max_results", "maxResults")
	if err != nil {
		return err
	}
	v := apiVersion(c)
	page, err := s.engine.ListInbox(c.Request().Context(), mailboxFrom(c), meshsandbox.InboxQuery{
		APIVersion:     v,
		MaxResults:     limit,
		ContinueFrom:   c.QueryParam("continue_from"),
		WorkflowFilter: c.QueryParam("workflow_filter"),
	})
	if err != nil {
		return err
	}

	if v < meshsandbox.APIVersion2 {
		return writeJSON(c, http.StatusOK, v, InboxV1{Messages: page.Messages})
	}
	return writeJSON(c, http.StatusOK, v, InboxV2{
		Messages:         page.Messages,
		Links:            page.Links,
		ApproxInboxCount: page.ApproxInboxCount,
	})
}

func (s *Server) richInbox(c echo.Context) error {
	q, err := richQuery(c)
	if err != nil {
		return err
	}
	page, err := s.engine.RichInbox(c.Request().Context(), mailboxFrom(c), q)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, apiVersion(c), richView(page, richInboxMessage))
}

func (s *Server) inboxCount(c echo.Context) error {
	n, err := s.engine.InboxCount(c.Request().Context(), mailboxFrom(c))
	if err != nil {
		return err
	}
	v := apiVersion(c)
	if v < meshsandbox.APIVersion2 {
		return writeJSON(c, http.StatusOK, v, InboxCountV1{
			Count:              n,
			InternalID:         uuid.NewString(),
			AllResultsIncluded: true,
		})
	}
	return writeJSON(c, http.StatusOK, v, InboxCountV2{Count: n})
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func (s *Server) head(c echo.Context) error {
	h, err := s.engine.Head(c.Request().Context(), mailboxFrom(c), c.Param("message"))
	if err != nil {
		return err
	}
	copyHeaders(c.Response().Header(), h)
	return c.NoContent(http.StatusOK)
}

// retrieve serves one chunk; chunk 1 when the path has none.
func (s *Server) retrieve(c echo.Context) error {
	n, err := chunkParam(c)
	if err != nil {
		return err
	}
	d, err := s.engine.Retrieve(c.Request().Context(), mailboxFrom(c), c.Param("message"), n, meshsandbox.RetrieveOptions{
		AcceptEncoding: c.Request().Header.Get(echo.HeaderAcceptEncoding),
		APIVersion:     apiVersion(c),
	})
	if err != nil {
		return err
	}

	copyHeaders(c.Response().Header(), d.Headers)
	code := http.StatusOK
	if d.Partial {
		code = http.StatusPartialContent
	}
	return c.Blob(code, echo.MIMEOctetStream, d.Data)
}

func (s *Server) acknowledge(c echo.Context) error {
	msg, err := s.engine.Acknowledge(c.Request().Context(), mailboxFrom(c), c.Param("message"))
	if err != nil {
		return err
	}
	v := apiVersion(c)
	if v < meshsandbox.APIVersion2 {
		return writeJSON(c, http.StatusOK, v, AcknowledgeV1{MessageID: msg.ID})
	}
	return c.NoContent(http.StatusOK)
}
