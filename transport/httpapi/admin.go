package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rbaliyan/meshsandbox"
	"github.com/rbaliyan/meshsandbox/store"
)

type messageResponse struct {
	Message string `json:"message"`
}

func clearDisk(c echo.Context) (bool, error) {
	raw := c.QueryParam("clear_disk")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: clear_disk %q", meshsandbox.ErrInvalidArgument, raw)
	}
	return v, nil
}

func (s *Server) reset(c echo.Context) error {
	wipe, err := clearDisk(c)
	if err != nil {
		return err
	}
	if err := s.engine.AdminReset(c.Request().Context(), "", wipe); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "all mailboxes reset"})
}

func (s *Server) resetMailbox(c echo.Context) error {
	wipe, err := clearDisk(c)
	if err != nil {
		return err
	}
	id := c.Param("mailbox")
	if err := s.engine.AdminReset(c.Request().Context(), id, wipe); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "mailbox " + store.NormalizeID(id) + " reset"})
}

// createReport delivers an undeliverable or error report. Status defaults
// to undeliverable.
func (s *Server) createReport(c echo.Context) error {
	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	status := store.Status(req.Status)
	if status == "" {
		status = store.StatusUndeliverable
	}

	msg, err := s.engine.CreateReport(c.Request().Context(), meshsandbox.ReportRequest{
		MailboxID:       req.MailboxID,
		Status:          status,
		Code:            req.Code,
		Description:     req.Description,
		WorkflowID:      req.WorkflowID,
		Subject:         req.Subject,
		LocalID:         req.LocalID,
		FileName:        req.FileName,
		LinkedMessageID: req.LinkedMessageID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SendMessageV2{MessageID: msg.ID})
}

func (s *Server) addEvent(c echo.Context) error {
	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	_, err := s.engine.AddEvent(c.Request().Context(), c.Param("message"), store.Event{
		Status:          store.Status(req.Status),
		Code:            req.Code,
		Event:           req.Event,
		Description:     req.Description,
		LinkedMessageID: req.LinkedMessageID,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) mailboxInfo(c echo.Context) error {
	mb, err := s.engine.GetMailbox(c.Request().Context(), c.Param("mailbox"), false)
	if err != nil {
		return err
	}
	view := MailboxAdminView{Mailbox: mb.Clone()}
	view.Mailbox.Password = ""

	stats, err := s.engine.Stats(c.Request().Context(), mb.ID)
	switch {
	case err == nil:
		view.Stats = stats
	case !errors.Is(err, store.ErrNotImplemented):
		return err
	}
	return c.JSON(http.StatusOK, view)
}
