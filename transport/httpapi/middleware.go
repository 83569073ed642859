package httpapi

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rbaliyan/meshsandbox/store"
)

// Context keys set by the middleware.
const (
	ctxAPIVersion = "meshsandbox.api_version"
	ctxMailbox    = "meshsandbox.mailbox"
)

// requestLogger logs each request once the error handler has written the
// response, so the logged status is the one sent.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			attrs := []any{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", c.Response().Status),
				slog.Duration("latency", time.Since(start)),
			}
			if mb := mailboxFrom(c); mb != nil {
				attrs = append(attrs, slog.String("mailbox_id", mb.ID))
			}
			logger.Debug("request", attrs...)
			return nil
		}
	}
}

// negotiateVersion records the API version of the Accept header.
func negotiateVersion(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, err := ParseAcceptVersion(c.Request().Header.Get(echo.HeaderAccept))
		if err != nil {
			return err
		}
		c.Set(ctxAPIVersion, v)
		return next(c)
	}
}

// authorise checks the Authorization header against the :mailbox path
// parameter and stores the mailbox on the context.
func (s *Server) authorise(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		mb, err := s.engine.AuthoriseMailbox(c.Request().Context(), c.Param("mailbox"), header)
		if err != nil {
			return err
		}
		c.Set(ctxMailbox, mb)
		return next(c)
	}
}

func mailboxFrom(c echo.Context) *store.Mailbox {
	mb, _ := c.Get(ctxMailbox).(*store.Mailbox)
	return mb
}
