// Package httpapi serves the message exchange REST API over an Engine.
//
// Routes live under /messageexchange. Mailbox routes are authorised with the
// engine's auth mode; endpoint lookup and the admin routes are not. Responses
// are versioned by the Accept header: application/vnd.mesh.v2+json selects
// version 2, anything else version 1.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rbaliyan/meshsandbox"
)

// DefaultBodyLimit caps request bodies.
const DefaultBodyLimit = "100M"

// Server is the HTTP front end of an Engine.
type Server struct {
	engine     *meshsandbox.Engine
	logger     *slog.Logger
	env        string
	buildLabel string
	bodyLimit  string
	echo       *echo.Echo
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBuildLabel sets the label reported by the health routes.
func WithBuildLabel(label string) Option {
	return func(s *Server) {
		if label != "" {
			s.buildLabel = label
		}
	}
}

// WithEnv sets the environment name reported by the health routes.
func WithEnv(env string) Option {
	return func(s *Server) {
		if env != "" {
			s.env = env
		}
	}
}

// WithBodyLimit sets the request body limit, e.g. "20M".
func WithBodyLimit(limit string) Option {
	return func(s *Server) {
		if limit != "" {
			s.bodyLimit = limit
		}
	}
}

// New creates a server for engine and registers its routes.
func New(engine *meshsandbox.Engine, opts ...Option) *Server {
	s := &Server{
		engine:     engine,
		logger:     slog.Default(),
		env:        "local",
		buildLabel: "latest",
		bodyLimit:  DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(s.bodyLimit))
	e.Use(requestLogger(s.logger))
	e.Use(negotiateVersion)

	s.echo = e
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	for _, path := range []string{"/health", "/healthcheck", "/_status", "/_ping", "/messageexchange/_ping", "/messageexchange/deepping"} {
		e.GET(path, s.health)
	}

	e.GET("/messageexchange/endpointlookup/:ods/:workflow", s.endpointLookup)
	e.GET("/messageexchange/workflowsearch/:workflow", s.workflowSearch)

	for _, prefix := range []string{"/admin", "/messageexchange/admin"} {
		admin := e.Group(prefix)
		admin.DELETE("/reset", s.reset)
		admin.DELETE("/reset/:mailbox", s.resetMailbox)
		admin.POST("/report", s.createReport)
		admin.POST("/message/:message/event", s.addEvent)
		admin.GET("/mailbox/:mailbox", s.mailboxInfo)
	}

	mb := e.Group("/messageexchange/:mailbox", s.authorise)
	mb.GET("", s.handshake)
	mb.POST("", s.handshake)

	mb.POST("/outbox", s.send)
	mb.POST("/outbox/:message/:chunk", s.uploadChunk)
	mb.GET("/outbox/rich", s.richOutbox)
	mb.GET("/outbox/tracking", s.trackByLocalID)
	mb.GET("/outbox/tracking/:message", s.trackByMessageID)

	mb.GET("/inbox", s.listInbox)
	mb.GET("/inbox/rich", s.richInbox)
	mb.GET("/count", s.inboxCount)
	mb.HEAD("/inbox/:message", s.head)
	mb.GET("/inbox/:message", s.retrieve)
	mb.GET("/inbox/:message/:chunk", s.retrieve)
	mb.PUT("/inbox/:message/status/acknowledged", s.acknowledge)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Echo returns the underlying router.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start listens on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type healthResponse struct {
	Env        string `json:"env"`
	BuildLabel string `json:"build_label"`
	Status     string `json:"status"`
	Outcome    string `json:"outcome"`
}

func (s *Server) health(c echo.Context) error {
	resp := healthResponse{Env: s.env, BuildLabel: s.buildLabel, Status: "running", Outcome: "Yes"}
	if !s.engine.IsConnected() {
		resp.Status = "unavailable"
		resp.Outcome = "No"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
