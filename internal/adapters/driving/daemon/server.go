// Package daemon serves document status over HTTP for `ragdesk serve`.
//
// One process polls the backend; any number of consoles follow status
// changes on /ws/status instead of polling themselves.
//
// Routes:
//
//	GET    /healthz                     liveness and in-flight count
//	GET    /metrics                     Prometheus metrics
//	GET    /api/documents               local document list (?refresh=true reloads)
//	GET    /api/documents/:id           one document
//	POST   /api/documents/:id/watch     start polling (?mode=reprocessing)
//	DELETE /api/documents/:id/watch     stop polling
//	GET    /api/polls                   documents being polled
//	GET    /ws/status                   status event stream
//
// Everything under /api and /ws requires a session token from `ragdesk login`.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/core/services"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Config wires a Server.
type Config struct {
	Documents driving.DocumentService
	Poller    driving.StatusPoller
	Sessions  driving.SessionService

	// Metrics serves /metrics. Optional.
	Metrics http.Handler

	// Version is reported by /healthz.
	Version string
}

// Server is the status daemon.
type Server struct {
	cfg      Config
	echo     *echo.Echo
	hub      *hub
	upgrader websocket.Upgrader

	// base is the parent context of polls started over HTTP.
	base context.Context
}

// PollInfo describes one document being polled.
type PollInfo struct {
	DocumentID string          `json:"document_id"`
	Mode       domain.PollMode `json:"mode"`
	Elapsed    float64         `json:"elapsed_seconds"`
}

// New builds the server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Documents == nil || cfg.Poller == nil || cfg.Sessions == nil {
		return nil, errors.New("daemon: documents, poller and sessions are required")
	}

	s := &Server{
		cfg:  cfg,
		echo: echo.New(),
		hub:  newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		base: context.Background(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		Output: logger.Writer(),
		Skipper: func(echo.Context) bool {
			return !logger.IsVerbose()
		},
	}))

	e.GET("/healthz", s.healthz)
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics))
	}

	auth := requireSession(cfg.Sessions)
	api := e.Group("/api", auth)
	api.GET("/documents", s.listDocuments)
	api.GET("/documents/:id", s.getDocument)
	api.POST("/documents/:id/watch", s.watchDocument)
	api.DELETE("/documents/:id/watch", s.unwatchDocument)
	api.GET("/polls", s.listPolls)

	e.GET("/ws/status", s.statusStream, auth)

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled. Polls started over HTTP are
// cancelled with ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.base = ctx
	go s.forward(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status daemon listening on %s", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		s.hub.shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// forward relays poller events to websocket clients until ctx ends.
func (s *Server) forward(ctx context.Context) {
	events, cancel := s.cfg.Poller.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.hub.broadcast(Message{Type: TypeStatus, Payload: ev})
		}
	}
}

// handleError renders errors as {"error": "..."}.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := services.UserMessage(err)

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrBackendUnavailable):
		code = http.StatusBadGateway
	}

	if code >= http.StatusInternalServerError {
		req := c.Request()
		logger.Warn("%d %s %s: %v", code, req.Method, req.URL.Path, err)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.cfg.Version,
		"in_flight": len(s.polls()),
		"clients":   s.hub.count(),
	})
}

func (s *Server) listDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	if c.QueryParam("refresh") == "true" {
		docs, err := s.cfg.Documents.Refresh(ctx)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, docs)
	}
	docs, err := s.cfg.Documents.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) getDocument(c echo.Context) error {
	doc, err := s.cfg.Documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) watchDocument(c echo.Context) error {
	mode := domain.PollMode(c.QueryParam("mode"))
	switch mode {
	case "":
		mode = domain.PollProcessing
	case domain.PollProcessing, domain.PollReprocessing:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
	}

	id := c.Param("id")
	// The poll outlives the request.
	s.cfg.Poller.Start(s.base, id, mode)
	return c.JSON(http.StatusAccepted, PollInfo{DocumentID: id, Mode: mode})
}

func (s *Server) unwatchDocument(c echo.Context) error {
	s.cfg.Poller.Stop(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listPolls(c echo.Context) error {
	return c.JSON(http.StatusOK, s.polls())
}

func (s *Server) polls() []PollInfo {
	out := make([]PollInfo, 0)
	for _, mode := range []domain.PollMode{domain.PollProcessing, domain.PollReprocessing} {
		for _, id := range s.cfg.Poller.InFlight(mode) {
			elapsed, _ := s.cfg.Poller.Elapsed(id)
			out = append(out, PollInfo{DocumentID: id, Mode: mode, Elapsed: elapsed.Seconds()})
		}
	}
	return out
}

func (s *Server) statusStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("websocket upgrade: %v", err)
		return nil
	}

	hello, err := json.Marshal(Message{Type: TypeConnected, Payload: s.polls()})
	if err != nil {
		hello = nil
	}
	cl := s.hub.register(conn, hello)

	go cl.writePump()
	cl.readPump()
	return nil
}
