// Package server serves the dashboard shell, the surface API and the
// WebSocket event stream using Echo.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/lockwatch/lockdash/config"
	"github.com/lockwatch/lockdash/dashboard"
	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/observability"
	"github.com/lockwatch/lockdash/surface"
)

// MetricStreams counts the browsers currently connected to the event stream.
const MetricStreams = "lockdash.server.event_streams"

//go:embed templates/*.tmpl static/*
var assets embed.FS

var shell = template.Must(template.ParseFS(assets, "templates/*.tmpl"))

// Hub is the surface state the server exposes. *surface.Board satisfies it.
type Hub interface {
	Snapshot(id surface.ID) (surface.Snapshot, error)
	Snapshots() []surface.Snapshot
	Click(id surface.ID, control string) error
	Subscribe() (<-chan surface.Event, func())
}

// Deps are the collaborators the server renders and controls.
type Deps struct {
	Hub            Hub
	Pages          []dashboard.Page
	TracerProvider oteltrace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Ready reports whether the dashboard finished its initial load. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server represents an HTTP server instance with Echo framework.
type Server struct {
	echo        *echo.Echo
	cfg         *config.Config
	logger      logger.Logger
	hub         Hub
	pages       []dashboard.Page
	ready       func(ctx context.Context) error
	upgrader    websocket.Upgrader
	basePath    string
	healthRoute string
	readyRoute  string
	streams     metric.Int64UpDownCounter

	closing   chan struct{}
	closeOnce sync.Once
}

// normalizeBasePath ensures the base path starts with "/" and doesn't end
// with "/". Empty and "/" mean no prefix.
func normalizeBasePath(basePath string) string {
	if basePath == "" || basePath == "/" {
		return ""
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/")
}

func normalizeRoutePath(route, defaultRoute string) string {
	if route == "" {
		route = defaultRoute
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}

func (s *Server) buildFullPath(route string) string {
	if s.basePath == "" {
		return route
	}
	if route == "/" {
		return s.basePath + "/"
	}
	return s.basePath + route
}

// New creates a server with middlewares, probes and dashboard routes registered.
func New(cfg *config.Config, log logger.Logger, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Hub == nil {
		return nil, errors.New("server: hub is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if deps.Pages == nil {
		deps.Pages = dashboard.Pages()
	}
	if deps.MeterProvider == nil {
		deps.MeterProvider = metricnoop.NewMeterProvider()
	}
	streams, err := observability.CreateUpDownCounter(
		deps.MeterProvider.Meter("github.com/lockwatch/lockdash/server"),
		MetricStreams, "Open WebSocket event streams")
	if err != nil {
		return nil, fmt.Errorf("server: creating stream gauge: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		cfg:         cfg,
		logger:      log,
		hub:         deps.Hub,
		pages:       deps.Pages,
		ready:       deps.Ready,
		basePath:    normalizeBasePath(cfg.Server.Path.Base),
		healthRoute: normalizeRoutePath(cfg.Server.Path.Health, "/health"),
		readyRoute:  normalizeRoutePath(cfg.Server.Path.Ready, "/ready"),
		streams:     streams,
		closing:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	e.HTTPErrorHandler = s.errorHandler

	SetupMiddlewares(e, log, cfg, MiddlewareConfig{
		TracerProvider: deps.TracerProvider,
		HealthPath:     s.buildFullPath(s.healthRoute),
		ReadyPath:      s.buildFullPath(s.readyRoute),
		EventsPath:     s.buildFullPath(eventsRoute),
	})

	e.GET(s.buildFullPath(s.healthRoute), s.healthCheck)
	e.GET(s.buildFullPath(s.readyRoute), s.readyCheck)
	s.registerRoutes()

	log.Debug().
		Str("base_path", s.basePath).
		Str("health_path", s.buildFullPath(s.healthRoute)).
		Str("ready_path", s.buildFullPath(s.readyRoute)).
		Msg("Server paths configured")

	return s, nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins accepting requests. It blocks until the server is shut down
// and returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.logger.Info().
		Str("service", s.cfg.App.Name).
		Str("version", s.cfg.App.Version).
		Str("env", s.cfg.App.Env).
		Str("address", addr).
		Msg("Starting server...")

	s.echo.Server.ReadTimeout = s.cfg.Server.Timeout.Read
	s.echo.Server.WriteTimeout = s.cfg.Server.Timeout.Write
	s.echo.Server.IdleTimeout = s.cfg.Server.Timeout.Idle
	return s.echo.Start(addr)
}

// Shutdown closes event streams and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) readyCheck(c echo.Context) error {
	if s.ready != nil {
		if err := s.ready(c.Request().Context()); err != nil {
			return NewServiceUnavailableError("Dashboard not ready").WithDetails("error", err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}
