package server

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/lockwatch/lockdash/config"
	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/trace"
)

// MiddlewareConfig carries the paths and providers the middleware chain needs.
type MiddlewareConfig struct {
	TracerProvider oteltrace.TracerProvider
	HealthPath     string
	ReadyPath      string
	EventsPath     string
}

// SetupMiddlewares registers the global middleware chain: request IDs,
// tracing, request logging, panic recovery, security headers, body limit
// and gzip.
func SetupMiddlewares(e *echo.Echo, log logger.Logger, cfg *config.Config, mc MiddlewareConfig) {
	isEvents := func(c echo.Context) bool {
		return mc.EventsPath != "" && c.Request().URL.Path == mc.EventsPath
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: trace.NewID,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := trace.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))

	otelOpts := []otelecho.Option{
		otelecho.WithSkipper(func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == mc.HealthPath || p == mc.ReadyPath
		}),
	}
	if mc.TracerProvider != nil {
		otelOpts = append(otelOpts, otelecho.WithTracerProvider(mc.TracerProvider))
	}
	e.Use(otelecho.Middleware(cfg.App.Name, otelOpts...))

	e.Use(LoggerWithConfig(log, LoggerConfig{
		HealthPath:           mc.HealthPath,
		ReadyPath:            mc.ReadyPath,
		SlowRequestThreshold: DefaultSlowRequestThreshold,
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().
				Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("stack", string(stack)).
				Msg("Panic recovered")
			return err
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            3600,
		ContentSecurityPolicy: "default-src 'self'; connect-src 'self' ws: wss:; style-src 'self' 'unsafe-inline'",
	}))

	e.Use(middleware.BodyLimit("1M"))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return isEvents(c) || strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket")
		},
	}))
}
