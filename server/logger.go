package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lockwatch/lockdash/logger"
)

// DefaultSlowRequestThreshold marks requests slower than this as WARN in the result code.
const DefaultSlowRequestThreshold = time.Second

// LoggerConfig configures the request logging middleware.
type LoggerConfig struct {
	// HealthPath and ReadyPath are probe endpoints excluded from logging
	HealthPath string
	ReadyPath  string

	// SlowRequestThreshold flags slow requests with result_code WARN. Zero disables it.
	SlowRequestThreshold time.Duration
}

// LoggerWithConfig returns a middleware that emits one summary log per
// request, using OpenTelemetry HTTP attribute names.
func LoggerWithConfig(log logger.Logger, cfg LoggerConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == cfg.HealthPath || path == cfg.ReadyPath {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// resolve the status before logging
				c.Error(err)
			}
			latency := time.Since(start)
			status := c.Response().Status

			level, resultCode := determineSeverity(status, latency, cfg.SlowRequestThreshold, err)
			event := createLogEvent(log, level)
			if err != nil {
				event = event.Err(err)
			}

			method := c.Request().Method
			event.
				Str("log.type", "action").
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("http.request.method", method).
				Int("http.response.status_code", status).
				Int64("http.server.request.duration", latency.Nanoseconds()).
				Str("url.path", path).
				Str("http.route", c.Path()).
				Str("client.address", c.RealIP()).
				Str("user_agent.original", c.Request().UserAgent()).
				Str("result_code", resultCode).
				Msg(createActionMessage(method, path, latency, status))

			return nil
		}
	}
}

// determineSeverity maps status and latency to a log level and result code.
func determineSeverity(status int, latency, threshold time.Duration, err error) (level, resultCode string) {
	switch {
	case status >= 500 || (err != nil && status == 0):
		return "error", "ERROR"
	case status >= 400:
		return "warn", "WARN"
	case threshold > 0 && latency > threshold:
		return "info", "WARN"
	default:
		return "info", "INFO"
	}
}

func createLogEvent(log logger.Logger, level string) logger.LogEvent {
	switch level {
	case "error":
		return log.Error()
	case "warn":
		return log.Warn()
	default:
		return log.Info()
	}
}

// createActionMessage renders e.g. "GET /api/surfaces completed in 3ms with status 200".
func createActionMessage(method, path string, latency time.Duration, status int) string {
	return method + " " + path + " completed in " + latency.String() + " with status " + strconv.Itoa(status)
}
