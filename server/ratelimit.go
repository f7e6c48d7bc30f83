package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	// BurstMultiplier derives the burst from the limit when none is configured.
	BurstMultiplier  = 2
	RateLimitCleanup = time.Minute * 3
)

// RateLimit limits requests per client IP to limit per second. A limit of
// zero or less disables limiting.
func RateLimit(limit, burst int) echo.MiddlewareFunc {
	if limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	if burst <= 0 {
		burst = limit * BurstMultiplier
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(limit),
				Burst:     burst,
				ExpiresIn: RateLimitCleanup,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return NewTooManyRequestsError("").WithDetails("error", err.Error())
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return NewTooManyRequestsError("Too many requests")
		},
	})
}
