// Package clock is the time source used for backoff, redirects and refresh
// loops. Production code uses New; tests use Fake to move time by hand.
package clock

import (
	"github.com/benbjohnson/clock"
)

type (
	// Clock provides the current time, callbacks and tickers.
	Clock = clock.Clock
	// Timer is a scheduled callback; Stop reports whether it was still pending.
	Timer = clock.Timer
	// Ticker delivers ticks on C until stopped.
	Ticker = clock.Ticker
)

// New returns the wall clock.
func New() Clock {
	return clock.New()
}
