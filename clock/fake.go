package clock

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Fake is a mock clock that also records every AfterFunc delay and every
// ticker it hands out. Time only moves through Add or Set.
type Fake struct {
	*clock.Mock

	mu        sync.Mutex
	requests  []time.Duration
	tickers   int
	scheduled chan struct{}
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	m := clock.NewMock()
	m.Set(start)
	return &Fake{Mock: m, scheduled: make(chan struct{}, 1)}
}

// AfterFunc records d and schedules f on the mock.
func (c *Fake) AfterFunc(d time.Duration, f func()) *clock.Timer {
	t := c.Mock.AfterFunc(d, f)
	c.mu.Lock()
	c.requests = append(c.requests, d)
	c.mu.Unlock()

	select {
	case c.scheduled <- struct{}{}:
	default:
	}
	return t
}

// Ticker counts the ticker and creates it on the mock.
func (c *Fake) Ticker(d time.Duration) *clock.Ticker {
	c.mu.Lock()
	c.tickers++
	c.mu.Unlock()
	return c.Mock.Ticker(d)
}

// Requested returns every duration passed to AfterFunc, in call order.
func (c *Fake) Requested() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.requests))
	copy(out, c.requests)
	return out
}

// Tickers reports how many tickers were created.
func (c *Fake) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers
}

// WaitForScheduled blocks until at least n AfterFunc calls have been made or
// the timeout elapses. It reports whether the condition was met.
func (c *Fake) WaitForScheduled(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		got := len(c.requests)
		c.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-c.scheduled:
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			return false
		}
	}
}
