package testing

import "time"

// Logger Constants
const (
	TestLoggerLevelDebug    = "debug"
	TestLoggerLevelDisabled = "disabled"
)

// Surface Constants
// The surface IDs used by the dashboard pages.
const (
	TestSurfaceStatus   = "lockStatusContainer"
	TestSurfaceRecent   = "recentActivityContainer"
	TestSurfaceStats    = "statsContainer"
	TestSurfaceActivity = "activityContainer"
	TestSurfaceUsers    = "usersContainer"
)

// Endpoint Constants
const (
	TestEndpointStatus = "/api/status"
	TestEndpointStats  = "/api/stats"
	TestEndpointUsers  = "/api/users"
)

// Time Duration Constants
// Common time durations used in test synchronization and timeouts.
const (
	// TestTimerWait bounds how long a test waits for a fake-clock timer to be scheduled
	TestTimerWait = time.Second
	// TestEventuallyTimeout is the timeout for require.Eventually assertions
	TestEventuallyTimeout = time.Second
	// TestEventuallyTick is the polling interval for require.Eventually
	TestEventuallyTick = 5 * time.Millisecond
)
