package fixtures

import (
	nethttp "net/http"

	"github.com/lockwatch/lockdash/testing/mocks"
)

// Lock API payloads matching the shapes the dashboard renders.
const (
	LockStatusJSON = `[
  {"id": 17001, "name": "Front Door", "state": "locked", "battery_critical": false,
   "battery_charging": false, "last_activity": "01.05.2024 08:00", "last_action": "Lock", "last_user": "Alice"},
  {"id": 17002, "name": "Garage", "state": "unlocked", "battery_critical": true,
   "battery_charging": false, "last_activity": null, "last_action": null, "last_user": null}
]`

	ActivityJSON = `[
  {"id": 1, "lock_name": "Front Door", "action": "Unlock", "trigger": "Keypad",
   "user": "Alice", "date": "01.05.2024 08:00", "raw_date": "2024-05-01T08:00:00Z"},
  {"id": 2, "lock_name": "Garage", "action": "Lock", "trigger": "Auto lock",
   "user": "System", "date": "01.05.2024 09:30", "raw_date": "2024-05-01T09:30:00Z"}
]`

	StatsJSON = `{
  "by_user": [{"name": "Alice", "count": 7}, {"name": "Bob", "count": 3}],
  "by_action": [{"name": "Unlock", "count": 6}, {"name": "Lock", "count": 4}],
  "by_hour": [0,0,0,0,0,0,0,1,2,3,0,0,0,0,0,0,0,0,2,2,0,0,0,0],
  "by_day": [1,2,3,0,0,0,4],
  "total_events": 10
}`

	UsersJSON = `[
  {"id": 5, "name": "Alice", "type": "App", "enabled": true},
  {"id": 6, "name": "Bob", "type": "Keypad", "enabled": false}
]`

	// ErrorFieldJSON is an error body whose message the user should see verbatim
	ErrorFieldJSON = `{"error": "Nuki Web API is not reachable"}`
)

// Endpoint payloads served by NewWorkingClient.
var Payloads = map[string]string{
	"/api/status":           LockStatusJSON,
	"/api/activity?limit=5": ActivityJSON,
	"/api/activity":         ActivityJSON,
	"/api/stats":            StatsJSON,
	"/api/users":            UsersJSON,
}

// NewWorkingClient creates a mock client that answers every known endpoint
// with its fixture payload, any number of times.
func NewWorkingClient() *mocks.MockClient {
	client := &mocks.MockClient{}
	for url, body := range Payloads {
		client.ExpectStatus(nethttp.MethodGet, url, nethttp.StatusOK, body).Maybe()
	}
	return client
}

// NewFailingClient creates a mock client that answers every known endpoint
// with the given error status.
func NewFailingClient(status int) *mocks.MockClient {
	client := &mocks.MockClient{}
	for url := range Payloads {
		client.ExpectStatus(nethttp.MethodGet, url, status, "").Maybe()
	}
	return client
}
