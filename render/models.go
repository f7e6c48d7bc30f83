package render

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID accepts both numeric and string identifiers from the lock API.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Lock is one entry of /api/status.
type Lock struct {
	ID              ID      `json:"id"`
	Name            string  `json:"name"`
	State           string  `json:"state"`
	BatteryCritical bool    `json:"battery_critical"`
	BatteryCharging bool    `json:"battery_charging"`
	LastActivity    *string `json:"last_activity"`
	LastAction      *string `json:"last_action"`
	LastUser        *string `json:"last_user"`
}

func (l Lock) Locked() bool {
	return strings.EqualFold(l.State, "locked")
}

func (l Lock) BatteryLabel() string {
	if l.BatteryCritical {
		return "Critical"
	}
	return "Good"
}

func (l Lock) LastActivityLabel() string { return orUnknown(l.LastActivity) }
func (l Lock) LastUserLabel() string     { return orUnknown(l.LastUser) }

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "Unknown"
	}
	return *s
}

// Activity is one entry of /api/activity.
type Activity struct {
	ID       ID     `json:"id"`
	LockName string `json:"lock_name"`
	Action   string `json:"action"`
	Trigger  string `json:"trigger"`
	User     string `json:"user"`
	Date     string `json:"date"`
	RawDate  string `json:"raw_date"`
}

// Count is a named tally used by the stats charts.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats is the /api/stats payload.
type Stats struct {
	ByUser      []Count `json:"by_user"`
	ByAction    []Count `json:"by_action"`
	ByHour      []int   `json:"by_hour"`
	ByDay       []int   `json:"by_day"`
	TotalEvents int     `json:"total_events"`
}

// User is one entry of /api/users.
type User struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}
