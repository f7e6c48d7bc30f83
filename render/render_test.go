package render

import (
	"encoding/json"
	"html/template"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html template.HTML) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	require.NoError(t, err)
	return doc
}

func TestLoading(t *testing.T) {
	doc := parse(t, Loading())
	assert.Equal(t, 1, doc.Find(".spinner-border").Length())
}

func TestErrorWithRetry(t *testing.T) {
	doc := parse(t, Error("Server error (500). Please try again later or contact support.", true))

	assert.Contains(t, doc.Find(".alert-danger").Text(), "Server error (500)")
	btn := doc.Find("button[data-control]")
	require.Equal(t, 1, btn.Length())
	control, _ := btn.Attr("data-control")
	assert.Equal(t, RetryControl, control)
	assert.Contains(t, btn.Text(), "Retry")
}

func TestErrorWithoutRetry(t *testing.T) {
	doc := parse(t, Error("Session expired. Please login again.", false))
	assert.Contains(t, doc.Find(".alert-danger").Text(), "Session expired")
	assert.Zero(t, doc.Find("button").Length())
}

func TestErrorEscapesMessage(t *testing.T) {
	out := Error("<script>alert(1)</script>", false)
	assert.NotContains(t, string(out), "<script>")
	assert.Zero(t, parse(t, out).Find("script").Length())
}

func TestPlaceholdersForEmptyData(t *testing.T) {
	cases := []struct {
		name string
		fn   Func
		want string
	}{
		{"locks", LockStatus, NoLocks},
		{"recent", RecentActivity, NoRecent},
		{"activity", ActivityLog, NoActivity},
		{"stats", StatsView, NoStats},
		{"users", Users, NoUsers},
	}
	for _, tc := range cases {
		for _, raw := range []string{"", "null", "[]"} {
			if tc.name == "stats" && raw == "[]" {
				continue
			}
			t.Run(tc.name+"/"+raw, func(t *testing.T) {
				out, err := tc.fn(json.RawMessage(raw))
				require.NoError(t, err)
				doc := parse(t, out)
				assert.Equal(t, tc.want, strings.TrimSpace(doc.Find(".alert-info").Text()))
			})
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	for name, fn := range map[string]Func{
		"locks":    LockStatus,
		"activity": ActivityLog,
		"stats":    StatsView,
		"users":    Users,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := fn(json.RawMessage(`{"unexpected": [`))
			assert.Error(t, err)
		})
	}

	_, err := LockStatus(json.RawMessage(`{"id": 1}`))
	assert.Error(t, err, "object where a list is expected")
}

func TestLockStatus(t *testing.T) {
	raw := `[
		{"id": 101, "name": "Front Door", "state": "locked", "battery_critical": false,
		 "battery_charging": false, "last_activity": "2024-05-01 08:00", "last_action": "Lock", "last_user": "Ada"},
		{"id": "garage", "name": "Garage", "state": "unlocked", "battery_critical": true,
		 "battery_charging": false, "last_activity": null, "last_action": null, "last_user": null}
	]`
	out, err := LockStatus(json.RawMessage(raw))
	require.NoError(t, err)
	doc := parse(t, out)

	cards := doc.Find(".lock-card")
	require.Equal(t, 2, cards.Length())

	front := cards.Eq(0)
	id, _ := front.Attr("data-lock-id")
	assert.Equal(t, "101", id)
	assert.Contains(t, front.Find("h5").Text(), "Front Door")
	assert.True(t, front.Find(".lock-state").HasClass("text-success"))
	assert.Equal(t, 1, front.Find(".fa-lock").Length())
	assert.Equal(t, "Good", front.Find(".lock-battery").Text())
	assert.Equal(t, "2024-05-01 08:00", front.Find(".lock-last-activity").Text())
	assert.Equal(t, "Ada", front.Find(".lock-last-user").Text())

	garage := cards.Eq(1)
	id, _ = garage.Attr("data-lock-id")
	assert.Equal(t, "garage", id)
	assert.True(t, garage.Find(".lock-state").HasClass("text-danger"))
	assert.Equal(t, 1, garage.Find(".fa-lock-open").Length())
	assert.Equal(t, "Critical", garage.Find(".lock-battery").Text())
	assert.Equal(t, "Unknown", garage.Find(".lock-last-activity").Text())
	assert.Equal(t, "Unknown", garage.Find(".lock-last-user").Text())
}

func TestLockBatteryLabel(t *testing.T) {
	assert.Equal(t, "Good", Lock{BatteryCharging: true}.BatteryLabel())
	assert.Equal(t, "Critical", Lock{BatteryCritical: true, BatteryCharging: true}.BatteryLabel())
	assert.True(t, Lock{State: "Locked"}.Locked())
}

const activityPayload = `[
	{"id": 1, "lock_name": "Front Door", "action": "Unlock", "trigger": "Keypad",
	 "user": "Ada", "date": "01.05.2024 08:00", "raw_date": "2024-05-01T08:00:00Z"},
	{"id": 2, "lock_name": "Garage", "action": "Lock", "trigger": "Auto lock",
	 "user": "System", "date": "01.05.2024 09:30", "raw_date": "2024-05-01T09:30:00Z"}
]`

func TestRecentActivityOmitsTrigger(t *testing.T) {
	out, err := RecentActivity(json.RawMessage(activityPayload))
	require.NoError(t, err)
	doc := parse(t, out)

	assert.Equal(t, 4, doc.Find(".activity-table thead th").Length())
	rows := doc.Find(".activity-table tbody tr")
	require.Equal(t, 2, rows.Length())
	assert.Equal(t, "Front Door", rows.Eq(0).Find("td").Eq(1).Text())
	assert.NotContains(t, doc.Text(), "Keypad")
}

func TestActivityLogIncludesTrigger(t *testing.T) {
	out, err := ActivityLog(json.RawMessage(activityPayload))
	require.NoError(t, err)
	doc := parse(t, out)

	assert.Equal(t, 5, doc.Find(".activity-table thead th").Length())
	cells := doc.Find(".activity-table tbody tr").Eq(1).Find("td")
	require.Equal(t, 5, cells.Length())
	assert.Equal(t, "Auto lock", cells.Eq(3).Text())
	assert.Equal(t, "System", cells.Eq(4).Text())
}

func TestStatsView(t *testing.T) {
	raw := `{
		"by_user": [{"name": "Ada", "count": 7}, {"name": "Linus", "count": 3}],
		"by_action": [],
		"by_hour": [0,0,0,0,0,0,0,1,2,3,0,0,0,0,0,0,0,0,0,0,0,0,0,0],
		"by_day": [1,2,3,0,0,0,4],
		"total_events": 10
	}`
	out, err := StatsView(json.RawMessage(raw))
	require.NoError(t, err)
	doc := parse(t, out)

	total, _ := doc.Find(".stats").Attr("data-total-events")
	assert.Equal(t, "10", total)

	users := doc.Find(".stats-users")
	series, _ := users.Attr("data-series")
	var counts []Count
	require.NoError(t, json.Unmarshal([]byte(series), &counts))
	assert.Equal(t, []Count{{Name: "Ada", Count: 7}, {Name: "Linus", Count: 3}}, counts)
	assert.Equal(t, 2, users.Find("tr").Length())

	actions := doc.Find(".stats-actions")
	series, _ = actions.Attr("data-series")
	assert.Equal(t, "[]", series)
	assert.Contains(t, actions.Text(), "No data for this period.")
}

func TestUsers(t *testing.T) {
	raw := `[
		{"id": 5, "name": "Ada", "type": "App", "enabled": true},
		{"id": 6, "name": "Guest <b>", "type": "Keypad", "enabled": false}
	]`
	out, err := Users(json.RawMessage(raw))
	require.NoError(t, err)
	doc := parse(t, out)

	rows := doc.Find(".users-table tbody tr")
	require.Equal(t, 2, rows.Length())
	id, _ := rows.Eq(0).Attr("data-user-id")
	assert.Equal(t, "5", id)
	assert.Equal(t, "Enabled", rows.Eq(0).Find(".badge").Text())
	assert.Equal(t, "Guest <b>", rows.Eq(1).Find("td").Eq(0).Text())
	assert.Equal(t, "Disabled", rows.Eq(1).Find(".badge").Text())
}
