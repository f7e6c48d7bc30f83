// Package render maps lock API payloads to dashboard markup.
//
// Every renderer accepts the raw JSON body of a successful response. Empty or
// absent data yields an informational placeholder; only malformed payloads
// produce an error.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Placeholder texts shown when an endpoint returns no data.
const (
	NoLocks    = "No smart locks found."
	NoRecent   = "No recent activity found."
	NoActivity = "No activity found."
	NoStats    = "No statistics available."
	NoUsers    = "No users found."
)

// RetryControl is the control name of the retry button inside error markup.
const RetryControl = "retry"

// Func renders a raw JSON payload.
type Func func(raw json.RawMessage) (template.HTML, error)

// Loading returns the spinner shown while a request is in flight.
func Loading() template.HTML {
	return mustExecute("loading", nil)
}

// Error returns the error state. When withRetry is set the markup contains a
// button bound to RetryControl.
func Error(message string, withRetry bool) template.HTML {
	data := struct {
		Message string
		Control string
	}{Message: message}
	if withRetry {
		data.Control = RetryControl
	}
	return mustExecute("error", data)
}

// Placeholder returns an informational notice.
func Placeholder(text string) template.HTML {
	return mustExecute("placeholder", text)
}

// LockStatus renders the lock status cards.
func LockStatus(raw json.RawMessage) (template.HTML, error) {
	var locks []Lock
	if err := decode(raw, &locks); err != nil {
		return "", fmt.Errorf("lock status: %w", err)
	}
	if len(locks) == 0 {
		return Placeholder(NoLocks), nil
	}
	return execute("locks", locks)
}

// RecentActivity renders the compact activity table used on the dashboard.
func RecentActivity(raw json.RawMessage) (template.HTML, error) {
	return activityTable(raw, false, NoRecent)
}

// ActivityLog renders the full activity log including trigger descriptions.
func ActivityLog(raw json.RawMessage) (template.HTML, error) {
	return activityTable(raw, true, NoActivity)
}

func activityTable(raw json.RawMessage, detailed bool, empty string) (template.HTML, error) {
	var rows []Activity
	if err := decode(raw, &rows); err != nil {
		return "", fmt.Errorf("activity: %w", err)
	}
	if len(rows) == 0 {
		return Placeholder(empty), nil
	}
	return execute("activity", struct {
		Rows     []Activity
		Detailed bool
	}{Rows: rows, Detailed: detailed})
}

// StatsView renders usage statistics. Chart series are attached as data
// attributes for the browser-side chart library.
func StatsView(raw json.RawMessage) (template.HTML, error) {
	var stats *Stats
	if err := decode(raw, &stats); err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}
	if stats == nil {
		return Placeholder(NoStats), nil
	}

	byUser, err := json.Marshal(nonNil(stats.ByUser))
	if err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}
	byAction, err := json.Marshal(nonNil(stats.ByAction))
	if err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}

	return execute("stats", struct {
		*Stats
		ByUserJSON   string
		ByActionJSON string
	}{Stats: stats, ByUserJSON: string(byUser), ByActionJSON: string(byAction)})
}

// Users renders the user table.
func Users(raw json.RawMessage) (template.HTML, error) {
	var users []User
	if err := decode(raw, &users); err != nil {
		return "", fmt.Errorf("users: %w", err)
	}
	if len(users) == 0 {
		return Placeholder(NoUsers), nil
	}
	return execute("users", users)
}

// decode leaves v untouched for absent or null payloads.
func decode(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

func nonNil(c []Count) []Count {
	if c == nil {
		return []Count{}
	}
	return c
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	// Output of html/template is already escaped.
	return template.HTML(buf.String()), nil //nolint:gosec
}

func mustExecute(name string, data any) template.HTML {
	out, err := execute(name, data)
	if err != nil {
		panic(err)
	}
	return out
}
