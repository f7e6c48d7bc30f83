// Package dashboard defines the dashboard pages and keeps their widgets
// loaded and refreshed.
package dashboard

import (
	"encoding/json"

	"github.com/lockwatch/lockdash/fetcher"
	"github.com/lockwatch/lockdash/render"
	"github.com/lockwatch/lockdash/surface"
)

// Surface IDs used by the built-in pages.
const (
	SurfaceLockStatus     surface.ID = "lockStatusContainer"
	SurfaceRecentActivity surface.ID = "recentActivityContainer"
	SurfaceStats          surface.ID = "statsContainer"
	SurfaceActivity       surface.ID = "activityContainer"
	SurfaceUsers          surface.ID = "usersContainer"
)

// Widget binds an API request to the surface that shows its result.
type Widget struct {
	Surface surface.ID
	Title   string
	Spec    fetcher.RequestSpec
	Render  render.Func
	// Refresh marks widgets that are re-fetched periodically.
	Refresh bool
}

// Handler renders the widget's data into the target surface.
func (w Widget) Handler() fetcher.Handler {
	return func(data json.RawMessage, target surface.Surface) error {
		html, err := w.Render(data)
		if err != nil {
			return err
		}
		if target != nil {
			target.Replace(html)
		}
		return nil
	}
}

// Page is one browser view and the widgets it contains.
type Page struct {
	Name    string
	Path    string
	Title   string
	Widgets []Widget
}

// Pages returns the built-in pages in navigation order.
func Pages() []Page {
	return []Page{
		{
			Name:  "dashboard",
			Path:  "/",
			Title: "Dashboard",
			Widgets: []Widget{
				{Surface: SurfaceLockStatus, Title: "Smart Locks", Spec: fetcher.Get("/api/status"), Render: render.LockStatus, Refresh: true},
				{Surface: SurfaceRecentActivity, Title: "Recent Activity", Spec: fetcher.Get("/api/activity?limit=5"), Render: render.RecentActivity, Refresh: true},
				{Surface: SurfaceStats, Title: "Statistics", Spec: fetcher.Get("/api/stats"), Render: render.StatsView, Refresh: true},
			},
		},
		{
			Name:  "activity",
			Path:  "/activity",
			Title: "Activity Log",
			Widgets: []Widget{
				{Surface: SurfaceActivity, Title: "Activity", Spec: fetcher.Get("/api/activity"), Render: render.ActivityLog},
			},
		},
		{
			Name:  "users",
			Path:  "/users",
			Title: "Users",
			Widgets: []Widget{
				{Surface: SurfaceUsers, Title: "Users", Spec: fetcher.Get("/api/users"), Render: render.Users},
			},
		},
	}
}

// Find returns the page with the given name.
func Find(pages []Page, name string) (Page, bool) {
	for _, p := range pages {
		if p.Name == name {
			return p, true
		}
	}
	return Page{}, false
}

func widgets(pages []Page) []Widget {
	var out []Widget
	seen := make(map[surface.ID]bool)
	for _, p := range pages {
		for _, w := range p.Widgets {
			if seen[w.Surface] {
				continue
			}
			seen[w.Surface] = true
			out = append(out, w)
		}
	}
	return out
}
