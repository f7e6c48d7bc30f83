// Package surface manages the named UI regions of the dashboard.
//
// A surface holds rendered markup and the click handlers of the controls inside
// it. The Board is the registry the fetcher writes into and the event hub the
// HTTP server streams to browsers.
package surface

import (
	"errors"
	"html/template"
)

// ID names a region of the UI, e.g. "lockStatusContainer".
type ID string

var (
	// ErrNotFound is returned when a surface is not registered
	ErrNotFound = errors.New("surface not found")
	// ErrNoControl is returned when a click targets a control without a handler
	ErrNoControl = errors.New("control has no handler")
)

// Surface is a writable UI region.
type Surface interface {
	// Replace swaps the surface content. Handlers attached to the previous
	// content are discarded.
	Replace(content template.HTML)
	// OnClick attaches handler to the named control inside the current content.
	OnClick(control string, handler func())
	// ReplaceWithControls swaps the content and installs its control handlers
	// as one write. No other write can land between the two.
	ReplaceWithControls(content template.HTML, controls map[string]func())
}

// Registry resolves surface IDs to live surfaces. Lookup fails for surfaces
// that were never registered or have been removed.
type Registry interface {
	Lookup(id ID) (Surface, bool)
}

// Navigator redirects the current view.
type Navigator interface {
	Navigate(location string)
}

// EventType distinguishes events streamed to browsers.
type EventType string

const (
	EventSurface  EventType = "surface"
	EventNavigate EventType = "navigate"
)

// Event is a change notification fanned out to subscribers.
type Event struct {
	Type     EventType     `json:"type"`
	Surface  ID            `json:"surface,omitempty"`
	HTML     template.HTML `json:"html,omitempty"`
	Version  uint64        `json:"version,omitempty"`
	Controls []string      `json:"controls,omitempty"`
	Location string        `json:"location,omitempty"`
}

// Snapshot is the current state of one surface.
type Snapshot struct {
	ID       ID            `json:"id"`
	HTML     template.HTML `json:"html"`
	Version  uint64        `json:"version"`
	Controls []string      `json:"controls"`
}
