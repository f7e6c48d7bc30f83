package mocks

import (
	"html/template"
	"sync"

	"github.com/lockwatch/lockdash/surface"
)

// RecordingSurface implements surface.Surface and keeps every write.
type RecordingSurface struct {
	mu       sync.Mutex
	writes   []template.HTML
	handlers map[string]func()
}

var _ surface.Surface = (*RecordingSurface)(nil)

// Replace implements surface.Surface
func (s *RecordingSurface) Replace(content template.HTML) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, content)
	s.handlers = make(map[string]func())
}

// ReplaceWithControls implements surface.Surface
func (s *RecordingSurface) ReplaceWithControls(content template.HTML, controls map[string]func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, content)
	s.handlers = make(map[string]func(), len(controls))
	for name, h := range controls {
		s.handlers[name] = h
	}
}

// OnClick implements surface.Surface
func (s *RecordingSurface) OnClick(control string, handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string]func())
	}
	s.handlers[control] = handler
}

// Writes returns a copy of every content written so far.
func (s *RecordingSurface) Writes() []template.HTML {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]template.HTML, len(s.writes))
	copy(out, s.writes)
	return out
}

// Last returns the most recent content, or "" if nothing was written.
func (s *RecordingSurface) Last() template.HTML {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return ""
	}
	return s.writes[len(s.writes)-1]
}

// HasControl reports whether the current content has a handler for control.
func (s *RecordingSurface) HasControl(control string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handlers[control]
	return ok
}

// Click runs the handler attached to control. It reports false when there is none.
func (s *RecordingSurface) Click(control string) bool {
	s.mu.Lock()
	h := s.handlers[control]
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h()
	return true
}

// MockRegistry is an in-memory surface.Registry of RecordingSurfaces.
type MockRegistry struct {
	mu       sync.Mutex
	surfaces map[surface.ID]*RecordingSurface
}

var _ surface.Registry = (*MockRegistry)(nil)

// NewMockRegistry creates a registry with the given surfaces registered.
func NewMockRegistry(ids ...surface.ID) *MockRegistry {
	r := &MockRegistry{surfaces: make(map[surface.ID]*RecordingSurface)}
	for _, id := range ids {
		r.Add(id)
	}
	return r
}

// Add registers a fresh surface under id and returns it.
func (r *MockRegistry) Add(id surface.ID) *RecordingSurface {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &RecordingSurface{handlers: make(map[string]func())}
	r.surfaces[id] = s
	return s
}

// Remove unregisters id.
func (r *MockRegistry) Remove(id surface.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.surfaces, id)
}

// Surface returns the recorder for id, or nil.
func (r *MockRegistry) Surface(id surface.ID) *RecordingSurface {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.surfaces[id]
}

// Lookup implements surface.Registry
func (r *MockRegistry) Lookup(id surface.ID) (surface.Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surfaces[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// MockNavigator records navigation requests.
type MockNavigator struct {
	mu        sync.Mutex
	locations []string
}

var _ surface.Navigator = (*MockNavigator)(nil)

// Navigate implements surface.Navigator
func (n *MockNavigator) Navigate(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.locations = append(n.locations, location)
}

// Locations returns every requested location in order.
func (n *MockNavigator) Locations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.locations))
	copy(out, n.locations)
	return out
}
