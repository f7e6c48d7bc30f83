package surface

import (
	"fmt"
	"html/template"
	"sort"
	"sync"

	"github.com/lockwatch/lockdash/logger"
)

const defaultSubscriberBuffer = 64

// Board is an in-memory Registry and Navigator. Individual writes are
// serialized; concurrent writers to the same surface race and the last
// write wins.
type Board struct {
	mu       sync.RWMutex
	surfaces map[ID]*region
	subs     map[int]chan Event
	nextSub  int
	logger   logger.Logger
}

var (
	_ Registry  = (*Board)(nil)
	_ Navigator = (*Board)(nil)
)

type region struct {
	board    *Board
	id       ID
	html     template.HTML
	version  uint64
	handlers map[string]func()
}

// NewBoard creates an empty board.
func NewBoard(log logger.Logger) *Board {
	if log == nil {
		log = logger.Nop()
	}
	return &Board{
		surfaces: make(map[ID]*region),
		subs:     make(map[int]chan Event),
		logger:   log,
	}
}

// Register creates the surface if it does not exist and returns it.
func (b *Board) Register(id ID) Surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.surfaces[id]
	if !ok {
		r = &region{board: b, id: id, handlers: make(map[string]func())}
		b.surfaces[id] = r
	}
	return r
}

// Remove unregisters a surface. Writes through handles obtained earlier
// become no-ops.
func (b *Board) Remove(id ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.surfaces, id)
}

// Lookup implements Registry.
func (b *Board) Lookup(id ID) (Surface, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.surfaces[id]
	if !ok {
		return nil, false
	}
	return r, true
}

// Click runs the handler attached to control on surface id. The handler runs
// on the caller's goroutine after the board lock is released.
func (b *Board) Click(id ID, control string) error {
	b.mu.RLock()
	r, ok := b.surfaces[id]
	var handler func()
	if ok {
		handler = r.handlers[control]
	}
	b.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if handler == nil {
		return fmt.Errorf("%w: %s/%s", ErrNoControl, id, control)
	}
	b.logger.Debug().Str("surface", string(id)).Str("control", control).Msg("control clicked")
	handler()
	return nil
}

// Snapshot returns the state of one surface.
func (b *Board) Snapshot(id ID) (Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.surfaces[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.snapshotLocked(), nil
}

// Snapshots returns every registered surface ordered by ID.
func (b *Board) Snapshots() []Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Snapshot, 0, len(b.surfaces))
	for _, r := range b.surfaces {
		out = append(out, r.snapshotLocked())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Navigate implements Navigator by broadcasting a navigate event.
func (b *Board) Navigate(location string) {
	b.logger.Info().Str("location", location).Msg("navigation requested")
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.publishLocked(Event{Type: EventNavigate, Location: location})
}

// Subscribe returns a channel of events and a function that cancels the
// subscription. Events are dropped for subscribers that fall behind.
func (b *Board) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan Event, defaultSubscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// publishLocked must be called with b.mu held (read or write).
func (b *Board) publishLocked(ev Event) {
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn().Int("subscriber", id).Str("type", string(ev.Type)).Msg("subscriber lagging, event dropped")
		}
	}
}

func (r *region) Replace(content template.HTML) {
	r.ReplaceWithControls(content, nil)
}

func (r *region) ReplaceWithControls(content template.HTML, controls map[string]func()) {
	b := r.board
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surfaces[r.id] != r {
		return
	}
	r.html = content
	r.version++
	r.handlers = make(map[string]func(), len(controls))
	for name, h := range controls {
		r.handlers[name] = h
	}
	b.publishLocked(r.eventLocked())
}

func (r *region) OnClick(control string, handler func()) {
	b := r.board
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surfaces[r.id] != r {
		return
	}
	r.handlers[control] = handler
	b.publishLocked(r.eventLocked())
}

func (r *region) controlsLocked() []string {
	controls := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		controls = append(controls, name)
	}
	sort.Strings(controls)
	return controls
}

func (r *region) snapshotLocked() Snapshot {
	return Snapshot{ID: r.id, HTML: r.html, Version: r.version, Controls: r.controlsLocked()}
}

func (r *region) eventLocked() Event {
	return Event{Type: EventSurface, Surface: r.id, HTML: r.html, Version: r.version, Controls: r.controlsLocked()}
}
