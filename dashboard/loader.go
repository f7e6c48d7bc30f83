package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lockwatch/lockdash/clock"
	"github.com/lockwatch/lockdash/fetcher"
	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/surface"
)

// Fetcher starts fetch chains. *fetcher.Fetcher satisfies it.
type Fetcher interface {
	FetchDefault(ctx context.Context, spec fetcher.RequestSpec, target surface.ID, onSuccess fetcher.Handler) *fetcher.Task
	Fetch(ctx context.Context, spec fetcher.RequestSpec, target surface.ID, onSuccess fetcher.Handler, retries int, delay time.Duration) *fetcher.Task
}

// Registrar creates surfaces. *surface.Board satisfies it.
type Registrar interface {
	Register(id surface.ID) surface.Surface
}

// Refresh controls the periodic reload of refreshable widgets.
type Refresh struct {
	Enabled  bool
	Interval time.Duration
	Retries  int
	Delay    time.Duration
}

// Options configures a Loader.
type Options struct {
	Fetcher   Fetcher
	Registrar Registrar
	Clock     clock.Clock
	Logger    logger.Logger
	Pages     []Page
	Refresh   Refresh
}

// Loader performs the initial load of every widget and refreshes the
// refreshable ones on a fixed interval.
type Loader struct {
	fetcher   Fetcher
	registrar Registrar
	clock     clock.Clock
	logger    logger.Logger
	pages     []Page
	refresh   Refresh

	mu       sync.Mutex
	inflight map[surface.ID]*fetcher.Task

	loaded     chan struct{}
	loadedOnce sync.Once
}

// NewLoader creates a loader. Pages default to Pages().
func NewLoader(opts Options) (*Loader, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("dashboard: fetcher is required")
	}
	if opts.Registrar == nil {
		return nil, errors.New("dashboard: registrar is required")
	}
	if opts.Refresh.Enabled && opts.Refresh.Interval <= 0 {
		return nil, fmt.Errorf("dashboard: refresh interval must be positive, got %s", opts.Refresh.Interval)
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Pages == nil {
		opts.Pages = Pages()
	}

	return &Loader{
		fetcher:   opts.Fetcher,
		registrar: opts.Registrar,
		clock:     opts.Clock,
		logger:    opts.Logger.WithFields(map[string]any{"component": "dashboard"}),
		pages:     opts.Pages,
		refresh:   opts.Refresh,
		inflight:  make(map[surface.ID]*fetcher.Task),
		loaded:    make(chan struct{}),
	}, nil
}

// Pages returns the pages the loader serves.
func (l *Loader) Pages() []Page {
	return l.pages
}

// Loaded is closed once Start has finished the initial load.
func (l *Loader) Loaded() <-chan struct{} {
	return l.loaded
}

// Register creates a surface for every widget.
func (l *Loader) Register() {
	for _, w := range widgets(l.pages) {
		l.registrar.Register(w.Surface)
	}
}

// Start registers surfaces, loads every widget, then refreshes until ctx is
// done. It returns nil on cancellation.
func (l *Loader) Start(ctx context.Context) error {
	l.Register()

	results := l.Load(ctx)
	failed := 0
	for _, state := range results {
		if state != fetcher.Succeeded {
			failed++
		}
	}
	l.logger.Info().
		Int("widgets", len(results)).
		Int("failed", failed).
		Msg("Initial dashboard load complete")
	l.loadedOnce.Do(func() { close(l.loaded) })

	if !l.refresh.Enabled {
		<-ctx.Done()
		return nil
	}

	ticker := l.clock.Ticker(l.refresh.Interval)
	defer ticker.Stop()
	l.logger.Debug().Dur("interval", l.refresh.Interval).Msg("Refresh loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug().Msg("Refresh loop stopped")
			return nil
		case <-ticker.C:
			l.Refresh(ctx)
		}
	}
}

// Load fetches every widget with the default budget and waits for all of
// them to settle. It returns the final state per surface.
func (l *Loader) Load(ctx context.Context) map[surface.ID]fetcher.State {
	ws := widgets(l.pages)
	results := make(map[surface.ID]fetcher.State, len(ws))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range ws {
		task := l.fetcher.FetchDefault(ctx, w.Spec, w.Surface, w.Handler())
		l.track(w.Surface, task)
		g.Go(func() error {
			state, _ := task.Wait(gctx)
			mu.Lock()
			results[w.Surface] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Refresh re-fetches every refreshable widget with the refresh budget. A
// widget whose previous fetch is still running is skipped. It returns the
// number of fetches started.
func (l *Loader) Refresh(ctx context.Context) int {
	started := 0
	for _, w := range widgets(l.pages) {
		if !w.Refresh {
			continue
		}
		if l.busy(w.Surface) {
			l.logger.Warn().
				Str("surface", string(w.Surface)).
				Msg("Skipping refresh, previous fetch still running")
			continue
		}
		task := l.fetcher.Fetch(ctx, w.Spec, w.Surface, w.Handler(), l.refresh.Retries, l.refresh.Delay)
		l.track(w.Surface, task)
		started++
	}
	return started
}

// Reload re-fetches the widgets of one page with the default budget.
func (l *Loader) Reload(ctx context.Context, page string) error {
	p, ok := Find(l.pages, page)
	if !ok {
		return fmt.Errorf("dashboard: unknown page %q", page)
	}
	for _, w := range p.Widgets {
		l.track(w.Surface, l.fetcher.FetchDefault(ctx, w.Spec, w.Surface, w.Handler()))
	}
	return nil
}

func (l *Loader) track(id surface.ID, task *fetcher.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight[id] = task
}

func (l *Loader) busy(id surface.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	task, ok := l.inflight[id]
	if !ok {
		return false
	}
	select {
	case <-task.Done():
		delete(l.inflight, id)
		return false
	default:
		return true
	}
}
