package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	nethttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockwatch/lockdash/clock"
	"github.com/lockwatch/lockdash/fetcher"
	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/render"
	"github.com/lockwatch/lockdash/surface"
	testconsts "github.com/lockwatch/lockdash/testing"
	"github.com/lockwatch/lockdash/testing/fixtures"
	"github.com/lockwatch/lockdash/testing/mocks"
)

type harness struct {
	board  *surface.Board
	clock  *clock.Fake
	loader *Loader
}

func newHarness(t *testing.T, client *mocks.MockClient, refresh Refresh, retries int) *harness {
	t.Helper()
	board := surface.NewBoard(logger.Nop())
	fc := clock.NewFake(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))

	f, err := fetcher.New(fetcher.Options{
		Client:    client,
		Registry:  board,
		Navigator: board,
		Clock:     fc,
		Retries:   retries,
		Delay:     time.Second,
	})
	require.NoError(t, err)

	loader, err := NewLoader(Options{
		Fetcher:   f,
		Registrar: board,
		Clock:     fc,
		Refresh:   refresh,
	})
	require.NoError(t, err)
	return &harness{board: board, clock: fc, loader: loader}
}

func (h *harness) doc(t *testing.T, id surface.ID) *goquery.Document {
	t.Helper()
	snap, err := h.board.Snapshot(id)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(snap.HTML)))
	require.NoError(t, err)
	return doc
}

func (h *harness) version(t *testing.T, id surface.ID) uint64 {
	t.Helper()
	snap, err := h.board.Snapshot(id)
	require.NoError(t, err)
	return snap.Version
}

func TestLoadRendersEveryWidget(t *testing.T) {
	h := newHarness(t, fixtures.NewWorkingClient(), Refresh{}, 0)
	h.loader.Register()

	results := h.loader.Load(context.Background())

	require.Len(t, results, 5)
	for id, state := range results {
		assert.Equal(t, fetcher.Succeeded, state, id)
	}
	assert.Equal(t, 2, h.doc(t, SurfaceLockStatus).Find(".lock-card").Length())
	assert.Equal(t, 2, h.doc(t, SurfaceRecentActivity).Find(".activity-table tbody tr").Length())
	assert.Equal(t, 2, h.doc(t, SurfaceActivity).Find(".activity-table tbody tr").Length())
	assert.Equal(t, 2, h.doc(t, SurfaceUsers).Find(".users-table tbody tr").Length())
	total, _ := h.doc(t, SurfaceStats).Find(".stats").Attr("data-total-events")
	assert.Equal(t, "10", total)
}

func TestLoadReportsFailures(t *testing.T) {
	h := newHarness(t, fixtures.NewFailingClient(nethttp.StatusNotFound), Refresh{}, 0)
	h.loader.Register()

	results := h.loader.Load(context.Background())

	for id, state := range results {
		assert.Equal(t, fetcher.Failed, state, id)
	}
	snap, err := h.board.Snapshot(SurfaceUsers)
	require.NoError(t, err)
	assert.Contains(t, string(snap.HTML), fetcher.MsgNotFound)
	assert.Equal(t, []string{render.RetryControl}, snap.Controls)
}

func TestStartRefreshesDashboardWidgets(t *testing.T) {
	h := newHarness(t, fixtures.NewWorkingClient(), Refresh{
		Enabled:  true,
		Interval: time.Minute,
		Retries:  1,
		Delay:    time.Second,
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.loader.Start(ctx) }()

	select {
	case <-h.loader.Loaded():
	case <-time.After(time.Second):
		t.Fatal("initial load did not finish")
	}
	require.Eventually(t, func() bool { return h.clock.Tickers() == 1 },
		testconsts.TestEventuallyTimeout, testconsts.TestEventuallyTick)

	before := map[surface.ID]uint64{}
	for _, id := range []surface.ID{SurfaceLockStatus, SurfaceRecentActivity, SurfaceStats, SurfaceUsers, SurfaceActivity} {
		before[id] = h.version(t, id)
	}

	h.clock.Add(time.Minute)

	for _, id := range []surface.ID{SurfaceLockStatus, SurfaceRecentActivity, SurfaceStats} {
		require.Eventually(t, func() bool { return h.version(t, id) >= before[id]+2 },
			testconsts.TestEventuallyTimeout, testconsts.TestEventuallyTick, id)
	}
	assert.Equal(t, before[SurfaceUsers], h.version(t, SurfaceUsers))
	assert.Equal(t, before[SurfaceActivity], h.version(t, SurfaceActivity))
	assert.Equal(t, 2, h.doc(t, SurfaceLockStatus).Find(".lock-card").Length())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancellation")
	}

	stopped := h.version(t, SurfaceLockStatus)
	h.clock.Add(time.Minute)
	assert.Never(t, func() bool { return h.version(t, SurfaceLockStatus) != stopped },
		50*time.Millisecond, testconsts.TestEventuallyTick, "ticker stopped with Start")
}

func TestStartWithoutRefreshWaitsForCancel(t *testing.T) {
	h := newHarness(t, fixtures.NewWorkingClient(), Refresh{}, 0)
	h.loader.Register()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.loader.Start(ctx) }()

	select {
	case <-h.loader.Loaded():
	case <-time.After(time.Second):
		t.Fatal("initial load did not finish")
	}
	assert.Equal(t, uint64(2), h.version(t, SurfaceUsers))
	assert.Zero(t, h.clock.Tickers())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestRefreshSkipsWidgetsStillLoading(t *testing.T) {
	client := &mocks.MockClient{}
	for _, url := range []string{"/api/status", "/api/activity?limit=5", "/api/stats"} {
		client.ExpectBlocking(nethttp.MethodGet, url)
	}
	h := newHarness(t, client, Refresh{Enabled: true, Interval: time.Minute, Retries: 1, Delay: time.Second}, 0)
	h.loader.Register()

	ctx, cancel := context.WithCancel(context.Background())
	assert.Equal(t, 3, h.loader.Refresh(ctx))
	assert.Zero(t, h.loader.Refresh(ctx))

	cancel()
	next, stop := context.WithCancel(context.Background())
	defer stop()
	require.Eventually(t, func() bool { return !h.loader.busy(SurfaceLockStatus) },
		testconsts.TestEventuallyTimeout, testconsts.TestEventuallyTick)
	require.Eventually(t, func() bool { return !h.loader.busy(SurfaceStats) && !h.loader.busy(SurfaceRecentActivity) },
		testconsts.TestEventuallyTimeout, testconsts.TestEventuallyTick)
	assert.Equal(t, 3, h.loader.Refresh(next))
}

func TestReload(t *testing.T) {
	h := newHarness(t, fixtures.NewWorkingClient(), Refresh{}, 0)
	h.loader.Register()

	assert.Error(t, h.loader.Reload(context.Background(), "settings"))

	require.NoError(t, h.loader.Reload(context.Background(), "users"))
	require.Eventually(t, func() bool { return h.version(t, SurfaceUsers) == 2 },
		testconsts.TestEventuallyTimeout, testconsts.TestEventuallyTick)
	assert.Zero(t, h.version(t, SurfaceLockStatus))
}

func TestNewLoaderValidation(t *testing.T) {
	board := surface.NewBoard(nil)
	f, err := fetcher.New(fetcher.Options{Client: fixtures.NewWorkingClient()})
	require.NoError(t, err)

	_, err = NewLoader(Options{Registrar: board})
	assert.Error(t, err)

	_, err = NewLoader(Options{Fetcher: f})
	assert.Error(t, err)

	_, err = NewLoader(Options{Fetcher: f, Registrar: board, Refresh: Refresh{Enabled: true}})
	assert.Error(t, err)

	l, err := NewLoader(Options{Fetcher: f, Registrar: board})
	require.NoError(t, err)
	assert.Len(t, l.Pages(), 3)
}

func TestPages(t *testing.T) {
	pages := Pages()

	p, ok := Find(pages, "dashboard")
	require.True(t, ok)
	assert.Equal(t, "/", p.Path)
	require.Len(t, p.Widgets, 3)
	assert.Equal(t, "/api/activity?limit=5", p.Widgets[1].Spec.Endpoint)
	for _, w := range p.Widgets {
		assert.True(t, w.Refresh, w.Surface)
	}

	_, ok = Find(pages, "settings")
	assert.False(t, ok)

	dup := append(pages, Page{Name: "again", Widgets: pages[2].Widgets})
	assert.Len(t, widgets(dup), 5)
}

func TestWidgetHandler(t *testing.T) {
	w := Widget{Render: func(raw json.RawMessage) (template.HTML, error) {
		if string(raw) == "bad" {
			return "", errors.New("decode failed")
		}
		return template.HTML("<p>" + string(raw) + "</p>"), nil
	}}
	target := &mocks.RecordingSurface{}

	require.NoError(t, w.Handler()(json.RawMessage("1"), target))
	assert.Equal(t, template.HTML("<p>1</p>"), target.Last())

	assert.NoError(t, w.Handler()(json.RawMessage("2"), nil))
	assert.Error(t, w.Handler()(json.RawMessage("bad"), target))
	assert.Len(t, target.Writes(), 1)
}
