package viewport

import (
	"context"
	"errors"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/event"
	apperrors "pdf-annotator/pkg/errors"
)

type fakeDoc struct {
	mu          sync.Mutex
	pages       int
	failures    int
	panics      bool
	inflight    int
	maxInflight int
	calls       []domain.PageViewport
	gate        chan struct{}
	started     chan int
}

func (d *fakeDoc) PageCount() int { return d.pages }
func (d *fakeDoc) Close() error   { return nil }

func (d *fakeDoc) Page(_ context.Context, n int) (domain.PageHandle, error) {
	if n < 1 || n > d.pages {
		return nil, domain.ErrPageOutOfRange
	}
	return &fakePage{n: n, doc: d}, nil
}

func (d *fakeDoc) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakePage struct {
	n   int
	doc *fakeDoc
}

func (p *fakePage) Number() int { return p.n }

func (p *fakePage) Viewport(scale float64, rotation domain.Rotation) domain.PageViewport {
	w, h := 100*scale, 200*scale
	if rotation.Swapped() {
		w, h = h, w
	}
	return domain.PageViewport{Width: w, Height: h, Scale: scale, Rotation: rotation}
}

func (p *fakePage) Render(ctx context.Context, _ draw.Image, vp domain.PageViewport) error {
	d := p.doc
	d.mu.Lock()
	d.inflight++
	if d.inflight > d.maxInflight {
		d.maxInflight = d.inflight
	}
	d.calls = append(d.calls, vp)
	fail := d.failures > 0
	if fail {
		d.failures--
	}
	gate, started := d.gate, d.started
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inflight--
		d.mu.Unlock()
	}()

	if d.panics {
		panic("boom")
	}
	if started != nil {
		started <- p.n
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return errors.New("paint failed")
	}
	return nil
}

func (p *fakePage) TextFragments(context.Context) ([]domain.TextFragment, error) {
	return nil, nil
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Debounce = 20 * time.Millisecond
	opts.RetryDelay = 10 * time.Millisecond
	return opts
}

func newTestCoordinator(t *testing.T, doc *fakeDoc) (*Coordinator, *event.Manager) {
	t.Helper()
	events := event.NewManager()
	c := NewCoordinator(testOptions(), events, nil)
	c.Reset(doc, doc.pages)
	t.Cleanup(c.Close)
	return c, events
}

func TestCoordinator_Defaults(t *testing.T) {
	c := NewCoordinator(DefaultOptions(), nil, nil)
	defer c.Close()

	assert.Equal(t, domain.ViewportState{Page: 0, Zoom: 100}, c.State())

	state := c.Reset(&fakeDoc{pages: 4}, 4)
	assert.Equal(t, domain.ViewportState{Page: 1, Zoom: 100, Rotation: 0}, state)
}

func TestCoordinator_Clamping(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeDoc{pages: 5})

	assert.Equal(t, 1, c.SetPage(0).Page)
	assert.Equal(t, 5, c.SetPage(99).Page)
	assert.Equal(t, 3, c.SetPage(3).Page)

	assert.Equal(t, 25, c.SetZoom(10).Zoom)
	assert.Equal(t, 200, c.SetZoom(500).Zoom)
	assert.Equal(t, 200, c.ZoomIn().Zoom)
	assert.Equal(t, 175, c.ZoomOut().Zoom)

	c.SetZoom(25)
	assert.Equal(t, 25, c.ZoomOut().Zoom)

	var rot domain.Rotation
	for i := 0; i < 4; i++ {
		rot = c.Rotate().Rotation
	}
	assert.Equal(t, domain.Rotate0, rot)
}

func TestCoordinator_DebounceCollapsesRequests(t *testing.T) {
	doc := &fakeDoc{pages: 3}
	c, events := newTestCoordinator(t, doc)

	var changed int
	var mu sync.Mutex
	events.Subscribe(event.TypeViewportChanged, func(event.Event) bool {
		mu.Lock()
		changed++
		mu.Unlock()
		return false
	})

	c.SetZoom(50)
	c.ZoomIn()
	c.Rotate()

	require.Eventually(t, func() bool { return c.Renders() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, doc.callCount())
	frame, ok := c.Surface().Snapshot()
	require.True(t, ok)
	assert.Equal(t, domain.ViewportState{Page: 1, Zoom: 75, Rotation: domain.Rotate90}, frame.State)
	assert.Equal(t, 150, frame.Image.Bounds().Dx())
	assert.Equal(t, 75, frame.Image.Bounds().Dy())

	mu.Lock()
	assert.Equal(t, 3, changed)
	mu.Unlock()
}

func TestCoordinator_NoChangeNoRender(t *testing.T) {
	doc := &fakeDoc{pages: 1}
	c, _ := newTestCoordinator(t, doc)

	c.SetPage(1)
	c.SetZoom(100)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, doc.callCount())
}

func TestCoordinator_BusyDefersLatestRequest(t *testing.T) {
	doc := &fakeDoc{pages: 5, gate: make(chan struct{}), started: make(chan int, 8)}
	c, _ := newTestCoordinator(t, doc)

	c.SetPage(2)
	require.Equal(t, 2, <-doc.started)
	assert.True(t, c.Busy())

	// Requests while busy collapse into one follow-up paint.
	c.SetPage(3)
	time.Sleep(40 * time.Millisecond)
	c.SetPage(4)
	time.Sleep(40 * time.Millisecond)

	doc.gate <- struct{}{}
	require.Equal(t, 4, <-doc.started)
	doc.gate <- struct{}{}

	require.Eventually(t, func() bool { return !c.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, doc.callCount())
	doc.mu.Lock()
	assert.Equal(t, 1, doc.maxInflight)
	doc.mu.Unlock()

	frame, ok := c.Surface().Snapshot()
	require.True(t, ok)
	assert.Equal(t, 4, frame.State.Page)
}

func TestCoordinator_RetryOnceThenSucceed(t *testing.T) {
	doc := &fakeDoc{pages: 1, failures: 1}
	c, _ := newTestCoordinator(t, doc)

	require.NoError(t, c.RenderNow(context.Background()))
	assert.Equal(t, 2, doc.callCount())
	assert.NoError(t, c.Err())
	assert.Equal(t, 1, c.Renders())
}

func TestCoordinator_RetryExhaustedSetsDismissibleError(t *testing.T) {
	doc := &fakeDoc{pages: 1, failures: 2}
	c, events := newTestCoordinator(t, doc)

	failed := make(chan event.RenderFailedData, 1)
	events.Subscribe(event.TypeRenderFailed, func(e event.Event) bool {
		failed <- e.Data.(event.RenderFailedData)
		return true
	})

	err := c.RenderNow(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRender))
	assert.Equal(t, 2, doc.callCount())

	select {
	case data := <-failed:
		assert.Equal(t, 1, data.Page)
	case <-time.After(time.Second):
		t.Fatal("render failure was not published")
	}

	require.Error(t, c.Err())
	c.DismissError()
	assert.NoError(t, c.Err())
	assert.False(t, c.Busy(), "coordinator stays usable after a failure")

	require.NoError(t, c.RenderNow(context.Background()))
}

func TestCoordinator_RendererPanicBecomesError(t *testing.T) {
	doc := &fakeDoc{pages: 1, panics: true}
	c, _ := newTestCoordinator(t, doc)

	err := c.RenderNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, errors.Unwrap(err).Error(), "renderer panic")
}

func TestCoordinator_ResetDiscardsLateCompletion(t *testing.T) {
	doc := &fakeDoc{pages: 2, gate: make(chan struct{}), started: make(chan int, 1)}
	c, _ := newTestCoordinator(t, doc)

	c.Refresh()
	<-doc.started

	next := &fakeDoc{pages: 7}
	state := c.Reset(next, 7)
	assert.Equal(t, 1, state.Page)
	assert.False(t, c.Busy())

	// The old paint observes its cancelled context and must not land.
	time.Sleep(20 * time.Millisecond)
	_, ok := c.Surface().Snapshot()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Renders())
	assert.Equal(t, 7, c.PageCount())

	require.NoError(t, c.RenderNow(context.Background()))
	assert.Equal(t, 1, next.callCount())
}

func TestCoordinator_CloseStopsPendingTimer(t *testing.T) {
	doc := &fakeDoc{pages: 2}
	c, _ := newTestCoordinator(t, doc)

	c.SetPage(2)
	c.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, doc.callCount())
	assert.ErrorIs(t, c.RenderNow(context.Background()), domain.ErrNoDocument)
}

func TestCoordinator_ResetReopensAfterClose(t *testing.T) {
	doc := &fakeDoc{pages: 2}
	c, _ := newTestCoordinator(t, doc)
	c.Close()

	c.Reset(doc, 2)
	require.NoError(t, c.RenderNow(context.Background()))
	assert.True(t, c.Surface().Painted())

	c.Reset(nil, 0)
	assert.ErrorIs(t, c.RenderNow(context.Background()), domain.ErrNoDocument)
}

func TestCoordinator_RenderNowWithoutDocument(t *testing.T) {
	c := NewCoordinator(DefaultOptions(), nil, nil)
	defer c.Close()

	assert.ErrorIs(t, c.RenderNow(context.Background()), domain.ErrNoDocument)
}

func TestOptionsFromSettings(t *testing.T) {
	opts := OptionsFromSettings(domain.EditorSettings{
		RenderDebounce: 10 * time.Millisecond,
		ZoomMin:        50,
		ZoomMax:        40,
		ZoomStep:       10,
	})

	assert.Equal(t, 10*time.Millisecond, opts.Debounce)
	assert.Equal(t, 25, opts.ZoomMin, "inverted range falls back to defaults")
	assert.Equal(t, 200, opts.ZoomMax)
	assert.Equal(t, 10, opts.ZoomStep)
}
