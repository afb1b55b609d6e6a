package viewport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/event"
	apperrors "pdf-annotator/pkg/errors"
)

// DefaultZoom is the zoom a freshly loaded document opens at.
const DefaultZoom = 100

// Options tunes the coordinator.
type Options struct {
	Debounce   time.Duration
	RetryDelay time.Duration
	ZoomMin    int
	ZoomMax    int
	ZoomStep   int
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Debounce:   50 * time.Millisecond,
		RetryDelay: 500 * time.Millisecond,
		ZoomMin:    25,
		ZoomMax:    200,
		ZoomStep:   25,
	}
}

// OptionsFromSettings maps editor settings onto coordinator options.
func OptionsFromSettings(s domain.EditorSettings) Options {
	opts := DefaultOptions()
	if s.RenderDebounce > 0 {
		opts.Debounce = s.RenderDebounce
	}
	if s.RenderRetryDelay > 0 {
		opts.RetryDelay = s.RenderRetryDelay
	}
	if s.ZoomMin > 0 && s.ZoomMax >= s.ZoomMin {
		opts.ZoomMin, opts.ZoomMax = s.ZoomMin, s.ZoomMax
	}
	if s.ZoomStep > 0 {
		opts.ZoomStep = s.ZoomStep
	}
	return opts
}

// Coordinator owns the current page, zoom and rotation and decides when
// the document must be repainted. Repaints are debounced and at most one
// is in flight; a request made while busy is re-run once the current paint
// finishes, with the latest parameters.
type Coordinator struct {
	mu sync.Mutex

	opts      Options
	state     domain.ViewportState
	doc       domain.DocumentHandle
	pageCount int
	surface   *Surface
	events    *event.Manager
	logger    domain.Logger

	timer      *time.Timer
	busy       bool
	dirty      bool
	generation uint64
	waiters    []chan error
	err        error
	renders    int

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewCoordinator creates a coordinator with no document.
func NewCoordinator(opts Options, events *event.Manager, logger domain.Logger) *Coordinator {
	if opts.ZoomMin <= 0 || opts.ZoomMax < opts.ZoomMin {
		def := DefaultOptions()
		opts.ZoomMin, opts.ZoomMax = def.ZoomMin, def.ZoomMax
	}
	if opts.ZoomStep <= 0 {
		opts.ZoomStep = DefaultOptions().ZoomStep
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		opts:    opts,
		surface: NewSurface(),
		events:  events,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	c.state = c.defaultState(0)
	return c
}

// Surface returns the drawing surface the coordinator paints into.
func (c *Coordinator) Surface() *Surface {
	return c.surface
}

// Reset invalidates everything belonging to the previous document: the
// pending timer is stopped, the busy flag and error are cleared, late
// completions are discarded and the state returns to its defaults. doc may
// be nil to leave the coordinator empty. A non-nil doc reopens a closed
// coordinator.
func (c *Coordinator) Reset(doc domain.DocumentHandle, pageCount int) domain.ViewportState {
	c.mu.Lock()
	c.invalidate()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.doc = doc
	c.pageCount = pageCount
	if doc != nil {
		c.closed = false
	}
	c.state = c.defaultState(pageCount)
	c.renders = 0
	c.surface.Clear()
	state := c.state
	c.mu.Unlock()
	return state
}

// Close stops all timers and cancels any paint in flight.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.invalidate()
	c.doc = nil
	c.pageCount = 0
}

// invalidate must be called with c.mu held.
func (c *Coordinator) invalidate() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancel()
	c.generation++
	c.busy = false
	c.dirty = false
	c.err = nil
	for _, w := range c.waiters {
		w <- context.Canceled
	}
	c.waiters = nil
}

func (c *Coordinator) defaultState(pageCount int) domain.ViewportState {
	page := 1
	if pageCount == 0 {
		page = 0
	}
	return domain.ViewportState{Page: page, Zoom: c.clampZoom(DefaultZoom), Rotation: domain.Rotate0}
}

// State returns the current viewport state.
func (c *Coordinator) State() domain.ViewportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PageCount returns the page count of the open document.
func (c *Coordinator) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageCount
}

// SetPage moves to page n, clamped to the document.
func (c *Coordinator) SetPage(n int) domain.ViewportState {
	return c.update(func(s *domain.ViewportState) {
		if c.pageCount == 0 {
			return
		}
		s.Page = clampInt(n, 1, c.pageCount)
	})
}

// SetZoom sets the zoom percentage, clamped to the configured range.
func (c *Coordinator) SetZoom(pct int) domain.ViewportState {
	return c.update(func(s *domain.ViewportState) {
		s.Zoom = c.clampZoom(pct)
	})
}

// ZoomIn raises the zoom by one step.
func (c *Coordinator) ZoomIn() domain.ViewportState {
	return c.update(func(s *domain.ViewportState) {
		s.Zoom = c.clampZoom(s.Zoom + c.opts.ZoomStep)
	})
}

// ZoomOut lowers the zoom by one step.
func (c *Coordinator) ZoomOut() domain.ViewportState {
	return c.update(func(s *domain.ViewportState) {
		s.Zoom = c.clampZoom(s.Zoom - c.opts.ZoomStep)
	})
}

// Rotate advances the rotation by 90 degrees.
func (c *Coordinator) Rotate() domain.ViewportState {
	return c.update(func(s *domain.ViewportState) {
		s.Rotation = s.Rotation.Next()
	})
}

func (c *Coordinator) update(fn func(*domain.ViewportState)) domain.ViewportState {
	c.mu.Lock()
	before := c.state
	fn(&c.state)
	state := c.state
	changed := state != before
	if changed {
		c.scheduleLocked()
	}
	c.mu.Unlock()

	if changed {
		c.events.Dispatch(event.TypeViewportChanged, event.ViewportChangedData{State: state})
	}
	return state
}

// Refresh schedules a debounced repaint with the current parameters.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	c.scheduleLocked()
	c.mu.Unlock()
}

func (c *Coordinator) scheduleLocked() {
	if c.closed || c.doc == nil {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	gen := c.generation
	c.timer = time.AfterFunc(c.opts.Debounce, func() { c.fire(gen) })
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.busy {
		c.dirty = true
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.mu.Unlock()

	c.run(gen)
}

// RenderNow skips the debounce and paints the current page, waiting for the
// result. If a paint is already in flight the request is folded into the
// follow-up paint.
func (c *Coordinator) RenderNow(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.doc == nil {
		c.mu.Unlock()
		return domain.ErrNoDocument
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ch := make(chan error, 1)
	c.waiters = append(c.waiters, ch)
	gen := c.generation
	start := !c.busy
	if start {
		c.busy = true
	} else {
		c.dirty = true
	}
	c.mu.Unlock()

	if start {
		go c.run(gen)
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run paints until no follow-up request is pending. The caller has set busy.
func (c *Coordinator) run(gen uint64) {
	for {
		c.mu.Lock()
		state, doc, ctx := c.state, c.doc, c.ctx
		c.mu.Unlock()

		img, vp, err := c.paint(ctx, doc, state)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		var ev event.Event
		if err != nil {
			c.err = err
			ev = event.Event{Type: event.TypeRenderFailed, Data: event.RenderFailedData{Page: state.Page, Err: err}}
			if c.logger != nil {
				c.logger.Error("Viewport: render failed after retry", err, "page", state.Page, "zoom", state.Zoom)
			}
		} else {
			c.surface.replace(img, vp, state)
			c.err = nil
			c.renders++
			ev = event.Event{Type: event.TypeRenderCompleted, Data: event.RenderCompletedData{Page: state.Page, Viewport: vp}}
		}

		if c.dirty {
			c.dirty = false
			c.mu.Unlock()
			c.events.Dispatch(ev.Type, ev.Data)
			continue
		}
		c.busy = false
		waiters := c.waiters
		c.waiters = nil
		c.mu.Unlock()

		c.events.Dispatch(ev.Type, ev.Data)
		for _, w := range waiters {
			w <- err
		}
		return
	}
}

// paint renders once and retries once after RetryDelay.
func (c *Coordinator) paint(ctx context.Context, doc domain.DocumentHandle, state domain.ViewportState) (*image.RGBA, domain.PageViewport, error) {
	img, vp, err := paintOnce(ctx, doc, state)
	if err == nil || ctx.Err() != nil {
		return img, vp, err
	}
	if c.logger != nil {
		c.logger.Warn("Viewport: render failed, retrying", "page", state.Page, "error", err.Error())
	}

	t := time.NewTimer(c.opts.RetryDelay)
	select {
	case <-ctx.Done():
		t.Stop()
		return nil, vp, ctx.Err()
	case <-t.C:
	}

	img, vp, err = paintOnce(ctx, doc, state)
	if err != nil {
		return nil, vp, apperrors.NewRenderError(state.Page, err)
	}
	return img, vp, nil
}

func paintOnce(ctx context.Context, doc domain.DocumentHandle, state domain.ViewportState) (img *image.RGBA, vp domain.PageViewport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()

	page, err := doc.Page(ctx, state.Page)
	if err != nil {
		return nil, vp, err
	}
	vp = page.Viewport(state.Scale(), state.Rotation)
	w, h := int(math.Ceil(vp.Width)), int(math.Ceil(vp.Height))
	if w <= 0 || h <= 0 {
		return nil, vp, errors.New("empty viewport")
	}
	img = image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	if err := page.Render(ctx, img, vp); err != nil {
		return nil, vp, err
	}
	return img, vp, nil
}

// Err returns the current render error, if any.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DismissError clears the render error.
func (c *Coordinator) DismissError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

// Busy reports whether a paint is in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Renders returns how many paints have completed since the last Reset.
func (c *Coordinator) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

func (c *Coordinator) clampZoom(pct int) int {
	return clampInt(pct, c.opts.ZoomMin, c.opts.ZoomMax)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
