// Package session ties a rendered document to its annotation engine and
// viewport.
package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"pdf-annotator/internal/annotation"
	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/event"
	"pdf-annotator/internal/overlay"
	"pdf-annotator/internal/viewport"
	apperrors "pdf-annotator/pkg/errors"
)

// Options tunes a session.
type Options struct {
	Machine         annotation.Options
	Viewport        viewport.Options
	HistoryDebounce time.Duration
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Machine:  annotation.DefaultOptions(),
		Viewport: viewport.DefaultOptions(),
	}
}

// OptionsFromSettings maps editor settings onto session options.
func OptionsFromSettings(s domain.EditorSettings) Options {
	return Options{
		Machine:         annotation.OptionsFromSettings(s),
		Viewport:        viewport.OptionsFromSettings(s),
		HistoryDebounce: s.HistoryDebounce,
	}
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID        string               `json:"id"`
	Document  *domain.SourceRef    `json:"document,omitempty"`
	PageCount int                  `json:"page_count"`
	Viewport  domain.ViewportState `json:"viewport"`
	Editor    annotation.State     `json:"editor"`
	Error     string               `json:"error,omitempty"`
	Rendered  bool                 `json:"rendered"`
}

// Session owns one open document: the renderer handle, the page
// descriptors, the annotation machine and the viewport coordinator.
type Session struct {
	mu sync.RWMutex

	id       string
	renderer domain.DocumentRenderer
	doc      domain.DocumentHandle
	source   domain.SourceRef
	pages    []domain.PageDescriptor

	machine *annotation.Machine
	coord   *viewport.Coordinator
	events  *event.Manager
	painter *overlay.Painter
	logger  domain.Logger
}

// New creates a session with no document.
func New(id string, renderer domain.DocumentRenderer, opts Options, logger domain.Logger) *Session {
	events := event.NewManager()
	return &Session{
		id:       id,
		renderer: renderer,
		machine:  annotation.NewMachine(opts.Machine, annotation.NewHistory(opts.HistoryDebounce, logger), events, logger),
		coord:    viewport.NewCoordinator(opts.Viewport, events, logger),
		events:   events,
		painter:  overlay.NewPainter(),
		logger:   logger,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Events returns the session's event bus.
func (s *Session) Events() *event.Manager { return s.events }

// Machine returns the annotation state machine.
func (s *Session) Machine() *annotation.Machine { return s.machine }

// Viewport returns the page coordinator.
func (s *Session) Viewport() *viewport.Coordinator { return s.coord }

// Open loads a document. Whatever was open before is torn down first, so
// nothing of the previous document survives even when loading fails.
func (s *Session) Open(ctx context.Context, src domain.SourceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown()

	handle, err := s.renderer.LoadDocument(ctx, src)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeLoad) {
			err = apperrors.NewLoadError("failed to open document", err, src.DisplayName)
		}
		s.logger.Error("Session: failed to load document", err, "session", s.id, "name", src.DisplayName)
		return err
	}

	pages, err := s.describePages(ctx, handle)
	if err != nil {
		handle.Close()
		s.logger.Error("Session: failed to read pages", err, "session", s.id, "name", src.DisplayName)
		return apperrors.NewLoadError("failed to read document pages", err, src.DisplayName)
	}

	s.doc = handle
	s.source = src
	s.pages = pages
	s.coord.Reset(handle, len(pages))
	s.coord.Refresh()

	s.logger.Info("Session: document loaded", "session", s.id, "name", src.DisplayName, "pages", len(pages))
	s.events.Dispatch(event.TypeDocumentLoaded, event.DocumentLoadedData{DisplayName: src.DisplayName, PageCount: len(pages)})
	return nil
}

// describePages reads page sizes and text one page at a time. Text
// extraction failures leave that page without fragments.
func (s *Session) describePages(ctx context.Context, handle domain.DocumentHandle) ([]domain.PageDescriptor, error) {
	n := handle.PageCount()
	pages := make([]domain.PageDescriptor, 0, n)
	for i := 1; i <= n; i++ {
		page, err := handle.Page(ctx, i)
		if err != nil {
			return nil, err
		}
		vp := page.Viewport(1, domain.Rotate0)
		frags, err := page.TextFragments(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("Session: text extraction failed; page has no editable text", "session", s.id, "page", i, "error", err.Error())
			frags = nil
		}
		pages = append(pages, domain.PageDescriptor{
			Number:    i,
			Width:     vp.Width,
			Height:    vp.Height,
			Rotation:  domain.Rotate0,
			Fragments: frags,
		})
	}
	return pages, nil
}

// Close releases the document and cancels all timers.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.teardown()
	s.coord.Close()
	return err
}

// teardown must be called with s.mu held.
func (s *Session) teardown() error {
	s.coord.Reset(nil, 0)
	s.machine.Reset()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	name := s.source.DisplayName
	s.doc = nil
	s.pages = nil
	s.source = domain.SourceRef{}
	s.events.Dispatch(event.TypeDocumentClosed, nil)
	s.logger.Debug("Session: document closed", "session", s.id, "name", name)
	return err
}

// Loaded reports whether a document is open.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc != nil
}

// Page returns the descriptor of page n.
func (s *Session) Page(n int) (domain.PageDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageLocked(n)
}

func (s *Session) pageLocked(n int) (domain.PageDescriptor, error) {
	if s.doc == nil {
		return domain.PageDescriptor{}, domain.ErrNoDocument
	}
	if n < 1 || n > len(s.pages) {
		return domain.PageDescriptor{}, domain.ErrPageOutOfRange
	}
	return s.pages[n-1], nil
}

// Frame returns the current page and its screen mapping.
func (s *Session) Frame() (annotation.Frame, error) {
	state := s.coord.State()
	page, err := s.Page(state.Page)
	if err != nil {
		return annotation.Frame{}, err
	}
	return annotation.Frame{Page: page, Transform: viewport.NewTransform(page, state)}, nil
}

// BeginGesture starts a gesture at a screen point on the current page.
func (s *Session) BeginGesture(pt domain.Point) (annotation.Outcome, error) {
	frame, err := s.Frame()
	if err != nil {
		return annotation.Outcome{}, err
	}
	return s.machine.BeginGesture(pt, frame), nil
}

// ContinueGesture extends the active gesture.
func (s *Session) ContinueGesture(pt domain.Point) (annotation.Outcome, error) {
	if !s.Loaded() {
		return annotation.Outcome{}, domain.ErrNoDocument
	}
	return s.machine.ContinueGesture(pt), nil
}

// EndGesture finishes the active gesture.
func (s *Session) EndGesture() (annotation.Outcome, error) {
	if !s.Loaded() {
		return annotation.Outcome{}, domain.ErrNoDocument
	}
	return s.machine.EndGesture(), nil
}

// AnnotationAt returns the topmost annotation under a screen point on the
// current page.
func (s *Session) AnnotationAt(pt domain.Point) (domain.Annotation, bool, error) {
	frame, err := s.Frame()
	if err != nil {
		return domain.Annotation{}, false, err
	}
	a, ok := s.machine.AnnotationAt(pt, frame)
	return a, ok, nil
}

// Compose returns the current page with its annotations painted on top.
// If the last paint is missing or stale it is refreshed first.
func (s *Session) Compose(ctx context.Context) (*image.RGBA, error) {
	if !s.Loaded() {
		return nil, domain.ErrNoDocument
	}
	frame, ok := s.coord.Surface().Snapshot()
	if !ok || frame.State != s.coord.State() {
		if err := s.coord.RenderNow(ctx); err != nil {
			return nil, err
		}
		if frame, ok = s.coord.Surface().Snapshot(); !ok {
			return nil, errors.New("no paint available")
		}
	}

	page, err := s.Page(frame.State.Page)
	if err != nil {
		return nil, err
	}
	annotations := s.machine.AnnotationsForPage(page.Number)
	if pending, ok := s.machine.Pending(); ok && pending.Page == page.Number {
		annotations = append(annotations, pending)
	}
	return s.painter.Compose(frame.Image, annotations, viewport.NewTransform(page, frame.State)), nil
}

// Snapshot summarises the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{ID: s.id, PageCount: len(s.pages)}
	if s.doc != nil {
		src := s.source
		snap.Document = &src
	}
	s.mu.RUnlock()

	snap.Viewport = s.coord.State()
	snap.Editor = s.machine.State()
	if err := s.coord.Err(); err != nil {
		snap.Error = err.Error()
	}
	snap.Rendered = s.coord.Surface().Painted()
	return snap
}
