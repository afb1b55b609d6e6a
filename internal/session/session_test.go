package session

import (
	"context"
	"errors"
	"image"
	"image/color"
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

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

type fakeRenderer struct {
	mu       sync.Mutex
	docs     map[string]*fakeDoc
	loadErr  error
	opened   []*fakeDoc
	textFail map[int]bool
}

func (r *fakeRenderer) LoadDocument(_ context.Context, src domain.SourceRef) (domain.DocumentHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	d, ok := r.docs[src.Path]
	if !ok {
		return nil, errors.New("no such document")
	}
	d.textFail = r.textFail
	r.opened = append(r.opened, d)
	return d, nil
}

type fakeDoc struct {
	mu       sync.Mutex
	pages    int
	closed   bool
	textFail map[int]bool
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDoc) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDoc) Page(_ context.Context, n int) (domain.PageHandle, error) {
	if n < 1 || n > d.pages {
		return nil, domain.ErrPageOutOfRange
	}
	return &fakePage{n: n, doc: d}, nil
}

type fakePage struct {
	n   int
	doc *fakeDoc
}

func (p *fakePage) Number() int { return p.n }

func (p *fakePage) Viewport(scale float64, rotation domain.Rotation) domain.PageViewport {
	w, h := 200*scale, 300*scale
	if rotation.Swapped() {
		w, h = h, w
	}
	return domain.PageViewport{Width: w, Height: h, Scale: scale, Rotation: rotation}
}

func (p *fakePage) Render(_ context.Context, target draw.Image, _ domain.PageViewport) error {
	draw.Draw(target, target.Bounds(), image.NewUniform(color.Gray{Y: 0xee}), image.Point{}, draw.Src)
	return nil
}

func (p *fakePage) TextFragments(context.Context) ([]domain.TextFragment, error) {
	if p.doc.textFail[p.n] {
		return nil, errors.New("extraction failed")
	}
	return []domain.TextFragment{{Text: "Page text", X: 20, Y: 20, Width: 60, Height: 12, FontSize: 12}}, nil
}

func newRenderer() *fakeRenderer {
	return &fakeRenderer{docs: map[string]*fakeDoc{
		"three.pdf": {pages: 3},
		"five.pdf":  {pages: 5},
	}}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Viewport.Debounce = 5 * time.Millisecond
	opts.Viewport.RetryDelay = 5 * time.Millisecond
	return opts
}

func openSession(t *testing.T, r *fakeRenderer, path string) *Session {
	t.Helper()
	s := New("s1", r, testOptions(), nopLogger{})
	require.NoError(t, s.Open(context.Background(), domain.SourceRef{Path: path, DisplayName: path}))
	t.Cleanup(func() { s.Close() })
	return s
}

func drag(t *testing.T, s *Session, from, to domain.Point) {
	t.Helper()
	_, err := s.BeginGesture(from)
	require.NoError(t, err)
	_, err = s.ContinueGesture(to)
	require.NoError(t, err)
	_, err = s.EndGesture()
	require.NoError(t, err)
}

func TestSession_Scenario(t *testing.T) {
	s := openSession(t, newRenderer(), "three.pdf")

	s.Machine().SetTool(domain.ToolRectangle)
	drag(t, s, domain.Point{X: 10, Y: 10}, domain.Point{X: 60, Y: 40})

	page1 := s.Machine().AnnotationsForPage(1)
	require.Len(t, page1, 1)
	assert.Equal(t, domain.Rect{X: 10, Y: 10, Width: 50, Height: 30}, page1[0].Bounds())
	assert.Empty(t, s.Machine().AnnotationsForPage(2))
	assert.Equal(t, 1, s.Machine().History().Index())
}

func TestSession_OpenDescribesPages(t *testing.T) {
	r := newRenderer()
	r.textFail = map[int]bool{2: true}
	s := openSession(t, r, "three.pdf")

	p1, err := s.Page(1)
	require.NoError(t, err)
	assert.Equal(t, 200.0, p1.Width)
	assert.Equal(t, 300.0, p1.Height)
	assert.Len(t, p1.Fragments, 1)

	p2, err := s.Page(2)
	require.NoError(t, err, "text extraction failure must not fail the load")
	assert.Empty(t, p2.Fragments)

	_, err = s.Page(4)
	assert.ErrorIs(t, err, domain.ErrPageOutOfRange)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.PageCount)
	require.NotNil(t, snap.Document)
	assert.Equal(t, "three.pdf", snap.Document.DisplayName)
	assert.Equal(t, domain.ViewportState{Page: 1, Zoom: 100}, snap.Viewport)
}

func TestSession_LoadErrorLeavesSessionClosed(t *testing.T) {
	r := newRenderer()
	s := New("s1", r, testOptions(), nopLogger{})
	defer s.Close()

	err := s.Open(context.Background(), domain.SourceRef{Path: "missing.pdf", DisplayName: "missing.pdf"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLoad))
	assert.False(t, s.Loaded())

	_, err = s.BeginGesture(domain.Point{})
	assert.ErrorIs(t, err, domain.ErrNoDocument)
	_, err = s.Compose(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDocument)
}

func TestSession_ReopenResetsState(t *testing.T) {
	r := newRenderer()
	s := openSession(t, r, "three.pdf")

	s.Machine().SetTool(domain.ToolRectangle)
	drag(t, s, domain.Point{X: 10, Y: 10}, domain.Point{X: 60, Y: 40})
	s.Viewport().SetPage(3)
	s.Viewport().SetZoom(150)

	closed := 0
	s.Events().Subscribe(event.TypeDocumentClosed, func(event.Event) bool { closed++; return true })

	require.NoError(t, s.Open(context.Background(), domain.SourceRef{Path: "five.pdf", DisplayName: "five.pdf"}))

	assert.True(t, r.opened[0].isClosed(), "previous handle must be released")
	assert.Equal(t, 1, closed)
	assert.Empty(t, s.Machine().Annotations())
	assert.Equal(t, 0, s.Machine().History().Index())
	assert.Equal(t, 1, s.Machine().History().Len())
	assert.Equal(t, domain.ViewportState{Page: 1, Zoom: 100}, s.Viewport().State())
	assert.Equal(t, 5, s.Viewport().PageCount())
	assert.Equal(t, domain.ToolRectangle, s.Machine().Tool(), "tool survives a document switch")
}

func TestSession_GesturesFollowViewport(t *testing.T) {
	s := openSession(t, newRenderer(), "three.pdf")

	s.Viewport().SetPage(2)
	s.Viewport().SetZoom(200)
	s.Machine().SetTool(domain.ToolHighlight)
	drag(t, s, domain.Point{X: 40, Y: 40}, domain.Point{X: 140, Y: 80})

	got := s.Machine().AnnotationsForPage(2)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Rect{X: 20, Y: 20, Width: 50, Height: 20}, got[0].Bounds())

	a, ok, err := s.AnnotationAt(domain.Point{X: 60, Y: 60})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, got[0].ID, a.ID)
}

func TestSession_EditTextUsesExtractedFragments(t *testing.T) {
	s := openSession(t, newRenderer(), "three.pdf")
	s.Machine().SetTool(domain.ToolEditText)

	out, err := s.BeginGesture(domain.Point{X: 25, Y: 25})
	require.NoError(t, err)
	require.NotNil(t, out.TextEdit)

	a, ok := s.Machine().CommitTextEdit("Edited")
	require.True(t, ok)
	assert.Equal(t, "Page text", a.Mark.(domain.TextEditMark).OriginalText)
}

func TestSession_Compose(t *testing.T) {
	s := openSession(t, newRenderer(), "three.pdf")
	s.Machine().SetTool(domain.ToolHighlight)
	drag(t, s, domain.Point{X: 0, Y: 0}, domain.Point{X: 100, Y: 100})

	img, err := s.Compose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 300), img.Bounds())

	inside := img.RGBAAt(50, 50)
	outside := img.RGBAAt(150, 150)
	assert.Equal(t, color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}, outside)
	assert.NotEqual(t, outside, inside)
	assert.True(t, s.Snapshot().Rendered)
}

func TestSession_CloseReleasesDocument(t *testing.T) {
	r := newRenderer()
	s := New("s1", r, testOptions(), nopLogger{})
	require.NoError(t, s.Open(context.Background(), domain.SourceRef{Path: "three.pdf"}))

	require.NoError(t, s.Close())
	assert.True(t, r.opened[0].isClosed())
	assert.False(t, s.Loaded())
	assert.Nil(t, s.Snapshot().Document)
}

func TestSession_ReopenAfterClose(t *testing.T) {
	r := newRenderer()
	s := New("s1", r, testOptions(), nopLogger{})
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Open(context.Background(), domain.SourceRef{Path: "three.pdf"}))
	require.NoError(t, s.Close())

	require.NoError(t, s.Open(context.Background(), domain.SourceRef{Path: "five.pdf"}))
	assert.True(t, s.Loaded())
	assert.Equal(t, 5, s.Snapshot().PageCount)

	img, err := s.Compose(context.Background())
	require.NoError(t, err)
	assert.False(t, img.Bounds().Empty())

	s.Viewport().SetPage(4)
	assert.Eventually(t, func() bool {
		frame, ok := s.Viewport().Surface().Snapshot()
		return ok && frame.State.Page == 4
	}, time.Second, 5*time.Millisecond, "debounced paints resume after reopening")
}
