// Package mupdf implements the document renderer on top of go-fitz.
package mupdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"pdf-annotator/internal/domain"
	apperrors "pdf-annotator/pkg/errors"
)

// pointsPerInch is the resolution at which one PDF point is one pixel,
// i.e. 100% zoom.
const pointsPerInch = 72.0

// DefaultPageTimeout bounds a single render or text extraction call.
const DefaultPageTimeout = 30 * time.Second

// Renderer opens documents with MuPDF.
type Renderer struct {
	logger      domain.Logger
	pageTimeout time.Duration
}

// NewRenderer creates a MuPDF-backed renderer.
func NewRenderer(logger domain.Logger) *Renderer {
	return &Renderer{logger: logger, pageTimeout: DefaultPageTimeout}
}

// LoadDocument opens the file the source points at.
func (r *Renderer) LoadDocument(ctx context.Context, src domain.SourceRef) (domain.DocumentHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(src.Path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return nil, apperrors.NewLoadError("failed to open document", err, "password-protected")
		}
		return nil, apperrors.NewLoadError("failed to open document", err, src.DisplayName)
	}
	pages := doc.NumPage()
	if pages <= 0 {
		doc.Close()
		return nil, apperrors.NewLoadError("document has no pages", nil, src.DisplayName)
	}
	r.logger.Debug("MuPDF: document opened", "name", src.DisplayName, "pages", pages)
	return &document{doc: doc, pages: pages, logger: r.logger, timeout: r.pageTimeout}, nil
}

type document struct {
	mu      sync.Mutex
	doc     *fitz.Document
	pages   int
	closed  bool
	logger  domain.Logger
	timeout time.Duration
}

func (d *document) PageCount() int { return d.pages }

func (d *document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.doc.Close()
}

func (d *document) Page(ctx context.Context, n int) (domain.PageHandle, error) {
	if n < 1 || n > d.pages {
		return nil, fmt.Errorf("page %d of %d: %w", n, d.pages, domain.ErrPageOutOfRange)
	}
	var bound image.Rectangle
	err := d.call(ctx, func() error {
		var err error
		bound, err = d.doc.Bound(n - 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &page{d: d, n: n, width: float64(bound.Dx()), height: float64(bound.Dy())}, nil
}

// call runs fn against the MuPDF document under the document lock. MuPDF
// calls cannot be interrupted; on timeout or cancellation the call is left
// to finish in the background.
func (d *document) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			done <- errors.New("document closed")
			return
		}
		done <- fn()
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		d.logger.Warn("MuPDF: page call timed out", "timeout_sec", int(d.timeout.Seconds()))
		return fmt.Errorf("timeout after %v", d.timeout)
	}
}

type page struct {
	d      *document
	n      int
	width  float64
	height float64
}

func (p *page) Number() int { return p.n }

func (p *page) Viewport(scale float64, rotation domain.Rotation) domain.PageViewport {
	if scale <= 0 {
		scale = 1
	}
	w, h := p.width*scale, p.height*scale
	if rotation.Swapped() {
		w, h = h, w
	}
	return domain.PageViewport{Width: w, Height: h, Scale: scale, Rotation: rotation}
}

func (p *page) Render(ctx context.Context, target draw.Image, vp domain.PageViewport) error {
	var src *image.RGBA
	err := p.d.call(ctx, func() error {
		var err error
		src, err = p.d.doc.ImageDPI(p.n-1, pointsPerInch*vp.Scale)
		return err
	})
	if err != nil {
		return err
	}
	m := placement(src.Bounds().Dx(), src.Bounds().Dy(), vp)
	xdraw.ApproxBiLinear.Transform(target, m, src, src.Bounds(), xdraw.Over, nil)
	return nil
}

func (p *page) TextFragments(ctx context.Context) ([]domain.TextFragment, error) {
	var markup string
	err := p.d.call(ctx, func() error {
		var err error
		markup, err = p.d.doc.HTML(p.n-1, false)
		return err
	})
	if err != nil {
		return nil, apperrors.NewTextExtractionError(p.n, err)
	}
	frags, err := ParseFragments(markup)
	if err != nil {
		return nil, apperrors.NewTextExtractionError(p.n, err)
	}
	return frags, nil
}

// placement maps source pixels of an unrotated sw x sh raster onto the
// viewport, rotating clockwise and stretching to the viewport size.
func placement(sw, sh int, vp domain.PageViewport) f64.Aff3 {
	w, h := float64(sw), float64(sh)
	rw, rh := w, h
	if vp.Rotation.Swapped() {
		rw, rh = h, w
	}
	kx, ky := 1.0, 1.0
	if rw > 0 && vp.Width > 0 {
		kx = vp.Width / rw
	}
	if rh > 0 && vp.Height > 0 {
		ky = vp.Height / rh
	}

	switch vp.Rotation {
	case domain.Rotate90:
		return f64.Aff3{0, -kx, kx * h, ky, 0, 0}
	case domain.Rotate180:
		return f64.Aff3{-kx, 0, kx * w, 0, -ky, ky * h}
	case domain.Rotate270:
		return f64.Aff3{0, kx, 0, -ky, 0, ky * w}
	}
	return f64.Aff3{kx, 0, 0, 0, ky, 0}
}
