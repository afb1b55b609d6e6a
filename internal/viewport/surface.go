package viewport

import (
	"image"
	"sync"

	"pdf-annotator/internal/domain"
)

// Frame is a finished page paint together with the parameters it was
// painted with.
type Frame struct {
	Image    *image.RGBA
	Viewport domain.PageViewport
	State    domain.ViewportState
}

// Surface holds the last finished paint. Renders draw into a fresh image
// and swap it in, so readers never observe a partial paint.
type Surface struct {
	mu    sync.RWMutex
	frame *Frame
}

// NewSurface creates an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) replace(img *image.RGBA, vp domain.PageViewport, state domain.ViewportState) {
	s.mu.Lock()
	s.frame = &Frame{Image: img, Viewport: vp, State: state}
	s.mu.Unlock()
}

// Clear drops the current paint.
func (s *Surface) Clear() {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
}

// Painted reports whether a paint has finished since the last Clear.
func (s *Surface) Painted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame != nil
}

// Snapshot returns a copy of the current paint; ok is false until the first
// paint has finished.
func (s *Surface) Snapshot() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return Frame{}, false
	}
	src := s.frame.Image
	cp := &image.RGBA{
		Pix:    make([]uint8, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(cp.Pix, src.Pix)
	return Frame{Image: cp, Viewport: s.frame.Viewport, State: s.frame.State}, true
}
