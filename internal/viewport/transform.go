package viewport

import "pdf-annotator/internal/domain"

// Transform maps between page coordinates (100% zoom, rotation 0) and
// screen pixels on the overlay for one page and viewport.
type Transform struct {
	PageWidth  float64
	PageHeight float64
	Scale      float64
	Rotation   domain.Rotation
}

// NewTransform builds the mapping for a page under the given viewport state.
func NewTransform(page domain.PageDescriptor, state domain.ViewportState) Transform {
	scale := state.Scale()
	if scale <= 0 {
		scale = 1
	}
	return Transform{
		PageWidth:  page.Width,
		PageHeight: page.Height,
		Scale:      scale,
		Rotation:   domain.NormalizeRotation(int(page.Rotation) + int(state.Rotation)),
	}
}

// Identity is the 100%, unrotated mapping.
func Identity() Transform {
	return Transform{Scale: 1}
}

// ScreenSize returns the on-screen size of the page.
func (t Transform) ScreenSize() (float64, float64) {
	w, h := t.PageWidth*t.Scale, t.PageHeight*t.Scale
	if t.Rotation.Swapped() {
		return h, w
	}
	return w, h
}

// ToScreen maps a page point to screen pixels.
func (t Transform) ToScreen(p domain.Point) domain.Point {
	s := t.scale()
	switch t.Rotation {
	case domain.Rotate90:
		return domain.Point{X: (t.PageHeight - p.Y) * s, Y: p.X * s}
	case domain.Rotate180:
		return domain.Point{X: (t.PageWidth - p.X) * s, Y: (t.PageHeight - p.Y) * s}
	case domain.Rotate270:
		return domain.Point{X: p.Y * s, Y: (t.PageWidth - p.X) * s}
	}
	return domain.Point{X: p.X * s, Y: p.Y * s}
}

// ToPage maps screen pixels back to page coordinates.
func (t Transform) ToPage(p domain.Point) domain.Point {
	s := t.scale()
	x, y := p.X/s, p.Y/s
	switch t.Rotation {
	case domain.Rotate90:
		return domain.Point{X: y, Y: t.PageHeight - x}
	case domain.Rotate180:
		return domain.Point{X: t.PageWidth - x, Y: t.PageHeight - y}
	case domain.Rotate270:
		return domain.Point{X: t.PageWidth - y, Y: x}
	}
	return domain.Point{X: x, Y: y}
}

// RectToScreen maps a page box to its on-screen box.
func (t Transform) RectToScreen(r domain.Rect) domain.Rect {
	a := t.ToScreen(domain.Point{X: r.X, Y: r.Y})
	b := t.ToScreen(domain.Point{X: r.X + r.Width, Y: r.Y + r.Height})
	return domain.RectBetween(a, b)
}

// ToPageDistance converts a screen distance (e.g. a click padding) into
// page units.
func (t Transform) ToPageDistance(d float64) float64 {
	return d / t.scale()
}

func (t Transform) scale() float64 {
	if t.Scale <= 0 {
		return 1
	}
	return t.Scale
}
