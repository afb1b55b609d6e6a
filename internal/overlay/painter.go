// Package overlay paints annotations onto a rendered page.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/viewport"
)

const (
	ellipseSegments = 64
	arrowHeadLength = 10 // page units
	arrowHeadAngle  = math.Pi / 6
	barThickness    = 2 // page units, underline and strikethrough
)

// Painter draws annotations in screen space.
type Painter struct {
	StrokeWidth    float64 // screen pixels for outlines
	HighlightAlpha float64
	Fallback       color.Color
	face           font.Face
}

// NewPainter returns a painter with the stock styling.
func NewPainter() *Painter {
	return &Painter{
		StrokeWidth:    2,
		HighlightAlpha: 0.3,
		Fallback:       color.RGBA{R: 0xff, A: 0xff},
		face:           basicfont.Face7x13,
	}
}

// Paint draws every annotation in order onto dst using t to place page
// coordinates on screen. Later annotations paint over earlier ones.
func (p *Painter) Paint(dst *image.RGBA, annotations []domain.Annotation, t viewport.Transform) {
	for _, a := range annotations {
		p.paintOne(dst, a, t)
	}
}

func (p *Painter) paintOne(dst *image.RGBA, a domain.Annotation, t viewport.Transform) {
	col := p.color(a.Color, 1)

	switch m := a.Mark.(type) {
	case domain.BoxMark:
		switch m.Shape {
		case domain.KindHighlight:
			p.fill(dst, rectPath(m.Box, t), p.color(a.Color, p.HighlightAlpha))
		case domain.KindRectangle:
			p.stroke(dst, rectPath(m.Box, t), true, p.StrokeWidth, col)
		case domain.KindCircle:
			p.stroke(dst, ellipsePath(m.Box, t), true, p.StrokeWidth, col)
		case domain.KindUnderline:
			bar := domain.Rect{X: m.Box.X, Y: m.Box.Y + m.Box.Height - barThickness, Width: m.Box.Width, Height: barThickness}
			p.fill(dst, rectPath(bar, t), col)
		case domain.KindStrikethrough:
			bar := domain.Rect{X: m.Box.X, Y: m.Box.Y + (m.Box.Height-barThickness)/2, Width: m.Box.Width, Height: barThickness}
			p.fill(dst, rectPath(bar, t), col)
		}

	case domain.ArrowMark:
		from, to := t.ToScreen(m.From), t.ToScreen(m.To)
		p.stroke(dst, []domain.Point{from, to}, false, p.StrokeWidth, col)
		angle := math.Atan2(m.To.Y-m.From.Y, m.To.X-m.From.X)
		for _, side := range []float64{-1, 1} {
			head := angle + math.Pi + side*arrowHeadAngle
			tip := domain.Point{X: m.To.X + arrowHeadLength*math.Cos(head), Y: m.To.Y + arrowHeadLength*math.Sin(head)}
			p.stroke(dst, []domain.Point{to, t.ToScreen(tip)}, false, p.StrokeWidth, col)
		}

	case domain.FreehandMark:
		pts := make([]domain.Point, len(m.Points))
		for i, pt := range m.Points {
			pts[i] = t.ToScreen(pt)
		}
		width := m.StrokeWidth * t.Scale
		if width <= 0 {
			width = p.StrokeWidth
		}
		if len(pts) == 1 {
			half := width / 2
			p.fill(dst, []domain.Point{
				{X: pts[0].X - half, Y: pts[0].Y - half},
				{X: pts[0].X + half, Y: pts[0].Y - half},
				{X: pts[0].X + half, Y: pts[0].Y + half},
				{X: pts[0].X - half, Y: pts[0].Y + half},
			}, col)
			return
		}
		p.stroke(dst, pts, false, width, col)

	case domain.TextMark:
		p.text(dst, t.RectToScreen(m.Box), m.Text, col)

	case domain.TextEditMark:
		box := t.RectToScreen(m.Box)
		p.fill(dst, rectPath(m.Box, t), color.White)
		p.text(dst, box, m.Text, col)
	}
}

func (p *Painter) color(hex string, alpha float64) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		r, g, b, _ := p.Fallback.RGBA()
		c = colorful.Color{R: float64(r) / 0xffff, G: float64(g) / 0xffff, B: float64(b) / 0xffff}
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(alpha * 0xff))}
}

func (p *Painter) fill(dst *image.RGBA, poly []domain.Point, col color.Color) {
	if len(poly) < 3 {
		return
	}
	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	addPolygon(r, poly, b.Min)
	r.Draw(dst, b, image.NewUniform(col), image.Point{})
}

// stroke outlines a polyline by rasterising one quad per segment.
func (p *Painter) stroke(dst *image.RGBA, pts []domain.Point, closed bool, width float64, col color.Color) {
	if len(pts) < 2 {
		return
	}
	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	half := width / 2

	n := len(pts) - 1
	if closed {
		n = len(pts)
	}
	for i := 0; i < n; i++ {
		a, c := pts[i], pts[(i+1)%len(pts)]
		dx, dy := c.X-a.X, c.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// Extend each segment by half the width so joints overlap.
		ux, uy := dx/length*half, dy/length*half
		nx, ny := -uy, ux
		addPolygon(r, []domain.Point{
			{X: a.X - ux + nx, Y: a.Y - uy + ny},
			{X: c.X + ux + nx, Y: c.Y + uy + ny},
			{X: c.X + ux - nx, Y: c.Y + uy - ny},
			{X: a.X - ux - nx, Y: a.Y - uy - ny},
		}, b.Min)
	}
	r.Draw(dst, b, image.NewUniform(col), image.Point{})
}

func (p *Painter) text(dst *image.RGBA, box domain.Rect, s string, col color.Color) {
	if s == "" {
		return
	}
	ascent := p.face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: p.face,
		Dot:  fixed.Point26_6{X: fixed.I(int(box.X)), Y: fixed.I(int(box.Y)) + ascent},
	}
	d.DrawString(s)
}

func addPolygon(r *vector.Rasterizer, poly []domain.Point, origin image.Point) {
	ox, oy := float32(origin.X), float32(origin.Y)
	r.MoveTo(float32(poly[0].X)-ox, float32(poly[0].Y)-oy)
	for _, pt := range poly[1:] {
		r.LineTo(float32(pt.X)-ox, float32(pt.Y)-oy)
	}
	r.ClosePath()
}

func rectPath(box domain.Rect, t viewport.Transform) []domain.Point {
	return []domain.Point{
		t.ToScreen(domain.Point{X: box.X, Y: box.Y}),
		t.ToScreen(domain.Point{X: box.X + box.Width, Y: box.Y}),
		t.ToScreen(domain.Point{X: box.X + box.Width, Y: box.Y + box.Height}),
		t.ToScreen(domain.Point{X: box.X, Y: box.Y + box.Height}),
	}
}

func ellipsePath(box domain.Rect, t viewport.Transform) []domain.Point {
	cx, cy := box.X+box.Width/2, box.Y+box.Height/2
	rx, ry := box.Width/2, box.Height/2
	pts := make([]domain.Point, ellipseSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / ellipseSegments
		pts[i] = t.ToScreen(domain.Point{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)})
	}
	return pts
}

// Compose returns a copy of base with the annotations painted on top.
func (p *Painter) Compose(base *image.RGBA, annotations []domain.Annotation, t viewport.Transform) *image.RGBA {
	out := image.NewRGBA(base.Bounds())
	draw.Draw(out, out.Bounds(), base, base.Bounds().Min, draw.Src)
	p.Paint(out, annotations, t)
	return out
}
