package domain

import (
	"encoding/json"
	"math"
)

// Kind identifies the type of mark an annotation carries.
type Kind string

const (
	KindText          Kind = "text"
	KindHighlight     Kind = "highlight"
	KindRectangle     Kind = "rectangle"
	KindCircle        Kind = "circle"
	KindArrow         Kind = "arrow"
	KindFreehand      Kind = "freehand"
	KindUnderline     Kind = "underline"
	KindStrikethrough Kind = "strikethrough"
	KindTextEdit      Kind = "text-edit"
)

// Point is a position in page coordinates (100% zoom, rotation 0) unless
// stated otherwise.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box with its origin at the top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectBetween returns the axis-aligned box spanned by two corners.
func RectBetween(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// Contains reports whether p lies inside r grown by pad on every side.
func (r Rect) Contains(p Point, pad float64) bool {
	return p.X >= r.X-pad && p.X <= r.X+r.Width+pad &&
		p.Y >= r.Y-pad && p.Y <= r.Y+r.Height+pad
}

// Mark is the kind-specific payload of an annotation. The set of
// implementations is closed: BoxMark, ArrowMark, TextMark, TextEditMark and
// FreehandMark.
type Mark interface {
	Kind() Kind
	Bounds() Rect
	clone() Mark
}

// BoxMark covers highlight, rectangle, circle, underline and strikethrough.
type BoxMark struct {
	Shape Kind
	Box   Rect
}

func (m BoxMark) Kind() Kind   { return m.Shape }
func (m BoxMark) Bounds() Rect { return m.Box }
func (m BoxMark) clone() Mark  { return m }

// ArrowMark keeps both endpoints so the head direction survives.
type ArrowMark struct {
	From Point
	To   Point
}

func (m ArrowMark) Kind() Kind   { return KindArrow }
func (m ArrowMark) Bounds() Rect { return RectBetween(m.From, m.To) }
func (m ArrowMark) clone() Mark  { return m }

// TextMark is a free text label placed by the text tool.
type TextMark struct {
	Box      Rect
	Text     string
	FontSize float64
}

func (m TextMark) Kind() Kind   { return KindText }
func (m TextMark) Bounds() Rect { return m.Box }
func (m TextMark) clone() Mark  { return m }

// TextEditMark replaces a piece of document text. OriginalText keeps the
// replaced content so the edit can be reverted.
type TextEditMark struct {
	Box          Rect
	Text         string
	OriginalText string
	FontSize     float64
	FontFamily   string
}

func (m TextEditMark) Kind() Kind   { return KindTextEdit }
func (m TextEditMark) Bounds() Rect { return m.Box }
func (m TextEditMark) clone() Mark  { return m }

// FreehandMark is an ordered polyline.
type FreehandMark struct {
	Points      []Point
	StrokeWidth float64
}

func (m FreehandMark) Kind() Kind { return KindFreehand }

func (m FreehandMark) Bounds() Rect {
	if len(m.Points) == 0 {
		return Rect{}
	}
	minX, minY := m.Points[0].X, m.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range m.Points[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	half := m.StrokeWidth / 2
	return Rect{X: minX - half, Y: minY - half, Width: maxX - minX + m.StrokeWidth, Height: maxY - minY + m.StrokeWidth}
}

func (m FreehandMark) clone() Mark {
	pts := make([]Point, len(m.Points))
	copy(pts, m.Points)
	m.Points = pts
	return m
}

// Annotation is a single mark on one page.
type Annotation struct {
	ID    string
	Page  int
	Color string
	Mark  Mark
}

// Kind returns the kind of the carried mark.
func (a Annotation) Kind() Kind {
	if a.Mark == nil {
		return ""
	}
	return a.Mark.Kind()
}

// Bounds returns the page-space bounding box of the mark.
func (a Annotation) Bounds() Rect {
	if a.Mark == nil {
		return Rect{}
	}
	return a.Mark.Bounds()
}

// Clone returns a deep copy.
func (a Annotation) Clone() Annotation {
	if a.Mark != nil {
		a.Mark = a.Mark.clone()
	}
	return a
}

// CloneAnnotations deep-copies a list. A nil input yields an empty list.
func CloneAnnotations(in []Annotation) []Annotation {
	out := make([]Annotation, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

type annotationJSON struct {
	ID           string  `json:"id"`
	Kind         Kind    `json:"kind"`
	Page         int     `json:"page"`
	Color        string  `json:"color"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	From         *Point  `json:"from,omitempty"`
	To           *Point  `json:"to,omitempty"`
	Points       []Point `json:"points,omitempty"`
	StrokeWidth  float64 `json:"stroke_width,omitempty"`
	Text         *string `json:"text,omitempty"`
	OriginalText *string `json:"original_text,omitempty"`
	FontSize     float64 `json:"font_size,omitempty"`
	FontFamily   string  `json:"font_family,omitempty"`
}

// MarshalJSON flattens the mark into a single object keyed by kind.
func (a Annotation) MarshalJSON() ([]byte, error) {
	b := a.Bounds()
	out := annotationJSON{
		ID:     a.ID,
		Kind:   a.Kind(),
		Page:   a.Page,
		Color:  a.Color,
		X:      b.X,
		Y:      b.Y,
		Width:  b.Width,
		Height: b.Height,
	}
	switch m := a.Mark.(type) {
	case ArrowMark:
		out.From, out.To = &m.From, &m.To
	case FreehandMark:
		out.Points = m.Points
		out.StrokeWidth = m.StrokeWidth
	case TextMark:
		out.Text = &m.Text
		out.FontSize = m.FontSize
	case TextEditMark:
		out.Text = &m.Text
		out.OriginalText = &m.OriginalText
		out.FontSize = m.FontSize
		out.FontFamily = m.FontFamily
	}
	return json.Marshal(out)
}
