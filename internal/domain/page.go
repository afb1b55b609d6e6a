package domain

// Rotation is a clockwise page rotation in degrees.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// NormalizeRotation snaps any angle to the nearest quarter turn in [0, 360).
func NormalizeRotation(deg int) Rotation {
	r := ((deg%360)+360)%360 + 45
	return Rotation((r / 90 * 90) % 360)
}

// Next advances the rotation by 90 degrees.
func (r Rotation) Next() Rotation {
	return NormalizeRotation(int(r) + 90)
}

// Swapped reports whether width and height trade places on screen.
func (r Rotation) Swapped() bool {
	return r == Rotate90 || r == Rotate270
}

// TextFragment is a positioned piece of document text in page coordinates.
type TextFragment struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family,omitempty"`
}

// Bounds returns the fragment box.
func (f TextFragment) Bounds() Rect {
	return Rect{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}
}

// PageDescriptor describes one page at 100% zoom and rotation 0.
type PageDescriptor struct {
	Number    int            `json:"number"`
	Width     float64        `json:"width"`
	Height    float64        `json:"height"`
	Rotation  Rotation       `json:"rotation"`
	Fragments []TextFragment `json:"fragments,omitempty"`
}

// ViewportState holds the page-rendering parameters of a session.
type ViewportState struct {
	Page     int      `json:"page"`
	Zoom     int      `json:"zoom"`
	Rotation Rotation `json:"rotation"`
}

// Scale converts the zoom percentage into a scale factor.
func (v ViewportState) Scale() float64 {
	return float64(v.Zoom) / 100
}

// PageViewport is the on-screen size of a page for a given scale and rotation.
type PageViewport struct {
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Scale    float64  `json:"scale"`
	Rotation Rotation `json:"rotation"`
}
