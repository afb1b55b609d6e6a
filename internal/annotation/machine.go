package annotation

import (
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/event"
	"pdf-annotator/internal/viewport"
)

const (
	// charWidthFactor approximates glyph width as a fraction of the font size.
	charWidthFactor = 0.6
	// textLineExtra is added to the font size to get the text box height.
	textLineExtra = 4
	// sampleSize is the side of a freehand sample in samples mode.
	sampleSize = 3
)

// Options tunes the state machine.
type Options struct {
	Color        string
	FontSize     float64
	FontSizeMin  float64
	FontSizeMax  float64
	FreehandMode string
	HitPadding   float64 // screen pixels
	MinShapeSize float64 // page units; shapes must exceed it on one axis
	StrokeWidth  float64
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		Color:        "#ff0000",
		FontSize:     16,
		FontSizeMin:  8,
		FontSizeMax:  72,
		FreehandMode: domain.FreehandPolyline,
		HitPadding:   5,
		MinShapeSize: 5,
		StrokeWidth:  sampleSize,
	}
}

// OptionsFromSettings maps editor settings onto machine options.
func OptionsFromSettings(s domain.EditorSettings) Options {
	opts := DefaultOptions()
	if s.DefaultColor != "" {
		opts.Color = s.DefaultColor
	}
	if s.FontSizeDefault > 0 {
		opts.FontSize = s.FontSizeDefault
	}
	if s.FontSizeMin > 0 {
		opts.FontSizeMin = s.FontSizeMin
	}
	if s.FontSizeMax > 0 {
		opts.FontSizeMax = s.FontSizeMax
	}
	if s.FreehandMode != "" {
		opts.FreehandMode = s.FreehandMode
	}
	if s.HitPadding > 0 {
		opts.HitPadding = s.HitPadding
	}
	if s.MinShapeSize > 0 {
		opts.MinShapeSize = s.MinShapeSize
	}
	return opts
}

// Frame is the page a gesture happens on and how it is currently shown.
type Frame struct {
	Page      domain.PageDescriptor
	Transform viewport.Transform
}

// Outcome tells the host what a pointer event produced.
type Outcome struct {
	// Committed is set when the call committed an annotation.
	Committed *domain.Annotation
	// TextPrompt asks the host for literal text; answer with TextEntered or
	// TextCancelled.
	TextPrompt bool
	// TextEdit is the staged edit awaiting CommitTextEdit or CancelTextEdit.
	TextEdit *domain.Annotation
}

// State is a read-only summary of the machine.
type State struct {
	Tool          domain.Tool `json:"tool"`
	Color         string      `json:"color"`
	FontSize      float64     `json:"font_size"`
	GestureActive bool        `json:"gesture_active"`
	AwaitingText  bool        `json:"awaiting_text"`
	EditingText   bool        `json:"editing_text"`
	Count         int         `json:"annotation_count"`
	HistoryIndex  int         `json:"history_index"`
	HistoryLen    int         `json:"history_length"`
	CanUndo       bool        `json:"can_undo"`
	CanRedo       bool        `json:"can_redo"`
}

type textEntry struct {
	page int
	pos  domain.Point
}

// Machine turns tool selection and pointer gestures into committed
// annotations. It owns the committed list; every mutation of that list
// pushes exactly one history entry.
type Machine struct {
	mu sync.Mutex

	opts     Options
	tool     domain.Tool
	color    string
	fontSize float64

	committed     []domain.Annotation
	pending       *domain.Annotation
	gestureActive bool
	gestureStart  domain.Point
	frame         Frame

	textEntry *textEntry
	textEdit  *domain.Annotation

	history *History
	events  *event.Manager
	logger  domain.Logger
	newID   func() string
}

// NewMachine creates a machine in select mode with an empty history.
func NewMachine(opts Options, history *History, events *event.Manager, logger domain.Logger) *Machine {
	if history == nil {
		history = NewHistory(0, logger)
	}
	if opts.FontSizeMax < opts.FontSizeMin {
		opts.FontSizeMin, opts.FontSizeMax = DefaultOptions().FontSizeMin, DefaultOptions().FontSizeMax
	}
	m := &Machine{
		opts:     opts,
		tool:     domain.ToolSelect,
		color:    opts.Color,
		fontSize: clamp(opts.FontSize, opts.FontSizeMin, opts.FontSizeMax),
		history:  history,
		events:   events,
		logger:   logger,
		newID:    uuid.NewString,
	}
	if c, err := colorful.Hex(opts.Color); err == nil {
		m.color = c.Hex()
	}
	return m
}

// History exposes the undo/redo stack.
func (m *Machine) History() *History {
	return m.history
}

// SetTool switches the active tool and drops any unfinished gesture or
// staged text.
func (m *Machine) SetTool(tool domain.Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tool = tool
	m.clearTransient()
}

// Tool returns the active tool.
func (m *Machine) Tool() domain.Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tool
}

// SetColor sets the active color from a hex string such as "#00ff00".
func (m *Machine) SetColor(hex string) error {
	c, err := colorful.Hex(strings.TrimSpace(hex))
	if err != nil {
		return domain.ErrInvalidColor
	}
	m.mu.Lock()
	m.color = c.Hex()
	m.mu.Unlock()
	return nil
}

// SetFontSize clamps and applies the text size; it returns the applied value.
func (m *Machine) SetFontSize(size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fontSize = clamp(size, m.opts.FontSizeMin, m.opts.FontSizeMax)
	return m.fontSize
}

// BeginGesture handles pointer-down at a screen position on frame's page.
func (m *Machine) BeginGesture(screenPt domain.Point, frame Frame) Outcome {
	var out Outcome
	var evs []event.Event

	m.mu.Lock()
	pt := frame.Transform.ToPage(screenPt)
	page := frame.Page.Number

	switch {
	case m.tool == domain.ToolSelect:
		// Click-to-delete is driven by AnnotationAt and RemoveAnnotation.

	case m.tool == domain.ToolText:
		m.textEntry = &textEntry{page: page, pos: pt}
		out.TextPrompt = true
		evs = append(evs, event.Event{Type: event.TypeTextPrompt, Data: event.TextPromptData{Page: page, Position: pt}})

	case m.tool == domain.ToolEditText:
		if staged, ok := m.stageTextEdit(pt, frame); ok {
			cp := staged.Clone()
			out.TextEdit = &cp
			mark := staged.Mark.(domain.TextEditMark)
			evs = append(evs, event.Event{Type: event.TypeTextEditOpen, Data: event.TextEditOpenData{
				Page: page, OriginalText: mark.OriginalText, Box: mark.Box,
			}})
		}

	case m.tool.IsShape():
		m.frame = frame
		m.gestureStart = pt
		m.gestureActive = true
		m.pending = m.newPendingShape(pt, page)

	case m.tool == domain.ToolFreehand:
		m.frame = frame
		m.gestureStart = pt
		m.gestureActive = true
		if m.opts.FreehandMode == domain.FreehandSamples {
			a, ev := m.commit(m.newSample(pt, page))
			out.Committed = &a
			evs = append(evs, ev)
		} else {
			m.pending = &domain.Annotation{
				ID:    m.newID(),
				Page:  page,
				Color: m.color,
				Mark:  domain.FreehandMark{Points: []domain.Point{pt}, StrokeWidth: m.opts.StrokeWidth},
			}
		}
	}
	m.mu.Unlock()

	m.dispatch(evs)
	return out
}

// ContinueGesture handles pointer-move; it is ignored unless a gesture is
// active.
func (m *Machine) ContinueGesture(screenPt domain.Point) Outcome {
	var out Outcome
	var evs []event.Event

	m.mu.Lock()
	if m.gestureActive {
		pt := m.frame.Transform.ToPage(screenPt)
		switch {
		case m.tool.IsShape() && m.pending != nil:
			m.pending.Mark = m.shapeMark(m.gestureStart, pt)

		case m.tool == domain.ToolFreehand:
			if m.opts.FreehandMode == domain.FreehandSamples {
				a, ev := m.commit(m.newSample(pt, m.frame.Page.Number))
				out.Committed = &a
				evs = append(evs, ev)
			} else if m.pending != nil {
				mark := m.pending.Mark.(domain.FreehandMark)
				if last := mark.Points[len(mark.Points)-1]; last != pt {
					mark.Points = append(mark.Points, pt)
					m.pending.Mark = mark
				}
			}
		}
	}
	m.mu.Unlock()

	m.dispatch(evs)
	return out
}

// EndGesture handles pointer-up. A shape is kept only if it exceeds the
// minimum size on at least one axis. Pending state is always cleared.
func (m *Machine) EndGesture() Outcome {
	var out Outcome
	var evs []event.Event

	m.mu.Lock()
	if m.gestureActive && m.pending != nil {
		keep := true
		if m.tool.IsShape() {
			b := m.pending.Bounds()
			keep = b.Width > m.opts.MinShapeSize || b.Height > m.opts.MinShapeSize
		}
		if keep {
			a, ev := m.commit(*m.pending)
			out.Committed = &a
			evs = append(evs, ev)
		} else if m.logger != nil {
			m.logger.Debug("Annotation: discarded shape below threshold", "kind", m.pending.Kind())
		}
	}
	m.pending = nil
	m.gestureActive = false
	m.mu.Unlock()

	m.dispatch(evs)
	return out
}

// TextEntered answers a text prompt. Blank input aborts without an error.
func (m *Machine) TextEntered(value string) (domain.Annotation, bool) {
	m.mu.Lock()
	entry := m.textEntry
	m.textEntry = nil
	text := cleanText(value)
	if entry == nil || text == "" {
		m.mu.Unlock()
		return domain.Annotation{}, false
	}

	a := domain.Annotation{
		ID:    m.newID(),
		Page:  entry.page,
		Color: m.color,
		Mark: domain.TextMark{
			Box:      TextBox(entry.pos, text, m.fontSize),
			Text:     text,
			FontSize: m.fontSize,
		},
	}
	committed, ev := m.commit(a)
	m.mu.Unlock()

	m.dispatch([]event.Event{ev})
	return committed, true
}

// TextCancelled abandons a text prompt.
func (m *Machine) TextCancelled() {
	m.mu.Lock()
	m.textEntry = nil
	m.mu.Unlock()
}

// CommitTextEdit commits the staged text edit with newText, keeping the
// original text. Blank or unchanged text cancels the edit.
func (m *Machine) CommitTextEdit(newText string) (domain.Annotation, bool) {
	m.mu.Lock()
	staged := m.textEdit
	m.textEdit = nil
	if staged == nil {
		m.mu.Unlock()
		return domain.Annotation{}, false
	}
	mark := staged.Mark.(domain.TextEditMark)
	text := cleanText(newText)
	if text == "" || text == mark.OriginalText {
		m.mu.Unlock()
		return domain.Annotation{}, false
	}
	mark.Text = text
	staged.Mark = mark
	committed, ev := m.commit(*staged)
	m.mu.Unlock()

	m.dispatch([]event.Event{ev})
	return committed, true
}

// CancelTextEdit discards the staged text edit.
func (m *Machine) CancelTextEdit() {
	m.mu.Lock()
	m.textEdit = nil
	m.mu.Unlock()
}

// RemoveAnnotation deletes an annotation by id. Unknown ids are a no-op and
// do not create a history entry.
func (m *Machine) RemoveAnnotation(id string) bool {
	m.mu.Lock()
	idx := -1
	for i, a := range m.committed {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	next := make([]domain.Annotation, 0, len(m.committed)-1)
	next = append(next, m.committed[:idx]...)
	next = append(next, m.committed[idx+1:]...)
	m.committed = next
	m.history.Push(m.committed)
	ev := m.changedEvent()
	m.mu.Unlock()

	m.dispatch([]event.Event{ev})
	return true
}

// Undo restores the previous snapshot. It reports false at the first entry.
func (m *Machine) Undo() bool {
	return m.restore(m.history.Undo)
}

// Redo restores the next snapshot. It reports false at the tail.
func (m *Machine) Redo() bool {
	return m.restore(m.history.Redo)
}

func (m *Machine) restore(step func() ([]domain.Annotation, bool)) bool {
	m.mu.Lock()
	snapshot, ok := step()
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.committed = snapshot
	ev := m.changedEvent()
	m.mu.Unlock()

	m.dispatch([]event.Event{ev})
	return true
}

// AnnotationsForPage returns copies of the committed annotations on page n.
func (m *Machine) AnnotationsForPage(n int) []domain.Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Annotation, 0)
	for _, a := range m.committed {
		if a.Page == n {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Annotations returns copies of every committed annotation.
func (m *Machine) Annotations() []domain.Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CloneAnnotations(m.committed)
}

// AnnotationAt returns the topmost committed annotation under a screen point.
func (m *Machine) AnnotationAt(screenPt domain.Point, frame Frame) (domain.Annotation, bool) {
	pt := frame.Transform.ToPage(screenPt)
	pad := frame.Transform.ToPageDistance(m.opts.HitPadding)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.committed) - 1; i >= 0; i-- {
		a := m.committed[i]
		if a.Page == frame.Page.Number && a.Bounds().Contains(pt, pad) {
			return a.Clone(), true
		}
	}
	return domain.Annotation{}, false
}

// Pending returns the shape or stroke currently being drawn.
func (m *Machine) Pending() (domain.Annotation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return domain.Annotation{}, false
	}
	return m.pending.Clone(), true
}

// StagedTextEdit returns the text edit awaiting commit.
func (m *Machine) StagedTextEdit() (domain.Annotation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.textEdit == nil {
		return domain.Annotation{}, false
	}
	return m.textEdit.Clone(), true
}

// State summarises the machine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Tool:          m.tool,
		Color:         m.color,
		FontSize:      m.fontSize,
		GestureActive: m.gestureActive,
		AwaitingText:  m.textEntry != nil,
		EditingText:   m.textEdit != nil,
		Count:         len(m.committed),
		HistoryIndex:  m.history.Index(),
		HistoryLen:    m.history.Len(),
		CanUndo:       m.history.CanUndo(),
		CanRedo:       m.history.CanRedo(),
	}
}

// Reset discards every annotation and the history. Tool, color and font
// size are kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.committed = nil
	m.clearTransient()
	m.history.Clear()
	ev := m.changedEvent()
	m.mu.Unlock()

	m.dispatch([]event.Event{ev})
}

// TextBox sizes a text annotation with the fixed character-width heuristic.
func TextBox(pos domain.Point, text string, fontSize float64) domain.Rect {
	chars := float64(uniseg.GraphemeClusterCount(text))
	return domain.Rect{
		X:      pos.X,
		Y:      pos.Y,
		Width:  chars * fontSize * charWidthFactor,
		Height: fontSize + textLineExtra,
	}
}

// commit appends a to the committed list and records the history entry.
// Callers hold m.mu and dispatch the returned event after unlocking.
func (m *Machine) commit(a domain.Annotation) (domain.Annotation, event.Event) {
	m.committed = append(m.committed, a.Clone())
	m.history.Push(m.committed)
	if m.logger != nil {
		m.logger.Debug("Annotation: committed", "id", a.ID, "kind", a.Kind(), "page", a.Page)
	}
	return a.Clone(), m.changedEvent()
}

func (m *Machine) changedEvent() event.Event {
	return event.Event{Type: event.TypeAnnotationsChanged, Data: event.AnnotationsChangedData{
		Count:        len(m.committed),
		HistoryIndex: m.history.Index(),
		HistoryLen:   m.history.Len(),
	}}
}

func (m *Machine) dispatch(evs []event.Event) {
	for _, e := range evs {
		m.events.Dispatch(e.Type, e.Data)
	}
}

func (m *Machine) clearTransient() {
	m.pending = nil
	m.gestureActive = false
	m.textEntry = nil
	m.textEdit = nil
}

func (m *Machine) stageTextEdit(pt domain.Point, frame Frame) (*domain.Annotation, bool) {
	pad := frame.Transform.ToPageDistance(m.opts.HitPadding)
	for _, f := range frame.Page.Fragments {
		if strings.TrimSpace(f.Text) == "" || !f.Bounds().Contains(pt, pad) {
			continue
		}
		m.textEdit = &domain.Annotation{
			ID:    m.newID(),
			Page:  frame.Page.Number,
			Color: m.color,
			Mark: domain.TextEditMark{
				Box:          f.Bounds(),
				Text:         f.Text,
				OriginalText: f.Text,
				FontSize:     f.FontSize,
				FontFamily:   f.FontFamily,
			},
		}
		return m.textEdit, true
	}
	return nil, false
}

func (m *Machine) newPendingShape(pt domain.Point, page int) *domain.Annotation {
	return &domain.Annotation{
		ID:    m.newID(),
		Page:  page,
		Color: m.color,
		Mark:  m.shapeMark(pt, pt),
	}
}

func (m *Machine) shapeMark(start, current domain.Point) domain.Mark {
	if m.tool == domain.ToolArrow {
		return domain.ArrowMark{From: start, To: current}
	}
	return domain.BoxMark{Shape: m.tool.Kind(), Box: domain.RectBetween(start, current)}
}

// newSample returns a sampleSize square whose top-left corner is pt.
func (m *Machine) newSample(pt domain.Point, page int) domain.Annotation {
	center := domain.Point{X: pt.X + sampleSize/2.0, Y: pt.Y + sampleSize/2.0}
	return domain.Annotation{
		ID:    m.newID(),
		Page:  page,
		Color: m.color,
		Mark:  domain.FreehandMark{Points: []domain.Point{center}, StrokeWidth: sampleSize},
	}
}

// cleanText trims, NFC-normalises and strips NUL bytes from user text.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return norm.NFC.String(strings.TrimSpace(s))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
