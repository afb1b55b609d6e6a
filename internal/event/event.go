package event

import "pdf-annotator/internal/domain"

// Type identifies the kind of event.
type Type int

const (
	TypeUnknown Type = iota

	// Document lifecycle
	TypeDocumentLoaded
	TypeDocumentClosed

	// Annotation engine
	TypeAnnotationsChanged // committed list changed (commit, remove, undo, redo)
	TypeTextPrompt         // host must ask the user for text
	TypeTextEditOpen       // host must open an inline editor pre-filled with text

	// Viewport / renderer
	TypeViewportChanged
	TypeRenderCompleted
	TypeRenderFailed
)

func (t Type) String() string {
	switch t {
	case TypeDocumentLoaded:
		return "document_loaded"
	case TypeDocumentClosed:
		return "document_closed"
	case TypeAnnotationsChanged:
		return "annotations_changed"
	case TypeTextPrompt:
		return "text_prompt"
	case TypeTextEditOpen:
		return "text_edit_open"
	case TypeViewportChanged:
		return "viewport_changed"
	case TypeRenderCompleted:
		return "render_completed"
	case TypeRenderFailed:
		return "render_failed"
	}
	return "unknown"
}

// Event is the structure passed through the event bus.
type Event struct {
	Type Type
	Data interface{}
}

// DocumentLoadedData describes a freshly opened document.
type DocumentLoadedData struct {
	DisplayName string
	PageCount   int
}

// AnnotationsChangedData carries the history position after the change.
type AnnotationsChangedData struct {
	Count        int
	HistoryIndex int
	HistoryLen   int
}

// TextPromptData asks for literal text to place at Position.
type TextPromptData struct {
	Page     int
	Position domain.Point
}

// TextEditOpenData asks the host to open an editor over a text fragment.
type TextEditOpenData struct {
	Page         int
	OriginalText string
	Box          domain.Rect
}

// ViewportChangedData carries the new viewport state.
type ViewportChangedData struct {
	State domain.ViewportState
}

// RenderCompletedData reports a finished paint.
type RenderCompletedData struct {
	Page     int
	Viewport domain.PageViewport
}

// RenderFailedData reports a paint that failed after its retry.
type RenderFailedData struct {
	Page int
	Err  error
}
