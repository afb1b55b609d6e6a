package domain

import (
	"context"
	"image/draw"
)

// SourceRef is what the file picker hands over once a file is validated.
// The core does not re-validate size or type.
type SourceRef struct {
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
	ByteSize    int64  `json:"byte_size"`
	MimeType    string `json:"mime_type"`
}

// DocumentRenderer opens documents through an external rendering library.
type DocumentRenderer interface {
	LoadDocument(ctx context.Context, src SourceRef) (DocumentHandle, error)
}

// DocumentHandle is an open document.
type DocumentHandle interface {
	PageCount() int
	Page(ctx context.Context, n int) (PageHandle, error)
	Close() error
}

// PageHandle is one page of an open document. Page numbers are 1-based.
type PageHandle interface {
	Number() int
	Viewport(scale float64, rotation Rotation) PageViewport
	Render(ctx context.Context, target draw.Image, viewport PageViewport) error
	TextFragments(ctx context.Context) ([]TextFragment, error)
}
