package handler

import (
	"bytes"
	"context"
	"errors"
	"image/draw"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/service"
	"pdf-annotator/internal/session"
)

// mockFileService keeps uploads in memory.
type mockFileService struct {
	mu        sync.Mutex
	files     map[string]*domain.FileRecord
	contents  map[string][]byte
	uploadErr error
}

func newMockFileService() *mockFileService {
	return &mockFileService{
		files:    make(map[string]*domain.FileRecord),
		contents: make(map[string][]byte),
	}
}

func (m *mockFileService) add(id, name string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = &domain.FileRecord{
		ID:          id,
		DisplayName: name,
		MimeType:    "application/pdf",
		ByteSize:    int64(len(body)),
		StoragePath: "/blobs/" + name,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	m.contents[id] = body
}

func (m *mockFileService) Upload(_ context.Context, displayName, mimeType string, r io.Reader) (*domain.FileRecord, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	id := "file-" + strings.TrimSuffix(displayName, ".pdf")
	m.add(id, displayName, body)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id].MimeType = mimeType
	return m.files[id], nil
}

func (m *mockFileService) Get(_ context.Context, id string) (*domain.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	return f, nil
}

func (m *mockFileService) Open(ctx context.Context, id string) (*domain.FileRecord, io.ReadCloser, error) {
	f, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return f, io.NopCloser(bytes.NewReader(m.contents[id])), nil
}

func (m *mockFileService) SourceRef(ctx context.Context, id string) (domain.SourceRef, error) {
	f, err := m.Get(ctx, id)
	if err != nil {
		return domain.SourceRef{}, err
	}
	return f.SourceRef(), nil
}

// mockProcessingService replays a fixed list of updates to subscribers.
type mockProcessingService struct {
	mu        sync.Mutex
	ops       map[string]*domain.Operation
	updates   []domain.Operation
	submitted []domain.OperationName
	cancelled []string
}

func newMockProcessingService() *mockProcessingService {
	return &mockProcessingService{ops: make(map[string]*domain.Operation)}
}

func (m *mockProcessingService) Submit(_ context.Context, fileID string, name domain.OperationName) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fileID == "missing" {
		return "", domain.ErrFileNotFound
	}
	id := "op-" + string(name)
	m.ops[id] = &domain.Operation{ID: id, FileID: fileID, Name: name, Status: domain.StatusPending}
	m.submitted = append(m.submitted, name)
	return id, nil
}

func (m *mockProcessingService) Get(_ context.Context, id string) (*domain.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, domain.ErrOperationNotFound
	}
	return op, nil
}

func (m *mockProcessingService) Subscribe(ctx context.Context, id string) (<-chan domain.Operation, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	ch := make(chan domain.Operation, len(m.updates))
	for _, op := range m.updates {
		ch <- op
	}
	close(ch)
	return ch, nil
}

func (m *mockProcessingService) Cancel(ctx context.Context, id string) error {
	op, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if op.Status.IsTerminal() {
		return domain.ErrOperationFinished
	}
	m.mu.Lock()
	m.cancelled = append(m.cancelled, id)
	m.mu.Unlock()
	return nil
}

func (m *mockProcessingService) Shutdown() {}

// stubRenderer opens any .pdf path as a two page, 200x100 document.
type stubRenderer struct{}

func (stubRenderer) LoadDocument(_ context.Context, src domain.SourceRef) (domain.DocumentHandle, error) {
	if !strings.HasSuffix(src.Path, ".pdf") {
		return nil, errors.New("not a pdf")
	}
	return stubDoc{}, nil
}

type stubDoc struct{}

func (stubDoc) PageCount() int { return 2 }

func (stubDoc) Page(_ context.Context, n int) (domain.PageHandle, error) {
	if n < 1 || n > 2 {
		return nil, domain.ErrPageOutOfRange
	}
	return stubPage(n), nil
}

func (stubDoc) Close() error { return nil }

type stubPage int

func (p stubPage) Number() int { return int(p) }

func (p stubPage) Viewport(scale float64, rotation domain.Rotation) domain.PageViewport {
	return domain.PageViewport{Width: 200 * scale, Height: 100 * scale, Scale: scale, Rotation: rotation}
}

func (p stubPage) Render(context.Context, draw.Image, domain.PageViewport) error { return nil }

func (p stubPage) TextFragments(context.Context) ([]domain.TextFragment, error) { return nil, nil }

type testServer struct {
	handler    http.Handler
	files      *mockFileService
	processing *mockProcessingService
	sessions   *service.SessionService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := NewMockHandlerLogger()

	files := newMockFileService()
	files.add("doc", "doc.pdf", []byte("%PDF-1.7 test"))
	files.add("notes", "notes.txt", []byte("plain"))

	processing := newMockProcessingService()

	opts := session.DefaultOptions()
	opts.Viewport.Debounce = time.Millisecond
	sessions := service.NewSessionService(files, stubRenderer{}, opts, logger)
	t.Cleanup(sessions.Shutdown)

	h := NewRouter(
		NewFileHandler(files, 1<<20, logger),
		NewOperationHandler(processing, logger),
		NewSessionHandler(sessions, logger),
		[]string{"*"},
	)
	return &testServer{handler: h, files: files, processing: processing, sessions: sessions}
}
