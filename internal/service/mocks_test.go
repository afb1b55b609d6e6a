package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"pdf-annotator/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

// MockStore is an in-memory file and operation repository.
type MockStore struct {
	mu        sync.Mutex
	files     map[string]domain.FileRecord
	ops       map[string]domain.Operation
	updateErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string]domain.FileRecord),
		ops:   make(map[string]domain.Operation),
	}
}

func (m *MockStore) CreateFile(_ context.Context, f *domain.FileRecord) error {
	if err := f.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = *f
	return nil
}

func (m *MockStore) GetFile(_ context.Context, id string) (*domain.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	return &f, nil
}

func (m *MockStore) CreateOperation(_ context.Context, op *domain.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.ID] = *op
	return nil
}

func (m *MockStore) GetOperation(_ context.Context, id string) (*domain.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, domain.ErrOperationNotFound
	}
	return &op, nil
}

func (m *MockStore) UpdateOperation(_ context.Context, op *domain.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.ops[op.ID]; !ok {
		return domain.ErrOperationNotFound
	}
	m.ops[op.ID] = *op
	return nil
}

func (m *MockStore) ListOperationsByFile(_ context.Context, fileID string) ([]*domain.Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Operation, 0)
	for _, op := range m.ops {
		if op.FileID == fileID {
			op := op
			out = append(out, &op)
		}
	}
	return out, nil
}

// MockBlobStore keeps objects in memory.
type MockBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{objects: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(_ context.Context, path string, r io.Reader) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return int64(len(data)), nil
}

func (m *MockBlobStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockBlobStore) LocalPath(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return "", ErrBlobNotFound
	}
	return "/blobs/" + path, nil
}

func (m *MockBlobStore) get(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[path]
}

var errBoom = errors.New("boom")
