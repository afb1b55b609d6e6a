package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"pdf-annotator/internal/domain"

	"github.com/google/uuid"
)

// FileService stores uploads and resolves them for the renderer.
type FileService struct {
	repo        domain.FileRepository
	blobs       domain.BlobStore
	logger      domain.Logger
	maxFileSize int64
	newID       func() string
}

var _ domain.FileService = (*FileService)(nil)

// NewFileService creates a new file service
func NewFileService(
	repo domain.FileRepository,
	blobs domain.BlobStore,
	maxFileSize int64,
	logger domain.Logger,
) *FileService {
	return &FileService{
		repo:        repo,
		blobs:       blobs,
		logger:      logger,
		maxFileSize: maxFileSize,
		newID:       func() string { return uuid.New().String() },
	}
}

// Upload stores the bytes of r and records them as a new file.
// Reads beyond the size limit fail with domain.ErrFileTooLarge.
func (s *FileService) Upload(ctx context.Context, displayName, mimeType string, r io.Reader) (*domain.FileRecord, error) {
	displayName = strings.TrimSpace(filepath.Base(displayName))
	if displayName == "" || displayName == "." || displayName == string(filepath.Separator) {
		return nil, &domain.ValidationError{Field: "display_name", Message: "display name is required"}
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	limited := io.LimitReader(r, s.maxFileSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, domain.ErrFileTooLarge
	}

	id := s.newID()
	ext := strings.ToLower(filepath.Ext(displayName))
	if ext == "" {
		ext = ".pdf"
	}
	path := id + ext

	size, err := s.blobs.Put(ctx, path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	record := &domain.FileRecord{
		ID:          id,
		DisplayName: displayName,
		MimeType:    mimeType,
		ByteSize:    size,
		StoragePath: path,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateFile(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("File uploaded", "file_id", id, "name", displayName, "size", size)
	return record, nil
}

func (s *FileService) Get(ctx context.Context, id string) (*domain.FileRecord, error) {
	return s.repo.GetFile(ctx, id)
}

// Open returns the record with a reader over its bytes. The caller closes the reader.
func (s *FileService) Open(ctx context.Context, id string) (*domain.FileRecord, io.ReadCloser, error) {
	record, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, record.StoragePath)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return record, rc, nil
}

// SourceRef resolves a stored file into something the renderer can open.
func (s *FileService) SourceRef(ctx context.Context, id string) (domain.SourceRef, error) {
	record, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return domain.SourceRef{}, err
	}
	path, err := s.blobs.LocalPath(ctx, record.StoragePath)
	if errors.Is(err, ErrBlobNotFound) {
		return domain.SourceRef{}, domain.ErrFileNotFound
	}
	if err != nil {
		return domain.SourceRef{}, err
	}
	ref := record.SourceRef()
	ref.Path = path
	return ref, nil
}
