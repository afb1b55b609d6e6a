// Package handler provides HTTP handlers for the API.
package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"pdf-annotator/internal/domain"

	"github.com/gorilla/mux"
)

// FileHandler handles uploads and downloads.
type FileHandler struct {
	fileService domain.FileService
	maxFileSize int64
	logger      domain.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(fileService domain.FileService, maxFileSize int64, logger domain.Logger) *FileHandler {
	return &FileHandler{
		fileService: fileService,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// UploadFile handles POST /files (multipart field "file")
func (h *FileHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope; the service enforces the exact limit.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, domain.ErrFileTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	originalName := strings.TrimSpace(filepath.Base(header.Filename))
	if originalName == "" || originalName == "." || originalName == string(filepath.Separator) {
		originalName = "document.pdf"
	}

	if ext := strings.ToLower(filepath.Ext(originalName)); ext != ".pdf" {
		writeError(w, http.StatusBadRequest, "Unsupported file type. Allowed: PDF (.pdf).")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err != nil || mt == "application/octet-stream" {
		mimeType = "application/pdf"
	}

	record, err := h.fileService.Upload(r.Context(), originalName, mimeType, file)
	if err != nil {
		respondError(w, h.logger, "Failed to upload file", err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// GetFile handles GET /files/{id}
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.fileService.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, "Failed to get file", err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// DownloadFile handles GET /files/{id}/download
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, body, err := h.fileService.Open(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, "Failed to open file", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.DisplayName}))
	if record.ByteSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.ByteSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("Download interrupted", "file_id", id, "error", err.Error())
	}
}
