package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdf-annotator/internal/domain"
	apperrors "pdf-annotator/pkg/errors"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusTeapot, "nope")

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %s", ct)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"error":"nope"}` {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session", domain.ErrSessionNotFound, http.StatusNotFound},
		{"wrapped file", fmt.Errorf("lookup: %w", domain.ErrFileNotFound), http.StatusNotFound},
		{"page", domain.ErrPageOutOfRange, http.StatusNotFound},
		{"tool", domain.ErrInvalidTool, http.StatusBadRequest},
		{"color", domain.ErrInvalidColor, http.StatusBadRequest},
		{"validation", &domain.ValidationError{Field: "id", Message: "required"}, http.StatusBadRequest},
		{"too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"no document", domain.ErrNoDocument, http.StatusConflict},
		{"finished", domain.ErrOperationFinished, http.StatusConflict},
		{"load", apperrors.NewLoadError("bad pdf", errors.New("eof")), http.StatusUnprocessableEntity},
		{"render", apperrors.NewRenderError(2, errors.New("boom")), http.StatusBadGateway},
		{"wrapped app error", fmt.Errorf("open: %w", apperrors.NewNotFoundError("blob missing", nil)), http.StatusNotFound},
		{"processing", apperrors.NewProcessingError("copy failed", nil), http.StatusUnprocessableEntity},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRespondError_HidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	respondError(rr, NewMockHandlerLogger(), "Failed to do thing", errors.New("secret path /var/db"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret") {
		t.Fatalf("internal error leaked: %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Failed to do thing") {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	respondError(rr, NewMockHandlerLogger(), "Failed", domain.ErrSessionNotFound)
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), "session not found") {
		t.Fatalf("unexpected response: %d %s", rr.Code, rr.Body.String())
	}
}
