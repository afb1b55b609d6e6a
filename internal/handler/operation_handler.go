package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"pdf-annotator/internal/domain"

	"github.com/gorilla/mux"
)

// OperationHandler handles the simulated processing operations.
type OperationHandler struct {
	processingService domain.ProcessingService
	logger            domain.Logger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(processingService domain.ProcessingService, logger domain.Logger) *OperationHandler {
	return &OperationHandler{
		processingService: processingService,
		logger:            logger,
	}
}

type submitOperationRequest struct {
	FileID    string `json:"file_id"`
	Operation string `json:"operation"`
}

// SubmitOperation handles POST /operations
func (h *OperationHandler) SubmitOperation(w http.ResponseWriter, r *http.Request) {
	var req submitOperationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FileID == "" {
		writeError(w, http.StatusBadRequest, "file_id is required")
		return
	}
	name, err := domain.ParseOperationName(req.Operation)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.processingService.Submit(r.Context(), req.FileID, name)
	if err != nil {
		respondError(w, h.logger, "Failed to submit operation", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// GetOperation handles GET /operations/{id}
func (h *OperationHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := h.processingService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, "Failed to get operation", err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// CancelOperation handles DELETE /operations/{id}
func (h *OperationHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.processingService.Cancel(r.Context(), id); err != nil {
		respondError(w, h.logger, "Failed to cancel operation", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "message": "Cancellation requested"})
}

// StreamOperation handles GET /operations/{id}/events as server-sent events.
// The stream ends after the terminal state.
func (h *OperationHandler) StreamOperation(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	updates, err := h.processingService.Subscribe(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, "Failed to subscribe to operation", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for op := range updates {
		data, err := json.Marshal(op)
		if err != nil {
			h.logger.Error("Failed to encode operation", err, "operation_id", op.ID)
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", op.Status, data)
		flusher.Flush()
	}
}
