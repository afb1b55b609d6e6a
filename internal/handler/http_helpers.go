package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdf-annotator/internal/domain"
	apperrors "pdf-annotator/pkg/errors"
)

// maxJSONBody bounds request bodies that are decoded as JSON.
const maxJSONBody = 1 << 20

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps domain and application errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrOperationNotFound),
		errors.Is(err, domain.ErrPageOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTool),
		errors.Is(err, domain.ErrInvalidColor),
		errors.Is(err, domain.ErrUnknownOperation),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNoDocument),
		errors.Is(err, domain.ErrOperationFinished):
		return http.StatusConflict
	}
	return apperrors.GetStatusCode(err)
}

// respondError writes err with its mapped status. Server errors are logged
// and their message is not exposed.
func respondError(w http.ResponseWriter, logger domain.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, err)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			writeError(w, status, appErr.Message)
			return
		}
		writeError(w, status, msg)
		return
	}
	writeError(w, status, err.Error())
}
