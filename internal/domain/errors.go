package domain

import "errors"

// Domain errors
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrOperationNotFound = errors.New("operation not found")
	ErrNoDocument        = errors.New("no document open")
	ErrPageOutOfRange    = errors.New("page out of range")
	ErrInvalidTool       = errors.New("invalid tool")
	ErrInvalidColor      = errors.New("invalid color")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrFileTooLarge      = errors.New("file too large")
	ErrOperationFinished = errors.New("operation already finished")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
