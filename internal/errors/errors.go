package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a ClipGo error code.
type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION"      // 400
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrConstraint     ErrorCode = "CONSTRAINT"      // 409
	ErrDuplicate      ErrorCode = "DUPLICATE"       // 409
	ErrUninitialized  ErrorCode = "UNINITIALIZED"   // 503
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// ClipError represents a structured error with code, status, and details.
type ClipError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Violations lists every failed rule for VALIDATION errors.
	Violations []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ClipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ClipError) Unwrap() error {
	return e.Err
}

// NewValidation creates a 400 error listing every violated rule for entity.
func NewValidation(entity string, violations []string) *ClipError {
	return &ClipError{
		Code:       ErrValidation,
		Status:     400,
		Message:    fmt.Sprintf("invalid %s: %s", entity, strings.Join(violations, "; ")),
		Details:    map[string]any{"entity": entity, "violations": violations},
		Violations: violations,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ClipError {
	return &ClipError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing category, clip or backup.
func NewNotFound(kind, id string) *ClipError {
	return &ClipError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *ClipError {
	return &ClipError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConstraint creates a 409 error for a violated structural invariant.
func NewConstraint(msg string, details map[string]any) *ClipError {
	return &ClipError{
		Code:    ErrConstraint,
		Status:  409,
		Message: msg,
		Details: details,
	}
}

// NewDuplicate creates a 409 error when a clip collides with existingID.
// similarity is 1 for exact (text, url) matches.
func NewDuplicate(existingID string, similarity float64) *ClipError {
	msg := fmt.Sprintf("clip duplicates existing clip %s", existingID)
	if similarity < 1 {
		msg = fmt.Sprintf("clip is %.0f%% similar to existing clip %s", similarity*100, existingID)
	}
	return &ClipError{
		Code:    ErrDuplicate,
		Status:  409,
		Message: msg,
		Details: map[string]any{"existing_id": existingID, "similarity": similarity},
	}
}

// NewUninitialized creates a 503 error for calls made before Init completed.
func NewUninitialized(component string) *ClipError {
	return &ClipError{
		Code:    ErrUninitialized,
		Status:  503,
		Message: fmt.Sprintf("%s is not initialized", component),
		Details: map[string]any{"component": component},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ClipError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ClipError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err is, or wraps, a ClipError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As returns the ClipError in err's chain, if any.
func As(err error) (*ClipError, bool) {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}

// Message returns the message of the ClipError in err's chain, keeping any
// context added by wrapping. Other errors yield err.Error().
func Message(err error) string {
	cErr, ok := As(err)
	if !ok {
		return err.Error()
	}
	if full := err.Error(); full != cErr.Error() {
		return strings.TrimSuffix(full, cErr.Error()) + cErr.Message
	}
	return cErr.Message
}
