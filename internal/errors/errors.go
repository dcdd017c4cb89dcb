package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a tidy error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrResolutionExhausted ErrorCode = "RESOLUTION_EXHAUSTED" // 409
	ErrPreconditionFailed  ErrorCode = "PRECONDITION_FAILED"  // 412
	ErrCancelled           ErrorCode = "CANCELLED"            // 499
	ErrExecutionFailed     ErrorCode = "EXECUTION_FAILED"     // 500
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// TidyError represents a structured error with code, status, and details.
type TidyError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *TidyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *TidyError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TidyError {
	return &TidyError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a run cannot be found.
func NewNotFound(identifier string) *TidyError {
	return &TidyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewPrecondition creates a 412 error for a violated precondition.
// Nothing has been written to disk when this error is returned.
func NewPrecondition(msg string) *TidyError {
	return &TidyError{
		Code:    ErrPreconditionFailed,
		Status:  412,
		Message: msg,
	}
}

// NewPreconditionPath creates a 412 error that names the offending path.
func NewPreconditionPath(msg, path string) *TidyError {
	return &TidyError{
		Code:    ErrPreconditionFailed,
		Status:  412,
		Message: fmt.Sprintf("%s: %s", msg, path),
		Details: map[string]any{"path": path},
	}
}

// NewResolutionExhausted creates a 409 error when no free destination name exists.
func NewResolutionExhausted(path string, attempts int) *TidyError {
	return &TidyError{
		Code:    ErrResolutionExhausted,
		Status:  409,
		Message: fmt.Sprintf("could not find unique name for %s after %d attempts", path, attempts),
		Details: map[string]any{"path": path, "attempts": attempts},
	}
}

// NewExecution creates a 500 error for a failed move or copy.
// seq is the zero-based position of the failing move in its plan.
func NewExecution(seq int, src, dst string, err error) *TidyError {
	msg := "execution failed"
	if err != nil {
		msg = err.Error()
	}
	return &TidyError{
		Code:    ErrExecutionFailed,
		Status:  500,
		Message: fmt.Sprintf("apply %s -> %s: %s", src, dst, msg),
		Details: map[string]any{"seq": seq, "source": src, "destination": dst},
		cause:   err,
	}
}

// NewCancelled creates a 499 error when an operation is cancelled.
func NewCancelled(operation string) *TidyError {
	return &TidyError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TidyError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TidyError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a TidyError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TidyError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// As returns the TidyError in err's chain, if any.
func As(err error) (*TidyError, bool) {
	var tErr *TidyError
	if stderrors.As(err, &tErr) {
		return tErr, true
	}
	return nil, false
}
