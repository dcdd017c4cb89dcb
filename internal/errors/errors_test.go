package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"
)

func TestTidyError_Error(t *testing.T) {
	err := &TidyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "run not found",
	}

	expected := "NOT_FOUND: run not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("root is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "root is required" {
		t.Errorf("Message = %q, want %q", err.Message, "root is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01ABC")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "01ABC" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "01ABC")
	}
}

func TestNewPreconditionPath(t *testing.T) {
	err := NewPreconditionPath("output folder is not empty", "/tmp/out")

	if err.Code != ErrPreconditionFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrPreconditionFailed)
	}
	if err.Status != 412 {
		t.Errorf("Status = %d, want 412", err.Status)
	}
	if err.Message != "output folder is not empty: /tmp/out" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Details["path"] != "/tmp/out" {
		t.Errorf("Details[path] = %v, want /tmp/out", err.Details["path"])
	}
}

func TestNewResolutionExhausted(t *testing.T) {
	err := NewResolutionExhausted("/out/Images/a.jpg", 9998)

	if err.Code != ErrResolutionExhausted {
		t.Errorf("Code = %q, want %q", err.Code, ErrResolutionExhausted)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["attempts"] != 9998 {
		t.Errorf("Details[attempts] = %v, want 9998", err.Details["attempts"])
	}
}

func TestNewExecution_Unwraps(t *testing.T) {
	err := NewExecution(3, "/src/a.jpg", "/dst/Images/a.jpg", os.ErrPermission)

	if err.Code != ErrExecutionFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrExecutionFailed)
	}
	if err.Details["seq"] != 3 {
		t.Errorf("Details[seq] = %v, want 3", err.Details["seq"])
	}
	if !stderrors.Is(err, os.ErrPermission) {
		t.Error("expected execution error to unwrap to os.ErrPermission")
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("plan")

	if err.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", err.Code, ErrCancelled)
	}
	if err.Message != "plan cancelled" {
		t.Errorf("Message = %q, want %q", err.Message, "plan cancelled")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}

	err = NewInternal(fmt.Errorf("disk on fire"))
	if err.Message != "disk on fire" {
		t.Errorf("Message = %q, want %q", err.Message, "disk on fire")
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInternal, false},
		{"wrapped", fmt.Errorf("outer: %w", NewPrecondition("nope")), ErrPreconditionFailed, true},
		{"plain error", fmt.Errorf("plain"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", NewCancelled("apply"))

	tErr, ok := As(wrapped)
	if !ok {
		t.Fatal("As() ok = false, want true")
	}
	if tErr.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", tErr.Code, ErrCancelled)
	}

	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As() ok = true for plain error")
	}
}
