package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NotFound("problem not found"),
			want: "problem not found",
		},
		{
			name: "with cause",
			err:  Wrap(errors.New("dial tcp: refused"), ErrCodeUnavailable, "diagnosis failed"),
			want: "diagnosis failed: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(cause, ErrCodeInternal, "wrapped")
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(wrapped, cause) = false")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Errorf("Wrap(nil) should be nil")
	}
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidation, http.StatusUnprocessableEntity},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrorCode("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := &AppError{Code: tt.code}
			if got := err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPredicates_ThroughWrapping(t *testing.T) {
	base := ValidationField("laptopBrand", "Please select a laptop brand")
	wrapped := fmt.Errorf("diagnose: %w", base)

	if !IsValidation(wrapped) {
		t.Errorf("IsValidation() = false, want true")
	}
	if IsNotFound(wrapped) {
		t.Errorf("IsNotFound() = true, want false")
	}
	if got := GetField(wrapped); got != "laptopBrand" {
		t.Errorf("GetField() = %q, want laptopBrand", got)
	}
	if got := GetCode(wrapped); got != ErrCodeValidation {
		t.Errorf("GetCode() = %q, want validation", got)
	}
	if GetCode(errors.New("plain")) != "" {
		t.Errorf("GetCode(plain) should be empty")
	}
	if !IsUnavailable(Wrap(errors.New("x"), ErrCodeUnavailable, "down")) {
		t.Errorf("IsUnavailable() = false, want true")
	}
	if !IsNotFound(NotFoundf("problem %s not found", "42")) {
		t.Errorf("IsNotFound() = false, want true")
	}
	if Forbidden("no").Code != ErrCodeForbidden || Validation("bad").Code != ErrCodeValidation {
		t.Errorf("constructor codes mismatch")
	}
}
