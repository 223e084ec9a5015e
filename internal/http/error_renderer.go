package httpx

import (
	"context"
	"errors"
	"maps"
	"net/http"

	apperrors "github.com/target/laptopdoc/internal/errors"
	"github.com/target/laptopdoc/internal/service"
)

// ErrorRenderer renders a page with the given status and data.
// This allows the error renderer to work with different rendering strategies.
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, status int, data map[string]any)

// ErrorOpts contains all options needed to render an error response.
type ErrorOpts struct {
	W http.ResponseWriter
	R *http.Request
	// Err is the error that occurred (optional, can be nil if only field errors)
	Err error
	// FieldErrors contains field-level validation errors (field name → error message)
	FieldErrors map[string]string
	// Renderer is typically h.renderPage
	Renderer ErrorRenderer
	PageMeta PageMeta
	// Data carries extra template data such as echoed form values or dropdown options.
	Data map[string]any
	// StatusCode overrides the status derived from Err.
	StatusCode int
	// ShowToast triggers a toast notification with the error message
	ShowToast bool
}

// Fallback messages for errors that carry no page-ready text.
const (
	msgTimedOut = "Request timed out. Please try again."
	msgCanceled = "Request was canceled."
	msgGeneric  = "An error occurred. Please try again."
)

// DetermineErrorStatus maps an error to the status its page should carry.
// Field-only failures without an error return 422; nil returns 0.
func DetermineErrorStatus(err error) int {
	if err == nil {
		return 0
	}
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		return authErrorStatus(authErr)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func authErrorStatus(e *service.AuthError) int {
	switch e.Kind {
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindInvalidCredentials, service.KindSessionExpired:
		return http.StatusUnauthorized
	case service.KindAccessDenied:
		return http.StatusForbidden
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindInProgress:
		return http.StatusConflict
	case service.KindNetwork, service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		if e.Status >= http.StatusBadRequest {
			return e.Status
		}
		return http.StatusBadGateway
	}
}

// RenderError renders a form or page with an inline error. Field errors from
// AuthError and field-bound AppError values are merged into FieldErrors.
func RenderError(opts ErrorOpts) {
	if opts.Renderer == nil {
		http.Error(opts.W, "misconfigured error renderer", http.StatusInternalServerError)
		return
	}

	builder := NewTemplateData(opts.R, opts.PageMeta)

	fieldErrors := maps.Clone(opts.FieldErrors)
	generalError := processError(opts.Err, &fieldErrors)
	if generalError == "" && len(fieldErrors) > 0 {
		generalError = service.MsgFixErrors
	}
	builder.WithFieldErrors(fieldErrors).WithError(generalError)

	for k, v := range opts.Data {
		builder.With(k, v)
	}

	if opts.ShowToast && generalError != "" {
		SetHXTrigger(opts.W, "showToast", map[string]any{"message": generalError, "type": "error"})
	}

	status := opts.StatusCode
	if status == 0 {
		status = DetermineErrorStatus(opts.Err)
	}
	if status == 0 {
		status = http.StatusUnprocessableEntity
	}
	opts.Renderer(opts.W, opts.R, status, builder.Build())
}

// processError returns a page-ready message for err and records field errors.
// Returns empty string if err is nil.
func processError(err error, fieldErrors *map[string]string) string {
	if err == nil {
		return ""
	}

	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		for k, v := range authErr.FieldErrors {
			setFieldError(fieldErrors, k, v)
		}
		return authErr.Message
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Field != "" {
			setFieldError(fieldErrors, appErr.Field, appErr.Message)
			return service.MsgFixErrors
		}
		if appErr.Message != "" {
			return appErr.Message
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimedOut
	}
	if errors.Is(err, context.Canceled) {
		return msgCanceled
	}
	return msgGeneric
}

func setFieldError(fieldErrors *map[string]string, field, msg string) {
	if fieldErrors == nil {
		return
	}
	if *fieldErrors == nil {
		*fieldErrors = make(map[string]string)
	}
	if _, exists := (*fieldErrors)[field]; !exists {
		(*fieldErrors)[field] = msg
	}
}
