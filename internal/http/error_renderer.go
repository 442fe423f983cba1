package httpx

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/LeHak0/Neuro-Triage/internal/errors"
)

// ErrorRenderer is a function that renders an error template with the given data.
// This allows the error renderer to work with different rendering strategies.
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, data any)

// ErrorOpts contains all options needed to render an error response.
// This struct is used to maintain the ≤3 parameters constraint while providing
// flexibility for different error scenarios.
type ErrorOpts struct {
	// W is the HTTP response writer
	W http.ResponseWriter
	// R is the HTTP request
	R *http.Request
	// Err is the error that occurred (optional, can be nil if only field errors)
	Err error
	// FieldErrors contains field-level validation errors (field name → error message)
	FieldErrors map[string]string
	// Renderer is the function to render the error template
	// This is typically h.renderDashboardPage or a similar function
	Renderer ErrorRenderer
	// PageMeta contains page metadata (title, current page, etc.)
	PageMeta PageMeta
	// Data contains additional template data to pass to the renderer
	// This is useful for preserving form data, dropdown options, etc.
	Data map[string]any
	// StatusCode is the HTTP status code to set (optional, defaults to 200 for HTMX compatibility)
	StatusCode int
	// ShowToast triggers a toast notification with the error message (optional)
	// When true, sends an HX-Trigger header with showToast event
	ShowToast bool
}

// DetermineErrorStatus determines the appropriate HTTP status code for an error.
// Returns 404 for missing cases, 0 (default) otherwise. A status of 0 means the
// caller should use the default behavior (typically 200 for HTMX partial updates).
func DetermineErrorStatus(err error) int {
	if err == nil {
		return 0
	}
	if apperrors.IsNotFound(err) {
		return http.StatusNotFound
	}
	return 0
}

// RenderError renders an error response using consistent error handling patterns.
// It supports field-level validation errors, general error messages, and backend
// submission errors.
//
// Validation errors carrying a field name are surfaced inline next to the form
// field; everything else becomes a general banner message. The function
// integrates with the template builder and supports HTMX partial updates.
//
// Usage examples:
//
//	// Validation errors
//	RenderError(ErrorOpts{
//	    W: w, R: r,
//	    FieldErrors: map[string]string{"moca": "MoCA total score must be between 0 and 30"},
//	    Renderer: h.renderDashboardPage,
//	    PageMeta: PageMeta{Title: "New Case", CurrentPage: "home"},
//	})
//
//	// Backend error with additional data
//	RenderError(ErrorOpts{
//	    W: w, R: r,
//	    Err: err, // submission rejection, poll failure, ...
//	    Renderer: h.renderDashboardPage,
//	    PageMeta: PageMeta{Title: "Case", CurrentPage: "case"},
//	    Data: map[string]any{"Case": sess},
//	})
func RenderError(opts ErrorOpts) {
	// Guard: ensure renderer is provided
	if opts.Renderer == nil {
		http.Error(opts.W, "misconfigured error renderer", http.StatusInternalServerError)
		return
	}

	builder := NewTemplateData(opts.R, opts.PageMeta)

	// Process the error if present (this may add field errors)
	generalError := processError(opts.Err, &opts.FieldErrors)

	// Add field errors (including any added by processError)
	if len(opts.FieldErrors) > 0 {
		builder.WithFieldErrors(opts.FieldErrors)
	}

	// Add general error message
	if generalError != "" {
		builder.WithError(generalError)
	} else if len(opts.FieldErrors) > 0 {
		// If we have field errors but no general error, use default message
		builder.WithError(errMsgFixBelow)
	}

	// Add any additional data
	if opts.Data != nil {
		for k, v := range opts.Data {
			builder.With(k, v)
		}
	}

	// Trigger toast notification if requested
	if opts.ShowToast && generalError != "" {
		triggerToast(opts.W, generalError, "error")
	}

	// Set HTTP status code if specified
	if opts.StatusCode != 0 {
		opts.W.WriteHeader(opts.StatusCode)
	}

	opts.Renderer(opts.W, opts.R, builder.Build())
}

// processError processes an error and returns a user-friendly error message.
// It also updates fieldErrors if the error can be mapped to a specific field.
// Returns empty string if err is nil.
func processError(err error, fieldErrors *map[string]string) string {
	if err == nil {
		return ""
	}

	// Distinguish between timeout and cancellation for better UX
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "Request was canceled."
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return processAppError(appErr, fieldErrors)
	}

	// Generic error
	return "An error occurred. Please try again."
}

// processAppError maps domain error codes to user-facing messages. Validation
// errors with a field name become field-level errors so forms can highlight
// the offending input.
func processAppError(appErr *apperrors.AppError, fieldErrors *map[string]string) string {
	switch appErr.Code {
	case apperrors.ErrCodeValidation:
		if appErr.Field != "" && fieldErrors != nil {
			if *fieldErrors == nil {
				*fieldErrors = make(map[string]string)
			}
			(*fieldErrors)[appErr.Field] = appErr.Message
			return errMsgFixBelow
		}
		return appErr.Message
	case apperrors.ErrCodeSubmission:
		return "The analysis service rejected the submission: " + appErr.Message
	case apperrors.ErrCodeNotFound:
		return "This case could not be found. It may have expired."
	case apperrors.ErrCodePoll, apperrors.ErrCodeResultFetch, apperrors.ErrCodePayloadShape:
		return "The analysis service is unavailable. Please try again."
	default:
		return "An error occurred. Please try again."
	}
}
