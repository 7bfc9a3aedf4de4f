package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient   ErrorCategory = "client"
	CategoryServer   ErrorCategory = "server"
	CategoryExternal ErrorCategory = "external"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"

	// Server errors (5xx)
	CodeInternalError = "INTERNAL_ERROR"
	CodeUploadFailed  = "UPLOAD_FAILED"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"-"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// ErrorResponse is the JSON structure returned to clients on failure.
type ErrorResponse struct {
	StatusCode int            `json:"statusCode"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Success    bool           `json:"success"`
	RequestID  string         `json:"requestId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Response is the JSON envelope returned to clients on success.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// New creates a new AppError
func New(code string, message string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message, CategoryClient, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, CategoryClient, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, CategoryClient, http.StatusForbidden)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message, CategoryClient, http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, CategoryClient, http.StatusConflict)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message, CategoryServer, http.StatusInternalServerError)
}

// UploadFailed reports a failure of the external image host.
func UploadFailed(message string) *AppError {
	return New(CodeUploadFailed, message, CategoryExternal, http.StatusInternalServerError)
}

// As extracts an *AppError from err, wrapping anything else as an internal error.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError("an unexpected error occurred").WithCause(err)
}

// StatusOf returns the HTTP status an error would be rendered with.
func StatusOf(err error) int {
	return As(err).HTTPStatus
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, requestID string, err error) {
	appErr := As(err)

	resp := ErrorResponse{
		StatusCode: appErr.HTTPStatus,
		Code:       appErr.Code,
		Message:    appErr.Message,
		Success:    false,
		RequestID:  requestID,
		Details:    appErr.Details,
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set(RequestIDHeader, requestID)
	}
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes data inside the success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Category == CategoryClient
}

// IsServerError returns true if the error is a server-side or upstream failure
func IsServerError(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err != nil
	}
	return appErr.Category != CategoryClient
}
