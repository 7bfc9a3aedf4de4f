package errors

import (
	"net/http"
)

const (
	// RequestIDHeader is the HTTP header for request ID
	RequestIDHeader = "X-Request-ID"
)

// RequestIDMiddleware injects a request ID into the context and response headers
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = GenerateRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// Handler is an http.HandlerFunc that reports failures by returning them.
type Handler func(w http.ResponseWriter, r *http.Request) error

// ErrorHook observes every error a Handler returns before it is written.
type ErrorHook func(r *http.Request, err *AppError)

// HandleFunc converts a Handler to a standard http.HandlerFunc with automatic error handling
func HandleFunc(h Handler, hooks ...ErrorHook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			appErr := As(err)
			for _, hook := range hooks {
				hook(r, appErr)
			}
			WriteError(w, GetRequestID(r.Context()), appErr)
		}
	}
}
