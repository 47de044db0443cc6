// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/searchsync/searchsync/application/service"
	"github.com/searchsync/searchsync/infrastructure/api/jsonapi"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps an error to an HTTP status and writes a JSON:API error
// document. Internal errors are logged but never leak details to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	status := statusFor(err)
	detail := err.Error()

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		detail = "internal server error"
	}

	doc := jsonapi.NewErrorResponse(jsonapi.NewError(
		strconv.Itoa(status),
		http.StatusText(status),
		detail,
	))
	WriteJSON(w, status, doc)
}

func statusFor(err error) int {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code()
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// APIError carries an explicit HTTP status code through the error chain.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates an APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the error message.
func (e *APIError) Message() string { return e.message }

// Error implements error.
func (e *APIError) Error() string {
	msg := "api error " + strconv.Itoa(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }
