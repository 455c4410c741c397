// Package api provides shared helpers for writing JSON API responses.
// It decouples the HTTP response shape from the internal domain models.
package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standard error body returned by all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Success writes a JSON response with the given status code.
func Success(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a JSON error response with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	Success(w, status, ErrorResponse{Error: message})
}

// FieldError writes a validation error response naming the offending field.
func FieldError(w http.ResponseWriter, status int, field, message string) {
	Success(w, status, ErrorResponse{Error: message, Field: field})
}
