// Package handlers implements the engine's HTTP endpoints.
package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"promptvault-backend/pkg/api"
	appErrors "promptvault-backend/pkg/errors"
)

// respondError maps the error taxonomy to HTTP status codes.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case appErrors.IsValidation(err):
		if appErr, ok := err.(*appErrors.AppError); ok && appErr.Field != "" {
			api.FieldError(w, http.StatusBadRequest, appErr.Field, appErr.Message)
			return
		}
		api.Error(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNotFound(err):
		api.Error(w, http.StatusNotFound, err.Error())
	case appErrors.IsUnavailable(err):
		logger.Warn("collaborator unavailable", zap.Error(err))
		api.Error(w, http.StatusServiceUnavailable, "A required service is temporarily unavailable")
	default:
		logger.Error("request failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondValidation translates struct-tag validation failures into a field
// error on the first offending field.
func respondValidation(w http.ResponseWriter, err error) {
	if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
		api.FieldError(w, http.StatusBadRequest, fieldErrors[0].Field(), "failed validation: "+fieldErrors[0].Tag())
		return
	}
	api.Error(w, http.StatusBadRequest, "Invalid request body")
}
