package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"sales-pipeline/internal/forecast"
	"sales-pipeline/internal/model"
)

// APIError is the JSON body of every error response.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	e.RequestID = middleware.GetReqID(r.Context())
	render.Status(r, e.StatusCode)
	return nil
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message}
}

// toAPIError maps the domain error taxonomy to HTTP statuses.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, forecast.ErrModelNotFound):
		return newAPIError(http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, model.ErrConfiguration):
		return newAPIError(http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
	case errors.Is(err, model.ErrCapability):
		return newAPIError(http.StatusConflict, "CAPABILITY", err.Error())
	case errors.Is(err, model.ErrInsufficientData):
		return newAPIError(http.StatusUnprocessableEntity, "INSUFFICIENT_DATA", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func renderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
	}
	render.Render(w, r, apiErr)
}
