package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"sales-pipeline/internal/forecast"
)

// Forecaster predicts with a saved model.
type Forecaster interface {
	Forecast(ctx context.Context, id string, h forecast.Horizon) (forecast.Series, error)
}

// ForecastRequest selects a saved model and the days to predict: either the
// next Horizon days or the explicit days in At.
type ForecastRequest struct {
	ModelID string      `json:"model_id" validate:"required"`
	Horizon int         `json:"horizon" validate:"min=0,max=3660"`
	At      []time.Time `json:"at,omitempty"`
}

// ForecastResponse is the predicted series.
type ForecastResponse struct {
	ModelID string           `json:"model_id"`
	Points  []forecast.Point `json:"points"`
}

type ForecastHandler struct {
	forecaster Forecaster
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewForecastHandler(f Forecaster, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		forecaster: f,
		validate:   validator.New(),
		logger:     logger.With(slog.String("component", "forecast_handler")),
	}
}

func (h *ForecastHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateForecast)
	return r
}

// CreateForecast predicts with a saved model
// @Summary Forecast daily sales
// @Tags forecasts
// @Accept json
// @Produce json
// @Param request body ForecastRequest true "Model and horizon"
// @Success 200 {object} ForecastResponse
// @Failure 400 {object} APIError "Invalid request"
// @Failure 404 {object} APIError "Model not found"
// @Router /forecasts [post]
func (h *ForecastHandler) CreateForecast(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, newAPIError(http.StatusBadRequest, "INVALID_REQUEST", "invalid request body: "+err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Render(w, r, newAPIError(http.StatusBadRequest, "VALIDATION_FAILED", err.Error()))
		return
	}

	series, err := h.forecaster.Forecast(r.Context(), req.ModelID, forecast.Horizon{Steps: req.Horizon, At: req.At})
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	points := series.Points
	if points == nil {
		points = []forecast.Point{}
	}
	render.JSON(w, r, ForecastResponse{ModelID: req.ModelID, Points: points})
}
