package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "sales-pipeline/internal/api/docs"
	"sales-pipeline/internal/api/handler"
	"sales-pipeline/pkg/router"
)

// Handlers groups the resource handlers mounted under /api/v1.
type Handlers struct {
	Ingestions *handler.IngestionHandler
	Forecasts  *handler.ForecastHandler
}

// NewRouter builds the HTTP API: /healthz, /metrics, the Swagger UI and the
// /api/v1 resources.
func NewRouter(h Handlers, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := router.New(logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if h.Ingestions != nil {
			r.Mount("/ingestions", h.Ingestions.Routes())
		}
		if h.Forecasts != nil {
			r.Mount("/forecasts", h.Forecasts.Routes())
		}
	})
	return r
}
