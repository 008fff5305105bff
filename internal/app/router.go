package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formosa-data/formosa/internal/disclosure"
	"github.com/formosa-data/formosa/internal/dividend"
	"github.com/formosa-data/formosa/internal/insiders"
	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/report"
	"github.com/formosa-data/formosa/internal/revenue"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ReportHandler     *report.Handler
	RevenueHandler    *revenue.Handler
	InsidersHandler   *insiders.Handler
	DividendHandler   *dividend.Handler
	DisclosureHandler *disclosure.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Formosa defaults. Domain
// handlers mount under /api/v1.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.ReportHandler != nil {
			params.ReportHandler.MountRoutes(r)
		}
		if params.RevenueHandler != nil {
			params.RevenueHandler.MountRoutes(r)
		}
		if params.InsidersHandler != nil {
			params.InsidersHandler.MountRoutes(r)
		}
		if params.DividendHandler != nil {
			params.DividendHandler.MountRoutes(r)
		}
		if params.DisclosureHandler != nil {
			params.DisclosureHandler.MountRoutes(r)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
