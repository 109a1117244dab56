package httpapi

import (
	"net/http"

	"fetcharr/internal/http/handlers"
	appmw "fetcharr/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		appmw.Logger(app.Logger),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Combined indexer + download-client endpoint
	r.Get("/api", app.Api)
	r.Post("/api", app.Api)

	// Dashboard feed + settings
	r.Get("/api/dashboard/status", app.DashboardStatus)
	r.Get("/api/settings", app.Settings)
	r.Post("/api/settings", app.UpdateSettings)

	return r
}
