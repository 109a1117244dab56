// Package handlers carries the HTTP surface: the combined indexer/downloader
// /api endpoint and the dashboard status feed.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fetcharr/internal/health"
	"fetcharr/internal/infra"
	"fetcharr/internal/queue"
	"fetcharr/internal/search"
	"fetcharr/internal/source"
)

type App struct {
	Config    *infra.Config
	Logger    zerolog.Logger
	Registry  *source.Registry
	Search    *search.Aggregator
	Queue     *queue.Manager
	Monitor   *health.Monitor
	StartedAt time.Time
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, registry *source.Registry, agg *search.Aggregator, q *queue.Manager, monitor *health.Monitor) *App {
	return &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  registry,
		Search:    agg,
		Queue:     q,
		Monitor:   monitor,
		StartedAt: time.Now(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) xml(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
