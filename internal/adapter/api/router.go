// Package api exposes the query endpoints over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/eventwatch/internal/adapter/api/handler"
	"github.com/user/eventwatch/internal/adapter/api/middleware"
	"github.com/user/eventwatch/internal/usecase"
)

// NewRouter creates the public query API router.
func NewRouter(
	stats *usecase.StatsService,
	recorder *usecase.SnapshotRecorder,
	collector *usecase.Collector,
	logger *slog.Logger,
) http.Handler {
	h := handler.NewQueryHandler(stats, recorder, collector, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))

	r.Get("/", h.Health)
	r.Route("/metrics", func(r chi.Router) {
		r.Get("/event-count/{offset}", h.EventCount)
		r.Get("/pr-time-gap", h.PRTimeGap)
		r.Get("/leaderboard", h.Leaderboard)
		r.Get("/snapshots", h.Snapshots)
	})
	r.Get("/storage/stats", h.StorageStats)

	return r
}
