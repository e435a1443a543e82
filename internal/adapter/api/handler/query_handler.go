package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/user/eventwatch/internal/domain"
	"github.com/user/eventwatch/internal/usecase"
)

// QueryHandler serves the read-only query endpoints.
type QueryHandler struct {
	stats     *usecase.StatsService
	recorder  *usecase.SnapshotRecorder
	collector *usecase.Collector
	logger    *slog.Logger
}

// NewQueryHandler creates the query endpoint handler.
func NewQueryHandler(
	stats *usecase.StatsService,
	recorder *usecase.SnapshotRecorder,
	collector *usecase.Collector,
	logger *slog.Logger,
) *QueryHandler {
	return &QueryHandler{
		stats:     stats,
		recorder:  recorder,
		collector: collector,
		logger:    logger.With("component", "api"),
	}
}

// Health reports liveness and the monitored event types.
func (h *QueryHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "healthy",
		"message":               "event monitor is running",
		"supported_event_types": domain.MonitoredTypes(),
	})
}

// EventCount returns per-type counts for the last {offset} minutes.
func (h *QueryHandler) EventCount(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.Atoi(chi.URLParam(r, "offset"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	report, err := h.stats.CountEvents(r.Context(), offset)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOffset) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("event count query failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to count events")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// PRTimeGap returns inter-arrival gap statistics for the repository given
// in the query string.
func (h *QueryHandler) PRTimeGap(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repository")
	if repo == "" {
		h.writeError(w, http.StatusBadRequest, "repository query parameter is required")
		return
	}

	report, err := h.stats.PRTimeGap(r.Context(), repo)
	if err != nil {
		h.logger.Error("pr time gap query failed", "error", err, "repository", repo)
		h.writeError(w, http.StatusInternalServerError, "failed to compute gap statistics")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// Leaderboard returns repositories ordered by PR activity. The min query
// parameter overrides the default threshold of 2.
func (h *QueryHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	min := 0
	if raw := r.URL.Query().Get("min"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "min must be a positive integer")
			return
		}
		min = n
	}

	entries, err := h.stats.Leaderboard(r.Context(), min)
	if err != nil {
		h.logger.Error("leaderboard query failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to build leaderboard")
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// Snapshots returns the live snapshot series, oldest first.
func (h *QueryHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.recorder.List(r.Context())
	if err != nil {
		h.logger.Error("snapshot listing failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

// StorageStats reports the retained event count and ingestion progress.
func (h *QueryHandler) StorageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.StorageStats(r.Context(), h.collector.LastFetchTime(), h.collector.Interval())
	if err != nil {
		h.logger.Error("storage stats query failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read storage stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *QueryHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *QueryHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
