package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cvangysel/gondri/pkg/logger"
)

// SnapshotReader is the read side of a SnapshotStore.
type SnapshotReader interface {
	Latest(ctx context.Context) (*AggregatedStats, error)
}

// Handler serves live aggregates and, when snapshots are configured, the
// last persisted ones.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotReader
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator, l *slog.Logger) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     logger.Component(l, "analytics-handler"),
	}
}

// WithSnapshots enables the snapshot endpoint.
func (h *Handler) WithSnapshots(s SnapshotReader) *Handler {
	h.snapshots = s
	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshot", h.Snapshot)
}

// Stats serves the live aggregates. ?top=N trims the query lists.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.write(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
			return
		}
		stats.TopQueries = stats.TopQueries[:min(n, len(stats.TopQueries))]
		stats.ZeroResultQueries = stats.ZeroResultQueries[:min(n, len(stats.ZeroResultQueries))]
	}
	h.write(w, http.StatusOK, stats)
}

// Snapshot serves the most recent persisted aggregates.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.write(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots are not enabled"})
		return
	}
	stats, err := h.snapshots.Latest(r.Context())
	switch {
	case err != nil:
		h.logger.Error("loading snapshot failed", "error", err)
		h.write(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	case stats == nil:
		h.write(w, http.StatusNotFound, map[string]string{"error": "no snapshot stored yet"})
	default:
		h.write(w, http.StatusOK, stats)
	}
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
