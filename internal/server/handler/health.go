package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bondstreet/bondmatch/internal/service"
)

// StatsService provides entity counts for the stats endpoint.
type StatsService interface {
	Stats(ctx context.Context) (service.Stats, error)
}

// HealthHandler serves the health-check and stats endpoints.
type HealthHandler struct {
	stats  StatsService
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(stats StatsService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{stats: stats, logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats responds with current entity counts.
// GET /api/stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instruments":  stats.Instruments,
		"auctions":     stats.Auctions,
		"rfqs":         stats.RFQs,
		"audit_events": stats.AuditEvents,
	})
}
