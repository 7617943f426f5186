package api

import (
	"net/http"
	"time"
)

// StatsProvider reports the service counters served on /stats.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

// HandleStats copies the provider's counters and adds the API uptime.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	src := h.provider.GetStats()
	stats := make(map[string]any, len(src)+1)
	for k, v := range src {
		stats[k] = v
	}
	stats["uptime"] = time.Since(h.started).Round(time.Second).String()

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stats)
}
