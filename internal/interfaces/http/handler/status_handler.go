package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dreschagin/staticserve/internal/infrastructure/status"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// StatusHandler reports process and host stats as JSON.
type StatusHandler struct {
	collector *status.Collector
	logger    *logger.Logger
}

func NewStatusHandler(collector *status.Collector, logger *logger.Logger) *StatusHandler {
	return &StatusHandler{
		collector: collector,
		logger:    logger,
	}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.collector.Collect(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("Failed to encode status snapshot", err)
	}
}
