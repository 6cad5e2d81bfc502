// Package handlers exposes the server's introspection API: configured
// displays, per-display update history and live panel status.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/transport"
	"github.com/paperframe/paperframe/pkg/models"
)

// Fleet is the read side of the orchestrator the handlers serve from.
type Fleet interface {
	Displays() []models.Display
	History() map[string]models.UpdateRecord
	HistoryFor(name string) (models.UpdateRecord, bool)
	PollAll(ctx context.Context, timeout time.Duration) map[string]models.StatusReport
	Poll(ctx context.Context, name string, timeout time.Duration) (models.StatusReport, bool)
}

// StatusHandler handles HTTP requests for fleet introspection
type StatusHandler struct {
	fleet  Fleet
	logger *zap.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(fleet Fleet, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		fleet:  fleet,
		logger: logger,
	}
}

// RegisterRoutes registers the introspection routes
func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/displays", h.handleDisplays)
	mux.HandleFunc("/history", h.handleHistory)
	mux.HandleFunc("/status", h.handleStatus)
}

// handleHealth handles GET /health - returns service health status
func (h *StatusHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"service":  "paperframe",
		"displays": len(h.fleet.Displays()),
	})
}

// handleDisplays handles GET /displays - returns the configured fleet
func (h *StatusHandler) handleDisplays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	displays := h.fleet.Displays()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(displays); err != nil {
		h.logger.Error("Failed to encode displays response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("Served display list", zap.Int("count", len(displays)))
}

// handleHistory handles GET /history - returns update history for every
// display, or for one display via ?display=name
func (h *StatusHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if name := r.URL.Query().Get("display"); name != "" {
		record, ok := h.fleet.HistoryFor(name)
		if !ok {
			http.Error(w, "Unknown display", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(record)
		return
	}

	if err := json.NewEncoder(w).Encode(h.fleet.History()); err != nil {
		h.logger.Error("Failed to encode history response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleStatus handles GET /status - polls the panels live. Accepts
// ?display=name to poll one panel and ?timeout=5s to override the
// per-panel poll timeout.
func (h *StatusHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	timeout := transport.DefaultPollTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid timeout", http.StatusBadRequest)
			return
		}
		timeout = parsed
	}

	w.Header().Set("Content-Type", "application/json")

	if name := r.URL.Query().Get("display"); name != "" {
		report, ok := h.fleet.Poll(r.Context(), name, timeout)
		if !ok {
			http.Error(w, "Unknown display", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(report)
		return
	}

	reports := h.fleet.PollAll(r.Context(), timeout)
	if err := json.NewEncoder(w).Encode(reports); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("Served live status", zap.Int("count", len(reports)))
}
