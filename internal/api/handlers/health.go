package handlers

import (
	"context"
	"net/http"
	"time"
)

// Reloader re-reads the line index from its backing store
type Reloader interface {
	Reload(ctx context.Context) error
}

// HealthHandler reports on the served line index
type HealthHandler struct {
	repo     LineRepository
	reloader Reloader
}

// NewHealthHandler creates a new handler. reloader may be nil when the
// repository reads live from its store.
func NewHealthHandler(repo LineRepository, reloader Reloader) *HealthHandler {
	return &HealthHandler{repo: repo, reloader: reloader}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	info, err := h.repo.IndexInfo(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	status := "ok"
	if info.Lines == 0 {
		status = "empty"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"index":     info,
		"timestamp": time.Now().UTC(),
	})
}

// Reload handles POST /api/admin/reload
func (h *HealthHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		writeError(w, http.StatusNotImplemented, "Repository does not support reloading", nil)
		return
	}
	if err := h.reloader.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload line index", err)
		return
	}
	h.Health(w, r)
}
