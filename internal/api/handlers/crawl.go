package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Fakelatency/ztm-schedule/internal/api/models"
)

// CrawlRepository defines the read operations on recorded crawl runs
type CrawlRepository interface {
	ListRuns(ctx context.Context, limit int) ([]models.CrawlRun, error)
}

// CrawlHandler exposes the progress of index builds
type CrawlHandler struct {
	repo CrawlRepository
}

// NewCrawlHandler creates a new handler with the given repository
func NewCrawlHandler(repo CrawlRepository) *CrawlHandler {
	return &CrawlHandler{repo: repo}
}

// ListRuns handles GET /api/crawl/runs?limit=
func (h *CrawlHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve crawl runs", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
