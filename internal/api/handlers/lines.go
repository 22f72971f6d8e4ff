package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Fakelatency/ztm-schedule/internal/api/models"
	"github.com/Fakelatency/ztm-schedule/internal/departures"
	"github.com/Fakelatency/ztm-schedule/internal/lineindex"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

// LineRepository defines the read operations on the line index
type LineRepository interface {
	ListLines(ctx context.Context) ([]models.LineSummary, error)
	GetLineStops(ctx context.Context, line string) ([]stops.Stop, error)
	IndexInfo(ctx context.Context) (models.IndexInfo, error)
}

// LinesHandler handles HTTP requests for lines and the stops they serve
type LinesHandler struct {
	repo LineRepository
}

// NewLinesHandler creates a new handler with the given repository
func NewLinesHandler(repo LineRepository) *LinesHandler {
	return &LinesHandler{repo: repo}
}

// ListLines handles GET /api/lines
func (h *LinesHandler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.repo.ListLines(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve lines", err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lines": lines,
		"count": len(lines),
	})
}

// GetLine handles GET /api/lines/{line}
// With ?direction= it returns one entry per pole heading that way, like the
// interactive departures command does.
func (h *LinesHandler) GetLine(w http.ResponseWriter, r *http.Request) {
	line, list, ok := h.lineStops(w, r)
	if !ok {
		return
	}

	direction := r.URL.Query().Get("direction")
	if direction != "" {
		list, _ = departures.RouteStops(lineindex.Index{line: list}, line, direction)
	}
	if list == nil {
		list = []stops.Stop{}
	}

	writeJSON(w, http.StatusOK, models.LineStopsResponse{
		Line:      line,
		Direction: direction,
		Stops:     list,
		Count:     len(list),
	})
}

// GetDirections handles GET /api/lines/{line}/directions
func (h *LinesHandler) GetDirections(w http.ResponseWriter, r *http.Request) {
	line, list, ok := h.lineStops(w, r)
	if !ok {
		return
	}

	dirs, _ := departures.Directions(lineindex.Index{line: list}, line)
	if dirs == nil {
		dirs = []string{}
	}
	writeJSON(w, http.StatusOK, models.DirectionsResponse{Line: line, Directions: dirs})
}

// lineStops resolves the {line} URL parameter; it writes the error response
// itself and returns ok=false when there is nothing to serve.
func (h *LinesHandler) lineStops(w http.ResponseWriter, r *http.Request) (string, []stops.Stop, bool) {
	line := strings.ToUpper(chi.URLParam(r, "line"))
	if line == "" {
		writeError(w, http.StatusBadRequest, "line parameter is required", nil)
		return "", nil, false
	}

	list, err := h.repo.GetLineStops(r.Context(), line)
	if errors.Is(err, lineindex.ErrLineNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Line not found",
			Details: map[string]interface{}{"line": line},
		})
		return "", nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve line", err)
		return "", nil, false
	}
	return line, list, true
}
