package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Fakelatency/ztm-schedule/internal/api/models"
	"github.com/Fakelatency/ztm-schedule/internal/departures"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

// TimetableSource returns the scheduled departures of a line from a pole
type TimetableSource interface {
	Timetable(ctx context.Context, stopID, stopNumber, line string) ([]ztm.Departure, error)
}

// DeparturesHandler handles HTTP requests for departure boards
type DeparturesHandler struct {
	source TimetableSource
	now    func() time.Time
}

// NewDeparturesHandler creates a new handler querying source
func NewDeparturesHandler(source TimetableSource) *DeparturesHandler {
	return &DeparturesHandler{source: source, now: time.Now}
}

// GetDepartures handles GET /api/departures?stopId=&stopNumber=&line=[&all=1]
// Returns today's remaining departures, or the whole day with all=1.
func (h *DeparturesHandler) GetDepartures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stopID := q.Get("stopId")
	stopNumber := q.Get("stopNumber")
	line := strings.ToUpper(q.Get("line"))
	all := q.Get("all") == "1" || q.Get("all") == "true"

	if stopID == "" || stopNumber == "" || line == "" {
		writeError(w, http.StatusBadRequest, "stopId, stopNumber and line are required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	deps, err := h.source.Timetable(ctx, stopID, stopNumber, line)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to retrieve timetable", err)
		return
	}

	now := h.now()
	if !all {
		deps = departures.Upcoming(deps, now)
	}
	if deps == nil {
		deps = []ztm.Departure{}
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, http.StatusOK, models.DeparturesResponse{
		StopID:     stopID,
		StopNumber: stopNumber,
		Line:       line,
		Date:       now.Format("2006-01-02"),
		Departures: deps,
		Count:      len(deps),
		Upcoming:   !all,
		FetchedAt:  now.UTC(),
	})
}
