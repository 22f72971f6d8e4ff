package models

import (
	"time"

	"github.com/Fakelatency/ztm-schedule/internal/stops"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

// LineSummary is one entry of GET /api/lines
type LineSummary struct {
	Line      string `json:"line"`
	StopCount int    `json:"stopCount"` // poles listed for the line, duplicates included
}

// IndexInfo describes the line index a repository serves
type IndexInfo struct {
	Source      string     `json:"source"` // "file" or "postgres"
	Lines       int        `json:"lines"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
	RunID       string     `json:"runId,omitempty"`
}

// LineStopsResponse is the JSON response for GET /api/lines/{line}
type LineStopsResponse struct {
	Line      string       `json:"line"`
	Direction string       `json:"direction,omitempty"`
	Stops     []stops.Stop `json:"stops"`
	Count     int          `json:"count"`
}

// DirectionsResponse is the JSON response for GET /api/lines/{line}/directions
type DirectionsResponse struct {
	Line       string   `json:"line"`
	Directions []string `json:"directions"`
}

// DeparturesResponse is the JSON response for GET /api/departures
type DeparturesResponse struct {
	StopID     string          `json:"stopId"`
	StopNumber string          `json:"stopNumber"`
	Line       string          `json:"line"`
	Date       string          `json:"date"`
	Departures []ztm.Departure `json:"departures"`
	Count      int             `json:"count"`
	Upcoming   bool            `json:"upcomingOnly"`
	FetchedAt  time.Time       `json:"fetchedAt"`
}
