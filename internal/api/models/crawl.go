package models

import "time"

// CrawlRun is one index build as recorded in the checkpoint database
type CrawlRun struct {
	RunID      string     `json:"runId"`
	Status     string     `json:"status"` // running, finished, abandoned
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	StopCount  int        `json:"stopCount"`
	Attempted  int        `json:"attempted"` // stops with a recorded outcome
	Failed     int        `json:"failed"`
}
