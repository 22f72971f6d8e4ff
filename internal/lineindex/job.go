package lineindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

// ErrAborted wraps the reason a job stopped before crawling.
var ErrAborted = errors.New("line index job aborted")

// State is the position of a Job in its lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateLoadingInput
	StateCrawling
	StatePersisting
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateLoadingInput:
		return "loading_input"
	case StateCrawling:
		return "crawling"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Job runs one full index build: load the stop directory, crawl, then write
// the index file once. The index file is untouched unless the crawl completes.
type Job struct {
	StopsFile string
	IndexFile string
	Builder   *Builder

	// Prepare, when set, runs after the stop directory is loaded and before
	// the first query. An error aborts the job.
	Prepare func(ctx context.Context, all []stops.Stop) error

	logger *zap.Logger
	state  State
}

// NewJob creates a job reading stopsFile and writing indexFile.
func NewJob(logger *zap.Logger, stopsFile, indexFile string, builder *Builder) *Job {
	return &Job{
		StopsFile: stopsFile,
		IndexFile: indexFile,
		Builder:   builder,
		logger:    logger,
	}
}

// State returns where the job currently is.
func (j *Job) State() State {
	return j.state
}

// Run executes the job. A missing or unreadable stop directory returns an
// error wrapping ErrAborted before any query is made.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	j.state = StateLoadingInput
	all, err := stops.Load(j.StopsFile)
	if err != nil {
		j.state = StateAborted
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if j.Prepare != nil {
		if err := j.Prepare(ctx, all); err != nil {
			j.state = StateAborted
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}
	}

	j.logger.Info("indexing lines for all stops",
		zap.String("input", j.StopsFile),
		zap.Int("stops", len(all)),
	)

	j.state = StateCrawling
	start := time.Now()
	res, err := j.Builder.Build(ctx, all)
	if err != nil {
		j.state = StateAborted
		return nil, fmt.Errorf("crawl interrupted: %w", err)
	}

	j.logger.Info("indexing finished",
		zap.Int("lines", len(res.Index)),
		zap.Int("stops", res.Processed),
		zap.Int("failed", res.Failed),
		zap.Int("replayed", res.Replayed),
		zap.Duration("took", time.Since(start).Round(time.Second)),
	)

	j.state = StatePersisting
	if err := res.Index.Save(j.IndexFile); err != nil {
		j.state = StateAborted
		return nil, fmt.Errorf("failed to save line index: %w", err)
	}

	j.state = StateDone
	j.logger.Info("line index written",
		zap.String("output", j.IndexFile),
		zap.Int("lines", len(res.Index)),
	)
	return res, nil
}
