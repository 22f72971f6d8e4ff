package lineindex

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/db"
	"github.com/Fakelatency/ztm-schedule/internal/metrics"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

// LineSource answers which lines serve a stop pole. Empty strings in the
// result stand for null entries and are ignored.
type LineSource interface {
	LinesForStop(ctx context.Context, stopID, stopNumber string) ([]string, error)
}

// CheckpointStore receives stop outcomes as the crawl goes.
type CheckpointStore interface {
	SaveResults(ctx context.Context, runID string, results []db.StopResult) error
}

// Options tune the crawl.
type Options struct {
	// Delay is waited after every successful query.
	Delay time.Duration
	// ProgressEvery is the cadence, in stops, of progress log lines.
	ProgressEvery int
	// CheckpointEvery is how many outcomes are buffered before they are written
	// to the checkpoint store.
	CheckpointEvery int
}

// Result summarises a crawl.
type Result struct {
	Index     Index
	Processed int
	Failed    int
	Replayed  int
}

// Builder crawls a stop directory one stop at a time and inverts the answers
// into an Index.
type Builder struct {
	logger *zap.Logger
	source LineSource
	opts   Options

	checkpoint CheckpointStore
	runID      string
	replay     map[int]db.StopResult

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewBuilder creates a builder querying source.
func NewBuilder(logger *zap.Logger, source LineSource, opts Options) *Builder {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = 50
	}
	return &Builder{
		logger: logger,
		source: source,
		opts:   opts,
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// WithCheckpoint records every outcome under runID in store. Successful
// outcomes found in replay (keyed by position) are reused instead of queried,
// provided the stop at that position is still the same pole.
func (b *Builder) WithCheckpoint(store CheckpointStore, runID string, replay map[int]db.StopResult) *Builder {
	b.checkpoint = store
	b.runID = runID
	b.replay = replay
	return b
}

// Build queries every stop in order and returns the inverted index. A failed
// query is logged and counts as "no lines"; it never stops the crawl. Build
// only returns an error when ctx is cancelled, in which case the partial index
// is discarded.
func (b *Builder) Build(ctx context.Context, all []stops.Stop) (*Result, error) {
	res := &Result{Index: Index{}}
	progress := metrics.NewProgressWithClock(len(all), b.now)
	var pending []db.StopResult

	for i, stop := range all {
		if err := ctx.Err(); err != nil {
			b.flush(ctx, pending)
			return nil, err
		}

		if lines, ok := b.replayed(i, stop); ok {
			b.add(res.Index, stop, lines)
			res.Replayed++
			progress.Skip()
		} else {
			outcome := db.StopResult{Position: i, StopID: stop.ID, StopNumber: stop.Number}

			lines, err := b.source.LinesForStop(ctx, stop.ID, stop.Number)
			if err != nil {
				if ctx.Err() != nil {
					b.flush(ctx, pending)
					return nil, ctx.Err()
				}
				b.logger.Warn("failed to get lines for stop, continuing",
					zap.String("stop_id", stop.ID),
					zap.String("stop_number", stop.Number),
					zap.String("stop_name", stop.Name),
					zap.Error(err),
				)
				outcome.Err = err.Error()
				res.Failed++
			} else {
				outcome.Lines = b.add(res.Index, stop, lines)
				if err := b.sleep(ctx, b.opts.Delay); err != nil {
					pending = append(pending, outcome)
					b.flush(ctx, pending)
					return nil, err
				}
			}

			progress.Done()
			if b.checkpoint != nil {
				pending = append(pending, outcome)
				if len(pending) >= b.opts.CheckpointEvery {
					b.flush(ctx, pending)
					pending = pending[:0]
				}
			}
		}

		res.Processed++
		if res.Processed%b.opts.ProgressEvery == 0 {
			b.logger.Info("processing stops",
				zap.Int("processed", progress.Processed()),
				zap.Int("total", progress.Total()),
				zap.Duration("remaining", progress.Remaining()),
				zap.Int("lines", len(res.Index)),
				zap.Int("failed", res.Failed),
			)
		}
	}

	b.flush(ctx, pending)
	return res, nil
}

// add files stop under every non-empty line and returns the lines it used.
func (b *Builder) add(idx Index, stop stops.Stop, lines []string) []string {
	var used []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		idx.Add(line, stop)
		used = append(used, line)
	}
	return used
}

func (b *Builder) replayed(position int, stop stops.Stop) ([]string, bool) {
	r, ok := b.replay[position]
	if !ok || r.Err != "" || r.StopID != stop.ID || r.StopNumber != stop.Number {
		return nil, false
	}
	return r.Lines, true
}

// flush writes buffered outcomes. Checkpoint failures only cost resumability,
// so they are logged and the crawl goes on.
func (b *Builder) flush(ctx context.Context, pending []db.StopResult) {
	if b.checkpoint == nil || len(pending) == 0 {
		return
	}
	// Outcomes gathered before a cancellation are still worth keeping.
	if err := b.checkpoint.SaveResults(context.WithoutCancel(ctx), b.runID, pending); err != nil {
		b.logger.Warn("failed to write checkpoint",
			zap.String("run_id", b.runID),
			zap.Int("results", len(pending)),
			zap.Error(err),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
