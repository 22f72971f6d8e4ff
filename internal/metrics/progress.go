package metrics

import (
	"fmt"
	"time"
)

// Progress tracks a fixed-size sequential job and extrapolates how long the
// rest of it will take from the mean time spent per item so far.
type Progress struct {
	total     int
	processed int
	perItem   *WelfordState
	last      time.Time
	now       func() time.Time
}

// NewProgress starts tracking a job of total items.
func NewProgress(total int) *Progress {
	return NewProgressWithClock(total, time.Now)
}

// NewProgressWithClock is NewProgress with a caller-supplied clock.
func NewProgressWithClock(total int, now func() time.Time) *Progress {
	return &Progress{
		total:   total,
		perItem: &WelfordState{},
		last:    now(),
		now:     now,
	}
}

// Done records that one more item finished. The time since the previous call
// (or since start) is attributed to that item.
func (p *Progress) Done() {
	t := p.now()
	p.perItem.UpdateDuration(t.Sub(p.last))
	p.last = t
	p.processed++
}

// Skip records an item that finished without doing work (e.g. replayed from a
// checkpoint). It counts towards processed but not towards the time estimate.
func (p *Progress) Skip() {
	p.last = p.now()
	p.processed++
}

// Processed returns how many items have finished.
func (p *Progress) Processed() int { return p.processed }

// Total returns the job size.
func (p *Progress) Total() int { return p.total }

// Remaining estimates the time left: mean seconds per item times items left.
func (p *Progress) Remaining() time.Duration {
	left := p.total - p.processed
	if left <= 0 || p.perItem.GetCount() == 0 {
		return 0
	}
	secs := p.perItem.GetMean() * float64(left)
	return time.Duration(secs * float64(time.Second)).Round(time.Second)
}

// String renders "processed/total, ~remaining left".
func (p *Progress) String() string {
	return fmt.Sprintf("%d/%d, ~%s left", p.processed, p.total, p.Remaining())
}
