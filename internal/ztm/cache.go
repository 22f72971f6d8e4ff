package ztm

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TimetableFetcher is anything that can answer a timetable query.
type TimetableFetcher interface {
	Timetable(ctx context.Context, stopID, stopNumber, line string) ([]Departure, error)
}

// TimetableCache remembers timetable answers for the rest of the service day.
// Entries are keyed by date, so yesterday's answers are never served and age
// out of the LRU on their own. Errors are not cached.
type TimetableCache struct {
	source TimetableFetcher
	cache  *lru.Cache[string, []Departure]
	now    func() time.Time
}

// NewTimetableCache wraps source with an LRU of size entries.
func NewTimetableCache(source TimetableFetcher, size int) (*TimetableCache, error) {
	cache, err := lru.New[string, []Departure](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create timetable cache: %w", err)
	}
	return &TimetableCache{source: source, cache: cache, now: time.Now}, nil
}

// Timetable returns the cached answer for today, querying source on a miss.
func (c *TimetableCache) Timetable(ctx context.Context, stopID, stopNumber, line string) ([]Departure, error) {
	key := c.now().Format("2006-01-02") + "|" + stopID + "|" + stopNumber + "|" + line
	if deps, ok := c.cache.Get(key); ok {
		return deps, nil
	}

	deps, err := c.source.Timetable(ctx, stopID, stopNumber, line)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, deps)
	return deps, nil
}

// Len reports the number of cached answers.
func (c *TimetableCache) Len() int {
	return c.cache.Len()
}
