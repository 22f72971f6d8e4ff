// Package lineindex builds and reads the line index: for every line, the stop
// poles it serves, derived by asking the API which lines serve each stop.
package lineindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Fakelatency/ztm-schedule/internal/static"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

// ErrLineNotFound is returned when a line has no entry in the index.
var ErrLineNotFound = errors.New("line not found in index")

// Index maps a line identifier to the stops it serves, in crawl order.
// A line is only present once at least one stop reported it. Stop lists are
// append-only and may contain the same pole more than once.
type Index map[string][]stops.Stop

// Add appends stop to the list of line, creating the entry on first sighting.
func (idx Index) Add(line string, stop stops.Stop) {
	idx[line] = append(idx[line], stop)
}

// Lines returns the line identifiers in sorted order.
func (idx Index) Lines() []string {
	lines := make([]string, 0, len(idx))
	for line := range idx {
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

// Stops returns the stops of a line.
func (idx Index) Stops(line string) ([]stops.Stop, error) {
	list, ok := idx[line]
	if !ok {
		return nil, fmt.Errorf("%q: %w", line, ErrLineNotFound)
	}
	return list, nil
}

// Save writes the whole index to path, replacing any previous file.
func (idx Index) Save(path string) error {
	return static.WriteJSON(path, idx)
}

// Load reads an index written by Save.
func Load(path string) (Index, error) {
	idx := Index{}
	if err := static.ReadJSON(path, &idx); err != nil {
		return nil, fmt.Errorf("failed to load line index: %w", err)
	}
	return idx, nil
}
