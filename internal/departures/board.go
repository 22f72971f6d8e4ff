// Package departures turns the line index and timetable answers into what a
// rider wants to see: directions, the stops along one, and the next departures.
package departures

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Fakelatency/ztm-schedule/internal/lineindex"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

// DefaultPerRow is how many times FormatBoard prints on one row.
const DefaultPerRow = 6

// DateLayout is the header date format of the board.
const DateLayout = "Monday, 02.01.2006"

// Directions returns the distinct non-empty direction labels of a line, sorted.
func Directions(idx lineindex.Index, line string) ([]string, error) {
	list, err := idx.Stops(line)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, s := range list {
		if s.Direction == "" || seen[s.Direction] {
			continue
		}
		seen[s.Direction] = true
		dirs = append(dirs, s.Direction)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// RouteStops returns the stops of line heading towards direction, one entry
// per pole, in index order. An empty direction returns every pole of the line.
func RouteStops(idx lineindex.Index, line, direction string) ([]stops.Stop, error) {
	list, err := idx.Stops(line)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []stops.Stop
	for _, s := range list {
		if direction != "" && s.Direction != direction {
			continue
		}
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		out = append(out, s)
	}
	return out, nil
}

// Times extracts the departure times.
func Times(deps []ztm.Departure) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.Time)
	}
	return out
}

// Upcoming keeps the departures at or after now's time of day, sorted by time.
// Times from 24:00:00 on belong to the same service day after midnight and are
// always kept. Times that do not parse are dropped.
func Upcoming(deps []ztm.Departure, now time.Time) []ztm.Departure {
	nowSecs := now.Hour()*3600 + now.Minute()*60 + now.Second()

	type dep struct {
		ztm.Departure
		secs int
	}
	var kept []dep
	for _, d := range deps {
		secs, ok := ParseClock(d.Time)
		if !ok {
			continue
		}
		if secs >= 24*3600 || secs >= nowSecs {
			kept = append(kept, dep{d, secs})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].secs < kept[j].secs })

	out := make([]ztm.Departure, len(kept))
	for i, d := range kept {
		out[i] = d.Departure
	}
	return out
}

// ParseClock parses HH:MM[:SS] into seconds since the start of the service
// day. Hours may exceed 23.
func ParseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, false
		}
		vals[i] = v
	}
	if vals[1] > 59 || vals[2] > 59 {
		return 0, false
	}
	return vals[0]*3600 + vals[1]*60 + vals[2], true
}

// FormatBoard lays times out perRow to a line, three spaces apart.
func FormatBoard(times []string, perRow int) []string {
	if perRow <= 0 {
		perRow = DefaultPerRow
	}

	var rows []string
	for i := 0; i < len(times); i += perRow {
		end := i + perRow
		if end > len(times) {
			end = len(times)
		}
		rows = append(rows, strings.Join(times[i:end], "   "))
	}
	return rows
}
