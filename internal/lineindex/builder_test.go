package lineindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Fakelatency/ztm-schedule/internal/db"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

// fakeSource answers from a fixed table keyed by "id-number".
type fakeSource struct {
	lines   map[string][]string
	errs    map[string]error
	calls   []string
	onQuery func(key string)
}

func (f *fakeSource) LinesForStop(ctx context.Context, stopID, stopNumber string) ([]string, error) {
	key := stopID + "-" + stopNumber
	f.calls = append(f.calls, key)
	if f.onQuery != nil {
		f.onQuery(key)
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.lines[key], nil
}

type memCheckpoint struct {
	saved map[int]db.StopResult
	fail  bool
}

func (m *memCheckpoint) SaveResults(ctx context.Context, runID string, results []db.StopResult) error {
	if m.fail {
		return errors.New("disk full")
	}
	if m.saved == nil {
		m.saved = map[int]db.StopResult{}
	}
	for _, r := range results {
		m.saved[r.Position] = r
	}
	return nil
}

func newTestBuilder(t *testing.T, src LineSource) (*Builder, *int) {
	t.Helper()
	b := NewBuilder(zaptest.NewLogger(t), src, Options{Delay: time.Second, ProgressEvery: 2, CheckpointEvery: 2})
	sleeps := 0
	b.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return ctx.Err()
	}
	return b, &sleeps
}

var (
	stop1 = stops.Stop{ID: "1", Number: "01", Name: "Plac Wilsona", Direction: "Marymont"}
	stop2 = stops.Stop{ID: "2", Number: "02", Name: "Dworzec Gdański", Direction: "Centrum"}
	stop3 = stops.Stop{ID: "3", Number: "03", Name: "Świętokrzyska", Direction: "Rondo ONZ"}
	stop4 = stops.Stop{ID: "4", Number: "04", Name: "Żerań FSO", Direction: "Żerań Wschodni"}
	stop5 = stops.Stop{ID: "5", Number: "05", Name: "Kępa Potocka", Direction: ""}
)

func TestBuild_EndToEndExample(t *testing.T) {
	src := &fakeSource{lines: map[string][]string{
		"1-01": {"5"},
		"2-02": {},
		"3-03": {"5", "18"},
	}}
	b, sleeps := newTestBuilder(t, src)

	res, err := b.Build(context.Background(), []stops.Stop{stop1, stop2, stop3})
	require.NoError(t, err)

	assert.Equal(t, Index{
		"5":  {stop1, stop3},
		"18": {stop3},
	}, res.Index)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, []string{"1-01", "2-02", "3-03"}, src.calls)
	assert.Equal(t, 3, *sleeps, "delay after every successful query")
}

func TestBuild_NullEntriesIgnored(t *testing.T) {
	src := &fakeSource{lines: map[string][]string{
		"1-01": {"", "105", ""},
		"2-02": {""},
	}}
	b, _ := newTestBuilder(t, src)

	res, err := b.Build(context.Background(), []stops.Stop{stop1, stop2})
	require.NoError(t, err)

	assert.Equal(t, Index{"105": {stop1}}, res.Index)
	_, hasEmpty := res.Index[""]
	assert.False(t, hasEmpty)
}

func TestBuild_NilResultSkipped(t *testing.T) {
	src := &fakeSource{lines: map[string][]string{"2-02": {"N31"}}}
	b, _ := newTestBuilder(t, src)

	res, err := b.Build(context.Background(), []stops.Stop{stop1, stop2})
	require.NoError(t, err)
	assert.Equal(t, Index{"N31": {stop2}}, res.Index)
}

func TestBuild_FailureIsolation(t *testing.T) {
	src := &fakeSource{
		lines: map[string][]string{
			"1-01": {"10"},
			"2-02": {"10", "20"},
			"3-03": {"10"},
			"4-04": {"20"},
			"5-05": {"10"},
		},
		errs: map[string]error{"3-03": errors.New("connection reset")},
	}
	b, sleeps := newTestBuilder(t, src)

	res, err := b.Build(context.Background(), []stops.Stop{stop1, stop2, stop3, stop4, stop5})
	require.NoError(t, err)

	assert.Equal(t, Index{
		"10": {stop1, stop2, stop5},
		"20": {stop2, stop4},
	}, res.Index)
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, src.calls, 5)
	assert.Equal(t, 4, *sleeps, "no delay after a failed query")
}

func TestBuild_DuplicatesKept(t *testing.T) {
	src := &fakeSource{lines: map[string][]string{"1-01": {"5"}}}
	b, _ := newTestBuilder(t, src)

	res, err := b.Build(context.Background(), []stops.Stop{stop1, stop1})
	require.NoError(t, err)
	assert.Equal(t, Index{"5": {stop1, stop1}}, res.Index)
}

func TestBuild_InversionMatchesSource(t *testing.T) {
	all := []stops.Stop{stop1, stop2, stop3, stop4, stop5}
	src := &fakeSource{lines: map[string][]string{
		"1-01": {"1", "2", "3"},
		"2-02": {"2"},
		"3-03": {"3", "", "1"},
		"4-04": {},
		"5-05": {"2", "3"},
	}}
	b, _ := newTestBuilder(t, src)

	res, err := b.Build(context.Background(), all)
	require.NoError(t, err)

	for _, s := range all {
		reported := map[string]bool{}
		for _, l := range src.lines[s.Key()] {
			if l != "" {
				reported[l] = true
			}
		}
		for line := range reported {
			assert.Contains(t, res.Index, line)
		}
		for line, list := range res.Index {
			assert.Equal(t, reported[line], contains(list, s), "stop %s under line %s", s.Key(), line)
		}
	}
}

func contains(list []stops.Stop, s stops.Stop) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func TestBuild_CancelledReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{lines: map[string][]string{"1-01": {"5"}, "2-02": {"5"}}}
	src.onQuery = func(key string) {
		if key == "2-02" {
			cancel()
		}
	}
	b, _ := newTestBuilder(t, src)

	res, err := b.Build(ctx, []stops.Stop{stop1, stop2, stop3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, []string{"1-01", "2-02"}, src.calls)
}

func TestBuild_RecordsCheckpoints(t *testing.T) {
	src := &fakeSource{
		lines: map[string][]string{"1-01": {"5", ""}, "3-03": {"18"}},
		errs:  map[string]error{"2-02": errors.New("503")},
	}
	store := &memCheckpoint{}
	b, _ := newTestBuilder(t, src)
	b.WithCheckpoint(store, "run-1", nil)

	_, err := b.Build(context.Background(), []stops.Stop{stop1, stop2, stop3})
	require.NoError(t, err)

	require.Len(t, store.saved, 3)
	assert.Equal(t, []string{"5"}, store.saved[0].Lines)
	assert.Equal(t, "503", store.saved[1].Err)
	assert.Equal(t, []string{"18"}, store.saved[2].Lines)
	assert.Equal(t, "3", store.saved[2].StopID)
}

func TestBuild_CheckpointFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{lines: map[string][]string{"1-01": {"5"}}}
	b, _ := newTestBuilder(t, src)
	b.WithCheckpoint(&memCheckpoint{fail: true}, "run-1", nil)

	res, err := b.Build(context.Background(), []stops.Stop{stop1, stop2, stop3})
	require.NoError(t, err)
	assert.Equal(t, Index{"5": {stop1}}, res.Index)
}

func TestBuild_ReplaysCheckpoint(t *testing.T) {
	src := &fakeSource{lines: map[string][]string{
		"2-02": {"7"},
		"3-03": {"5"},
	}}
	replay := map[int]db.StopResult{
		0: {Position: 0, StopID: "1", StopNumber: "01", Lines: []string{"5"}},
		// failed before, asked again
		1: {Position: 1, StopID: "2", StopNumber: "02", Err: "timeout"},
		// directory changed since, asked again
		2: {Position: 2, StopID: "9", StopNumber: "99", Lines: []string{"1"}},
	}
	b, _ := newTestBuilder(t, src)
	b.WithCheckpoint(&memCheckpoint{}, "run-1", replay)

	res, err := b.Build(context.Background(), []stops.Stop{stop1, stop2, stop3})
	require.NoError(t, err)

	assert.Equal(t, []string{"2-02", "3-03"}, src.calls)
	assert.Equal(t, 1, res.Replayed)
	assert.Equal(t, Index{
		"5": {stop1, stop3},
		"7": {stop2},
	}, res.Index)
}

func TestBuild_LogsProgressEveryNthStop(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	clock := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	src := &fakeSource{
		lines: map[string][]string{"1-01": {"5"}, "2-02": {"5"}, "4-04": {"18"}, "5-05": {"18"}},
		errs:  map[string]error{"3-03": errors.New("timeout")},
		// every query takes two seconds
		onQuery: func(string) { clock = clock.Add(2 * time.Second) },
	}
	b := NewBuilder(zap.New(core), src, Options{ProgressEvery: 2})
	b.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	b.now = func() time.Time { return clock }

	_, err := b.Build(context.Background(), []stops.Stop{stop1, stop2, stop3, stop4, stop5})
	require.NoError(t, err)

	progress := logs.FilterMessage("processing stops").All()
	require.Len(t, progress, 2)

	first := progress[0].ContextMap()
	assert.Equal(t, int64(2), first["processed"])
	assert.Equal(t, int64(5), first["total"])
	assert.Equal(t, 6*time.Second, first["remaining"])
	assert.Equal(t, int64(1), first["lines"])
	assert.Equal(t, int64(0), first["failed"])

	second := progress[1].ContextMap()
	assert.Equal(t, int64(4), second["processed"])
	assert.Equal(t, 2*time.Second, second["remaining"])
	assert.Equal(t, int64(2), second["lines"])
	assert.Equal(t, int64(1), second["failed"])
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestIndex_SaveLoadKeepsNonASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.json")
	idx := Index{
		"N31": {stop3, stop4},
		"Z-1": {{ID: "7", Number: "01", Name: "Łomianki Ośrodek Zdrowia", Direction: "Dąbrowa Leśna"}},
	}

	require.NoError(t, idx.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Łomianki Ośrodek Zdrowia")
	assert.Contains(t, string(raw), "Żerań Wschodni")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)
	assert.Equal(t, []string{"N31", "Z-1"}, loaded.Lines())

	list, err := loaded.Stops("N31")
	require.NoError(t, err)
	assert.Equal(t, []stops.Stop{stop3, stop4}, list)

	_, err = loaded.Stops("999")
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(zap.NewNop(), &fakeSource{}, Options{})
	assert.Equal(t, 10, b.opts.ProgressEvery)
	assert.Equal(t, 50, b.opts.CheckpointEvery)
}
