package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Fakelatency/ztm-schedule/internal/config"
	"github.com/Fakelatency/ztm-schedule/internal/lineindex"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

var testIndex = lineindex.Index{
	"N21": {
		{ID: "7009", Number: "01", Name: "Centrum", Direction: "Bemowo"},
		{ID: "7009", Number: "02", Name: "Centrum", Direction: "Gocław"},
		{ID: "5001", Number: "03", Name: "Kercelak", Direction: "Bemowo"},
		{ID: "7009", Number: "01", Name: "Centrum", Direction: "Bemowo"},
	},
	"523": {
		{ID: "7009", Number: "02", Name: "Centrum", Direction: "Stare Bemowo"},
	},
}

// newTestBoard serves body for every timetable query and records the
// requested lines.
func newTestBoard(t *testing.T, body string) (*board, *[]string) {
	t.Helper()
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dbtimetable_get", r.URL.Path)
		requested = append(requested, r.URL.Query().Get("busstopId")+"-"+r.URL.Query().Get("busstopNr")+" "+r.URL.Query().Get("line"))
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		APIKey:              "test-key",
		BaseURL:             srv.URL,
		TimetableResourceID: "timetable-res",
		HTTPTimeout:         5 * time.Second,
	}
	return &board{
		logger: zaptest.NewLogger(t),
		source: ztm.NewClient(zap.NewNop(), cfg),
		now:    func() time.Time { return time.Date(2024, 5, 6, 10, 0, 0, 0, time.Local) },
	}, &requested
}

func runBoard(t *testing.T, b *board, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := b.run(context.Background(), bufio.NewScanner(strings.NewReader(input)), &out, testIndex)
	return out.String(), err
}

func timetable(times ...string) string {
	var rows []string
	for _, tm := range times {
		rows = append(rows, `[{"key": "symbol_2", "value": "7009"}, {"key": "czas", "value": "`+tm+`"}, {"key": "brygada", "value": "1"}]`)
	}
	return `{"result": [` + strings.Join(rows, ",") + `]}`
}

func TestBoard_ShowsUpcomingDepartures(t *testing.T) {
	b, requested := newTestBoard(t, timetable("24:10:00", "07:00:00", "12:30:00", "10:00:00"))

	out, err := runBoard(t, b, "n21\n1\n2\n")
	require.NoError(t, err)

	assert.Contains(t, out, "523, N21")
	assert.Contains(t, out, "Directions for line N21:\n1. Bemowo\n2. Gocław\n")
	// route stops are deduplicated per pole
	assert.Contains(t, out, "1. Centrum 01\n2. Kercelak 03\nChoose a stop: ")
	assert.Contains(t, out, "Departures today (Monday, 06.05.2024):\n10:00:00   12:30:00   24:10:00\n")
	assert.NotContains(t, out, "07:00:00")
	assert.Equal(t, []string{"5001-03 N21"}, *requested)
}

func TestBoard_NoMoreDeparturesToday(t *testing.T) {
	b, _ := newTestBoard(t, timetable("06:00:00", "09:59:59"))

	out, err := runBoard(t, b, "523\n1\n1\n")
	require.NoError(t, err)
	assert.Contains(t, out, "No more departures today.")
}

func TestBoard_NoDepartures(t *testing.T) {
	for name, body := range map[string]string{
		"empty list":     `{"result": []}`,
		"message result": `{"result": "Błędna metoda lub parametry wywołania"}`,
	} {
		t.Run(name, func(t *testing.T) {
			b, _ := newTestBoard(t, body)

			out, err := runBoard(t, b, "523\n1\n1\n")
			require.NoError(t, err)
			assert.Contains(t, out, "No departures for this line at this stop today.")
		})
	}
}

func TestBoard_InvalidChoices(t *testing.T) {
	for name, input := range map[string]string{
		"unknown line":       "999\n",
		"direction too high": "N21\n3\n",
		"direction not int":  "N21\nBemowo\n",
		"stop zero":          "N21\n1\n0\n",
		"no input":           "",
	} {
		t.Run(name, func(t *testing.T) {
			b, requested := newTestBoard(t, timetable("12:00:00"))

			_, err := runBoard(t, b, input)
			assert.Error(t, err)
			assert.Empty(t, *requested)
		})
	}
}

func TestBoard_ServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	b, _ := newTestBoard(t, "")
	b.source = ztm.NewClient(zap.NewNop(), &config.Config{BaseURL: srv.URL, HTTPTimeout: time.Second})

	_, err := runBoard(t, b, "523\n1\n1\n")
	assert.ErrorContains(t, err, "failed to fetch timetable")
}

func TestChoose(t *testing.T) {
	i, err := choose("2", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	for _, answer := range []string{"0", "4", "-1", "x", ""} {
		_, err := choose(answer, 3)
		assert.ErrorIs(t, err, errInvalidChoice, answer)
	}
}
