package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/config"
	"github.com/Fakelatency/ztm-schedule/internal/departures"
	"github.com/Fakelatency/ztm-schedule/internal/lineindex"
	"github.com/Fakelatency/ztm-schedule/internal/ztm"
)

var errInvalidChoice = errors.New("invalid choice")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	indexFile := flag.String("index", cfg.IndexFile, "Line index written by index-lines")
	flag.Parse()

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	idx, err := lineindex.Load(*indexFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Line index %q not found. Run index-lines first.\n", *indexFile)
			os.Exit(1)
		}
		logger.Fatal("failed to load line index", zap.Error(err))
	}
	fmt.Println("Line index loaded.")

	in := bufio.NewScanner(os.Stdin)
	b := &board{
		logger: logger,
		source: ztm.NewClient(logger, cfg),
		now:    time.Now,
	}
	if err := b.run(context.Background(), in, os.Stdout, idx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// board walks a rider from line to direction to stop and prints what is
// still to leave today.
type board struct {
	logger *zap.Logger
	source ztm.TimetableFetcher
	now    func() time.Time
}

func (b *board) run(ctx context.Context, in *bufio.Scanner, out io.Writer, idx lineindex.Index) error {
	fmt.Fprintln(out, "\nAvailable lines:")
	fmt.Fprintln(out, strings.Join(idx.Lines(), ", "))

	line := strings.ToUpper(ask(in, out, "\nChoose a line: "))
	directions, err := departures.Directions(idx, line)
	if errors.Is(err, lineindex.ErrLineNotFound) {
		return fmt.Errorf("line %q is not in the index", line)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nDirections for line %s:\n", line)
	for i, d := range directions {
		fmt.Fprintf(out, "%d. %s\n", i+1, d)
	}
	di, err := choose(ask(in, out, "Choose a direction: "), len(directions))
	if err != nil {
		return err
	}
	direction := directions[di]

	route, err := departures.RouteStops(idx, line, direction)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nRoute towards %q:\n", direction)
	for i, s := range route {
		fmt.Fprintf(out, "%d. %s %s\n", i+1, s.Name, s.Number)
	}
	si, err := choose(ask(in, out, "Choose a stop: "), len(route))
	if err != nil {
		return err
	}
	stop := route[si]

	fmt.Fprintf(out, "\nFetching timetable for line %s at %s %s...\n", line, stop.Name, stop.Number)
	all, err := b.source.Timetable(ctx, stop.ID, stop.Number, line)
	if errors.Is(err, ztm.ErrUnexpectedResponse) {
		// The API answers "no timetable" with a message instead of a list.
		b.logger.Debug("timetable not available", zap.Error(err))
		all, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch timetable: %w", err)
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "No departures for this line at this stop today.")
		return nil
	}

	now := b.now()
	fmt.Fprintf(out, "\nDepartures today (%s):\n", now.Format(departures.DateLayout))
	upcoming := departures.Upcoming(all, now)
	if len(upcoming) == 0 {
		fmt.Fprintln(out, "No more departures today.")
		return nil
	}
	for _, row := range departures.FormatBoard(departures.Times(upcoming), departures.DefaultPerRow) {
		fmt.Fprintln(out, row)
	}
	return nil
}

func ask(in *bufio.Scanner, out io.Writer, prompt string) string {
	fmt.Fprint(out, prompt)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

// choose maps a 1-based menu answer onto an index into n items.
func choose(answer string, n int) (int, error) {
	i, err := strconv.Atoi(answer)
	if err != nil || i < 1 || i > n {
		return 0, errInvalidChoice
	}
	return i - 1, nil
}
