package lineindex

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// csvRow is one line/stop pair of the flat export.
type csvRow struct {
	Line       string `csv:"line"`
	StopID     string `csv:"stop_id"`
	StopNumber string `csv:"stop_number"`
	Name       string `csv:"name"`
	Direction  string `csv:"direction"`
}

// WriteCSV writes the index as one row per line and stop, lines sorted and
// stops in index order.
func (idx Index) WriteCSV(w io.Writer) error {
	rows := []*csvRow{}
	for _, line := range idx.Lines() {
		for _, s := range idx[line] {
			rows = append(rows, &csvRow{
				Line:       line,
				StopID:     s.ID,
				StopNumber: s.Number,
				Name:       s.Name,
				Direction:  s.Direction,
			})
		}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// ExportCSV writes the CSV export to path.
func (idx Index) ExportCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := idx.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
