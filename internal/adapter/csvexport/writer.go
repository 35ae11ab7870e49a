// Package csvexport writes selected event dates to a flat delimited file for
// the downstream multivariate analysis.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/AnurovaPrykhodko/Atmospheric-ocean-coupling-analysis-extreme-wave-event/internal/domain"
)

// Writer renders event records as CSV: one row per flagged date, one column
// per tracked series, optionally followed by the extreme-location
// coordinates of each series.
type Writer struct {
	columns      []string
	includeCells bool
}

// NewWriter creates a Writer with a fixed column order. columns are series
// names; the date and location label columns are always present.
func NewWriter(columns []string, includeCells bool) *Writer {
	return &Writer{columns: columns, includeCells: includeCells}
}

// WriteFile writes the records to path, creating or truncating it.
func (w *Writer) WriteFile(path string, records []domain.EventRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export to %s: %w", path, err)
	}
	if err := w.Write(f, records); err != nil {
		f.Close()
		return fmt.Errorf("export to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export to %s: %w", path, err)
	}
	return nil
}

// Write renders the records to out.
func (w *Writer) Write(out io.Writer, records []domain.EventRecord) error {
	cw := csv.NewWriter(out)

	header := []string{"date", "location"}
	header = append(header, w.columns...)
	if w.includeCells {
		for _, c := range w.columns {
			header = append(header, c+"_lat", c+"_lon")
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.Date.Format("2006-01-02"), rec.Location)
		for _, c := range w.columns {
			v, ok := rec.Values[c]
			if !ok {
				return fmt.Errorf("record %s is missing series %s", rec.Date.Format("2006-01-02"), c)
			}
			row = append(row, formatValue(v))
		}
		if w.includeCells {
			for _, c := range w.columns {
				cell := rec.Cells[c]
				row = append(row, formatValue(cell.Lat), formatValue(cell.Lon))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FileExporter binds a Writer to a destination path, satisfying the
// pipeline's Exporter seam.
type FileExporter struct {
	writer *Writer
	path   string
}

// NewFileExporter creates an exporter writing to path.
func NewFileExporter(path string, columns []string, includeCells bool) *FileExporter {
	return &FileExporter{writer: NewWriter(columns, includeCells), path: path}
}

// Export writes the records to the configured path.
func (e *FileExporter) Export(records []domain.EventRecord) error {
	return e.writer.WriteFile(e.path, records)
}
