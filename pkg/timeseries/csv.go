package timeseries

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/raterudder/solarwatch/pkg/types"
)

type csvFile struct {
	path string
}

// CSVFile reads a header-prefixed CSV file such as the one written by
// pandas' to_csv on the prediction export.
func CSVFile(path string) Source {
	return csvFile{path: path}
}

func (c csvFile) String() string {
	return "csv:" + c.path
}

func (c csvFile) Frame(ctx context.Context, cols Columns) (Frame, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: failed to open %s: %w", types.ErrDataUnavailable, c.path, err)
	}
	defer f.Close()
	return ReadCSV(f, cols)
}

// ReadCSV parses a CSV table into a Frame. Columns other than the index and
// the three series columns are ignored.
func ReadCSV(r io.Reader, cols Columns) (Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Frame{}, fmt.Errorf("%w: source has no header row", types.ErrSchema)
	}
	if err != nil {
		return Frame{}, fmt.Errorf("%w: failed to read header: %w", types.ErrDataUnavailable, err)
	}
	header = slices.Clone(header)
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	indexCol := 0
	if cols.Timestamp != "" {
		indexCol = slices.Index(header, cols.Timestamp)
		if indexCol < 0 {
			return Frame{}, fmt.Errorf("%w: missing timestamp column %q", types.ErrSchema, cols.Timestamp)
		}
	}

	positions := make(map[string]int, 3)
	var missing []string
	for _, name := range cols.required() {
		i := slices.Index(header, name)
		if i < 0 {
			missing = append(missing, name)
			continue
		}
		positions[name] = i
	}
	if len(missing) > 0 {
		return Frame{}, fmt.Errorf("%w: missing required columns %s", types.ErrSchema, strings.Join(missing, ", "))
	}

	frame := Frame{Columns: make(map[string][]float64, len(positions))}
	for name := range positions {
		frame.Columns[name] = nil
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Frame{}, fmt.Errorf("%w: failed to read line %d: %w", types.ErrDataUnavailable, line, err)
		}

		ts, naive, err := ParseTimestamp(row[indexCol])
		if err != nil {
			return Frame{}, fmt.Errorf("%w: line %d: %w", types.ErrSchema, line, err)
		}
		if len(frame.Index) == 0 {
			frame.Naive = naive
		} else if naive != frame.Naive {
			return Frame{}, fmt.Errorf("%w: line %d mixes naive and zoned timestamps (%s)", types.ErrTimezoneMismatch, line, row[indexCol])
		}
		frame.Index = append(frame.Index, ts)

		for name, i := range positions {
			v, err := parseValue(row[i])
			if err != nil {
				return Frame{}, fmt.Errorf("%w: line %d column %s: %w", types.ErrSchema, line, name, err)
			}
			frame.Columns[name] = append(frame.Columns[name], v)
		}
	}
	return frame, nil
}

// WriteCSV writes records in the format read by ReadCSV, using zoned RFC3339
// timestamps.
func WriteCSV(w io.Writer, records []types.HourlyRecord, cols Columns) error {
	tsName := cols.Timestamp
	if tsName == "" {
		tsName = "timestamp"
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{tsName, cols.Actual, cols.Predicted, cols.ClearSky}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		err := cw.Write([]string{
			r.Timestamp.Format(time.RFC3339),
			formatValue(r.ActualKWH),
			formatValue(r.PredictedKWH),
			formatValue(r.ClearSkyKWH),
		})
		if err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
