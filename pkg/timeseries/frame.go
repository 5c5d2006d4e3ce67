package timeseries

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/solarwatch/pkg/types"
)

// Columns names the source fields that make up the series contract.
type Columns struct {
	// Timestamp is the index column of tabular sources. Empty means the first
	// column.
	Timestamp string
	Actual    string
	Predicted string
	ClearSky  string
}

// DefaultColumns matches the prediction export of the model notebook.
var DefaultColumns = Columns{
	Actual:    "generation_kwh",
	Predicted: "ml_predicted_kwh",
	ClearSky:  "clearsky_expected_kwh",
}

func (c Columns) required() []string {
	return []string{c.Actual, c.Predicted, c.ClearSky}
}

// Frame is a columnar table as delivered by a Source.
type Frame struct {
	Index []time.Time
	// Naive is true when Index values carry no zone. Naive values are
	// wall-clock times stored in UTC.
	Naive   bool
	Columns map[string][]float64
}

// recordsFrame lays records out under the given column names.
func recordsFrame(records []types.HourlyRecord, cols Columns, naive bool) Frame {
	f := Frame{
		Index: make([]time.Time, len(records)),
		Naive: naive,
		Columns: map[string][]float64{
			cols.Actual:    make([]float64, len(records)),
			cols.Predicted: make([]float64, len(records)),
			cols.ClearSky:  make([]float64, len(records)),
		},
	}
	for i, r := range records {
		f.Index[i] = r.Timestamp
		f.Columns[cols.Actual][i] = r.ActualKWH
		f.Columns[cols.Predicted][i] = r.PredictedKWH
		f.Columns[cols.ClearSky][i] = r.ClearSkyKWH
	}
	return f
}

var nanValue = math.NaN()

var (
	awareLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// ParseTimestamp parses an index value. naive is true when the value has no
// zone offset, in which case the returned time is a UTC wall-clock value.
func ParseTimestamp(s string) (t time.Time, naive bool, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseValue parses a numeric cell. Empty and NaN-like cells are absent.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return nanValue, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatValue(v float64) string {
	if types.Missing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
