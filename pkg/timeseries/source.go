package timeseries

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/raterudder/solarwatch/pkg/storage"
	"github.com/raterudder/solarwatch/pkg/types"
)

// Source delivers the raw table a Store is built from.
type Source interface {
	// Frame returns the table. Failures must wrap ErrDataUnavailable,
	// ErrSchema or ErrTimezoneMismatch.
	Frame(ctx context.Context, cols Columns) (Frame, error)
	String() string
}

type memorySource struct {
	frame Frame
}

// Memory serves a prebuilt frame.
func Memory(f Frame) Source {
	return memorySource{frame: f}
}

func (m memorySource) String() string {
	return "memory"
}

func (m memorySource) Frame(ctx context.Context, cols Columns) (Frame, error) {
	f := Frame{
		Index:   slices.Clone(m.frame.Index),
		Naive:   m.frame.Naive,
		Columns: make(map[string][]float64, len(m.frame.Columns)),
	}
	for name, values := range m.frame.Columns {
		f.Columns[name] = slices.Clone(values)
	}
	return f, nil
}

type recordsSource struct {
	records []types.HourlyRecord
}

// Records serves zoned records under whatever column names are requested.
func Records(records ...types.HourlyRecord) Source {
	return recordsSource{records: slices.Clone(records)}
}

func (r recordsSource) String() string {
	return "records"
}

func (r recordsSource) Frame(ctx context.Context, cols Columns) (Frame, error) {
	return recordsFrame(r.records, cols, false), nil
}

type databaseSource struct {
	db      storage.Database
	plantID string
}

// Database reads every stored record of a plant.
func Database(db storage.Database, plantID string) Source {
	return databaseSource{db: db, plantID: plantID}
}

func (d databaseSource) String() string {
	return "database:" + d.plantID
}

func (d databaseSource) Frame(ctx context.Context, cols Columns) (Frame, error) {
	records, err := d.db.GetHourlyRecords(ctx, d.plantID, time.Time{}, time.Time{})
	if err != nil {
		if errors.Is(err, types.ErrSchema) {
			return Frame{}, err
		}
		return Frame{}, fmt.Errorf("%w: %s: %w", types.ErrDataUnavailable, d, err)
	}
	if len(records) == 0 {
		return Frame{}, fmt.Errorf("%w: no records stored for plant %s", types.ErrDataUnavailable, d.plantID)
	}
	return recordsFrame(records, cols, false), nil
}

// columnNames lists the frame's columns in a stable order for error messages.
func columnNames(f Frame) []string {
	return slices.Sorted(maps.Keys(f.Columns))
}
