package timeseries

import (
	"context"
	"iter"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/raterudder/solarwatch/pkg/storage/storagemock"
	"github.com/raterudder/solarwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var utc6 = time.FixedZone("+06", 6*3600)

func hourly(start time.Time, n int) []types.HourlyRecord {
	out := make([]types.HourlyRecord, n)
	for i := range out {
		out[i] = types.HourlyRecord{
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			ActualKWH:    float64(i),
			PredictedKWH: float64(i),
			ClearSkyKWH:  float64(i),
		}
	}
	return out
}

// collector drains a row query, failing t on error.
func collector(t *testing.T) func(iter.Seq[types.HourlyRecord], error) []types.HourlyRecord {
	return func(rows iter.Seq[types.HourlyRecord], err error) []types.HourlyRecord {
		t.Helper()
		require.NoError(t, err)
		var out []types.HourlyRecord
		for r := range rows {
			out = append(out, r)
		}
		return out
	}
}

func TestRowsInRange(t *testing.T) {
	ctx := context.Background()
	// 2024-05-31 22:00 through 2024-06-02 02:00 local
	s, err := Load(ctx, Records(hourly(time.Date(2024, 5, 31, 22, 0, 0, 0, utc6), 29)...))
	require.NoError(t, err)

	d := types.NewDate(2024, time.June, 1)
	collect := collector(t)

	t.Run("LocalDayBoundaries", func(t *testing.T) {
		rows := collect(s.RowsInRange(d, d))
		require.Len(t, rows, 24)
		assert.True(t, rows[0].Timestamp.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, utc6)))
		assert.True(t, rows[23].Timestamp.Equal(time.Date(2024, 6, 1, 23, 0, 0, 0, utc6)))
		for _, r := range rows {
			assert.Equal(t, 1, r.Timestamp.Day(), "timestamps are reported in the series' zone")
		}
	})

	t.Run("SingleDayMatchesRowsForDay", func(t *testing.T) {
		for _, day := range []types.Date{d.AddDays(-1), d, d.AddDays(1), d.AddDays(7)} {
			a := collect(s.RowsInRange(day, day))
			b := collect(s.RowsForDay(day))
			assert.Equal(t, a, b, day.String())
		}
	})

	t.Run("Ordered", func(t *testing.T) {
		rows := collect(s.RowsInRange(d.AddDays(-1), d.AddDays(1)))
		require.Len(t, rows, 29)
		for i := 1; i < len(rows); i++ {
			assert.True(t, rows[i-1].Timestamp.Before(rows[i].Timestamp))
		}
	})

	t.Run("Restartable", func(t *testing.T) {
		rows, err := s.RowsForDay(d)
		require.NoError(t, err)
		assert.Len(t, collect(rows, nil), 24)
		assert.Len(t, collect(rows, nil), 24)
	})

	t.Run("OutOfBoundsClampsToIntersection", func(t *testing.T) {
		rows := collect(s.RowsInRange(types.NewDate(2024, time.January, 1), d))
		assert.Len(t, rows, 26)

		rows = collect(s.RowsInRange(types.NewDate(2025, time.January, 1), types.NewDate(2025, time.January, 2)))
		assert.Empty(t, rows)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		_, err := s.RowsInRange(d, d.AddDays(-1))
		assert.ErrorIs(t, err, types.ErrInvalidRange)
	})

	t.Run("PinnedSameZone", func(t *testing.T) {
		rows := collect(s.RowsForDay(d.In(utc6)))
		assert.Len(t, rows, 24)
	})

	t.Run("PinnedOtherZone", func(t *testing.T) {
		_, err := s.RowsForDay(d.In(time.UTC))
		assert.ErrorIs(t, err, types.ErrTimezoneMismatch)
	})

	t.Run("Bounds", func(t *testing.T) {
		lo, err := s.MinDate()
		require.NoError(t, err)
		hi, err := s.MaxDate()
		require.NoError(t, err)
		assert.Equal(t, types.NewDate(2024, time.May, 31), lo)
		assert.Equal(t, types.NewDate(2024, time.June, 2), hi)
		assert.Len(t, s.Dates(), 3)
	})

	t.Run("Clamp", func(t *testing.T) {
		start, end, ok := s.Clamp(types.NewDate(2024, time.January, 1), types.NewDate(2024, time.December, 31))
		require.True(t, ok)
		assert.Equal(t, types.NewDate(2024, time.May, 31), start)
		assert.Equal(t, types.NewDate(2024, time.June, 2), end)

		_, _, ok = s.Clamp(types.NewDate(2025, time.January, 1), types.NewDate(2025, time.January, 5))
		assert.False(t, ok)
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("ConvertsToLocation", func(t *testing.T) {
		// 18:00Z is midnight in UTC+6
		s, err := Load(ctx, Records(hourly(time.Date(2024, 5, 31, 17, 0, 0, 0, time.UTC), 2)...), WithLocation(utc6))
		require.NoError(t, err)
		assert.Equal(t, utc6, s.Location())
		assert.Equal(t, []types.Date{types.NewDate(2024, time.May, 31), types.NewDate(2024, time.June, 1)}, s.Dates())
	})

	t.Run("SortsRecords", func(t *testing.T) {
		records := hourly(time.Date(2024, 6, 1, 0, 0, 0, 0, utc6), 5)
		records[0], records[4] = records[4], records[0]
		s, err := Load(ctx, Records(records...))
		require.NoError(t, err)
		var prev time.Time
		for r := range s.All() {
			assert.True(t, prev.IsZero() || prev.Before(r.Timestamp))
			prev = r.Timestamp
		}
	})

	t.Run("NaiveSeries", func(t *testing.T) {
		in := "timestamp,generation_kwh,ml_predicted_kwh,clearsky_expected_kwh\n2024-06-01 00:00:00,1,2,3\n2024-06-01 23:00:00,1,2,3\n2024-06-02 00:00:00,1,2,3\n"
		f, err := ReadCSV(strings.NewReader(in), DefaultColumns)
		require.NoError(t, err)
		s, err := Load(ctx, Memory(f), WithLocation(utc6))
		require.NoError(t, err)
		assert.True(t, s.Naive(), "naive series stay naive")
		assert.Nil(t, s.Location())

		d := types.NewDate(2024, time.June, 1)
		collect := collector(t)
		assert.Len(t, collect(s.RowsForDay(d)), 2)

		_, err = s.RowsForDay(d.In(utc6))
		assert.ErrorIs(t, err, types.ErrTimezoneMismatch)
	})

	t.Run("MissingColumns", func(t *testing.T) {
		f := Frame{
			Index:   []time.Time{time.Date(2024, 6, 1, 0, 0, 0, 0, utc6)},
			Columns: map[string][]float64{"generation_kwh": {1}, "ml_predicted_kwh": {2}},
		}
		_, err := Load(ctx, Memory(f))
		assert.ErrorIs(t, err, types.ErrSchema)
		assert.ErrorContains(t, err, "clearsky_expected_kwh")
	})

	t.Run("CustomColumns", func(t *testing.T) {
		cols := Columns{Actual: "a", Predicted: "p", ClearSky: "c"}
		f := Frame{
			Index:   []time.Time{time.Date(2024, 6, 1, 12, 0, 0, 0, utc6)},
			Columns: map[string][]float64{"a": {1}, "p": {2}, "c": {3}, "extra": {4}},
		}
		s, err := Load(ctx, Memory(f), WithColumns(cols))
		require.NoError(t, err)
		for r := range s.All() {
			assert.Equal(t, 1.0, r.ActualKWH)
			assert.Equal(t, 2.0, r.PredictedKWH)
			assert.Equal(t, 3.0, r.ClearSkyKWH)
		}
	})

	t.Run("EmptyStore", func(t *testing.T) {
		s, err := Load(ctx, Records())
		require.NoError(t, err)
		assert.Equal(t, 0, s.Len())
		_, err = s.MinDate()
		assert.ErrorIs(t, err, types.ErrEmptyStore)
		_, err = s.MaxDate()
		assert.ErrorIs(t, err, types.ErrEmptyStore)
	})

	t.Run("Database", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		records := hourly(time.Date(2024, 6, 1, 0, 0, 0, 0, utc6), 3)
		records[1].ActualKWH = math.NaN()
		db.On("GetHourlyRecords", mock.Anything, "plant-1", time.Time{}, time.Time{}).Return(records, nil)

		s, err := Load(ctx, Database(db, "plant-1"), WithLocation(utc6))
		require.NoError(t, err)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, "database:plant-1", s.Source())
		db.AssertExpectations(t)
	})

	t.Run("DatabaseEmpty", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetHourlyRecords", mock.Anything, "plant-1", time.Time{}, time.Time{}).Return([]types.HourlyRecord{}, nil)
		_, err := Load(ctx, Database(db, "plant-1"))
		assert.ErrorIs(t, err, types.ErrDataUnavailable)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetHourlyRecords", mock.Anything, "plant-1", time.Time{}, time.Time{}).Return(nil, assert.AnError)
		_, err := Load(ctx, Database(db, "plant-1"))
		assert.ErrorIs(t, err, types.ErrDataUnavailable)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("DatabaseSchema", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("GetHourlyRecords", mock.Anything, "plant-1", time.Time{}, time.Time{}).Return(nil, types.ErrSchema)
		_, err := Load(ctx, Database(db, "plant-1"))
		assert.ErrorIs(t, err, types.ErrSchema)
		assert.NotErrorIs(t, err, types.ErrDataUnavailable)
	})
}
