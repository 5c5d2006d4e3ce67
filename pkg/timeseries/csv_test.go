package timeseries

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raterudder/solarwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportCSV = `timestamp,generation_kwh,ml_predicted_kwh,clearsky_expected_kwh,ghi,temp_c
2024-06-01 00:00:00+06:00,0,0,0,0,27.1
2024-06-01 12:00:00+06:00,40.5,42,55.25,810,33.4
2024-06-01 13:00:00+06:00,,41,54,790,33.9
2024-06-02 00:00:00+06:00,0,0,0,0,27.0
`

func TestReadCSV(t *testing.T) {
	t.Run("Export", func(t *testing.T) {
		f, err := ReadCSV(strings.NewReader(exportCSV), DefaultColumns)
		require.NoError(t, err)
		assert.False(t, f.Naive)
		require.Len(t, f.Index, 4)
		_, offset := f.Index[1].Zone()
		assert.Equal(t, 6*3600, offset)
		assert.Len(t, f.Columns, 3, "extra columns are ignored")
		assert.Equal(t, 40.5, f.Columns["generation_kwh"][1])
		assert.True(t, math.IsNaN(f.Columns["generation_kwh"][2]), "empty cell is absent")
		assert.Equal(t, 55.25, f.Columns["clearsky_expected_kwh"][1])
	})

	t.Run("NamedIndexColumn", func(t *testing.T) {
		in := "generation_kwh,ml_predicted_kwh,clearsky_expected_kwh,ts\n1,2,3,2024-06-01T10:00:00Z\n"
		cols := DefaultColumns
		cols.Timestamp = "ts"
		f, err := ReadCSV(strings.NewReader(in), cols)
		require.NoError(t, err)
		require.Len(t, f.Index, 1)
		assert.True(t, f.Index[0].Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("Naive", func(t *testing.T) {
		in := "timestamp,generation_kwh,ml_predicted_kwh,clearsky_expected_kwh\n2024-06-01 10:00:00,1,2,3\n2024-06-01 11:00:00,nan,2,3\n"
		f, err := ReadCSV(strings.NewReader(in), DefaultColumns)
		require.NoError(t, err)
		assert.True(t, f.Naive)
		assert.Equal(t, 10, f.Index[0].Hour())
		assert.True(t, math.IsNaN(f.Columns["generation_kwh"][1]))
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		f, err := ReadCSV(strings.NewReader("timestamp,generation_kwh,ml_predicted_kwh,clearsky_expected_kwh\n"), DefaultColumns)
		require.NoError(t, err)
		assert.Empty(t, f.Index)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""), DefaultColumns)
		assert.ErrorIs(t, err, types.ErrSchema)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("timestamp,generation_kwh,ml_predicted_kwh\n2024-06-01T10:00:00Z,1,2\n"), DefaultColumns)
		assert.ErrorIs(t, err, types.ErrSchema)
		assert.ErrorContains(t, err, "clearsky_expected_kwh")
	})

	t.Run("MissingTimestampColumn", func(t *testing.T) {
		cols := DefaultColumns
		cols.Timestamp = "when"
		_, err := ReadCSV(strings.NewReader(exportCSV), cols)
		assert.ErrorIs(t, err, types.ErrSchema)
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("timestamp,generation_kwh,ml_predicted_kwh,clearsky_expected_kwh\nyesterday,1,2,3\n"), DefaultColumns)
		assert.ErrorIs(t, err, types.ErrSchema)
	})

	t.Run("BadNumber", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("timestamp,generation_kwh,ml_predicted_kwh,clearsky_expected_kwh\n2024-06-01T10:00:00Z,lots,2,3\n"), DefaultColumns)
		assert.ErrorIs(t, err, types.ErrSchema)
	})

	t.Run("MixedNaiveAndZoned", func(t *testing.T) {
		in := "timestamp,generation_kwh,ml_predicted_kwh,clearsky_expected_kwh\n2024-06-01T10:00:00Z,1,2,3\n2024-06-01 11:00:00,1,2,3\n"
		_, err := ReadCSV(strings.NewReader(in), DefaultColumns)
		assert.ErrorIs(t, err, types.ErrTimezoneMismatch)
	})
}

func TestCSVFile(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(ctx, CSVFile(filepath.Join(t.TempDir(), "nope.csv")))
		assert.ErrorIs(t, err, types.ErrDataUnavailable)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		zone := time.FixedZone("", 6*3600)
		records := []types.HourlyRecord{
			{Timestamp: time.Date(2024, 6, 1, 11, 0, 0, 0, zone), ActualKWH: 10, PredictedKWH: 11, ClearSkyKWH: 12},
			{Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, zone), ActualKWH: math.NaN(), PredictedKWH: 13.5, ClearSkyKWH: 14},
		}
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, records, DefaultColumns))

		path := filepath.Join(t.TempDir(), "export.csv")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

		s, err := Load(ctx, CSVFile(path))
		require.NoError(t, err)
		require.Equal(t, 2, s.Len())
		var got []types.HourlyRecord
		for r := range s.All() {
			got = append(got, r)
		}
		assert.True(t, got[0].Timestamp.Equal(records[0].Timestamp))
		assert.Equal(t, 11.0, got[0].PredictedKWH)
		assert.True(t, math.IsNaN(got[1].ActualKWH))
		assert.Equal(t, 13.5, got[1].PredictedKWH)
		assert.Equal(t, "csv:"+path, s.Source())
	})
}
