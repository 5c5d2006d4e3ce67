package main

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/raterudder/solarwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	plant := types.DefaultPlant()
	loc := time.FixedZone("+06", 6*3600)
	last := types.NewDate(2024, time.June, 30)
	now := time.Date(2024, 6, 30, 12, 30, 0, 0, loc)

	records := generate(plant, loc, last, 3, rand.New(rand.NewSource(1)), now)
	require.Len(t, records, 72)
	assert.Equal(t, types.NewDate(2024, time.June, 28), types.DateOf(records[0].Timestamp))
	assert.Equal(t, last, types.DateOf(records[71].Timestamp))

	for i, r := range records {
		if i > 0 {
			assert.Equal(t, time.Hour, r.Timestamp.Sub(records[i-1].Timestamp))
		}
		assert.GreaterOrEqual(t, r.ClearSkyKWH, 0.0)
		assert.LessOrEqual(t, r.ClearSkyKWH, plant.CapacityKWP)
		assert.GreaterOrEqual(t, r.PredictedKWH, 0.0)
		if r.Timestamp.After(now) {
			assert.True(t, math.IsNaN(r.ActualKWH), "future hour %s has an actual", r.Timestamp)
			continue
		}
		assert.LessOrEqual(t, r.ActualKWH, r.ClearSkyKWH)
		if r.Timestamp.Hour() < 6 || r.Timestamp.Hour() > 18 {
			assert.Equal(t, 0.0, r.ActualKWH)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	plant := types.DefaultPlant()
	last := types.NewDate(2024, time.June, 30)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := generate(plant, time.UTC, last, 2, rand.New(rand.NewSource(7)), now)
	b := generate(plant, time.UTC, last, 2, rand.New(rand.NewSource(7)), now)
	assert.Equal(t, a, b)
}
