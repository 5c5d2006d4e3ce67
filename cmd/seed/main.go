package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/storage"
	"github.com/raterudder/solarwatch/pkg/timeseries"
	"github.com/raterudder/solarwatch/pkg/types"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code after storage is closed.
func run() int {
	s := storage.Configured()
	days := lflag.String("seed-days", "90", "Number of days to generate")
	end := lflag.String("seed-end", "", "Last day to generate as YYYY-MM-DD (default today in the plant's zone)")
	output := lflag.String("seed-output", "firestore", "Where to write: firestore or a CSV file path")
	seed := lflag.String("seed-random-seed", "", "Random seed (default the current time)")
	plantID := lflag.String("plant-id", "default", "Plant ID to store the series under")
	lflag.Configure()
	if err := log.Setup("solarwatch-seed"); err != nil {
		panic(err)
	}

	ctx := context.Background()
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	plant := types.DefaultPlant()
	loc, err := plant.Location()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load plant timezone", slog.Any("error", err))
		return 1
	}

	numDays, err := strconv.Atoi(*days)
	if err != nil || numDays < 1 {
		log.Ctx(ctx).ErrorContext(ctx, "invalid --seed-days", slog.String("value", *days))
		return 1
	}

	now := time.Now().In(loc)
	last := types.DateOf(now)
	if *end != "" {
		if last, err = types.ParseDate(*end); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "invalid --seed-end", slog.Any("error", err))
			return 1
		}
	}

	randSeed := now.UnixNano()
	if *seed != "" {
		if randSeed, err = strconv.ParseInt(*seed, 10, 64); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "invalid --seed-random-seed", slog.Any("error", err))
			return 1
		}
	}
	rng := rand.New(rand.NewSource(randSeed))

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data", slog.Int("days", numDays), slog.String("end", last.String()), slog.String("output", *output))
	records := generate(plant, loc, last, numDays, rng, now)

	if *output == "firestore" {
		latest, err := s.GetLatestHourlyRecordTime(ctx, *plantID)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to read latest hourly record", slog.Any("error", err))
			return 1
		}
		if !latest.IsZero() {
			log.Ctx(ctx).InfoContext(ctx, "plant already has records, overlapping hours will be replaced", slog.Time("latest", latest))
		}
		if err := s.UpsertHourlyRecords(ctx, *plantID, records); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to upsert hourly records", slog.Any("error", err))
			return 1
		}
	} else {
		if err := writeCSV(*output, records); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to write csv", slog.Any("error", err))
			return 1
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "seeded mock data", slog.Int("records", len(records)))
	return 0
}

func writeCSV(path string, records []types.HourlyRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := timeseries.WriteCSV(f, records, timeseries.DefaultColumns); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const (
	// fraction of capacity reached at solar noon under a clear sky
	clearSkyPeakFactor = 0.8
	solarNoon          = 12.0
	daylightSpread     = 2.5
	// chance a day is degraded by a fault
	faultChance = 0.1
)

// generate builds hourly records for the numDays ending at last. Hours after
// now have no measured actual yet.
func generate(plant types.Plant, loc *time.Location, last types.Date, numDays int, rng *rand.Rand, now time.Time) []types.HourlyRecord {
	var records []types.HourlyRecord
	for d := last.AddDays(-(numDays - 1)); !d.After(last); d = d.AddDays(1) {
		weather := 0.55 + 0.4*rng.Float64()
		output := weather
		if rng.Float64() < faultChance {
			output *= 0.5
		}
		// the model tracks the weather but not faults
		bias := 1 + 0.05*rng.NormFloat64()

		midnight := d.Midnight(loc)
		for h := range 24 {
			ts := midnight.Add(time.Duration(h) * time.Hour)
			hour := float64(ts.Hour())

			var clearSky float64
			if hour >= 6 && hour <= 18 {
				dist := hour - solarNoon
				clearSky = plant.CapacityKWP * clearSkyPeakFactor * math.Exp(-(dist*dist)/(2*daylightSpread*daylightSpread))
			}
			actual := clearSky * output * (1 + 0.05*rng.NormFloat64())
			predicted := clearSky * weather * bias * (1 + 0.05*rng.NormFloat64())

			rec := types.HourlyRecord{
				Timestamp:    ts,
				ActualKWH:    round(math.Max(0, math.Min(actual, clearSky))),
				PredictedKWH: round(math.Max(0, predicted)),
				ClearSkyKWH:  round(clearSky),
			}
			if ts.After(now) {
				rec.ActualKWH = math.NaN()
			}
			records = append(records, rec)
		}
	}
	return records
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
