package timeseries

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarwatch/pkg/storage"
)

// Config selects where the series is loaded from.
type Config struct {
	source         string
	csvPath        string
	plantID        string
	columns        Columns
	reloadInterval time.Duration
	db             storage.Database
}

// Configured registers the time series flags. db backs --source=firestore.
func Configured(db storage.Database) *Config {
	source := lflag.String("source", "csv", "Where to load the hourly series from (available: csv, firestore)")
	csvPath := lflag.String("csv-path", "", "Path of the CSV export when --source=csv")
	tsCol := lflag.String("column-timestamp", DefaultColumns.Timestamp, "CSV column holding the timestamp (empty for the first column)")
	actualCol := lflag.String("column-actual", DefaultColumns.Actual, "CSV column holding the actual energy in kWh")
	predictedCol := lflag.String("column-predicted", DefaultColumns.Predicted, "CSV column holding the predicted energy in kWh")
	clearSkyCol := lflag.String("column-clearsky", DefaultColumns.ClearSky, "CSV column holding the clear-sky energy in kWh")
	plantID := lflag.String("plant-id", "default", "Plant ID the stored series is kept under")
	reloadInterval := lflag.Duration("reload-interval", 0, "How often to reload the series (e.g. 15m). 0 disables reloads.")

	c := &Config{db: db}
	lflag.Do(func() {
		switch *source {
		case "csv":
			if *csvPath == "" {
				panic("--csv-path is required when --source=csv")
			}
		case "firestore":
		default:
			panic(fmt.Sprintf("unknown time series source: %s", *source))
		}
		c.source = *source
		c.csvPath = *csvPath
		c.plantID = *plantID
		c.columns = Columns{
			Timestamp: *tsCol,
			Actual:    *actualCol,
			Predicted: *predictedCol,
			ClearSky:  *clearSkyCol,
		}
		c.reloadInterval = *reloadInterval
	})
	return c
}

// PlantID is the plant the series belongs to.
func (c *Config) PlantID() string {
	return c.plantID
}

// ReloadInterval is how often the series should be rebuilt.
func (c *Config) ReloadInterval() time.Duration {
	return c.reloadInterval
}

// Source returns the configured Source.
func (c *Config) Source() Source {
	if c.source == "firestore" {
		return Database(c.db, c.plantID)
	}
	return CSVFile(c.csvPath)
}

// LoadFunc returns a loader converting zoned series into loc.
func (c *Config) LoadFunc(loc *time.Location) LoadFunc {
	return func(ctx context.Context) (*Store, error) {
		return Load(ctx, c.Source(), WithColumns(c.columns), WithLocation(loc))
	}
}
