package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarwatch/pkg/types"
)

// ErrNoDatabase is returned by every call when --storage-provider is none.
var ErrNoDatabase = errors.New("no storage provider configured")

// Database defines the interface for persisting a plant's hourly series.
type Database interface {
	// UpsertHourlyRecords adds or replaces records keyed by their hour.
	UpsertHourlyRecords(ctx context.Context, plantID string, records []types.HourlyRecord) error
	// GetHourlyRecords returns records with start <= timestamp < end, ordered by
	// timestamp. A zero start or end leaves that side unbounded.
	GetHourlyRecords(ctx context.Context, plantID string, start, end time.Time) ([]types.HourlyRecord, error)
	// GetLatestHourlyRecordTime returns the zero time if nothing is stored.
	GetLatestHourlyRecordTime(ctx context.Context, plantID string) (time.Time, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "none", "Storage provider to use (available: firestore, none)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "none", "":
			p.Database = noDatabase{}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// noDatabase fails every call so a CSV-only deployment needs no cloud client.
type noDatabase struct{}

func (noDatabase) UpsertHourlyRecords(context.Context, string, []types.HourlyRecord) error {
	return ErrNoDatabase
}

func (noDatabase) GetHourlyRecords(context.Context, string, time.Time, time.Time) ([]types.HourlyRecord, error) {
	return nil, ErrNoDatabase
}

func (noDatabase) GetLatestHourlyRecordTime(context.Context, string) (time.Time, error) {
	return time.Time{}, ErrNoDatabase
}

func (noDatabase) Close() error {
	return nil
}
