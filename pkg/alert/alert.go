// Package alert publishes anomalous days to downstream consumers.
package alert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/types"
)

// Event announces one anomalous day.
type Event struct {
	ID               string     `json:"id"`
	Plant            string     `json:"plant"`
	Date             types.Date `json:"date"`
	PerformanceRatio float64    `json:"performanceRatio"`
	ActualKWH        float64    `json:"actualKWH"`
	PredictedKWH     float64    `json:"predictedKWH"`
	DeficitKWH       float64    `json:"deficitKWH"`
	ThresholdPct     float64    `json:"thresholdPct"`
	DetectedAt       time.Time  `json:"detectedAt"`
}

// EventID is stable for a plant and date so consumers can deduplicate
// across restarts.
func EventID(plant string, d types.Date) string {
	sum := sha256.Sum256([]byte(plant + "|" + d.String()))
	return hex.EncodeToString(sum[:])
}

// NewEvent builds the event for an anomalous day.
func NewEvent(plant string, day types.AnomalousDay, detectedAt time.Time) Event {
	return Event{
		ID:               EventID(plant, day.Date),
		Plant:            plant,
		Date:             day.Date,
		PerformanceRatio: day.Metrics.PerformanceRatio,
		ActualKWH:        day.Metrics.ActualTotal,
		PredictedKWH:     day.Metrics.PredictedTotal,
		DeficitKWH:       day.Metrics.DeficitKWH,
		ThresholdPct:     day.Metrics.ThresholdPct,
		DetectedAt:       detectedAt.UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// LogPublisher writes events to the context logger. It is used when no
// brokers are configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		log.Ctx(ctx).WarnContext(
			ctx,
			"anomalous day",
			slog.String("id", e.ID),
			slog.String("plant", e.Plant),
			slog.String("date", e.Date.String()),
			slog.Float64("performanceRatio", e.PerformanceRatio),
			slog.Float64("deficitKWH", e.DeficitKWH),
			slog.Float64("thresholdPct", e.ThresholdPct),
		)
	}
	return nil
}

func (LogPublisher) Close() error {
	return nil
}
