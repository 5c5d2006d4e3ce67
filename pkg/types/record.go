package types

import (
	"encoding/json"
	"math"
	"time"
)

// HourlyRecord is one row of the plant's hourly time series.
// Absent values (an hour that hasn't elapsed yet, an hour without a prediction)
// are NaN.
type HourlyRecord struct {
	Timestamp    time.Time
	ActualKWH    float64
	PredictedKWH float64
	ClearSkyKWH  float64
}

// Missing reports whether v represents an absent value.
func Missing(v float64) bool {
	return math.IsNaN(v)
}

type hourlyRecordJSON struct {
	Timestamp    time.Time `json:"timestamp"`
	ActualKWH    *float64  `json:"actualKWH"`
	PredictedKWH *float64  `json:"predictedKWH"`
	ClearSkyKWH  *float64  `json:"clearSkyKWH"`
}

func optional(v float64) *float64 {
	if Missing(v) {
		return nil
	}
	return &v
}

func fromOptional(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// MarshalJSON encodes absent values as null since JSON has no NaN.
func (r HourlyRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(hourlyRecordJSON{
		Timestamp:    r.Timestamp,
		ActualKWH:    optional(r.ActualKWH),
		PredictedKWH: optional(r.PredictedKWH),
		ClearSkyKWH:  optional(r.ClearSkyKWH),
	})
}

// UnmarshalJSON decodes null values back into NaN.
func (r *HourlyRecord) UnmarshalJSON(b []byte) error {
	var v hourlyRecordJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	r.Timestamp = v.Timestamp
	r.ActualKWH = fromOptional(v.ActualKWH)
	r.PredictedKWH = fromOptional(v.PredictedKWH)
	r.ClearSkyKWH = fromOptional(v.ClearSkyKWH)
	return nil
}
