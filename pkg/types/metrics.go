package types

import "time"

// ResidualPoint is the residual of a single hour.
type ResidualPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	ResidualKWH float64   `json:"residualKWH"`
	ResidualPct float64   `json:"residualPct"`
}

// DailyMetrics is derived on demand from a single day's records and is never
// stored.
type DailyMetrics struct {
	Date Date `json:"date"`

	// Totals
	ActualTotal    float64 `json:"actualTotal"`
	PredictedTotal float64 `json:"predictedTotal"`
	ClearSkyTotal  float64 `json:"clearSkyTotal"`

	// Peaks
	ActualPeak    float64 `json:"actualPeak"`
	PredictedPeak float64 `json:"predictedPeak"`

	// NumHours is the number of records found for the day, normally 24.
	NumHours int `json:"numHours"`

	// Residuals has a point for every hour with an actual or a prediction.
	// The absent side counts as 0.
	Residuals []ResidualPoint `json:"residuals"`

	PerformanceRatio float64 `json:"performanceRatio"` // 0-100+, 0 without a prediction
	ThresholdPct     float64 `json:"thresholdPct"`
	IsAnomalous      bool    `json:"isAnomalous"`

	DeficitKWH      float64 `json:"deficitKWH"`      // predicted - actual
	ExceedsClearSky bool    `json:"exceedsClearSky"` // data quality signal
}

// AnomalousDay pairs a date with the metrics that flagged it.
type AnomalousDay struct {
	Date    Date         `json:"date"`
	Metrics DailyMetrics `json:"metrics"`
}

// AnomalySummary aggregates a list of anomalous days.
type AnomalySummary struct {
	Count               int     `json:"count"`
	AvgPerformanceRatio float64 `json:"avgPerformanceRatio"`
	TotalDeficitKWH     float64 `json:"totalDeficitKWH"`
}

// PeriodSummary holds totals and a single performance ratio for a date range.
type PeriodSummary struct {
	Start            Date    `json:"start"`
	End              Date    `json:"end"`
	NumHours         int     `json:"numHours"`
	ActualTotal      float64 `json:"actualTotal"`
	PredictedTotal   float64 `json:"predictedTotal"`
	ClearSkyTotal    float64 `json:"clearSkyTotal"`
	PerformanceRatio float64 `json:"performanceRatio"`
}

// ModelPerformance holds prediction error statistics over hours with both an
// actual and a predicted value.
type ModelPerformance struct {
	Samples   int     `json:"samples"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	R2        float64 `json:"r2"`
	MAPE      float64 `json:"mape"` // over hours with actual > 0
	MeanError float64 `json:"meanError"`
	StdError  float64 `json:"stdError"`
}

// ResidualClass buckets an hourly residual percentage against the alert
// threshold.
type ResidualClass string

const (
	ResidualClassBelowThreshold ResidualClass = "below_threshold"
	ResidualClassWithin         ResidualClass = "within"
	ResidualClassAbove          ResidualClass = "above"
)
