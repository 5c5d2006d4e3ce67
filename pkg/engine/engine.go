// Package engine computes daily aggregates, performance ratios, residuals and
// anomaly flags over an hourly series.
package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"slices"

	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/types"
)

// Series is the read view the engine needs. *timeseries.Store implements it.
type Series interface {
	RowsForDay(d types.Date) (iter.Seq[types.HourlyRecord], error)
	RowsInRange(start, end types.Date) (iter.Seq[types.HourlyRecord], error)
	Dates() []types.Date
}

// Engine is stateless. The threshold is passed to every call that needs it.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// safePercent returns num/den*100, or 0 when den isn't positive.
func safePercent(num, den float64) float64 {
	if den > 0 {
		return num / den * 100
	}
	return 0
}

func isAnomalous(ratio, threshold float64) bool {
	return ratio < 100-threshold
}

// day accumulates one calendar day in a single pass.
type day struct {
	date          types.Date
	m             types.DailyMetrics
	clearSkyHours int
}

func newDay(d types.Date) *day {
	return &day{date: d, m: types.DailyMetrics{Date: d}}
}

func (a *day) add(r types.HourlyRecord) {
	a.m.NumHours++
	if !types.Missing(r.ActualKWH) {
		a.m.ActualTotal += r.ActualKWH
		a.m.ActualPeak = max(a.m.ActualPeak, r.ActualKWH)
	}
	if !types.Missing(r.PredictedKWH) {
		a.m.PredictedTotal += r.PredictedKWH
		a.m.PredictedPeak = max(a.m.PredictedPeak, r.PredictedKWH)
	}
	if !types.Missing(r.ClearSkyKWH) {
		a.m.ClearSkyTotal += r.ClearSkyKWH
		a.clearSkyHours++
	}
	// an absent side counts as 0 so the residuals sum to the totals' difference
	if !types.Missing(r.ActualKWH) || !types.Missing(r.PredictedKWH) {
		actual, predicted := orZero(r.ActualKWH), orZero(r.PredictedKWH)
		residual := actual - predicted
		a.m.Residuals = append(a.m.Residuals, types.ResidualPoint{
			Timestamp:   r.Timestamp,
			ResidualKWH: residual,
			ResidualPct: safePercent(residual, predicted),
		})
	}
}

func orZero(v float64) float64 {
	if types.Missing(v) {
		return 0
	}
	return v
}

func (a *day) finish(threshold float64) types.DailyMetrics {
	m := a.m
	m.PerformanceRatio = safePercent(m.ActualTotal, m.PredictedTotal)
	m.ThresholdPct = threshold
	m.IsAnomalous = isAnomalous(m.PerformanceRatio, threshold)
	m.DeficitKWH = m.PredictedTotal - m.ActualTotal
	m.ExceedsClearSky = a.clearSkyHours > 0 && m.ActualTotal > m.ClearSkyTotal
	return m
}

// groupDays folds rows into per-day metrics, ascending by date. rows must be
// ordered by timestamp.
func groupDays(rows iter.Seq[types.HourlyRecord], threshold float64) []types.DailyMetrics {
	var days []types.DailyMetrics
	var cur *day
	for r := range rows {
		d := types.DateOf(r.Timestamp)
		if cur == nil || !cur.date.Equal(d) {
			if cur != nil {
				days = append(days, cur.finish(threshold))
			}
			cur = newDay(d)
		}
		cur.add(r)
	}
	if cur != nil {
		days = append(days, cur.finish(threshold))
	}
	return days
}

// DailyMetrics summarizes one calendar day. It returns nil, nil when the day
// has no rows.
func (e *Engine) DailyMetrics(ctx context.Context, s Series, d types.Date, threshold float64) (*types.DailyMetrics, error) {
	if err := types.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	rows, err := s.RowsForDay(d)
	if err != nil {
		return nil, err
	}
	a := newDay(d)
	for r := range rows {
		a.add(r)
	}
	if a.m.NumHours == 0 {
		return nil, nil
	}
	m := a.finish(threshold)
	return &m, nil
}

// maxTrendDays caps a trend window at roughly a century, far beyond any series.
const maxTrendDays = 100 * 366

// Trend returns the metrics of the numDays calendar days ending at end,
// ascending. Days without rows are left out.
func (e *Engine) Trend(ctx context.Context, s Series, end types.Date, numDays int, threshold float64) ([]types.DailyMetrics, error) {
	if err := types.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if numDays < 1 {
		return nil, fmt.Errorf("%w: numDays must be at least 1, got %d", types.ErrInvalidArgument, numDays)
	}
	start := end.AddDays(-(min(numDays, maxTrendDays) - 1))
	rows, err := s.RowsInRange(start, end)
	if err != nil {
		return nil, err
	}
	days := groupDays(rows, threshold)
	log.Ctx(ctx).DebugContext(ctx, "computed trend", slog.String("start", start.String()), slog.String("end", end.String()), slog.Int("days", len(days)))
	return days, nil
}

// AnomalousDays returns every anomalous day in the series, most recent first.
func (e *Engine) AnomalousDays(ctx context.Context, s Series, threshold float64) ([]types.AnomalousDay, error) {
	if err := types.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	dates := s.Dates()
	if len(dates) == 0 {
		return nil, nil
	}
	rows, err := s.RowsInRange(dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	var out []types.AnomalousDay
	for _, m := range groupDays(rows, threshold) {
		if m.IsAnomalous {
			out = append(out, types.AnomalousDay{Date: m.Date, Metrics: m})
		}
	}
	slices.Reverse(out)
	log.Ctx(ctx).DebugContext(ctx, "computed anomalous days", slog.Int("days", len(dates)), slog.Int("anomalous", len(out)), slog.Float64("threshold", threshold))
	return out, nil
}

// SummarizeAnomalies reduces a list of anomalous days to headline numbers.
func (e *Engine) SummarizeAnomalies(days []types.AnomalousDay) types.AnomalySummary {
	var sum types.AnomalySummary
	var ratios float64
	for _, d := range days {
		sum.Count++
		ratios += d.Metrics.PerformanceRatio
		sum.TotalDeficitKWH += d.Metrics.DeficitKWH
	}
	if sum.Count > 0 {
		sum.AvgPerformanceRatio = ratios / float64(sum.Count)
	}
	return sum
}

// ResidualPercentSeries returns the hourly residual as a percentage of the
// prediction for every hour in range with a measured actual. Hours without an
// actual (not yet elapsed, or a gap in the data) are left out of the series,
// so it can have fewer points than the range has hours. A missing prediction
// counts as 0, giving a percentage of 0.
func (e *Engine) ResidualPercentSeries(ctx context.Context, s Series, start, end types.Date) ([]types.ResidualPoint, error) {
	rows, err := s.RowsInRange(start, end)
	if err != nil {
		return nil, err
	}
	var out []types.ResidualPoint
	for r := range rows {
		if types.Missing(r.ActualKWH) {
			continue
		}
		predicted := orZero(r.PredictedKWH)
		residual := r.ActualKWH - predicted
		out = append(out, types.ResidualPoint{
			Timestamp:   r.Timestamp,
			ResidualKWH: residual,
			ResidualPct: safePercent(residual, predicted),
		})
	}
	return out, nil
}

// PeriodSummary totals every hour in [start, end].
func (e *Engine) PeriodSummary(ctx context.Context, s Series, start, end types.Date) (types.PeriodSummary, error) {
	rows, err := s.RowsInRange(start, end)
	if err != nil {
		return types.PeriodSummary{}, err
	}
	sum := types.PeriodSummary{Start: start, End: end}
	for r := range rows {
		sum.NumHours++
		if !types.Missing(r.ActualKWH) {
			sum.ActualTotal += r.ActualKWH
		}
		if !types.Missing(r.PredictedKWH) {
			sum.PredictedTotal += r.PredictedKWH
		}
		if !types.Missing(r.ClearSkyKWH) {
			sum.ClearSkyTotal += r.ClearSkyKWH
		}
	}
	sum.PerformanceRatio = safePercent(sum.ActualTotal, sum.PredictedTotal)
	return sum, nil
}

// PeriodPerformance is the ratio of summed actual to summed predicted energy
// over [start, end]. It is not the mean of the daily ratios.
func (e *Engine) PeriodPerformance(ctx context.Context, s Series, start, end types.Date) (float64, error) {
	sum, err := e.PeriodSummary(ctx, s, start, end)
	if err != nil {
		return 0, err
	}
	return sum.PerformanceRatio, nil
}

// ModelPerformance scores the predictions against the actuals over every hour
// in [start, end] where both are present.
func (e *Engine) ModelPerformance(ctx context.Context, s Series, start, end types.Date) (types.ModelPerformance, error) {
	rows, err := s.RowsInRange(start, end)
	if err != nil {
		return types.ModelPerformance{}, err
	}

	var actual, errs []float64
	for r := range rows {
		if types.Missing(r.ActualKWH) || types.Missing(r.PredictedKWH) {
			continue
		}
		actual = append(actual, r.ActualKWH)
		errs = append(errs, r.ActualKWH-r.PredictedKWH)
	}

	var perf types.ModelPerformance
	n := len(actual)
	perf.Samples = n
	if n == 0 {
		return perf, nil
	}

	var meanActual, absSum, sqSum, errSum, pctSum float64
	var pctCount int
	for i, y := range actual {
		meanActual += y
		absSum += math.Abs(errs[i])
		sqSum += errs[i] * errs[i]
		errSum += errs[i]
		if y > 0 {
			pctSum += math.Abs(errs[i] / y)
			pctCount++
		}
	}
	meanActual /= float64(n)

	perf.MAE = absSum / float64(n)
	perf.RMSE = math.Sqrt(sqSum / float64(n))
	perf.MeanError = errSum / float64(n)
	if pctCount > 0 {
		perf.MAPE = pctSum / float64(pctCount) * 100
	}

	var ssTot, devSum float64
	for i, y := range actual {
		ssTot += (y - meanActual) * (y - meanActual)
		devSum += (errs[i] - perf.MeanError) * (errs[i] - perf.MeanError)
	}
	switch {
	case ssTot > 0:
		perf.R2 = 1 - sqSum/ssTot
	case sqSum == 0:
		perf.R2 = 1
	}
	if n > 1 {
		perf.StdError = math.Sqrt(devSum / float64(n-1))
	}
	return perf, nil
}

// ClassifyResidual buckets an hourly residual percentage against the anomaly
// threshold.
func (e *Engine) ClassifyResidual(pct, threshold float64) types.ResidualClass {
	switch {
	case pct < -threshold:
		return types.ResidualClassBelowThreshold
	case pct > 0:
		return types.ResidualClassAbove
	default:
		return types.ResidualClassWithin
	}
}
