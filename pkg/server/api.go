package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/raterudder/solarwatch/pkg/types"
)

type storeBounds struct {
	MinDate  *types.Date `json:"minDate,omitempty"`
	MaxDate  *types.Date `json:"maxDate,omitempty"`
	Days     int         `json:"days"`
	Rows     int         `json:"rows"`
	Naive    bool        `json:"naive"`
	Source   string      `json:"source"`
	LoadedAt time.Time   `json:"loadedAt"`
}

func (s *Server) handlePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}

	bounds := storeBounds{
		Days:     len(st.Dates()),
		Rows:     st.Len(),
		Naive:    st.Naive(),
		Source:   st.Source(),
		LoadedAt: st.LoadedAt(),
	}
	if lo, err := st.MinDate(); err == nil {
		bounds.MinDate = &lo
	}
	if hi, err := st.MaxDate(); err == nil {
		bounds.MaxDate = &hi
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, struct {
		Plant  types.Plant `json:"plant"`
		Bounds storeBounds `json:"bounds"`
	}{s.plant, bounds})
}

const (
	statusAlert  = "alert"
	statusNormal = "normal"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threshold, err := s.parseThreshold(r)
	if err != nil {
		writeError(ctx, w, "invalid threshold", err)
		return
	}
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}
	latest, err := st.MaxDate()
	if err != nil {
		writeError(ctx, w, "failed to get latest day", err)
		return
	}

	m, err := s.engine.DailyMetrics(ctx, st, latest, threshold)
	if err != nil {
		writeError(ctx, w, "failed to compute daily metrics", err)
		return
	}
	week, err := s.engine.PeriodSummary(ctx, st, latest.AddDays(-(defaultRangeDays - 1)), latest)
	if err != nil {
		writeError(ctx, w, "failed to compute period summary", err)
		return
	}

	status := statusNormal
	if m != nil && m.IsAnomalous {
		status = statusAlert
	}
	s.cacheControl(w, latest)
	writeJSON(w, struct {
		Status string              `json:"status"`
		Latest *types.DailyMetrics `json:"latest"`
		Week   types.PeriodSummary `json:"week"`
	}{status, m, week})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threshold, err := s.parseThreshold(r)
	if err != nil {
		writeError(ctx, w, "invalid threshold", err)
		return
	}
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}
	d, ok, err := parseDateParam(r, "date")
	if err != nil {
		writeError(ctx, w, "invalid date", err)
		return
	}
	if !ok {
		if d, err = st.MaxDate(); err != nil {
			writeError(ctx, w, "failed to get latest day", err)
			return
		}
	}

	m, err := s.engine.DailyMetrics(ctx, st, d, threshold)
	if err != nil {
		writeError(ctx, w, "failed to compute daily metrics", err)
		return
	}
	if m == nil {
		writeJSONError(w, "no data", http.StatusNotFound)
		return
	}
	s.cacheControl(w, d)
	writeJSON(w, m)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threshold, err := s.parseThreshold(r)
	if err != nil {
		writeError(ctx, w, "invalid threshold", err)
		return
	}
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}
	end, ok, err := parseDateParam(r, "end")
	if err != nil {
		writeError(ctx, w, "invalid end", err)
		return
	}
	if !ok {
		if end, err = st.MaxDate(); err != nil {
			writeError(ctx, w, "failed to get latest day", err)
			return
		}
	}
	days := defaultTrendDays
	if v := r.URL.Query().Get("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil {
			writeJSONError(w, "invalid days: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	trend, err := s.engine.Trend(ctx, st, end, days, threshold)
	if err != nil {
		writeError(ctx, w, "failed to compute trend", err)
		return
	}
	if trend == nil {
		trend = []types.DailyMetrics{}
	}
	s.cacheControl(w, end)
	writeJSON(w, trend)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threshold, err := s.parseThreshold(r)
	if err != nil {
		writeError(ctx, w, "invalid threshold", err)
		return
	}
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}

	days, err := s.engine.AnomalousDays(ctx, st, threshold)
	if err != nil {
		writeError(ctx, w, "failed to compute anomalous days", err)
		return
	}
	if days == nil {
		days = []types.AnomalousDay{}
	}
	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, struct {
		Days    []types.AnomalousDay `json:"days"`
		Summary types.AnomalySummary `json:"summary"`
	}{days, s.engine.SummarizeAnomalies(days)})
}

type classifiedResidual struct {
	types.ResidualPoint
	Class types.ResidualClass `json:"class"`
}

func (s *Server) handleResiduals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threshold, err := s.parseThreshold(r)
	if err != nil {
		writeError(ctx, w, "invalid threshold", err)
		return
	}
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}
	start, end, err := parseRange(r, st)
	if err != nil {
		writeError(ctx, w, "invalid range", err)
		return
	}

	points, err := s.engine.ResidualPercentSeries(ctx, st, start, end)
	if err != nil {
		writeError(ctx, w, "failed to compute residuals", err)
		return
	}
	out := make([]classifiedResidual, len(points))
	for i, p := range points {
		out[i] = classifiedResidual{ResidualPoint: p, Class: s.engine.ClassifyResidual(p.ResidualPct, threshold)}
	}
	s.cacheControl(w, end)
	writeJSON(w, out)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}
	start, end, err := parseRange(r, st)
	if err != nil {
		writeError(ctx, w, "invalid range", err)
		return
	}

	sum, err := s.engine.PeriodSummary(ctx, st, start, end)
	if err != nil {
		writeError(ctx, w, "failed to compute period summary", err)
		return
	}
	s.cacheControl(w, end)
	writeJSON(w, sum)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}
	start, end, err := parseRange(r, st)
	if err != nil {
		writeError(ctx, w, "invalid range", err)
		return
	}

	rows, err := st.RowsInRange(start, end)
	if err != nil {
		writeError(ctx, w, "failed to get rows", err)
		return
	}
	out := []types.HourlyRecord{}
	for rec := range rows {
		out = append(out, rec)
	}
	s.cacheControl(w, end)
	writeJSON(w, out)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.store()
	if err != nil {
		writeError(ctx, w, "failed to get store", err)
		return
	}
	start, end, err := parseRange(r, st)
	if err != nil {
		writeError(ctx, w, "invalid range", err)
		return
	}

	perf, err := s.engine.ModelPerformance(ctx, st, start, end)
	if err != nil {
		writeError(ctx, w, "failed to compute model performance", err)
		return
	}
	s.cacheControl(w, end)
	writeJSON(w, perf)
}
