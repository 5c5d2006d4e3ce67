package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/raterudder/solarwatch/pkg/timeseries"
	"github.com/raterudder/solarwatch/pkg/types"
)

// defaultRangeDays is the window used when a range isn't given.
const defaultRangeDays = 7

// defaultTrendDays is the trend window used when days isn't given.
const defaultTrendDays = 30

// store returns the snapshot in service.
func (s *Server) store() (*timeseries.Store, error) {
	st := s.holder.Current()
	if st == nil {
		return nil, fmt.Errorf("%w: time series not loaded yet", types.ErrDataUnavailable)
	}
	return st, nil
}

func parseDateParam(r *http.Request, name string) (types.Date, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return types.Date{}, false, nil
	}
	d, err := types.ParseDate(v)
	if err != nil {
		return types.Date{}, false, fmt.Errorf("%w: %s: %w", types.ErrInvalidArgument, name, err)
	}
	return d, true, nil
}

// parseThreshold reads the threshold parameter, defaulting to the plant's.
func (s *Server) parseThreshold(r *http.Request) (float64, error) {
	threshold := s.plant.AlertThresholdPct
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: threshold: %w", types.ErrInvalidArgument, err)
		}
		threshold = f
	}
	if err := types.ValidateThreshold(threshold); err != nil {
		return 0, err
	}
	return threshold, nil
}

// parseRange reads start and end, defaulting to the defaultRangeDays ending
// at the last day of st, and clamps the result to the store's bounds.
func parseRange(r *http.Request, st *timeseries.Store) (types.Date, types.Date, error) {
	start, hasStart, err := parseDateParam(r, "start")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}
	end, hasEnd, err := parseDateParam(r, "end")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}
	if !hasEnd {
		if end, err = st.MaxDate(); err != nil {
			return types.Date{}, types.Date{}, err
		}
	}
	if !hasStart {
		start = end.AddDays(-(defaultRangeDays - 1))
	}
	if end.Before(start) {
		return types.Date{}, types.Date{}, fmt.Errorf("%w: end %s is before start %s", types.ErrInvalidRange, end, start)
	}
	if cs, ce, ok := st.Clamp(start, end); ok {
		start, end = cs, ce
	}
	return start, end, nil
}
