package timeseries

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/types"
)

// Store holds the canonical hourly table. It is immutable once loaded, so
// any number of goroutines may query it concurrently.
type Store struct {
	records []types.HourlyRecord
	dates   []types.Date
	// loc is nil when the series is naive.
	loc      *time.Location
	source   string
	loadedAt time.Time
}

type options struct {
	columns  Columns
	location *time.Location
	now      func() time.Time
}

// Option customizes Load.
type Option func(*options)

// WithColumns overrides the source column names.
func WithColumns(c Columns) Option {
	return func(o *options) {
		o.columns = c
	}
}

// WithLocation converts zoned timestamps into loc. Without it the zone of the
// first record is used. Naive series stay naive.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// Load builds a Store from src. It never returns an empty Store in place of
// a failure.
func Load(ctx context.Context, src Source, opts ...Option) (*Store, error) {
	o := options{columns: DefaultColumns, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	frame, err := src.Frame(ctx, o.columns)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range o.columns.required() {
		values, ok := frame.Columns[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if len(values) != len(frame.Index) {
			return nil, fmt.Errorf("%w: column %s has %d values for %d timestamps", types.ErrSchema, name, len(values), len(frame.Index))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s is missing required columns %s (has %s)", types.ErrSchema, src, strings.Join(missing, ", "), strings.Join(columnNames(frame), ", "))
	}

	s := &Store{
		records:  make([]types.HourlyRecord, len(frame.Index)),
		source:   src.String(),
		loadedAt: o.now(),
	}
	if !frame.Naive && len(frame.Index) > 0 {
		s.loc = o.location
		if s.loc == nil {
			s.loc = frame.Index[0].Location()
		}
	}

	actual := frame.Columns[o.columns.Actual]
	predicted := frame.Columns[o.columns.Predicted]
	clearSky := frame.Columns[o.columns.ClearSky]
	for i, ts := range frame.Index {
		if s.loc != nil {
			ts = ts.In(s.loc)
		} else {
			ts = time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC)
		}
		s.records[i] = types.HourlyRecord{
			Timestamp:    ts,
			ActualKWH:    actual[i],
			PredictedKWH: predicted[i],
			ClearSkyKWH:  clearSky[i],
		}
	}
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].Timestamp.Before(s.records[j].Timestamp)
	})

	for _, r := range s.records {
		d := types.DateOf(r.Timestamp)
		if n := len(s.dates); n == 0 || !s.dates[n-1].Equal(d) {
			s.dates = append(s.dates, d)
		}
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"loaded time series",
		slog.String("source", s.source),
		slog.Int("rows", len(s.records)),
		slog.Int("days", len(s.dates)),
		slog.Bool("naive", s.Naive()),
		slog.String("zone", s.zoneName()),
	)
	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Naive reports whether the series' timestamps carry no zone.
func (s *Store) Naive() bool {
	return s.loc == nil
}

// Location returns the series' zone, or nil when naive.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Source describes where the store was loaded from.
func (s *Store) Source() string {
	return s.source
}

// LoadedAt is when the store was built.
func (s *Store) LoadedAt() time.Time {
	return s.loadedAt
}

func (s *Store) zoneName() string {
	if s.loc == nil {
		return "naive"
	}
	return s.loc.String()
}

// Dates returns the distinct calendar dates present, ascending.
func (s *Store) Dates() []types.Date {
	return slices.Clone(s.dates)
}

// MinDate returns the first calendar date of the series.
func (s *Store) MinDate() (types.Date, error) {
	if len(s.dates) == 0 {
		return types.Date{}, fmt.Errorf("%w: no records loaded from %s", types.ErrEmptyStore, s.source)
	}
	return s.dates[0], nil
}

// MaxDate returns the last calendar date of the series.
func (s *Store) MaxDate() (types.Date, error) {
	if len(s.dates) == 0 {
		return types.Date{}, fmt.Errorf("%w: no records loaded from %s", types.ErrEmptyStore, s.source)
	}
	return s.dates[len(s.dates)-1], nil
}

// All returns every record in timestamp order.
func (s *Store) All() iter.Seq[types.HourlyRecord] {
	return slices.Values(s.records)
}

// RowsForDay returns the records whose calendar date in the series' zone is
// d, ordered by timestamp.
func (s *Store) RowsForDay(d types.Date) (iter.Seq[types.HourlyRecord], error) {
	return s.RowsInRange(d, d)
}

// RowsInRange returns the records from start 00:00 through the whole of end,
// ordered by timestamp. Dates outside the series bounds simply match nothing.
func (s *Store) RowsInRange(start, end types.Date) (iter.Seq[types.HourlyRecord], error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", types.ErrInvalidRange, end, start)
	}
	from, err := s.localize(start)
	if err != nil {
		return nil, err
	}
	to, err := s.localize(end.AddDays(1))
	if err != nil {
		return nil, err
	}
	return slices.Values(s.span(from, to)), nil
}

// Clamp intersects [start, end] with the series bounds. ok is false when the
// range doesn't overlap the series at all.
func (s *Store) Clamp(start, end types.Date) (types.Date, types.Date, bool) {
	if len(s.dates) == 0 || end.Before(start) {
		return start, end, false
	}
	lo, hi := s.dates[0], s.dates[len(s.dates)-1]
	if end.Before(lo) || start.After(hi) {
		return start, end, false
	}
	if start.Before(lo) {
		start = lo.In(start.Location())
	}
	if end.After(hi) {
		end = hi.In(end.Location())
	}
	return start, end, true
}

// span returns the records with from <= timestamp < to.
func (s *Store) span(from, to time.Time) []types.HourlyRecord {
	lo := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(s.records), func(i int) bool {
		return !s.records[i].Timestamp.Before(to)
	})
	if hi < lo {
		hi = lo
	}
	return s.records[lo:hi:hi]
}

// localize resolves the start of d against the series' zone. Every range
// query goes through here so the naive/zoned policy is the same everywhere.
func (s *Store) localize(d types.Date) (time.Time, error) {
	pinned := d.Location()
	if s.loc == nil {
		if pinned != nil {
			return time.Time{}, fmt.Errorf("%w: date %s is pinned to %s but the series is naive", types.ErrTimezoneMismatch, d, pinned)
		}
		return d.Midnight(time.UTC), nil
	}
	if pinned != nil && !sameZone(pinned, s.loc, d) {
		return time.Time{}, fmt.Errorf("%w: date %s is pinned to %s but the series is in %s", types.ErrTimezoneMismatch, d, pinned, s.loc)
	}
	return d.Midnight(s.loc), nil
}

func sameZone(a, b *time.Location, d types.Date) bool {
	if a == b {
		return true
	}
	if a.String() != b.String() {
		return false
	}
	an, ao := d.Midnight(a).Zone()
	bn, bo := d.Midnight(b).Zone()
	return an == bn && ao == bo
}
