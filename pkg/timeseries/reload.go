package timeseries

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/observability"
)

// Holder publishes the current Store. Readers always get one whole snapshot.
type Holder struct {
	current atomic.Pointer[Store]
}

// NewHolder returns a Holder serving s.
func NewHolder(s *Store) *Holder {
	h := &Holder{}
	h.current.Store(s)
	return h
}

// Current returns the snapshot in service.
func (h *Holder) Current() *Store {
	return h.current.Load()
}

// Swap installs s and returns the previous snapshot.
func (h *Holder) Swap(s *Store) *Store {
	return h.current.Swap(s)
}

// LoadFunc builds a fresh Store.
type LoadFunc func(ctx context.Context) (*Store, error)

// Reloader periodically rebuilds the Store and swaps it into a Holder.
type Reloader struct {
	holder   *Holder
	load     LoadFunc
	interval time.Duration
	clock    clockwork.Clock
	metrics  *observability.Metrics

	mu          sync.Mutex
	subscribers []func(context.Context, *Store)
}

// NewReloader creates a Reloader. An interval <= 0 disables periodic reloads.
func NewReloader(h *Holder, load LoadFunc, interval time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Reloader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reloader{
		holder:   h,
		load:     load,
		interval: interval,
		clock:    clock,
		metrics:  metrics,
	}
}

// Subscribe registers fn to run after every successful swap.
func (r *Reloader) Subscribe(fn func(context.Context, *Store)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

// Reload loads once. On failure the current snapshot stays in service.
func (r *Reloader) Reload(ctx context.Context) error {
	s, err := r.load(ctx)
	if err != nil {
		r.metrics.Reloads.WithLabelValues("failure").Inc()
		log.Ctx(ctx).ErrorContext(ctx, "failed to reload time series, keeping previous snapshot", slog.Any("error", err))
		return err
	}
	r.holder.Swap(s)

	r.metrics.Reloads.WithLabelValues("success").Inc()
	r.metrics.StoreRows.Set(float64(s.Len()))
	r.metrics.StoreDays.Set(float64(len(s.dates)))
	r.metrics.StoreLoadedTimestamp.Set(float64(r.clock.Now().Unix()))

	r.mu.Lock()
	subscribers := r.subscribers
	r.mu.Unlock()
	for _, fn := range subscribers {
		fn(ctx, s)
	}
	return nil
}

// Run reloads every interval until ctx is done.
func (r *Reloader) Run(ctx context.Context) error {
	if r.interval <= 0 {
		log.Ctx(ctx).InfoContext(ctx, "time series reload disabled")
		return nil
	}
	log.Ctx(ctx).InfoContext(ctx, "starting time series reloader", slog.Duration("interval", r.interval))

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			// errors are already logged and the old snapshot kept
			_ = r.Reload(ctx)
		}
	}
}
