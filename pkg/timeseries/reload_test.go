package timeseries

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raterudder/solarwatch/pkg/observability"
	"github.com/raterudder/solarwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloader(t *testing.T) {
	ctx := context.Background()

	first, err := Load(ctx, Records(hourly(time.Date(2024, 6, 1, 0, 0, 0, 0, utc6), 24)...))
	require.NoError(t, err)
	second, err := Load(ctx, Records(hourly(time.Date(2024, 6, 1, 0, 0, 0, 0, utc6), 48)...))
	require.NoError(t, err)

	t.Run("SwapAndNotify", func(t *testing.T) {
		h := NewHolder(first)
		metrics := observability.NewMetricsForTesting()
		r := NewReloader(h, func(context.Context) (*Store, error) { return second, nil }, 0, clockwork.NewFakeClock(), metrics)

		var notified *Store
		r.Subscribe(func(_ context.Context, s *Store) { notified = s })

		require.NoError(t, r.Reload(ctx))
		assert.Same(t, second, h.Current())
		assert.Same(t, second, notified)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Reloads.WithLabelValues("success")))
		assert.Equal(t, 48.0, testutil.ToFloat64(metrics.StoreRows))
		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StoreDays))
	})

	t.Run("FailureKeepsSnapshot", func(t *testing.T) {
		h := NewHolder(first)
		metrics := observability.NewMetricsForTesting()
		r := NewReloader(h, func(context.Context) (*Store, error) {
			return nil, types.ErrDataUnavailable
		}, 0, clockwork.NewFakeClock(), metrics)

		called := false
		r.Subscribe(func(context.Context, *Store) { called = true })

		err := r.Reload(ctx)
		assert.ErrorIs(t, err, types.ErrDataUnavailable)
		assert.Same(t, first, h.Current())
		assert.False(t, called)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Reloads.WithLabelValues("failure")))
	})

	t.Run("RunOnTicker", func(t *testing.T) {
		h := NewHolder(first)
		clock := clockwork.NewFakeClock()
		var loads atomic.Int32
		r := NewReloader(h, func(context.Context) (*Store, error) {
			if loads.Add(1) == 1 {
				return second, nil
			}
			return nil, types.ErrSchema
		}, time.Minute, clock, observability.NewMetricsForTesting())

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- r.Run(runCtx) }()

		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Minute)
		assert.Eventually(t, func() bool { return h.Current() == second }, time.Second, time.Millisecond)

		clock.Advance(time.Minute)
		assert.Eventually(t, func() bool { return loads.Load() == 2 }, time.Second, time.Millisecond)
		assert.Same(t, second, h.Current(), "failed reload must not replace the snapshot")

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("RunDisabled", func(t *testing.T) {
		r := NewReloader(NewHolder(first), nil, 0, nil, observability.NewMetricsForTesting())
		assert.NoError(t, r.Run(ctx))
	})
}
