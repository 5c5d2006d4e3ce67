package alert

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/raterudder/solarwatch/pkg/engine"
	"github.com/raterudder/solarwatch/pkg/log"
	"github.com/raterudder/solarwatch/pkg/observability"
	"github.com/raterudder/solarwatch/pkg/types"
)

// Notifier publishes each anomalous day once per process.
type Notifier struct {
	engine    *engine.Engine
	publisher Publisher
	plant     string
	threshold float64
	clock     clockwork.Clock
	metrics   *observability.Metrics

	mu   sync.Mutex
	seen map[string]bool
}

// NewNotifier creates a Notifier flagging days below 100-threshold percent.
func NewNotifier(p Publisher, plant string, threshold float64, clock clockwork.Clock, metrics *observability.Metrics) *Notifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Notifier{
		engine:    engine.New(),
		publisher: p,
		plant:     plant,
		threshold: threshold,
		clock:     clock,
		metrics:   metrics,
		seen:      map[string]bool{},
	}
}

// Notify publishes the anomalous days of s that haven't been published yet,
// oldest first. Days are only marked once the publish succeeds, so a failed
// batch is retried on the next call.
func (n *Notifier) Notify(ctx context.Context, s engine.Series) error {
	days, err := n.engine.AnomalousDays(ctx, s, n.threshold)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to compute anomalous days", slog.Any("error", err))
		return err
	}
	n.metrics.AnomalousDays.Set(float64(len(days)))

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	var events []Event
	for _, d := range slices.Backward(days) {
		id := EventID(n.plant, d.Date)
		if n.seen[id] {
			continue
		}
		events = append(events, NewEvent(n.plant, d, now))
	}
	if len(events) == 0 {
		return nil
	}

	if err := n.publisher.Publish(ctx, events...); err != nil {
		n.metrics.AlertPublishErrors.Inc()
		log.Ctx(ctx).ErrorContext(ctx, "failed to publish anomaly events", slog.Int("count", len(events)), slog.Any("error", err))
		return err
	}
	for _, e := range events {
		n.seen[e.ID] = true
	}
	n.metrics.AlertsPublished.Add(float64(len(events)))
	log.Ctx(ctx).InfoContext(ctx, "published anomaly events", slog.Int("count", len(events)), slog.Int("anomalous", len(days)))
	return nil
}

// Published reports whether an event for d has been published.
func (n *Notifier) Published(d types.Date) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seen[EventID(n.plant, d)]
}
