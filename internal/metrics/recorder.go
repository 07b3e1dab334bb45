// Package metrics exports server and cache counters through OpenTelemetry.
package metrics

import (
	"context"

	"github.com/catatsuy/kioku/internal/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MetricCommands    = "kioku.commands"
	MetricFrameErrors = "kioku.frame_errors"
	MetricConnections = "kioku.connections"

	MetricCacheHits          = "kioku.cache.hits"
	MetricCacheMisses        = "kioku.cache.misses"
	MetricCacheExpiredMisses = "kioku.cache.expired_misses"
	MetricCacheEvictions     = "kioku.cache.evictions"
	MetricCacheItems         = "kioku.cache.items"
)

// Recorder holds the instruments used by the server. A nil *Recorder
// records nothing.
type Recorder struct {
	commands    metric.Int64Counter
	frameErrors metric.Int64Counter
	connections metric.Int64UpDownCounter

	registration metric.Registration
}

// NewRecorder registers instruments on provider. stats is polled on each
// collection and must be safe to call concurrently with the server. A nil
// provider returns a nil Recorder.
func NewRecorder(provider metric.MeterProvider, stats func() cache.Stats) (*Recorder, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter("github.com/catatsuy/kioku")

	commands, err := meter.Int64Counter(MetricCommands,
		metric.WithDescription("Requests executed against the cache"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	frameErrors, err := meter.Int64Counter(MetricFrameErrors,
		metric.WithDescription("Frames rejected by the parser"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, err
	}

	connections, err := meter.Int64UpDownCounter(MetricConnections,
		metric.WithDescription("Open client connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		commands:    commands,
		frameErrors: frameErrors,
		connections: connections,
	}
	if stats == nil {
		return r, nil
	}

	hits, err := meter.Int64ObservableCounter(MetricCacheHits, metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64ObservableCounter(MetricCacheMisses, metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64ObservableCounter(MetricCacheExpiredMisses, metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64ObservableCounter(MetricCacheEvictions, metric.WithUnit("{item}"))
	if err != nil {
		return nil, err
	}
	items, err := meter.Int64ObservableGauge(MetricCacheItems,
		metric.WithDescription("Items currently stored, expired ones included"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	r.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(hits, s.Hits)
		o.ObserveInt64(misses, s.Misses)
		o.ObserveInt64(expired, s.ExpiredMisses)
		o.ObserveInt64(evictions, s.Evictions)
		o.ObserveInt64(items, s.Items, metric.WithAttributes(attribute.Int64("capacity", s.Capacity)))
		return nil
	}, hits, misses, expired, evictions, items)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Recorder) Command(ctx context.Context, verb, outcome string) {
	if r == nil {
		return
	}
	r.commands.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("verb", verb),
		attribute.String("outcome", outcome),
	))
}

func (r *Recorder) FrameError(ctx context.Context, kind string) {
	if r == nil {
		return
	}
	r.frameErrors.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// ConnOpened and ConnClosed must be called in pairs.
func (r *Recorder) ConnOpened(ctx context.Context) {
	if r == nil {
		return
	}
	r.connections.Add(context.WithoutCancel(ctx), 1)
}

func (r *Recorder) ConnClosed(ctx context.Context) {
	if r == nil {
		return
	}
	r.connections.Add(context.WithoutCancel(ctx), -1)
}

// Close stops polling cache stats.
func (r *Recorder) Close() error {
	if r == nil || r.registration == nil {
		return nil
	}
	return r.registration.Unregister()
}
