package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "kittybg"

// Metrics holds all OTEL metric instruments for kittybg.
// All counters are cumulative (monotonic) and safe for concurrent use.
// Every recording method is nil-safe so call sites never need a guard.
type Metrics struct {
	// Discovery counters (partitioned by strategy + result via attributes)
	DiscoveryAttempts metric.Int64Counter

	// Endpoint cache counters
	CacheHits          metric.Int64Counter
	CacheMisses        metric.Int64Counter
	CacheInvalidations metric.Int64Counter

	// Dispatch counters (partitioned by transport + outcome)
	Dispatches metric.Int64Counter

	// Render counters
	ImagesRendered metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DiscoveryAttempts, err = meter.Int64Counter("endpoint.discovery.attempts",
		metric.WithDescription("Endpoint discovery strategy attempts partitioned by strategy and result"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("endpoint.cache.hits",
		metric.WithDescription("Number of dispatches served by a cached, still-valid endpoint"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("endpoint.cache.misses",
		metric.WithDescription("Number of dispatches that required fresh discovery (empty, expired, or failed re-validation)"))
	if err != nil {
		return nil, err
	}

	m.CacheInvalidations, err = meter.Int64Counter("endpoint.cache.invalidations",
		metric.WithDescription("Number of explicit endpoint cache invalidations after a failed dispatch"))
	if err != nil {
		return nil, err
	}

	m.Dispatches, err = meter.Int64Counter("dispatch.total",
		metric.WithDescription("Remote-control dispatches partitioned by transport and outcome"))
	if err != nil {
		return nil, err
	}

	m.ImagesRendered, err = meter.Int64Counter("render.images",
		metric.WithDescription("Background images rendered"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordDiscovery records one discovery strategy attempt.
func (m *Metrics) RecordDiscovery(ctx context.Context, strategy, result string) {
	if m == nil {
		return
	}
	m.DiscoveryAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("discovery.strategy", strategy),
		attribute.String("discovery.result", result),
	))
}

// RecordCacheHit records an endpoint cache hit.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1)
}

// RecordCacheMiss records an endpoint cache miss.
func (m *Metrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1)
}

// RecordCacheInvalidation records an explicit cache invalidation.
func (m *Metrics) RecordCacheInvalidation(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheInvalidations.Add(ctx, 1)
}

// RecordDispatch records one dispatch attempt over a transport.
func (m *Metrics) RecordDispatch(ctx context.Context, transport, outcome string) {
	if m == nil {
		return
	}
	m.Dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dispatch.transport", transport),
		attribute.String("dispatch.outcome", outcome),
	))
}

// RecordImageRendered records one rendered background image.
func (m *Metrics) RecordImageRendered(ctx context.Context) {
	if m == nil {
		return
	}
	m.ImagesRendered.Add(ctx, 1)
}
