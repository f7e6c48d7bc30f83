package fetcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lockwatch/lockdash/observability"
)

const instrumentationName = "github.com/lockwatch/lockdash/fetcher"

// Metric names.
const (
	MetricAttempts = "lockdash.fetch.attempts"
	MetricRetries  = "lockdash.fetch.retries"
	MetricFailures = "lockdash.fetch.failures"
	MetricDuration = "lockdash.fetch.duration"
)

type instruments struct {
	attempts metric.Int64Counter
	retries  metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)

	attempts, err := observability.CreateCounter(meter, MetricAttempts, "Requests issued by the fetcher")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricAttempts, err)
	}
	retries, err := observability.CreateCounter(meter, MetricRetries, "Retries scheduled after a failed attempt")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricRetries, err)
	}
	failures, err := observability.CreateCounter(meter, MetricFailures, "Failed attempts by classification")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricFailures, err)
	}
	duration, err := observability.CreateHistogram(meter, MetricDuration, "Attempt duration in milliseconds",
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricDuration, err)
	}

	return &instruments{attempts: attempts, retries: retries, failures: failures, duration: duration}, nil
}

func (i *instruments) recordAttempt(ctx context.Context, spec RequestSpec) {
	i.attempts.Add(ctx, 1, metric.WithAttributes(specAttributes(spec)...))
}

func (i *instruments) recordRetry(ctx context.Context, spec RequestSpec) {
	i.retries.Add(ctx, 1, metric.WithAttributes(specAttributes(spec)...))
}

func (i *instruments) recordFailure(ctx context.Context, spec RequestSpec, c Classification) {
	attrs := append(specAttributes(spec), attribute.String("classification", c.String()))
	i.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (i *instruments) recordDuration(ctx context.Context, spec RequestSpec, ms float64) {
	i.duration.Record(ctx, ms, metric.WithAttributes(specAttributes(spec)...))
}

func specAttributes(spec RequestSpec) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.request.method", spec.method()),
		attribute.String("endpoint", spec.Endpoint),
	}
}
