package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SearchMetrics holds custom metrics for the search pipeline.
type SearchMetrics struct {
	requestDuration    metric.Float64Histogram
	requestCounter     metric.Int64Counter
	errorCounter       metric.Int64Counter
	activeRequests     metric.Int64UpDownCounter
	resultsCount       metric.Int64Histogram
	repairAttempts     metric.Int64Histogram
	validationFailures metric.Int64Counter
	resolverMatches    metric.Int64Counter
}

// InitSearchMetrics initializes search pipeline metrics.
func InitSearchMetrics() (*SearchMetrics, error) {
	meter := otel.Meter("medgraph-search")

	requestDuration, err := meter.Float64Histogram(
		"search.request.duration",
		metric.WithDescription("Duration of search requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"search.requests.total",
		metric.WithDescription("Total number of search requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"search.errors.total",
		metric.WithDescription("Total number of failed search requests by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"search.requests.active",
		metric.WithDescription("Number of in-flight search requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"search.results.count",
		metric.WithDescription("Number of rows returned by executed searches"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	repairAttempts, err := meter.Int64Histogram(
		"search.repair.attempts",
		metric.WithDescription("Repair attempts consumed per search"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create repair attempts histogram: %w", err)
	}

	validationFailures, err := meter.Int64Counter(
		"search.validation.failures.total",
		metric.WithDescription("Draft validation failures by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation failures counter: %w", err)
	}

	resolverMatches, err := meter.Int64Counter(
		"search.resolver.matches.total",
		metric.WithDescription("Resolved entity mentions by match kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver matches counter: %w", err)
	}

	return &SearchMetrics{
		requestDuration:    requestDuration,
		requestCounter:     requestCounter,
		errorCounter:       errorCounter,
		activeRequests:     activeRequests,
		resultsCount:       resultsCount,
		repairAttempts:     repairAttempts,
		validationFailures: validationFailures,
		resolverMatches:    resolverMatches,
	}, nil
}

// RecordSearch records one search request with its duration and outcome.
// Status is "ok" or a taxonomy error kind.
func (m *SearchMetrics) RecordSearch(ctx context.Context, duration time.Duration, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if status != "ok" {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", status)))
	}
}

// RecordRepairAttempts records how many repair cycles a search consumed.
func (m *SearchMetrics) RecordRepairAttempts(ctx context.Context, attempts int) {
	m.repairAttempts.Record(ctx, int64(attempts))
}

// RecordValidationFailure records one draft validation failure.
func (m *SearchMetrics) RecordValidationFailure(ctx context.Context, kind string) {
	m.validationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordResolverMatch records one resolved entity mention.
func (m *SearchMetrics) RecordResolverMatch(ctx context.Context, matchKind string) {
	m.resolverMatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("match_kind", matchKind),
	))
}

// RecordResultsCount records the number of rows an executed search returned.
func (m *SearchMetrics) RecordResultsCount(ctx context.Context, count int64) {
	m.resultsCount.Record(ctx, count)
}

// IncrementActiveRequests increments the in-flight request counter.
func (m *SearchMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the in-flight request counter.
func (m *SearchMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the SearchMetrics instance.
func InitMetrics(logger *slog.Logger) (*SearchMetrics, error) {
	metrics, err := InitSearchMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search metrics: %w", err)
	}

	logger.Info("custom search metrics initialized")
	return metrics, nil
}
