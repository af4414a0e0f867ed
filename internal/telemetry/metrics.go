package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InvocationOutcome is the terminal state of a function invocation as recorded in metrics.
type InvocationOutcome string

const (
	InvocationOutcomeFulfilled InvocationOutcome = "fulfilled"
	InvocationOutcomeRejected  InvocationOutcome = "rejected"
)

// CustomMetrics records toolpane specific metrics.
type CustomMetrics interface {
	// RecordInvocation records one settled function invocation.
	RecordInvocation(ctx context.Context, toolID, function string, outcome InvocationOutcome, duration time.Duration)

	// RecordDiscovery records one discovery pass.
	RecordDiscovery(ctx context.Context, tools, skipped int, duration time.Duration)
}

// NewCustomMetrics returns otel backed metrics when telemetry is enabled, noop metrics otherwise.
func NewCustomMetrics(p *Providers) (CustomMetrics, error) {
	if p == nil || !p.IsEnabled() {
		return NewNoopCustomMetrics(), nil
	}
	return newOtelCustomMetrics(p.Meter())
}

type noopCustomMetrics struct{}

// NewNoopCustomMetrics returns metrics that record nothing.
func NewNoopCustomMetrics() CustomMetrics {
	return noopCustomMetrics{}
}

func (noopCustomMetrics) RecordInvocation(context.Context, string, string, InvocationOutcome, time.Duration) {
}

func (noopCustomMetrics) RecordDiscovery(context.Context, int, int, time.Duration) {}

type otelCustomMetrics struct {
	invocations        metric.Int64Counter
	invocationDuration metric.Float64Histogram

	discoveredTools   metric.Int64Gauge
	skippedFiles      metric.Int64Counter
	discoveryDuration metric.Float64Histogram
}

func newOtelCustomMetrics(meter metric.Meter) (*otelCustomMetrics, error) {
	m := &otelCustomMetrics{}
	var err error

	m.invocations, err = meter.Int64Counter(
		"toolpane_invocations_total",
		metric.WithDescription("Number of settled function invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invocations counter: %w", err)
	}

	m.invocationDuration, err = meter.Float64Histogram(
		"toolpane_invocation_duration_seconds",
		metric.WithDescription("Duration of function invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create invocation duration histogram: %w", err)
	}

	m.discoveredTools, err = meter.Int64Gauge(
		"toolpane_discovered_tools",
		metric.WithDescription("Number of tools found by the latest discovery pass"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovered tools gauge: %w", err)
	}

	m.skippedFiles, err = meter.Int64Counter(
		"toolpane_discovery_skipped_files_total",
		metric.WithDescription("Number of candidate files skipped during discovery"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create skipped files counter: %w", err)
	}

	m.discoveryDuration, err = meter.Float64Histogram(
		"toolpane_discovery_duration_seconds",
		metric.WithDescription("Duration of discovery passes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery duration histogram: %w", err)
	}

	return m, nil
}

func (m *otelCustomMetrics) RecordInvocation(
	ctx context.Context, toolID, function string, outcome InvocationOutcome, duration time.Duration,
) {
	attrs := metric.WithAttributes(
		attribute.String("tool", toolID),
		attribute.String("function", function),
		attribute.String("outcome", string(outcome)),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.invocationDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *otelCustomMetrics) RecordDiscovery(ctx context.Context, tools, skipped int, duration time.Duration) {
	m.discoveredTools.Record(ctx, int64(tools))
	if skipped > 0 {
		m.skippedFiles.Add(ctx, int64(skipped))
	}
	m.discoveryDuration.Record(ctx, duration.Seconds())
}
