// Package telemetry sets up OpenTelemetry metrics for toolpane and exposes them to Prometheus.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config controls whether and how telemetry is initialized.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Providers holds the initialized OpenTelemetry providers.
type Providers struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	serviceName string
	enabled     bool
}

// Init initializes the meter provider with a Prometheus exporter.
// When telemetry is disabled, a noop meter is returned so callers never need to nil-check.
func Init(ctx context.Context, c *Config) (*Providers, error) {
	if !c.Enabled {
		return &Providers{
			meter:       noop.NewMeterProvider().Meter(c.ServiceName),
			serviceName: c.ServiceName,
		}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", c.ServiceName))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return &Providers{
		meterProvider: mp,
		meter:         mp.Meter(c.ServiceName),
		serviceName:   c.ServiceName,
		enabled:       true,
	}, nil
}

// IsEnabled returns true if telemetry was initialized with a real exporter.
func (p *Providers) IsEnabled() bool {
	return p.enabled
}

func (p *Providers) ServiceName() string {
	return p.serviceName
}

func (p *Providers) Meter() metric.Meter {
	return p.meter
}

// Shutdown flushes and stops the meter provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
