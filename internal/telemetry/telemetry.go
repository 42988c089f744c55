// Package telemetry installs the OpenTelemetry meter provider behind the
// pipeline counters.
package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/ppiankov/tntracker/internal/model"
)

const serviceName = "tntracker"

// Provider owns the SDK meter provider. A manual reader is always attached
// so that a command can print what it counted.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	manual        *sdkmetric.ManualReader
}

// Point is one collected data point. Histograms report their sum and count.
type Point struct {
	Name  string
	Attrs string
	Value float64
	Count uint64
}

// New builds a provider. With an OTLP endpoint the metrics are also pushed
// to a collector every cfg.Interval.
func New(ctx context.Context, cfg model.MetricsConfig, version string) (*Provider, error) {
	res := resource.NewSchemaless(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	)

	p := &Provider{manual: sdkmetric.NewManualReader()}
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(p.manual),
	}

	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	return p, nil
}

// Install makes p the global meter provider.
func (p *Provider) Install() {
	otel.SetMeterProvider(p.meterProvider)
}

// MeterProvider returns the provider for components that take one explicitly.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// Snapshot collects the current counter and histogram values, sorted by name
// and attributes.
func (p *Provider) Snapshot(ctx context.Context) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := p.manual.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var points []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Attrs: encode(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Attrs: encode(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					points = append(points, Point{Name: m.Name, Attrs: encode(dp.Attributes), Value: dp.Sum, Count: dp.Count})
				}
			}
		}
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return points[i].Attrs < points[j].Attrs
	})
	return points, nil
}

// Shutdown flushes pending exports and releases the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}

func encode(set attribute.Set) string {
	kvs := set.ToSlice()
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	return strings.Join(parts, ",")
}
