package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ppiankov/tntracker/internal/logging"
	"github.com/ppiankov/tntracker/internal/model"
)

const meterName = "github.com/ppiankov/tntracker/internal/pipeline"

// metrics are recorded on the given meter provider, or the global one when
// none is given. The global provider is a no-op unless the process installs
// one.
type metrics struct {
	records  metric.Int64Counter
	sources  metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) *metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m, err := newMetricsFrom(mp.Meter(meterName))
	if err != nil {
		logging.Warn().Err(err).Msg("metrics disabled")
		m, _ = newMetricsFrom(noop.NewMeterProvider().Meter(meterName))
	}
	return m
}

func newMetricsFrom(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	m.records, err = meter.Int64Counter("tntracker.records",
		metric.WithDescription("Records merged, by outcome"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}
	m.sources, err = meter.Int64Counter("tntracker.sources",
		metric.WithDescription("Sources processed, by final state"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}
	m.duration, err = meter.Float64Histogram("tntracker.source.duration",
		metric.WithDescription("Time spent on one source"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *metrics) record(ctx context.Context, format string, outcome model.Outcome) {
	m.records.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("outcome", string(outcome)),
	))
}

func (m *metrics) source(ctx context.Context, spec SourceSpec, sum model.SourceSummary) {
	attrs := metric.WithAttributes(
		attribute.String("source", spec.Name),
		attribute.String("state", string(sum.State)),
	)
	m.sources.Add(ctx, 1, attrs)
	m.duration.Record(ctx, sum.Duration.Seconds(), attrs)
}
