package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ppiankov/tntracker/internal/model"
)

func TestSnapshot_CountersAndHistograms(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, model.MetricsConfig{Enabled: true}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	meter := p.MeterProvider().Meter("test")
	counter, err := meter.Int64Counter("test.records")
	require.NoError(t, err)
	hist, err := meter.Float64Histogram("test.duration")
	require.NoError(t, err)

	created := metric.WithAttributes(attribute.String("outcome", "created"), attribute.String("format", "roster"))
	counter.Add(ctx, 2, created)
	counter.Add(ctx, 1, created)
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "skipped"), attribute.String("format", "roster")))
	hist.Record(ctx, 0.5)
	hist.Record(ctx, 1.5)

	points, err := p.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, Point{Name: "test.duration", Attrs: "", Value: 2.0, Count: 2}, points[0])
	assert.Equal(t, Point{Name: "test.records", Attrs: "format=roster,outcome=created", Value: 3}, points[1])
	assert.Equal(t, Point{Name: "test.records", Attrs: "format=roster,outcome=skipped", Value: 1}, points[2])
}

func TestSnapshot_Empty(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, model.MetricsConfig{}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	points, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, points)
}
