package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/gostream/observability"
)

func TestRunSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	p := build(t, []Option{WithName("spans")},
		NewSource("src", FromStrings("ab", "cd")),
		NewTransform("upper", Uppercase()),
		NewSink("sink", Collect()),
	)
	_, err := run(t, p)
	require.NoError(t, err)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, observability.SpanRun, ended[0].Name())
	attrs := attribute.NewSet(ended[0].Attributes()...)
	v, _ := attrs.Value(observability.AttrPipeline)
	assert.Equal(t, "spans", v.AsString())
	v, _ = attrs.Value(observability.AttrRunID)
	assert.Equal(t, p.RunID(), v.AsString())
	v, _ = attrs.Value(observability.AttrBytes)
	assert.Equal(t, int64(4), v.AsInt64())
}

func TestRunStreamMetricsObserver(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := observability.NewStreamMetrics(mp.Meter("test"))
	require.NoError(t, err)

	sink := Collect()
	p := build(t, []Option{WithObserver(metrics.ForPipeline("metered"))},
		NewSource("src", FromStrings("a", "bb", "ccc")),
		NewSink("out", sink),
	)
	_, err = run(t, p)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var bytes int64
	var outcomes int
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case observability.MetricBytes:
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					if s, _ := dp.Attributes.Value(observability.AttrStage); s.AsString() == "out" {
						bytes += dp.Value
					}
				}
			case observability.MetricStageDuration:
				for _, dp := range m.Data.(metricdata.Histogram[float64]).DataPoints {
					o, _ := dp.Attributes.Value(observability.AttrOutcome)
					assert.Equal(t, "ended", o.AsString())
					outcomes += int(dp.Count)
				}
			}
		}
	}
	assert.Equal(t, int64(6), bytes)
	assert.Equal(t, 2, outcomes)
}
