package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names recorded by StreamMetrics.
const (
	MetricChunks        = "stream.chunks"
	MetricBytes         = "stream.bytes"
	MetricPauses        = "stream.pauses"
	MetricResumes       = "stream.resumes"
	MetricStageDuration = "stream.stage.duration"
)

type streamInstruments struct {
	chunks        metric.Int64Counter
	bytes         metric.Int64Counter
	pauses        metric.Int64Counter
	resumes       metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// StreamMetrics records pipeline flow-control events. It satisfies
// stream.Observer; pass it to stream.WithObserver.
type StreamMetrics struct {
	inst *streamInstruments
	base []attribute.KeyValue
}

// NewStreamMetrics creates the stream instruments on meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	chunks, err := meter.Int64Counter(MetricChunks,
		metric.WithDescription("Chunks accepted by a stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricChunks, err)
	}
	bytes, err := meter.Int64Counter(MetricBytes,
		metric.WithDescription("Chunk weight accepted by a stage"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricBytes, err)
	}
	pauses, err := meter.Int64Counter(MetricPauses,
		metric.WithDescription("Times a stage was paused by its downstream neighbour"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricPauses, err)
	}
	resumes, err := meter.Int64Counter(MetricResumes,
		metric.WithDescription("Times a paused stage resumed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricResumes, err)
	}
	stageDuration, err := meter.Float64Histogram(MetricStageDuration,
		metric.WithDescription("Time from stage start to ended or failed"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricStageDuration, err)
	}

	return &StreamMetrics{inst: &streamInstruments{
		chunks:        chunks,
		bytes:         bytes,
		pauses:        pauses,
		resumes:       resumes,
		stageDuration: stageDuration,
	}}, nil
}

// ForPipeline returns a StreamMetrics sharing the same instruments that
// tags every measurement with the pipeline name.
func (m *StreamMetrics) ForPipeline(name string) *StreamMetrics {
	base := make([]attribute.KeyValue, len(m.base), len(m.base)+1)
	copy(base, m.base)
	return &StreamMetrics{inst: m.inst, base: append(base, attribute.String(AttrPipeline, name))}
}

func (m *StreamMetrics) attrs(kvs ...attribute.KeyValue) metric.MeasurementOption {
	all := make([]attribute.KeyValue, 0, len(m.base)+len(kvs))
	all = append(all, m.base...)
	return metric.WithAttributes(append(all, kvs...)...)
}

// Observer callbacks carry no context; measurements are recorded against
// the background context.

func (m *StreamMetrics) OnChunk(stage string, size int) {
	attrs := m.attrs(attribute.String(AttrStage, stage))
	m.inst.chunks.Add(context.Background(), 1, attrs)
	m.inst.bytes.Add(context.Background(), int64(size), attrs)
}

func (m *StreamMetrics) OnPause(stage string) {
	m.inst.pauses.Add(context.Background(), 1, m.attrs(attribute.String(AttrStage, stage)))
}

func (m *StreamMetrics) OnResume(stage string) {
	m.inst.resumes.Add(context.Background(), 1, m.attrs(attribute.String(AttrStage, stage)))
}

func (m *StreamMetrics) OnStageDone(stage, outcome string, elapsed time.Duration) {
	m.inst.stageDuration.Record(context.Background(), elapsed.Seconds(), m.attrs(
		attribute.String(AttrStage, stage),
		attribute.String(AttrOutcome, outcome),
	))
}
