// Package observability provides OpenTelemetry tracing and metrics for
// gostream pipelines.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-service"))
//	defer tp.Shutdown(ctx)
//
// Every stream.Pipeline run opens a "stream.run" span through StartSpan.
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("my-service"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewStreamMetrics(observability.Meter("my-service"))
//	p, err := stream.Build(stages, stream.WithObserver(metrics.ForPipeline("orders")))
//
// Telemetry wraps both providers as a component.Component driven by
// TelemetryConfig.
package observability
