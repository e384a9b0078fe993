// Package errors provides unified error handling for gostream pipelines.
// It implements a structured error type with machine-readable codes, the
// originating stage, and retryable detection.
//
// Every failure surfaced by a pipeline run is an *AppError carrying one of
// the stream codes (INVALID_TOPOLOGY, CAPACITY_EXCEEDED,
// STAGE_PROCESSING_ERROR, CANCELLATION_REQUESTED, INVALID_STATE,
// PIPELINE_ABORTED). Use errors.Is against the package sentinels or
// HasCode to branch on them.
package errors
