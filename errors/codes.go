package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline errors
const (
	// ErrCodeInvalidTopology indicates a malformed stage sequence at build time.
	ErrCodeInvalidTopology ErrorCode = "INVALID_TOPOLOGY"
	// ErrCodeCapacityExceeded indicates a producer pushed past a buffer's hard cap.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	// ErrCodeStageProcessing wraps a failure raised inside user-supplied stage logic.
	ErrCodeStageProcessing ErrorCode = "STAGE_PROCESSING_ERROR"
	// ErrCodeCancellationRequested indicates an external abort of a run.
	ErrCodeCancellationRequested ErrorCode = "CANCELLATION_REQUESTED"
	// ErrCodeInvalidState indicates an operation not allowed in the stage's current state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	// ErrCodePipelineAborted indicates a stage torn down because another stage failed first.
	ErrCodePipelineAborted ErrorCode = "PIPELINE_ABORTED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// IsRetryableCode reports whether an error code may be retried. Nothing
// inside a pipeline is retried; re-running with a fresh source is the
// caller's decision.
func IsRetryableCode(ErrorCode) bool {
	return false
}
