package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified error type returned by pipelines and stages.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Stage names the stage the error originated from, if any.
	Stage string `json:"stage,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Sentinels for errors.Is matching. An *AppError matches a sentinel when
// their codes are equal.
var (
	ErrInvalidTopology       = &AppError{Code: ErrCodeInvalidTopology}
	ErrCapacityExceeded      = &AppError{Code: ErrCodeCapacityExceeded}
	ErrStageProcessing       = &AppError{Code: ErrCodeStageProcessing}
	ErrCancellationRequested = &AppError{Code: ErrCodeCancellationRequested}
	ErrInvalidState          = &AppError{Code: ErrCodeInvalidState}
	ErrPipelineAborted       = &AppError{Code: ErrCodePipelineAborted}
)

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s [stage %s]", e.Code, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithStage tags the error with the originating stage and returns the receiver.
func (e *AppError) WithStage(stage string) *AppError {
	e.Stage = stage
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Pipeline Error Constructors ---

// InvalidTopology creates an error for a stage sequence that cannot form a pipeline.
func InvalidTopology(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidTopology, Message: fmt.Sprintf("invalid pipeline topology: %s", reason),
	}
}

// CapacityExceeded creates an error for a push past a buffer's hard cap.
func CapacityExceeded(stage string, size, hardCap int) *AppError {
	return &AppError{
		Code: ErrCodeCapacityExceeded, Stage: stage,
		Message: fmt.Sprintf("buffer hard cap %d reached (size %d); producer ignored backpressure", hardCap, size),
		Details: map[string]any{"size": size, "hard_cap": hardCap},
	}
}

// StageProcessing wraps a failure raised inside a stage's user-supplied logic.
func StageProcessing(stage string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStageProcessing, Stage: stage,
		Message: "stage processing failed", Cause: cause,
	}
}

// CancellationRequested creates an error for an externally aborted run.
func CancellationRequested(stage string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeCancellationRequested, Stage: stage,
		Message: "cancellation requested", Cause: cause,
	}
}

// InvalidState creates an error for an operation rejected in the stage's current state.
func InvalidState(stage, op, state string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidState, Stage: stage,
		Message: fmt.Sprintf("%s not allowed in state %s", op, state),
		Details: map[string]any{"operation": op, "state": state},
	}
}

// PipelineAborted creates the teardown error handed to a stage when another
// stage of the same pipeline failed first.
func PipelineAborted(stage, origin string) *AppError {
	return &AppError{
		Code: ErrCodePipelineAborted, Stage: stage,
		Message: fmt.Sprintf("aborted after failure in stage %s", origin),
		Details: map[string]any{"origin": origin},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred", Cause: cause,
	}
}

// --- Inspection ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Code returns the code of the outermost AppError in err's chain, or "".
func Code(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &AppError{Code: code})
}

// StageOf returns the stage tag of the outermost AppError in err's chain, or "".
func StageOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Stage
	}
	return ""
}

// Wrap converts any error into an AppError. AppErrors pass through unchanged;
// other errors become INTERNAL_ERROR with the original as cause.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
