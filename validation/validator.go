package validation

import (
	"strconv"
	"strings"

	"github.com/kbukum/gostream/errors"
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator collects field errors for rules struct tags cannot express.
type Validator struct {
	errors []FieldError
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{}
}

// AddError records an error for field.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// Check records message for field unless condition holds.
func (v *Validator) Check(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

// Min records an error when value is below minVal.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	return v.Check(value >= minVal, field, "must be at least "+strconv.Itoa(minVal))
}

// HasErrors reports whether any error was recorded.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the recorded field errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Error returns an INVALID_INPUT AppError listing every recorded field, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, 0, len(v.errors))
	for _, fe := range v.errors {
		messages = append(messages, fe.Field+": "+fe.Message)
	}
	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{"fields": v.errors}
	return appErr
}
