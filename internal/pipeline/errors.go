package pipeline

import (
	"context"
	"errors"
	"fmt"

	"subtyper/internal/normalize"
)

// ErrorType classifies pipeline failures for callers and logs.
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeInsufficientData ErrorType = "insufficient_data"
	ErrorTypeDegenerateColumn ErrorType = "degenerate_column"
	ErrorTypeExecution        ErrorType = "execution"
	ErrorTypeCancellation     ErrorType = "cancellation"
)

// PipelineError is a stage-tagged pipeline failure. A run either
// returns a complete result or exactly one of these; there is no
// partial output.
type PipelineError struct {
	Type    ErrorType      `json:"type"`
	Stage   string         `json:"stage,omitempty"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a validation error for a stage.
func NewValidationError(stage, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeValidation,
		Stage:   stage,
		Message: message,
	}
}

// WrapError tags err with a stage, classifying normalization and
// cancellation failures by kind.
func WrapError(err error, stage string) *PipelineError {
	if err == nil {
		return nil
	}

	var pErr *PipelineError
	if errors.As(err, &pErr) {
		if pErr.Stage == "" {
			pErr.Stage = stage
		}
		return pErr
	}

	errType := ErrorTypeExecution
	switch {
	case normalize.IsKind(err, normalize.KindInsufficientData):
		errType = ErrorTypeInsufficientData
	case normalize.IsKind(err, normalize.KindDegenerateColumn):
		errType = ErrorTypeDegenerateColumn
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		errType = ErrorTypeCancellation
	}

	return &PipelineError{
		Type:    errType,
		Stage:   stage,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetErrorType returns the classification of err.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Type
	}
	return ErrorTypeExecution
}
