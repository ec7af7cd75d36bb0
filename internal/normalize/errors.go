package normalize

import (
	"errors"
	"fmt"

	"subtyper/internal/cohort"
)

// ErrKind classifies fatal normalization failures.
type ErrKind string

const (
	// KindInsufficientData means too few complete subjects remain to
	// fit a confound regression.
	KindInsufficientData ErrKind = "insufficient_data"
	// KindDegenerateColumn means a residual column has zero variance,
	// so the rank transform is undefined.
	KindDegenerateColumn ErrKind = "degenerate_column"
)

// Error is a fatal normalization error tied to one feature column.
type Error struct {
	Kind    ErrKind
	Trait   cohort.TraitID
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Trait, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Trait, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a normalize.Error of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var nErr *Error
	return errors.As(err, &nErr) && nErr.Kind == kind
}
