package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")

	// ErrCorruptLinkage marks an utterance carrying both a prev and a next
	// link, which the source format never produces for well-formed records.
	ErrCorruptLinkage = errors.New("corrupt utterance linkage")

	// ErrMixedSpeakers marks a speech whose utterances carry more than one
	// speaker id. Speeches are speaker-homogeneous; a violation indicates a
	// parsing defect upstream and always aborts the current operation.
	ErrMixedSpeakers = errors.New("mixed speakers in one speech")

	// ErrUnknownAttribute marks a grouping attribute name that no known
	// entity defines. Raised at construction, before any data is processed.
	ErrUnknownAttribute = errors.New("unknown grouping attribute")

	// ErrBadTemporalKey marks a temporal key that cannot be resolved to a
	// bucket label. Temporal categorization always succeeds or fails loudly.
	ErrBadTemporalKey = errors.New("unresolvable temporal key")

	// ErrUnsortedStream marks a segment stream that revisits an already
	// closed temporal bucket. The merger flushes and forgets per bucket, so
	// an unsorted stream would silently misgroup; it fails loudly instead.
	ErrUnsortedStream = errors.New("segment stream not sorted by temporal bucket")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s — %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}
