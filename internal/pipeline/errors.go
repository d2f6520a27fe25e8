package pipeline

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/listingflow/internal/models"
)

// Stage categories. Each typed error below reports as its category through errors.Is.
var (
	ErrFetch             = errors.New("fetch failed")
	ErrParse             = errors.New("parse failed")
	ErrInvalidSourceData = errors.New("invalid source data")
	ErrPersist           = errors.New("persist failed")

	// ErrNotFound marks a fetch failure caused by a missing object.
	ErrNotFound = errors.New("object not found")
	// ErrEmptyBody marks a parse failure caused by an empty document.
	ErrEmptyBody = errors.New("empty body")
	// ErrEmptyBatch is returned by the coordinator for a batch with no descriptors.
	ErrEmptyBatch = errors.New("empty batch")
)

// FetchError wraps any failure of the object store read.
type FetchError struct {
	Source models.Descriptor
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ParseError reports an empty or malformed document body.
type ParseError struct {
	Source models.Descriptor
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ValidationError is a business-rule rejection of a parsed record.
type ValidationError struct {
	Source models.Descriptor
	Field  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid source data: %s has no usable %q field", e.Source, e.Field)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSourceData }

// PersistError is what callers see when the destination write fails.
// The storage cause is logged by the processor and intentionally not carried here.
type PersistError struct {
	Source models.Descriptor
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist failed for %s", e.Source)
}

func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// Outcome classifies a record error for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrFetch):
		return "fetch_error"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrInvalidSourceData):
		return "validation_error"
	case errors.Is(err, ErrPersist):
		return "persist_error"
	default:
		return "error"
	}
}
