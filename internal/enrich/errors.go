package enrich

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStructuredData is returned when no fenced block in a model response
	// holds valid JSON.
	ErrNoStructuredData = errors.New("no valid structured data found in the response")

	// ErrProductNotFound is returned when a storage update matched no product for
	// the given id and owner.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidBatch signals a caller contract violation. It is the only error
	// EnrichBatch returns.
	ErrInvalidBatch = errors.New("invalid enrichment batch")
)

// ResolutionError describes one image reference that could not be resolved.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "image resolution error"
	}
	return fmt.Sprintf("resolve image %q: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SearchError wraps a failed grounded-search call.
type SearchError struct{ Err error }

func (e *SearchError) Error() string { return "search: " + errString(e.Err) }

func (e *SearchError) Unwrap() error { return e.Err }

// ExtractionError wraps a failed extraction call.
type ExtractionError struct{ Err error }

func (e *ExtractionError) Error() string { return "extraction: " + errString(e.Err) }

func (e *ExtractionError) Unwrap() error { return e.Err }

// ParseError wraps a model response that did not yield usable structured data.
type ParseError struct{ Err error }

func (e *ParseError) Error() string { return "parse: " + errString(e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps a failed storage update.
type StoreError struct{ Err error }

func (e *StoreError) Error() string { return "store: " + errString(e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
