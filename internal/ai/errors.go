package ai

import (
	"errors"
	"fmt"
)

// Precondition errors: caller misuse, raised synchronously. Everything else
// an enrichment can go wrong with is encoded into the returned tender, never
// surfaced as an error.
var (
	ErrEmptyBatch    = errors.New("enrichment batch is empty")
	ErrMissingAPIKey = errors.New("completion API key is not configured")
)

// FailureKind tags what went wrong with one enrichment call, so the failure
// recorded on the tender is machine-readable instead of a matched string.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"  // network error or timeout
	FailureStatus    FailureKind = "bad_status" // non-2xx reply
	FailureParse     FailureKind = "parse"      // reply body is not JSON
	FailureSchema    FailureKind = "schema"     // JSON missing required fields
)

// AnalysisFailure is the internal result of a failed enrichment attempt. It
// never escapes EnrichOne; it becomes the tender's AnalysisError text.
type AnalysisFailure struct {
	Kind FailureKind
	Err  error
}

func (f *AnalysisFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *AnalysisFailure) Unwrap() error {
	return f.Err
}

func failure(kind FailureKind, err error) *AnalysisFailure {
	return &AnalysisFailure{Kind: kind, Err: err}
}
