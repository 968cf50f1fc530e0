package ingest

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"
)

// RawRecord is the loosely-typed intermediate record produced by a parser:
// one source notice as a flat map of original field names/paths to values.
// CSV rows map header names to cell strings; OCDS releases map known dotted
// paths to whatever the release carried at that path.
type RawRecord map[string]any

// String returns the value at key as a trimmed string, or "" when the key is
// absent, nil, or not string-like.
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

// Float returns the value at key as a float64 with an ok flag. Strings are
// parsed after stripping currency symbols and separators; anything
// unparseable reports false.
func (r RawRecord) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		return parseMoney(n)
	}
	return 0, false
}

// RecordParser turns one payload blob into intermediate records. A malformed
// individual record is dropped, never an error for the whole payload; only an
// unreadable or structurally empty payload fails the call.
type RecordParser interface {
	Parse(ctx context.Context, r io.Reader) ([]RawRecord, error)
}

// FetchedDocument is the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// FetchConfig defines HTTP fetching behaviour for a source.
type FetchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"` // Default: 20
	MaxRetries     int `yaml:"max_retries,omitempty"`     // Default: 2
	RetryBackoffMs int `yaml:"retry_backoff_ms,omitempty"`
}

// FetchStats holds metrics about one refresh run. The pipeline counts what
// each stage dropped; partial loss is logged, never raised.
type FetchStats struct {
	RunID        string        `json:"run_id"`
	Source       string        `json:"source"`
	Found        int           `json:"found"`
	Normalized   int           `json:"normalized"`
	ParseDrops   int           `json:"parse_drops"`
	TitleDrops   int           `json:"title_drops"`
	DupesDropped int           `json:"dupes_dropped"`
	Duration     time.Duration `json:"duration"`
}
