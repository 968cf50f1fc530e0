package models

import (
	"strings"
	"time"
)

// Status is the review state of a tender. It only changes through explicit
// user action; freshly fetched tenders are always StatusNew.
type Status string

const (
	StatusNew       Status = "new"
	StatusReviewing Status = "reviewing"
	StatusGo        Status = "go"
	StatusNoGo      Status = "no-go"
)

// ValidStatus reports whether s is one of the known review states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusReviewing, StatusGo, StatusNoGo:
		return true
	}
	return false
}

// Recommendation is the bid recommendation produced by enrichment.
type Recommendation string

const (
	RecStrongGo      Recommendation = "Strong Go"
	RecConditionalGo Recommendation = "Conditional Go"
	RecNoBid         Recommendation = "No Bid"
	RecMonitor       Recommendation = "Monitor"
)

// ValidRecommendation reports whether r is one of the known recommendations.
func ValidRecommendation(r Recommendation) bool {
	switch r {
	case RecStrongGo, RecConditionalGo, RecNoBid, RecMonitor:
		return true
	}
	return false
}

// Normalization fallbacks. Value uses a nominal floor rather than zero so
// downstream sort/filter never treats "unknown" as "worthless".
const (
	UnknownOrganization = "Unknown Organization"
	DefaultRegion       = "UK"
	DefaultCategory     = "Other"
	FallbackValue       = 10000.0
	DefaultDeadlineDays = 30
)

// SironaFit is the strategic-fit assessment merged into a tender after a
// successful enrichment call.
type SironaFit struct {
	AlignmentScore int            `json:"alignment_score"`
	Rationale      string         `json:"rationale"`
	WinThemes      []string       `json:"win_themes"`
	Competitors    []string       `json:"competitors"`
	WeakSpots      []string       `json:"weak_spots"`
	Recommendation Recommendation `json:"recommendation"`
	Categories     []string       `json:"categories,omitempty"`
}

// Tender is the canonical record the rest of the system operates on.
// Normalization either yields a complete Tender satisfying every invariant
// (non-empty title, non-negative value, parseable deadline) or drops the
// source record.
type Tender struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Organization        string     `json:"organization"`
	Value               float64    `json:"value"`
	Deadline            time.Time  `json:"deadline"`
	Status              Status     `json:"status"`
	Summary             string     `json:"summary"`
	DetailedDescription string     `json:"detailedDescription"`
	Categories          []string   `json:"categories"`
	Region              string     `json:"region"`
	URL                 string     `json:"url"`
	SironaFit           *SironaFit `json:"sirona_fit,omitempty"`
	AIAnalyzed          bool       `json:"ai_analyzed"`
	AnalyzedAt          *time.Time `json:"analyzed_at,omitempty"`
	AnalysisError       string     `json:"analysis_error,omitempty"`
}

// Expired reports whether the tender's deadline is strictly in the past.
func (t *Tender) Expired(now time.Time) bool {
	return t.Deadline.Before(now)
}

// AlignmentScore returns the enrichment score, or 0 when the tender has not
// been assessed. Sorting by alignment must not depend on SironaFit presence.
func (t *Tender) AlignmentScore() int {
	if t.SironaFit == nil {
		return 0
	}
	return t.SironaFit.AlignmentScore
}

// HasCategory reports whether the tender carries the given category tag
// (case-insensitive).
func (t *Tender) HasCategory(category string) bool {
	for _, c := range t.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// SearchParams are the user-facing fetch filters. All fields are optional;
// an empty field means no constraint on that dimension. They are persisted
// client-side and replayed on the next load.
type SearchParams struct {
	Keywords      string  `json:"keywords,omitempty"`
	Location      string  `json:"location,omitempty"`
	MinValue      float64 `json:"minValue,omitempty"`
	MaxValue      float64 `json:"maxValue,omitempty"`
	PublishedFrom string  `json:"publishedFrom,omitempty"`
	PublishedTo   string  `json:"publishedTo,omitempty"`
}
