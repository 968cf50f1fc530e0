// Package view holds the pure derivation functions between the canonical
// tender list and what the dashboard renders.
package view

import (
	"sort"

	"github.com/xcaplin/tender-banana/internal/models"
)

// SortOrder selects the comparator for FilterAndSort.
type SortOrder string

const (
	SortDeadlineAsc  SortOrder = "deadline-asc"
	SortDeadlineDesc SortOrder = "deadline-desc"
	SortValueDesc    SortOrder = "value-desc"
	SortValueAsc     SortOrder = "value-asc"
	SortAlignment    SortOrder = "alignment-desc"
)

// FilterAll disables a filter dimension.
const FilterAll = "all"

// Criteria are the dashboard's view controls. Predicates are AND-combined;
// "all" (or an empty category selection) skips that dimension.
type Criteria struct {
	Status         string    `json:"status"`
	Recommendation string    `json:"recommendation"`
	Categories     []string  `json:"categories"`
	Sort           SortOrder `json:"sort"`
}

// DefaultCriteria matches every tender and sorts by soonest deadline.
func DefaultCriteria() Criteria {
	return Criteria{
		Status:         FilterAll,
		Recommendation: FilterAll,
		Sort:           SortDeadlineAsc,
	}
}

// FilterAndSort derives a view of tenders for the given criteria. It is pure:
// the input slice is never reordered or mutated. The sort is stable, so
// equal-key tenders keep their incoming order.
func FilterAndSort(tenders []models.Tender, criteria Criteria) []models.Tender {
	out := make([]models.Tender, 0, len(tenders))
	for _, t := range tenders {
		if !matches(t, criteria) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, comparator(out, criteria.Sort))
	return out
}

func matches(t models.Tender, c Criteria) bool {
	if c.Status != "" && c.Status != FilterAll && string(t.Status) != c.Status {
		return false
	}
	if c.Recommendation != "" && c.Recommendation != FilterAll {
		// Unassessed tenders carry no recommendation at all.
		if t.SironaFit == nil || string(t.SironaFit.Recommendation) != c.Recommendation {
			return false
		}
	}
	if len(c.Categories) > 0 {
		hit := false
		for _, cat := range c.Categories {
			if t.HasCategory(cat) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func comparator(tenders []models.Tender, order SortOrder) func(i, j int) bool {
	switch order {
	case SortDeadlineDesc:
		return func(i, j int) bool { return tenders[i].Deadline.After(tenders[j].Deadline) }
	case SortValueDesc:
		return func(i, j int) bool { return tenders[i].Value > tenders[j].Value }
	case SortValueAsc:
		return func(i, j int) bool { return tenders[i].Value < tenders[j].Value }
	case SortAlignment:
		// Absent SironaFit sorts as score 0, below any assessed tender.
		return func(i, j int) bool { return tenders[i].AlignmentScore() > tenders[j].AlignmentScore() }
	default:
		return func(i, j int) bool { return tenders[i].Deadline.Before(tenders[j].Deadline) }
	}
}
