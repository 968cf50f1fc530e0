package ingest

import (
	"strings"

	"github.com/xcaplin/tender-banana/internal/models"
)

// DedupeByID collapses tenders sharing an exact ID. Order is stable: the
// first occurrence wins. Use when IDs are trustworthy (single OCID-keyed
// source).
func DedupeByID(tenders []models.Tender) []models.Tender {
	seen := make(map[string]struct{}, len(tenders))
	out := make([]models.Tender, 0, len(tenders))
	for _, t := range tenders {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DedupeByTitleOrg collapses tenders sharing a normalized title+organization
// key, first occurrence wins. Used when merging independent sources whose IDs
// don't line up. Lossy on purpose: two distinct notices with identical title
// and buyer text are conflated.
func DedupeByTitleOrg(tenders []models.Tender) []models.Tender {
	seen := make(map[string]struct{}, len(tenders))
	out := make([]models.Tender, 0, len(tenders))
	for _, t := range tenders {
		key := strings.ToLower(cleanText(t.Title)) + "|" + strings.ToLower(cleanText(t.Organization))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
