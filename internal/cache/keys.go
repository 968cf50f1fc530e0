package cache

import (
	"fmt"
	"strings"

	"github.com/xcaplin/tender-banana/internal/models"
)

// AllNoticesKey caches whole-dataset pulls spanning the fixed day window.
const AllNoticesKey = "tenders:all"

// SearchKey builds the canonical cache key for a parameterized fetch. The
// serialization is positional, so two requests with the same parameters
// always map to the same entry regardless of how the caller built them.
func SearchKey(source string, p models.SearchParams) string {
	fields := []string{
		strings.ToLower(strings.TrimSpace(p.Keywords)),
		strings.ToLower(strings.TrimSpace(p.Location)),
		fmt.Sprintf("%.0f", p.MinValue),
		fmt.Sprintf("%.0f", p.MaxValue),
		strings.TrimSpace(p.PublishedFrom),
		strings.TrimSpace(p.PublishedTo),
	}
	return fmt.Sprintf("tenders:%s:%s", source, strings.Join(fields, "|"))
}
