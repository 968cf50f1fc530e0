package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcaplin/tender-banana/internal/models"
)

func day(d int) time.Time {
	return time.Date(2026, 4, d, 23, 59, 59, 0, time.UTC)
}

func sampleTenders() []models.Tender {
	return []models.Tender{
		{
			ID: "a", Title: "Community Nursing", Status: models.StatusNew,
			Value: 500000, Deadline: day(20), Categories: []string{"Healthcare"},
			SironaFit:  &models.SironaFit{AlignmentScore: 85, Recommendation: models.RecStrongGo},
			AIAnalyzed: true,
		},
		{
			ID: "b", Title: "Highway Resurfacing", Status: models.StatusNoGo,
			Value: 2000000, Deadline: day(5), Categories: []string{"Construction"},
			SironaFit:  &models.SironaFit{AlignmentScore: 10, Recommendation: models.RecNoBid},
			AIAnalyzed: true,
		},
		{
			ID: "c", Title: "Reablement Service", Status: models.StatusReviewing,
			Value: 1200000, Deadline: day(12), Categories: []string{"Social Care", "Healthcare"},
		},
		{
			ID: "d", Title: "School Catering", Status: models.StatusNew,
			Value: 300000, Deadline: day(12), Categories: []string{"Facilities Management"},
		},
	}
}

func TestFilterAndSortDefaultCriteria(t *testing.T) {
	in := sampleTenders()

	out := FilterAndSort(in, DefaultCriteria())

	require.Len(t, out, 4)
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(out), "soonest deadline first, equal deadlines keep input order")

	// Pure: input untouched.
	assert.Equal(t, "a", in[0].ID)
}

func TestFilterAndSortIdempotent(t *testing.T) {
	once := FilterAndSort(sampleTenders(), DefaultCriteria())
	twice := FilterAndSort(once, DefaultCriteria())
	assert.Equal(t, ids(once), ids(twice))
}

func TestFilterByStatus(t *testing.T) {
	out := FilterAndSort(sampleTenders(), Criteria{Status: string(models.StatusNew), Recommendation: FilterAll})
	assert.Equal(t, []string{"d", "a"}, ids(out))
}

func TestFilterByRecommendationExcludesUnassessed(t *testing.T) {
	out := FilterAndSort(sampleTenders(), Criteria{
		Status:         FilterAll,
		Recommendation: string(models.RecStrongGo),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestFilterByCategoryIntersection(t *testing.T) {
	out := FilterAndSort(sampleTenders(), Criteria{
		Status:     FilterAll,
		Categories: []string{"healthcare"},
	})
	assert.Equal(t, []string{"c", "a"}, ids(out), "category match is case-insensitive")
}

func TestSortAlignmentPutsUnassessedLast(t *testing.T) {
	out := FilterAndSort(sampleTenders(), Criteria{
		Status:         FilterAll,
		Recommendation: FilterAll,
		Sort:           SortAlignment,
	})
	require.Len(t, out, 4)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	// Unassessed tenders score 0 and sink, keeping their relative order.
	assert.Equal(t, []string{"c", "d"}, ids(out[2:]))
}

func TestSortByValue(t *testing.T) {
	out := FilterAndSort(sampleTenders(), Criteria{Status: FilterAll, Sort: SortValueDesc})
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(out))
}

func ids(tenders []models.Tender) []string {
	out := make([]string, len(tenders))
	for i, t := range tenders {
		out[i] = t.ID
	}
	return out
}
