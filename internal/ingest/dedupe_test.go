package ingest

import (
	"testing"

	"github.com/xcaplin/tender-banana/internal/models"
)

func TestDedupeByIDFirstWins(t *testing.T) {
	in := []models.Tender{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
		{ID: "a", Title: "Duplicate of first"},
	}

	out := DedupeByID(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 tenders, got %d", len(out))
	}
	if out[0].Title != "First" || out[1].Title != "Second" {
		t.Errorf("order or winner wrong: %+v", out)
	}
}

func TestDedupeByTitleOrg(t *testing.T) {
	in := []models.Tender{
		{ID: "cf-1", Title: "Community Equipment Service", Organization: "Bristol City Council"},
		{ID: "ft-9", Title: "  community equipment   service ", Organization: "BRISTOL CITY COUNCIL"},
		{ID: "ft-2", Title: "Community Equipment Service", Organization: "Somerset Council"},
	}

	out := DedupeByTitleOrg(in)
	if len(out) != 2 {
		t.Fatalf("expected cross-source duplicate collapsed, got %d", len(out))
	}
	if out[0].ID != "cf-1" {
		t.Errorf("first occurrence must win, got %q", out[0].ID)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	in := []models.Tender{
		{ID: "a", Title: "One", Organization: "X"},
		{ID: "b", Title: "Two", Organization: "Y"},
	}

	once := DedupeByID(DedupeByTitleOrg(in))
	twice := DedupeByID(DedupeByTitleOrg(once))
	if len(once) != len(twice) {
		t.Fatalf("dedup must be idempotent: %d vs %d", len(once), len(twice))
	}
}
