package ingest

import (
	"context"
	"strings"
	"testing"
)

func TestCSVParserBasic(t *testing.T) {
	input := `noticeIdentifier,title,organisationName,awardedValue
CF-001,Community Nursing Services,NHS Somerset,500000
CF-002,School Transport Framework,Devon County Council,1200000
`
	records, err := NewCSVParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if got := records[0].String("title"); got != "Community Nursing Services" {
		t.Errorf("unexpected title %q", got)
	}
	if v, ok := records[1].Float("awardedValue"); !ok || v != 1200000 {
		t.Errorf("expected awardedValue 1200000, got %v (ok=%v)", v, ok)
	}
}

func TestCSVParserSurvivesMalformedRows(t *testing.T) {
	// Unbalanced quote and a short row mixed in with good rows. Both must be
	// tolerated without failing the whole document.
	input := "noticeIdentifier,title,organisationName\n" +
		"CF-001,Good Row One,Buyer A\n" +
		"CF-002,\"Quoted \"\"title\"\" with, comma\",Buyer B\n" +
		"CF-003,Short Row\n" +
		"CF-004,Good Row Two,Buyer C\n"

	records, err := NewCSVParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("malformed rows must not fail the document: %v", err)
	}
	if len(records) < 3 {
		t.Fatalf("expected at least the 3 recoverable rows, got %d", len(records))
	}

	// Short rows are padded, not dropped.
	var shortRow RawRecord
	for _, r := range records {
		if r.String("noticeIdentifier") == "CF-003" {
			shortRow = r
		}
	}
	if shortRow == nil {
		t.Fatal("short row was dropped entirely")
	}
	if got := shortRow.String("organisationName"); got != "" {
		t.Errorf("padded column should be empty, got %q", got)
	}
}

func TestCSVParserUnbalancedQuoteLosesOnlyItsRow(t *testing.T) {
	// The open quote on CF-002 must not swallow the rest of the document:
	// every later well-formed row still parses.
	input := "noticeIdentifier,title,organisationName\n" +
		"CF-001,Good Row One,Buyer A\n" +
		"CF-002,\"Unbalanced quote here,Buyer B\n" +
		"CF-003,Good Row Two,Buyer C\n" +
		"CF-004,Good Row Three,Buyer D\n"

	records, err := NewCSVParser().Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := make(map[string]bool, len(records))
	for _, r := range records {
		got[r.String("noticeIdentifier")] = true
	}
	for _, id := range []string{"CF-001", "CF-003", "CF-004"} {
		if !got[id] {
			t.Errorf("good row %s was lost", id)
		}
	}
	if got["CF-002"] {
		t.Error("malformed row CF-002 should have been dropped")
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}
}

func TestCSVParserEmptyDocument(t *testing.T) {
	records, err := NewCSVParser().Parse(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
