package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestExpired(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	tender := Tender{Deadline: now.Add(time.Hour)}
	if tender.Expired(now) {
		t.Error("future deadline must not be expired")
	}

	tender.Deadline = now.Add(-time.Hour)
	if !tender.Expired(now) {
		t.Error("past deadline must be expired")
	}
}

func TestAlignmentScoreWithoutFit(t *testing.T) {
	tender := Tender{}
	if got := tender.AlignmentScore(); got != 0 {
		t.Errorf("unassessed tender must score 0, got %d", got)
	}

	tender.SironaFit = &SironaFit{AlignmentScore: 73}
	if got := tender.AlignmentScore(); got != 73 {
		t.Errorf("expected 73, got %d", got)
	}
}

func TestHasCategory(t *testing.T) {
	tender := Tender{Categories: []string{"Healthcare", "Social Care"}}

	if !tender.HasCategory("healthcare") {
		t.Error("category match must be case-insensitive")
	}
	if tender.HasCategory("Transport") {
		t.Error("unexpected category match")
	}
}

func TestJSONFieldNames(t *testing.T) {
	analyzedAt := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	tender := Tender{
		ID:         "t1",
		Title:      "X",
		SironaFit:  &SironaFit{Recommendation: RecMonitor},
		AIAnalyzed: true,
		AnalyzedAt: &analyzedAt,
	}

	data, err := json.Marshal(tender)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"sirona_fit", "ai_analyzed", "analyzed_at", "detailedDescription"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected JSON key %q, got %v", key, m)
		}
	}
}

func TestValidators(t *testing.T) {
	if !ValidStatus(StatusReviewing) || ValidStatus(Status("open")) {
		t.Error("ValidStatus wrong")
	}
	if !ValidRecommendation(RecConditionalGo) || ValidRecommendation(Recommendation("Maybe")) {
		t.Error("ValidRecommendation wrong")
	}
}
