package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcaplin/tender-banana/internal/models"
)

const goodReply = `{
  "alignment_score": 82,
  "rationale": "Core community health overlap in home territory.",
  "win_themes": ["Incumbent geography", "Integrated care record", "ICB relationships"],
  "competitors": ["HCRG Care Group", "Virgin Care", "Local GP federation"],
  "weak_spots": ["Mobilization timeline", "TUPE exposure"],
  "recommendation": "Strong Go"
}`

type mockClient struct {
	reply   string
	err     error
	calls   int
	starts  []time.Time
	prompts []string
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.starts = append(m.starts, time.Now())
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func testTender(id string) models.Tender {
	return models.Tender{
		ID:           id,
		Title:        "Community Health Services " + id,
		Organization: "NHS BNSSG ICB",
		Value:        2500000,
		Deadline:     time.Now().Add(30 * 24 * time.Hour),
		Status:       models.StatusNew,
	}
}

func newTestAnalyst(client CompletionClient) *Analyst {
	a := NewAnalyst(client, time.Millisecond)
	return a
}

func TestEnrichOneSuccess(t *testing.T) {
	client := &mockClient{reply: goodReply}
	a := newTestAnalyst(client)

	got := a.EnrichOne(context.Background(), testTender("t1"))

	require.NotNil(t, got.SironaFit)
	assert.True(t, got.AIAnalyzed)
	assert.NotNil(t, got.AnalyzedAt)
	assert.Empty(t, got.AnalysisError)
	assert.Equal(t, 82, got.SironaFit.AlignmentScore)
	assert.Equal(t, models.RecStrongGo, got.SironaFit.Recommendation)
	assert.Len(t, got.SironaFit.WinThemes, 3)
}

func TestEnrichOneMergesCategories(t *testing.T) {
	reply := `{"alignment_score": 60, "rationale": "x", "win_themes": ["a"], "competitors": ["b"], "weak_spots": ["c"], "recommendation": "Monitor", "categories": ["Community Health", "healthcare"]}`
	a := newTestAnalyst(&mockClient{reply: reply})

	tender := testTender("t1")
	tender.Categories = []string{"Healthcare"}

	got := a.EnrichOne(context.Background(), tender)
	assert.Equal(t, []string{"Healthcare", "Community Health"}, got.Categories, "model tags merge without case-insensitive duplicates")
}

func TestEnrichOneFencedReply(t *testing.T) {
	client := &mockClient{reply: "```json\n" + goodReply + "\n```"}
	a := newTestAnalyst(client)

	got := a.EnrichOne(context.Background(), testTender("t1"))
	assert.True(t, got.AIAnalyzed)
	assert.Equal(t, 82, got.AlignmentScore())
}

func TestEnrichOneChattyReply(t *testing.T) {
	client := &mockClient{reply: "Here is my assessment:\n" + goodReply + "\nLet me know if you need more."}
	a := newTestAnalyst(client)

	got := a.EnrichOne(context.Background(), testTender("t1"))
	assert.True(t, got.AIAnalyzed)
	assert.Equal(t, 82, got.AlignmentScore())
}

func TestEnrichOneNeverFails(t *testing.T) {
	tests := []struct {
		name   string
		client *mockClient
		kind   FailureKind
	}{
		{"transport error", &mockClient{err: failure(FailureTransport, errors.New("connection refused"))}, FailureTransport},
		{"bad status", &mockClient{err: failure(FailureStatus, errors.New("api returned 429"))}, FailureStatus},
		{"unparseable reply", &mockClient{reply: "I cannot assess this tender."}, FailureParse},
		{"missing required field", &mockClient{reply: `{"alignment_score": 70, "rationale": "ok"}`}, FailureSchema},
		{"invalid recommendation", &mockClient{reply: `{"alignment_score": 70, "rationale": "x", "win_themes": ["a"], "competitors": ["b"], "weak_spots": ["c"], "recommendation": "Maybe"}`}, FailureSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyst(tt.client)

			got := a.EnrichOne(context.Background(), testTender("t1"))

			require.NotNil(t, got.SironaFit, "failed enrichment still yields a usable fit")
			assert.False(t, got.AIAnalyzed)
			assert.Nil(t, got.AnalyzedAt)
			assert.Equal(t, 50, got.SironaFit.AlignmentScore)
			assert.Equal(t, models.RecMonitor, got.SironaFit.Recommendation)
			assert.Contains(t, got.AnalysisError, string(tt.kind))
		})
	}
}

func TestEnrichOneExpiredSkipsNetwork(t *testing.T) {
	client := &mockClient{reply: goodReply}
	a := newTestAnalyst(client)

	expired := testTender("t1")
	expired.Deadline = time.Now().Add(-24 * time.Hour)

	got := a.EnrichOne(context.Background(), expired)

	assert.Zero(t, client.calls, "expired tenders must not reach the completion API")
	require.NotNil(t, got.SironaFit)
	assert.True(t, got.AIAnalyzed)
	assert.Equal(t, models.RecNoBid, got.SironaFit.Recommendation)
	assert.Equal(t, 0, got.SironaFit.AlignmentScore)
}

func TestEnrichOneClampsScore(t *testing.T) {
	reply := `{"alignment_score": 140, "rationale": "x", "win_themes": ["a"], "competitors": ["b"], "weak_spots": ["c"], "recommendation": "Monitor"}`
	a := newTestAnalyst(&mockClient{reply: reply})

	got := a.EnrichOne(context.Background(), testTender("t1"))
	assert.Equal(t, 100, got.AlignmentScore())
}

func TestEnrichBatchEmpty(t *testing.T) {
	a := newTestAnalyst(&mockClient{reply: goodReply})

	_, err := a.EnrichBatch(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestEnrichBatchProgressAndOrder(t *testing.T) {
	a := newTestAnalyst(&mockClient{err: failure(FailureTransport, errors.New("down"))})

	in := []models.Tender{testTender("t1"), testTender("t2"), testTender("t3")}

	var progress []int
	out, err := a.EnrichBatch(context.Background(), in, func(completed, total int, last models.Tender) {
		assert.Equal(t, 3, total)
		assert.Equal(t, fmt.Sprintf("t%d", completed), last.ID)
		progress = append(progress, completed)
	})

	require.NoError(t, err, "per-item failures never fail the batch")
	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 2, 3}, progress, "progress fires once per item, in order")

	for i, tender := range out {
		assert.Equal(t, in[i].ID, tender.ID, "output preserves input order")
		assert.False(t, tender.AIAnalyzed)
		assert.NotEmpty(t, tender.AnalysisError)
	}
}

func TestEnrichBatchSpacesFirstGap(t *testing.T) {
	client := &mockClient{reply: goodReply}
	a := NewAnalyst(client, 100*time.Millisecond)

	in := []models.Tender{testTender("t1"), testTender("t2")}
	_, err := a.EnrichBatch(context.Background(), in, nil)

	require.NoError(t, err)
	require.Len(t, client.starts, 2)
	gap := client.starts[1].Sub(client.starts[0])
	assert.GreaterOrEqual(t, gap, 90*time.Millisecond, "spacing applies between the first and second call starts")
}

func TestBuildPromptTruncatesOnRuneBoundary(t *testing.T) {
	tender := testTender("t1")
	tender.DetailedDescription = strings.Repeat("€", 2000) // 6000 bytes, cap falls mid-rune

	client := &mockClient{reply: goodReply}
	a := newTestAnalyst(client)
	a.EnrichOne(context.Background(), tender)

	require.Len(t, client.prompts, 1)
	assert.True(t, utf8.ValidString(client.prompts[0]), "truncated description must stay valid UTF-8")
}

func TestEnrichBatchCancelPreservesRemainder(t *testing.T) {
	a := newTestAnalyst(&mockClient{reply: goodReply})

	ctx, cancel := context.WithCancel(context.Background())
	in := []models.Tender{testTender("t1"), testTender("t2"), testTender("t3")}

	out, err := a.EnrichBatch(ctx, in, func(completed, total int, last models.Tender) {
		if completed == 1 {
			cancel()
		}
	})

	require.NoError(t, err)
	require.Len(t, out, 3, "cancellation keeps the length/order contract")
	assert.True(t, out[0].AIAnalyzed)
	assert.False(t, out[1].AIAnalyzed)
	assert.Empty(t, out[1].AnalysisError, "unprocessed tenders come back untouched")
	assert.False(t, out[2].AIAnalyzed)
}

func TestEstimateCostLinear(t *testing.T) {
	one := EstimateCost(1)
	ten := EstimateCost(10)

	assert.Equal(t, one.Cost*10, ten.Cost, "estimate is exactly linear in batch size")
	assert.Equal(t, one.InputTokens*10, ten.InputTokens)
	assert.Equal(t, one.OutputTokens*10, ten.OutputTokens)
	assert.Equal(t, "GBP", ten.Currency)

	zero := EstimateCost(0)
	assert.Zero(t, zero.Cost)
}

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"nested braces", `text {"a": {"b": 2}} tail`, `{"a": {"b": 2}}`, true},
		{"brace inside string", `{"a": "closing } brace"}`, `{"a": "closing } brace"}`, true},
		{"no object", "nothing here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFirstJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
