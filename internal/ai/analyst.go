package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/xcaplin/tender-banana/internal/models"
)

// DefaultBatchDelay is the minimum spacing between completion call starts in
// a batch, a politeness floor against the proxy's rate limits.
const DefaultBatchDelay = 750 * time.Millisecond

// ProgressFunc is invoked synchronously after each batch item completes
// (success or failure), before the inter-call delay. completed counts from 1.
type ProgressFunc func(completed, total int, last models.Tender)

// Analyst runs the strategic-fit enrichment workflow. All configuration is
// explicit; there is no module-level credential state.
type Analyst struct {
	client  CompletionClient
	limiter *rate.Limiter
	now     func() time.Time
}

func NewAnalyst(client CompletionClient, batchDelay time.Duration) *Analyst {
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}
	return &Analyst{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(batchDelay), 1),
		now:     time.Now,
	}
}

const fitPromptTemplate = `You are a bid qualification analyst for Sirona Care & Health, a community
interest company delivering NHS community health and social care services
across Bristol, North Somerset and South Gloucestershire. Sirona's strengths:
integrated community healthcare, adult and children's community services,
urgent community response, partnership working with ICBs and local
authorities. Sirona does not bid on acute hospital services, construction, or
pure IT supply.

Assess the following tender for strategic fit.

Title: %s
Buyer: %s
Value: £%.0f
Deadline: %s
Description: %s

Scoring rubric:
- 80-100: core service overlap, incumbent-adjacent geography
- 50-79: credible capability, partnership or stretch territory
- 20-49: marginal overlap, would need a lead partner
- 0-19: out of scope

Respond ONLY with a JSON object:
{
  "alignment_score": integer 0-100,
  "rationale": "2-3 sentences",
  "win_themes": ["3-5 strings"],
  "competitors": ["3-5 likely bidders"],
  "weak_spots": ["2-4 strings"],
  "recommendation": "Strong Go" | "Conditional Go" | "No Bid" | "Monitor",
  "categories": ["optional service tags"]
}`

func buildPrompt(t models.Tender) string {
	desc := t.DetailedDescription
	if desc == "" {
		desc = t.Summary
	}
	if len(desc) > 4000 {
		cut := 4000
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
		desc = desc[:cut]
	}
	return fmt.Sprintf(fitPromptTemplate, t.Title, t.Organization, t.Value, t.Deadline.Format("2 January 2006"), desc)
}

// EnrichOne assesses one tender. It always returns a usable tender and never
// an error: on success the validated fit is merged with AIAnalyzed=true; on
// any failure the original tender comes back with a conservative default fit,
// AIAnalyzed=false, and the failure kind recorded in AnalysisError. Callers
// never special-case a failed enrichment.
//
// Tenders whose deadline has already passed are disqualified locally, with no
// network call: an expired notice is a deterministic No Bid.
func (a *Analyst) EnrichOne(ctx context.Context, t models.Tender) models.Tender {
	if t.Expired(a.now()) {
		return a.markExpired(t)
	}

	reply, err := a.client.Complete(ctx, buildPrompt(t))
	if err != nil {
		return a.markFailed(t, err)
	}

	fit, err := parseFitResponse(reply)
	if err != nil {
		return a.markFailed(t, err)
	}

	now := a.now()
	t.SironaFit = fit
	t.Categories = mergeUniqueFold(t.Categories, fit.Categories)
	t.AIAnalyzed = true
	t.AnalyzedAt = &now
	t.AnalysisError = ""
	return t
}

// mergeUniqueFold appends items to dst, skipping case-insensitive duplicates.
func mergeUniqueFold(dst []string, items []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		k := strings.ToLower(strings.TrimSpace(v))
		if k != "" {
			seen[k] = struct{}{}
		}
	}
	for _, v := range items {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		dst = append(dst, v)
		seen[k] = struct{}{}
	}
	return dst
}

func (a *Analyst) markExpired(t models.Tender) models.Tender {
	now := a.now()
	t.SironaFit = &models.SironaFit{
		AlignmentScore: 0,
		Rationale:      "Deadline has already passed; expired opportunities are not assessed or bid.",
		WinThemes:      []string{},
		Competitors:    []string{},
		WeakSpots:      []string{"Submission window closed"},
		Recommendation: models.RecNoBid,
	}
	t.AIAnalyzed = true
	t.AnalyzedAt = &now
	t.AnalysisError = ""
	return t
}

func (a *Analyst) markFailed(t models.Tender, err error) models.Tender {
	log.Printf("[Analyst] Enrichment failed for %q: %v", t.Title, err)
	t.SironaFit = &models.SironaFit{
		AlignmentScore: 50,
		Rationale:      "Automated assessment unavailable; defaulting to manual review.",
		WinThemes:      []string{},
		Competitors:    []string{},
		WeakSpots:      []string{},
		Recommendation: models.RecMonitor,
	}
	t.AIAnalyzed = false
	t.AnalyzedAt = nil
	t.AnalysisError = err.Error()
	return t
}

// EnrichBatch assesses tenders sequentially: at most one call in flight, with
// a minimum spacing between call starts. The result always has the same
// length and order as the input; per-item failures are encoded in the items.
// onProgress (optional) fires synchronously after each item, before the
// spacing wait.
//
// Cancelling ctx stops before the next item starts; remaining tenders are
// returned unmodified so the length/order contract holds. An empty input is
// caller misuse and fails immediately with ErrEmptyBatch.
func (a *Analyst) EnrichBatch(ctx context.Context, tenders []models.Tender, onProgress ProgressFunc) ([]models.Tender, error) {
	if len(tenders) == 0 {
		return nil, ErrEmptyBatch
	}

	out := make([]models.Tender, len(tenders))
	copy(out, tenders)

	for i, t := range tenders {
		// Waiting before every item, first included, consumes the limiter's
		// initial token so the gap between the first and second call starts
		// is already spaced.
		if err := a.limiter.Wait(ctx); err != nil {
			return out, nil
		}

		out[i] = a.EnrichOne(ctx, t)
		if onProgress != nil {
			onProgress(i+1, len(tenders), out[i])
		}
	}
	return out, nil
}

// rawFit is the wire shape of the completion reply. Pointer fields
// distinguish "absent" from zero values during validation.
type rawFit struct {
	AlignmentScore *int     `json:"alignment_score"`
	Rationale      string   `json:"rationale"`
	WinThemes      []string `json:"win_themes"`
	Competitors    []string `json:"competitors"`
	WeakSpots      []string `json:"weak_spots"`
	Recommendation string   `json:"recommendation"`
	Categories     []string `json:"categories"`
}

// parseFitResponse strips the code-fence markup the completion API sometimes
// wraps output in, extracts the first balanced JSON object, and validates the
// required fields. Any shortfall routes through the same failure path as a
// transport error.
func parseFitResponse(reply string) (*models.SironaFit, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if jsonStr, ok := extractFirstJSONObject(cleaned); ok {
		cleaned = jsonStr
	}

	var raw rawFit
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, failure(FailureParse, err)
	}

	switch {
	case raw.AlignmentScore == nil:
		return nil, failure(FailureSchema, fmt.Errorf("missing alignment_score"))
	case raw.Rationale == "":
		return nil, failure(FailureSchema, fmt.Errorf("missing rationale"))
	case len(raw.WinThemes) == 0:
		return nil, failure(FailureSchema, fmt.Errorf("missing win_themes"))
	case len(raw.Competitors) == 0:
		return nil, failure(FailureSchema, fmt.Errorf("missing competitors"))
	case len(raw.WeakSpots) == 0:
		return nil, failure(FailureSchema, fmt.Errorf("missing weak_spots"))
	case !models.ValidRecommendation(models.Recommendation(raw.Recommendation)):
		return nil, failure(FailureSchema, fmt.Errorf("invalid recommendation %q", raw.Recommendation))
	}

	score := *raw.AlignmentScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	categories := raw.Categories
	if categories == nil {
		categories = []string{}
	}

	return &models.SironaFit{
		AlignmentScore: score,
		Rationale:      raw.Rationale,
		WinThemes:      raw.WinThemes,
		Competitors:    raw.Competitors,
		WeakSpots:      raw.WeakSpots,
		Recommendation: models.Recommendation(raw.Recommendation),
		Categories:     categories,
	}, nil
}

// extractFirstJSONObject finds the first outermost balanced {...}.
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
