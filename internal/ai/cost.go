package ai

// Fixed per-tender token assumptions used for pre-run budgeting. These are
// deliberately constant so the estimate is an exact linear function of the
// batch size rather than a function of tender content.
const (
	estimateInputTokens  = 1200
	estimateOutputTokens = 500

	// Proxy list price per million tokens, USD.
	inputPricePerMTok  = 3.0
	outputPricePerMTok = 15.0

	// Fixed conversion for display; the estimate is a budget figure, not a
	// live exchange quote.
	usdToGBP = 0.79

	estimateCurrency = "GBP"
)

// CostEstimate is a deterministic pre-run budget for a batch.
type CostEstimate struct {
	Tenders      int     `json:"tenders"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"estimated_cost"`
	Currency     string  `json:"currency"`
}

// EstimateCost prices a batch of n tenders. EstimateCost(n).Cost is exactly
// n times EstimateCost(1).Cost.
func EstimateCost(n int) CostEstimate {
	perItem := (estimateInputTokens*inputPricePerMTok/1e6 + estimateOutputTokens*outputPricePerMTok/1e6) * usdToGBP
	return CostEstimate{
		Tenders:      n,
		InputTokens:  n * estimateInputTokens,
		OutputTokens: n * estimateOutputTokens,
		Cost:         float64(n) * perItem,
		Currency:     estimateCurrency,
	}
}
