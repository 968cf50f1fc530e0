package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/xcaplin/tender-banana/internal/ai"
	"github.com/xcaplin/tender-banana/internal/config"
	"github.com/xcaplin/tender-banana/internal/ingest"
	"github.com/xcaplin/tender-banana/internal/models"
)

func main() {
	source := flag.String("source", "", "Source ID from the registry (empty = all sources)")
	keywords := flag.String("q", "", "Keyword filter before analysis")
	maxItems := flag.Int("max-items", 25, "Cap on tenders to analyze")
	estimateOnly := flag.Bool("estimate-only", false, "Print the cost estimate and exit")
	timeoutMin := flag.Int("timeout-min", 30, "Overall timeout in minutes")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.AIAPIKey == "" && !*estimateOnly {
		exitErr(ai.ErrMissingAPIKey)
	}
	if *maxItems <= 0 {
		exitErr(errors.New("max-items must be > 0"))
	}

	registry, err := ingest.LoadRegistry()
	if err != nil {
		exitErr(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutMin)*time.Minute)
	defer cancel()

	pipeline := ingest.NewPipeline(nil, nil, registry)
	params := models.SearchParams{Keywords: *keywords}

	var tenders []models.Tender
	if *source == "" {
		tenders, _, err = pipeline.RefreshAll(ctx, params)
	} else {
		tenders, _, err = pipeline.Refresh(ctx, *source, params)
	}
	if err != nil {
		exitErr(err)
	}
	if len(tenders) > *maxItems {
		tenders = tenders[:*maxItems]
	}
	if len(tenders) == 0 {
		exitErr(errors.New("no tenders matched; nothing to analyze"))
	}

	estimate := ai.EstimateCost(len(tenders))
	fmt.Printf("Batch: %d tenders, estimated cost %.4f %s\n", estimate.Tenders, estimate.Cost, estimate.Currency)
	if *estimateOnly {
		return
	}

	client := ai.NewProxyClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
	analyst := ai.NewAnalyst(client, cfg.BatchDelay)

	start := time.Now()
	enriched, err := analyst.EnrichBatch(ctx, tenders, func(completed, total int, last models.Tender) {
		log.Printf("[%d/%d] %s -> %s", completed, total, last.Title, recommendationOf(last))
	})
	if err != nil {
		exitErr(err)
	}

	printReport(enriched, time.Since(start))
}

func recommendationOf(t models.Tender) string {
	if t.SironaFit == nil {
		return "-"
	}
	if t.AnalysisError != "" {
		return fmt.Sprintf("%s (failed: %s)", t.SironaFit.Recommendation, t.AnalysisError)
	}
	return string(t.SironaFit.Recommendation)
}

func printReport(tenders []models.Tender, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Title", "Buyer", "Score", "Recommendation", "Error"})

	failed := 0
	for _, tender := range tenders {
		if !tender.AIAnalyzed {
			failed++
		}
		title := tender.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		t.AppendRow(table.Row{
			title,
			tender.Organization,
			tender.AlignmentScore(),
			recommendationOf(tender),
			tender.AnalysisError,
		})
	}
	t.Render()

	fmt.Printf("\nTotals: analyzed=%d failed=%d in %s\n", len(tenders)-failed, failed, elapsed.Round(time.Second))
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
