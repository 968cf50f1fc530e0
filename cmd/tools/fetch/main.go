package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/xcaplin/tender-banana/internal/ingest"
	"github.com/xcaplin/tender-banana/internal/models"
)

func main() {
	source := flag.String("source", "", "Source ID from the registry (empty = all sources)")
	keywords := flag.String("q", "", "Keyword filter")
	location := flag.String("location", "", "Location filter")
	minValue := flag.Float64("min-value", 0, "Minimum contract value")
	maxValue := flag.Float64("max-value", 0, "Maximum contract value")
	timeoutSec := flag.Int("timeout-sec", 120, "Overall timeout in seconds")
	flag.Parse()

	_ = godotenv.Load()

	registry, err := ingest.LoadRegistry()
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSec)*time.Second)
	defer cancel()

	pipeline := ingest.NewPipeline(nil, nil, registry)
	params := models.SearchParams{
		Keywords: *keywords,
		Location: *location,
		MinValue: *minValue,
		MaxValue: *maxValue,
	}

	var (
		tenders []models.Tender
		stats   ingest.FetchStats
	)
	if *source == "" {
		tenders, stats, err = pipeline.RefreshAll(ctx, params)
	} else {
		tenders, stats, err = pipeline.Refresh(ctx, *source, params)
	}
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Buyer", "Value", "Deadline", "Categories"})

	for _, tender := range tenders {
		title := tender.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		t.AppendRow(table.Row{
			tender.ID,
			title,
			tender.Organization,
			fmt.Sprintf("£%.0f", tender.Value),
			tender.Deadline.Format("2006-01-02"),
			fmt.Sprintf("%v", tender.Categories),
		})
	}
	t.Render()

	fmt.Printf("\nTotals: found=%d normalized=%d parse_drops=%d title_drops=%d dupes=%d in %s\n",
		stats.Found, stats.Normalized, stats.ParseDrops, stats.TitleDrops, stats.DupesDropped, stats.Duration)
}
