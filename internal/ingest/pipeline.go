package ingest

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xcaplin/tender-banana/internal/cache"
	"github.com/xcaplin/tender-banana/internal/models"
)

// ErrFetchInFlight is returned when a refresh is already running for the same
// cache key. Callers retry after the running fetch lands in the cache.
var ErrFetchInFlight = errors.New("fetch already in flight for this request")

// Pipeline runs the full ingestion flow for a request: fetch the source
// payload, parse it into raw records, normalize, dedupe, and park the result
// in the cache. Per-record losses are counted and logged, never raised; only
// source-level misuse (unknown source id) is an error.
type Pipeline struct {
	Fetcher  Fetcher
	Cache    *cache.Store
	Registry *Registry

	mu       sync.Mutex
	inFlight map[string]struct{}
	norm     *Normalizer
}

// NewPipeline builds a pipeline over the given registry. A nil fetcher means
// each source gets a RetryingFetcher from its own registry fetch config; a
// nil store gets a default-window cache.
func NewPipeline(fetcher Fetcher, store *cache.Store, registry *Registry) *Pipeline {
	if store == nil {
		store = cache.New(0)
	}
	return &Pipeline{
		Fetcher:  fetcher,
		Cache:    store,
		Registry: registry,
		inFlight: make(map[string]struct{}),
		norm:     NewNormalizer(),
	}
}

// Refresh fetches, normalizes, and caches one source's notices for the given
// search parameters. A fresh cache entry short-circuits the network. Fetch
// failures (after retries) resolve to an empty list rather than an error:
// the caller presents the empty state, not a stack trace.
func (p *Pipeline) Refresh(ctx context.Context, sourceID string, params models.SearchParams) ([]models.Tender, FetchStats, error) {
	config, err := p.Registry.Find(sourceID)
	if err != nil {
		return nil, FetchStats{}, err
	}

	key := cache.SearchKey(sourceID, params)
	if data, ok := p.Cache.Get(key); ok {
		log.Printf("[Pipeline] Cache hit for %s (%d tenders)", sourceID, len(data))
		return data, FetchStats{Source: sourceID, Normalized: len(data)}, nil
	}

	if !p.acquire(key) {
		return nil, FetchStats{}, ErrFetchInFlight
	}
	defer p.release(key)

	stats := FetchStats{
		RunID:  uuid.NewString(),
		Source: sourceID,
	}
	start := time.Now()

	tenders := p.runSource(ctx, *config, params, &stats)
	tenders = p.applyParams(tenders, params)
	before := len(tenders)
	tenders = DedupeByID(tenders)
	stats.DupesDropped = before - len(tenders)
	stats.Duration = time.Since(start)

	p.Cache.PutFor(key, tenders, time.Duration(config.CacheTTLMinutes)*time.Minute)
	log.Printf("[Pipeline] Run %s source=%s found=%d normalized=%d title_drops=%d dupes=%d in %s",
		stats.RunID, sourceID, stats.Found, stats.Normalized, stats.TitleDrops, stats.DupesDropped, stats.Duration)
	return tenders, stats, nil
}

// RefreshAll fetches every registry source, merges the results, and dedupes
// across sources by title+organization (IDs from independent sources don't
// line up). A failing source is logged and skipped, like any per-record loss.
func (p *Pipeline) RefreshAll(ctx context.Context, params models.SearchParams) ([]models.Tender, FetchStats, error) {
	key := cache.SearchKey("all", params)
	if data, ok := p.Cache.Get(key); ok {
		return data, FetchStats{Source: "all", Normalized: len(data)}, nil
	}

	if !p.acquire(key) {
		return nil, FetchStats{}, ErrFetchInFlight
	}
	defer p.release(key)

	stats := FetchStats{
		RunID:  uuid.NewString(),
		Source: "all",
	}
	start := time.Now()

	var merged []models.Tender
	for _, config := range p.Registry.Sources {
		merged = append(merged, p.runSource(ctx, config, params, &stats)...)
	}

	merged = p.applyParams(merged, params)
	before := len(merged)
	merged = DedupeByTitleOrg(merged)
	stats.DupesDropped = before - len(merged)
	stats.Duration = time.Since(start)

	p.Cache.Put(key, merged)
	log.Printf("[Pipeline] Run %s merged %d sources: found=%d normalized=%d dupes=%d in %s",
		stats.RunID, len(p.Registry.Sources), stats.Found, stats.Normalized, stats.DupesDropped, stats.Duration)
	return merged, stats, nil
}

// runSource executes fetch → parse → normalize for one source, accumulating
// stage counters. Failures degrade to zero records.
func (p *Pipeline) runSource(ctx context.Context, config SourceConfig, params models.SearchParams, stats *FetchStats) []models.Tender {
	parser, err := config.Parser()
	if err != nil {
		log.Printf("[Pipeline] %v", err)
		return nil
	}

	fetcher := p.Fetcher
	if fetcher == nil {
		fetcher = NewRetryingFetcher(config.Fetch)
	}

	doc, err := fetcher.Fetch(ctx, buildSourceURL(config, params))
	if err != nil {
		log.Printf("[Pipeline] Fetch failed for %s: %v", config.ID, err)
		return nil
	}
	defer doc.Body.Close()

	records, err := parser.Parse(ctx, doc.Body)
	if err != nil {
		log.Printf("[Pipeline] Parse failed for %s: %v", config.ID, err)
		return nil
	}
	stats.Found += len(records)

	var tenders []models.Tender
	for _, rec := range records {
		t := p.norm.Normalize(rec)
		if t == nil {
			stats.TitleDrops++
			continue
		}
		tenders = append(tenders, *t)
	}
	stats.Normalized += len(tenders)
	return tenders
}

// buildSourceURL appends the date window parameters the source APIs accept.
// Keyword/location/value constraints are applied locally after normalization
// so both source kinds behave the same.
func buildSourceURL(config SourceConfig, params models.SearchParams) string {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return config.BaseURL
	}
	q := u.Query()
	if params.PublishedFrom != "" {
		q.Set("publishedFrom", params.PublishedFrom)
	}
	if params.PublishedTo != "" {
		q.Set("publishedTo", params.PublishedTo)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// applyParams filters the normalized list by the request's keyword, location,
// and value constraints. Empty parameters constrain nothing.
func (p *Pipeline) applyParams(tenders []models.Tender, params models.SearchParams) []models.Tender {
	keywords := splitKeywords(params.Keywords)
	location := strings.ToLower(strings.TrimSpace(params.Location))

	out := tenders[:0:0]
	for _, t := range tenders {
		if params.MinValue > 0 && t.Value < params.MinValue {
			continue
		}
		if params.MaxValue > 0 && t.Value > params.MaxValue {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(t.Region), location) {
			continue
		}
		if len(keywords) > 0 && !matchesKeywords(t, keywords) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func splitKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Fields(strings.ToLower(s)) {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func matchesKeywords(t models.Tender, keywords []string) bool {
	text := strings.ToLower(t.Title + " " + t.DetailedDescription)
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (p *Pipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}
