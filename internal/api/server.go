package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xcaplin/tender-banana/internal/ai"
	"github.com/xcaplin/tender-banana/internal/cache"
	"github.com/xcaplin/tender-banana/internal/config"
	"github.com/xcaplin/tender-banana/internal/ingest"
	"github.com/xcaplin/tender-banana/internal/models"
	"github.com/xcaplin/tender-banana/internal/view"
)

type Server struct {
	Echo     *echo.Echo
	Pipeline *ingest.Pipeline
	Analyst  *ai.Analyst
	Registry *ingest.Registry

	// Latest refreshed tenders, keyed by ID. order preserves the pipeline's
	// output ordering for listing.
	mu      sync.Mutex
	tenders map[string]models.Tender
	order   []string

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(cfg config.Config) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	registry, err := ingest.LoadRegistry()
	if err != nil {
		log.Fatalf("Failed to load source registry: %v", err)
	}

	pipeline := ingest.NewPipeline(nil, cache.New(cfg.CacheWindow), registry)
	client := ai.NewProxyClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
	analyst := ai.NewAnalyst(client, cfg.BatchDelay)

	s := &Server{
		Echo:     e,
		Pipeline: pipeline,
		Analyst:  analyst,
		Registry: registry,
		tenders:  make(map[string]models.Tender),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/tenders", s.handleListTenders)
	api.GET("/tenders/:id", s.handleGetTender)
	api.PATCH("/tenders/:id/status", s.handleUpdateStatus)
	api.GET("/sources", s.handleGetSources)
	api.GET("/aggregations", s.handleGetAggregations)

	api.POST("/refresh", s.handleRefresh)
	api.POST("/refresh/:source", s.handleRefreshSource)

	api.POST("/tenders/:id/analyze", s.handleAnalyzeOne)
	api.POST("/analyze", s.handleAnalyzeBatch)
	api.GET("/analyze/estimate", s.handleEstimate)
	api.GET("/analyze/job/:id", s.handleJobStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// snapshot returns the current tenders in listing order.
func (s *Server) snapshot() []models.Tender {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Tender, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tenders[id])
	}
	return out
}

// replace installs a fresh pipeline result, carrying over review status and
// any existing analysis for tenders that survived the refresh.
func (s *Server) replace(fresh []models.Tender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]models.Tender, len(fresh))
	order := make([]string, 0, len(fresh))
	for _, t := range fresh {
		if prev, ok := s.tenders[t.ID]; ok {
			t.Status = prev.Status
			if prev.AIAnalyzed || prev.SironaFit != nil {
				t.SironaFit = prev.SironaFit
				t.AIAnalyzed = prev.AIAnalyzed
				t.AnalyzedAt = prev.AnalyzedAt
				t.AnalysisError = prev.AnalysisError
			}
		}
		next[t.ID] = t
		order = append(order, t.ID)
	}
	s.tenders = next
	s.order = order
}

func (s *Server) store(t models.Tender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenders[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tenders[t.ID] = t
}

func (s *Server) get(id string) (models.Tender, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenders[id]
	return t, ok
}

func (s *Server) handleListTenders(c echo.Context) error {
	criteria := view.DefaultCriteria()
	if v := c.QueryParam("status"); v != "" {
		criteria.Status = v
	}
	if v := c.QueryParam("recommendation"); v != "" {
		criteria.Recommendation = v
	}
	if v := c.QueryParam("categories"); v != "" {
		criteria.Categories = splitCSV(v)
	}
	if v := c.QueryParam("sort"); v != "" {
		criteria.Sort = view.SortOrder(v)
	}

	result := view.FilterAndSort(s.snapshot(), criteria)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenders": result,
		"total":   len(result),
	})
}

func (s *Server) handleGetTender(c echo.Context) error {
	t, ok := s.get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleUpdateStatus(c echo.Context) error {
	var req struct {
		Status models.Status `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !models.ValidStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid status %q", req.Status)})
	}

	t, ok := s.get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	t.Status = req.Status
	s.store(t)
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleGetSources(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Registry.Sources)
}

func (s *Server) handleGetAggregations(c echo.Context) error {
	tenders := s.snapshot()

	byStatus := map[models.Status]int{}
	byRecommendation := map[models.Recommendation]int{}
	byCategory := map[string]int{}
	var totalValue float64
	analyzed := 0

	for _, t := range tenders {
		byStatus[t.Status]++
		if t.SironaFit != nil {
			byRecommendation[t.SironaFit.Recommendation]++
		}
		for _, cat := range t.Categories {
			byCategory[cat]++
		}
		totalValue += t.Value
		if t.AIAnalyzed {
			analyzed++
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":             len(tenders),
		"analyzed":          analyzed,
		"total_value":       totalValue,
		"by_status":         byStatus,
		"by_recommendation": byRecommendation,
		"by_category":       byCategory,
	})
}

func searchParamsFromQuery(c echo.Context) models.SearchParams {
	params := models.SearchParams{
		Keywords: c.QueryParam("q"),
		Location: c.QueryParam("location"),
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_value"), 64); err == nil && v > 0 {
		params.MinValue = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_value"), 64); err == nil && v > 0 {
		params.MaxValue = v
	}
	params.PublishedFrom = c.QueryParam("published_from")
	params.PublishedTo = c.QueryParam("published_to")
	return params
}

func (s *Server) handleRefresh(c echo.Context) error {
	params := searchParamsFromQuery(c)

	tenders, stats, err := s.Pipeline.RefreshAll(c.Request().Context(), params)
	if err != nil {
		if errors.Is(err, ingest.ErrFetchInFlight) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "A refresh is already running for these parameters"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	s.replace(tenders)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Refresh complete",
		"total":   len(tenders),
		"stats":   stats,
	})
}

func (s *Server) handleRefreshSource(c echo.Context) error {
	sourceID := c.Param("source")
	params := searchParamsFromQuery(c)

	tenders, stats, err := s.Pipeline.Refresh(c.Request().Context(), sourceID, params)
	if err != nil {
		if errors.Is(err, ingest.ErrFetchInFlight) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "A refresh is already running for this source"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	for _, t := range tenders {
		if _, ok := s.get(t.ID); !ok {
			s.store(t)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%s refresh complete", sourceID),
		"total":   len(tenders),
		"stats":   stats,
	})
}

func (s *Server) handleAnalyzeOne(c echo.Context) error {
	t, ok := s.get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}

	enriched := s.Analyst.EnrichOne(c.Request().Context(), t)
	s.store(enriched)
	return c.JSON(http.StatusOK, enriched)
}

// handleAnalyzeBatch enriches every unanalyzed tender in the background and
// returns 202 with a job ID to poll.
func (s *Server) handleAnalyzeBatch(c echo.Context) error {
	var pending []models.Tender
	for _, t := range s.snapshot() {
		if !t.AIAnalyzed {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "Nothing to analyze"})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "An analysis job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP lifecycle; a generous
	// timeout bounds runaway batches.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Total:     len(pending),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()

		onProgress := func(completed, total int, last models.Tender) {
			s.store(last)
			s.jobMu.Lock()
			job.Completed = completed
			s.jobMu.Unlock()
		}

		enriched, err := s.Analyst.EnrichBatch(jobCtx, pending, onProgress)
		if err != nil {
			s.jobMu.Lock()
			job.Status = "failed"
			job.Error = err.Error()
			job.EndedAt = time.Now()
			s.jobMu.Unlock()
			log.Printf("[analyze-job %s] failed: %v", jobID, err)
			return
		}

		s.jobMu.Lock()
		job.Status = "completed"
		job.EndedAt = time.Now()
		s.jobMu.Unlock()
		log.Printf("[analyze-job %s] completed: %d tenders", jobID, len(enriched))
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message":  "Analysis job started",
		"job_id":   jobID,
		"total":    len(pending),
		"estimate": ai.EstimateCost(len(pending)),
		"poll":     fmt.Sprintf("/api/v1/analyze/job/%s", jobID),
	})
}

func (s *Server) handleEstimate(c echo.Context) error {
	count := 0
	if raw := strings.TrimSpace(c.QueryParam("count")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			count = parsed
		}
	} else {
		for _, t := range s.snapshot() {
			if !t.AIAnalyzed {
				count++
			}
		}
	}
	return c.JSON(http.StatusOK, ai.EstimateCost(count))
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	job := s.runningJob
	s.jobMu.Unlock()

	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	s.jobMu.Lock()
	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
		"completed":  job.Completed,
		"total":      job.Total,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	s.jobMu.Unlock()

	return c.JSON(http.StatusOK, resp)
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}
