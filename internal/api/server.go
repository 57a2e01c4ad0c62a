package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"newsrank/internal/config"
	"newsrank/internal/engine"
	"newsrank/internal/models"
	"newsrank/internal/poller"
	"newsrank/internal/security"
	"newsrank/internal/web"
)

const (
	defaultTopHours     = 24
	defaultTrendingDays = 7
	maxBatchSize        = 1000
	shutdownGracePeriod = 10 * time.Second
)

type Server struct {
	router        *gin.Engine
	engine        *engine.Engine
	poller        *poller.Poller
	port          int
	defaultLimit  int
	logger        *slog.Logger
	swaggerServer *web.SwaggerServer
}

// NewServer wires the HTTP routes. The poller may be nil when feed polling
// is disabled.
func NewServer(eng *engine.Engine, p *poller.Poller, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Setup security middleware
	securityConfig := &security.SecurityConfig{
		EnableRateLimit:       cfg.Security.EnableRateLimit,
		RateLimitPerSecond:    cfg.Security.RateLimitPerSecond,
		RateLimitBurst:        cfg.Security.RateLimitBurst,
		EnableCORS:            cfg.Security.EnableCORS,
		AllowedOrigins:        cfg.Security.AllowedOrigins,
		EnableSecurityHeaders: cfg.Security.EnableSecurityHeaders,
		MaxRequestSize:        cfg.Security.MaxRequestSize,
		EnableRequestID:       cfg.Security.EnableRequestID,
	}
	security.SetupSecurityMiddleware(router, securityConfig, logger)

	defaultLimit := cfg.DefaultSearchLimit
	if defaultLimit <= 0 {
		defaultLimit = models.DefaultSearchLimit
	}

	server := &Server{
		router:        router,
		engine:        eng,
		poller:        p,
		port:          cfg.Port,
		defaultLimit:  defaultLimit,
		logger:        logger,
		swaggerServer: web.NewSwaggerServer(cfg.EnableSwagger, logger),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// API routes
	api := s.router.Group("/api/v1")
	{
		api.GET("/articles", s.searchArticles)
		api.POST("/articles", s.ingestArticle)
		api.POST("/articles/batch", s.ingestBatch)
		api.GET("/articles/top", s.getTopArticles)
		api.GET("/articles/quality", s.getQualityArticles)
		api.GET("/articles/similar", s.getSimilarArticles)

		api.GET("/topics", s.getTopics)
		api.GET("/topics/trending", s.getTrendingTopics)
		api.GET("/suggestions", s.getSuggestions)
		api.POST("/analyze", s.analyze)
		api.GET("/stats", s.getStats)

		// Index and storage maintenance
		api.GET("/index/health", s.getIndexHealth)
		api.POST("/index/rebuild", s.rebuildIndex)
		api.GET("/storage/stats", s.getStorageStats)
		api.POST("/storage/optimize", s.optimizeStorage)

		// Poller control endpoints
		api.GET("/poller/status", s.getPollerStatus)
		api.POST("/poller/force-poll/:source", s.forcePollSource)
		api.GET("/poller/last-polled", s.getLastPolledTimes)
	}

	s.swaggerServer.RegisterRoutes(s.router)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	return s.router.Run(":" + strconv.Itoa(s.port))
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) StartWithContext(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return ctx.Err()
	}
}

// respondError maps engine errors to status codes: bad input is 400, an
// unavailable store or an expired query budget 503, anything else 500.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidFilter), errors.Is(err, models.ErrInvalidArticle):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "newsrank",
		"lexicon_version": s.engine.LexiconVersion(),
		"poller_active":   s.poller != nil && s.poller.IsPolling(),
	})
}

func (s *Server) searchArticles(c *gin.Context) {
	filter, err := s.parseSearchFilter(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	hits, err := s.engine.Search(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": hits,
		"count":    len(hits),
		"limit":    filter.EffectiveLimit(),
		"offset":   filter.Offset,
	})
}

func (s *Server) parseSearchFilter(c *gin.Context) (models.SearchFilter, error) {
	filter := models.SearchFilter{
		Query:   strings.TrimSpace(c.Query("q")),
		Sources: splitValues(c.QueryArray("source")),
		Topics:  splitValues(c.QueryArray("topic")),
	}

	var err error
	if filter.Limit, err = intParam(c, "limit", s.defaultLimit); err != nil {
		return filter, err
	}
	if filter.Offset, err = intParam(c, "offset", 0); err != nil {
		return filter, err
	}

	if v := c.Query("min_relevance"); v != "" {
		minRel, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, &models.FilterError{Field: "min_relevance", Reason: "is not a number"}
		}
		filter.MinRelevance = &minRel
	}

	if v := c.Query("start_date"); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			return filter, &models.FilterError{Field: "start_date", Reason: "must be RFC3339 or YYYY-MM-DD"}
		}
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			return filter, &models.FilterError{Field: "end_date", Reason: "must be RFC3339 or YYYY-MM-DD"}
		}
		filter.EndDate = &t
	}
	return filter, nil
}

// splitValues flattens repeated and comma separated parameter values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the whole
// day.
func parseDate(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func intParam(c *gin.Context, name string, defaultVal int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &models.FilterError{Field: name, Reason: "is not an integer"}
	}
	return n, nil
}

// ArticleRequest is the JSON body of an ingested article.
type ArticleRequest struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at"`
}

func (r ArticleRequest) toArticle() models.Article {
	return models.Article{
		URL:         r.URL,
		Title:       r.Title,
		Content:     r.Content,
		Author:      r.Author,
		Source:      r.Source,
		PublishedAt: r.PublishedAt,
	}
}

func (s *Server) ingestArticle(c *gin.Context) {
	var req ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article body: " + err.Error()})
		return
	}

	result, err := s.engine.Ingest(c.Request.Context(), req.toArticle())
	if err != nil {
		s.respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Status == models.StatusInserted {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

func (s *Server) ingestBatch(c *gin.Context) {
	var req struct {
		Articles []ArticleRequest `json:"articles"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch body: " + err.Error()})
		return
	}
	if len(req.Articles) > maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("batch exceeds %d articles", maxBatchSize)})
		return
	}

	articles := make([]models.Article, len(req.Articles))
	for i, r := range req.Articles {
		articles[i] = r.toArticle()
	}

	results, err := s.engine.IngestBatch(c.Request.Context(), articles)
	if err != nil {
		s.respondError(c, err)
		return
	}

	counts := make(map[models.InsertStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
		"summary": counts,
	})
}

func (s *Server) getTopArticles(c *gin.Context) {
	hours, limit, err := windowParams(c, "hours", defaultTopHours)
	if err != nil {
		s.respondError(c, err)
		return
	}

	articles, err := s.engine.TopArticles(c.Request.Context(), hours, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"count":    len(articles),
		"hours":    hours,
	})
}

func (s *Server) getQualityArticles(c *gin.Context) {
	hours, limit, err := windowParams(c, "hours", defaultTopHours)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ranked, err := s.engine.TopByQuality(c.Request.Context(), hours, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": ranked,
		"count":    len(ranked),
		"hours":    hours,
	})
}

func windowParams(c *gin.Context, name string, defaultWindow int) (int, int, error) {
	window, err := intParam(c, name, defaultWindow)
	if err != nil {
		return 0, 0, err
	}
	limit, err := intParam(c, "limit", 0)
	if err != nil {
		return 0, 0, err
	}
	return window, limit, nil
}

func (s *Server) getSimilarArticles(c *gin.Context) {
	limit, err := intParam(c, "limit", 0)
	if err != nil {
		s.respondError(c, err)
		return
	}

	similar, err := s.engine.FindSimilar(c.Request.Context(), c.Query("title"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": similar,
		"count":    len(similar),
	})
}

func (s *Server) getTopics(c *gin.Context) {
	topics := s.engine.Topics()
	c.JSON(http.StatusOK, gin.H{
		"topics":          topics,
		"count":           len(topics),
		"lexicon_version": s.engine.LexiconVersion(),
	})
}

func (s *Server) getTrendingTopics(c *gin.Context) {
	days, err := intParam(c, "days", defaultTrendingDays)
	if err != nil {
		s.respondError(c, err)
		return
	}

	trending, err := s.engine.TrendingTopics(c.Request.Context(), days)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topics": trending,
		"days":   days,
	})
}

func (s *Server) getSuggestions(c *gin.Context) {
	suggestions := s.engine.Suggestions(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

func (s *Server) analyze(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	analysis := s.engine.Analyze(req.Title, req.Content)
	analysis.Score = analysis.DisplayScore()
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getIndexHealth(c *gin.Context) {
	health, err := s.engine.IndexHealth(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"health":     health,
		"consistent": health.Consistent(),
	})
}

func (s *Server) rebuildIndex(c *gin.Context) {
	n, err := s.engine.RebuildIndex(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Index rebuilt successfully",
		"articles": n,
	})
}

func (s *Server) getStorageStats(c *gin.Context) {
	stats, err := s.engine.DatabaseStats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) optimizeStorage(c *gin.Context) {
	if err := s.engine.Optimize(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Database optimized successfully"})
}

func (s *Server) pollerDisabled(c *gin.Context) bool {
	if s.poller != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed poller is disabled"})
	return true
}

func (s *Server) getPollerStatus(c *gin.Context) {
	if s.poller == nil {
		c.JSON(http.StatusOK, gin.H{
			"is_polling": false,
			"status":     "disabled",
		})
		return
	}

	status := "stopped"
	if s.poller.IsPolling() {
		status = "active"
	}
	c.JSON(http.StatusOK, gin.H{
		"is_polling": s.poller.IsPolling(),
		"status":     status,
		"sources":    s.poller.Sources(),
	})
}

func (s *Server) forcePollSource(c *gin.Context) {
	if s.pollerDisabled(c) {
		return
	}
	source := c.Param("source")

	if err := s.poller.ForcePoll(source); err != nil {
		if errors.Is(err, poller.ErrUnknownSource) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Force poll completed successfully",
		"source":  source,
	})
}

func (s *Server) getLastPolledTimes(c *gin.Context) {
	if s.pollerDisabled(c) {
		return
	}
	c.JSON(http.StatusOK, s.poller.GetLastPolledTime())
}
