// Package engine ties analysis, duplicate detection, storage and ranking
// together. It is the single entry point used by the HTTP API, the feed
// poller and the command line.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"newsrank/internal/analyzer"
	"newsrank/internal/cache"
	"newsrank/internal/dedup"
	"newsrank/internal/models"
	"newsrank/internal/ranking"
	"newsrank/internal/storage"
	"newsrank/internal/textproc"
)

const (
	DefaultDedupWindow     = 7 * 24 * time.Hour
	DefaultDedupPoolSize   = 500
	DefaultSimilarMinScore = 0.3
	DefaultQueryTimeout    = 10 * time.Second
	DefaultCacheTTL        = 5 * time.Minute
	DefaultResultLimit     = 10
	maxSuggestions         = 10
	reprocessPageSize      = 200
	trendingBucket         = time.Minute

	stateLexiconVersion = "lexicon_version"
)

// Engine is safe for concurrent use.
type Engine struct {
	storage  storage.Storage
	analyzer *analyzer.Analyzer
	dedup    *dedup.Deduplicator
	scorer   *ranking.Scorer
	cache    *cache.Manager
	pool     *ants.Pool
	logger   *slog.Logger

	policy          models.DuplicatePolicy
	dedupThreshold  float64
	dedupWindow     time.Duration
	dedupPoolSize   int
	similarMinScore float64
	queryTimeout    time.Duration
	maxSearchLimit  int
	cacheTTL        time.Duration
	dropUnrelated   bool
	poolSize        int
	now             func() time.Time

	// ingestMu makes the duplicate check and the insert one step, so a
	// near-duplicate arriving concurrently sees the first one committed.
	ingestMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDuplicatePolicy selects what happens when an ingested url already exists.
func WithDuplicatePolicy(p models.DuplicatePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithDedupThreshold sets the title similarity above which an article is
// dropped as a near-duplicate.
func WithDedupThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 1 {
			e.dedupThreshold = t
		}
	}
}

// WithDedupWindow limits the duplicate candidate pool to recent articles.
func WithDedupWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.dedupWindow = d
		}
	}
}

func WithDedupPoolSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.dedupPoolSize = n
		}
	}
}

// WithSimilarMinScore sets the minimum similarity reported by FindSimilar.
func WithSimilarMinScore(s float64) Option {
	return func(e *Engine) {
		if s >= 0 && s <= 1 {
			e.similarMinScore = s
		}
	}
}

func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.queryTimeout = d }
}

// WithMaxSearchLimit lowers the largest accepted page size. It cannot exceed
// models.MaxSearchLimit.
func WithMaxSearchLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 && n <= models.MaxSearchLimit {
			e.maxSearchLimit = n
		}
	}
}

func WithScorer(s *ranking.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

func WithCache(c *cache.Manager) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

func WithCacheTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cacheTTL = d
		}
	}
}

// WithDropUnrelated rejects articles at or below the relevance floor instead
// of storing them.
func WithDropUnrelated(drop bool) Option {
	return func(e *Engine) { e.dropUnrelated = drop }
}

// WithPoolSize sets the number of workers used for batch analysis.
func WithPoolSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine over the given storage and analyzer. Release the
// worker pool with Close.
func New(store storage.Storage, an *analyzer.Analyzer, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if an == nil {
		return nil, errors.New("analyzer is required")
	}

	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}

	e := &Engine{
		storage:         store,
		analyzer:        an,
		scorer:          ranking.NewScorer(),
		logger:          slog.Default(),
		policy:          models.PolicySkip,
		dedupThreshold:  dedup.DefaultThreshold,
		dedupWindow:     DefaultDedupWindow,
		dedupPoolSize:   DefaultDedupPoolSize,
		similarMinScore: DefaultSimilarMinScore,
		queryTimeout:    DefaultQueryTimeout,
		maxSearchLimit:  models.MaxSearchLimit,
		cacheTTL:        DefaultCacheTTL,
		poolSize:        poolSize,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.NewManager(e.cacheTTL)
	}
	e.dedup = dedup.New(an.Lexicon(), e.dedupThreshold)

	pool, err := ants.NewPool(e.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Close releases the worker pool. The storage is owned by the caller.
func (e *Engine) Close() {
	e.pool.Release()
}

func (e *Engine) LexiconVersion() string {
	return e.analyzer.Version()
}

// Topics lists the lexicon's topic names in declaration order.
func (e *Engine) Topics() []string {
	return e.analyzer.Lexicon().TopicNames()
}

// Analyze runs the analyzer on cleaned text. It never touches storage.
func (e *Engine) Analyze(title, content string) models.Analysis {
	return e.analyzer.Analyze(textproc.CleanTitle(title), textproc.CleanContent(content))
}

// prepared is an article that went through cleaning and analysis.
type prepared struct {
	article  models.Article
	analysis models.Analysis
	err      error
}

func (e *Engine) prepare(article models.Article) prepared {
	article.URL = strings.TrimSpace(article.URL)
	article.Title = textproc.CleanTitle(article.Title)
	article.Content = textproc.CleanContent(article.Content)
	article.Source = strings.TrimSpace(article.Source)
	article.Author = strings.TrimSpace(article.Author)
	if article.URL == "" || article.Title == "" {
		return prepared{article: article, err: fmt.Errorf("%w: url and title are required", models.ErrInvalidArticle)}
	}
	if article.Source == "" {
		article.Source = "unknown"
	}

	analysis := e.analyzer.Analyze(article.Title, article.Content)
	article.Topics = analysis.Topics
	article.Keywords = analysis.Keywords
	article.RelevanceScore = analysis.Score
	article.LexiconVersion = e.analyzer.Version()
	return prepared{article: article, analysis: analysis}
}

// Ingest analyzes one article, drops it when it near-duplicates a recent
// title, and stores it otherwise.
func (e *Engine) Ingest(ctx context.Context, article models.Article) (models.IngestResult, error) {
	return e.commit(ctx, e.prepare(article))
}

func (e *Engine) commit(ctx context.Context, p prepared) (models.IngestResult, error) {
	result := models.IngestResult{
		URL:    p.article.URL,
		Score:  models.RoundScore(p.analysis.Score),
		Topics: p.analysis.Topics,
	}
	if result.Topics == nil {
		result.Topics = []string{}
	}
	if p.err != nil {
		result.Status = models.StatusRejected
		result.Error = p.err.Error()
		return result, p.err
	}
	if e.dropUnrelated && !p.analysis.IsRelated {
		result.Status = models.StatusRejected
		result.Error = "not related to the lexicon's topics"
		e.logger.Debug("dropped unrelated article", "url", p.article.URL, "score", result.Score)
		return result, nil
	}

	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	candidates, err := e.storage.RecentArticles(ctx, e.now().Add(-e.dedupWindow), e.dedupPoolSize)
	if err != nil {
		return result, err
	}
	pool := candidates[:0]
	for _, c := range candidates {
		if c.URL != p.article.URL {
			pool = append(pool, c)
		}
	}
	if match, ok := e.dedup.IsDuplicate(p.article.Title, pool, e.dedupThreshold); ok {
		result.Status = models.StatusDuplicate
		result.ID = match.ID
		result.DuplicateOf = match.ID
		result.Similarity = match.Similarity
		e.logger.Info("dropped near-duplicate article",
			"url", p.article.URL, "duplicate_of", match.ID, "similarity", match.Similarity)
		return result, nil
	}

	stored, err := e.storage.Insert(ctx, p.article, e.policy)
	if err != nil {
		return result, err
	}
	result.ID = stored.ID
	result.Status = stored.Status
	if stored.Status != models.StatusSkipped {
		e.cache.Invalidate()
	}
	return result, nil
}

// IngestBatch analyzes the articles on the worker pool and stores them in
// input order, so a later item can be detected as a duplicate of an earlier
// one. Invalid articles are reported per item; the returned error is the
// first storage failure, if any.
func (e *Engine) IngestBatch(ctx context.Context, articles []models.Article) ([]models.IngestResult, error) {
	prepared := e.prepareAll(articles)

	results := make([]models.IngestResult, len(prepared))
	var firstErr error
	for i, p := range prepared {
		if err := ctx.Err(); err != nil {
			return results[:i], err
		}
		res, err := e.commit(ctx, p)
		results[i] = res
		if err == nil || errors.Is(err, models.ErrInvalidArticle) {
			continue
		}
		results[i].Error = err.Error()
		if firstErr == nil {
			firstErr = err
		}
	}

	counts := make(map[models.InsertStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	e.logger.Info("ingested batch", "articles", len(articles),
		"inserted", counts[models.StatusInserted],
		"updated", counts[models.StatusUpdated],
		"skipped", counts[models.StatusSkipped],
		"duplicates", counts[models.StatusDuplicate],
		"rejected", counts[models.StatusRejected])
	return results, firstErr
}

func (e *Engine) prepareAll(articles []models.Article) []prepared {
	out := make([]prepared, len(articles))
	var wg sync.WaitGroup
	for i := range articles {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			out[i] = e.prepare(articles[i])
		}
		if err := e.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	return out
}

func (e *Engine) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.queryTimeout > 0 {
		return context.WithTimeout(ctx, e.queryTimeout)
	}
	return context.WithCancel(ctx)
}

// Search validates the filter, resolves topic names to their canonical
// spelling and runs the query within the configured timeout.
func (e *Engine) Search(ctx context.Context, filter models.SearchFilter) ([]models.SearchHit, error) {
	if err := filter.Validate(e.maxSearchLimit); err != nil {
		return nil, err
	}

	lex := e.analyzer.Lexicon()
	topics := make([]string, 0, len(filter.Topics))
	for _, name := range filter.Topics {
		canonical, ok := lex.Topic(name)
		if !ok {
			return nil, &models.FilterError{Field: "topics", Reason: fmt.Sprintf("contains unknown topic %q", name)}
		}
		topics = append(topics, canonical)
	}
	filter.Topics = topics

	sources := make([]string, 0, len(filter.Sources))
	for _, s := range filter.Sources {
		sources = append(sources, strings.TrimSpace(s))
	}
	filter.Sources = sources

	ctx, cancel := e.queryContext(ctx)
	defer cancel()
	return e.storage.Search(ctx, filter)
}

// FindSimilar lists recent articles whose title similarity to title is at
// least the configured minimum, most similar first.
func (e *Engine) FindSimilar(ctx context.Context, title string, limit int) ([]models.SimilarArticle, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &models.FilterError{Field: "title", Reason: "is required"}
	}
	limit, err := e.resultLimit(limit)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.queryContext(ctx)
	defer cancel()
	pool, err := e.storage.RecentArticles(ctx, e.now().Add(-e.dedupWindow), e.dedupPoolSize)
	if err != nil {
		return nil, err
	}

	similar := e.dedup.Rank(title, pool, e.similarMinScore)
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

// TrendingTopics counts topic assignments over the last days. Cached results
// are keyed by the minute the window ends in, so the window trails the clock
// by at most trendingBucket.
func (e *Engine) TrendingTopics(ctx context.Context, days int) ([]models.TopicCount, error) {
	if days <= 0 {
		return nil, &models.FilterError{Field: "days", Reason: "must be positive"}
	}

	now := e.now()
	key := fmt.Sprintf("trending:%d:%d", days, now.Truncate(trendingBucket).Unix())
	value, err := e.cache.GetOrLoad(key, e.cacheTTL, func() (interface{}, error) {
		ctx, cancel := e.queryContext(ctx)
		defer cancel()
		return e.storage.TrendingTopics(ctx, now.AddDate(0, 0, -days), now)
	})
	if err != nil {
		return nil, err
	}
	counts := value.([]models.TopicCount)
	return append([]models.TopicCount(nil), counts...), nil
}

// TopArticles returns the most relevant articles of the last hours.
func (e *Engine) TopArticles(ctx context.Context, hours, limit int) ([]models.Article, error) {
	if hours <= 0 {
		return nil, &models.FilterError{Field: "hours", Reason: "must be positive"}
	}
	limit, err := e.resultLimit(limit)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.queryContext(ctx)
	defer cancel()
	now := e.now()
	return e.storage.TopArticles(ctx, now.Add(-time.Duration(hours)*time.Hour), now, limit)
}

// TopByQuality orders the articles of the last hours by the composite quality
// score. Stored relevance scores are left untouched.
func (e *Engine) TopByQuality(ctx context.Context, hours, limit int) ([]models.RankedArticle, error) {
	if hours <= 0 {
		return nil, &models.FilterError{Field: "hours", Reason: "must be positive"}
	}
	limit, err := e.resultLimit(limit)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.queryContext(ctx)
	defer cancel()
	now := e.now()
	articles, err := e.storage.TopArticles(ctx, now.Add(-time.Duration(hours)*time.Hour), now, 0)
	if err != nil {
		return nil, err
	}

	ranked := e.scorer.Rank(articles)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (e *Engine) resultLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, &models.FilterError{Field: "limit", Reason: "must not be negative"}
	case limit == 0:
		return DefaultResultLimit, nil
	case limit > e.maxSearchLimit:
		return 0, &models.FilterError{Field: "limit", Reason: "exceeds maximum page size"}
	}
	return limit, nil
}

// Stats summarizes the corpus for the current lexicon version.
func (e *Engine) Stats(ctx context.Context) (*models.Stats, error) {
	value, err := e.cache.GetOrLoad("stats", e.cacheTTL, func() (interface{}, error) {
		ctx, cancel := e.queryContext(ctx)
		defer cancel()
		return e.storage.Stats(ctx, e.analyzer.Version())
	})
	if err != nil {
		return nil, err
	}
	stats := *value.(*models.Stats)
	bySource := make(map[string]int, len(stats.ArticlesBySource))
	for k, v := range stats.ArticlesBySource {
		bySource[k] = v
	}
	stats.ArticlesBySource = bySource
	return &stats, nil
}

// DatabaseStats reports storage level figures.
func (e *Engine) DatabaseStats(ctx context.Context) (map[string]interface{}, error) {
	ctx, cancel := e.queryContext(ctx)
	defer cancel()
	return e.storage.GetDatabaseStats(ctx)
}

// Suggestions returns topic names, then lexicon keywords, containing prefix.
func (e *Engine) Suggestions(prefix string) []string {
	needle := strings.ToLower(strings.TrimSpace(prefix))
	suggestions := []string{}
	if needle == "" {
		return suggestions
	}

	seen := make(map[string]bool)
	add := func(s string) bool {
		if !seen[s] {
			seen[s] = true
			suggestions = append(suggestions, s)
		}
		return len(suggestions) >= maxSuggestions
	}

	categories := e.analyzer.Lexicon().Categories()
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), needle) && add(c.Name) {
			return suggestions
		}
	}
	for _, c := range categories {
		for _, k := range c.Keywords {
			if strings.Contains(k.Term, needle) && add(k.Term) {
				return suggestions
			}
		}
	}
	return suggestions
}

// Reprocess re-analyzes every article scored with another lexicon version,
// or never scored, and returns how many rows were updated.
func (e *Engine) Reprocess(ctx context.Context) (int, error) {
	version := e.analyzer.Version()
	start := time.Now()
	total := 0
	var afterID int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		page, err := e.storage.ArticlesNeedingAnalysis(ctx, version, afterID, reprocessPageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			break
		}

		analyses := make([]models.Analysis, len(page))
		var wg sync.WaitGroup
		for i := range page {
			i := i
			wg.Add(1)
			task := func() {
				defer wg.Done()
				analyses[i] = e.analyzer.Analyze(page[i].Title, page[i].Content)
			}
			if err := e.pool.Submit(task); err != nil {
				task()
			}
		}
		wg.Wait()

		for i, article := range page {
			if err := e.storage.UpdateAnalysis(ctx, article.ID, analyses[i], version); err != nil {
				return total, err
			}
			total++
		}
		afterID = page[len(page)-1].ID
		e.logger.Debug("reprocessed page", "articles", len(page), "after_id", afterID)
	}

	if err := e.storage.SetAppState(ctx, stateLexiconVersion, version); err != nil {
		return total, err
	}
	if total > 0 {
		e.cache.Invalidate()
	}
	e.logger.Info("reprocessing completed", "articles", total, "lexicon_version", version, "duration", time.Since(start))
	return total, nil
}

// VerifyIndex compares the article table with the text index and rebuilds
// the index when they diverge. It reports the health found before any
// rebuild and whether a rebuild ran.
func (e *Engine) VerifyIndex(ctx context.Context) (models.IndexHealth, bool, error) {
	health, err := e.storage.IndexHealth(ctx)
	if err != nil {
		return health, false, err
	}
	if health.Consistent() {
		return health, false, nil
	}

	e.logger.Warn("text index diverged from articles, rebuilding",
		"missing", health.Missing, "orphans", health.Orphans)
	if _, err := e.RebuildIndex(ctx); err != nil {
		return health, false, err
	}
	return health, true, nil
}

// IndexHealth reports divergence between articles and the text index.
func (e *Engine) IndexHealth(ctx context.Context) (models.IndexHealth, error) {
	ctx, cancel := e.queryContext(ctx)
	defer cancel()
	return e.storage.IndexHealth(ctx)
}

// RebuildIndex regenerates the text index. A failure wraps
// models.ErrIndexRebuild and must be treated as fatal.
func (e *Engine) RebuildIndex(ctx context.Context) (int, error) {
	n, err := e.storage.RebuildIndex(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrIndexRebuild) {
			err = fmt.Errorf("%w: %w", models.ErrIndexRebuild, err)
		}
		return 0, err
	}
	e.cache.Invalidate()
	return n, nil
}

// Cleanup removes articles fetched more than age ago.
func (e *Engine) Cleanup(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", age)
	}
	removed, err := e.storage.CleanupOldArticles(ctx, e.now().Add(-age))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.cache.Invalidate()
	}
	return removed, nil
}

// Optimize runs database maintenance.
func (e *Engine) Optimize(ctx context.Context) error {
	return e.storage.OptimizeDatabase(ctx)
}

// LastReprocessedVersion returns the lexicon version recorded by the last
// completed Reprocess, if any.
func (e *Engine) LastReprocessedVersion(ctx context.Context) (string, bool, error) {
	return e.storage.GetAppState(ctx, stateLexiconVersion)
}

// LastIndexRebuild returns the article count of the last index rebuild.
func (e *Engine) LastIndexRebuild(ctx context.Context) (int, bool, error) {
	raw, ok, err := e.storage.GetAppState(ctx, "last_index_rebuild")
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}
