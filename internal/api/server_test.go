package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"newsrank/internal/analyzer"
	"newsrank/internal/config"
	"newsrank/internal/engine"
	"newsrank/internal/lexicon"
	"newsrank/internal/models"
	"newsrank/internal/poller"
	"newsrank/internal/storage"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Lab Blog</title>
  <link>https://lab.example.com</link>
  <description>Research updates</description>
  <item>
    <title>Robotics lab trains humanoid robots with reinforcement learning</title>
    <link>https://lab.example.com/humanoid</link>
    <description>An autonomous robot learns to walk.</description>
  </item>
</channel>
</rss>`

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               8080,
		DefaultSearchLimit: 50,
		MaxSearchLimit:     500,
		Security: config.SecurityConfig{
			MaxRequestSize: 1 << 20,
		},
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	lex := lexicon.MustDefault()
	logger := quietLogger()
	store, err := storage.NewSQLiteStorage(storage.Options{
		Path:      filepath.Join(t.TempDir(), storage.DatabaseFile),
		StopWords: lex.StopWords(),
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng, err := engine.New(store, analyzer.New(lex), engine.WithLogger(logger), engine.WithPoolSize(2))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(eng.Close)
	return eng
}

// newTestServer builds a server without a poller.
func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	eng := newTestEngine(t)
	return NewServer(eng, nil, testConfig(), quietLogger()), eng
}

func newPollingServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, testFeed)
	}))
	t.Cleanup(feed.Close)

	eng := newTestEngine(t)
	p := poller.New(eng, map[string]string{"Lab Blog": feed.URL}, time.Hour, quietLogger())
	return NewServer(eng, p, testConfig(), quietLogger()), eng
}

func hoursAgo(h int) *time.Time {
	t := time.Now().UTC().Add(-time.Duration(h) * time.Hour)
	return &t
}

var sampleArticles = []models.Article{
	{
		URL:         "https://example.com/gpt4",
		Title:       "GPT-4 Achieves State-of-the-Art Results",
		Content:     "OpenAI's latest large language model...",
		Source:      "TechCrunch",
		PublishedAt: hoursAgo(2),
	},
	{
		URL:         "https://example.com/vision",
		Title:       "New computer vision model improves object detection",
		Content:     "The image recognition system uses a convolutional neural network.",
		Source:      "Wired",
		PublishedAt: hoursAgo(5),
	},
	{
		URL:         "https://example.com/recipe",
		Title:       "Ten easy pasta recipes for busy weeknights",
		Content:     "Boil water, add salt and cook the pasta.",
		Source:      "Wired",
		PublishedAt: hoursAgo(1),
	},
}

func seed(t *testing.T, eng *engine.Engine) {
	t.Helper()
	for _, a := range sampleArticles {
		if _, err := eng.Ingest(context.Background(), a); err != nil {
			t.Fatalf("Failed to seed %s: %v", a.URL, err)
		}
	}
}

func doRequest(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Failed to encode body: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

type articleList struct {
	Articles []models.SearchHit `json:"articles"`
	Count    int                `json:"count"`
}

func TestServer_New(t *testing.T) {
	server, _ := newTestServer(t)
	if server == nil {
		t.Fatal("Expected server to be created, got nil")
	}
	if server.router == nil {
		t.Error("Expected router to be initialized")
	}
	if server.defaultLimit != 50 {
		t.Errorf("Expected default limit 50, got %d", server.defaultLimit)
	}
}

func TestServer_HealthCheck(t *testing.T) {
	server, eng := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	decode(t, w, &response)
	if response["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", response["status"])
	}
	if response["lexicon_version"] != eng.LexiconVersion() {
		t.Errorf("Expected lexicon version %s, got %v", eng.LexiconVersion(), response["lexicon_version"])
	}
	if response["poller_active"] != false {
		t.Errorf("Expected poller_active false, got %v", response["poller_active"])
	}
}

func TestServer_IngestArticle(t *testing.T) {
	server, _ := newTestServer(t)

	req := ArticleRequest{
		URL:     "https://example.com/gpt4",
		Title:   "GPT-4 Achieves State-of-the-Art Results",
		Content: "OpenAI's latest large language model...",
		Source:  "TechCrunch",
	}

	w := doRequest(t, server, http.MethodPost, "/api/v1/articles", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var result models.IngestResult
	decode(t, w, &result)
	if result.Status != models.StatusInserted {
		t.Errorf("Expected inserted, got %s", result.Status)
	}
	if result.Score != 74 {
		t.Errorf("Expected score 74, got %v", result.Score)
	}
	if result.ID == 0 {
		t.Error("Expected an article id")
	}

	w = doRequest(t, server, http.MethodPost, "/api/v1/articles", req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for a repeated url, got %d", w.Code)
	}
	decode(t, w, &result)
	if result.Status != models.StatusSkipped {
		t.Errorf("Expected skipped, got %s", result.Status)
	}
}

func TestServer_IngestArticle_Invalid(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing title", ArticleRequest{URL: "https://example.com/a"}},
		{"missing url", ArticleRequest{Title: "Neural networks"}},
		{"malformed json", `{"url": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, http.MethodPost, "/api/v1/articles", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_IngestBatch(t *testing.T) {
	server, _ := newTestServer(t)

	batch := map[string]interface{}{
		"articles": []ArticleRequest{
			{URL: "https://example.com/a", Title: "OpenAI releases GPT-5 model", Source: "A"},
			{URL: "https://example.com/b", Title: "OpenAI released GPT-5 model", Source: "B"},
			{URL: "https://example.com/c"},
		},
	}

	w := doRequest(t, server, http.MethodPost, "/api/v1/articles/batch", batch)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Results []models.IngestResult       `json:"results"`
		Count   int                         `json:"count"`
		Summary map[models.InsertStatus]int `json:"summary"`
	}
	decode(t, w, &response)

	if response.Count != 3 {
		t.Fatalf("Expected 3 results, got %d", response.Count)
	}
	if response.Results[0].Status != models.StatusInserted {
		t.Errorf("Expected first article inserted, got %s", response.Results[0].Status)
	}
	if response.Results[1].Status != models.StatusDuplicate {
		t.Errorf("Expected second article flagged as duplicate, got %s", response.Results[1].Status)
	}
	if response.Results[2].Error == "" {
		t.Error("Expected an error for the untitled article")
	}
	if response.Summary[models.StatusInserted] != 1 {
		t.Errorf("Expected summary to count 1 insert, got %v", response.Summary)
	}
}

func TestServer_IngestBatch_TooLarge(t *testing.T) {
	server, _ := newTestServer(t)

	articles := make([]ArticleRequest, maxBatchSize+1)
	for i := range articles {
		articles[i] = ArticleRequest{URL: fmt.Sprintf("https://example.com/%d", i), Title: "t"}
	}

	w := doRequest(t, server, http.MethodPost, "/api/v1/articles/batch", map[string]interface{}{"articles": articles})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_SearchArticles(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	tests := []struct {
		name     string
		query    url.Values
		expected []string
	}{
		{"query", url.Values{"q": {"language models"}}, []string{"https://example.com/gpt4"}},
		{"topic", url.Values{"topic": {"computer vision"}}, []string{"https://example.com/vision"}},
		{"comma separated topics", url.Values{"topic": {"Computer Vision,Large Language Models"}}, nil},
		{"source", url.Values{"source": {"TechCrunch"}}, []string{"https://example.com/gpt4"}},
		{"past dates", url.Values{"start_date": {"2000-01-01"}, "end_date": {"2000-01-02"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, http.MethodGet, "/api/v1/articles?"+tt.query.Encode(), nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
			}

			var list articleList
			decode(t, w, &list)
			if tt.expected == nil {
				if list.Count != 2 {
					t.Errorf("Expected 2 articles, got %d", list.Count)
				}
				return
			}
			if len(list.Articles) != len(tt.expected) {
				t.Fatalf("Expected %d articles, got %d", len(tt.expected), len(list.Articles))
			}
			for i, u := range tt.expected {
				if list.Articles[i].URL != u {
					t.Errorf("Expected %s at %d, got %s", u, i, list.Articles[i].URL)
				}
			}
		})
	}
}

func TestServer_SearchArticles_Pagination(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	w := doRequest(t, server, http.MethodGet, "/api/v1/articles?limit=1&offset=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Count  int `json:"count"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	decode(t, w, &response)
	if response.Count != 1 || response.Limit != 1 || response.Offset != 1 {
		t.Errorf("Expected one article at offset 1, got %+v", response)
	}
}

func TestServer_SearchArticles_InvalidFilters(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
	}{
		{"unknown topic", "topic=astrology"},
		{"bad start date", "start_date=yesterday"},
		{"bad end date", "end_date=2024-13-40"},
		{"inverted dates", "start_date=2024-02-01&end_date=2024-01-01"},
		{"limit above maximum", "limit=1000"},
		{"negative limit", "limit=-1"},
		{"relevance out of range", "min_relevance=150"},
		{"relevance not a number", "min_relevance=high"},
		{"relevance NaN", "min_relevance=NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, server, http.MethodGet, "/api/v1/articles?"+tt.query, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_TopAndQualityArticles(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	w := doRequest(t, server, http.MethodGet, "/api/v1/articles/top?hours=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var top articleList
	decode(t, w, &top)
	if top.Count != 2 {
		t.Fatalf("Expected 2 articles in the last 3 hours, got %d", top.Count)
	}
	if top.Articles[0].URL != "https://example.com/gpt4" {
		t.Errorf("Expected GPT-4 article on top, got %s", top.Articles[0].URL)
	}

	w = doRequest(t, server, http.MethodGet, "/api/v1/articles/quality?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var quality struct {
		Articles []models.RankedArticle `json:"articles"`
	}
	decode(t, w, &quality)
	if len(quality.Articles) != 2 {
		t.Fatalf("Expected 2 ranked articles, got %d", len(quality.Articles))
	}
	if quality.Articles[0].Quality < quality.Articles[1].Quality {
		t.Error("Expected quality descending")
	}

	w = doRequest(t, server, http.MethodGet, "/api/v1/articles/top?hours=0", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for zero hours, got %d", w.Code)
	}
}

func TestServer_SimilarArticles(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	w := doRequest(t, server, http.MethodGet, "/api/v1/articles/similar?title="+url.QueryEscape("GPT-4 achieves results"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var response struct {
		Articles []models.SimilarArticle `json:"articles"`
	}
	decode(t, w, &response)
	if len(response.Articles) == 0 || response.Articles[0].URL != "https://example.com/gpt4" {
		t.Errorf("Expected GPT-4 article first, got %v", response.Articles)
	}

	w = doRequest(t, server, http.MethodGet, "/api/v1/articles/similar", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without a title, got %d", w.Code)
	}
}

func TestServer_Topics(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/topics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Topics []string `json:"topics"`
		Count  int      `json:"count"`
	}
	decode(t, w, &response)
	if response.Count != 10 {
		t.Errorf("Expected 10 topics, got %d", response.Count)
	}
	if len(response.Topics) > 0 && response.Topics[0] != "Large Language Models" {
		t.Errorf("Expected topics in lexicon order, got %v", response.Topics)
	}
}

func TestServer_TrendingTopics(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	w := doRequest(t, server, http.MethodGet, "/api/v1/topics/trending", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Topics []models.TopicCount `json:"topics"`
		Days   int                 `json:"days"`
	}
	decode(t, w, &response)
	if response.Days != defaultTrendingDays {
		t.Errorf("Expected default window of %d days, got %d", defaultTrendingDays, response.Days)
	}
	found := false
	for _, tc := range response.Topics {
		if tc.Topic == "Large Language Models" && tc.Count > 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected Large Language Models to trend, got %v", response.Topics)
	}

	w = doRequest(t, server, http.MethodGet, "/api/v1/topics/trending?days=0", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for zero days, got %d", w.Code)
	}
}

func TestServer_Suggestions(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/suggestions?q=vision", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Suggestions []string `json:"suggestions"`
	}
	decode(t, w, &response)
	if len(response.Suggestions) == 0 || response.Suggestions[0] != "Computer Vision" {
		t.Errorf("Expected Computer Vision first, got %v", response.Suggestions)
	}
}

func TestServer_Analyze(t *testing.T) {
	server, _ := newTestServer(t)

	body := map[string]string{
		"title":   "GPT-4 Achieves State-of-the-Art Results",
		"content": "OpenAI's latest large language model...",
	}
	w := doRequest(t, server, http.MethodPost, "/api/v1/analyze", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var analysis models.Analysis
	decode(t, w, &analysis)
	if analysis.Score != 74 {
		t.Errorf("Expected score 74, got %v", analysis.Score)
	}
	if !analysis.IsRelated {
		t.Error("Expected text to be AI related")
	}
	if len(analysis.Topics) == 0 || analysis.Topics[0] != "Large Language Models" {
		t.Errorf("Expected Large Language Models topic, got %v", analysis.Topics)
	}
}

func TestServer_Stats(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	w := doRequest(t, server, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var stats models.Stats
	decode(t, w, &stats)
	if stats.TotalArticles != 3 {
		t.Errorf("Expected 3 articles, got %d", stats.TotalArticles)
	}
	if stats.ArticlesBySource["Wired"] != 2 {
		t.Errorf("Expected 2 Wired articles, got %v", stats.ArticlesBySource)
	}
}

func TestServer_IndexMaintenance(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	w := doRequest(t, server, http.MethodGet, "/api/v1/index/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var health struct {
		Health     models.IndexHealth `json:"health"`
		Consistent bool               `json:"consistent"`
	}
	decode(t, w, &health)
	if !health.Consistent || health.Health.Articles != 3 {
		t.Errorf("Expected a consistent index over 3 articles, got %+v", health)
	}

	w = doRequest(t, server, http.MethodPost, "/api/v1/index/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var rebuilt struct {
		Articles int `json:"articles"`
	}
	decode(t, w, &rebuilt)
	if rebuilt.Articles != 3 {
		t.Errorf("Expected 3 articles reindexed, got %d", rebuilt.Articles)
	}
}

func TestServer_StorageEndpoints(t *testing.T) {
	server, eng := newTestServer(t)
	seed(t, eng)

	w := doRequest(t, server, http.MethodGet, "/api/v1/storage/stats", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for storage stats, got %d", w.Code)
	}

	w = doRequest(t, server, http.MethodPost, "/api/v1/storage/optimize", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for optimize, got %d", w.Code)
	}
}

func TestServer_PollerDisabled(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/poller/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var status map[string]interface{}
	decode(t, w, &status)
	if status["status"] != "disabled" {
		t.Errorf("Expected disabled status, got %v", status["status"])
	}

	for _, target := range []string{"/api/v1/poller/last-polled"} {
		if w := doRequest(t, server, http.MethodGet, target, nil); w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503 for %s, got %d", target, w.Code)
		}
	}
	if w := doRequest(t, server, http.MethodPost, "/api/v1/poller/force-poll/Lab", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 for force poll, got %d", w.Code)
	}
}

func TestServer_ForcePoll(t *testing.T) {
	server, _ := newPollingServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/poller/status", nil)
	var status struct {
		IsPolling bool     `json:"is_polling"`
		Status    string   `json:"status"`
		Sources   []string `json:"sources"`
	}
	decode(t, w, &status)
	if status.Status != "stopped" || len(status.Sources) != 1 {
		t.Errorf("Expected a stopped poller with one source, got %+v", status)
	}

	w = doRequest(t, server, http.MethodPost, "/api/v1/poller/force-poll/Unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown source, got %d", w.Code)
	}

	w = doRequest(t, server, http.MethodPost, "/api/v1/poller/force-poll/"+url.PathEscape("Lab Blog"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, server, http.MethodGet, "/api/v1/articles?topic="+url.QueryEscape("Robotics & Autonomous Systems"), nil)
	var list articleList
	decode(t, w, &list)
	if list.Count != 1 || list.Articles[0].Source != "Lab Blog" {
		t.Errorf("Expected the polled article to be searchable, got %+v", list)
	}

	w = doRequest(t, server, http.MethodGet, "/api/v1/poller/last-polled", nil)
	var lastPolled map[string]time.Time
	decode(t, w, &lastPolled)
	if lastPolled["Lab Blog"].IsZero() {
		t.Error("Expected a last polled time for Lab Blog")
	}
}

func TestServer_RespondError(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"filter", &models.FilterError{Field: "limit", Reason: "must not be negative"}, http.StatusBadRequest},
		{"article", fmt.Errorf("no title: %w", models.ErrInvalidArticle), http.StatusBadRequest},
		{"unavailable", fmt.Errorf("unavailable: %w", models.ErrUnavailable), http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"rebuild", fmt.Errorf("%w: disk full", models.ErrIndexRebuild), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			server.respondError(c, tt.err)
			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	start, err := parseDate("2024-03-01", false)
	if err != nil {
		t.Fatalf("Expected bare date to parse, got %v", err)
	}
	if !start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected start of day, got %v", start)
	}

	end, err := parseDate("2024-03-01", true)
	if err != nil {
		t.Fatalf("Expected bare date to parse, got %v", err)
	}
	if end.Day() != 1 || end.Hour() != 23 {
		t.Errorf("Expected end of day, got %v", end)
	}

	ts, err := parseDate("2024-03-01T12:00:00+02:00", true)
	if err != nil {
		t.Fatalf("Expected RFC3339 to parse, got %v", err)
	}
	if !ts.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected UTC conversion, got %v", ts)
	}

	if _, err := parseDate("03/01/2024", false); err == nil {
		t.Error("Expected error for an unsupported format")
	}
}

func TestSplitValues(t *testing.T) {
	got := splitValues([]string{"Wired, TechCrunch", " ", "MIT News"})
	expected := []string{"Wired", "TechCrunch", "MIT News"}

	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected %s at %d, got %s", expected[i], i, got[i])
		}
	}
}
