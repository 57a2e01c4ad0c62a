package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Test default configuration
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}

	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("Expected default cache TTL 5m, got %v", cfg.CacheTTL)
	}

	if cfg.PollInterval != 15*time.Minute {
		t.Errorf("Expected default poll interval 15m, got %v", cfg.PollInterval)
	}

	if cfg.ArticleRetention != 30*24*time.Hour {
		t.Errorf("Expected default article retention 30 days, got %v", cfg.ArticleRetention)
	}

	if cfg.DuplicateURLPolicy != "skip" {
		t.Errorf("Expected default duplicate policy skip, got %s", cfg.DuplicateURLPolicy)
	}

	if cfg.DedupThreshold != 0.7 {
		t.Errorf("Expected default dedup threshold 0.7, got %v", cfg.DedupThreshold)
	}

	if cfg.RelevanceFloor != 30 {
		t.Errorf("Expected default relevance floor 30, got %v", cfg.RelevanceFloor)
	}

	if cfg.DefaultSearchLimit != 50 || cfg.MaxSearchLimit != 500 {
		t.Errorf("Expected search limits 50/500, got %d/%d", cfg.DefaultSearchLimit, cfg.MaxSearchLimit)
	}

	if cfg.QualityWeights != (QualityWeights{Relevance: 0.6, Recency: 0.3, Source: 0.1}) {
		t.Errorf("Expected default quality weights, got %+v", cfg.QualityWeights)
	}

	if cfg.RecencyDecay != 24*time.Hour {
		t.Errorf("Expected default recency decay 24h, got %v", cfg.RecencyDecay)
	}

	if !cfg.EnablePoller {
		t.Error("Expected default EnablePoller to be true")
	}

	if !cfg.EnableSwagger {
		t.Error("Expected default EnableSwagger to be true")
	}

	if len(cfg.Feeds) != 5 {
		t.Errorf("Expected 5 default feed sources, got %d", len(cfg.Feeds))
	}
}

func TestLoadConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("POLL_INTERVAL", "30m")
	t.Setenv("ARTICLE_RETENTION", "48h")
	t.Setenv("ENABLE_SWAGGER", "false")
	t.Setenv("ENABLE_POLLER", "false")
	t.Setenv("DUPLICATE_URL_POLICY", "UPDATE")
	t.Setenv("DEDUP_THRESHOLD", "0.8")
	t.Setenv("DEDUP_WINDOW", "24h")
	t.Setenv("QUERY_TIMEOUT", "2s")
	t.Setenv("MAX_SEARCH_LIMIT", "100")
	t.Setenv("DROP_UNRELATED", "true")
	t.Setenv("LEXICON_PATH", "/etc/newsrank/lexicon.yaml")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090 from env, got %d", cfg.Port)
	}

	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("Expected cache TTL 30m from env, got %v", cfg.CacheTTL)
	}

	if cfg.PollInterval != 30*time.Minute {
		t.Errorf("Expected poll interval 30m from env, got %v", cfg.PollInterval)
	}

	if cfg.ArticleRetention != 48*time.Hour {
		t.Errorf("Expected article retention 48h from env, got %v", cfg.ArticleRetention)
	}

	if cfg.EnableSwagger {
		t.Error("Expected EnableSwagger false from env")
	}

	if cfg.EnablePoller {
		t.Error("Expected EnablePoller false from env")
	}

	if cfg.DuplicateURLPolicy != "update" {
		t.Errorf("Expected duplicate policy update from env, got %s", cfg.DuplicateURLPolicy)
	}

	if cfg.DedupThreshold != 0.8 {
		t.Errorf("Expected dedup threshold 0.8 from env, got %v", cfg.DedupThreshold)
	}

	if cfg.DedupWindow != 24*time.Hour {
		t.Errorf("Expected dedup window 24h from env, got %v", cfg.DedupWindow)
	}

	if cfg.QueryTimeout != 2*time.Second {
		t.Errorf("Expected query timeout 2s from env, got %v", cfg.QueryTimeout)
	}

	if cfg.MaxSearchLimit != 100 {
		t.Errorf("Expected max search limit 100 from env, got %d", cfg.MaxSearchLimit)
	}

	if !cfg.DropUnrelated {
		t.Error("Expected DropUnrelated true from env")
	}

	if cfg.LexiconPath != "/etc/newsrank/lexicon.yaml" {
		t.Errorf("Expected lexicon path from env, got %s", cfg.LexiconPath)
	}
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("ENABLE_CORS", "maybe")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Expected fallback port 8080, got %d", cfg.Port)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("Expected fallback cache TTL, got %v", cfg.CacheTTL)
	}
	if !cfg.Security.EnableCORS {
		t.Error("Expected fallback EnableCORS true")
	}
}

func TestLoadConfig_FeedSources(t *testing.T) {
	t.Setenv("FEED_SOURCE_WIRED_AI", "https://example.com/wired.xml")
	t.Setenv("FEED_SOURCE_ARXIV", " https://example.com/arxiv.xml ")
	t.Setenv("FEED_SOURCE_EMPTY", "")

	cfg := Load()

	if len(cfg.Feeds) != 2 {
		t.Fatalf("Expected 2 feed sources, got %d: %v", len(cfg.Feeds), cfg.Feeds)
	}

	if cfg.Feeds["WIRED AI"] != "https://example.com/wired.xml" {
		t.Errorf("Expected WIRED AI source, got %v", cfg.Feeds)
	}

	if cfg.Feeds["ARXIV"] != "https://example.com/arxiv.xml" {
		t.Errorf("Expected trimmed ARXIV url, got %q", cfg.Feeds["ARXIV"])
	}
}

func TestParseReputation(t *testing.T) {
	got := parseReputation("TechCrunch AI=0.9, Wired AI = 0.5,broken,=1,Bad=x")

	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %v", got)
	}
	if got["TechCrunch AI"] != 0.9 {
		t.Errorf("Expected TechCrunch AI 0.9, got %v", got["TechCrunch AI"])
	}
	if got["Wired AI"] != 0.5 {
		t.Errorf("Expected Wired AI 0.5, got %v", got["Wired AI"])
	}

	if len(parseReputation("")) != 0 {
		t.Error("Expected empty reputation map for empty value")
	}
}

func TestParseQualityWeights(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected QualityWeights
	}{
		{"custom", "0.5, 0.4, 0.1", QualityWeights{Relevance: 0.5, Recency: 0.4, Source: 0.1}},
		{"empty", "", QualityWeights{Relevance: 0.6, Recency: 0.3, Source: 0.1}},
		{"too few", "0.5,0.5", QualityWeights{Relevance: 0.6, Recency: 0.3, Source: 0.1}},
		{"negative", "0.5,-0.5,1", QualityWeights{Relevance: 0.6, Recency: 0.3, Source: 0.1}},
		{"not a number", "a,b,c", QualityWeights{Relevance: 0.6, Recency: 0.3, Source: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseQualityWeights(tt.value); got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}
