package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SecurityConfig represents security configuration
type SecurityConfig struct {
	EnableRateLimit       bool
	RateLimitPerSecond    float64
	RateLimitBurst        int
	EnableCORS            bool
	AllowedOrigins        []string
	EnableSecurityHeaders bool
	MaxRequestSize        int64
	EnableRequestID       bool
}

// QualityWeights are the coefficients of the composite quality score.
type QualityWeights struct {
	Relevance float64
	Recency   float64
	Source    float64
}

type Config struct {
	Port     int
	DataDir  string
	LogLevel string
	CacheTTL time.Duration

	// Feed polling; Feeds maps a source name to its RSS/Atom url
	Feeds            map[string]string
	PollInterval     time.Duration
	EnablePoller     bool
	ArticleRetention time.Duration

	// Ingestion
	DuplicateURLPolicy string
	DedupThreshold     float64
	DedupWindow        time.Duration
	DedupPoolSize      int
	DropUnrelated      bool
	WorkerPoolSize     int

	// Analysis
	RelevanceFloor float64
	MaxKeywords    int
	LexiconPath    string

	// Queries
	SimilarMinScore    float64
	QueryTimeout       time.Duration
	DefaultSearchLimit int
	MaxSearchLimit     int
	SourceReputation   map[string]float64
	QualityWeights     QualityWeights
	RecencyDecay       time.Duration

	EnableSwagger bool
	Security      SecurityConfig
}

// Load reads the configuration from the environment, seeded from a .env file
// in the working directory when one exists.
func Load() *Config {
	_ = godotenv.Load()

	feeds := loadFeedsFromEnv()

	// If no feeds configured via env, use defaults
	if len(feeds) == 0 {
		feeds = getDefaultFeeds()
	}

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		DataDir:  getEnv("DATA_DIR", "./data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		CacheTTL: getEnvAsDuration("CACHE_TTL", 5*time.Minute),

		Feeds:            feeds,
		PollInterval:     getEnvAsDuration("POLL_INTERVAL", 15*time.Minute),
		EnablePoller:     getEnvAsBool("ENABLE_POLLER", true),
		ArticleRetention: getEnvAsDuration("ARTICLE_RETENTION", 30*24*time.Hour),

		DuplicateURLPolicy: strings.ToLower(getEnv("DUPLICATE_URL_POLICY", "skip")),
		DedupThreshold:     getEnvAsFloat("DEDUP_THRESHOLD", 0.7),
		DedupWindow:        getEnvAsDuration("DEDUP_WINDOW", 7*24*time.Hour),
		DedupPoolSize:      getEnvAsInt("DEDUP_POOL_SIZE", 500),
		DropUnrelated:      getEnvAsBool("DROP_UNRELATED", false),
		WorkerPoolSize:     getEnvAsInt("WORKER_POOL_SIZE", 0),

		RelevanceFloor: getEnvAsFloat("RELEVANCE_FLOOR", 30),
		MaxKeywords:    getEnvAsInt("MAX_KEYWORDS", 20),
		LexiconPath:    getEnv("LEXICON_PATH", ""),

		SimilarMinScore:    getEnvAsFloat("SIMILAR_MIN_SCORE", 0.3),
		QueryTimeout:       getEnvAsDuration("QUERY_TIMEOUT", 10*time.Second),
		DefaultSearchLimit: getEnvAsInt("DEFAULT_SEARCH_LIMIT", 50),
		MaxSearchLimit:     getEnvAsInt("MAX_SEARCH_LIMIT", 500),
		SourceReputation:   parseReputation(os.Getenv("SOURCE_REPUTATION")),
		QualityWeights:     parseQualityWeights(os.Getenv("QUALITY_WEIGHTS")),
		RecencyDecay:       getEnvAsDuration("RECENCY_DECAY", 24*time.Hour),

		EnableSwagger: getEnvAsBool("ENABLE_SWAGGER", true),
		Security:      loadSecurityConfig(),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableRateLimit:       getEnvAsBool("ENABLE_RATE_LIMIT", true),
		RateLimitPerSecond:    getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10.0),
		RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 20),
		EnableCORS:            getEnvAsBool("ENABLE_CORS", true),
		AllowedOrigins:        getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
		EnableSecurityHeaders: getEnvAsBool("ENABLE_SECURITY_HEADERS", true),
		MaxRequestSize:        getEnvAsInt64("MAX_REQUEST_SIZE", 10<<20), // 10MB
		EnableRequestID:       getEnvAsBool("ENABLE_REQUEST_ID", true),
	}
}

// loadFeedsFromEnv reads FEED_SOURCE_<NAME>=<url> variables. Underscores in
// the name become spaces, so FEED_SOURCE_WIRED_AI names the source "WIRED AI".
func loadFeedsFromEnv() map[string]string {
	feeds := make(map[string]string)

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "FEED_SOURCE_") {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		name := strings.ReplaceAll(strings.TrimPrefix(parts[0], "FEED_SOURCE_"), "_", " ")
		url := strings.TrimSpace(parts[1])
		if strings.TrimSpace(name) == "" || url == "" {
			continue
		}
		feeds[name] = url
	}

	return feeds
}

func getDefaultFeeds() map[string]string {
	return map[string]string{
		"TechCrunch AI":            "https://techcrunch.com/category/artificial-intelligence/feed/",
		"VentureBeat AI":           "https://venturebeat.com/ai/feed/",
		"MIT Technology Review AI": "https://www.technologyreview.com/topic/artificial-intelligence/feed/",
		"Wired AI":                 "https://www.wired.com/tag/artificial-intelligence/feed/",
		"The Verge AI":             "https://www.theverge.com/ai-artificial-intelligence/rss/index.xml",
	}
}

// parseReputation parses "Source A=0.9,Source B=0.4". Malformed pairs are
// ignored.
func parseReputation(value string) map[string]float64 {
	reputation := make(map[string]float64)
	for _, pair := range strings.Split(value, ",") {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if name == "" || err != nil {
			continue
		}
		reputation[name] = score
	}
	return reputation
}

// parseQualityWeights parses "relevance,recency,source". Anything else
// yields the defaults 0.6, 0.3, 0.1.
func parseQualityWeights(value string) QualityWeights {
	defaults := QualityWeights{Relevance: 0.6, Recency: 0.3, Source: 0.1}
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return defaults
	}

	var w [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || f < 0 {
			return defaults
		}
		w[i] = f
	}
	return QualityWeights{Relevance: w[0], Recency: w[1], Source: w[2]}
}

func getEnv(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		origins := strings.Split(val, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		return origins
	}
	return defaultVal
}
