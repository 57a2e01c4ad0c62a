package models

import (
	"math"
	"time"
)

// Article is the normalized unit of storage and retrieval. Ingestion
// collaborators map their native items into this shape before handing them
// to the engine.
type Article struct {
	ID             int64      `json:"id"`
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Content        string     `json:"content,omitempty"`
	Author         string     `json:"author,omitempty"`
	Source         string     `json:"source"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FetchedAt      time.Time  `json:"fetched_at"`
	ProcessedAt    time.Time  `json:"processed_at"`
	Topics         []string   `json:"topics"`
	Keywords       []string   `json:"keywords"`
	RelevanceScore float64    `json:"relevance_score"`
	LexiconVersion string     `json:"lexicon_version,omitempty"`
}

// EffectiveTime is the timestamp used for window filters: the source's
// publication time when known, the fetch time otherwise.
func (a Article) EffectiveTime() time.Time {
	if a.PublishedAt != nil && !a.PublishedAt.IsZero() {
		return *a.PublishedAt
	}
	return a.FetchedAt
}

// Analysis is the output of the content analyzer.
type Analysis struct {
	Score     float64  `json:"score"`
	Topics    []string `json:"topics"`
	Keywords  []string `json:"keywords"`
	IsRelated bool     `json:"is_related"`
}

// DisplayScore rounds the score to one decimal place.
func (a Analysis) DisplayScore() float64 {
	return RoundScore(a.Score)
}

// RoundScore rounds a relevance score to one decimal place.
func RoundScore(score float64) float64 {
	return math.Round(score*10) / 10
}

// SearchHit is a search result with its text rank (zero without a query).
type SearchHit struct {
	Article
	TextRank float64 `json:"text_rank,omitempty"`
}

// SimilarArticle pairs an existing article with its title similarity.
type SimilarArticle struct {
	Article
	Similarity float64 `json:"similarity"`
}

// RankedArticle carries the advisory composite quality score.
type RankedArticle struct {
	Article
	Quality float64 `json:"quality"`
}

// TopicCount is one row of the trending topics aggregation.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Stats summarizes the stored corpus.
type Stats struct {
	TotalArticles    int            `json:"total_articles"`
	ArticlesBySource map[string]int `json:"articles_by_source"`
	ArticlesToday    int            `json:"articles_today"`
	Unanalyzed       int            `json:"unanalyzed"`
	LexiconVersion   string         `json:"lexicon_version"`
}

// IndexHealth reports divergence between the primary table and the text index.
type IndexHealth struct {
	Articles int `json:"articles"`
	Indexed  int `json:"indexed"`
	Missing  int `json:"missing"`
	Orphans  int `json:"orphans"`
}

// Consistent reports whether every article is indexed and no index row is orphaned.
func (h IndexHealth) Consistent() bool {
	return h.Missing == 0 && h.Orphans == 0
}

// InsertStatus describes what an insert did with the row.
type InsertStatus string

const (
	StatusInserted  InsertStatus = "inserted"
	StatusUpdated   InsertStatus = "updated"
	StatusSkipped   InsertStatus = "skipped"
	StatusDuplicate InsertStatus = "duplicate"
	StatusRejected  InsertStatus = "rejected"
)

// InsertResult is returned by the storage insert path.
type InsertResult struct {
	ID     int64        `json:"id"`
	Status InsertStatus `json:"status"`
}

// IngestResult is the per-article outcome of the ingestion pipeline.
type IngestResult struct {
	URL         string       `json:"url"`
	ID          int64        `json:"id,omitempty"`
	Status      InsertStatus `json:"status"`
	Score       float64      `json:"score"`
	Topics      []string     `json:"topics"`
	DuplicateOf int64        `json:"duplicate_of,omitempty"`
	Similarity  float64      `json:"similarity,omitempty"`
	Error       string       `json:"error,omitempty"`
}
