package storage

import (
	"context"
	"time"

	"newsrank/internal/models"
)

// Storage is the persistence contract of the engine. Every failure of the
// backing store is reported wrapped in models.ErrUnavailable.
type Storage interface {
	Insert(ctx context.Context, article models.Article, policy models.DuplicatePolicy) (models.InsertResult, error)
	UpdateAnalysis(ctx context.Context, id int64, analysis models.Analysis, version string) error
	GetArticle(ctx context.Context, id int64) (*models.Article, error)
	GetArticleByURL(ctx context.Context, url string) (*models.Article, error)

	Search(ctx context.Context, filter models.SearchFilter) ([]models.SearchHit, error)
	TopArticles(ctx context.Context, since, until time.Time, limit int) ([]models.Article, error)
	RecentArticles(ctx context.Context, since time.Time, limit int) ([]models.Article, error)
	TrendingTopics(ctx context.Context, since, until time.Time) ([]models.TopicCount, error)
	ArticlesNeedingAnalysis(ctx context.Context, version string, afterID int64, limit int) ([]models.Article, error)
	Stats(ctx context.Context, version string) (*models.Stats, error)

	// Index maintenance
	IndexHealth(ctx context.Context) (models.IndexHealth, error)
	RebuildIndex(ctx context.Context) (int, error)

	// Storage optimization methods
	CleanupOldArticles(ctx context.Context, cutoff time.Time) (int64, error)
	OptimizeDatabase(ctx context.Context) error
	GetDatabaseStats(ctx context.Context) (map[string]interface{}, error)

	GetAppState(ctx context.Context, key string) (string, bool, error)
	SetAppState(ctx context.Context, key, value string) error
	Close() error
}
