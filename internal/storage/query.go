package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"newsrank/internal/models"
	"newsrank/internal/textproc"
)

// Search runs a conjunctive filtered query. Every query term must be present
// in the index for an article to match. With a query, results are ordered by
// text rank, then relevance, recency and id; without one by relevance,
// recency and id.
func (s *SQLiteStorage) Search(ctx context.Context, filter models.SearchFilter) ([]models.SearchHit, error) {
	if err := filter.Validate(0); err != nil {
		return nil, err
	}

	terms := textproc.QueryTerms(filter.Query, s.stopWords)

	columns := append([]string{}, articleColumns...)
	if len(terms) > 0 {
		columns = append(columns, "m.text_rank")
	} else {
		columns = append(columns, "0")
	}
	query := sq.Select(columns...).From("articles a")

	if len(terms) > 0 {
		subSQL, subArgs, err := textRankQuery(terms).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build text query: %w", err)
		}
		query = query.Join("("+subSQL+") m ON m.article_id = a.id", subArgs...)
	}

	query = applyFilter(query, filter)

	if len(terms) > 0 {
		query = query.OrderBy("m.text_rank DESC")
	}
	query = query.OrderBy("COALESCE(a.relevance_score, 0) DESC", effectiveTime+" DESC", "a.id ASC").
		Limit(uint64(filter.EffectiveLimit())).
		Offset(uint64(filter.Offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, unavailable("search articles", err)
	}
	defer rows.Close()

	hits := []models.SearchHit{}
	for rows.Next() {
		var rank float64
		article, err := scanArticle(rows, &rank)
		if err != nil {
			return nil, unavailable("scan search result", err)
		}
		hits = append(hits, models.SearchHit{Article: *article, TextRank: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate search results", err)
	}
	return hits, nil
}

// textRankQuery selects the articles holding every term with their weighted
// term frequency.
func textRankQuery(terms []string) sq.SelectBuilder {
	weights := make([]string, 0, len(fieldWeights))
	for field, w := range fieldWeights {
		weights = append(weights, fmt.Sprintf("WHEN '%s' THEN %d", field, w))
	}
	sort.Strings(weights)

	return sq.Select("article_id", "SUM(tf * CASE field "+strings.Join(weights, " ")+" ELSE 1 END) AS text_rank").
		From("search_index").
		Where(sq.Eq{"term": terms}).
		GroupBy("article_id").
		Having("COUNT(DISTINCT term) = ?", len(terms))
}

func applyFilter(query sq.SelectBuilder, filter models.SearchFilter) sq.SelectBuilder {
	if len(filter.Sources) > 0 {
		query = query.Where(sq.Eq{"a.source": filter.Sources})
	}
	if len(filter.Topics) > 0 {
		sub, args, _ := sq.Select("article_id").From("article_topics").Where(sq.Eq{"topic": filter.Topics}).ToSql()
		query = query.Where("a.id IN ("+sub+")", args...)
	}
	if filter.MinRelevance != nil {
		query = query.Where(sq.GtOrEq{"COALESCE(a.relevance_score, 0)": *filter.MinRelevance})
	}
	if filter.StartDate != nil {
		query = query.Where(sq.GtOrEq{effectiveTime: formatTime(*filter.StartDate)})
	}
	if filter.EndDate != nil {
		query = query.Where(sq.LtOrEq{effectiveTime: formatTime(*filter.EndDate)})
	}
	return query
}

// TopArticles returns articles whose effective time lies in [since, until],
// by relevance descending with recency as tie-breaker.
func (s *SQLiteStorage) TopArticles(ctx context.Context, since, until time.Time, limit int) ([]models.Article, error) {
	query := sq.Select(articleColumns...).From("articles a").
		Where(sq.GtOrEq{effectiveTime: formatTime(since)}).
		Where(sq.LtOrEq{effectiveTime: formatTime(until)}).
		OrderBy("COALESCE(a.relevance_score, 0) DESC", effectiveTime+" DESC", "a.id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.queryArticles(ctx, "top articles", query)
}

// RecentArticles returns the newest articles since the given time, newest
// first. It feeds the duplicate candidate pool.
func (s *SQLiteStorage) RecentArticles(ctx context.Context, since time.Time, limit int) ([]models.Article, error) {
	query := sq.Select(articleColumns...).From("articles a").
		Where(sq.GtOrEq{effectiveTime: formatTime(since)}).
		OrderBy(effectiveTime+" DESC", "a.id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.queryArticles(ctx, "recent articles", query)
}

// ArticlesNeedingAnalysis pages through rows scored with another lexicon
// version, or never scored, in id order after afterID.
func (s *SQLiteStorage) ArticlesNeedingAnalysis(ctx context.Context, version string, afterID int64, limit int) ([]models.Article, error) {
	query := sq.Select(articleColumns...).From("articles a").
		Where(sq.Or{sq.Eq{"a.lexicon_version": nil}, sq.NotEq{"a.lexicon_version": version}}).
		Where(sq.Gt{"a.id": afterID}).
		OrderBy("a.id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return s.queryArticles(ctx, "articles needing analysis", query)
}

func (s *SQLiteStorage) queryArticles(ctx context.Context, op string, query sq.SelectBuilder) ([]models.Article, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, unavailable("query "+op, err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, unavailable("scan "+op, err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate "+op, err)
	}
	return articles, nil
}

// TrendingTopics counts (article, topic) pairs for articles whose effective
// time lies in [since, until]. Ordered by count descending, then topic name.
func (s *SQLiteStorage) TrendingTopics(ctx context.Context, since, until time.Time) ([]models.TopicCount, error) {
	sqlStr, args, err := sq.Select("t.topic", "COUNT(*) AS cnt").
		From("article_topics t").
		Join("articles a ON a.id = t.article_id").
		Where(sq.GtOrEq{effectiveTime: formatTime(since)}).
		Where(sq.LtOrEq{effectiveTime: formatTime(until)}).
		GroupBy("t.topic").
		OrderBy("cnt DESC", "t.topic ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build trending query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, unavailable("query trending topics", err)
	}
	defer rows.Close()

	counts := []models.TopicCount{}
	for rows.Next() {
		var tc models.TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, unavailable("scan trending topic", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate trending topics", err)
	}
	return counts, nil
}

// Stats summarizes the corpus. Unanalyzed counts rows not scored with version.
func (s *SQLiteStorage) Stats(ctx context.Context, version string) (*models.Stats, error) {
	stats := &models.Stats{ArticlesBySource: make(map[string]int), LexiconVersion: version}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&stats.TotalArticles); err != nil {
		return nil, unavailable("count articles", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM articles GROUP BY source ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, unavailable("count articles by source", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, unavailable("scan source count", err)
		}
		stats.ArticlesBySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate source counts", err)
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE fetched_at >= ?", formatTime(midnight)).Scan(&stats.ArticlesToday); err != nil {
		return nil, unavailable("count today's articles", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM articles WHERE lexicon_version IS NULL OR lexicon_version != ?", version).
		Scan(&stats.Unanalyzed)
	if err != nil {
		return nil, unavailable("count unanalyzed articles", err)
	}
	return stats, nil
}

// GetAppState reads one key of the app_state table.
func (s *SQLiteStorage) GetAppState(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("read app state", err)
	}
	return value.String, true, nil
}

// SetAppState upserts one key of the app_state table.
func (s *SQLiteStorage) SetAppState(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(s.now()))
	return unavailable("write app state", err)
}
