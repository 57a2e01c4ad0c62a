package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"newsrank/internal/models"
)

// IndexHealth compares the primary table with the text index.
func (s *SQLiteStorage) IndexHealth(ctx context.Context) (models.IndexHealth, error) {
	var h models.IndexHealth
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM search_docs d JOIN articles a ON a.id = d.article_id),
			(SELECT COUNT(*) FROM articles a WHERE NOT EXISTS (SELECT 1 FROM search_docs d WHERE d.article_id = a.id)),
			(SELECT COUNT(*) FROM (
				SELECT article_id FROM search_docs
				UNION SELECT article_id FROM search_index
				UNION SELECT article_id FROM article_topics
			) o WHERE NOT EXISTS (SELECT 1 FROM articles a WHERE a.id = o.article_id))`).
		Scan(&h.Articles, &h.Indexed, &h.Missing, &h.Orphans)
	if err != nil {
		return h, unavailable("check index health", err)
	}
	return h, nil
}

// RebuildIndex drops and regenerates every topic row and index entry in a
// single transaction. Readers keep seeing the previous index until it
// commits. Returns the number of indexed articles.
func (s *SQLiteStorage) RebuildIndex(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	count := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT "+strings.Join(articleColumns, ", ")+" FROM articles a ORDER BY a.id")
		if err != nil {
			return fmt.Errorf("failed to read articles: %w", err)
		}
		var sources []models.Article
		for rows.Next() {
			article, err := scanArticle(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan article: %w", err)
			}
			sources = append(sources, *article)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("failed to iterate articles: %w", err)
		}
		rows.Close()

		for _, table := range []string{"search_index", "search_docs", "article_topics"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, article := range sources {
			if err := writeTopicsTx(ctx, tx, article.ID, article.Topics); err != nil {
				return err
			}
			if err := s.writeIndexTx(ctx, tx, article); err != nil {
				return err
			}
		}
		count = len(sources)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO app_state (key, value, updated_at) VALUES ('last_index_rebuild', ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			fmt.Sprintf("%d", count), formatTime(s.now()))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrIndexRebuild, unavailable("rebuild index", err))
	}

	s.logger.Info("rebuilt text index", "articles", count, "duration", time.Since(start))
	return count, nil
}

// CleanupOldArticles removes articles fetched before cutoff together with
// their topic rows and index entries.
func (s *SQLiteStorage) CleanupOldArticles(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stale := "SELECT id FROM articles WHERE fetched_at < ?"
		for _, table := range []string{"search_index", "search_docs", "article_topics"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE article_id IN ("+stale+")", formatTime(cutoff)); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE fetched_at < ?", formatTime(cutoff))
		if err != nil {
			return fmt.Errorf("failed to delete old articles: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, unavailable("clean up old articles", err)
	}

	if removed > 0 {
		s.logger.Info("cleaned up old articles", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// OptimizeDatabase performs database maintenance operations.
func (s *SQLiteStorage) OptimizeDatabase(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// VACUUM to reclaim space, ANALYZE to refresh planner statistics
	for _, stmt := range []string{"VACUUM", "ANALYZE", "PRAGMA wal_checkpoint(TRUNCATE)"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("run "+stmt, err)
		}
	}

	s.logger.Info("database optimization completed")
	return nil
}

// GetDatabaseStats returns storage level statistics.
func (s *SQLiteStorage) GetDatabaseStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"path": s.path}

	counts := []struct {
		key   string
		query string
	}{
		{"total_articles", "SELECT COUNT(*) FROM articles"},
		{"index_terms", "SELECT COUNT(*) FROM search_index"},
		{"distinct_terms", "SELECT COUNT(DISTINCT term) FROM search_index"},
		{"topic_assignments", "SELECT COUNT(*) FROM article_topics"},
	}
	for _, c := range counts {
		var n int
		if err := s.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, unavailable("get "+c.key, err)
		}
		stats[c.key] = n
	}

	var avgContentLength sql.NullFloat64
	err := s.db.QueryRowContext(ctx, "SELECT AVG(LENGTH(content)) FROM articles WHERE content IS NOT NULL AND content != ''").Scan(&avgContentLength)
	if err != nil {
		return nil, unavailable("get average content length", err)
	}
	stats["avg_content_length"] = avgContentLength.Float64

	var dbSize int64
	err = s.db.QueryRowContext(ctx, "SELECT page_count * page_size as size FROM pragma_page_count(), pragma_page_size()").Scan(&dbSize)
	if err != nil {
		return nil, unavailable("get database size", err)
	}
	stats["database_size_bytes"] = dbSize

	return stats, nil
}
