package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const schemaVersion = "3"

const articlesTable = `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL,
	content TEXT,
	author TEXT,
	source TEXT NOT NULL,
	published_at TEXT,
	fetched_at TEXT,
	processed_at TEXT,
	topics TEXT,       -- JSON array
	keywords TEXT,     -- JSON array, extraction order
	relevance_score REAL,
	lexicon_version TEXT
);`

const supportTables = `
-- Topic membership, one row per (article, topic)
CREATE TABLE IF NOT EXISTS article_topics (
	article_id INTEGER NOT NULL,
	topic TEXT NOT NULL,
	PRIMARY KEY (article_id, topic)
);

-- Inverted text index: stemmed term frequencies per field
CREATE TABLE IF NOT EXISTS search_index (
	article_id INTEGER NOT NULL,
	term TEXT NOT NULL,
	field TEXT NOT NULL, -- 'title', 'keywords', 'content', 'author', 'source'
	tf INTEGER NOT NULL,
	PRIMARY KEY (article_id, term, field)
);

-- One row per indexed article, written with its terms
CREATE TABLE IF NOT EXISTS search_docs (
	article_id INTEGER PRIMARY KEY,
	terms INTEGER NOT NULL,
	indexed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS app_state (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at TEXT
);`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_articles_topics ON articles(topics);",
	"CREATE INDEX IF NOT EXISTS idx_articles_relevance ON articles(relevance_score DESC);",
	"CREATE INDEX IF NOT EXISTS idx_articles_source_processed ON articles(source, processed_at DESC);",
	"CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);",
	"CREATE INDEX IF NOT EXISTS idx_articles_fetched ON articles(fetched_at DESC);",
	"CREATE INDEX IF NOT EXISTS idx_articles_lexicon ON articles(lexicon_version);",
	"CREATE INDEX IF NOT EXISTS idx_article_topics_topic ON article_topics(topic);",
	"CREATE INDEX IF NOT EXISTS idx_search_index_term ON search_index(term);",
	"CREATE INDEX IF NOT EXISTS idx_search_index_article ON search_index(article_id);",
}

// Columns a legacy articles table may lack. Added columns start out NULL and
// are filled by the re-processing pass.
var requiredColumns = []struct {
	name string
	def  string
}{
	{"content", "TEXT"},
	{"author", "TEXT"},
	{"published_at", "TEXT"},
	{"fetched_at", "TEXT"},
	{"processed_at", "TEXT"},
	{"topics", "TEXT"},
	{"keywords", "TEXT"},
	{"relevance_score", "REAL"},
	{"lexicon_version", "TEXT"},
}

// Triggers that fed a legacy FTS table. Their job is done by search_index now.
var legacyTriggers = []string{"articles_ai", "articles_ad", "articles_au"}

func createTables(ctx context.Context, db *sql.DB) error {
	existing, err := tableColumns(ctx, db, "articles")
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		if _, err := db.ExecContext(ctx, articlesTable); err != nil {
			return fmt.Errorf("failed to create articles table: %w", err)
		}
	} else if err := migrateArticles(ctx, db, existing); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, supportTables); err != nil {
		return fmt.Errorf("failed to create support tables: %w", err)
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_at) VALUES ('schema_version', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		schemaVersion, formatTime(nowUTC()))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// migrateArticles upgrades an older articles table in place without losing rows.
func migrateArticles(ctx context.Context, db *sql.DB, existing map[string]bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, trigger := range legacyTriggers {
		if _, err := tx.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+trigger); err != nil {
			return fmt.Errorf("failed to drop trigger %s: %w", trigger, err)
		}
	}

	for _, col := range requiredColumns {
		if existing[col.name] {
			continue
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE articles ADD COLUMN %s %s", col.name, col.def)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	// Older rows kept their text in summary/original_content.
	var contentSources []string
	for _, legacy := range []string{"original_content", "summary"} {
		if existing[legacy] {
			contentSources = append(contentSources, legacy)
		}
	}
	if len(contentSources) > 0 {
		stmt := fmt.Sprintf("UPDATE articles SET content = COALESCE(%s) WHERE content IS NULL", strings.Join(contentSources, ", "))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to backfill content: %w", err)
		}
	}

	fetchedSources := []string{}
	for _, legacy := range []string{"created_at", "processed_at"} {
		if existing[legacy] {
			fetchedSources = append(fetchedSources, legacy)
		}
	}
	fetchedSources = append(fetchedSources, "?")
	stmt := fmt.Sprintf("UPDATE articles SET fetched_at = COALESCE(%s) WHERE fetched_at IS NULL", strings.Join(fetchedSources, ", "))
	if _, err := tx.ExecContext(ctx, stmt, formatTime(nowUTC())); err != nil {
		return fmt.Errorf("failed to backfill fetched_at: %w", err)
	}

	// Bring timestamps written by other tools into the sortable layout.
	for _, col := range []string{"published_at", "fetched_at", "processed_at"} {
		stmt := fmt.Sprintf(`UPDATE articles
			SET %[1]s = COALESCE(strftime('%%Y-%%m-%%dT%%H:%%M:%%S', %[1]s) || '.000000000Z', %[1]s)
			WHERE %[1]s IS NOT NULL AND %[1]s NOT LIKE '____-__-__T__:__:__.%%Z'`, col)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to normalize %s: %w", col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	committed = true
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
