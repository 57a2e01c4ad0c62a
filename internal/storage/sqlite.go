package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newsrank/internal/models"
	"newsrank/internal/textproc"
)

const (
	DatabaseFile     = "newsrank.db"
	defaultReadConns = 4
	timeLayout       = "2006-01-02T15:04:05.000000000Z07:00"
)

// Field weights used for the text rank.
var fieldWeights = map[string]int{
	"title":    3,
	"keywords": 2,
	"content":  1,
	"author":   1,
	"source":   1,
}

// Options configures the SQLite storage.
type Options struct {
	// DataDir holds the database file unless Path is set.
	DataDir string
	Path    string
	// ReadConns is the number of pooled connections besides the writer.
	ReadConns int
	// StopWords are left out of the text index.
	StopWords map[string]bool
	Logger    *slog.Logger
}

// SQLiteStorage keeps articles and their text index in one SQLite database.
// Writes are serialized by writeMu, one transaction per article; readers use
// the other pooled connections and see committed WAL snapshots only.
type SQLiteStorage struct {
	db        *sql.DB
	path      string
	stopWords map[string]bool
	logger    *slog.Logger
	writeMu   sync.Mutex
	now       func() time.Time
}

var _ Storage = (*SQLiteStorage)(nil)

func NewSQLiteStorage(opts Options) (*SQLiteStorage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbPath := opts.Path
	if dbPath == "" {
		if opts.DataDir == "" {
			opts.DataDir = "data"
		}
		if err := os.MkdirAll(opts.DataDir, 0750); err != nil {
			return nil, fmt.Errorf("%w: failed to create data directory: %w", models.ErrUnavailable, err)
		}
		dbPath = filepath.Join(opts.DataDir, DatabaseFile)
	}
	logger.Info("initializing database", "path", dbPath)

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", models.ErrUnavailable, err)
	}

	readConns := opts.ReadConns
	if readConns <= 0 {
		readConns = defaultReadConns
	}
	db.SetMaxOpenConns(readConns + 1)
	db.SetMaxIdleConns(readConns + 1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn("failed to set pragma", "pragma", pragma, "error", err)
		}
	}

	if err := createTables(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create tables: %w", models.ErrUnavailable, err)
	}

	stopWords := make(map[string]bool, len(opts.StopWords))
	for w := range opts.StopWords {
		stopWords[w] = true
	}

	return &SQLiteStorage{
		db:        db,
		path:      dbPath,
		stopWords: stopWords,
		logger:    logger,
		now:       nowUTC,
	}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Insert writes the article row, its topic rows and its index entries in one
// transaction. An existing url is left alone under PolicySkip and
// overwritten under PolicyUpdate.
func (s *SQLiteStorage) Insert(ctx context.Context, article models.Article, policy models.DuplicatePolicy) (models.InsertResult, error) {
	if strings.TrimSpace(article.URL) == "" || strings.TrimSpace(article.Title) == "" {
		return models.InsertResult{Status: models.StatusRejected}, fmt.Errorf("%w: url and title are required", models.ErrInvalidArticle)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	if article.FetchedAt.IsZero() {
		article.FetchedAt = now
	}
	article.ProcessedAt = now

	var result models.InsertResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existingID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM articles WHERE url = ?", article.URL).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			id, err := insertArticleTx(ctx, tx, article)
			if err != nil {
				return err
			}
			result = models.InsertResult{ID: id, Status: models.StatusInserted}
		case err != nil:
			return fmt.Errorf("failed to look up url: %w", err)
		case policy == models.PolicyUpdate:
			if err := updateArticleTx(ctx, tx, existingID, article); err != nil {
				return err
			}
			result = models.InsertResult{ID: existingID, Status: models.StatusUpdated}
		default:
			result = models.InsertResult{ID: existingID, Status: models.StatusSkipped}
			return nil
		}

		article.ID = result.ID
		if err := writeTopicsTx(ctx, tx, article.ID, article.Topics); err != nil {
			return err
		}
		return s.writeIndexTx(ctx, tx, article)
	})
	if err != nil {
		return models.InsertResult{}, unavailable("insert article", err)
	}

	s.logger.Debug("stored article", "id", result.ID, "url", article.URL, "status", result.Status)
	return result, nil
}

// UpdateAnalysis replaces the analysis fields of one article and rewrites its
// topic rows and index entries.
func (s *SQLiteStorage) UpdateAnalysis(ctx context.Context, id int64, analysis models.Analysis, version string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		topics, keywords, err := encodeLists(analysis.Topics, analysis.Keywords)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE articles
			SET topics = ?, keywords = ?, relevance_score = ?, lexicon_version = ?, processed_at = ?
			WHERE id = ?`,
			topics, keywords, analysis.Score, version, formatTime(s.now()), id)
		if err != nil {
			return fmt.Errorf("failed to update analysis: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		article, err := getArticleTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := writeTopicsTx(ctx, tx, id, article.Topics); err != nil {
			return err
		}
		return s.writeIndexTx(ctx, tx, *article)
	})
	return unavailable("update analysis", err)
}

func insertArticleTx(ctx context.Context, tx *sql.Tx, a models.Article) (int64, error) {
	topics, keywords, err := encodeLists(a.Topics, a.Keywords)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO articles (url, title, content, author, source, published_at, fetched_at,
			processed_at, topics, keywords, relevance_score, lexicon_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.URL, a.Title, a.Content, a.Author, a.Source, formatTimePtr(a.PublishedAt),
		formatTime(a.FetchedAt), formatTime(a.ProcessedAt), topics, keywords,
		a.RelevanceScore, nullString(a.LexiconVersion))
	if err != nil {
		return 0, fmt.Errorf("failed to insert article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get article id: %w", err)
	}
	return id, nil
}

func updateArticleTx(ctx context.Context, tx *sql.Tx, id int64, a models.Article) error {
	topics, keywords, err := encodeLists(a.Topics, a.Keywords)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE articles
		SET title = ?, content = ?, author = ?, source = ?, published_at = ?, fetched_at = ?,
			processed_at = ?, topics = ?, keywords = ?, relevance_score = ?, lexicon_version = ?
		WHERE id = ?`,
		a.Title, a.Content, a.Author, a.Source, formatTimePtr(a.PublishedAt),
		formatTime(a.FetchedAt), formatTime(a.ProcessedAt), topics, keywords,
		a.RelevanceScore, nullString(a.LexiconVersion), id)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return nil
}

func writeTopicsTx(ctx context.Context, tx *sql.Tx, id int64, topics []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM article_topics WHERE article_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear topics: %w", err)
	}
	for _, topic := range topics {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO article_topics (article_id, topic) VALUES (?, ?)", id, topic); err != nil {
			return fmt.Errorf("failed to insert topic %s: %w", topic, err)
		}
	}
	return nil
}

// writeIndexTx replaces the index entries of one article.
func (s *SQLiteStorage) writeIndexTx(ctx context.Context, tx *sql.Tx, a models.Article) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM search_index WHERE article_id = ?", a.ID); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO search_index (article_id, term, field, tf) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare index insert: %w", err)
	}
	defer stmt.Close()

	total := 0
	for field, text := range map[string]string{
		"title":    a.Title,
		"keywords": strings.Join(a.Keywords, " "),
		"content":  a.Content,
		"author":   a.Author,
		"source":   a.Source,
	} {
		counts := make(map[string]int)
		for _, term := range textproc.IndexTerms(text, s.stopWords) {
			counts[term]++
		}
		for term, tf := range counts {
			if _, err := stmt.ExecContext(ctx, a.ID, term, field, tf); err != nil {
				return fmt.Errorf("failed to index term %s: %w", term, err)
			}
			total += tf
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO search_docs (article_id, terms, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET terms = excluded.terms, indexed_at = excluded.indexed_at`,
		a.ID, total, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to record indexed document: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, rolling back unless fn and the commit succeed.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// GetArticle returns one article or nil when it does not exist.
func (s *SQLiteStorage) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+strings.Join(articleColumns, ", ")+" FROM articles a WHERE a.id = ?", id)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get article", err)
	}
	return article, nil
}

// GetArticleByURL returns the article stored under url, or nil.
func (s *SQLiteStorage) GetArticleByURL(ctx context.Context, url string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+strings.Join(articleColumns, ", ")+" FROM articles a WHERE a.url = ?", url)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get article by url", err)
	}
	return article, nil
}

func getArticleTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Article, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+strings.Join(articleColumns, ", ")+" FROM articles a WHERE a.id = ?", id)
	article, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load article %d: %w", id, err)
	}
	return article, nil
}

var articleColumns = []string{
	"a.id", "a.url", "a.title", "COALESCE(a.content, '')", "COALESCE(a.author, '')", "a.source",
	"a.published_at", "a.fetched_at", "a.processed_at", "COALESCE(a.topics, '[]')",
	"COALESCE(a.keywords, '[]')", "COALESCE(a.relevance_score, 0)", "COALESCE(a.lexicon_version, '')",
}

const effectiveTime = "COALESCE(a.published_at, a.fetched_at)"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row scanner, extra ...interface{}) (*models.Article, error) {
	var (
		a                             models.Article
		published, fetched, processed sql.NullString
		topics, keywords              string
	)
	dest := []interface{}{
		&a.ID, &a.URL, &a.Title, &a.Content, &a.Author, &a.Source,
		&published, &fetched, &processed, &topics, &keywords,
		&a.RelevanceScore, &a.LexiconVersion,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if t, ok := parseTime(published); ok {
		a.PublishedAt = &t
	}
	a.FetchedAt, _ = parseTime(fetched)
	a.ProcessedAt, _ = parseTime(processed)

	a.Topics = decodeList(topics)
	a.Keywords = decodeList(keywords)
	return &a, nil
}

func encodeLists(topics, keywords []string) (string, string, error) {
	if topics == nil {
		topics = []string{}
	}
	if keywords == nil {
		keywords = []string{}
	}
	t, err := json.Marshal(topics)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode topics: %w", err)
	}
	k, err := json.Marshal(keywords)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode keywords: %w", err)
	}
	return string(t), string(k), nil
}

// decodeList tolerates the comma separated lists written by older versions.
func decodeList(raw string) []string {
	out := []string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
		out = []string{}
	}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// formatTime renders a fixed-width UTC timestamp so that string comparison
// in SQL orders chronologically.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

var timeLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// unavailable tags persistence failures. Validation errors pass through.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrInvalidArticle) || errors.Is(err, models.ErrInvalidFilter) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %w", models.ErrUnavailable, op, err)
}
