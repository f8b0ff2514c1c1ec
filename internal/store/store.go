// Package store is the local SQLite backend: the article source and the facts cache in one file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
	"newsfacts/internal/persistence"
)

// DefaultFileName is the database file created inside a data directory
const DefaultFileName = "newsfacts.db"

// timestamps are stored as fixed-width UTC text so ORDER BY on the column is chronological
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store represents the SQLite-backed database
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates the data directory if needed and opens dataDir/newsfacts.db
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, DefaultFileName))
}

// Open opens (or creates) the SQLite database at path and ensures the schema exists
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		content TEXT,
		url TEXT NOT NULL UNIQUE,
		source_name TEXT NOT NULL DEFAULT '',
		published_at TEXT,
		political_bias TEXT,
		tone TEXT,
		created_at TEXT NOT NULL
	);`

	factsCacheTable := `
	CREATE TABLE IF NOT EXISTS facts_cache (
		id TEXT PRIMARY KEY,
		period_key TEXT NOT NULL,
		facts_json TEXT NOT NULL,
		article_count INTEGER NOT NULL DEFAULT 0,
		generated_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`

	statements := []string{
		articlesTable,
		`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at);`,
		factsCacheTable,
		`CREATE INDEX IF NOT EXISTS idx_facts_cache_period_key ON facts_cache (period_key);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

var _ persistence.Database = (*Store)(nil)

// Path returns the database file path
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Articles() persistence.ArticleRepository { return &articleRepo{db: s.db} }
func (s *Store) FactsCache() factcache.Repository        { return &factsCacheRepo{db: s.db} }

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

type articleRepo struct {
	db *sql.DB
}

func (r *articleRepo) Create(ctx context.Context, article *core.Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}

	var published sql.NullString
	if article.PublishedAt != nil {
		published = sql.NullString{String: formatTime(*article.PublishedAt), Valid: true}
	}

	query := `
	INSERT INTO articles (id, title, description, content, url, source_name, published_at, political_bias, tone, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (url) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		content = excluded.content,
		source_name = excluded.source_name,
		published_at = excluded.published_at,
		political_bias = excluded.political_bias,
		tone = excluded.tone
	RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		article.ID, article.Title, article.Description, article.Content, article.URL,
		article.SourceName, published, article.PoliticalBias, article.Tone, formatTime(time.Now()),
	).Scan(&article.ID)
	if err != nil {
		return fmt.Errorf("failed to insert/update article: %w", err)
	}
	return nil
}

const articleColumns = `id, title, description, content, url, source_name, published_at, political_bias, tone`

func (r *articleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

func (r *articleRepo) PublishedBetween(ctx context.Context, start, end time.Time) ([]core.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+articleColumns+`
	FROM articles
	WHERE published_at >= ? AND published_at < ?
	ORDER BY published_at DESC, id`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := []core.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

func (r *articleRepo) PublishedSpan(ctx context.Context) (time.Time, time.Time, bool, error) {
	var oldest, newest sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(published_at), MAX(published_at) FROM articles WHERE published_at IS NOT NULL`,
	).Scan(&oldest, &newest)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to query article span: %w", err)
	}
	if !oldest.Valid || !newest.Valid {
		return time.Time{}, time.Time{}, false, nil
	}

	o, err := parseTime(oldest.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to parse published_at: %w", err)
	}
	n, err := parseTime(newest.String)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to parse published_at: %w", err)
	}
	return o, n, true, nil
}

func (r *articleRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row scanner) (*core.Article, error) {
	var (
		a                               core.Article
		description, content, published sql.NullString
		politicalBias, tone             sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Title, &description, &content, &a.URL, &a.SourceName,
		&published, &politicalBias, &tone); err != nil {
		return nil, err
	}
	a.Description = description.String
	a.Content = content.String
	a.PoliticalBias = politicalBias.String
	a.Tone = tone.String
	if published.Valid && strings.TrimSpace(published.String) != "" {
		t, err := parseTime(published.String)
		if err != nil {
			return nil, fmt.Errorf("invalid published_at %q: %w", published.String, err)
		}
		a.PublishedAt = &t
	}
	return &a, nil
}

type factsCacheRepo struct {
	db *sql.DB
}

func (r *factsCacheRepo) Latest(ctx context.Context, periodKey string) (*core.FactsCacheRecord, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, period_key, facts_json, article_count, generated_at
	FROM facts_cache
	WHERE period_key = ?
	ORDER BY generated_at DESC
	LIMIT 1`, periodKey)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facts cache entry: %w", err)
	}
	return rec, nil
}

// Replace deletes every row for the period key and inserts rec in one transaction
func (r *factsCacheRepo) Replace(ctx context.Context, rec core.FactsCacheRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts_cache WHERE period_key = ?`, rec.PeriodKey); err != nil {
		return fmt.Errorf("failed to delete facts cache entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO facts_cache (id, period_key, facts_json, article_count, generated_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PeriodKey, string(rec.Payload), rec.ArticleCount, formatTime(rec.GeneratedAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to insert facts cache entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit facts cache entry: %w", err)
	}
	return nil
}

func (r *factsCacheRepo) All(ctx context.Context) ([]core.FactsCacheRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, period_key, facts_json, article_count, generated_at
	FROM facts_cache
	ORDER BY generated_at DESC, period_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts cache: %w", err)
	}
	defer rows.Close()

	var recs []core.FactsCacheRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facts cache entry: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func scanRecord(row scanner) (*core.FactsCacheRecord, error) {
	var rec core.FactsCacheRecord
	var payload, generatedAt string
	if err := row.Scan(&rec.ID, &rec.PeriodKey, &payload, &rec.ArticleCount, &generatedAt); err != nil {
		return nil, err
	}
	t, err := parseTime(generatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid generated_at %q: %w", generatedAt, err)
	}
	rec.Payload = []byte(payload)
	rec.GeneratedAt = t
	return &rec, nil
}
