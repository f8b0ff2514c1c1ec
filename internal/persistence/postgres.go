package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // Postgres driver

	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
)

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db         *sql.DB
	articles   ArticleRepository
	factsCache factcache.Repository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{
		db:         db,
		articles:   &postgresArticleRepo{db: db},
		factsCache: &postgresFactsCacheRepo{db: db},
	}, nil
}

func (p *PostgresDB) Articles() ArticleRepository      { return p.articles }
func (p *PostgresDB) FactsCache() factcache.Repository { return p.factsCache }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// postgresArticleRepo implements ArticleRepository for PostgreSQL
type postgresArticleRepo struct {
	db *sql.DB
}

func (r *postgresArticleRepo) Create(ctx context.Context, article *core.Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}

	query := `
		INSERT INTO articles (id, title, description, content, url, source_name, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			source_name = EXCLUDED.source_name,
			published_at = EXCLUDED.published_at
		RETURNING id
	`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, query,
		article.ID, article.Title, nullString(article.Description), nullString(article.Content),
		article.URL, article.SourceName, article.PublishedAt, time.Now().UTC(),
	).Scan(&article.ID)
	if err != nil {
		return fmt.Errorf("failed to insert/update article: %w", err)
	}

	if article.PoliticalBias != "" || article.Tone != "" {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO article_analysis (article_id, political_bias, tone, analyzed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (article_id) DO UPDATE SET
			political_bias = EXCLUDED.political_bias,
			tone = EXCLUDED.tone,
			analyzed_at = EXCLUDED.analyzed_at
	`, article.ID, nullString(article.PoliticalBias), nullString(article.Tone), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert article analysis: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit article: %w", err)
	}
	return nil
}

const articleColumns = `
	a.id, a.title, a.description, a.content, a.url, a.source_name, a.published_at,
	aa.political_bias, aa.tone
`

func (r *postgresArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	query := `SELECT ` + articleColumns + `
		FROM articles a
		LEFT JOIN article_analysis aa ON aa.article_id = a.id
		WHERE a.id = $1
	`
	article, err := scanArticle(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

func (r *postgresArticleRepo) PublishedBetween(ctx context.Context, start, end time.Time) ([]core.Article, error) {
	query := `SELECT ` + articleColumns + `
		FROM articles a
		LEFT JOIN article_analysis aa ON aa.article_id = a.id
		WHERE a.published_at >= $1 AND a.published_at < $2
		ORDER BY a.published_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
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

func (r *postgresArticleRepo) PublishedSpan(ctx context.Context) (time.Time, time.Time, bool, error) {
	var oldest, newest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(published_at), MAX(published_at) FROM articles WHERE published_at IS NOT NULL`,
	).Scan(&oldest, &newest)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to query article span: %w", err)
	}
	if !oldest.Valid || !newest.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return oldest.Time, newest.Time, true, nil
}

func (r *postgresArticleRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var (
		a                    core.Article
		description, content sql.NullString
		publishedAt          sql.NullTime
		politicalBias, tone  sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Title, &description, &content, &a.URL, &a.SourceName,
		&publishedAt, &politicalBias, &tone); err != nil {
		return nil, err
	}
	a.Description = description.String
	a.Content = content.String
	a.PoliticalBias = politicalBias.String
	a.Tone = tone.String
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		a.PublishedAt = &t
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// postgresFactsCacheRepo implements factcache.Repository for PostgreSQL
type postgresFactsCacheRepo struct {
	db *sql.DB
}

func (r *postgresFactsCacheRepo) Latest(ctx context.Context, periodKey string) (*core.FactsCacheRecord, error) {
	query := `
		SELECT id, period_key, facts_json, article_count, generated_at
		FROM facts_cache
		WHERE period_key = $1
		ORDER BY generated_at DESC
		LIMIT 1
	`
	var rec core.FactsCacheRecord
	var payload string
	err := r.db.QueryRowContext(ctx, query, periodKey).
		Scan(&rec.ID, &rec.PeriodKey, &payload, &rec.ArticleCount, &rec.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facts cache entry: %w", err)
	}
	rec.Payload = []byte(payload)
	rec.GeneratedAt = rec.GeneratedAt.UTC()
	return &rec, nil
}

// Replace deletes every row for the period key and inserts rec in one transaction.
func (r *postgresFactsCacheRepo) Replace(ctx context.Context, rec core.FactsCacheRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts_cache WHERE period_key = $1`, rec.PeriodKey); err != nil {
		return fmt.Errorf("failed to delete facts cache entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO facts_cache (id, period_key, facts_json, article_count, generated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.PeriodKey, string(rec.Payload), rec.ArticleCount, rec.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to insert facts cache entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit facts cache entry: %w", err)
	}
	return nil
}

func (r *postgresFactsCacheRepo) All(ctx context.Context) ([]core.FactsCacheRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, period_key, facts_json, article_count, generated_at
		FROM facts_cache
		ORDER BY generated_at DESC, period_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts cache: %w", err)
	}
	defer rows.Close()

	var recs []core.FactsCacheRecord
	for rows.Next() {
		var rec core.FactsCacheRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.PeriodKey, &payload, &rec.ArticleCount, &rec.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan facts cache entry: %w", err)
		}
		rec.Payload = []byte(payload)
		rec.GeneratedAt = rec.GeneratedAt.UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
