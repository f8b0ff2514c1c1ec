// Package persistence provides the article store and facts cache backed by PostgreSQL
package persistence

import (
	"context"
	"time"

	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
)

// ArticleRepository handles article persistence operations
type ArticleRepository interface {
	// Create inserts an article, or updates it when the URL already exists.
	// An empty ID is filled in.
	Create(ctx context.Context, article *core.Article) error

	// Get retrieves an article by ID. It returns nil when no row matches.
	Get(ctx context.Context, id string) (*core.Article, error)

	// PublishedBetween returns articles with start <= published_at < end, newest first,
	// joined with their prior classification when one exists.
	PublishedBetween(ctx context.Context, start, end time.Time) ([]core.Article, error)

	// PublishedSpan returns the oldest and newest publish times. found is false when
	// no article carries a publish time.
	PublishedSpan(ctx context.Context) (oldest, newest time.Time, found bool, err error)

	// Count returns the number of stored articles
	Count(ctx context.Context) (int, error)
}

// Database provides access to all repositories
type Database interface {
	Articles() ArticleRepository
	FactsCache() factcache.Repository

	Ping(ctx context.Context) error
	Close() error
}
