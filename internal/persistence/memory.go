package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
)

// MemoryDB implements Database in process memory. Nothing survives a restart.
type MemoryDB struct {
	articles   *memoryArticleRepo
	factsCache *factcache.MemoryRepository
}

// NewMemoryDB creates an empty in-memory database
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		articles:   &memoryArticleRepo{byID: make(map[string]core.Article), byURL: make(map[string]string)},
		factsCache: factcache.NewMemoryRepository(),
	}
}

func (m *MemoryDB) Articles() ArticleRepository      { return m.articles }
func (m *MemoryDB) FactsCache() factcache.Repository { return m.factsCache }
func (m *MemoryDB) Ping(ctx context.Context) error   { return nil }
func (m *MemoryDB) Close() error                     { return nil }

type memoryArticleRepo struct {
	mu    sync.RWMutex
	byID  map[string]core.Article
	byURL map[string]string
}

func (r *memoryArticleRepo) Create(ctx context.Context, article *core.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byURL[article.URL]; ok && article.URL != "" {
		article.ID = id
	}
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	r.byID[article.ID] = *article
	if article.URL != "" {
		r.byURL[article.URL] = article.ID
	}
	return nil
}

func (r *memoryArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memoryArticleRepo) PublishedBetween(ctx context.Context, start, end time.Time) ([]core.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	articles := []core.Article{}
	for _, a := range r.byID {
		if a.PublishedAt == nil || a.PublishedAt.Before(start) || !a.PublishedAt.Before(end) {
			continue
		}
		articles = append(articles, a)
	}
	sort.Slice(articles, func(i, j int) bool {
		if articles[i].PublishedAt.Equal(*articles[j].PublishedAt) {
			return articles[i].ID < articles[j].ID
		}
		return articles[i].PublishedAt.After(*articles[j].PublishedAt)
	})
	return articles, nil
}

func (r *memoryArticleRepo) PublishedSpan(ctx context.Context) (time.Time, time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest, newest time.Time
	found := false
	for _, a := range r.byID {
		if a.PublishedAt == nil {
			continue
		}
		if !found || a.PublishedAt.Before(oldest) {
			oldest = *a.PublishedAt
		}
		if !found || a.PublishedAt.After(newest) {
			newest = *a.PublishedAt
		}
		found = true
	}
	return oldest, newest, found, nil
}

func (r *memoryArticleRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}
