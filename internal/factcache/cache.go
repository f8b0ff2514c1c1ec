package factcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"newsfacts/internal/core"
	"newsfacts/internal/logger"
)

// Repository persists cache rows. Implementations live in persistence (Postgres), store (SQLite)
// and this package (memory).
type Repository interface {
	// Latest returns the newest row for key, or nil when there is none.
	Latest(ctx context.Context, periodKey string) (*core.FactsCacheRecord, error)
	// Replace atomically deletes every row for rec.PeriodKey and inserts rec.
	Replace(ctx context.Context, rec core.FactsCacheRecord) error
	// All returns every row, newest first.
	All(ctx context.Context) ([]core.FactsCacheRecord, error)
}

// Entry is one decoded cache row.
type Entry struct {
	Period       core.Period
	Bundle       core.FactBundle
	ArticleCount int
	GeneratedAt  time.Time
}

// Options configures a Cache.
type Options struct {
	Now    func() time.Time
	Logger *slog.Logger
}

// Cache is the period-keyed fact store. It is the only component that encodes or decodes payloads.
type Cache struct {
	repo Repository
	now  func() time.Time
	log  *slog.Logger
}

// New creates a cache over repo.
func New(repo Repository, opts Options) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	return &Cache{repo: repo, now: opts.Now, log: opts.Logger}
}

// Get returns the entry stored under the exact period, or nil. A corrupt row is logged and
// reported as absent.
func (c *Cache) Get(ctx context.Context, period core.Period) (*Entry, error) {
	rec, err := c.repo.Latest(ctx, period.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry %s: %w", period.Key(), err)
	}
	if rec == nil {
		return nil, nil
	}

	entry, err := decode(*rec)
	if err != nil {
		c.log.Error("Skipping corrupt facts cache entry", "period", rec.PeriodKey, "id", rec.ID, "error", err)
		return nil, nil
	}
	return entry, nil
}

// Has reports whether a decodable entry exists for the exact period. A corrupt row counts as absent.
func (c *Cache) Has(ctx context.Context, period core.Period) (bool, error) {
	entry, err := c.Get(ctx, period)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Put replaces whatever is stored for period with bundle, stamped with the current time.
func (c *Cache) Put(ctx context.Context, period core.Period, bundle core.FactBundle, articleCount int) (*Entry, error) {
	bundle.Normalize()
	payload, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to encode facts bundle: %w", err)
	}

	rec := core.FactsCacheRecord{
		ID:           uuid.New().String(),
		PeriodKey:    period.Key(),
		Payload:      payload,
		ArticleCount: articleCount,
		GeneratedAt:  c.now().UTC(),
	}
	if err := c.repo.Replace(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store cache entry %s: %w", rec.PeriodKey, err)
	}

	c.log.Info("Facts cache updated", "period", rec.PeriodKey, "facts", len(bundle.Facts), "articles", articleCount)

	return &Entry{
		Period:       period,
		Bundle:       bundle,
		ArticleCount: articleCount,
		GeneratedAt:  rec.GeneratedAt,
	}, nil
}

// QueryOverlapping merges every entry whose period shares at least one day with period.
// It returns nil when nothing overlaps. Rows with malformed keys or corrupt payloads are skipped.
func (c *Cache) QueryOverlapping(ctx context.Context, period core.Period) (*Merged, error) {
	entries, err := c.entries(ctx)
	if err != nil {
		return nil, err
	}

	var overlapping []Entry
	for _, e := range entries {
		if e.Period.Overlaps(period) {
			overlapping = append(overlapping, e)
		}
	}
	if len(overlapping) == 0 {
		return nil, nil
	}

	merged := Merge(overlapping)
	c.log.Debug("Merged overlapping cache entries", "period", period.Key(), "entries", len(overlapping), "facts", len(merged.Bundle.Facts))
	return &merged, nil
}

// Periods lists every decodable entry, newest first.
func (c *Cache) Periods(ctx context.Context) ([]core.PeriodSummary, error) {
	entries, err := c.entries(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.PeriodSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, core.PeriodSummary{
			PeriodKey:    e.Period.Key(),
			DateFrom:     e.Period.FromString(),
			DateTo:       e.Period.ToString(),
			ArticleCount: e.ArticleCount,
			FactCount:    len(e.Bundle.Facts),
			GeneratedAt:  e.GeneratedAt,
		})
	}
	return summaries, nil
}

// entries decodes every row, newest first.
func (c *Cache) entries(ctx context.Context) ([]Entry, error) {
	recs, err := c.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		entry, err := decode(rec)
		if err != nil {
			c.log.Warn("Skipping facts cache entry", "period", rec.PeriodKey, "id", rec.ID, "error", err)
			continue
		}
		entries = append(entries, *entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].GeneratedAt.After(entries[j].GeneratedAt)
	})
	return entries, nil
}

func decode(rec core.FactsCacheRecord) (*Entry, error) {
	period, err := core.ParsePeriodKey(rec.PeriodKey)
	if err != nil {
		return nil, err
	}

	var bundle core.FactBundle
	if err := json.Unmarshal(rec.Payload, &bundle); err != nil {
		return nil, fmt.Errorf("corrupt facts payload: %w", err)
	}
	bundle.Normalize()

	return &Entry{
		Period:       period,
		Bundle:       bundle,
		ArticleCount: rec.ArticleCount,
		GeneratedAt:  rec.GeneratedAt,
	}, nil
}
