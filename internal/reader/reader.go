package reader

import (
	"context"
	"log/slog"
	"math"
	"time"

	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
	"newsfacts/internal/logger"
)

// DefaultStaleAfter is the age beyond which a cached bundle is flagged stale.
const DefaultStaleAfter = 4 * time.Hour

// Read outcomes reported to the tracker.
const (
	OutcomeExact  = "exact"
	OutcomeMerged = "merged"
	OutcomeMiss   = "miss"
)

// Tracker receives one event per read. *observability.PostHogClient implements it.
type Tracker interface {
	TrackCacheRead(ctx context.Context, periodKey string, outcome string, stale bool) error
}

// Options configures a Reader.
type Options struct {
	StaleAfter time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
	Tracker    Tracker
}

// Reader serves bundles strictly from the facts cache. It has no access to the extractor.
type Reader struct {
	cache      *factcache.Cache
	staleAfter time.Duration
	now        func() time.Time
	log        *slog.Logger
	tracker    Tracker
}

// New creates a Reader over cache.
func New(cache *factcache.Cache, opts Options) *Reader {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	return &Reader{
		cache:      cache,
		staleAfter: opts.StaleAfter,
		now:        opts.Now,
		log:        opts.Logger,
		tracker:    opts.Tracker,
	}
}

// Read returns the cached bundle for period (nil means [yesterday, today]): the exact entry if
// present, otherwise the merge of every overlapping entry. It returns nil when nothing is cached.
func (r *Reader) Read(ctx context.Context, period *core.Period) (*core.Bundle, error) {
	p := core.DefaultPeriod(r.now())
	if period != nil {
		p = *period
	}

	entry, err := r.cache.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		b := r.annotate(entry.Bundle, p, entry.ArticleCount, entry.GeneratedAt)
		b.Periods = []string{entry.Period.Key()}
		r.track(ctx, p, OutcomeExact, b.IsStale)
		return b, nil
	}

	merged, err := r.cache.QueryOverlapping(ctx, p)
	if err != nil {
		return nil, err
	}
	if merged != nil {
		b := r.annotate(merged.Bundle, p, merged.ArticleCount, merged.GeneratedAt)
		b.CombinedFromPeriods = true
		for _, mp := range merged.Periods {
			b.Periods = append(b.Periods, mp.Key())
		}
		r.track(ctx, p, OutcomeMerged, b.IsStale)
		return b, nil
	}

	r.log.Debug("No cached facts for period", "period", p.Key())
	r.track(ctx, p, OutcomeMiss, false)
	return nil, nil
}

// Periods lists the cached periods, newest first.
func (r *Reader) Periods(ctx context.Context) ([]core.PeriodSummary, error) {
	return r.cache.Periods(ctx)
}

func (r *Reader) annotate(fb core.FactBundle, p core.Period, articleCount int, generatedAt time.Time) *core.Bundle {
	fb.Normalize()
	age := r.now().Sub(generatedAt)
	generated := generatedAt

	return &core.Bundle{
		FactBundle:    fb,
		ArticleCount:  articleCount,
		DateFrom:      p.FromString(),
		DateTo:        p.ToString(),
		GeneratedAt:   &generated,
		Cached:        true,
		IsStale:       age > r.staleAfter,
		CacheAgeHours: math.Round(age.Hours()*10) / 10,
	}
}

func (r *Reader) track(ctx context.Context, p core.Period, outcome string, stale bool) {
	if r.tracker == nil {
		return
	}
	if err := r.tracker.TrackCacheRead(ctx, p.Key(), outcome, stale); err != nil {
		r.log.Debug("Failed to track cache read", "error", err)
	}
}
