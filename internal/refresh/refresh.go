package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
	"newsfacts/internal/facts"
	"newsfacts/internal/logger"
)

// Refresh modes reported to the tracker.
const (
	ModeScheduled = "scheduled"
	ModeForced    = "forced"
	ModeBackfill  = "backfill"
)

// Extractor produces a fact bundle for a request. *facts.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, req facts.Request) (facts.Result, error)
}

// ArticleSpan reports the oldest and newest publish timestamps of all stored articles.
// found is false when there are no dated articles.
type ArticleSpan interface {
	PublishedSpan(ctx context.Context) (oldest, newest time.Time, found bool, err error)
}

// Tracker receives analytics events. *observability.PostHogClient implements it.
type Tracker interface {
	TrackFactsRefresh(ctx context.Context, periodKey string, mode string, factCount int, articleCount int, durationMs int64, refreshErr error) error
	TrackBackfill(ctx context.Context, processed, cached, failed, remaining, factCount int, durationMs int64) error
}

// Options configures a Refresher.
type Options struct {
	MaxArticles int // per extraction, 0 means no cap
	Now         func() time.Time
	Logger      *slog.Logger
	Tracker     Tracker
}

// Refresher is the only writer of the facts cache.
type Refresher struct {
	extractor   Extractor
	cache       *factcache.Cache
	span        ArticleSpan
	maxArticles int
	now         func() time.Time
	log         *slog.Logger
	tracker     Tracker
}

// Result is the outcome of one successful refresh.
type Result struct {
	Period       core.Period
	Facts        core.FactBundle
	ArticleCount int
	GeneratedAt  time.Time
	Model        string
}

// Response renders the result as a fresh, uncached bundle.
func (r *Result) Response() core.Bundle {
	generated := r.GeneratedAt
	return core.Bundle{
		FactBundle:   r.Facts,
		ArticleCount: r.ArticleCount,
		DateFrom:     r.Period.FromString(),
		DateTo:       r.Period.ToString(),
		GeneratedAt:  &generated,
		Model:        r.Model,
	}
}

// New creates a Refresher.
func New(extractor Extractor, cache *factcache.Cache, span ArticleSpan, opts Options) *Refresher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	return &Refresher{
		extractor:   extractor,
		cache:       cache,
		span:        span,
		maxArticles: opts.MaxArticles,
		now:         opts.Now,
		log:         opts.Logger,
		tracker:     opts.Tracker,
	}
}

// RefreshDefault recomputes the rolling [yesterday, today] window unconditionally.
func (r *Refresher) RefreshDefault(ctx context.Context) (*Result, error) {
	return r.refresh(ctx, core.DefaultPeriod(r.now()), ModeScheduled)
}

// RefreshRange recomputes period, ignoring whatever is cached for it.
func (r *Refresher) RefreshRange(ctx context.Context, period core.Period) (*Result, error) {
	return r.refresh(ctx, period, ModeForced)
}

// refresh extracts facts for period and stores them. A failed extraction leaves the cache untouched.
func (r *Refresher) refresh(ctx context.Context, period core.Period, mode string) (*Result, error) {
	start := time.Now()
	key := period.Key()

	r.log.Info("Refreshing facts", "period", key, "mode", mode)

	res, err := r.extractor.Extract(ctx, facts.Request{Period: &period, MaxArticles: r.maxArticles})
	if err != nil {
		r.log.Error("Facts refresh failed", "period", key, "mode", mode, "articles", res.ArticleCount, "error", err)
		r.trackRefresh(ctx, key, mode, 0, res.ArticleCount, start, err)
		return nil, goerr.Wrap(err, "facts refresh failed", goerr.V("period", key), goerr.V("mode", mode))
	}

	entry, err := r.cache.Put(ctx, period, res.Bundle, res.ArticleCount)
	if err != nil {
		r.trackRefresh(ctx, key, mode, 0, res.ArticleCount, start, err)
		return nil, goerr.Wrap(err, "failed to store facts", goerr.V("period", key))
	}

	r.trackRefresh(ctx, key, mode, len(entry.Bundle.Facts), entry.ArticleCount, start, nil)
	r.log.Info("Facts refreshed",
		"period", key,
		"mode", mode,
		"facts", len(entry.Bundle.Facts),
		"articles", entry.ArticleCount,
		"duration", time.Since(start).Round(time.Millisecond).String())

	return &Result{
		Period:       period,
		Facts:        entry.Bundle,
		ArticleCount: entry.ArticleCount,
		GeneratedAt:  entry.GeneratedAt,
		Model:        res.Model,
	}, nil
}

func (r *Refresher) trackRefresh(ctx context.Context, key, mode string, factCount, articleCount int, start time.Time, refreshErr error) {
	if r.tracker == nil {
		return
	}
	if err := r.tracker.TrackFactsRefresh(ctx, key, mode, factCount, articleCount, time.Since(start).Milliseconds(), refreshErr); err != nil {
		r.log.Debug("Failed to track facts refresh", "error", err)
	}
}
