package refresh

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"newsfacts/internal/core"
)

// BackfillOptions controls one backfill pass.
type BackfillOptions struct {
	Force      bool // recompute periods that are already cached
	MaxBatches int  // maximum extractions attempted in this pass, 0 means no cap
}

// PeriodOutcome is the final state of one weekly period in a backfill pass.
type PeriodOutcome string

const (
	OutcomeCached     PeriodOutcome = "cached"
	OutcomeProcessed  PeriodOutcome = "processed"
	OutcomeFailed     PeriodOutcome = "failed"
	OutcomeSkippedCap PeriodOutcome = "skipped_cap"
)

// PeriodResult reports what happened to one weekly period.
type PeriodResult struct {
	Period       string        `json:"period"`
	Outcome      PeriodOutcome `json:"outcome"`
	FactCount    int           `json:"fact_count"`
	ArticleCount int           `json:"article_count"`
	Error        string        `json:"error,omitempty"`
}

// BackfillResult summarizes a backfill pass.
type BackfillResult struct {
	DateFrom      string         `json:"date_from,omitempty"`
	DateTo        string         `json:"date_to,omitempty"`
	TotalPeriods  int            `json:"total_periods"`
	AlreadyCached int            `json:"already_cached"`
	Processed     int            `json:"processed"`
	Failed        int            `json:"failed"`
	Remaining     int            `json:"remaining"`
	TotalFacts    int            `json:"total_facts"`
	Periods       []PeriodResult `json:"periods"`
}

// Backfill partitions the full article history into Monday-aligned weeks and computes every week
// that is not cached yet, newest week first. One period's failure is logged and counted and the
// pass continues. Failed periods stay eligible for the next pass.
func (r *Refresher) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{Periods: []PeriodResult{}}

	if r.span == nil {
		return result, goerr.New("no article span source configured")
	}

	oldest, newest, found, err := r.span.PublishedSpan(ctx)
	if err != nil {
		return result, goerr.Wrap(err, "failed to determine article span")
	}
	if !found {
		r.log.Info("Backfill skipped: no articles")
		return result, nil
	}

	span, err := core.NewPeriod(oldest, newest)
	if err != nil {
		return result, goerr.Wrap(err, "invalid article span", goerr.V("oldest", oldest), goerr.V("newest", newest))
	}
	result.DateFrom, result.DateTo = span.FromString(), span.ToString()

	weeks := span.Weeks()
	result.TotalPeriods = len(weeks)

	r.log.Info("Starting facts backfill",
		"span", span.Key(),
		"periods", len(weeks),
		"force", opts.Force,
		"max_batches", opts.MaxBatches)

	attempts := 0
	for i := len(weeks) - 1; i >= 0; i-- {
		week := weeks[i]
		key := week.Key()

		if err := ctx.Err(); err != nil {
			result.Remaining += i + 1
			r.finishBackfill(ctx, result, start)
			return result, goerr.Wrap(err, "backfill interrupted", goerr.V("period", key))
		}

		if !opts.Force {
			cached, err := r.cache.Has(ctx, week)
			if err != nil {
				r.log.Error("Backfill cache check failed", "period", key, "error", err)
				result.Failed++
				result.Periods = append(result.Periods, PeriodResult{Period: key, Outcome: OutcomeFailed, Error: err.Error()})
				continue
			}
			if cached {
				result.AlreadyCached++
				result.Periods = append(result.Periods, PeriodResult{Period: key, Outcome: OutcomeCached})
				continue
			}
		}

		if opts.MaxBatches > 0 && attempts >= opts.MaxBatches {
			result.Remaining++
			result.Periods = append(result.Periods, PeriodResult{Period: key, Outcome: OutcomeSkippedCap})
			continue
		}
		attempts++

		res, err := r.refresh(ctx, week, ModeBackfill)
		if err != nil {
			r.log.Warn("Backfill period failed", "period", key, "error", err)
			result.Failed++
			result.Periods = append(result.Periods, PeriodResult{Period: key, Outcome: OutcomeFailed, Error: err.Error()})
			continue
		}

		result.Processed++
		result.TotalFacts += len(res.Facts.Facts)
		result.Periods = append(result.Periods, PeriodResult{
			Period:       key,
			Outcome:      OutcomeProcessed,
			FactCount:    len(res.Facts.Facts),
			ArticleCount: res.ArticleCount,
		})
	}

	r.finishBackfill(ctx, result, start)
	return result, nil
}

func (r *Refresher) finishBackfill(ctx context.Context, result *BackfillResult, start time.Time) {
	r.log.Info("Facts backfill completed",
		"processed", result.Processed,
		"already_cached", result.AlreadyCached,
		"failed", result.Failed,
		"remaining", result.Remaining,
		"facts", result.TotalFacts,
		"duration", time.Since(start).Round(time.Millisecond).String())

	if r.tracker == nil {
		return
	}
	if err := r.tracker.TrackBackfill(ctx, result.Processed, result.AlreadyCached, result.Failed,
		result.Remaining, result.TotalFacts, time.Since(start).Milliseconds()); err != nil {
		r.log.Debug("Failed to track backfill", "error", err)
	}
}
