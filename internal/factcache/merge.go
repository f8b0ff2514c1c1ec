package factcache

import (
	"sort"
	"time"

	"newsfacts/internal/core"
)

// Limits applied to a merged bundle.
const (
	MaxMergedFacts          = 20
	MaxMergedTimelineEvents = 15
	MaxMergedKeyFigures     = 10
)

// Merged is the combination of several cache entries.
type Merged struct {
	Bundle       core.FactBundle
	ArticleCount int
	GeneratedAt  time.Time
	Periods      []core.Period
}

// Merge combines entries in the order given.
//
// Facts are unioned by id (first occurrence wins), stably sorted by importance and capped.
// Timeline events are concatenated without deduplication. Key figures with the exact same name
// have their mentions summed. Article counts are summed even when periods overlap, so shared
// articles are counted more than once.
func Merge(entries []Entry) Merged {
	merged := Merged{Bundle: core.EmptyFactBundle()}

	seenFacts := make(map[string]bool)
	figureIndex := make(map[string]int)

	for _, e := range entries {
		merged.Periods = append(merged.Periods, e.Period)
		merged.ArticleCount += e.ArticleCount
		if e.GeneratedAt.After(merged.GeneratedAt) {
			merged.GeneratedAt = e.GeneratedAt
		}

		for _, f := range e.Bundle.Facts {
			if seenFacts[f.ID] {
				continue
			}
			seenFacts[f.ID] = true
			merged.Bundle.Facts = append(merged.Bundle.Facts, f)
		}

		merged.Bundle.TimelineEvents = append(merged.Bundle.TimelineEvents, e.Bundle.TimelineEvents...)

		for _, k := range e.Bundle.KeyFigures {
			if i, ok := figureIndex[k.Name]; ok {
				merged.Bundle.KeyFigures[i].Mentions += k.Mentions
				continue
			}
			figureIndex[k.Name] = len(merged.Bundle.KeyFigures)
			merged.Bundle.KeyFigures = append(merged.Bundle.KeyFigures, k)
		}
	}

	sort.SliceStable(merged.Bundle.Facts, func(i, j int) bool {
		return merged.Bundle.Facts[i].Importance.Rank() < merged.Bundle.Facts[j].Importance.Rank()
	})
	sort.SliceStable(merged.Bundle.KeyFigures, func(i, j int) bool {
		return merged.Bundle.KeyFigures[i].Mentions > merged.Bundle.KeyFigures[j].Mentions
	})

	if len(merged.Bundle.Facts) > MaxMergedFacts {
		merged.Bundle.Facts = merged.Bundle.Facts[:MaxMergedFacts]
	}
	if len(merged.Bundle.TimelineEvents) > MaxMergedTimelineEvents {
		merged.Bundle.TimelineEvents = merged.Bundle.TimelineEvents[:MaxMergedTimelineEvents]
	}
	if len(merged.Bundle.KeyFigures) > MaxMergedKeyFigures {
		merged.Bundle.KeyFigures = merged.Bundle.KeyFigures[:MaxMergedKeyFigures]
	}

	return merged
}
