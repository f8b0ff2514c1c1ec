package factcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"newsfacts/internal/core"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(t *testing.T) (*Cache, *MemoryRepository, *testClock) {
	t.Helper()
	repo := NewMemoryRepository()
	clock := &testClock{now: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	cache := New(repo, Options{
		Now:    clock.Now,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return cache, repo, clock
}

func mustPeriod(t *testing.T, from, to string) core.Period {
	t.Helper()
	p, err := core.ParsePeriod(from, to)
	if err != nil {
		t.Fatalf("ParsePeriod(%s, %s): %v", from, to, err)
	}
	return p
}

func fact(id string, importance core.Importance, text string) core.Fact {
	return core.Fact{ID: id, Fact: text, Category: core.CategoryEvent, Importance: importance}
}

func bundle(facts ...core.Fact) core.FactBundle {
	b := core.EmptyFactBundle()
	b.Facts = append(b.Facts, facts...)
	return b
}

func TestCache_GetMissing(t *testing.T) {
	cache, _, _ := newTestCache(t)

	entry, err := cache.Get(context.Background(), mustPeriod(t, "2026-01-01", "2026-01-07"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected no entry, got %+v", entry)
	}
}

func TestCache_PutGet(t *testing.T) {
	cache, _, clock := newTestCache(t)
	ctx := context.Background()
	period := mustPeriod(t, "2026-01-01", "2026-01-07")

	if _, err := cache.Put(ctx, period, bundle(fact("f1", core.ImportanceHigh, "Budget approved")), 12); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := cache.Get(ctx, period)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.ArticleCount != 12 {
		t.Errorf("expected 12 articles, got %d", entry.ArticleCount)
	}
	if !entry.GeneratedAt.Equal(clock.now) {
		t.Errorf("expected generated_at %s, got %s", clock.now, entry.GeneratedAt)
	}
	if len(entry.Bundle.Facts) != 1 || entry.Bundle.Facts[0].Fact != "Budget approved" {
		t.Errorf("unexpected facts: %+v", entry.Bundle.Facts)
	}
	if entry.Bundle.TimelineEvents == nil || entry.Bundle.KeyFigures == nil {
		t.Error("expected empty, non-nil slices after decode")
	}
}

func TestCache_PutOverwritesSameKey(t *testing.T) {
	cache, repo, clock := newTestCache(t)
	ctx := context.Background()
	period := mustPeriod(t, "2026-01-01", "2026-01-07")

	if _, err := cache.Put(ctx, period, bundle(fact("old", core.ImportanceHigh, "old")), 3); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := cache.Put(ctx, period, bundle(fact("new", core.ImportanceLow, "new")), 5); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	if repo.Len() != 1 {
		t.Fatalf("expected exactly one row for the key, got %d", repo.Len())
	}

	entry, err := cache.Get(ctx, period)
	if err != nil || entry == nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Bundle.Facts[0].ID != "new" || entry.ArticleCount != 5 {
		t.Errorf("expected second write to win, got %+v", entry)
	}
	if !entry.GeneratedAt.Equal(clock.now) {
		t.Errorf("expected second timestamp, got %s", entry.GeneratedAt)
	}
}

func TestCache_QueryOverlapping(t *testing.T) {
	cache, _, clock := newTestCache(t)
	ctx := context.Background()

	early := mustPeriod(t, "2026-01-01", "2026-01-07")
	late := mustPeriod(t, "2026-01-05", "2026-01-10")
	february := mustPeriod(t, "2026-02-01", "2026-02-07")

	earlyBundle := bundle(
		fact("f1", core.ImportanceHigh, "early high"),
		fact("shared", core.ImportanceMedium, "shared as written early"),
		fact("f2", core.ImportanceLow, "early low"),
	)
	earlyBundle.KeyFigures = []core.KeyFigure{{Name: "Jane Doe", Mentions: 2}, {Name: "jane doe", Mentions: 1}}
	earlyBundle.TimelineEvents = []core.TimelineEvent{{Date: "2026-01-06", Event: "Budget vote", FactIDs: []string{"f1"}}}
	if _, err := cache.Put(ctx, early, earlyBundle, 10); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Hour)
	lateBundle := bundle(
		fact("shared", core.ImportanceMedium, "shared as written late"),
		fact("f3", core.ImportanceHigh, "late high"),
	)
	lateBundle.KeyFigures = []core.KeyFigure{{Name: "Jane Doe", Mentions: 3}, {Name: "John Roe", Mentions: 4}}
	lateBundle.TimelineEvents = []core.TimelineEvent{{Date: "2026-01-06", Event: "Budget vote", FactIDs: []string{"f1"}}}
	if _, err := cache.Put(ctx, late, lateBundle, 5); err != nil {
		t.Fatal(err)
	}
	lateGenerated := clock.now

	clock.Advance(time.Hour)
	if _, err := cache.Put(ctx, february, bundle(fact("f4", core.ImportanceHigh, "february")), 7); err != nil {
		t.Fatal(err)
	}

	merged, err := cache.QueryOverlapping(ctx, mustPeriod(t, "2026-01-06", "2026-01-06"))
	if err != nil {
		t.Fatalf("QueryOverlapping failed: %v", err)
	}
	if merged == nil {
		t.Fatal("expected merged result")
	}

	var ids []string
	for _, f := range merged.Bundle.Facts {
		ids = append(ids, f.ID)
	}
	want := []string{"f3", "f1", "shared", "f2"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("expected facts %v, got %v", want, ids)
	}
	for _, f := range merged.Bundle.Facts {
		if f.ID == "shared" && f.Fact != "shared as written late" {
			t.Errorf("expected newest entry's copy of a shared fact, got %q", f.Fact)
		}
		if f.ID == "f4" {
			t.Error("february entry must not be merged")
		}
	}

	if merged.ArticleCount != 15 {
		t.Errorf("expected summed article count 15, got %d", merged.ArticleCount)
	}
	if !merged.GeneratedAt.Equal(lateGenerated) {
		t.Errorf("expected newest generated_at %s, got %s", lateGenerated, merged.GeneratedAt)
	}
	if len(merged.Periods) != 2 {
		t.Errorf("expected 2 merged periods, got %d", len(merged.Periods))
	}

	// Known asymmetry: identical timeline events from both entries are kept twice.
	if len(merged.Bundle.TimelineEvents) != 2 {
		t.Errorf("expected timeline events to be concatenated without dedup, got %d", len(merged.Bundle.TimelineEvents))
	}

	figures := merged.Bundle.KeyFigures
	if len(figures) != 3 {
		t.Fatalf("expected 3 key figures (names match exactly), got %+v", figures)
	}
	if figures[0].Name != "Jane Doe" || figures[0].Mentions != 5 {
		t.Errorf("expected Jane Doe with 5 mentions first, got %+v", figures[0])
	}
	if figures[1].Name != "John Roe" || figures[2].Name != "jane doe" {
		t.Errorf("unexpected key figure order: %+v", figures)
	}
}

func TestCache_QueryOverlappingNone(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	if _, err := cache.Put(ctx, mustPeriod(t, "2026-02-01", "2026-02-07"), bundle(), 0); err != nil {
		t.Fatal(err)
	}

	merged, err := cache.QueryOverlapping(ctx, mustPeriod(t, "2026-01-01", "2026-01-31"))
	if err != nil {
		t.Fatalf("QueryOverlapping failed: %v", err)
	}
	if merged != nil {
		t.Errorf("expected nil, got %+v", merged)
	}
}

func TestCache_SkipsCorruptAndLegacyRows(t *testing.T) {
	cache, repo, clock := newTestCache(t)
	ctx := context.Background()
	period := mustPeriod(t, "2026-01-01", "2026-01-07")

	_ = repo.Replace(ctx, core.FactsCacheRecord{ID: "1", PeriodKey: period.Key(), Payload: []byte("{not json"), GeneratedAt: clock.now})
	_ = repo.Replace(ctx, core.FactsCacheRecord{ID: "2", PeriodKey: "24", Payload: []byte(`{"facts":[]}`), GeneratedAt: clock.now})

	entry, err := cache.Get(ctx, period)
	if err != nil {
		t.Fatalf("corrupt entry must not surface as an error: %v", err)
	}
	if entry != nil {
		t.Error("corrupt entry must be treated as absent")
	}
	has, err := cache.Has(ctx, period)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Has must report a corrupt entry as absent")
	}

	good := mustPeriod(t, "2026-01-03", "2026-01-04")
	if _, err := cache.Put(ctx, good, bundle(fact("ok", core.ImportanceHigh, "ok")), 1); err != nil {
		t.Fatal(err)
	}

	merged, err := cache.QueryOverlapping(ctx, mustPeriod(t, "2026-01-01", "2026-01-31"))
	if err != nil {
		t.Fatalf("QueryOverlapping failed: %v", err)
	}
	if merged == nil || len(merged.Periods) != 1 || merged.Periods[0] != good {
		t.Fatalf("expected only the valid entry to be merged, got %+v", merged)
	}

	periods, err := cache.Periods(ctx)
	if err != nil {
		t.Fatalf("Periods failed: %v", err)
	}
	if len(periods) != 1 || periods[0].PeriodKey != good.Key() {
		t.Errorf("expected only valid periods listed, got %+v", periods)
	}
}

func TestCache_PeriodsNewestFirst(t *testing.T) {
	cache, _, clock := newTestCache(t)
	ctx := context.Background()

	keys := []core.Period{
		mustPeriod(t, "2026-01-05", "2026-01-11"),
		mustPeriod(t, "2025-12-29", "2026-01-04"),
		mustPeriod(t, "2026-01-12", "2026-01-13"),
	}
	for i, p := range keys {
		clock.Advance(time.Minute)
		facts := make([]core.Fact, i+1)
		for j := range facts {
			facts[j] = fact(fmt.Sprintf("%d-%d", i, j), core.ImportanceMedium, "x")
		}
		if _, err := cache.Put(ctx, p, bundle(facts...), i*10); err != nil {
			t.Fatal(err)
		}
	}

	periods, err := cache.Periods(ctx)
	if err != nil {
		t.Fatalf("Periods failed: %v", err)
	}
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(periods))
	}
	if periods[0].PeriodKey != "2026-01-12_2026-01-13" || periods[0].FactCount != 3 || periods[0].ArticleCount != 20 {
		t.Errorf("unexpected newest period: %+v", periods[0])
	}
	if periods[2].DateFrom != "2026-01-05" || periods[2].DateTo != "2026-01-11" {
		t.Errorf("unexpected oldest period: %+v", periods[2])
	}
}

func TestMerge_Caps(t *testing.T) {
	var entries []Entry
	for i := 0; i < 3; i++ {
		b := core.EmptyFactBundle()
		for j := 0; j < 10; j++ {
			importance := core.ImportanceLow
			if i == 2 {
				importance = core.ImportanceHigh
			}
			b.Facts = append(b.Facts, fact(fmt.Sprintf("e%d-f%d", i, j), importance, "x"))
			b.TimelineEvents = append(b.TimelineEvents, core.TimelineEvent{Event: fmt.Sprintf("e%d-t%d", i, j)})
			b.KeyFigures = append(b.KeyFigures, core.KeyFigure{Name: fmt.Sprintf("p%d-%d", i, j), Mentions: i*10 + j})
		}
		entries = append(entries, Entry{Bundle: b, ArticleCount: 1})
	}

	merged := Merge(entries)
	if len(merged.Bundle.Facts) != MaxMergedFacts {
		t.Errorf("expected %d facts, got %d", MaxMergedFacts, len(merged.Bundle.Facts))
	}
	if merged.Bundle.Facts[0].ID != "e2-f0" {
		t.Errorf("expected high-importance facts from the last entry first, got %s", merged.Bundle.Facts[0].ID)
	}
	if len(merged.Bundle.TimelineEvents) != MaxMergedTimelineEvents {
		t.Errorf("expected %d timeline events, got %d", MaxMergedTimelineEvents, len(merged.Bundle.TimelineEvents))
	}
	if merged.Bundle.TimelineEvents[14].Event != "e1-t4" {
		t.Errorf("expected timeline events in entry order, got %s", merged.Bundle.TimelineEvents[14].Event)
	}
	if len(merged.Bundle.KeyFigures) != MaxMergedKeyFigures {
		t.Errorf("expected %d key figures, got %d", MaxMergedKeyFigures, len(merged.Bundle.KeyFigures))
	}
	if merged.Bundle.KeyFigures[0].Mentions != 29 {
		t.Errorf("expected most-mentioned figure first, got %+v", merged.Bundle.KeyFigures[0])
	}
	if merged.ArticleCount != 3 {
		t.Errorf("expected 3 articles, got %d", merged.ArticleCount)
	}
}
