package persistence

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"

	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationFiles, "migrations", discard)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Description != "articles" {
		t.Errorf("unexpected first migration: %d %q", migrations[0].Version, migrations[0].Description)
	}
	if migrations[1].Version != 2 || migrations[1].Description != "facts cache" {
		t.Errorf("unexpected second migration: %d %q", migrations[1].Version, migrations[1].Description)
	}
}

func TestLoadMigrations_SkipsBadNamesAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_later.sql":     {Data: []byte("SELECT 10")},
		"m/002_add_index.sql": {Data: []byte("SELECT 2")},
		"m/nounderscore.sql":  {Data: []byte("SELECT 0")},
		"m/abc_bad.sql":       {Data: []byte("SELECT 0")},
		"m/README.md":         {Data: []byte("docs")},
	}

	migrations, err := loadMigrations(fsys, "m", discard)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 2 || migrations[1].Version != 10 {
		t.Errorf("migrations not sorted: %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Description != "add index" {
		t.Errorf("description = %q", migrations[0].Description)
	}
	if migrations[1].SQL != "SELECT 10" {
		t.Errorf("sql = %q", migrations[1].SQL)
	}
}

func TestPendingMigrationsAndStatus(t *testing.T) {
	available := []Migration{{Version: 1, Description: "a"}, {Version: 2, Description: "b"}, {Version: 3, Description: "c"}}

	pending := pendingMigrations(available, []int{1, 3})
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("unexpected pending migrations: %+v", pending)
	}

	status := migrationStatus(available, []int{1})
	if len(status) != 3 {
		t.Fatalf("expected 3 status rows, got %d", len(status))
	}
	if !status[0].Applied || status[1].Applied || status[2].Applied {
		t.Errorf("unexpected status: %+v", status)
	}
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestMemoryDB_Articles(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	repo := db.Articles()

	oldest, newest, found, err := repo.PublishedSpan(ctx)
	if err != nil || found {
		t.Fatalf("empty span: found=%v err=%v", found, err)
	}

	articles := []core.Article{
		{Title: "a", URL: "https://example.com/a", PublishedAt: at("2026-01-02T10:00:00Z")},
		{Title: "b", URL: "https://example.com/b", PublishedAt: at("2026-01-03T10:00:00Z")},
		{Title: "c", URL: "https://example.com/c", PublishedAt: at("2026-01-05T00:00:00Z")},
		{Title: "undated", URL: "https://example.com/d"},
	}
	for i := range articles {
		if err := repo.Create(ctx, &articles[i]); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if articles[i].ID == "" {
			t.Fatal("Create should assign an ID")
		}
	}

	// Same URL updates in place.
	again := core.Article{Title: "a2", URL: "https://example.com/a", PublishedAt: at("2026-01-02T10:00:00Z")}
	if err := repo.Create(ctx, &again); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if again.ID != articles[0].ID {
		t.Errorf("expected upsert to keep id %s, got %s", articles[0].ID, again.ID)
	}

	n, _ := repo.Count(ctx)
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}

	got, err := repo.Get(ctx, articles[0].ID)
	if err != nil || got == nil || got.Title != "a2" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if missing, _ := repo.Get(ctx, "nope"); missing != nil {
		t.Error("Get of unknown id should return nil")
	}

	p, _ := core.ParsePeriod("2026-01-02", "2026-01-04")
	between, err := repo.PublishedBetween(ctx, p.Start(), p.End())
	if err != nil {
		t.Fatalf("PublishedBetween failed: %v", err)
	}
	if len(between) != 2 || between[0].Title != "b" || between[1].Title != "a2" {
		t.Errorf("unexpected articles: %+v", between)
	}

	oldest, newest, found, err = repo.PublishedSpan(ctx)
	if err != nil || !found {
		t.Fatalf("span: found=%v err=%v", found, err)
	}
	if !oldest.Equal(*at("2026-01-02T10:00:00Z")) || !newest.Equal(*at("2026-01-05T00:00:00Z")) {
		t.Errorf("span = %v .. %v", oldest, newest)
	}
}

func TestMemoryDB_FactsCache(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	cache := factcache.New(db.FactsCache(), factcache.Options{Logger: discard})
	p, _ := core.ParsePeriod("2026-01-05", "2026-01-11")
	if _, err := cache.Put(ctx, p, core.EmptyFactBundle(), 3); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	entry, err := cache.Get(ctx, p)
	if err != nil || entry == nil || entry.ArticleCount != 3 {
		t.Fatalf("Get = %+v, %v", entry, err)
	}
}

// TestPostgres_Integration runs against a real database when TEST_DATABASE_URL is set.
func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := NewPostgresDB(dsn)
	if err != nil {
		t.Fatalf("NewPostgresDB failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := NewMigrationManager(db).Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	cache := factcache.New(db.FactsCache(), factcache.Options{Logger: discard})
	p, _ := core.ParsePeriod("1999-01-04", "1999-01-10")
	b := core.EmptyFactBundle()
	b.Facts = append(b.Facts, core.Fact{ID: "abc", Fact: "integration", Importance: core.ImportanceHigh})

	for i := 0; i < 2; i++ {
		if _, err := cache.Put(ctx, p, b, i+1); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entry, err := cache.Get(ctx, p)
	if err != nil || entry == nil {
		t.Fatalf("Get = %+v, %v", entry, err)
	}
	if entry.ArticleCount != 2 {
		t.Errorf("ArticleCount = %d, want 2", entry.ArticleCount)
	}
	if len(entry.Bundle.Facts) != 1 || entry.Bundle.Facts[0].Fact != "integration" {
		t.Errorf("unexpected bundle: %+v", entry.Bundle)
	}

	published := time.Date(1999, 1, 5, 10, 0, 0, 0, time.UTC)
	url := "https://example.com/integration/" + uuid.NewString()
	article := &core.Article{Title: "first", URL: url, SourceName: "Wire", PublishedAt: &published, PoliticalBias: "center"}
	if err := db.Articles().Create(ctx, article); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	firstID := article.ID

	again := &core.Article{Title: "second", URL: url, SourceName: "Wire", PublishedAt: &published, Tone: "neutral"}
	if err := db.Articles().Create(ctx, again); err != nil {
		t.Fatalf("Create (upsert) failed: %v", err)
	}
	if again.ID != firstID {
		t.Errorf("upsert by URL returned id %s, want %s", again.ID, firstID)
	}

	got, err := db.Articles().Get(ctx, firstID)
	if err != nil || got == nil {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if got.Title != "second" || got.Tone != "neutral" {
		t.Errorf("unexpected article after upsert: %+v", got)
	}
}
