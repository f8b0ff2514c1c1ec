package handlers

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"

	"newsfacts/internal/config"
	"newsfacts/internal/persistence"
)

func TestPeriodFlags(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	p, err := periodFlags("", "", now)
	gt.NoError(t, err)
	gt.Equal(t, p.Key(), "2026-01-09_2026-01-10")

	p, err = periodFlags("2026-01-05", "2026-01-11", now)
	gt.NoError(t, err)
	gt.Equal(t, p.Key(), "2026-01-05_2026-01-11")

	_, err = periodFlags("2026-01-11", "2026-01-05", now)
	gt.Error(t, err)

	_, err = periodFlags("yesterday", "", now)
	gt.Error(t, err)
}

func TestWriteYAML_BlockStyle(t *testing.T) {
	var buf bytes.Buffer
	err := writeYAML(&buf, map[string]interface{}{
		"period_key": "2026-01-05_2026-01-11",
		"facts":      []string{"a", "b"},
	})
	gt.NoError(t, err)

	out := buf.String()
	gt.S(t, out).Contains("period_key: 2026-01-05_2026-01-11")
	gt.S(t, out).Contains("- a")
	gt.False(t, bytes.Contains(buf.Bytes(), []byte("[")))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	gt.NoError(t, writeJSON(&buf, map[string]int{"total": 2}))
	gt.Equal(t, buf.String(), "{\n  \"total\": 2\n}\n")
}

func TestDecodeArticles(t *testing.T) {
	data := []byte(`
- title: Budget passes
  url: https://example.com/budget
  source_name: Wire
  published_at: 2026-01-06T09:30:00Z
  political_bias: center
- title: Storm warning
  url: https://example.com/storm
  published_at: 2026-01-07
`)
	articles, err := decodeArticles(data)
	gt.NoError(t, err)
	gt.A(t, articles).Length(2)

	gt.Equal(t, articles[0].SourceName, "Wire")
	gt.Equal(t, articles[0].PoliticalBias, "center")
	gt.V(t, articles[0].PublishedAt).NotNil()
	gt.True(t, articles[0].PublishedAt.Equal(time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC)))
	gt.True(t, articles[1].PublishedAt.Equal(time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)))
}

func TestDecodeArticles_IDs(t *testing.T) {
	data := []byte(`
- id: 6F1C2A0E-8B1D-4C3B-9E2A-1D2C3B4A5F60
  url: https://example.com/a
- id: article-42
  url: https://example.com/b
`)
	articles, err := decodeArticles(data)
	gt.NoError(t, err)
	gt.A(t, articles).Length(2)
	gt.Equal(t, articles[0].ID, "6f1c2a0e-8b1d-4c3b-9e2a-1d2c3b4a5f60")
	gt.Equal(t, articles[1].ID, "")

	db := persistence.NewMemoryDB()
	gt.NoError(t, db.Articles().Create(context.Background(), articles[1]))
	_, err = uuid.Parse(articles[1].ID)
	gt.NoError(t, err)
}

func TestDecodeArticles_JSON(t *testing.T) {
	data := []byte(`[{"title":"Budget passes","url":"https://example.com/budget","tone":"neutral"}]`)
	articles, err := decodeArticles(data)
	gt.NoError(t, err)
	gt.A(t, articles).Length(1)
	gt.Equal(t, articles[0].Tone, "neutral")
	gt.V(t, articles[0].PublishedAt).Nil()
}

func TestDecodeArticles_Invalid(t *testing.T) {
	_, err := decodeArticles([]byte(`- title: no url`))
	gt.Error(t, err)

	_, err = decodeArticles([]byte(`- url: https://example.com/x
  published_at: last tuesday`))
	gt.Error(t, err)
}

func TestOpenDatabase(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "memory"
	db, err := openDatabase(cfg)
	gt.NoError(t, err)
	_, ok := db.(*persistence.MemoryDB)
	gt.True(t, ok)
	gt.NoError(t, db.Ping(context.Background()))

	cfg = &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.App.DataDir = t.TempDir()
	db, err = openDatabase(cfg)
	gt.NoError(t, err)
	gt.NoError(t, db.Close())

	cfg = &config.Config{}
	cfg.Database.Driver = "postgres"
	_, err = openDatabase(cfg)
	gt.Error(t, err)
}
