package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsfacts/internal/config"
	"newsfacts/internal/core"
	"newsfacts/internal/factcache"
	"newsfacts/internal/reader"
	"newsfacts/internal/refresh"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeRefresher struct {
	refreshed []string
	err       error
	backfill  refresh.BackfillOptions
}

func (f *fakeRefresher) RefreshRange(ctx context.Context, p core.Period) (*refresh.Result, error) {
	f.refreshed = append(f.refreshed, p.Key())
	if f.err != nil {
		return nil, f.err
	}
	b := core.EmptyFactBundle()
	b.Facts = append(b.Facts, core.Fact{ID: "fresh", Fact: "fresh fact", Importance: core.ImportanceHigh})
	return &refresh.Result{Period: p, Facts: b, ArticleCount: 12, GeneratedAt: fixedNow, Model: "test-model"}, nil
}

func (f *fakeRefresher) Backfill(ctx context.Context, opts refresh.BackfillOptions) (*refresh.BackfillResult, error) {
	f.backfill = opts
	return &refresh.BackfillResult{TotalPeriods: 3, Processed: 2, AlreadyCached: 1}, nil
}

type testServer struct {
	srv       *Server
	cache     *factcache.Cache
	refresher *fakeRefresher
}

func newTestServer(t *testing.T, cfg config.Server) *testServer {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	cache := factcache.New(factcache.NewMemoryRepository(), factcache.Options{Now: clock, Logger: discard})
	rd := reader.New(cache, reader.Options{Now: clock, Logger: discard})
	ref := &fakeRefresher{}
	srv := New(fakePinger{}, rd, ref, cfg, WithClock(clock), WithLogger(discard))
	return &testServer{srv: srv, cache: cache, refresher: ref}
}

func (ts *testServer) do(t *testing.T, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	down := New(fakePinger{err: errors.New("down")}, nil, nil, config.Server{}, WithLogger(discard))
	rec = httptest.NewRecorder()
	down.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestGetFacts_InvalidDate(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	for _, target := range []string{
		"/api/facts?date_from=2026-13-01",
		"/api/facts?date_to=yesterday",
		"/api/facts?date_from=2026-01-10&date_to=2026-01-01",
	} {
		rec := ts.do(t, http.MethodGet, target, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", target, rec.Code)
		}
		var body struct {
			Error string            `json:"error"`
			Facts []json.RawMessage `json:"facts"`
		}
		decode(t, rec, &body)
		if body.Error != invalidDateMessage {
			t.Errorf("%s: error = %q", target, body.Error)
		}
		if body.Facts == nil || len(body.Facts) != 0 {
			t.Errorf("%s: facts should be an empty array", target)
		}
	}
	if len(ts.refresher.refreshed) != 0 {
		t.Error("invalid dates must not trigger a refresh")
	}
}

func TestGetFacts_MissIsPending(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	rec := ts.do(t, http.MethodGet, "/api/facts", nil)
	var b core.Bundle
	decode(t, rec, &b)

	if b.Status != "pending" || b.Cached {
		t.Errorf("unexpected bundle: %+v", b)
	}
	if b.DateFrom != "2026-01-09" || b.DateTo != "2026-01-10" {
		t.Errorf("default window = %s..%s", b.DateFrom, b.DateTo)
	}
	if !strings.Contains(rec.Body.String(), `"facts":[]`) {
		t.Errorf("facts should encode as an empty array: %s", rec.Body.String())
	}
	if len(ts.refresher.refreshed) != 0 {
		t.Error("a cache miss must not trigger a refresh")
	}
}

func TestGetFacts_CacheHit(t *testing.T) {
	ts := newTestServer(t, config.Server{})
	p, _ := core.ParsePeriod("2026-01-05", "2026-01-11")
	b := core.EmptyFactBundle()
	b.Facts = append(b.Facts, core.Fact{ID: "cached", Fact: "cached fact"})
	if _, err := ts.cache.Put(context.Background(), p, b, 5); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/facts?date_from=2026-01-05&date_to=2026-01-11", nil)
	var got core.Bundle
	decode(t, rec, &got)

	if !got.Cached || got.ArticleCount != 5 || len(got.Facts) != 1 || got.Facts[0].ID != "cached" {
		t.Errorf("unexpected bundle: %+v", got)
	}
	if got.Status != "" {
		t.Errorf("status = %q, want empty on a hit", got.Status)
	}
}

func TestGetFacts_ForcedRefresh(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	rec := ts.do(t, http.MethodGet, "/api/facts?date_from=2026-01-05&date_to=2026-01-11&refresh=true", nil)
	var got core.Bundle
	decode(t, rec, &got)

	if len(ts.refresher.refreshed) != 1 || ts.refresher.refreshed[0] != "2026-01-05_2026-01-11" {
		t.Fatalf("refreshed = %v", ts.refresher.refreshed)
	}
	if got.Cached || got.Model != "test-model" || got.ArticleCount != 12 {
		t.Errorf("unexpected bundle: %+v", got)
	}

	ts.refresher.err = errors.New("model unavailable")
	rec = ts.do(t, http.MethodGet, "/api/facts?refresh=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got = core.Bundle{}
	decode(t, rec, &got)
	if got.Error == "" || len(got.Facts) != 0 {
		t.Errorf("expected an empty bundle with an error, got %+v", got)
	}
}

func TestRefreshFacts(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	rec := ts.do(t, http.MethodPost, "/api/facts/refresh?date_from=2026-01-01", nil)
	var resp RefreshResponse
	decode(t, rec, &resp)
	want := RefreshResponse{
		Status: "success", Message: "Facts cache refreshed",
		DateFrom: "2026-01-01", DateTo: "2026-01-10",
		FactsCount: 1, ArticleCount: 12,
	}
	if resp != want {
		t.Errorf("response = %+v, want %+v", resp, want)
	}

	ts.refresher.err = errors.New("quota exceeded")
	rec = ts.do(t, http.MethodPost, "/api/facts/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp = RefreshResponse{}
	decode(t, rec, &resp)
	if resp.Status != "error" || !strings.Contains(resp.Message, "quota exceeded") {
		t.Errorf("unexpected error response: %+v", resp)
	}

	rec = ts.do(t, http.MethodPost, "/api/facts/refresh?date_to=bad", nil)
	var bad map[string]string
	decode(t, rec, &bad)
	if bad["error"] != invalidDateMessage {
		t.Errorf("error = %q", bad["error"])
	}
}

func TestBackfill_Auth(t *testing.T) {
	disabled := newTestServer(t, config.Server{})
	if rec := disabled.do(t, http.MethodPost, "/api/facts/backfill", nil); rec.Code != http.StatusForbidden {
		t.Errorf("no key configured: status = %d, want 403", rec.Code)
	}

	ts := newTestServer(t, config.Server{AdminAPIKey: "secret"})
	if rec := ts.do(t, http.MethodPost, "/api/facts/backfill", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header: status = %d, want 401", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/facts/backfill", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/facts/backfill?force=true&max_batches=2", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var result refresh.BackfillResult
	decode(t, rec, &result)
	if result.Processed != 2 || result.AlreadyCached != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if !ts.refresher.backfill.Force || ts.refresher.backfill.MaxBatches != 2 {
		t.Errorf("options not forwarded: %+v", ts.refresher.backfill)
	}

	rec = ts.do(t, http.MethodPost, "/api/facts/backfill?max_batches=-1", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative max_batches: status = %d, want 400", rec.Code)
	}
}

func TestListPeriods(t *testing.T) {
	ts := newTestServer(t, config.Server{})

	rec := ts.do(t, http.MethodGet, "/api/facts/periods", nil)
	if !strings.Contains(rec.Body.String(), `"periods":[]`) {
		t.Errorf("empty listing should encode as []: %s", rec.Body.String())
	}

	p, _ := core.ParsePeriod("2026-01-05", "2026-01-11")
	if _, err := ts.cache.Put(context.Background(), p, core.EmptyFactBundle(), 3); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec = ts.do(t, http.MethodGet, "/api/facts/periods", nil)
	var resp PeriodsResponse
	decode(t, rec, &resp)
	if resp.Total != 1 || resp.Periods[0].PeriodKey != "2026-01-05_2026-01-11" || resp.Periods[0].ArticleCount != 3 {
		t.Errorf("unexpected periods: %+v", resp)
	}
}

func TestHandlerTimeout(t *testing.T) {
	cases := []struct {
		write time.Duration
		want  time.Duration
	}{
		{0, 120 * time.Second},
		{120 * time.Second, 115 * time.Second},
		{20 * time.Second, 18 * time.Second},
	}
	for _, c := range cases {
		got := handlerTimeout(c.write)
		if got != c.want {
			t.Errorf("handlerTimeout(%v) = %v, want %v", c.write, got, c.want)
		}
		if c.write > 0 && got >= c.write {
			t.Errorf("handlerTimeout(%v) = %v, must stay below the write timeout", c.write, got)
		}
	}
}
