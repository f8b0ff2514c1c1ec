package observability

import (
	"context"
	"errors"
	"testing"

	"newsfacts/internal/config"
)

func TestNewPostHogClient_Disabled(t *testing.T) {
	client, err := NewPostHogClient(config.PostHog{Enabled: false})
	if err != nil {
		t.Fatalf("NewPostHogClient failed: %v", err)
	}
	if client.IsEnabled() {
		t.Error("expected disabled client")
	}

	ctx := context.Background()
	if err := client.TrackFactsRefresh(ctx, "2026-01-01_2026-01-07", "forced", 3, 10, 1200, errors.New("boom")); err != nil {
		t.Errorf("disabled client should be a no-op, got %v", err)
	}
	if err := client.TrackBackfill(ctx, 1, 2, 0, 0, 5, 300); err != nil {
		t.Errorf("disabled client should be a no-op, got %v", err)
	}
	if err := client.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNewPostHogClient_MissingKey(t *testing.T) {
	if _, err := NewPostHogClient(config.PostHog{Enabled: true}); err == nil {
		t.Error("expected error when enabled without API key")
	}
}

func TestPostHogClient_NilReceiver(t *testing.T) {
	var client *PostHogClient
	if client.IsEnabled() {
		t.Error("nil client must report disabled")
	}
	if err := client.TrackCacheRead(context.Background(), "2026-01-01_2026-01-02", "miss", false); err != nil {
		t.Errorf("nil client should be a no-op, got %v", err)
	}
}
