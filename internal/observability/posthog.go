package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/posthog/posthog-go"

	"newsfacts/internal/config"
)

const systemDistinctID = "system"

// PostHogClient wraps the PostHog SDK for product analytics
type PostHogClient struct {
	client  posthog.Client
	enabled bool
	log     *slog.Logger
}

// EventProperties contains properties for an event
type EventProperties map[string]interface{}

// NewPostHogClient creates a new PostHog analytics client. A disabled config yields a no-op client.
func NewPostHogClient(cfg config.PostHog) (*PostHogClient, error) {
	if !cfg.Enabled {
		return &PostHogClient{
			enabled: false,
			log:     slog.Default(),
		}, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &PostHogClient{
		client:  client,
		enabled: true,
		log:     slog.Default(),
	}, nil
}

// IsEnabled returns whether PostHog tracking is enabled
func (p *PostHogClient) IsEnabled() bool {
	return p != nil && p.enabled
}

// Capture sends an event to PostHog
func (p *PostHogClient) Capture(ctx context.Context, distinctID string, event string, properties EventProperties) error {
	if !p.IsEnabled() {
		return nil
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}

	return p.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: props,
	})
}

// TrackFactsRefresh records one extraction-and-store run. mode is "scheduled", "forced" or "backfill".
func (p *PostHogClient) TrackFactsRefresh(ctx context.Context, periodKey string, mode string, factCount int, articleCount int, durationMs int64, refreshErr error) error {
	props := EventProperties{
		"period":        periodKey,
		"mode":          mode,
		"fact_count":    factCount,
		"article_count": articleCount,
		"duration_ms":   durationMs,
		"successful":    refreshErr == nil,
	}
	if refreshErr != nil {
		props["error_message"] = refreshErr.Error()
	}
	return p.Capture(ctx, systemDistinctID, "facts_refreshed", props)
}

// TrackBackfill records the outcome of a backfill pass
func (p *PostHogClient) TrackBackfill(ctx context.Context, processed, cached, failed, remaining, factCount int, durationMs int64) error {
	return p.Capture(ctx, systemDistinctID, "facts_backfill_completed", EventProperties{
		"processed":   processed,
		"cached":      cached,
		"failed":      failed,
		"remaining":   remaining,
		"fact_count":  factCount,
		"duration_ms": durationMs,
	})
}

// TrackCacheRead records how a read was satisfied: "exact", "merged" or "miss".
func (p *PostHogClient) TrackCacheRead(ctx context.Context, periodKey string, outcome string, stale bool) error {
	return p.Capture(ctx, systemDistinctID, "facts_cache_read", EventProperties{
		"period":  periodKey,
		"outcome": outcome,
		"stale":   stale,
	})
}

// TrackLLMCall tracks LLM API calls for cost and performance monitoring
func (p *PostHogClient) TrackLLMCall(ctx context.Context, model string, operation string, promptChars int, latencyMs int64, successful bool) error {
	return p.Capture(ctx, systemDistinctID, "llm_call", EventProperties{
		"model":        model,
		"operation":    operation,
		"prompt_chars": promptChars,
		"latency_ms":   latencyMs,
		"successful":   successful,
	})
}

// Shutdown flushes pending events and closes the client
func (p *PostHogClient) Shutdown(ctx context.Context) error {
	if !p.IsEnabled() {
		return nil
	}

	return p.client.Close()
}
