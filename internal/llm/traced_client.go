package llm

import (
	"context"
	"log/slog"
	"time"
)

// CallTracker receives one record per completion call. *observability.PostHogClient implements it.
type CallTracker interface {
	TrackLLMCall(ctx context.Context, model string, operation string, promptChars int, latencyMs int64, successful bool) error
}

// Generator is the subset of Client the traced wrapper needs.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error)
	GetModelName() string
}

// TracedClient wraps an LLM client with latency logging and call tracking
type TracedClient struct {
	client    Generator
	tracker   CallTracker
	operation string
	log       *slog.Logger
}

// NewTracedClient creates a new traced LLM client. A nil tracker only logs.
func NewTracedClient(client Generator, tracker CallTracker, operation string, log *slog.Logger) *TracedClient {
	if log == nil {
		log = slog.Default()
	}
	return &TracedClient{client: client, tracker: tracker, operation: operation, log: log}
}

// GenerateText generates text with tracing
func (tc *TracedClient) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	model := tc.client.GetModelName()
	if options.Model != "" {
		model = options.Model
	}

	startTime := time.Now()
	result, err := tc.client.GenerateText(ctx, prompt, options)
	latency := time.Since(startTime).Milliseconds()

	if err != nil {
		tc.log.Warn("LLM call failed", "operation", tc.operation, "model", model, "latency_ms", latency, "error", err)
	} else {
		tc.log.Debug("LLM call completed", "operation", tc.operation, "model", model, "latency_ms", latency, "response_chars", len(result))
	}

	if tc.tracker != nil {
		if trackErr := tc.tracker.TrackLLMCall(ctx, model, tc.operation, len(prompt), latency, err == nil); trackErr != nil {
			tc.log.Debug("Failed to track LLM call", "error", trackErr)
		}
	}

	return result, err
}

// GetModelName returns the model name of the wrapped client
func (tc *TracedClient) GetModelName() string {
	return tc.client.GetModelName()
}
