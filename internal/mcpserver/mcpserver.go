// Package mcpserver exposes the facts read path as MCP tools. It never triggers extraction.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"newsfacts/internal/core"
)

// Reader is the cache-only read path
type Reader interface {
	Read(ctx context.Context, period *core.Period) (*core.Bundle, error)
	Periods(ctx context.Context) ([]core.PeriodSummary, error)
}

// GetFactsInput selects a period. Both dates default to the rolling [yesterday, today] window.
type GetFactsInput struct {
	DateFrom string `json:"date_from,omitempty" jsonschema:"Start date (YYYY-MM-DD), defaults to yesterday"`
	DateTo   string `json:"date_to,omitempty" jsonschema:"End date (YYYY-MM-DD), defaults to today"`
}

// ListPeriodsInput takes no arguments
type ListPeriodsInput struct{}

// Tools holds the tool handlers
type Tools struct {
	Reader Reader
	Now    func() time.Time
}

// Option customises the tool handlers
type Option func(*Tools)

// WithClock overrides the clock used to fill in a single missing date
func WithClock(now func() time.Time) Option {
	return func(t *Tools) { t.Now = now }
}

// New creates an MCP server with get_facts and list_periods registered
func New(reader Reader, version string, opts ...Option) *mcp.Server {
	t := &Tools{Reader: reader, Now: time.Now}
	for _, opt := range opts {
		opt(t)
	}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "newsfacts",
		Version: version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_facts",
		Description: "Get the cached fact bundle (facts, timeline events, key figures) for a date range. Overlapping cached periods are merged when no exact entry exists.",
	}, t.GetFacts)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_periods",
		Description: "List the cached periods, newest first, with article and fact counts",
	}, t.ListPeriods)

	return srv
}

// GetFacts serves one period. With no dates the reader picks the default window.
func (t *Tools) GetFacts(ctx context.Context, _ *mcp.CallToolRequest, input GetFactsInput) (*mcp.CallToolResult, any, error) {
	var period *core.Period
	if input.DateFrom != "" || input.DateTo != "" {
		p, err := t.partialPeriod(input)
		if err != nil {
			return toolError("Invalid date format. Use YYYY-MM-DD: %v", err), nil, nil
		}
		period = &p
	}

	b, err := t.Reader.Read(ctx, period)
	if err != nil {
		return toolError("Failed to read facts: %v", err), nil, nil
	}
	if b == nil {
		if period == nil {
			return toolText("No cached facts for the default window yet."), nil, nil
		}
		return toolText(fmt.Sprintf("No cached facts for %s to %s yet.", period.FromString(), period.ToString())), nil, nil
	}
	return toolJSON(b)
}

func (t *Tools) partialPeriod(input GetFactsInput) (core.Period, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	def := core.DefaultPeriod(now())
	from, to := def.FromString(), def.ToString()
	if input.DateFrom != "" {
		from = input.DateFrom
	}
	if input.DateTo != "" {
		to = input.DateTo
	}
	return core.ParsePeriod(from, to)
}

func (t *Tools) ListPeriods(ctx context.Context, _ *mcp.CallToolRequest, _ ListPeriodsInput) (*mcp.CallToolResult, any, error) {
	periods, err := t.Reader.Periods(ctx)
	if err != nil {
		return toolError("Failed to list periods: %v", err), nil, nil
	}
	if periods == nil {
		periods = []core.PeriodSummary{}
	}
	return toolJSON(periods)
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return toolText(string(data)), nil, nil
}
