package facts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"newsfacts/internal/core"
	"newsfacts/internal/llm"
	"newsfacts/internal/logger"
)

// LLMClient defines the interface for LLM operations needed by the extractor
type LLMClient interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// ArticleSource supplies articles published in [start, end), newest first.
type ArticleSource interface {
	PublishedBetween(ctx context.Context, start, end time.Time) ([]core.Article, error)
}

// Request selects the articles for one extraction call.
type Request struct {
	Period      *core.Period // nil means the trailing 24 hours
	MaxArticles int          // 0 means no cap
	Topic       string       // case-insensitive substring on title or description
}

// Result is the outcome of one extraction call.
type Result struct {
	Bundle       core.FactBundle
	ArticleCount int
	Period       *core.Period
	GeneratedAt  time.Time
	Model        string
}

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	MaxFacts    int
	MaxTokens   int32
	Temperature float32
	Model       string
	Now         func() time.Time
	Logger      *slog.Logger
}

// DefaultExtractorOptions returns the options used in production.
func DefaultExtractorOptions() ExtractorOptions {
	return ExtractorOptions{
		MaxFacts:    10,
		MaxTokens:   8192,
		Temperature: 0.2,
		Model:       llm.DefaultModel,
		Now:         time.Now,
	}
}

// Extractor turns a batch of articles into a fact bundle with one AI call.
type Extractor struct {
	client LLMClient
	source ArticleSource
	opts   ExtractorOptions
	log    *slog.Logger
}

// NewExtractor creates an extractor. A nil client is allowed: every extraction then fails with
// ErrNotConfigured instead of crashing.
func NewExtractor(client LLMClient, source ArticleSource, opts ExtractorOptions) *Extractor {
	defaults := DefaultExtractorOptions()
	if opts.MaxFacts <= 0 {
		opts.MaxFacts = defaults.MaxFacts
	}
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	return &Extractor{client: client, source: source, opts: opts, log: log}
}

// Configured reports whether an AI client is available.
func (e *Extractor) Configured() bool {
	return e.client != nil
}

// Model returns the model name recorded on results.
func (e *Extractor) Model() string {
	return e.opts.Model
}

// Extract loads the articles selected by req and extracts facts from them.
// On failure the returned Result carries an empty bundle and the error is an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, req Request) (Result, error) {
	now := e.opts.Now()

	start, end := now.Add(-24*time.Hour), now
	if req.Period != nil {
		start, end = req.Period.Start(), req.Period.End()
	}

	result := Result{Bundle: core.EmptyFactBundle(), Period: req.Period, Model: e.opts.Model}

	if e.client == nil {
		return result, newExtractionError(ErrNotConfigured, nil)
	}
	if e.source == nil {
		return result, newExtractionError(ErrArticleSource, goerr.New("no article source configured"))
	}

	articles, err := e.source.PublishedBetween(ctx, start, end)
	if err != nil {
		return result, newExtractionError(ErrArticleSource,
			goerr.Wrap(err, "failed to query articles", goerr.V("start", start), goerr.V("end", end)))
	}

	articles = selectArticles(articles, req.Topic, req.MaxArticles)

	result, err = e.ExtractFromArticles(ctx, articles)
	result.Period = req.Period
	return result, err
}

// selectArticles applies the topic filter and the cap, preserving input order.
func selectArticles(articles []core.Article, topic string, maxArticles int) []core.Article {
	topic = strings.ToLower(strings.TrimSpace(topic))
	selected := articles
	if topic != "" {
		selected = make([]core.Article, 0, len(articles))
		for _, a := range articles {
			if strings.Contains(strings.ToLower(a.Title), topic) ||
				strings.Contains(strings.ToLower(a.Description), topic) {
				selected = append(selected, a)
			}
		}
	}
	if maxArticles > 0 && len(selected) > maxArticles {
		selected = selected[:maxArticles]
	}
	return selected
}

// ExtractFromArticles runs one AI call over the given batch. Zero articles yield an empty bundle
// without calling the model.
func (e *Extractor) ExtractFromArticles(ctx context.Context, articles []core.Article) (Result, error) {
	result := Result{
		Bundle:       core.EmptyFactBundle(),
		ArticleCount: len(articles),
		Model:        e.opts.Model,
	}

	if e.client == nil {
		return result, newExtractionError(ErrNotConfigured, nil)
	}

	if len(articles) == 0 {
		result.GeneratedAt = e.opts.Now().UTC()
		return result, nil
	}

	prompt := buildPrompt(articles, e.opts.MaxFacts)
	e.log.Debug("Extracting facts", "articles", len(articles), "content_budget", ContentBudget(len(articles)))

	completion, err := e.client.GenerateText(ctx, prompt, llm.TextGenerationOptions{
		MaxTokens:    e.opts.MaxTokens,
		Temperature:  e.opts.Temperature,
		JSONResponse: true,
	})
	if err != nil {
		e.log.Error("Fact extraction call failed", "articles", len(articles), "error", err)
		return result, newExtractionError(ErrUpstream,
			goerr.Wrap(err, "failed to generate facts", goerr.V("articles", len(articles))))
	}

	raw, err := parseResponse(completion)
	if err != nil {
		e.log.Error("Failed to parse fact extraction response", "articles", len(articles), "error", err)
		return result, newExtractionError(ErrMalformedResponse, err)
	}

	result.Bundle = toBundle(raw, sourcesFor(articles))
	result.GeneratedAt = e.opts.Now().UTC()

	e.log.Info("Extracted facts",
		"articles", len(articles),
		"facts", len(result.Bundle.Facts),
		"timeline_events", len(result.Bundle.TimelineEvents),
		"key_figures", len(result.Bundle.KeyFigures))

	return result, nil
}

// sourcesFor builds the zero-based index map used to resolve article_indices.
func sourcesFor(articles []core.Article) []core.FactSource {
	sources := make([]core.FactSource, len(articles))
	for i, a := range articles {
		src := core.FactSource{
			ID:     a.ID,
			Title:  a.Title,
			Source: a.SourceName,
			URL:    a.URL,
			Bias:   optional(a.PoliticalBias),
			Tone:   optional(a.Tone),
		}
		if a.PublishedAt != nil {
			ts := a.PublishedAt.UTC().Format(time.RFC3339)
			src.PublishedAt = &ts
		}
		sources[i] = src
	}
	return sources
}

// toBundle validates the raw completion field by field.
//
// Defaults: missing id -> md5 of the description (12 hex chars); missing category -> event;
// missing importance -> medium; missing sentiment -> neutral; missing lists -> empty.
// Facts without a description, timeline events without text and key figures without a name
// are dropped. Article indices outside the batch are ignored and duplicates collapse.
func toBundle(raw *rawResponse, sources []core.FactSource) core.FactBundle {
	bundle := core.EmptyFactBundle()

	for _, rf := range raw.Facts {
		desc := rf.Fact.value()
		if desc == "" {
			continue
		}

		f := core.Fact{
			ID:          rf.ID.value(),
			Fact:        desc,
			Category:    core.ParseCategory(rf.Category.value()),
			Importance:  core.ParseImportance(rf.Importance.value()),
			Who:         []string(rf.Who),
			When:        optional(rf.When.value()),
			Where:       optional(rf.Where.value()),
			Quote:       optional(rf.Quote.value()),
			QuoteAuthor: optional(rf.QuoteAuthor.value()),
			Sentiment:   core.NormalizeSentiment(rf.Sentiment.value()),
		}
		if f.ID == "" {
			f.ID = FactID(desc)
		}
		if f.Who == nil {
			f.Who = []string{}
		}

		f.ArticleIndices = []int{}
		f.Sources = []core.FactSource{}
		seen := make(map[int]bool, len(rf.ArticleIndices))
		for _, idx := range rf.ArticleIndices {
			if idx < 0 || idx >= len(sources) || seen[idx] {
				continue
			}
			seen[idx] = true
			f.ArticleIndices = append(f.ArticleIndices, idx)
			f.Sources = append(f.Sources, sources[idx])
		}
		f.SourceCount = len(f.Sources)
		f.Verification = core.VerificationFor(f.SourceCount)

		bundle.Facts = append(bundle.Facts, f)
	}

	for _, re := range raw.TimelineEvents {
		event := re.Event.value()
		if event == "" {
			continue
		}
		ids := []string(re.FactIDs)
		if ids == nil {
			ids = []string{}
		}
		bundle.TimelineEvents = append(bundle.TimelineEvents, core.TimelineEvent{
			Date:    re.Date.value(),
			Event:   event,
			FactIDs: ids,
		})
	}

	for _, rk := range raw.KeyFigures {
		name := rk.Name.value()
		if name == "" {
			continue
		}
		mentions := 1
		if rk.Mentions != nil && *rk.Mentions > 0 {
			mentions = int(*rk.Mentions)
		}
		bundle.KeyFigures = append(bundle.KeyFigures, core.KeyFigure{
			Name:     name,
			Role:     rk.Role.value(),
			Stance:   rk.Stance.value(),
			Mentions: mentions,
		})
	}

	return bundle
}

// FactID derives the stable identifier of a fact from its description text.
func FactID(description string) string {
	sum := md5.Sum([]byte(description))
	return hex.EncodeToString(sum[:])[:12]
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
