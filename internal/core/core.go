package core

import "time"

// Article is a news item as supplied by the ingestion side. The fact pipeline never mutates it.
type Article struct {
	ID            string     `json:"id"`             // Unique identifier for the article
	Title         string     `json:"title"`          // Headline
	Description   string     `json:"description"`    // Provider-supplied description (optional)
	Content       string     `json:"content"`        // Full body, may contain HTML (optional)
	URL           string     `json:"url"`            // Canonical article URL
	SourceName    string     `json:"source_name"`    // Publisher name
	PublishedAt   *time.Time `json:"published_at"`   // Publish timestamp, nil when the provider omitted it
	PoliticalBias string     `json:"political_bias"` // Prior classification (left ... right), empty if unanalyzed
	Tone          string     `json:"tone"`           // Prior classification (positive, neutral, negative, alarming)
}

// Body returns the best available text for the article: content, else description.
func (a Article) Body() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Description
}

// FactSource describes one article that contributed to a fact.
type FactSource struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	URL         string  `json:"url"`
	PublishedAt *string `json:"published_at"`
	Bias        *string `json:"bias"`
	Tone        *string `json:"tone"`
}

// Fact is a single verifiable statement distilled from a batch of articles.
type Fact struct {
	ID             string       `json:"id"`
	Fact           string       `json:"fact"`
	Category       Category     `json:"category"`
	Importance     Importance   `json:"importance"`
	Who            []string     `json:"who"`
	When           *string      `json:"when"`
	Where          *string      `json:"where"`
	Quote          *string      `json:"quote"`
	QuoteAuthor    *string      `json:"quote_author"`
	ArticleIndices []int        `json:"article_indices"`
	Sentiment      string       `json:"sentiment"`
	Sources        []FactSource `json:"sources"`
	SourceCount    int          `json:"source_count"`
	Verification   Verification `json:"verification"`
}

// TimelineEvent is a dated event referencing facts by id.
type TimelineEvent struct {
	Date    string   `json:"date"`
	Event   string   `json:"event"`
	FactIDs []string `json:"fact_ids"`
}

// KeyFigure is a person who features prominently in the coverage.
type KeyFigure struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Stance   string `json:"stance"`
	Mentions int    `json:"mentions"`
}

// FactBundle is the triple produced by one extraction call and persisted per period.
type FactBundle struct {
	Facts          []Fact          `json:"facts"`
	TimelineEvents []TimelineEvent `json:"timeline_events"`
	KeyFigures     []KeyFigure     `json:"key_figures"`
}

// EmptyFactBundle returns a bundle whose slices are non-nil so it encodes as empty JSON arrays.
func EmptyFactBundle() FactBundle {
	return FactBundle{
		Facts:          []Fact{},
		TimelineEvents: []TimelineEvent{},
		KeyFigures:     []KeyFigure{},
	}
}

// Normalize replaces nil slices with empty ones.
func (b *FactBundle) Normalize() {
	if b.Facts == nil {
		b.Facts = []Fact{}
	}
	if b.TimelineEvents == nil {
		b.TimelineEvents = []TimelineEvent{}
	}
	if b.KeyFigures == nil {
		b.KeyFigures = []KeyFigure{}
	}
}

// Bundle is the response payload served to callers of the read and refresh paths.
type Bundle struct {
	FactBundle
	ArticleCount        int        `json:"article_count"`
	DateFrom            string     `json:"date_from"`
	DateTo              string     `json:"date_to"`
	GeneratedAt         *time.Time `json:"generated_at"`
	Cached              bool       `json:"cached"`
	IsStale             bool       `json:"is_stale"`
	CacheAgeHours       float64    `json:"cache_age_hours"`
	CombinedFromPeriods bool       `json:"combined_from_periods,omitempty"`
	Periods             []string   `json:"periods,omitempty"` // Period keys merged into this bundle
	Model               string     `json:"model,omitempty"`   // Model that produced a fresh bundle
	Status              string     `json:"status,omitempty"`  // "pending" when nothing is cached yet
	Error               string     `json:"error,omitempty"`
}

// FactsCacheRecord is one persisted cache row. Payload is the JSON-encoded FactBundle.
type FactsCacheRecord struct {
	ID           string    `json:"id"`
	PeriodKey    string    `json:"period_key"`
	Payload      []byte    `json:"-"`
	ArticleCount int       `json:"article_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// PeriodSummary describes a cached period without its payload.
type PeriodSummary struct {
	PeriodKey    string    `json:"period_key"`
	DateFrom     string    `json:"date_from"`
	DateTo       string    `json:"date_to"`
	ArticleCount int       `json:"article_count"`
	FactCount    int       `json:"fact_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}
