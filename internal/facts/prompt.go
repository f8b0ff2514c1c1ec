package facts

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsfacts/internal/core"
)

// ContentBudget returns the per-article body budget (in characters) for a batch of n articles.
// Tiers are inclusive on their upper bound: 50 articles get 1000 characters, 51 get 600.
func ContentBudget(n int) int {
	switch {
	case n <= 50:
		return 1000
	case n <= 100:
		return 600
	case n <= 200:
		return 400
	case n <= 500:
		return 200
	case n <= 1000:
		return 100
	default:
		return 50
	}
}

const extractPromptTemplate = `Analyze the following news articles and extract the most important CONCRETE FACTS.

ARTICLES:
%s

INSTRUCTIONS:
1. Extract verifiable, concrete facts only (no opinions or commentary)
2. Include what happened, who is involved, when and where
3. If the same real-world fact appears in several articles, group them into one fact and list every article index
4. Surface important verbatim quotes from relevant people
5. Classify every fact by category and importance
6. Reference articles only by the bracketed zero-based index shown above

Respond ONLY with valid JSON (no markdown):
{
    "facts": [
        {
            "id": "short unique identifier",
            "fact": "Clear, concise description of the fact",
            "category": "event|statement|data-point|decision|conflict|agreement",
            "importance": "high|medium|low",
            "who": ["people or organizations involved"],
            "when": "date or moment if mentioned (or null)",
            "where": "place if mentioned (or null)",
            "quote": "relevant verbatim quote if any (or null)",
            "quote_author": "author of the quote if any (or null)",
            "article_indices": [0, 1, 2],
            "sentiment": "positive|negative|neutral|alarming"
        }
    ],
    "timeline_events": [
        {
            "date": "YYYY-MM-DD or temporal description",
            "event": "short description of the event",
            "fact_ids": ["id1", "id2"]
        }
    ],
    "key_figures": [
        {
            "name": "Name of a key person",
            "role": "position or role",
            "stance": "main position or action",
            "mentions": 5
        }
    ]
}

At most %d principal facts, ordered by importance.`

// buildPrompt renders the batch with explicit zero-based indices.
func buildPrompt(articles []core.Article, maxFacts int) string {
	budget := ContentBudget(len(articles))

	var sb strings.Builder
	for i, article := range articles {
		fmt.Fprintf(&sb, "\n[Article %d] - %s\n", i, article.SourceName)
		fmt.Fprintf(&sb, "Title: %s\n", article.Title)
		fmt.Fprintf(&sb, "Content: %s\n", truncateRunes(plainText(article.Body()), budget))
	}

	return fmt.Sprintf(extractPromptTemplate, sb.String(), maxFacts)
}

// plainText reduces an HTML fragment to its visible text with collapsed whitespace.
// Plain text passes through unchanged apart from whitespace.
func plainText(body string) string {
	if body == "" {
		return ""
	}
	text := body
	if strings.ContainsAny(body, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err == nil {
			doc.Find("script, style, noscript, iframe").Remove()
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
