package facts

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// rawResponse is the partially-trusted shape of a completion. Every field is optional and
// validated on ingest; see toBundle for the defaults applied.
type rawResponse struct {
	Facts          []rawFact          `json:"facts"`
	TimelineEvents []rawTimelineEvent `json:"timeline_events"`
	KeyFigures     []rawKeyFigure     `json:"key_figures"`
}

type rawFact struct {
	ID             *text      `json:"id"`
	Fact           *text      `json:"fact"`
	Category       *text      `json:"category"`
	Importance     *text      `json:"importance"`
	Who            stringList `json:"who"`
	When           *text      `json:"when"`
	Where          *text      `json:"where"`
	Quote          *text      `json:"quote"`
	QuoteAuthor    *text      `json:"quote_author"`
	ArticleIndices intList    `json:"article_indices"`
	Sentiment      *text      `json:"sentiment"`
}

type rawTimelineEvent struct {
	Date    *text      `json:"date"`
	Event   *text      `json:"event"`
	FactIDs stringList `json:"fact_ids"`
}

type rawKeyFigure struct {
	Name     *text    `json:"name"`
	Role     *text    `json:"role"`
	Stance   *text    `json:"stance"`
	Mentions *flexInt `json:"mentions"`
}

// parseResponse recovers the JSON payload from a completion that may be fenced or surrounded by prose.
func parseResponse(completion string) (*rawResponse, error) {
	payload, ok := extractJSON(completion)
	if !ok {
		return nil, goerr.New("no JSON object in completion", goerr.V("length", len(completion)))
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to decode completion JSON", goerr.V("length", len(payload)))
	}
	return &raw, nil
}

// extractJSON strips a leading code fence (and optional language tag), then bounds the payload
// by the first '{' and the last '}'.
func extractJSON(completion string) (string, bool) {
	s := strings.TrimSpace(completion)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// stringList accepts a JSON array of strings or a single string. Non-string items are dropped.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if s := strings.TrimSpace(single); s != "" {
			*l = stringList{s}
		}
		return nil
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}
	out := make(stringList, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	*l = out
	return nil
}

// intList accepts article indices given as numbers or numeric strings. Anything else is dropped.
type intList []int

func (l *intList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		*l = nil
		return nil
	}

	out := make(intList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			if v == float64(int(v)) {
				out = append(out, int(v))
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				out = append(out, n)
			}
		}
	}
	*l = out
	return nil
}

// flexInt accepts a JSON number or a numeric string; anything else decodes as 0.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	*n = 0
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = flexInt(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*n = flexInt(v)
		}
	}
	return nil
}

// text accepts any JSON scalar and keeps its string form. Objects and arrays decode as empty.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	*t = ""
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		*t = text(x)
	case float64:
		*t = text(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*t = text(strconv.FormatBool(x))
	}
	return nil
}

// value returns the trimmed string, treating nil and a literal "null" as empty.
func (t *text) value() string {
	if t == nil {
		return ""
	}
	s := strings.TrimSpace(string(*t))
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}
