package core

import "strings"

// Category classifies what kind of fact was extracted.
type Category string

const (
	CategoryEvent     Category = "event"
	CategoryStatement Category = "statement"
	CategoryDataPoint Category = "data-point"
	CategoryDecision  Category = "decision"
	CategoryConflict  Category = "conflict"
	CategoryAgreement Category = "agreement"
)

// categoryAliases maps model output (including Spanish labels used by older prompts) onto categories.
var categoryAliases = map[string]Category{
	"event":       CategoryEvent,
	"evento":      CategoryEvent,
	"statement":   CategoryStatement,
	"declaration": CategoryStatement,
	"declaracion": CategoryStatement,
	"declaración": CategoryStatement,
	"data-point":  CategoryDataPoint,
	"data_point":  CategoryDataPoint,
	"datapoint":   CategoryDataPoint,
	"data":        CategoryDataPoint,
	"dato":        CategoryDataPoint,
	"decision":    CategoryDecision,
	"decisión":    CategoryDecision,
	"conflict":    CategoryConflict,
	"conflicto":   CategoryConflict,
	"agreement":   CategoryAgreement,
	"acuerdo":     CategoryAgreement,
}

// ParseCategory normalizes a raw category label. Unknown or empty labels become CategoryEvent.
func ParseCategory(raw string) Category {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return c
	}
	return CategoryEvent
}

// Importance ranks facts for ordering and truncation.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// ParseImportance normalizes a raw importance label. Unknown or empty labels become ImportanceMedium.
func ParseImportance(raw string) Importance {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "alta", "alto":
		return ImportanceHigh
	case "low", "baja", "bajo":
		return ImportanceLow
	default:
		return ImportanceMedium
	}
}

// Rank orders importances high < medium < low; anything else sorts last.
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 0
	case ImportanceMedium:
		return 1
	case ImportanceLow:
		return 2
	default:
		return 3
	}
}

// Verification is the corroboration tier of a fact.
type Verification string

const (
	VerificationHigh   Verification = "high"
	VerificationMedium Verification = "medium"
	VerificationLow    Verification = "low"
)

// VerificationFor derives the tier from the number of distinct contributing articles.
func VerificationFor(sourceCount int) Verification {
	switch {
	case sourceCount >= 3:
		return VerificationHigh
	case sourceCount == 2:
		return VerificationMedium
	default:
		return VerificationLow
	}
}

// NormalizeSentiment lower-cases the model's sentiment label, mapping Spanish labels and defaulting to neutral.
func NormalizeSentiment(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return "neutral"
	case "positivo":
		return "positive"
	case "negativo":
		return "negative"
	case "alarmante":
		return "alarming"
	}
	return s
}
