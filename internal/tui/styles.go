package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"newsfacts/internal/core"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("8"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	staleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	importanceStyles = map[core.Importance]lipgloss.Style{
		core.ImportanceHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		core.ImportanceMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		core.ImportanceLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

// ImportanceBadge renders a short coloured importance marker.
func ImportanceBadge(i core.Importance) string {
	style, ok := importanceStyles[i]
	if !ok {
		style = mutedStyle
	}
	return style.Render("[" + strings.ToUpper(string(i)) + "]")
}

// BundleStatus is a one-line summary of where a bundle came from and how old it is.
func BundleStatus(b *core.Bundle) string {
	parts := []string{fmt.Sprintf("%d articles", b.ArticleCount)}
	if b.Cached {
		age := fmt.Sprintf("cached %.1fh ago", b.CacheAgeHours)
		if b.IsStale {
			age = staleStyle.Render(age + " (stale)")
		}
		parts = append(parts, age)
	}
	if b.CombinedFromPeriods {
		parts = append(parts, "merged from "+strings.Join(b.Periods, ", "))
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}

// FactDetail renders every field of a fact.
func FactDetail(f core.Fact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", ImportanceBadge(f.Importance), titleStyle.Render(f.Fact))
	fmt.Fprintf(&b, "Category: %s\nSentiment: %s\nVerification: %s (%d sources)\n", f.Category, f.Sentiment, f.Verification, f.SourceCount)
	if len(f.Who) > 0 {
		fmt.Fprintf(&b, "Who: %s\n", strings.Join(f.Who, ", "))
	}
	if f.When != nil {
		fmt.Fprintf(&b, "When: %s\n", *f.When)
	}
	if f.Where != nil {
		fmt.Fprintf(&b, "Where: %s\n", *f.Where)
	}
	if f.Quote != nil {
		author := ""
		if f.QuoteAuthor != nil {
			author = " (" + *f.QuoteAuthor + ")"
		}
		fmt.Fprintf(&b, "\n\"%s\"%s\n", *f.Quote, author)
	}
	if len(f.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, s := range f.Sources {
			fmt.Fprintf(&b, "  - %s: %s\n", s.Source, s.Title)
		}
	}
	return b.String()
}

// RenderBundle renders a whole bundle as styled text for the CLI.
func RenderBundle(b *core.Bundle) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%s\n%s\n", titleStyle.Render(fmt.Sprintf("Facts %s → %s", b.DateFrom, b.DateTo)), BundleStatus(b))

	if len(b.Facts) == 0 {
		out.WriteString("\n" + mutedStyle.Render("No facts.") + "\n")
	}
	for i, f := range b.Facts {
		fmt.Fprintf(&out, "\n%d. %s %s\n", i+1, ImportanceBadge(f.Importance), f.Fact)
		fmt.Fprintf(&out, "   %s\n", mutedStyle.Render(fmt.Sprintf("%s · %s · %d sources", f.Category, f.Verification, f.SourceCount)))
	}

	if len(b.TimelineEvents) > 0 {
		out.WriteString("\n" + titleStyle.Render("Timeline") + "\n")
		for _, e := range b.TimelineEvents {
			fmt.Fprintf(&out, "  %s  %s\n", e.Date, e.Event)
		}
	}
	if len(b.KeyFigures) > 0 {
		out.WriteString("\n" + titleStyle.Render("Key figures") + "\n")
		for _, k := range b.KeyFigures {
			fmt.Fprintf(&out, "  %s, %s (%d mentions)\n", k.Name, k.Role, k.Mentions)
		}
	}
	return out.String()
}
