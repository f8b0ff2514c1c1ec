package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"newsfacts/internal/core"
)

// NewArticlesCmd creates the articles command group
func NewArticlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Load and inspect stored articles",
	}

	cmd.AddCommand(newArticlesImportCmd())
	cmd.AddCommand(newArticlesCountCmd())

	return cmd
}

func newArticlesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import articles from a JSON or YAML list",
		Long: `Import articles from a JSON or YAML list into the configured database.

Articles are upserted by URL. Each entry accepts:
  id (UUID, otherwise generated), title, description, content, url, source_name,
  published_at (RFC3339 or YYYY-MM-DD), political_bias, tone

Example:
  newsfacts articles import articles.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArticlesImport(cmd.Context(), args[0])
		},
	}
}

func newArticlesCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the number of stored articles and their publish span",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArticlesCount(cmd.Context())
		},
	}
}

// articleRecord is the import file shape. YAML is a superset of JSON so one decoder reads both.
type articleRecord struct {
	ID            string `yaml:"id"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Content       string `yaml:"content"`
	URL           string `yaml:"url"`
	SourceName    string `yaml:"source_name"`
	PublishedAt   string `yaml:"published_at"`
	PoliticalBias string `yaml:"political_bias"`
	Tone          string `yaml:"tone"`
}

func (r articleRecord) toArticle() (*core.Article, error) {
	if strings.TrimSpace(r.URL) == "" {
		return nil, fmt.Errorf("article %q has no url", r.Title)
	}
	a := &core.Article{
		ID:            articleID(r.ID),
		Title:         r.Title,
		Description:   r.Description,
		Content:       r.Content,
		URL:           r.URL,
		SourceName:    r.SourceName,
		PoliticalBias: r.PoliticalBias,
		Tone:          r.Tone,
	}
	if r.PublishedAt != "" {
		t, err := parsePublished(r.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("article %q: %w", r.URL, err)
		}
		a.PublishedAt = &t
	}
	return a, nil
}

// articleID keeps only ids every backend can store; anything else is regenerated on Create.
func articleID(id string) string {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return ""
	}
	return parsed.String()
}

func parsePublished(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid published_at %q", s)
	}
	return t, nil
}

func decodeArticles(data []byte) ([]*core.Article, error) {
	var records []articleRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse article list: %w", err)
	}
	out := make([]*core.Article, 0, len(records))
	for _, r := range records {
		a, err := r.toArticle()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func runArticlesImport(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	articles, err := decodeArticles(data)
	if err != nil {
		return err
	}

	b, err := newReadBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	repo := b.db.Articles()
	for i, a := range articles {
		if err := repo.Create(ctx, a); err != nil {
			return fmt.Errorf("failed to store article %d (%s): %w", i+1, a.URL, err)
		}
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count articles: %w", err)
	}
	fmt.Printf("✅ Imported %d articles (%d stored)\n", len(articles), total)
	return nil
}

func runArticlesCount(ctx context.Context) error {
	b, err := newReadBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	repo := b.db.Articles()
	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count articles: %w", err)
	}
	oldest, newest, found, err := repo.PublishedSpan(ctx)
	if err != nil {
		return fmt.Errorf("failed to read publish span: %w", err)
	}

	fmt.Printf("Articles: %d\n", total)
	if found {
		fmt.Printf("Published: %s → %s\n", oldest.UTC().Format(core.DateLayout), newest.UTC().Format(core.DateLayout))
	}
	return nil
}
