package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newsfacts/internal/core"
	"newsfacts/internal/refresh"
	"newsfacts/internal/tui"
)

// NewFactsCmd creates the facts command group
func NewFactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Read, refresh and backfill cached fact bundles",
		Long: `Read, refresh and backfill cached fact bundles.

Subcommands:
  read      Show the cached bundle for a period (no AI call)
  refresh   Recompute one period and overwrite its cache entry
  backfill  Compute every uncached Monday-aligned week of stored articles
  periods   List cached periods`,
	}

	cmd.AddCommand(newFactsReadCmd())
	cmd.AddCommand(newFactsRefreshCmd())
	cmd.AddCommand(newFactsBackfillCmd())
	cmd.AddCommand(newFactsPeriodsCmd())

	return cmd
}

// periodFlags resolves --from/--to, each defaulting to the rolling [yesterday, today] window.
func periodFlags(from, to string, now time.Time) (core.Period, error) {
	def := core.DefaultPeriod(now)
	if from == "" {
		from = def.FromString()
	}
	if to == "" {
		to = def.ToString()
	}
	p, err := core.ParsePeriod(from, to)
	if err != nil {
		return core.Period{}, fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}
	return p, nil
}

func newFactsReadCmd() *cobra.Command {
	var from, to, output string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Show the cached facts for a period",
		Long: `Show the cached facts for a period.

The exact cached period is used when present; otherwise every cached period
overlapping the request is merged. Nothing is computed: a miss prints a hint
to run 'newsfacts facts refresh'.

Examples:
  newsfacts facts read
  newsfacts facts read --from 2026-01-05 --to 2026-01-11 --output yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFactsRead(cmd.Context(), from, to, output)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD), default yesterday")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD), default today")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")

	return cmd
}

func runFactsRead(ctx context.Context, from, to, output string) error {
	period, err := periodFlags(from, to, time.Now())
	if err != nil {
		return err
	}

	b, err := newReadBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	bundle, err := b.reader.Read(ctx, &period)
	if err != nil {
		return fmt.Errorf("failed to read facts: %w", err)
	}
	if bundle == nil {
		fmt.Fprintf(os.Stderr, "No cached facts for %s to %s yet. Run 'newsfacts facts refresh --from %s --to %s'.\n",
			period.FromString(), period.ToString(), period.FromString(), period.ToString())
		return nil
	}

	switch output {
	case "json":
		return writeJSON(os.Stdout, bundle)
	case "yaml":
		return writeYAML(os.Stdout, bundle)
	case "text":
		fmt.Print(tui.RenderBundle(bundle))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use text, json or yaml)", output)
	}
}

func newFactsRefreshCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute the facts for a period",
		Long: `Recompute the facts for a period with one AI call and overwrite its cache entry.

On failure the previous cache entry is left untouched.

Examples:
  newsfacts facts refresh
  newsfacts facts refresh --from 2026-01-05 --to 2026-01-11`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFactsRefresh(cmd.Context(), from, to)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD), default yesterday")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD), default today")

	return cmd
}

func runFactsRefresh(ctx context.Context, from, to string) error {
	period, err := periodFlags(from, to, time.Now())
	if err != nil {
		return err
	}

	b, err := newBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.refresher.RefreshRange(ctx, period)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Refreshed %s: %d facts from %d articles (%s)\n",
		period.Key(), len(res.Facts.Facts), res.ArticleCount, res.Model)
	return nil
}

func newFactsBackfillCmd() *cobra.Command {
	var (
		force      bool
		maxBatches int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Compute every uncached week of stored articles",
		Long: `Partition the full publish-date span of stored articles into Monday-aligned
weeks and compute every week that is not cached yet, newest first.

A failing week is reported and skipped; it stays eligible for the next run.

Examples:
  newsfacts facts backfill
  newsfacts facts backfill --max-batches 5
  newsfacts facts backfill --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFactsBackfill(cmd.Context(), force, maxBatches, cmd.Flags().Changed("max-batches"), output)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Recompute weeks that are already cached")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "Maximum weeks to compute in this run (default from config, 0 = no cap)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")

	return cmd
}

func runFactsBackfill(ctx context.Context, force bool, maxBatches int, maxSet bool, output string) error {
	b, err := newBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if !maxSet {
		maxBatches = b.cfg.Facts.BackfillMaxBatches
	}

	result, runErr := b.refresher.Backfill(ctx, refresh.BackfillOptions{Force: force, MaxBatches: maxBatches})
	if result == nil {
		return runErr
	}

	switch output {
	case "json":
		err = writeJSON(os.Stdout, result)
	case "yaml":
		err = writeYAML(os.Stdout, result)
	default:
		printBackfill(result)
	}
	if runErr != nil {
		return runErr
	}
	return err
}

func printBackfill(r *refresh.BackfillResult) {
	if r.TotalPeriods == 0 {
		fmt.Println("No dated articles stored; nothing to backfill")
		return
	}

	fmt.Printf("📅 Backfill %s → %s (%d weeks)\n", r.DateFrom, r.DateTo, r.TotalPeriods)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, p := range r.Periods {
		icon := "⏳"
		switch p.Outcome {
		case refresh.OutcomeCached:
			icon = "💾"
		case refresh.OutcomeProcessed:
			icon = "✅"
		case refresh.OutcomeFailed:
			icon = "❌"
		}
		line := fmt.Sprintf("%s %-23s %-12s", icon, p.Period, p.Outcome)
		if p.Outcome == refresh.OutcomeProcessed {
			line += fmt.Sprintf(" %d facts / %d articles", p.FactCount, p.ArticleCount)
		}
		if p.Error != "" {
			line += " " + p.Error
		}
		fmt.Println(line)
	}
	fmt.Println()
	fmt.Printf("Cached: %d | Processed: %d | Failed: %d | Remaining: %d | Facts: %d\n",
		r.AlreadyCached, r.Processed, r.Failed, r.Remaining, r.TotalFacts)
	if r.Remaining > 0 {
		fmt.Println("\nRun 'newsfacts facts backfill' again to continue")
	}
}

func newFactsPeriodsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "periods",
		Short: "List cached periods, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFactsPeriods(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")

	return cmd
}

func runFactsPeriods(ctx context.Context, output string) error {
	b, err := newReadBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	periods, err := b.reader.Periods(ctx)
	if err != nil {
		return fmt.Errorf("failed to list periods: %w", err)
	}

	switch output {
	case "json":
		return writeJSON(os.Stdout, periods)
	case "yaml":
		return writeYAML(os.Stdout, periods)
	}

	if len(periods) == 0 {
		fmt.Println("No cached periods")
		return nil
	}
	fmt.Printf("%-23s %8s %6s  %s\n", "Period", "Articles", "Facts", "Generated")
	for _, p := range periods {
		fmt.Printf("%-23s %8d %6d  %s\n", p.PeriodKey, p.ArticleCount, p.FactCount, p.GeneratedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
