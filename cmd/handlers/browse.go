package handlers

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"newsfacts/internal/core"
	"newsfacts/internal/tui"
)

// NewBrowseCmd creates the interactive cached-facts browser
func NewBrowseCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse cached facts in the terminal",
		Long: `Browse cached facts, timeline events and key figures interactively.

Keys:
  tab      switch pane
  j/k      move selection
  h/l      previous / next period of the same length
  q        quit

Only the cache is read; periods without cached facts show as pending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), from, to)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD), default yesterday")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD), default today")

	return cmd
}

func runBrowse(ctx context.Context, from, to string) error {
	period, err := periodFlags(from, to, time.Now())
	if err != nil {
		return err
	}

	b, err := newReadBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	load := func(ctx context.Context, p core.Period) (*core.Bundle, error) {
		return b.reader.Read(ctx, &p)
	}

	return tui.Run(ctx, load, period)
}
