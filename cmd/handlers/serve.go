package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"newsfacts/internal/refresh"
	"newsfacts/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP API and the refresh scheduler
func NewServeCmd() *cobra.Command {
	var (
		port        int
		host        string
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background facts refresher",
		Long: `Start the newsfacts HTTP server.

The server provides:
  • GET  /api/facts           cached facts for a date range (never calls the AI)
  • POST /api/facts/refresh   recompute one period
  • POST /api/facts/backfill  compute every uncached week (admin only)
  • GET  /api/facts/periods   list cached periods
  • GET  /health              database health

Unless --no-scheduler is given, the default [yesterday, today] window is
refreshed every facts.refresh_interval.

Examples:
  # Start server on default port 8080
  newsfacts serve

  # Start on custom port without the scheduler
  newsfacts serve --port 3000 --no-scheduler`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, noScheduler)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not run the periodic refresh")

	return cmd
}

func runServe(ctx context.Context, port int, host string, noScheduler bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := newBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	log := b.log
	serverCfg := b.cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	srv := server.New(b.db, b.reader, b.refresher, serverCfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		return srv.Start()
	})

	var scheduler *refresh.Scheduler
	if !noScheduler {
		scheduler = refresh.NewScheduler(b.refresher, b.cfg.Facts.RefreshIntervalDuration(), b.cfg.Facts.RunOnStart, log)
		scheduler.Start(gctx)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return err
		}
		if scheduler != nil {
			scheduler.Wait()
		}
		log.Info("Server stopped successfully")
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
