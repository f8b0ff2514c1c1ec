package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsfacts/internal/config"
	"newsfacts/internal/logger"
	"newsfacts/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage PostgreSQL schema migrations.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status

Applied migrations are tracked in the schema_migrations table. The sqlite and
memory drivers create their schema on open and need no migrations.

Examples:
  newsfacts migrate up
  newsfacts migrate status --output yaml`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Long: `Apply all pending database migrations in order.

Each migration runs in its own transaction together with its
schema_migrations record.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context())
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")

	return cmd
}

// openMigrator returns nil when the configured driver has no migrations.
func openMigrator() (*persistence.MigrationManager, func(), error) {
	cfg := config.Get()
	if cfg.Database.Driver == "sqlite" || cfg.Database.Driver == "memory" {
		fmt.Printf("Driver %q creates its schema automatically; nothing to migrate\n", cfg.Database.Driver)
		return nil, func() {}, nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	pgDB, ok := db.(*persistence.PostgresDB)
	if !ok {
		db.Close()
		return nil, nil, fmt.Errorf("only PostgreSQL database is supported for migrations")
	}

	return persistence.NewMigrationManager(pgDB), func() { db.Close() }, nil
}

func runMigrateUp(ctx context.Context) error {
	log := logger.Get()

	migrator, closeDB, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeDB()
	if migrator == nil {
		return nil
	}

	log.Info("Starting database migration")
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("✅ All migrations applied successfully")
	return nil
}

func runMigrateStatus(ctx context.Context, output string) error {
	migrator, closeDB, err := openMigrator()
	if err != nil {
		return err
	}
	defer closeDB()
	if migrator == nil {
		return nil
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	switch output {
	case "json":
		return writeJSON(os.Stdout, status)
	case "yaml":
		return writeYAML(os.Stdout, status)
	}

	if len(status) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	fmt.Println("📊 Migration Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-10s %-10s %s\n", "Version", "Status", "Description")

	pending := 0
	for _, m := range status {
		state, icon := "applied", "✅"
		if !m.Applied {
			state, icon = "pending", "⏳"
			pending++
		}
		fmt.Printf("%-10d %s %-8s %s\n", m.Version, icon, state, m.Description)
	}

	fmt.Println()
	fmt.Printf("Applied: %d | Pending: %d | Total: %d\n", len(status)-pending, pending, len(status))
	if pending > 0 {
		fmt.Println("\nRun 'newsfacts migrate up' to apply pending migrations")
	}

	return nil
}
