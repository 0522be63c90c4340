package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/witw-events/server/internal/storage/postgres"
)

type migrateOptions struct {
	databaseURL    string
	migrationsPath string
	steps          int
}

func newMigrateCommand() *cobra.Command {
	opts := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long: `Apply or roll back the PostgreSQL schema. Migrations are embedded in the
binary; --migrations-path points at a directory of .sql files instead.`,
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL (default: DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.migrationsPath, "migrations-path", os.Getenv("MIGRATIONS_PATH"), "migrations directory (default: embedded)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireURL(); err != nil {
				return err
			}
			if err := postgres.MigrateUp(opts.databaseURL, opts.migrationsPath); err != nil {
				return err
			}
			return opts.printVersion(cmd)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireURL(); err != nil {
				return err
			}
			if opts.steps <= 0 {
				return errors.New("--steps must be positive")
			}
			if err := postgres.MigrateDown(opts.databaseURL, opts.migrationsPath, opts.steps); err != nil {
				return err
			}
			return opts.printVersion(cmd)
		},
	}
	down.Flags().IntVar(&opts.steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireURL(); err != nil {
				return err
			}
			return opts.printVersion(cmd)
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func (o *migrateOptions) requireURL() error {
	if o.databaseURL == "" {
		return errors.New("database URL is required (--database-url or DATABASE_URL)")
	}
	return nil
}

func (o *migrateOptions) printVersion(cmd *cobra.Command) error {
	version, dirty, err := postgres.MigrationVersion(o.databaseURL, o.migrationsPath)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", version, state)
	return nil
}
