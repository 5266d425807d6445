package main

import (
	"context"
	"errors"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/spec-kit/workflow-service/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
	return cmd
}

func runMigrate(ctx context.Context, dir string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.logger.Sync() //nolint:errcheck

	if rt.cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	if dir == "" {
		dir = rt.cfg.Postgres.MigrationsDir
	}

	pg, err := persistence.NewPostgres(ctx, rt.cfg.Postgres, rt.logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	return persistence.RunMigrations(ctx, pg.PoolHandle(), afero.NewOsFs(), dir, rt.logger)
}
