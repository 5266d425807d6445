package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/spec-kit/workflow-service/internal/persistence"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/seed"
	"github.com/spec-kit/workflow-service/internal/service"
)

type seedFlags struct {
	file   string
	dryRun bool
}

func newSeedCommand() *cobra.Command {
	flags := &seedFlags{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a process's stages and transitions from a YAML definition",
		Long: `Create the stages and transitions described by a YAML definition.

Examples:
  workflowctl seed --file seeds/support_process.yaml
  workflowctl seed --file seeds/support_process.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "definition file")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "validate the definition without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runSeed(cmd *cobra.Command, flags *seedFlags) error {
	def, err := seed.LoadFile(afero.NewOsFs(), flags.file)
	if err != nil {
		return err
	}
	if flags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: definition for process %s is valid\n", flags.file, def.ProcessID)
		return nil
	}

	ids, err := applySeed(cmd.Context(), def)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ids[name], name)
	}
	return nil
}

func applySeed(ctx context.Context, def *seed.Definition) (map[string]string, error) {
	rt, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	defer rt.logger.Sync() //nolint:errcheck

	if rt.cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, rt.cfg.Postgres, rt.logger)
	if err != nil {
		return nil, err
	}
	defer pg.Close()

	repos := repository.NewPostgresSet(pg.PoolHandle())
	stages := service.NewStageService(service.StageDependencies{
		StageRepo:  repos.Stages,
		TicketRepo: repos.Tickets,
		Transitions: service.NewTransitionService(service.TransitionDependencies{
			StageRepo:      repos.Stages,
			TransitionRepo: repos.Transitions,
			Transactor:     repos.Transactor,
			Logger:         rt.logger,
		}),
		Transactor: repos.Transactor,
		Logger:     rt.logger,
		Config:     rt.cfg.Workflow,
	})
	return seed.Apply(ctx, repos.Transactor, stages, def)
}
