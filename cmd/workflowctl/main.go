package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/observability"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "workflowctl",
		Short:         "Operate the workflow service database and credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(), newSeedCommand(), newTokenCommand())
	return root
}

// cliEnv holds what every subcommand loads first.
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadRuntime() (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &cliEnv{cfg: cfg, logger: logger}, nil
}
