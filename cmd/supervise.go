package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pressfeed/harvester/internal/clock/system"
	"github.com/pressfeed/harvester/internal/config"
	"github.com/pressfeed/harvester/internal/logging"
	"github.com/pressfeed/harvester/internal/metrics"
	"github.com/pressfeed/harvester/internal/supervisor"
)

func newSuperviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supervise",
		Short: "Keep a crawl child process alive",
		Long: `Spawns the crawl command as a child process and restarts it whenever
it exits or its progress log stops advancing. Liveness is inferred purely
from the log file's modification time.`,
		RunE: runSupervise,
	}
}

func runSupervise(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := buildSupervisorLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}
	args := []string{"crawl"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	sup, err := supervisor.New(supervisor.Config{
		ProgressPath:       cfg.ProgressPath(),
		PollInterval:       cfg.PollInterval(),
		StalenessThreshold: cfg.StalenessThreshold(),
		TerminateGrace:     cfg.TerminateGrace(),
	}, &supervisor.CommandLauncher{
		Path:   exe,
		Args:   args,
		Logger: logger.Named("launcher"),
	}, system.New(), logger.Named("supervisor"))
	if err != nil {
		return err
	}

	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildSupervisorLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Supervisor.Log != "" {
		return logging.NewWithFile(cfg.Logging.Development, cfg.Supervisor.Log)
	}
	return buildLogger(cfg)
}
