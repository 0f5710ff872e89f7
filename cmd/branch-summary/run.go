package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/esmf-org/branch-summary/pkg/archive"
	"github.com/esmf-org/branch-summary/pkg/config"
	"github.com/esmf-org/branch-summary/pkg/gitcli"
	"github.com/esmf-org/branch-summary/pkg/locate"
	"github.com/esmf-org/branch-summary/pkg/processor"
	"github.com/esmf-org/branch-summary/pkg/report"
	"github.com/esmf-org/branch-summary/pkg/upload"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one summary round",
	Long: `Process every configured (machine, branch) pair: discover recent build
identifiers, archive their test results, and commit rendered reports to the
summaries repository, ending with a single push.`,
	RunE: runSummaries,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSummaries(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The run log is committed alongside the reports at the end of the
	// round, so it is written in addition to stdout.
	logFile, err := os.OpenFile(cfg.Global.LogFile,
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	defer func() { _ = logFile.Close() }()

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	artifacts := gitcli.New(log, cfg.Artifacts.Path)
	summaries := gitcli.New(log, cfg.Summaries.Path)

	if cfg.Artifacts.URL != "" {
		if err := artifacts.CloneShallow(ctx, cfg.Artifacts.URL); err != nil {
			return fmt.Errorf("cloning artifacts repo: %w", err)
		}
	}

	if cfg.Summaries.URL != "" {
		if err := summaries.CloneShallow(ctx, cfg.Summaries.URL); err != nil {
			return fmt.Errorf("cloning summaries repo: %w", err)
		}
	}

	store := archive.NewStore(log, &cfg.Archive)
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting archive: %w", err)
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop archive")
		}
	}()

	gateway := &processor.Gateway{
		Artifacts: artifacts,
		Summaries: summaries,
		Archive:   store,
		Renderer:  report.New(log),
		Locator:   locate.New(log),
	}

	if cfg.Reports.S3 != nil && cfg.Reports.S3.Enabled {
		mirror, err := upload.NewS3Mirror(log, cfg.Reports.S3)
		if err != nil {
			return fmt.Errorf("creating s3 mirror: %w", err)
		}

		gateway.Mirror = mirror
	}

	return processor.New(log, cfg, gateway).Run(ctx)
}

// loadConfig loads and validates the configuration file from --config.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
