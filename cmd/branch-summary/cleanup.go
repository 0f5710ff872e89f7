package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var forceCleanup bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete the archive database and the local workspace",
	Long: `Remove the state persisted by previous runs: the archive database and the
workspace holding the cloned artifact and summaries repositories. The next
run starts from fresh clones and an empty archive.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVarP(&forceCleanup, "force", "f", false, "Skip confirmation prompt")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets := make([]string, 0, 2)

	if cfg.Archive.Driver == "sqlite" && cfg.Archive.SQLite.Path != "" {
		if _, err := os.Stat(cfg.Archive.SQLite.Path); err == nil {
			targets = append(targets, cfg.Archive.SQLite.Path)
		}
	}

	if _, err := os.Stat(cfg.Global.Workspace); err == nil {
		targets = append(targets, cfg.Global.Workspace)
	}

	if len(targets) == 0 {
		log.Info("Nothing to clean up")

		return nil
	}

	fmt.Printf("\nTo be removed (%d):\n", len(targets))

	for _, target := range targets {
		fmt.Printf("  - %s\n", target)
	}

	fmt.Println()

	if !forceCleanup {
		fmt.Print("Are you sure you want to remove these resources? [y/N] ")

		reader := bufio.NewReader(os.Stdin)

		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			log.Info("Cleanup cancelled")

			return nil
		}
	}

	for _, target := range targets {
		log.WithField("path", target).Info("Removing")

		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing %s: %w", target, err)
		}
	}

	log.Info("Cleanup completed")

	return nil
}
