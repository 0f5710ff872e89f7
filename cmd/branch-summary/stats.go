package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esmf-org/branch-summary/pkg/archive"
	"github.com/esmf-org/branch-summary/pkg/ident"
)

var (
	statsBranch     string
	statsIdentifier string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics for a branch or identifier",
	Long: `Report the most recently archived build identifier for a branch and the
build pass rate for an identifier, straight from the archive database.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsBranch, "branch", "develop",
		"branch to report the last archived identifier for")
	statsCmd.Flags().StringVar(&statsIdentifier, "identifier", "",
		"identifier to report build counts for (defaults to the branch's last)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	store := archive.NewStore(log, &cfg.Archive)
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting archive: %w", err)
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop archive")
		}
	}()

	identifier := statsIdentifier

	if identifier == "" {
		last, modified, err := store.FetchLastIdentifier(ctx, statsBranch)
		if err != nil {
			return fmt.Errorf("fetching last identifier for %s: %w", statsBranch, err)
		}

		fmt.Printf("branch:     %s\n", statsBranch)
		fmt.Printf("last hash:  %s\n", last)
		fmt.Printf("modified:   %s\n", modified.UTC().Format("2006-01-02 15:04:05"))

		identifier = last
	}

	passing, total, err := store.BuildCounts(ctx, identifier)
	if err != nil {
		return fmt.Errorf("fetching build counts for %s: %w", identifier, err)
	}

	if total == 0 {
		fmt.Printf("no archived rows for %s\n", identifier)

		return nil
	}

	fmt.Printf("identifier: %s\n", identifier)

	if suffix := ident.Identifier(identifier).GitSuffix(); suffix != "" {
		fmt.Printf("commit:     %s\n", suffix)
	}

	fmt.Printf("builds:     %d passing / %d failing of %d\n",
		passing, total-passing, total)
	fmt.Printf("pass rate:  %.1f%%\n", float64(passing)/float64(total)*100)

	return nil
}
