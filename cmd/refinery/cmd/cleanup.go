package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danshapiro/refinery/internal/sandbox"
)

var (
	cleanupSpace     string
	cleanupKeepLabel string
	cleanupDryRun    bool
	cleanupMock      bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete scratch pages from the demo space",
	Long: `Delete every page in the demo space that does not carry the preserve
label, deepest pages first so parents outlive their children. Preserved
pages keep their content but lose their footer comments, which scenario
runs tend to accumulate.

With --dry-run nothing is deleted and the pass only reports what would
happen. With --mock the cleanup runs against the local mock state.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().StringVar(&cleanupSpace, "space", "", "Space key (default $DEMO_SPACE_KEY or CDEMO)")
	cleanupCmd.Flags().StringVar(&cleanupKeepLabel, "keep-label", defaultKeepLabel(), "Label marking pages to preserve")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Report what would be deleted without deleting")
	cleanupCmd.Flags().BoolVar(&cleanupMock, "mock", false, "Clean the local mock state instead of a live site")
}

func defaultKeepLabel() string {
	if v, ok := os.LookupEnv(sandbox.EnvPreserveLabel); ok && v != "" {
		return v
	}
	return sandbox.DefaultPreserveLabel
}

func runCleanup(cmd *cobra.Command, args []string) error {
	client, cfg, err := contentClient(cleanupMock, cleanupSpace)
	if err != nil {
		return err
	}

	cleaner := &sandbox.Cleaner{
		Client:        client,
		SpaceKey:      cfg.SpaceKey,
		PreserveLabel: cleanupKeepLabel,
		SiteURL:       cfg.SiteURL,
		DryRun:        cleanupDryRun,
	}
	if _, err := cleaner.Clean(cmdContext(cmd)); err != nil {
		fmt.Printf("Error during cleanup: %v\n", err)
		os.Exit(1)
	}
	return nil
}
