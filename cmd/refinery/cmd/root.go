package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command. Subcommands register themselves from
// their file's init.
var rootCmd = &cobra.Command{
	Use:   "refinery",
	Short: "Iteratively test and fix Assistant Skills",
	Long: `refinery drives a test-and-fix loop over Assistant Skills scenarios:
it runs a scenario's prompts against a platform plugin inside the demo
container, and on failure hands the failure context to an editing agent
that patches the skill files before the next attempt. Passing steps are
checkpointed so later attempts fork from the last known-good step
instead of replaying the whole scenario.

The sandbox subcommands (seed, cleanup, events) manage the demo data
the scenarios run against, either on live sites or against the local
mock state.`,
	// SilenceUsage keeps argument errors from dumping the full help text.
	SilenceUsage: true,
}

// Execute runs the root command. Called by main.main; cobra prints the
// error, we just exit non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
