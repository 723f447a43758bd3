package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danshapiro/refinery/internal/platform"
)

var validatePlatform string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that a platform's skills checkout is usable",
	Long: `Check the skills checkout for every platform a mode requires: the
checkout directory and plugin must exist, and the client library and
credential environment variables are reported when missing. Errors
block a run; warnings do not (mock runs need neither credentials nor
the client library).`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validatePlatform, "platform", "", "Platform mode to check (confluence, jira, splunk, cross-platform, all)")
	validateCmd.MarkFlagRequired("platform")
}

func runValidate(cmd *cobra.Command, args []string) error {
	reg := platform.NewRegistry(platform.RegistryOptions{})

	res, err := reg.Validate(validatePlatform)
	if err != nil {
		return err
	}

	fmt.Printf("Checking platform setup: %s\n", res.Platform)
	for _, e := range res.Errors {
		fmt.Printf("  Error: %s\n", e)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  Warning: %s\n", w)
	}
	if !res.Valid {
		fmt.Println("Setup is not runnable")
		os.Exit(1)
	}
	fmt.Println("Setup OK")
	return nil
}
