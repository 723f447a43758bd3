package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danshapiro/refinery/internal/platform"
	"github.com/danshapiro/refinery/internal/scenario"
)

var (
	scenariosPlatform string
	scenariosRoot     string
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the scenarios available per platform",
	Long: `List every *.prompts file under the scenarios tree, grouped by
platform. Scenario names are relative to the platform's scenario
directory, without the extension.`,
	Args: cobra.NoArgs,
	RunE: runScenarios,
}

func init() {
	rootCmd.AddCommand(scenariosCmd)

	scenariosCmd.Flags().StringVar(&scenariosPlatform, "platform", "", "List only this platform mode")
	scenariosCmd.Flags().StringVar(&scenariosRoot, "scenarios-root", "scenarios", "Host scenarios directory")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	reg := platform.NewRegistry(platform.RegistryOptions{})

	modes := []string{scenariosPlatform}
	if scenariosPlatform == "" {
		modes = append(reg.Names(), platform.CrossPlatform)
	}

	for _, mode := range modes {
		names, err := scenario.List(scenariosRoot, reg, mode)
		if err != nil {
			return err
		}
		fmt.Printf("%s:\n", mode)
		if len(names) == 0 {
			fmt.Println("  (none)")
			continue
		}
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}
