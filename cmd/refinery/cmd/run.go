package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/danshapiro/refinery/internal/fixer"
	"github.com/danshapiro/refinery/internal/platform"
	"github.com/danshapiro/refinery/internal/refine"
	"github.com/danshapiro/refinery/internal/scenario"
)

var (
	runScenario      string
	runPlatform      string
	runMaxAttempts   int
	runModel         string
	runJudgeModel    string
	runMock          bool
	runVerbose       bool
	runConfigPath    string
	runPlatformsPath string
	runImage         string
	runTimeout       time.Duration
	runRunsRoot      string
	runCheckpointDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the refinement loop for one scenario",
	Long: `Run a scenario's prompts against a platform plugin, and on failure
feed the failure context to the editing agent for a fix, up to
--max-attempts times. Exit code 0 means the scenario eventually passed.

Values from --config are used for any flag not set explicitly on the
command line.

Examples:
    refinery run --scenario page --platform confluence
    refinery run --scenario issue --platform jira --max-attempts 5 --mock
    refinery run --scenario incident-response --platform cross-platform`,
	Args: cobra.NoArgs,
	RunE: runRefinement,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Scenario name (e.g., page, issue, sre)")
	runCmd.Flags().StringVar(&runPlatform, "platform", "", "Platform to test (confluence, jira, splunk, cross-platform, all)")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", refine.DefaultMaxAttempts, "Maximum fix attempts before giving up")
	runCmd.Flags().StringVar(&runModel, "model", refine.DefaultModel, "Model for running prompts")
	runCmd.Flags().StringVar(&runJudgeModel, "judge-model", refine.DefaultJudgeModel, "Model for the LLM judge")
	runCmd.Flags().BoolVar(&runMock, "mock", false, "Enable mock mode for testing")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose output")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Run configuration file (YAML)")
	runCmd.Flags().StringVar(&runPlatformsPath, "platforms", "", "Platform registry file (YAML)")
	runCmd.Flags().StringVar(&runImage, "image", "", "Container image for the scenario runner")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Timeout for one scenario execution")
	runCmd.Flags().StringVar(&runRunsRoot, "runs-root", "", "Directory holding per-run artifact directories")
	runCmd.Flags().StringVar(&runCheckpointDir, "checkpoint-dir", "", "Directory holding step checkpoints")
}

// runConfig is the --config file. Every key mirrors a flag; explicit
// flags win over file values.
type runConfig struct {
	Scenario    string `yaml:"scenario,omitempty"`
	Platform    string `yaml:"platform,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
	Model       string `yaml:"model,omitempty"`
	JudgeModel  string `yaml:"judge_model,omitempty"`
	Mock        bool   `yaml:"mock,omitempty"`
	Verbose     bool   `yaml:"verbose,omitempty"`

	Platforms     string `yaml:"platforms,omitempty"`
	Image         string `yaml:"image,omitempty"`
	Network       string `yaml:"network,omitempty"`
	ProjectRoot   string `yaml:"project_root,omitempty"`
	ScenariosRoot string `yaml:"scenarios_root,omitempty"`
	TimeoutMS     int    `yaml:"timeout_ms,omitempty"`
	RunsRoot      string `yaml:"runs_root,omitempty"`
	CheckpointDir string `yaml:"checkpoint_dir,omitempty"`
}

func loadRunConfig(path string) (runConfig, error) {
	var cfg runConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func runRefinement(cmd *cobra.Command, args []string) error {
	var cfg runConfig
	if runConfigPath != "" {
		var err error
		if cfg, err = loadRunConfig(runConfigPath); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	scenarioName := pickString(flags, "scenario", runScenario, cfg.Scenario)
	platformMode := pickString(flags, "platform", runPlatform, cfg.Platform)
	maxAttempts := pickInt(flags, "max-attempts", runMaxAttempts, cfg.MaxAttempts)
	model := pickString(flags, "model", runModel, cfg.Model)
	judgeModel := pickString(flags, "judge-model", runJudgeModel, cfg.JudgeModel)
	mock := pickBool(flags, "mock", runMock, cfg.Mock)
	verbose := pickBool(flags, "verbose", runVerbose, cfg.Verbose)
	platformsPath := pickString(flags, "platforms", runPlatformsPath, cfg.Platforms)
	image := pickString(flags, "image", runImage, cfg.Image)
	runsRoot := pickString(flags, "runs-root", runRunsRoot, cfg.RunsRoot)
	checkpointDir := pickString(flags, "checkpoint-dir", runCheckpointDir, cfg.CheckpointDir)

	timeout := runTimeout
	if !flags.Changed("timeout") && cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	scenariosRoot := cfg.ScenariosRoot
	if scenariosRoot == "" {
		scenariosRoot = "scenarios"
	}

	if scenarioName == "" {
		return fmt.Errorf("--scenario is required")
	}
	if platformMode == "" {
		return fmt.Errorf("--platform is required")
	}

	reg, err := buildRegistry(platformsPath)
	if err != nil {
		return err
	}

	names, err := reg.Required(platformMode)
	if err != nil {
		return err
	}
	for _, name := range names {
		pc, _ := reg.Lookup(name)
		if _, ok := platform.FindPluginDir(pc.SkillsDir, pc.PluginName); !ok {
			fmt.Printf("Error: %s plugin not found at %s\n", titleCase(name), pc.SkillsDir)
			fmt.Printf("  Expected: %s/plugins/%s or %s/%s\n", pc.SkillsDir, pc.PluginName, pc.SkillsDir, pc.PluginName)
			os.Exit(1)
		}
	}
	for _, name := range names {
		pc, _ := reg.Lookup(name)
		if len(pc.EnvVars) > 0 && reg.Getenv(pc.EnvVars[0]) == "" {
			fmt.Printf("Warning: %s not set for %s\n", pc.EnvVars[0], name)
		}
	}

	exec := &scenario.Executor{
		Registry:      reg,
		Image:         image,
		Network:       cfg.Network,
		ProjectRoot:   cfg.ProjectRoot,
		CheckpointDir: checkpointDir,
		Timeout:       timeout,
	}
	fix := &fixer.SessionManager{
		Registry:     reg,
		Model:        model,
		HistoryLimit: 10,
	}

	opts := refine.Options{
		Scenario:      scenarioName,
		Platform:      platformMode,
		MaxAttempts:   maxAttempts,
		Model:         model,
		JudgeModel:    judgeModel,
		Mock:          mock,
		Verbose:       verbose,
		CheckpointDir: checkpointDir,
		ScenariosRoot: scenariosRoot,
	}
	if runsRoot != "" {
		opts.RunID = ulid.Make().String()
		opts.RunDir = filepath.Join(runsRoot, opts.RunID)
	}

	eng, err := refine.New(opts, reg, exec, fix)
	if err != nil {
		return err
	}

	res, err := eng.Run(cmdContext(cmd))
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		os.Exit(1)
	}
	return nil
}

func buildRegistry(platformsPath string) (*platform.Registry, error) {
	if platformsPath != "" {
		return platform.LoadRegistry(platformsPath, platform.RegistryOptions{})
	}
	return platform.NewRegistry(platform.RegistryOptions{}), nil
}

func pickString(flags *pflag.FlagSet, name, flagVal, cfgVal string) string {
	if flags.Changed(name) || cfgVal == "" {
		return flagVal
	}
	return cfgVal
}

func pickInt(flags *pflag.FlagSet, name string, flagVal, cfgVal int) int {
	if flags.Changed(name) || cfgVal == 0 {
		return flagVal
	}
	return cfgVal
}

func pickBool(flags *pflag.FlagSet, name string, flagVal, cfgVal bool) bool {
	if flags.Changed(name) {
		return flagVal
	}
	return flagVal || cfgVal
}

// titleCase uppercases the first letter of each word, where words are
// runs of letters. "cross-platform" becomes "Cross-Platform".
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		}
	}
	return b.String()
}
