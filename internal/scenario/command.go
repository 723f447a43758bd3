package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danshapiro/refinery/internal/platform"
)

// DefaultImage is the container image holding the scenario runner.
const DefaultImage = "as-demo-container:latest"

// VolumeMount is one extra bind mount for the test container.
type VolumeMount struct {
	Host      string
	Container string
	Mode      string
}

// CommandBuilder assembles docker run invocations for scenario runs.
// The container gets the credentials of every required platform, the
// plugin and library checkouts bind-mounted read-only, and a shared
// checkpoint directory that survives container exits.
type CommandBuilder struct {
	Registry *platform.Registry

	// Platform is the mode under test: a platform name, "cross-platform",
	// or "all".
	Platform string

	Image         string
	KeepContainer bool
	Network       string
	Workdir       string
	Mock          bool

	// ProjectRoot holds the secrets/ directory with host credentials.
	ProjectRoot string

	// CheckpointDir is bind-mounted at the same path inside the
	// container so checkpoint files written there persist across runs.
	CheckpointDir string

	ExtraEnv     map[string]string
	ExtraVolumes []VolumeMount
}

func (b *CommandBuilder) image() string {
	if b.Image == "" {
		return DefaultImage
	}
	return b.Image
}

func (b *CommandBuilder) checkpointDir() string {
	if b.CheckpointDir == "" {
		return "/tmp/checkpoints"
	}
	return b.CheckpointDir
}

// EnvArgs builds the -e flags: credentials for every required platform,
// mock-mode switches, and the platform under test.
func (b *CommandBuilder) EnvArgs() ([]string, error) {
	configs, err := b.Registry.Configs(b.Platform)
	if err != nil {
		return nil, err
	}

	var args []string
	for _, cfg := range configs {
		for _, v := range cfg.EnvVars {
			args = append(args, "-e", fmt.Sprintf("%s=%s", v, b.Registry.Getenv(v)))
		}
		if b.Mock && cfg.MockEnvVar != "" {
			args = append(args, "-e", cfg.MockEnvVar+"=true")
		}
	}
	args = append(args, "-e", "SKILL_TEST_PLATFORM="+b.Platform)

	keys := make([]string, 0, len(b.ExtraEnv))
	for k := range b.ExtraEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, b.ExtraEnv[k]))
	}

	return args, nil
}

// VolumeArgs builds the -v flags: credential files, each platform's
// plugin and library checkout, and the checkpoint directory. Mounts are
// skipped when the host path does not exist.
func (b *CommandBuilder) VolumeArgs() ([]string, error) {
	configs, err := b.Registry.Configs(b.Platform)
	if err != nil {
		return nil, err
	}

	var args []string

	if b.ProjectRoot != "" {
		secrets := filepath.Join(b.ProjectRoot, "secrets")
		if fileExists(filepath.Join(secrets, ".credentials.json")) {
			args = append(args, "-v",
				filepath.Join(secrets, ".credentials.json")+":/home/devuser/.claude/.credentials.json:ro")
		}
		if fileExists(filepath.Join(secrets, ".claude.json")) {
			args = append(args, "-v",
				filepath.Join(secrets, ".claude.json")+":/home/devuser/.claude/.claude.json:ro")
		}
	}

	for _, cfg := range configs {
		if pluginDir, ok := platform.FindPluginDir(cfg.SkillsDir, cfg.PluginName); ok {
			container := fmt.Sprintf("/home/devuser/.claude/plugins/cache/%s/%s/dev",
				cfg.PluginName, cfg.PluginName)
			args = append(args, "-v", pluginDir+":"+container+":ro")
		}
		if libDir, ok := platform.FindLibDir(cfg.SkillsDir, cfg.LibName); ok {
			args = append(args, "-v", libDir+":/opt/"+cfg.LibName+":ro")
		}
	}

	// Checkpoints persist across container runs. Creation is best-effort;
	// a missing directory only disables resumption.
	cpDir := b.checkpointDir()
	_ = os.MkdirAll(cpDir, 0o755)
	args = append(args, "-v", cpDir+":"+cpDir)

	for _, v := range b.ExtraVolumes {
		mode := v.Mode
		if mode == "" {
			mode = "rw"
		}
		args = append(args, "-v", fmt.Sprintf("%s:%s:%s", v.Host, v.Container, mode))
	}

	return args, nil
}

// LibInstallCommand builds the in-container pip installs for each
// platform's client library.
func (b *CommandBuilder) LibInstallCommand() (string, error) {
	configs, err := b.Registry.Configs(b.Platform)
	if err != nil {
		return "", err
	}
	installs := make([]string, 0, len(configs))
	for _, cfg := range configs {
		installs = append(installs, fmt.Sprintf("pip install -q -e /opt/%s 2>/dev/null", cfg.LibName))
	}
	return strings.Join(installs, "; "), nil
}

// SymlinkCommand builds the in-container commands that point each
// plugin's "latest" link at the mounted dev checkout instead of a
// baked-in release.
func (b *CommandBuilder) SymlinkCommand() (string, error) {
	configs, err := b.Registry.Configs(b.Platform)
	if err != nil {
		return "", err
	}
	cmds := make([]string, 0, len(configs))
	for _, cfg := range configs {
		cache := fmt.Sprintf("/home/devuser/.claude/plugins/cache/%s/%s", cfg.PluginName, cfg.PluginName)
		cmds = append(cmds, fmt.Sprintf("rm -f %s/*[0-9]* 2>/dev/null; ln -sf dev %s/latest 2>/dev/null", cache, cache))
	}
	return strings.Join(cmds, "; "), nil
}

// ScenarioPath returns the in-container path of a scenario file.
func (b *CommandBuilder) ScenarioPath(scenario string) (string, error) {
	subdir, err := b.Registry.ScenariosSubdir(b.Platform)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/workspace/scenarios/%s/%s.prompts", subdir, scenario), nil
}

// InnerCommand builds the bash command executed inside the container:
// library installs, symlink fixes, then the scenario runner itself.
func (b *CommandBuilder) InnerCommand(req Request) (string, error) {
	install, err := b.LibInstallCommand()
	if err != nil {
		return "", err
	}
	symlink, err := b.SymlinkCommand()
	if err != nil {
		return "", err
	}
	scenarioPath, err := b.ScenarioPath(req.Scenario)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(install)
	sb.WriteString("; ")
	sb.WriteString(symlink)
	sb.WriteString("; mkdir -p ")
	sb.WriteString(b.checkpointDir())
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("python /workspace/skill-test.py %s --model %s --judge-model %s",
		scenarioPath, req.Model, req.JudgeModel))

	if req.Conversation {
		sb.WriteString(" --conversation")
	}
	if req.FailFast {
		sb.WriteString(" --fail-fast")
	}
	if req.CheckpointFile != "" {
		sb.WriteString(" --checkpoint-file " + req.CheckpointFile)
	}
	if req.ForkFrom != nil {
		sb.WriteString(" --fork-from " + strconv.Itoa(*req.ForkFrom))
	}
	if req.PromptIndex != nil {
		sb.WriteString(" --prompt-index " + strconv.Itoa(*req.PromptIndex))
	}
	if req.FixContext {
		configs, err := b.Registry.Configs(b.Platform)
		if err != nil {
			return "", err
		}
		paths := make([]string, 0, len(configs))
		for _, cfg := range configs {
			paths = append(paths, cfg.SkillsDir)
		}
		sb.WriteString(" --fix-context " + strings.Join(paths, ","))
	}
	if req.Verbose {
		sb.WriteString(" --verbose")
	}
	if req.Mock {
		sb.WriteString(" --mock")
	}

	return sb.String(), nil
}

// RunArgs builds the full docker run argument list for a scenario run.
func (b *CommandBuilder) RunArgs(req Request) ([]string, error) {
	args := []string{"run"}
	if !b.KeepContainer {
		args = append(args, "--rm")
	}
	if b.Network != "" {
		args = append(args, "--network", b.Network)
	}
	if b.Workdir != "" {
		args = append(args, "-w", b.Workdir)
	}

	envArgs, err := b.EnvArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, envArgs...)

	volArgs, err := b.VolumeArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, volArgs...)

	inner, err := b.InnerCommand(req)
	if err != nil {
		return nil, err
	}
	args = append(args, "--entrypoint", "bash", b.image(), "-c", inner)

	return args, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
