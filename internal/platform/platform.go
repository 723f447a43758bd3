// Package platform holds the registry of supported skill platforms and
// resolves host paths to their plugin and library checkouts. The registry
// is built once at startup and passed to the components that need it;
// nothing here consults process-global state after construction.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Modes that expand to every registered platform.
const (
	CrossPlatform = "cross-platform"
	All           = "all"
)

// Config describes one platform: where its skills checkout lives on the
// host and which credentials it needs.
type Config struct {
	Name string `yaml:"name" json:"name"`

	// SkillsPathEnv names the environment variable that overrides the
	// checkout location for this platform.
	SkillsPathEnv string `yaml:"skills_path_env" json:"skills_path_env"`

	// DefaultSubdir is the checkout directory name under the base dir,
	// used when SkillsPathEnv is not set.
	DefaultSubdir string `yaml:"default_subdir" json:"default_subdir"`

	PluginName string `yaml:"plugin_name" json:"plugin_name"`
	LibName    string `yaml:"lib_name" json:"lib_name"`
	LibPackage string `yaml:"lib_package" json:"lib_package"`

	// EnvVars lists the credential variables forwarded into the test
	// container. The first entry is the primary credential checked by
	// preflight validation.
	EnvVars []string `yaml:"env_vars" json:"env_vars"`

	MockEnvVar   string `yaml:"mock_env_var" json:"mock_env_var"`
	ScenariosDir string `yaml:"scenarios_dir" json:"scenarios_dir"`

	// SkillsDir is the resolved host checkout path. Populated during
	// registry construction when empty.
	SkillsDir string `yaml:"skills_dir,omitempty" json:"skills_dir,omitempty"`
}

// RegistryOptions configures registry construction.
type RegistryOptions struct {
	// BaseDir is the directory holding platform checkouts. Defaults to
	// $SKILLS_BASE_PATH, then the parent of the working directory.
	BaseDir string

	// Lookup resolves environment variables. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (o *RegistryOptions) applyDefaults() {
	if o.Lookup == nil {
		o.Lookup = os.LookupEnv
	}
	if o.BaseDir == "" {
		if v, ok := o.Lookup("SKILLS_BASE_PATH"); ok && strings.TrimSpace(v) != "" {
			o.BaseDir = v
		} else if wd, err := os.Getwd(); err == nil {
			o.BaseDir = filepath.Dir(wd)
		} else {
			o.BaseDir = "."
		}
	}
}

// Registry is the immutable set of known platforms with resolved paths.
type Registry struct {
	platforms map[string]Config
	order     []string
	lookup    func(string) (string, bool)
}

// NewRegistry builds a registry for the built-in platforms.
func NewRegistry(opts RegistryOptions) *Registry {
	return newRegistry(builtinPlatforms(), opts)
}

func newRegistry(configs []Config, opts RegistryOptions) *Registry {
	opts.applyDefaults()
	r := &Registry{
		platforms: make(map[string]Config, len(configs)),
		lookup:    opts.Lookup,
	}
	for _, cfg := range configs {
		if cfg.SkillsDir == "" {
			cfg.SkillsDir = resolveSkillsDir(cfg, opts)
		}
		r.platforms[cfg.Name] = cfg
		r.order = append(r.order, cfg.Name)
	}
	return r
}

func resolveSkillsDir(cfg Config, opts RegistryOptions) string {
	if cfg.SkillsPathEnv != "" {
		if v, ok := opts.Lookup(cfg.SkillsPathEnv); ok {
			return v
		}
	}
	return filepath.Join(opts.BaseDir, cfg.DefaultSubdir)
}

func builtinPlatforms() []Config {
	return []Config{
		{
			Name:          "confluence",
			SkillsPathEnv: "CONFLUENCE_SKILLS_PATH",
			DefaultSubdir: "Confluence-Assistant-Skills",
			PluginName:    "confluence-assistant-skills",
			LibName:       "confluence-as",
			LibPackage:    "confluence_as",
			EnvVars:       []string{"CONFLUENCE_API_TOKEN", "CONFLUENCE_EMAIL", "CONFLUENCE_SITE_URL"},
			MockEnvVar:    "CONFLUENCE_MOCK_MODE",
			ScenariosDir:  "confluence",
		},
		{
			Name:          "jira",
			SkillsPathEnv: "JIRA_SKILLS_PATH",
			DefaultSubdir: "Jira-Assistant-Skills",
			PluginName:    "jira-assistant-skills",
			LibName:       "jira-as",
			LibPackage:    "jira_as",
			EnvVars:       []string{"JIRA_API_TOKEN", "JIRA_EMAIL", "JIRA_SITE_URL"},
			MockEnvVar:    "JIRA_MOCK_MODE",
			ScenariosDir:  "jira",
		},
		{
			Name:          "splunk",
			SkillsPathEnv: "SPLUNK_SKILLS_PATH",
			DefaultSubdir: "Splunk-Assistant-Skills",
			PluginName:    "splunk-assistant-skills",
			LibName:       "splunk-as",
			LibPackage:    "splunk_as",
			EnvVars:       []string{"SPLUNK_URL", "SPLUNK_USERNAME", "SPLUNK_PASSWORD", "SPLUNK_HEC_TOKEN"},
			MockEnvVar:    "SPLUNK_MOCK_MODE",
			ScenariosDir:  "splunk",
		},
	}
}

// Lookup returns the config for a single platform name.
func (r *Registry) Lookup(name string) (Config, bool) {
	cfg, ok := r.platforms[name]
	return cfg, ok
}

// Names returns all platform names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Required expands a platform mode into the list of platforms it needs.
// Cross-platform scenarios exercise every registered platform.
func (r *Registry) Required(mode string) ([]string, error) {
	if mode == CrossPlatform || mode == All {
		return r.Names(), nil
	}
	if _, ok := r.platforms[mode]; ok {
		return []string{mode}, nil
	}
	return nil, fmt.Errorf("unknown platform: %s", mode)
}

// Configs returns the resolved configs for a platform mode, in
// registration order.
func (r *Registry) Configs(mode string) ([]Config, error) {
	names, err := r.Required(mode)
	if err != nil {
		return nil, err
	}
	out := make([]Config, 0, len(names))
	for _, name := range names {
		out = append(out, r.platforms[name])
	}
	return out, nil
}

// ScenariosSubdir returns the scenario directory name for a mode.
func (r *Registry) ScenariosSubdir(mode string) (string, error) {
	if mode == CrossPlatform || mode == All {
		return CrossPlatform, nil
	}
	cfg, ok := r.platforms[mode]
	if !ok {
		return "", fmt.Errorf("unknown platform: %s", mode)
	}
	return cfg.ScenariosDir, nil
}

// Getenv resolves an environment variable through the registry's lookup,
// returning "" when unset.
func (r *Registry) Getenv(name string) string {
	v, _ := r.lookup(name)
	return v
}

// FindPluginDir locates the plugin directory within a skills checkout.
// Checks plugins/<name> first, then <name> at the checkout root.
func FindPluginDir(skillsDir, pluginName string) (string, bool) {
	p := filepath.Join(skillsDir, "plugins", pluginName)
	if dirExists(p) {
		return p, true
	}
	p = filepath.Join(skillsDir, pluginName)
	if dirExists(p) {
		return p, true
	}
	return "", false
}

// FindLibDir locates the client library directory within a skills checkout.
func FindLibDir(skillsDir, libName string) (string, bool) {
	p := filepath.Join(skillsDir, libName)
	if dirExists(p) {
		return p, true
	}
	return "", false
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
