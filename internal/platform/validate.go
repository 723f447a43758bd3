package platform

import (
	"fmt"
	"os"
)

// Validation reports whether a platform mode is runnable on this host.
// Errors block a run; warnings do not.
type Validation struct {
	Platform string   `json:"platform"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks that every platform required by mode has a usable
// checkout. A missing checkout or plugin is an error; a missing client
// library or unset credential is only a warning since mock runs need
// neither.
func (r *Registry) Validate(mode string) (Validation, error) {
	result := Validation{Platform: mode, Valid: true}

	configs, err := r.Configs(mode)
	if err != nil {
		return Validation{}, err
	}

	for _, cfg := range configs {
		if _, err := os.Stat(cfg.SkillsDir); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: skills path does not exist: %s", cfg.Name, cfg.SkillsDir))
			result.Valid = false
			continue
		}

		if _, ok := FindPluginDir(cfg.SkillsDir, cfg.PluginName); !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: plugin not found in %s", cfg.Name, cfg.SkillsDir))
			result.Valid = false
		}

		if _, ok := FindLibDir(cfg.SkillsDir, cfg.LibName); !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: library not found at %s/%s", cfg.Name, cfg.SkillsDir, cfg.LibName))
		}

		for _, v := range cfg.EnvVars {
			if r.Getenv(v) == "" {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: environment variable %s not set", cfg.Name, v))
			}
		}
	}

	return result, nil
}
