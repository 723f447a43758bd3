package scenario

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danshapiro/refinery/internal/platform"
)

// List returns the scenario names available for a platform mode under
// the host scenarios root, sorted. Names are relative to the mode's
// scenario directory, without the .prompts extension.
func List(root string, reg *platform.Registry, mode string) ([]string, error) {
	subdir, err := reg.ScenariosSubdir(mode)
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(root), path.Join(subdir, "**", "*.prompts"))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var names []string
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(m, subdir+"/"), ".prompts")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HostPath returns where a scenario file lives on the host.
func HostPath(root string, reg *platform.Registry, mode, name string) (string, error) {
	subdir, err := reg.ScenariosSubdir(mode)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, subdir, name+".prompts"), nil
}
