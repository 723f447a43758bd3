package fixer

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// pathPattern matches skill and library file paths the agent tends to
// mention when describing its edits.
var pathPattern = regexp.MustCompile(`(?:skills/|lib/|src/)[^\s'"]+\.(?:md|py)`)

// DefaultFilePatterns admits everything pathPattern can produce. Narrow
// the set to restrict which mentions count as changes.
var DefaultFilePatterns = []string{"{skills,lib,src}/**/*.{md,py}"}

// ExtractChangedFiles scans the agent's free-text reply for file paths it
// claims to have edited. This is advisory telemetry: mentions are not
// verified against the filesystem, and the real success signal is the
// next scenario run. Returns paths in first-mention order, deduplicated,
// filtered by the glob patterns.
func ExtractChangedFiles(reply string, patterns []string) []string {
	if !mentionsEdits(reply) {
		return nil
	}
	if len(patterns) == 0 {
		patterns = DefaultFilePatterns
	}

	seen := map[string]bool{}
	var files []string
	for _, f := range pathPattern.FindAllString(reply, -1) {
		if seen[f] {
			continue
		}
		seen[f] = true
		if matchesAny(f, patterns) {
			files = append(files, f)
		}
	}
	return files
}

func mentionsEdits(reply string) bool {
	if strings.Contains(reply, "Edit") {
		return true
	}
	lower := strings.ToLower(reply)
	return strings.Contains(lower, "edited") || strings.Contains(lower, "updated")
}

func matchesAny(file string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, file); err == nil && ok {
			return true
		}
	}
	return false
}
