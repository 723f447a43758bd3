package fixer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/danshapiro/refinery/internal/platform"
	"github.com/danshapiro/refinery/internal/scenario"
)

// maxFileExcerpt caps each relevant file's contribution to the prompt so
// a handful of large sources cannot crowd out the failure details.
const maxFileExcerpt = 3000

const taskTrailer = `

## Your Task

Analyze the failure and make targeted changes to fix it. Focus on:

1. **If tool selection is wrong**: Update the skill description to better trigger on this type of query
2. **If tool worked but output is wrong**: Check if the skill examples or instructions need improvement
3. **If there's an API error**: Check the library code for bugs

Make minimal, focused changes. Edit the actual files - do not just describe what to change.

After making changes, provide a brief summary of what you changed and why.
`

// buildPrompt renders the complete repair request: failure details, where
// the relevant sources live, excerpts of their contents, recent history,
// and what earlier attempts in this session already tried.
func buildPrompt(report *scenario.Report, mode string, configs []platform.Config, history []Attempt, historyLimit int) string {
	f := report.Failure

	var b strings.Builder
	fmt.Fprintf(&b, "You are a skill refinement agent. A %s Assistant Skill test has failed and you need to fix it.\n\n",
		displayName(mode))

	b.WriteString("## Failure Details\n\n")
	fmt.Fprintf(&b, "**Prompt that failed:**\n%s\n\n", f.PromptText)
	fmt.Fprintf(&b, "**Tools called:** %s\n\n", scenario.FormatValue(f.ToolsCalled))
	fmt.Fprintf(&b, "**Tool Assertions:**\n%s\n\n", indentJSON(f.ToolAssertions))
	fmt.Fprintf(&b, "**Text Assertions:**\n%s\n\n", indentJSON(f.TextAssertions))
	fmt.Fprintf(&b, "**Quality Rating:** %s\n", scenario.FormatValue(f.Quality))
	fmt.Fprintf(&b, "**Tool Accuracy:** %s\n\n", scenario.FormatValue(f.ToolAccuracy))
	fmt.Fprintf(&b, "**Judge Reasoning:**\n%s\n\n", f.Reasoning)
	fmt.Fprintf(&b, "**Refinement Suggestion:**\n%s\n\n", f.RefinementSuggestion)

	b.WriteString("## Relevant Files\n\n")
	for _, cfg := range configs {
		fmt.Fprintf(&b, "**%s skill files:** %s/%s/skills/\n", displayName(cfg.Name), cfg.SkillsDir, cfg.PluginName)
		fmt.Fprintf(&b, "**%s library files:** %s/%s/src/%s/\n", displayName(cfg.Name), cfg.SkillsDir, cfg.LibName, cfg.LibPackage)
	}

	b.WriteString("\nCurrent relevant file contents:\n")
	for _, path := range sortedKeys(report.RelevantFiles) {
		fmt.Fprintf(&b, "\n### %s\n```\n%s\n```\n", path, excerpt(report.RelevantFiles[path], maxFileExcerpt))
	}

	if len(report.GitHistory) > 0 {
		b.WriteString("\n## Recent Git History\n")
		for _, c := range report.GitHistory {
			fmt.Fprintf(&b, "- %s: %s\n", c.SHA, c.Message)
		}
	}

	if len(history) > 0 {
		b.WriteString("\n## Previous Fix Attempts (this session)\n")
		rendered := history
		if historyLimit > 0 && len(rendered) > historyLimit {
			fmt.Fprintf(&b, "(%d earlier attempts omitted)\n", len(rendered)-historyLimit)
			rendered = rendered[len(rendered)-historyLimit:]
		}
		for _, h := range rendered {
			fmt.Fprintf(&b, "- Attempt %d: ", h.Number)
			if len(h.Files) > 0 {
				fmt.Fprintf(&b, "Changed %s, ", strings.Join(h.Files, ", "))
			}
			fmt.Fprintf(&b, "Result: %s\n", h.Result)
			if h.ErrorSummary != "" {
				fmt.Fprintf(&b, "  Error: %s\n", h.ErrorSummary)
			}
		}
	}

	b.WriteString(taskTrailer)
	return b.String()
}

// displayName renders a platform mode for prose: "jira" becomes "Jira",
// "cross-platform" becomes "Cross-Platform".
func displayName(mode string) string {
	parts := strings.Split(mode, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, "-")
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// excerpt returns a prefix of s at most max bytes long, cut on a rune
// boundary.
func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// tail returns a suffix of s at most max bytes long, starting on a rune
// boundary.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := len(s) - max
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
