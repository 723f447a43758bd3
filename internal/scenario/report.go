// Package scenario runs behavioral test scenarios against a platform
// inside the test container and decodes their structured results.
package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/danshapiro/refinery/internal/gitctx"
)

// StatusAllPassed is the status the container runner reports when every
// prompt in the scenario passed.
const StatusAllPassed = "all_passed"

// StepFailure describes the first failing prompt of a run. Assertion and
// grading fields are kept loosely typed; the runner emits them in
// whatever shape the judge produced, and they are rendered verbatim into
// the fix prompt.
type StepFailure struct {
	PromptIndex          int    `json:"prompt_index"`
	PromptText           string `json:"prompt_text"`
	ToolsCalled          any    `json:"tools_called"`
	ToolAssertions       any    `json:"tool_assertions"`
	TextAssertions       any    `json:"text_assertions"`
	Quality              any    `json:"quality"`
	ToolAccuracy         any    `json:"tool_accuracy"`
	Reasoning            string `json:"reasoning"`
	RefinementSuggestion string `json:"refinement_suggestion"`
}

// Report is the structured result a fix-context run prints on stdout:
// either status "all_passed", or a failure plus the supporting material
// the fix agent needs.
type Report struct {
	Status        string            `json:"status"`
	Failure       *StepFailure      `json:"failure,omitempty"`
	RelevantFiles map[string]string `json:"relevant_files,omitempty"`
	GitHistory    []gitctx.Commit   `json:"git_history,omitempty"`
}

// AllPassed reports whether the run completed with every prompt passing.
func (r *Report) AllPassed() bool {
	return r != nil && r.Status == StatusAllPassed
}

// Result is the outcome of one scenario execution.
type Result struct {
	Passed bool

	// Report holds failure context when the run failed and produced a
	// parseable result. Nil on pass, timeout, or unparseable output.
	Report *Report

	// Detail explains failures that carry no Report.
	Detail string

	ExitCode int
}

// FormatValue renders a loosely typed report field for display: strings
// pass through, everything else becomes compact JSON.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
