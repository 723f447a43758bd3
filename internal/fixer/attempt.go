// Package fixer drives the code-editing agent that patches a failing
// skill: it renders failure context into a repair prompt, keeps one
// editing session alive across attempts, and extracts a structured
// result from the agent's reply.
package fixer

// Attempt is the record of one refinement iteration, rendered into
// subsequent fix prompts so the agent does not repeat edits that did not
// help.
type Attempt struct {
	Number       int      `json:"attempt"`
	Files        []string `json:"files"`
	Result       string   `json:"result"`
	ErrorSummary string   `json:"error_summary,omitempty"`
}
