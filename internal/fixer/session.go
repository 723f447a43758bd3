package fixer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/danshapiro/refinery/internal/gitctx"
	"github.com/danshapiro/refinery/internal/platform"
	"github.com/danshapiro/refinery/internal/scenario"
)

// DefaultTimeout caps one fix-agent invocation. Kept shorter than the
// scenario timeout; an agent that needs longer than this is stuck.
const DefaultTimeout = 5 * time.Minute

const defaultSummaryLen = 500

// recentHistoryDepth bounds the git log supplement added when the
// scenario runner did not provide one.
const recentHistoryDepth = 5

// SessionManager invokes the code-editing agent and threads one editing
// session through repeated attempts for the same scenario.
type SessionManager struct {
	Registry *platform.Registry

	// CLIPath is the editing agent binary. Defaults to "claude".
	CLIPath string

	// Model defaults to "sonnet".
	Model string

	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration

	// WorkDir is the agent's working directory. Defaults to the first
	// required platform's skills checkout.
	WorkDir string

	// HistoryLimit caps how many prior attempts are rendered into the
	// prompt. Zero means render all.
	HistoryLimit int

	// FilePatterns filters changed-file extraction. Defaults to
	// DefaultFilePatterns.
	FilePatterns []string

	// Stderr receives verbose diagnostics. Defaults to os.Stderr.
	Stderr io.Writer
}

// Request carries everything one fix invocation needs.
type Request struct {
	Platform string

	// Report is the failure context from the last scenario run.
	Report *scenario.Report

	// SessionID resumes a prior editing session when non-empty.
	SessionID string

	// History lists every prior attempt in this refinement run, in order.
	History []Attempt

	// ArtifactDir, when set, receives the invocation record and captured
	// output.
	ArtifactDir string

	Verbose bool
}

// Result is the outcome of one fix invocation. SessionID carries the
// continuation token forward: the new one when the agent returned one,
// otherwise the token from the request.
type Result struct {
	Success      bool
	FilesChanged []string
	Summary      string
	SessionID    string
}

func (m *SessionManager) cliPath() string {
	if m.CLIPath == "" {
		return "claude"
	}
	return m.CLIPath
}

func (m *SessionManager) model() string {
	if m.Model == "" {
		return "sonnet"
	}
	return m.Model
}

func (m *SessionManager) timeout() time.Duration {
	if m.Timeout <= 0 {
		return DefaultTimeout
	}
	return m.Timeout
}

func (m *SessionManager) stderr() io.Writer {
	if m.Stderr == nil {
		return os.Stderr
	}
	return m.Stderr
}

// Apply runs the editing agent once against the given failure. Errors
// never propagate: timeouts, invocation failures, and unusable context
// all come back as a failed Result with an explanatory summary, keeping
// the prior session token intact.
func (m *SessionManager) Apply(ctx context.Context, req Request) Result {
	if req.Report == nil || req.Report.Failure == nil {
		return Result{Summary: "no failure context to act on", SessionID: req.SessionID}
	}

	configs, err := m.Registry.Configs(req.Platform)
	if err != nil {
		return Result{Summary: fmt.Sprintf("fix agent error: %v", err), SessionID: req.SessionID}
	}

	workDir := m.WorkDir
	if workDir == "" {
		workDir = configs[0].SkillsDir
	}

	report := m.withGitHistory(req.Report, workDir)
	prompt := buildPrompt(report, req.Platform, configs, req.History, m.HistoryLimit)

	if req.Verbose {
		fmt.Fprintf(m.stderr(), "running fix agent for prompt: %s...\n", excerpt(report.Failure.PromptText, 50))
		if req.SessionID != "" {
			fmt.Fprintf(m.stderr(), "continuing session: %s\n", req.SessionID)
		}
	}

	args := []string{
		"-p", prompt,
		"--model", m.model(),
		"--dangerously-skip-permissions",
		"--output-format", "json",
	}
	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	}

	runCtx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, m.cliPath(), args...)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if req.ArtifactDir != "" {
		m.writeArtifacts(req.ArtifactDir, args, workDir, prompt, stdout.Bytes(), stderr.Bytes(), elapsed)
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return Result{Summary: "fix agent timed out", SessionID: req.SessionID}
	}
	if ctx.Err() != nil {
		return Result{Summary: "fix agent canceled", SessionID: req.SessionID}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{Summary: fmt.Sprintf("fix agent error: %v", runErr), SessionID: req.SessionID}
		}
	}

	// A nonzero exit still often carries a usable reply; parse whatever
	// came back and let Success reflect the exit status.
	sessionID, text := parseReply(stdout.String(), req.SessionID)
	return Result{
		Success:      runErr == nil,
		FilesChanged: ExtractChangedFiles(text, m.FilePatterns),
		Summary:      tail(text, defaultSummaryLen),
		SessionID:    sessionID,
	}
}

// withGitHistory fills in recent commit history from the working checkout
// when the scenario runner did not supply any. The report is copied so
// the caller's view stays untouched.
func (m *SessionManager) withGitHistory(report *scenario.Report, workDir string) *scenario.Report {
	if report.GitHistory != nil || !gitctx.IsRepo(workDir) {
		return report
	}
	commits, err := gitctx.RecentHistory(workDir, recentHistoryDepth)
	if err != nil || len(commits) == 0 {
		return report
	}
	out := *report
	out.GitHistory = commits
	return &out
}

func (m *SessionManager) writeArtifacts(dir string, args []string, workDir, prompt string, stdout, stderr []byte, elapsed time.Duration) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	recorded := make([]string, len(args))
	copy(recorded, args)
	for i := 0; i < len(recorded)-1; i++ {
		if recorded[i] == "-p" {
			recorded[i+1] = "<prompt>"
		}
	}
	inv := map[string]any{
		"executable":   m.cliPath(),
		"argv":         recorded,
		"working_dir":  workDir,
		"model":        m.model(),
		"prompt_bytes": len(prompt),
		"duration_ms":  elapsed.Milliseconds(),
	}
	_ = writeJSONFile(filepath.Join(dir, "fix_invocation.json"), inv)
	_ = os.WriteFile(filepath.Join(dir, "fix_stdout.log"), stdout, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "fix_stderr.log"), stderr, 0o644)
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
