package scenario

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
	"strings"
	"time"

	"github.com/danshapiro/refinery/internal/jsonx"
	"github.com/danshapiro/refinery/internal/platform"
)

// DefaultTimeout caps one scenario execution end to end, independent of
// any per-request timeout inside the container.
const DefaultTimeout = 10 * time.Minute

// Request describes one scenario execution.
type Request struct {
	Scenario   string
	Platform   string
	Model      string
	JudgeModel string

	// Conversation keeps one conversational context across all prompts;
	// FailFast stops at the first failing prompt.
	Conversation bool
	FailFast     bool

	// FixContext asks the runner to print a structured Report on stdout
	// instead of signaling pass/fail through the exit code alone.
	FixContext bool

	Mock    bool
	Verbose bool

	// CheckpointFile is the persisted step record the runner updates as
	// prompts pass.
	CheckpointFile string

	// ForkFrom resumes conversation state from a completed step;
	// PromptIndex selects the first prompt to run. Nil means unset, which
	// differs from an explicit zero.
	ForkFrom    *int
	PromptIndex *int

	// ArtifactDir, when set, receives the invocation record and captured
	// output for this execution.
	ArtifactDir string
}

// Executor runs scenarios in the test container via docker.
type Executor struct {
	Registry      *platform.Registry
	Image         string
	Network       string
	ProjectRoot   string
	CheckpointDir string

	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration

	// DockerPath overrides the docker binary, mainly for tests.
	DockerPath string

	// Stderr receives verbose diagnostics. Defaults to os.Stderr.
	Stderr io.Writer
}

func (e *Executor) dockerPath() string {
	if e.DockerPath == "" {
		return "docker"
	}
	return e.DockerPath
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Executor) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

func (e *Executor) builder(req Request) *CommandBuilder {
	return &CommandBuilder{
		Registry:      e.Registry,
		Platform:      req.Platform,
		Image:         e.Image,
		Network:       e.Network,
		Mock:          req.Mock,
		ProjectRoot:   e.ProjectRoot,
		CheckpointDir: e.CheckpointDir,
	}
}

// Execute runs one scenario to completion or timeout. Infrastructure
// problems (timeout, unrunnable docker, unparseable output) come back as
// a failed Result with a Detail and no Report; the returned error is
// reserved for caller cancellation and misconfigured requests.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Model == "" {
		req.Model = "sonnet"
	}
	if req.JudgeModel == "" {
		req.JudgeModel = "haiku"
	}

	args, err := e.builder(req).RunArgs(req)
	if err != nil {
		return Result{}, err
	}

	if req.Verbose {
		fmt.Fprintf(e.stderr(), "running: docker run ... (scenario=%s, platform=%s)\n", req.Scenario, req.Platform)
	}

	timeout := e.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.dockerPath(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	if req.ArtifactDir != "" {
		e.writeArtifacts(req, args, stdout.Bytes(), stderr.Bytes(), exitCode, elapsed)
	}

	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Result{Detail: fmt.Sprintf("timeout after %s", timeout), ExitCode: exitCode}, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// docker itself could not run; there is no output to parse.
			return Result{Detail: fmt.Sprintf("docker invocation failed: %v", runErr), ExitCode: exitCode}, nil
		}
	}

	if req.FixContext {
		return parseFixContextResult(stdout.String(), exitCode), nil
	}
	return Result{Passed: runErr == nil, ExitCode: exitCode}, nil
}

// parseFixContextResult interprets the runner's stdout for a fix-context
// run. The exit code is untrusted here; only the structured result
// decides pass/fail. Output that yields no usable object degrades to a
// contextless failure so the caller can retry or give up cleanly.
func parseFixContextResult(stdout string, exitCode int) Result {
	var report Report
	if !jsonx.ExtractInto(stdout, &report) {
		return Result{Detail: "no structured result in output", ExitCode: exitCode}
	}
	if report.AllPassed() {
		return Result{Passed: true, ExitCode: exitCode}
	}
	if report.Failure == nil {
		return Result{Detail: "result missing failure context", ExitCode: exitCode}
	}
	return Result{Report: &report, ExitCode: exitCode}
}

func (e *Executor) writeArtifacts(req Request, args []string, stdout, stderr []byte, exitCode int, elapsed time.Duration) {
	dir := req.ArtifactDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	inv := map[string]any{
		"executable": e.dockerPath(),
		"argv":       e.redactCredentials(req.Platform, args),
		"platform":   req.Platform,
		"scenario":   req.Scenario,
		"timeout_ms": e.timeout().Milliseconds(),
	}
	_ = writeJSONFile(filepath.Join(dir, "cli_invocation.json"), inv)
	_ = os.WriteFile(filepath.Join(dir, "stdout.log"), stdout, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "stderr.log"), stderr, 0o644)
	_ = writeJSONFile(filepath.Join(dir, "cli_timing.json"), map[string]any{
		"duration_ms": elapsed.Milliseconds(),
		"exit_code":   exitCode,
	})
}

// redactCredentials blanks credential values in a recorded argv so run
// artifacts never persist secrets.
func (e *Executor) redactCredentials(mode string, args []string) []string {
	secret := map[string]bool{}
	if configs, err := e.Registry.Configs(mode); err == nil {
		for _, cfg := range configs {
			for _, v := range cfg.EnvVars {
				secret[v] = true
			}
		}
	}

	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] != "-e" {
			continue
		}
		name, value, found := strings.Cut(out[i+1], "=")
		if found && value != "" && secret[name] {
			out[i+1] = name + "=<redacted>"
		}
	}
	return out
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
