// Package refine drives the test-and-fix loop: run a scenario, stop at
// the first failing prompt, hand the failure to an editing agent, then
// rerun from the last passing checkpoint until the scenario passes or
// the attempt budget is spent.
package refine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	"github.com/danshapiro/refinery/internal/fixer"
	"github.com/danshapiro/refinery/internal/platform"
	"github.com/danshapiro/refinery/internal/scenario"
)

const (
	DefaultMaxAttempts = 3
	DefaultModel       = "sonnet"
	DefaultJudgeModel  = "haiku"
)

// ScenarioExecutor runs one scenario pass and reports the outcome.
type ScenarioExecutor interface {
	Execute(ctx context.Context, req scenario.Request) (scenario.Result, error)
}

// FixApplier invokes the editing agent against a failure report.
type FixApplier interface {
	Apply(ctx context.Context, req fixer.Request) fixer.Result
}

// State is the controller's position in the refinement lifecycle.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateExhausted State = "failed_exhausted"
)

// Options configures a refinement run.
//
// Run artifacts land under RunDir, which defaults to
//
//	${XDG_STATE_HOME:-$HOME/.local/state}/refinery/runs/<run_id>
type Options struct {
	Scenario string
	Platform string

	MaxAttempts int
	Model       string
	JudgeModel  string

	Mock    bool
	Verbose bool

	// RunID names this run; a fresh ULID when empty.
	RunID  string
	RunDir string

	// CheckpointDir is where step checkpoints live; it is shared with the
	// scenario runner.
	CheckpointDir string

	// ScenariosRoot is the host scenarios tree, used to fingerprint the
	// scenario file so checkpoints from an edited scenario are not reused.
	// Fingerprinting is skipped when empty.
	ScenariosRoot string

	// Out receives progress output. Defaults to stdout.
	Out io.Writer
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.JudgeModel == "" {
		o.JudgeModel = DefaultJudgeModel
	}
	if o.RunID == "" {
		o.RunID = ulid.Make().String()
	}
	if o.RunDir == "" {
		o.RunDir = defaultRunDir(o.RunID)
	}
}

func defaultRunDir(runID string) string {
	return filepath.Join(DefaultRunsRoot(), runID)
}

// DefaultRunsRoot is the directory holding per-run artifact directories,
// under XDG_STATE_HOME or ~/.local/state.
func DefaultRunsRoot() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home := os.Getenv("HOME")
		if home == "" {
			base = "."
		} else {
			base = filepath.Join(home, ".local", "state")
		}
	}
	return filepath.Join(base, "refinery", "runs")
}

// RunResult is the terminal outcome of a refinement run.
type RunResult struct {
	RunID    string
	State    State
	Attempts int
	RunDir   string
}

func (r RunResult) Succeeded() bool {
	return r.State == StateSucceeded
}

// Engine owns one refinement run for a (platform, scenario) pair. It is
// strictly sequential: one executor or fixer invocation in flight at a
// time, and no two engines may share a checkpoint pair.
type Engine struct {
	opts     Options
	registry *platform.Registry
	executor ScenarioExecutor
	fixer    FixApplier
	store    *CheckpointStore
	reporter *Reporter

	scenarioHash string

	// sessionID is the fix-agent continuation token. Once set it is
	// forwarded to every later fix invocation until the agent hands back
	// a replacement.
	sessionID string

	// lastFailing is the prompt index of the most recent contextful
	// failure, or -1 before the first one. It drives the fork decision.
	lastFailing int

	history []fixer.Attempt
}

// New validates configuration and builds an engine. Unknown platforms
// and missing collaborators are setup errors, reported before any
// attempt runs.
func New(opts Options, reg *platform.Registry, exec ScenarioExecutor, fix FixApplier) (*Engine, error) {
	opts.applyDefaults()
	if opts.Scenario == "" {
		return nil, fmt.Errorf("refine: scenario is required")
	}
	if opts.Platform == "" {
		return nil, fmt.Errorf("refine: platform is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("refine: platform registry is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("refine: scenario executor is required")
	}
	if fix == nil {
		return nil, fmt.Errorf("refine: fix applier is required")
	}
	if _, err := reg.Required(opts.Platform); err != nil {
		return nil, err
	}
	return &Engine{
		opts:        opts,
		registry:    reg,
		executor:    exec,
		fixer:       fix,
		store:       NewCheckpointStore(opts.CheckpointDir),
		reporter:    NewReporter(opts.Out),
		lastFailing: -1,
	}, nil
}

// Run drives attempts until the scenario passes, the attempt budget is
// exhausted, or ctx is canceled. Exhaustion is a normal terminal state,
// not an error; the returned error is reserved for setup failures and
// cancellation.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	if err := os.MkdirAll(e.opts.RunDir, 0o755); err != nil {
		return RunResult{}, fmt.Errorf("create run dir: %w", err)
	}
	if e.opts.ScenariosRoot != "" {
		if p, err := scenario.HostPath(e.opts.ScenariosRoot, e.registry, e.opts.Platform, e.opts.Scenario); err == nil {
			e.scenarioHash = ScenarioFingerprint(p)
		}
	}
	// Checkpoints are best-effort caching. A run can always restart from
	// the beginning, so none of this may abort the run.
	if err := e.store.EnsureDir(); err != nil {
		e.reporter.Printf("warning: checkpoint dir unavailable: %v\n", err)
	}
	e.dropStaleCheckpoint()

	e.printHeader()
	e.progress(map[string]any{
		"event":        "run_start",
		"run_id":       e.opts.RunID,
		"scenario":     e.opts.Scenario,
		"platform":     e.opts.Platform,
		"max_attempts": e.opts.MaxAttempts,
		"model":        e.opts.Model,
		"judge_model":  e.opts.JudgeModel,
		"mock":         e.opts.Mock,
	})

	checkpointFile := e.store.Path(e.opts.Platform, e.opts.Scenario)

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		e.reporter.Printf("[Attempt %d/%d]\n", attempt, e.opts.MaxAttempts)
		e.reporter.Section()

		req := scenario.Request{
			Scenario:       e.opts.Scenario,
			Platform:       e.opts.Platform,
			Model:          e.opts.Model,
			JudgeModel:     e.opts.JudgeModel,
			Conversation:   true,
			FailFast:       true,
			FixContext:     true,
			Mock:           e.opts.Mock,
			Verbose:        e.opts.Verbose,
			CheckpointFile: checkpointFile,
			ArtifactDir:    filepath.Join(e.opts.RunDir, fmt.Sprintf("attempt_%d", attempt)),
		}
		e.applyForkDecision(attempt, &req)
		e.progress(map[string]any{"event": "attempt_start", "attempt": attempt})

		res, err := e.executor.Execute(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return RunResult{}, ctx.Err()
			}
			res = scenario.Result{Detail: err.Error()}
		}
		e.progress(map[string]any{
			"event":   "exec_result",
			"attempt": attempt,
			"passed":  res.Passed,
			"detail":  res.Detail,
		})

		if res.Passed {
			e.reporter.Println("")
			e.reporter.SuccessBanner("SUCCESS: All tests passed on attempt %d", attempt)
			_ = e.store.Clear(e.opts.Platform, e.opts.Scenario)
			e.finish(FinalSuccess, attempt, "")
			return RunResult{RunID: e.opts.RunID, State: StateSucceeded, Attempts: attempt, RunDir: e.opts.RunDir}, nil
		}

		if res.Report == nil || res.Report.Failure == nil {
			detail := res.Detail
			if detail == "" {
				detail = "unknown failure"
			}
			e.reporter.Println("Error: Test failed but no fix context available")
			e.history = append(e.history, fixer.Attempt{
				Number:       attempt,
				Result:       "failed (no context)",
				ErrorSummary: clip(detail, 100),
			})
			continue
		}

		failure := res.Report.Failure
		e.lastFailing = failure.PromptIndex
		e.recordProgressCheckpoint()

		e.reporter.Printf("Failed at prompt %d: %s...\n", failure.PromptIndex, clip(failureText(failure), 60))
		e.reporter.Printf("Quality: %s\n", orUnknown(scenario.FormatValue(failure.Quality)))
		e.reporter.Printf("Refinement suggestion: %s...\n", clip(orNone(failure.RefinementSuggestion), 100))
		e.reporter.Println("")

		e.reporter.Println("Running fix agent...")
		if e.sessionID != "" {
			e.reporter.Printf("Continuing fix session: %s...\n", clip(e.sessionID, 20))
		}
		fixRes := e.fixer.Apply(ctx, fixer.Request{
			Platform:    e.opts.Platform,
			Report:      res.Report,
			SessionID:   e.sessionID,
			History:     slices.Clone(e.history),
			ArtifactDir: req.ArtifactDir,
			Verbose:     e.opts.Verbose,
		})
		if ctx.Err() != nil {
			return RunResult{}, ctx.Err()
		}
		if fixRes.SessionID != "" {
			e.sessionID = fixRes.SessionID
		}
		e.history = append(e.history, fixer.Attempt{
			Number:       attempt,
			Files:        fixRes.FilesChanged,
			Result:       "still failing",
			ErrorSummary: clip(failure.RefinementSuggestion, 100),
		})
		e.progress(map[string]any{
			"event":         "fix_result",
			"attempt":       attempt,
			"success":       fixRes.Success,
			"files_changed": fixRes.FilesChanged,
			"session_id":    fixRes.SessionID,
		})

		if len(fixRes.FilesChanged) > 0 {
			e.reporter.Printf("Files changed: %s\n", strings.Join(fixRes.FilesChanged, ", "))
		} else {
			e.reporter.Println("No files changed (fix may have failed)")
		}
		e.reporter.Printf("Summary: %s...\n", clip(fixRes.Summary, 200))
		e.reporter.Println("")
	}

	e.reporter.FailureBanner("FAILED: Max attempts (%d) reached without passing all tests", e.opts.MaxAttempts)
	e.finish(FinalFail, e.opts.MaxAttempts, fmt.Sprintf("max attempts (%d) reached without passing all tests", e.opts.MaxAttempts))
	return RunResult{RunID: e.opts.RunID, State: StateExhausted, Attempts: e.opts.MaxAttempts, RunDir: e.opts.RunDir}, nil
}

// applyForkDecision sets resume flags on req for attempts after the
// first. A failure at prompt k > 0 forks from checkpoint k-1 and reruns
// prompt k; a failure at prompt 0 starts over. The fork is only taken
// when the recorded checkpoint actually covers the fork step, since a
// lost or stale checkpoint must degrade to a full rerun, never an
// error.
func (e *Engine) applyForkDecision(attempt int, req *scenario.Request) {
	if attempt <= 1 || e.lastFailing < 0 {
		return
	}
	forkFrom, resume, ok := ForkPoint(e.lastFailing)
	if !ok {
		req.PromptIndex = intp(0)
		e.reporter.Println("First prompt failed, running from start")
		return
	}
	if !e.checkpointCovers(forkFrom) {
		req.PromptIndex = intp(0)
		e.reporter.Println("Checkpoint unavailable, running from start")
		return
	}
	req.ForkFrom = intp(forkFrom)
	req.PromptIndex = intp(resume)
	e.reporter.Printf("Forking from checkpoint %d, running prompt %d\n", forkFrom, resume)
}

// recordProgressCheckpoint persists the furthest passed step implied by
// the failure just observed: everything before the failing prompt
// passed. A failure at prompt 0 resets the pair to run-from-start.
func (e *Engine) recordProgressCheckpoint() {
	if e.lastFailing <= 0 {
		_ = e.store.Clear(e.opts.Platform, e.opts.Scenario)
		return
	}
	if err := e.store.Record(e.opts.Platform, e.opts.Scenario, e.lastFailing-1, e.scenarioHash); err != nil {
		e.reporter.Printf("warning: could not record checkpoint: %v\n", err)
	}
}

func (e *Engine) checkpointCovers(step int) bool {
	cp, ok := e.store.Load(e.opts.Platform, e.opts.Scenario)
	if !ok || cp.StepIndex < step {
		return false
	}
	if cp.ScenarioHash != "" && e.scenarioHash != "" && cp.ScenarioHash != e.scenarioHash {
		return false
	}
	return true
}

// dropStaleCheckpoint discards a leftover checkpoint whose scenario
// fingerprint no longer matches the scenario file on disk.
func (e *Engine) dropStaleCheckpoint() {
	if e.scenarioHash == "" {
		return
	}
	cp, ok := e.store.Load(e.opts.Platform, e.opts.Scenario)
	if !ok || cp.ScenarioHash == "" || cp.ScenarioHash == e.scenarioHash {
		return
	}
	if err := e.store.Clear(e.opts.Platform, e.opts.Scenario); err == nil {
		e.reporter.Println("Scenario changed since last checkpoint, starting fresh")
	}
}

func (e *Engine) printHeader() {
	e.reporter.Rule()
	e.reporter.Println("SKILL REFINEMENT LOOP (with checkpoint-based iteration)")
	e.reporter.Rule()
	e.reporter.Printf("Run: %s\n", e.opts.RunID)
	e.reporter.Printf("Scenario: %s\n", e.opts.Scenario)
	e.reporter.Printf("Platform: %s\n", e.opts.Platform)
	if configs, err := e.registry.Configs(e.opts.Platform); err == nil {
		for _, cfg := range configs {
			e.reporter.Printf("  %s skills: %s\n", titleWord(cfg.Name), cfg.SkillsDir)
		}
	}
	e.reporter.Printf("Max attempts: %d\n", e.opts.MaxAttempts)
	e.reporter.Printf("Model: %s, Judge: %s\n", e.opts.Model, e.opts.JudgeModel)
	e.reporter.Printf("Mock mode: %t\n", e.opts.Mock)
	e.reporter.Rule()
	e.reporter.Println("")
}

// finish writes final.json and the closing progress event. Both are
// best-effort records of an already decided outcome.
func (e *Engine) finish(status FinalStatus, attempts int, reason string) {
	fo := &FinalOutcome{
		Timestamp:     time.Now().UTC(),
		Status:        status,
		RunID:         e.opts.RunID,
		Scenario:      e.opts.Scenario,
		Platform:      e.opts.Platform,
		Attempts:      attempts,
		FixSessionID:  e.sessionID,
		FailureReason: reason,
	}
	if err := fo.Save(filepath.Join(e.opts.RunDir, "final.json")); err != nil {
		e.reporter.Printf("warning: could not write final outcome: %v\n", err)
	}
	e.progress(map[string]any{
		"event":    "run_end",
		"status":   string(status),
		"attempts": attempts,
	})
}

func intp(v int) *int {
	return &v
}

func failureText(f *scenario.StepFailure) string {
	if f.PromptText == "" {
		return "unknown"
	}
	return f.PromptText
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// clip returns at most n characters of s, without an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func titleWord(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
