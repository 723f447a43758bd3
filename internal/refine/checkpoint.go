package refine

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultCheckpointDir is shared with the containerized scenario runner,
// which bind-mounts the same path to persist step completion across runs.
const DefaultCheckpointDir = "/tmp/checkpoints"

// Checkpoint records the furthest passed step for one (platform, scenario)
// pair. ScenarioHash fingerprints the scenario file so a checkpoint taken
// against an edited scenario is not trusted for forking.
type Checkpoint struct {
	Platform     string    `json:"platform"`
	Scenario     string    `json:"scenario"`
	StepIndex    int       `json:"step_index"`
	ScenarioHash string    `json:"scenario_hash,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CheckpointStore persists one checkpoint file per (platform, scenario)
// pair. Writes are best-effort: a failed write means the next attempt
// restarts from the beginning, which is always safe.
type CheckpointStore struct {
	dir string
}

func NewCheckpointStore(dir string) *CheckpointStore {
	if dir == "" {
		dir = DefaultCheckpointDir
	}
	return &CheckpointStore{dir: dir}
}

func (s *CheckpointStore) Dir() string {
	return s.dir
}

// Path returns the checkpoint file location for a pair.
func (s *CheckpointStore) Path(platform, scenario string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", platform, scenario))
}

func (s *CheckpointStore) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// Record overwrites the checkpoint for a pair with the given step index.
// The write is atomic so a reader never observes a partial checkpoint.
func (s *CheckpointStore) Record(platform, scenario string, stepIndex int, scenarioHash string) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	cp := Checkpoint{
		Platform:     platform,
		Scenario:     scenario,
		StepIndex:    stepIndex,
		ScenarioHash: scenarioHash,
		UpdatedAt:    time.Now().UTC(),
	}
	return writeJSONAtomic(s.Path(platform, scenario), cp)
}

// Load reads the checkpoint for a pair. Missing or unreadable files
// report ok=false rather than an error.
func (s *CheckpointStore) Load(platform, scenario string) (Checkpoint, bool) {
	raw, err := os.ReadFile(s.Path(platform, scenario))
	if err != nil {
		return Checkpoint{}, false
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return Checkpoint{}, false
	}
	return cp, true
}

// Clear removes the checkpoint for a pair. Absent files are not an error.
func (s *CheckpointStore) Clear(platform, scenario string) error {
	err := os.Remove(s.Path(platform, scenario))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ForkPoint computes where the next attempt resumes given the step that
// failed last. A failure at step 0 (or an unknown step) restarts from the
// beginning; otherwise the run forks from the checkpoint preceding the
// failed step and resumes at that step.
func ForkPoint(lastFailing int) (forkFrom, resume int, ok bool) {
	if lastFailing <= 0 {
		return 0, 0, false
	}
	return lastFailing - 1, lastFailing, true
}

// ScenarioFingerprint hashes a scenario file's contents. Returns "" when
// the file cannot be read; fingerprint checks then degrade to trusting
// the checkpoint.
func ScenarioFingerprint(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
