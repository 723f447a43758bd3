package refine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type FinalStatus string

const (
	FinalSuccess FinalStatus = "success"
	FinalFail    FinalStatus = "fail"
)

// FinalOutcome is the terminal record of a refinement run, written to
// final.json in the run directory.
type FinalOutcome struct {
	Timestamp time.Time   `json:"timestamp"`
	Status    FinalStatus `json:"status"`

	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Platform string `json:"platform"`

	Attempts      int    `json:"attempts"`
	FixSessionID  string `json:"fix_session_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (fo *FinalOutcome) Save(path string) error {
	if fo == nil {
		return fmt.Errorf("final outcome is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSONAtomic(path, fo)
}
