package refine

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const progressFile = "progress.ndjson"

// progress appends one event line to the run's progress log. Failures
// are swallowed; the log is observability, not state.
func (e *Engine) progress(ev map[string]any) {
	if e.opts.RunDir == "" {
		return
	}
	ev["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(e.opts.RunDir, progressFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	_, _ = f.Write(append(b, '\n'))
}

// ReadLastProgressEvent returns the final event recorded in a run
// directory's progress log. found is false when the log does not exist
// or holds no events.
func ReadLastProgressEvent(runDir string) (map[string]any, bool, error) {
	f, err := os.Open(filepath.Join(runDir, progressFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	last := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, false, err
	}
	if last == "" {
		return nil, false, nil
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(last), &ev); err != nil {
		return nil, false, err
	}
	return ev, true, nil
}
