// Package mockstate persists mock platform state between CLI invocations.
//
// Mock libraries inside the test container start from built-in demo data.
// Anything created on top of that (pages, issues, events) lives in a
// per-platform JSON snapshot so a later invocation of the same run sees
// it again. Seed data is never persisted: it is rebuilt by the libraries
// themselves, and writing it back would shadow upstream changes to the
// built-in fixtures.
package mockstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// defaultNextID is the first identifier handed out for created objects
// when no snapshot exists yet.
const defaultNextID = 100

// EnvStateFile overrides the default snapshot path when set.
const EnvStateFile = "MOCK_STATE_FILE"

// seedKeys lists per-platform object keys that belong to the built-in
// demo fixtures and must not be written into the snapshot.
var seedKeys = map[string]map[string]bool{
	"jira": {
		"DEMO-84": true, "DEMO-85": true, "DEMO-86": true,
		"DEMO-87": true, "DEMO-91": true,
		"DEMOSD-1": true, "DEMOSD-2": true, "DEMOSD-3": true,
		"DEMOSD-4": true, "DEMOSD-5": true,
	},
	"confluence": {
		"DEMO_SPACE": true, "DEMO_HOME": true, "CDEMO": true,
	},
	"splunk": {},
}

// State is one platform's snapshot: the next identifier to allocate and
// the created objects keyed by their platform identifier.
type State struct {
	NextID int                        `json:"next_id"`
	Data   map[string]json.RawMessage `json:"data"`
}

// Store reads and writes the snapshot file for one platform.
type Store struct {
	platform string
	path     string
}

// NewStore resolves the snapshot path for platform. The lookup function
// supplies environment values; os.LookupEnv in production.
func NewStore(platform string, lookup func(string) (string, bool)) *Store {
	path := fmt.Sprintf("/tmp/mock_state_%s.json", platform)
	if lookup != nil {
		if override, ok := lookup(EnvStateFile); ok && override != "" {
			path = override
		}
	}
	return &Store{platform: platform, path: path}
}

// Path returns the resolved snapshot file path.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot. A missing or unreadable file yields an empty
// snapshot with the default next identifier, never an error: mock runs
// must not fail because a previous run left nothing behind.
func (s *Store) Load() State {
	empty := State{NextID: defaultNextID, Data: map[string]json.RawMessage{}}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return empty
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return empty
	}
	if st.NextID == 0 {
		st.NextID = defaultNextID
	}
	if st.Data == nil {
		st.Data = map[string]json.RawMessage{}
	}
	return st
}

// Save writes the snapshot, dropping any seed-data keys for the store's
// platform. The write goes through a temp file and rename so readers
// never observe a partial snapshot.
func (s *Store) Save(st State) error {
	out := State{NextID: st.NextID, Data: map[string]json.RawMessage{}}
	excluded := seedKeys[s.platform]
	for key, item := range st.Data {
		if excluded[key] {
			continue
		}
		out.Data[key] = item
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mock state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".mock_state_*")
	if err != nil {
		return fmt.Errorf("write mock state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write mock state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write mock state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write mock state: %w", err)
	}
	return nil
}

// Reset removes the snapshot file. Missing files are fine.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset mock state: %w", err)
	}
	return nil
}
