package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/danshapiro/refinery/internal/refine"
)

var (
	statusRun      string
	statusRunsRoot string
	statusJSON     bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a run's final outcome or latest progress",
	Long: `Show the final outcome of a refinement run, or the latest progress
event when the run is still in flight. With --run latest (the default)
the most recently modified run directory is used.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusRun, "run", "latest", "Run ID, or \"latest\"")
	statusCmd.Flags().StringVar(&statusRunsRoot, "runs-root", "", "Directory holding per-run artifact directories")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw record as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	root := statusRunsRoot
	if root == "" {
		root = refine.DefaultRunsRoot()
	}

	runID := statusRun
	if runID == "" || runID == "latest" {
		var err error
		if runID, err = latestRunID(root); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "run_id=%s\n", runID)
	}
	runDir := filepath.Join(root, runID)

	if raw, err := os.ReadFile(filepath.Join(runDir, "final.json")); err == nil {
		return printFinal(raw)
	}

	ev, ok, err := refine.ReadLastProgressEvent(runDir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no progress recorded in %s", runDir)
	}
	return printProgress(ev)
}

func printFinal(raw []byte) error {
	if statusJSON {
		os.Stdout.Write(raw)
		fmt.Println()
		return nil
	}

	var fo refine.FinalOutcome
	if err := json.Unmarshal(raw, &fo); err != nil {
		return fmt.Errorf("decode final record: %w", err)
	}
	fmt.Printf("status=%s\n", fo.Status)
	fmt.Printf("run_id=%s\n", fo.RunID)
	fmt.Printf("scenario=%s\n", fo.Scenario)
	fmt.Printf("platform=%s\n", fo.Platform)
	fmt.Printf("attempts=%d\n", fo.Attempts)
	if !fo.Timestamp.IsZero() {
		fmt.Printf("finished_at=%s\n", fo.Timestamp.UTC().Format(time.RFC3339))
	}
	if fo.FixSessionID != "" {
		fmt.Printf("fix_session_id=%s\n", fo.FixSessionID)
	}
	if fo.FailureReason != "" {
		fmt.Printf("failure_reason=%s\n", fo.FailureReason)
	}
	return nil
}

func printProgress(ev map[string]any) error {
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	}

	fmt.Println("status=running")
	keys := make([]string, 0, len(ev))
	for k := range ev {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%v\n", k, ev[k])
	}
	return nil
}

// latestRunID finds the most recently modified run directory under root.
func latestRunID(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("no runs found in %s: %w", root, err)
	}

	best := ""
	var bestTime time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = e.Name()
			bestTime = info.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no runs found in %s", root)
	}
	return best, nil
}
