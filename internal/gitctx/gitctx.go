// Package gitctx reads lightweight version-control context from a skills
// checkout, used to show the fix agent what changed recently.
package gitctx

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Commit is one entry of recent history in the shape the fix prompt
// renders: abbreviated SHA plus subject line.
type Commit struct {
	SHA     string `json:"commit"`
	Message string `json:"message"`
}

type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func runGit(dir string, args ...string) (string, string, error) {
	// Disable Git's background auto-maintenance so history reads in the
	// fix agent's working checkout never spawn long-running helper
	// processes mid-run.
	base := []string{
		"-C", dir,
		"-c", "maintenance.auto=0",
		"-c", "gc.auto=0",
	}
	cmd := exec.Command("git", append(base, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	outStr := stdout.String()
	errStr := stderr.String()
	if err != nil {
		return outStr, errStr, &CommandError{Args: args, Stdout: outStr, Stderr: errStr, Err: err}
	}
	return outStr, errStr, nil
}

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(dir string) bool {
	out, _, err := runGit(dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// RecentHistory returns up to n recent commits from dir, newest first.
func RecentHistory(dir string, n int) ([]Commit, error) {
	if n <= 0 {
		return nil, nil
	}
	out, _, err := runGit(dir, "log", "--oneline", "-n", strconv.Itoa(n))
	if err != nil {
		return nil, err
	}
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sha, msg, found := strings.Cut(line, " ")
		if !found {
			sha, msg = line, ""
		}
		commits = append(commits, Commit{SHA: sha, Message: msg})
	}
	return commits, nil
}
