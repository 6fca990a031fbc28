// Package signals collects read-only, best-effort project signals: git
// working-tree state, local documentation, and package manifests. Missing
// or failing sources produce empty results, never errors — absent data
// degrades output quality, not availability.
package signals

import (
	"context"
	"os/exec"
	"strings"
)

// runGit is a package-level var to allow test injection.
var runGit = func(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}

// Collector gathers project signals rooted at a working directory.
type Collector struct {
	Root string
}

// NewCollector creates a Collector for the given project root.
func NewCollector(root string) *Collector {
	return &Collector{Root: root}
}

// ChangedFiles returns the paths with uncommitted changes (staged,
// unstaged, and untracked), from git status --porcelain. Returns nil
// outside a git repository.
func (c *Collector) ChangedFiles(ctx context.Context) []string {
	out, err := runGit(ctx, c.Root, "status", "--porcelain")
	if err != nil {
		return nil
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		// Strip the two-char status prefix and the separating space.
		path := strings.TrimSpace(line[3:])
		// Renames are reported as "old -> new"; keep the new path.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		if path != "" {
			files = append(files, path)
		}
	}
	return files
}

// DiffNames returns the paths touched by the current diff against HEAD.
func (c *Collector) DiffNames(ctx context.Context) []string {
	out, err := runGit(ctx, c.Root, "diff", "--name-only", "HEAD")
	if err != nil {
		return nil
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files
}

// DiffStat returns per-file "path | N +-" summary lines for the current
// diff, used by spotcheck to weigh change size. Empty outside a repo.
func (c *Collector) DiffStat(ctx context.Context) map[string]int {
	out, err := runGit(ctx, c.Root, "diff", "--numstat", "HEAD")
	if err != nil {
		return nil
	}

	stats := make(map[string]int)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		added := parseCount(fields[0])
		deleted := parseCount(fields[1])
		stats[fields[2]] = added + deleted
	}
	return stats
}

func parseCount(s string) int {
	// Binary files report "-"; treat as a small nonzero change.
	if s == "-" {
		return 1
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
