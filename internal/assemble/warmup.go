package assemble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emberhq/ember/internal/memory"
	"github.com/emberhq/ember/internal/rank"
)

// WarmupRequest parameterizes a warmup summary.
type WarmupRequest struct {
	// Focus is optional; without it ordering is pure recency/diff.
	Focus string
	// Since selects the recency window; defaults to last_session.
	Since Window
}

// Warmup builds the bounded session-start summary: goal, top decisions,
// open loops, recent changes, and next actions. An empty memory store
// and a clean working tree produce a valid, empty-sectioned summary.
func (a *Assembler) Warmup(ctx context.Context, req WarmupRequest) (string, error) {
	windowStart := a.resolveWindow(ctx, req.Since)
	changed := a.signals.ChangedFiles(ctx)

	var b strings.Builder
	b.WriteString("# Session warmup\n\n")

	// Goal: the latest project brief.
	goal := "(no project brief recorded)"
	if briefs, err := a.store.Query(ctx, memory.Filter{Category: "brief", Limit: 1}); err == nil && len(briefs) > 0 {
		goal = oneLine(briefs[0].Content)
	}
	fmt.Fprintf(&b, "## Goal\n%s\n\n", goal)

	decisions := a.entriesByCategory(ctx, "decision", req.Focus, windowStart, changed,
		rank.Budget{MaxItems: 3, MaxChars: 600})
	writeSection(&b, "Decisions", candidateLines(decisions, 160))

	loops := a.entriesByCategory(ctx, "open_loop", req.Focus, windowStart, changed,
		rank.Budget{MaxItems: 5, MaxChars: 900})
	writeSection(&b, "Open loops", candidateLines(loops, 160))

	writeSection(&b, "Recent changes", a.recentChangeLines(ctx, req.Focus, windowStart, changed))

	actions := a.entriesByCategory(ctx, "next_action", req.Focus, windowStart, changed,
		rank.Budget{MaxItems: 3, MaxChars: 600})
	writeSection(&b, "Next actions", candidateLines(actions, 160))

	return capChars(b.String(), a.cfg.WarmupMaxChars), nil
}

// recentChangeLines merges the git changed-file set with recent_change
// memory entries, one line each.
func (a *Assembler) recentChangeLines(
	ctx context.Context,
	focus string,
	windowStart time.Time,
	changed []string,
) []string {
	var lines []string

	stats := a.signals.DiffStat(ctx)
	for i, f := range changed {
		if i >= 5 {
			lines = append(lines, fmt.Sprintf("... and %d more changed files", len(changed)-i))
			break
		}
		if n, ok := stats[f]; ok && n > 0 {
			lines = append(lines, fmt.Sprintf("%s (~%d lines changed, uncommitted)", f, n))
		} else {
			lines = append(lines, fmt.Sprintf("%s (uncommitted)", f))
		}
	}

	recorded := a.entriesByCategory(ctx, "recent_change", focus, windowStart, changed,
		rank.Budget{MaxItems: 5, MaxChars: 800})
	lines = append(lines, candidateLines(recorded, 160)...)

	return lines
}
