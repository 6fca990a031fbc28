package assemble

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SpotcheckRequest parameterizes a spotcheck. Limit defaults to the
// configured cap (3).
type SpotcheckRequest struct {
	Limit int
}

// riskItem is one prioritized finding over the changed-file set.
type riskItem struct {
	Path     string
	Severity string
	Score    int
	Reason   string
}

// Spotcheck returns the top risk items over the uncommitted change set:
// lightweight triage of where a reviewer's attention should go first,
// not a full review. Findings are structural (sensitive path classes,
// unusually large diffs), never stylistic.
func (a *Assembler) Spotcheck(ctx context.Context, req SpotcheckRequest) (string, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = a.cfg.SpotcheckLimit
	}

	changed := a.signals.ChangedFiles(ctx)
	if len(changed) == 0 {
		return "# Spotcheck\n\nNo uncommitted changes to inspect.\n", nil
	}
	stats := a.signals.DiffStat(ctx)

	items := make([]riskItem, 0, len(changed))
	for _, f := range changed {
		items = append(items, classifyRisk(f, stats[f]))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if len(items) > limit {
		items = items[:limit]
	}

	var b strings.Builder
	b.WriteString("# Spotcheck\n\n")
	fmt.Fprintf(&b, "%d changed file(s); top %d by risk:\n\n", len(changed), len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "- [%s] %s — %s\n", it.Severity, it.Path, it.Reason)
	}
	return b.String(), nil
}

// riskClasses maps path substrings to a base risk score and rationale.
// Order matters: the first match sets the class.
var riskClasses = []struct {
	marker string
	score  int
	reason string
}{
	{"auth", 40, "touches authentication or authorization logic"},
	{"crypt", 40, "touches cryptographic code"},
	{"secret", 40, "touches secret or credential handling"},
	{"migration", 35, "schema or data migration; verify rollback path"},
	{"security", 35, "security-sensitive area"},
	{".github/workflows", 30, "CI pipeline change; verify no untrusted input reaches run steps"},
	{"dockerfile", 25, "build image change; verify base image and exposed surface"},
	{"config", 20, "configuration change; verify defaults and env overrides"},
	{".env", 30, "environment file change; verify no secrets committed"},
	{"sql", 20, "raw SQL change; verify parameterization"},
}

// sizeThreshold marks a diff as large enough to warrant attention on
// its own.
const sizeThreshold = 200

func classifyRisk(path string, linesChanged int) riskItem {
	lower := strings.ToLower(path)
	item := riskItem{Path: path, Severity: "low", Score: linesChanged / 20,
		Reason: "routine change"}

	for _, rc := range riskClasses {
		if strings.Contains(lower, rc.marker) {
			item.Score += rc.score
			item.Reason = rc.reason
			break
		}
	}
	if linesChanged >= sizeThreshold {
		item.Score += 15
		if item.Reason == "routine change" {
			item.Reason = fmt.Sprintf("large diff (~%d lines); review in pieces", linesChanged)
		} else {
			item.Reason += fmt.Sprintf("; large diff (~%d lines)", linesChanged)
		}
	}

	switch {
	case item.Score >= 40:
		item.Severity = "high"
	case item.Score >= 20:
		item.Severity = "medium"
	}
	return item
}
