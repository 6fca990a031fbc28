// Package assemble turns ranked context candidates into the three
// bounded output shapes Ember serves: the warmup summary, the focused
// context pack, and the spotcheck risk list.
//
// Assembly is read-only with respect to the memory store and never fails
// on missing or empty signal sources: absent data produces empty
// sections, not errors.
package assemble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emberhq/ember/internal/config"
	"github.com/emberhq/ember/internal/memory"
	"github.com/emberhq/ember/internal/rank"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Window is the recency window selector.
type Window string

const (
	WindowLastSession Window = "last_session"
	WindowDay         Window = "24h"
	WindowWeek        Window = "7d"
)

// MemoryReader is the read-only slice of the memory store the assembler
// consumes.
type MemoryReader interface {
	Query(ctx context.Context, f memory.Filter) ([]memory.Entry, error)
	SimilaritySearch(ctx context.Context, query, category string, limit int) ([]memory.Scored, error)
	LatestSessionSummaryAt(ctx context.Context) (time.Time, bool)
}

// SignalSource is the slice of the signal collectors the assembler
// consumes.
type SignalSource interface {
	ChangedFiles(ctx context.Context) []string
	DiffStat(ctx context.Context) map[string]int
	ReadDocs(paths []string) map[string]string
}

// Assembler builds bounded context outputs from memory and signals.
type Assembler struct {
	store   MemoryReader
	signals SignalSource
	cfg     config.Config
}

// New creates an Assembler.
func New(store MemoryReader, signals SignalSource, cfg config.Config) *Assembler {
	return &Assembler{store: store, signals: signals, cfg: cfg}
}

// resolveWindow maps a Window selector to its start time. last_session
// resolves to the most recent session_summary, falling back to 24h when
// none exists yet.
func (a *Assembler) resolveWindow(ctx context.Context, w Window) time.Time {
	now := timeNow().UTC()
	switch w {
	case WindowWeek:
		return now.Add(-7 * 24 * time.Hour)
	case WindowDay:
		return now.Add(-24 * time.Hour)
	case WindowLastSession, "":
		if ts, ok := a.store.LatestSessionSummaryAt(ctx); ok {
			return ts
		}
		return now.Add(-24 * time.Hour)
	default:
		return now.Add(-24 * time.Hour)
	}
}

// entriesByCategory queries one category, ranked and budgeted. Query
// errors degrade to an empty section.
func (a *Assembler) entriesByCategory(
	ctx context.Context,
	category, focus string,
	windowStart time.Time,
	changed []string,
	budget rank.Budget,
) []rank.Candidate {
	entries, err := a.store.Query(ctx, memory.Filter{Category: category})
	if err != nil || len(entries) == 0 {
		return nil
	}

	sim := a.similarityByID(ctx, focus, category)

	cands := make([]rank.Candidate, 0, len(entries))
	for _, e := range entries {
		cands = append(cands, rank.Candidate{
			Source:     rank.SourceMemory,
			Ref:        e.ID,
			Text:       e.Content,
			CreatedAt:  e.CreatedAt,
			Files:      entryFiles(e),
			Similarity: sim[e.ID],
		})
	}

	return rank.Rank(cands, timeNow().UTC(), rank.Options{
		Focus:        focus,
		WindowStart:  windowStart,
		ChangedFiles: changed,
		Weights:      a.cfg.RankWeights,
		Budget:       budget,
	})
}

// similarityByID returns entry-id → normalized similarity for the focus
// query, empty when there is no focus or the search degrades.
func (a *Assembler) similarityByID(ctx context.Context, focus, category string) map[string]float64 {
	if strings.TrimSpace(focus) == "" {
		return nil
	}
	scored, err := a.store.SimilaritySearch(ctx, focus, category, 50)
	if err != nil {
		return nil
	}
	sim := make(map[string]float64, len(scored))
	for _, s := range scored {
		sim[s.ID] = s.Score
	}
	return sim
}

// entryFiles reads the associated file paths from entry metadata
// (comma-separated under the "files" key).
func entryFiles(e memory.Entry) []string {
	raw, ok := e.Metadata["files"]
	if !ok {
		return nil
	}
	var files []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return files
}

// writeSection appends a markdown section with one line per candidate.
// Empty sections still get their header so the output shape is stable.
func writeSection(b *strings.Builder, title string, lines []string) {
	fmt.Fprintf(b, "## %s\n", title)
	if len(lines) == 0 {
		b.WriteString("(none)\n\n")
		return
	}
	for _, l := range lines {
		fmt.Fprintf(b, "- %s\n", l)
	}
	b.WriteString("\n")
}

func candidateLines(cands []rank.Candidate, perLine int) []string {
	lines := make([]string, 0, len(cands))
	for _, c := range cands {
		lines = append(lines, memory.Truncate(oneLine(c.Text), perLine))
	}
	return lines
}

// oneLine collapses text to its first non-empty line.
func oneLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// capChars enforces a hard output ceiling by dropping whole lines from
// the end, never cutting a line mid-content.
func capChars(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	lines := strings.Split(text, "\n")
	for len(lines) > 0 {
		candidate := strings.Join(lines, "\n")
		if len(candidate) <= max {
			return candidate
		}
		lines = lines[:len(lines)-1]
	}
	return ""
}
