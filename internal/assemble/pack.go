package assemble

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emberhq/ember/internal/fault"
	"github.com/emberhq/ember/internal/memory"
	"github.com/emberhq/ember/internal/rank"
)

// excerptChars bounds how much of any single file a context pack quotes.
const excerptChars = 1500

// PackRequest parameterizes a context pack. Focus is required.
type PackRequest struct {
	Focus    string
	MaxFiles int
	MaxChars int
}

// ContextPack builds the deeper, focus-driven bundle: project brief,
// relevant memory snippets, file excerpts for the top relevant files,
// and pointers for further lookup.
func (a *Assembler) ContextPack(ctx context.Context, req PackRequest) (string, error) {
	focus := strings.TrimSpace(req.Focus)
	if focus == "" {
		return "", fault.New(fault.InvalidArgument, "context_pack requires a focus")
	}
	maxFiles := req.MaxFiles
	if maxFiles <= 0 {
		maxFiles = a.cfg.PackMaxFiles
	}
	maxChars := req.MaxChars
	if maxChars <= 0 {
		maxChars = a.cfg.PackMaxChars
	}

	windowStart := a.resolveWindow(ctx, WindowWeek)
	changed := a.signals.ChangedFiles(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "# Context pack: %s\n\n", focus)

	brief := "(no project brief recorded)"
	if briefs, err := a.store.Query(ctx, memory.Filter{Category: "brief", Limit: 1}); err == nil && len(briefs) > 0 {
		brief = briefs[0].Content
	}
	fmt.Fprintf(&b, "## Project brief\n%s\n\n", brief)

	snippets := a.focusSnippets(ctx, focus, windowStart, changed, maxChars/3)
	b.WriteString("## Relevant memory\n")
	if len(snippets) == 0 {
		b.WriteString("(nothing relevant recorded)\n\n")
	} else {
		for _, c := range snippets {
			fmt.Fprintf(&b, "- [%s] %s\n", c.Ref, memory.Truncate(c.Text, 400))
		}
		b.WriteString("\n")
	}

	files := a.relevantFiles(focus, changed, snippets, maxFiles)
	b.WriteString("## File excerpts\n")
	if len(files) == 0 {
		b.WriteString("(no relevant files found)\n\n")
	} else {
		excerpts := a.signals.ReadDocs(files)
		for _, f := range files {
			text, ok := excerpts[f]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "### %s\n```\n%s\n```\n\n", f, memory.Truncate(text, excerptChars))
		}
	}

	b.WriteString("## Pointers\n")
	b.WriteString("- memory_search for deeper history on any snippet above\n")
	for _, c := range snippets {
		if len(c.Files) > 0 {
			fmt.Fprintf(&b, "- entry %s touches: %s\n", c.Ref, strings.Join(c.Files, ", "))
		}
	}

	return capChars(b.String(), maxChars), nil
}

// focusSnippets ranks similarity-search hits across all categories.
func (a *Assembler) focusSnippets(
	ctx context.Context,
	focus string,
	windowStart time.Time,
	changed []string,
	charBudget int,
) []rank.Candidate {
	scored, err := a.store.SimilaritySearch(ctx, focus, "", 20)
	if err != nil || len(scored) == 0 {
		return nil
	}

	cands := make([]rank.Candidate, 0, len(scored))
	for _, s := range scored {
		cands = append(cands, rank.Candidate{
			Source:     rank.SourceMemory,
			Ref:        s.ID,
			Text:       s.Content,
			CreatedAt:  s.CreatedAt,
			Files:      entryFiles(s.Entry),
			Similarity: s.Score,
		})
	}

	return rank.Rank(cands, timeNow().UTC(), rank.Options{
		Focus:        focus,
		WindowStart:  windowStart,
		ChangedFiles: changed,
		Weights:      a.cfg.RankWeights,
		Budget:       rank.Budget{MaxItems: 8, MaxChars: charBudget},
	})
}

// relevantFiles picks the top files for excerpting: changed files whose
// path mentions a focus term first, then files referenced by the
// matched memory entries, then the rest of the changed set.
func (a *Assembler) relevantFiles(focus string, changed []string, snippets []rank.Candidate, maxFiles int) []string {
	terms := strings.Fields(strings.ToLower(focus))
	seen := make(map[string]bool)
	var files []string

	add := func(f string) {
		if f != "" && !seen[f] && len(files) < maxFiles {
			seen[f] = true
			files = append(files, f)
		}
	}

	for _, f := range changed {
		lower := strings.ToLower(f)
		for _, t := range terms {
			if strings.Contains(lower, t) {
				add(f)
				break
			}
		}
	}
	for _, c := range snippets {
		for _, f := range c.Files {
			add(f)
		}
	}
	for _, f := range changed {
		add(f)
	}
	return files
}

// ReviewContext implements review.ContextBuilder: the focused pack for a
// review target, sized for prompt embedding. Errors degrade to empty.
func (a *Assembler) ReviewContext(ctx context.Context, target string) (string, error) {
	pack, err := a.ContextPack(ctx, PackRequest{
		Focus:    target,
		MaxFiles: 3,
		MaxChars: a.cfg.PackMaxChars / 2,
	})
	if err != nil {
		return "", err
	}
	return pack, nil
}
