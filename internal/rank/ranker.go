// Package rank scores and orders candidate context items by combined
// recency, semantic-similarity, and diff-overlap signals under a hard
// output-size budget. Ranking is a pure function over its inputs: no I/O,
// no shared state, safe from concurrent callers.
package rank

import (
	"sort"
	"time"

	"github.com/emberhq/ember/internal/config"
)

// Source identifies where a candidate came from.
type Source string

const (
	SourceMemory      Source = "memory"
	SourceChangedFile Source = "changed_file"
	SourceDocExcerpt  Source = "doc_excerpt"
)

// Candidate is an ephemeral context item under consideration. It is
// created per request and discarded after assembly; it never feeds back
// into the memory store.
type Candidate struct {
	Source    Source
	Ref       string // memory entry id, or file path
	Text      string
	CreatedAt time.Time
	Files     []string // associated files, for diff overlap

	Recency     float64
	Similarity  float64
	DiffOverlap float64
	Combined    float64
}

// Budget bounds ranker output. Zero values mean unbounded.
type Budget struct {
	MaxItems int
	MaxChars int
}

// Options parameterize a ranking pass.
type Options struct {
	// Focus is the optional semantic query. When empty, similarity
	// scores are forced to 0 (pure recency/diff ordering).
	Focus string
	// WindowStart is the resolved start of the recency window
	// (last_session / 24h / 7d). Items older than it get recency 0 but
	// are not excluded — they may still qualify via similarity or diff
	// overlap.
	WindowStart time.Time
	// ChangedFiles is the current changed-file set for diff overlap.
	ChangedFiles []string
	Weights      config.Weights
	Budget       Budget
}

// Rank scores, orders, and truncates candidates. The result is always a
// prefix of the scored ordering: truncation drops whole items from the
// end and never splits one mid-content.
func Rank(cands []Candidate, now time.Time, opts Options) []Candidate {
	changed := make(map[string]bool, len(opts.ChangedFiles))
	for _, f := range opts.ChangedFiles {
		changed[f] = true
	}

	window := now.Sub(opts.WindowStart)
	if opts.WindowStart.IsZero() || window <= 0 {
		window = 24 * time.Hour
	}

	scored := make([]Candidate, len(cands))
	for i, c := range cands {
		c.Recency = recencyScore(now, c.CreatedAt, window)
		if opts.Focus == "" {
			c.Similarity = 0
		}
		c.DiffOverlap = 0
		for _, f := range c.Files {
			if changed[f] {
				c.DiffOverlap = 1
				break
			}
		}
		c.Combined = opts.Weights.Recency*c.Recency +
			opts.Weights.Similarity*c.Similarity +
			opts.Weights.DiffOverlap*c.DiffOverlap
		scored[i] = c
	}

	// Stable sort keeps insertion order as the final tie-break.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Combined != scored[j].Combined {
			return scored[i].Combined > scored[j].Combined
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})

	return truncate(scored, opts.Budget)
}

// recencyScore decays linearly from 1 (now) to 0 (window start and
// older). Items with no timestamp score 0.
func recencyScore(now, createdAt time.Time, window time.Duration) float64 {
	if createdAt.IsZero() || createdAt.After(now) {
		if createdAt.After(now) {
			return 1 // clock skew; treat as brand new
		}
		return 0
	}
	age := now.Sub(createdAt)
	if age >= window {
		return 0
	}
	return 1 - float64(age)/float64(window)
}

// truncate applies the budget: cap to MaxItems, then drop whole items
// from the end until the serialized text fits MaxChars.
func truncate(cands []Candidate, b Budget) []Candidate {
	if b.MaxItems > 0 && len(cands) > b.MaxItems {
		cands = cands[:b.MaxItems]
	}
	if b.MaxChars <= 0 {
		return cands
	}
	for len(cands) > 0 && TotalChars(cands) > b.MaxChars {
		cands = cands[:len(cands)-1]
	}
	return cands
}

// TotalChars is the serialized size of a candidate list: each item
// contributes its text plus a separating newline.
func TotalChars(cands []Candidate) int {
	total := 0
	for _, c := range cands {
		total += len(c.Text) + 1
	}
	return total
}
