package assemble

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emberhq/ember/internal/config"
	"github.com/emberhq/ember/internal/fault"
	"github.com/emberhq/ember/internal/memory"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func init() {
	timeNow = func() time.Time { return testNow }
}

// fakeReader is an in-memory MemoryReader.
type fakeReader struct {
	entries       []memory.Entry
	scored        []memory.Scored
	lastSummaryAt time.Time
}

func (f *fakeReader) Query(_ context.Context, fl memory.Filter) ([]memory.Entry, error) {
	var out []memory.Entry
	for _, e := range f.entries {
		if fl.Category != "" && e.Category != fl.Category {
			continue
		}
		out = append(out, e)
		if fl.Limit > 0 && len(out) >= fl.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReader) SimilaritySearch(_ context.Context, _, category string, _ int) ([]memory.Scored, error) {
	var out []memory.Scored
	for _, s := range f.scored {
		if category != "" && s.Category != category {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeReader) LatestSessionSummaryAt(_ context.Context) (time.Time, bool) {
	return f.lastSummaryAt, !f.lastSummaryAt.IsZero()
}

// fakeSignals is a canned SignalSource.
type fakeSignals struct {
	changed []string
	stats   map[string]int
	docs    map[string]string
}

func (f *fakeSignals) ChangedFiles(_ context.Context) []string { return f.changed }
func (f *fakeSignals) DiffStat(_ context.Context) map[string]int {
	return f.stats
}
func (f *fakeSignals) ReadDocs(paths []string) map[string]string {
	out := make(map[string]string)
	for _, p := range paths {
		if text, ok := f.docs[p]; ok {
			out[p] = text
		}
	}
	return out
}

func entry(id, category, content string, age time.Duration) memory.Entry {
	return memory.Entry{ID: id, Category: category, Content: content, CreatedAt: testNow.Add(-age)}
}

func newTestAssembler(r *fakeReader, s *fakeSignals) *Assembler {
	return New(r, s, config.Default())
}

// --- Warmup ---

func TestWarmup_EmptyWorld(t *testing.T) {
	a := newTestAssembler(&fakeReader{}, &fakeSignals{})

	out, err := a.Warmup(context.Background(), WarmupRequest{})
	if err != nil {
		t.Fatalf("Warmup: %v", err)
	}

	// Every section header is present even with nothing to say.
	for _, section := range []string{"# Session warmup", "## Goal", "## Decisions", "## Open loops", "## Recent changes", "## Next actions"} {
		if !strings.Contains(out, section) {
			t.Errorf("missing section %q", section)
		}
	}
	if !strings.Contains(out, "(no project brief recorded)") {
		t.Error("empty world should say there is no brief")
	}
}

func TestWarmup_PopulatedSections(t *testing.T) {
	r := &fakeReader{
		entries: []memory.Entry{
			entry("br01", "brief", "A tool that syncs calendars.", 48*time.Hour),
			entry("de01", "decision", "store tokens encrypted at rest", time.Hour),
			entry("ol01", "open_loop", "webhook retries still unbounded", 2*time.Hour),
			entry("na01", "next_action", "wire the sync scheduler", time.Hour),
		},
	}
	s := &fakeSignals{
		changed: []string{"internal/sync/scheduler.go"},
		stats:   map[string]int{"internal/sync/scheduler.go": 42},
	}
	a := newTestAssembler(r, s)

	out, err := a.Warmup(context.Background(), WarmupRequest{Since: WindowDay})
	if err != nil {
		t.Fatalf("Warmup: %v", err)
	}

	for _, want := range []string{
		"A tool that syncs calendars.",
		"store tokens encrypted at rest",
		"webhook retries still unbounded",
		"wire the sync scheduler",
		"internal/sync/scheduler.go",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("warmup missing %q\n%s", want, out)
		}
	}
}

func TestWarmup_RespectsCharCeiling(t *testing.T) {
	var entries []memory.Entry
	for i := range 50 {
		entries = append(entries, entry("id", "open_loop",
			strings.Repeat("long open loop text ", 20), time.Duration(i)*time.Minute))
	}
	a := newTestAssembler(&fakeReader{entries: entries}, &fakeSignals{})

	out, err := a.Warmup(context.Background(), WarmupRequest{})
	if err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if len(out) > config.Default().WarmupMaxChars {
		t.Errorf("warmup = %d chars, exceeds ceiling %d", len(out), config.Default().WarmupMaxChars)
	}
}

// --- window resolution ---

func TestResolveWindow_LastSessionFallsBackTo24h(t *testing.T) {
	a := newTestAssembler(&fakeReader{}, &fakeSignals{})

	got := a.resolveWindow(context.Background(), WindowLastSession)

	if want := testNow.Add(-24 * time.Hour); !got.Equal(want) {
		t.Errorf("window = %v, want %v (24h fallback)", got, want)
	}
}

func TestResolveWindow_LastSessionUsesSummaryTime(t *testing.T) {
	summaryAt := testNow.Add(-3 * time.Hour)
	a := newTestAssembler(&fakeReader{lastSummaryAt: summaryAt}, &fakeSignals{})

	if got := a.resolveWindow(context.Background(), ""); !got.Equal(summaryAt) {
		t.Errorf("window = %v, want summary time %v", got, summaryAt)
	}
}

func TestResolveWindow_Fixed(t *testing.T) {
	a := newTestAssembler(&fakeReader{}, &fakeSignals{})

	if got := a.resolveWindow(context.Background(), WindowWeek); !got.Equal(testNow.Add(-7 * 24 * time.Hour)) {
		t.Errorf("7d window = %v", got)
	}
	if got := a.resolveWindow(context.Background(), WindowDay); !got.Equal(testNow.Add(-24 * time.Hour)) {
		t.Errorf("24h window = %v", got)
	}
}

// --- ContextPack ---

func TestContextPack_RequiresFocus(t *testing.T) {
	a := newTestAssembler(&fakeReader{}, &fakeSignals{})

	_, err := a.ContextPack(context.Background(), PackRequest{Focus: "   "})
	if !fault.IsKind(err, fault.InvalidArgument) {
		t.Errorf("err = %v, want invalid_argument", err)
	}
}

func TestContextPack_Sections(t *testing.T) {
	r := &fakeReader{
		entries: []memory.Entry{entry("br01", "brief", "Calendar sync tool.", 48*time.Hour)},
		scored: []memory.Scored{
			{Entry: entry("de01", "decision", "OAuth tokens rotate daily", time.Hour), Score: 0.9},
		},
	}
	s := &fakeSignals{
		changed: []string{"internal/auth/token.go"},
		docs:    map[string]string{"internal/auth/token.go": "package auth\n\nfunc Rotate() {}"},
	}
	a := newTestAssembler(r, s)

	out, err := a.ContextPack(context.Background(), PackRequest{Focus: "token rotation"})
	if err != nil {
		t.Fatalf("ContextPack: %v", err)
	}

	for _, want := range []string{
		"# Context pack: token rotation",
		"## Project brief",
		"Calendar sync tool.",
		"## Relevant memory",
		"OAuth tokens rotate daily",
		"## File excerpts",
		"internal/auth/token.go",
		"func Rotate()",
		"## Pointers",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("pack missing %q\n%s", want, out)
		}
	}
}

func TestContextPack_RespectsMaxChars(t *testing.T) {
	r := &fakeReader{
		scored: []memory.Scored{
			{Entry: entry("a", "decision", strings.Repeat("x", 2000), time.Hour), Score: 0.9},
		},
	}
	a := newTestAssembler(r, &fakeSignals{})

	out, err := a.ContextPack(context.Background(), PackRequest{Focus: "anything", MaxChars: 500})
	if err != nil {
		t.Fatalf("ContextPack: %v", err)
	}
	if len(out) > 500 {
		t.Errorf("pack = %d chars, exceeds 500", len(out))
	}
}

// --- Spotcheck ---

func TestSpotcheck_CleanTree(t *testing.T) {
	a := newTestAssembler(&fakeReader{}, &fakeSignals{})

	out, err := a.Spotcheck(context.Background(), SpotcheckRequest{})
	if err != nil {
		t.Fatalf("Spotcheck: %v", err)
	}
	if !strings.Contains(out, "No uncommitted changes") {
		t.Errorf("clean tree output = %q", out)
	}
}

func TestSpotcheck_RanksSensitivePathsFirst(t *testing.T) {
	s := &fakeSignals{
		changed: []string{"docs/typo.md", "internal/auth/session.go", "README.md"},
		stats:   map[string]int{"docs/typo.md": 1, "internal/auth/session.go": 10, "README.md": 2},
	}
	a := newTestAssembler(&fakeReader{}, s)

	out, err := a.Spotcheck(context.Background(), SpotcheckRequest{Limit: 1})
	if err != nil {
		t.Fatalf("Spotcheck: %v", err)
	}
	if !strings.Contains(out, "internal/auth/session.go") {
		t.Errorf("top risk should be the auth file:\n%s", out)
	}
	if strings.Contains(out, "docs/typo.md") {
		t.Errorf("limit 1 should drop low-risk items:\n%s", out)
	}
	if !strings.Contains(out, "[high]") {
		t.Errorf("auth path should rank high severity:\n%s", out)
	}
}

func TestSpotcheck_DefaultLimit(t *testing.T) {
	changed := []string{"a.go", "b.go", "c.go", "d.go", "e.go"}
	a := newTestAssembler(&fakeReader{}, &fakeSignals{changed: changed})

	out, err := a.Spotcheck(context.Background(), SpotcheckRequest{})
	if err != nil {
		t.Fatalf("Spotcheck: %v", err)
	}
	if got := strings.Count(out, "- ["); got != 3 {
		t.Errorf("items = %d, want default limit 3\n%s", got, out)
	}
}

func TestSpotcheck_LargeDiffRaisesSeverity(t *testing.T) {
	s := &fakeSignals{
		changed: []string{"internal/engine/core.go"},
		stats:   map[string]int{"internal/engine/core.go": 900},
	}
	a := newTestAssembler(&fakeReader{}, s)

	out, err := a.Spotcheck(context.Background(), SpotcheckRequest{})
	if err != nil {
		t.Fatalf("Spotcheck: %v", err)
	}
	if !strings.Contains(out, "large diff") {
		t.Errorf("large diff should be called out:\n%s", out)
	}
}

// --- ReviewContext ---

func TestReviewContext_BuildsFocusedPack(t *testing.T) {
	r := &fakeReader{
		scored: []memory.Scored{
			{Entry: entry("de01", "decision", "rate limit is per-tenant", time.Hour), Score: 0.8},
		},
	}
	a := newTestAssembler(r, &fakeSignals{})

	out, err := a.ReviewContext(context.Background(), "the new rate limiter")
	if err != nil {
		t.Fatalf("ReviewContext: %v", err)
	}
	if !strings.Contains(out, "rate limit is per-tenant") {
		t.Errorf("review context missing relevant memory:\n%s", out)
	}
}
