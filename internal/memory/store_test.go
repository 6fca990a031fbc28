package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emberhq/ember/internal/fault"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	s, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// --- Insert ---

func TestInsert_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, InsertParams{
		Category: "decision",
		Content:  "switched the queue to at-least-once delivery",
		Metadata: map[string]string{"files": "internal/queue/queue.go"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(id) != 8 {
		t.Errorf("id = %q, want 8 chars", id)
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Category != "decision" {
		t.Errorf("category = %q", e.Category)
	}
	if e.Content != "switched the queue to at-least-once delivery" {
		t.Errorf("content = %q", e.Content)
	}
	if e.Metadata["files"] != "internal/queue/queue.go" {
		t.Errorf("metadata = %v", e.Metadata)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestInsert_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, InsertParams{Category: "", Content: "x"}); !fault.IsKind(err, fault.InvalidArgument) {
		t.Errorf("missing category: err = %v, want invalid_argument", err)
	}
	if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "  "}); !fault.IsKind(err, fault.InvalidArgument) {
		t.Errorf("blank content: err = %v, want invalid_argument", err)
	}
}

func TestInsert_OpenCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Categories are labels, not an enum.
	if _, err := s.Insert(ctx, InsertParams{Category: "deploy_note", Content: "x"}); err != nil {
		t.Errorf("custom category rejected: %v", err)
	}
}

func TestInsert_TruncatesOversizedContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	big := strings.Repeat("a", 5000)
	id, err := s.Insert(ctx, InsertParams{Category: "decision", Content: big})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	e, _ := s.Get(ctx, id)
	if len(e.Content) > 4000+len("... [truncated]") {
		t.Errorf("content length = %d, should be capped", len(e.Content))
	}
	if !strings.HasSuffix(e.Content, "... [truncated]") {
		t.Error("truncated content should be marked")
	}
}

// --- Query ---

func TestQuery_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []string{"first decision", "second decision"} {
		if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: c}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Insert(ctx, InsertParams{Category: "open_loop", Content: "a loop"}); err != nil {
		t.Fatal(err)
	}

	decisions, err := s.Query(ctx, Filter{Category: "decision"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(decisions) != 2 {
		t.Errorf("decisions = %d, want 2", len(decisions))
	}
	for _, e := range decisions {
		if e.Category != "decision" {
			t.Errorf("category filter leaked %q", e.Category)
		}
	}

	all, err := s.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	limited, _ := s.Query(ctx, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

func TestQuery_SinceFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "recent"}); err != nil {
		t.Fatal(err)
	}

	future := time.Now().UTC().Add(time.Hour)
	got, err := s.Query(ctx, Filter{Since: future})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("entries since the future = %d, want 0", len(got))
	}

	past := time.Now().UTC().Add(-time.Hour)
	got, _ = s.Query(ctx, Filter{Since: past})
	if len(got) != 1 {
		t.Errorf("entries since an hour ago = %d, want 1", len(got))
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "deadbeef")
	if !fault.IsKind(err, fault.NotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

// --- search (FTS fallback, no embedder) ---

func TestSimilaritySearch_TextFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "websocket reconnect uses exponential backoff"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "config parser rejects duplicate keys"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.SimilaritySearch(ctx, "websocket backoff", "", 10)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %d, want 1", len(got))
	}
	if !strings.Contains(got[0].Content, "websocket") {
		t.Errorf("wrong match: %q", got[0].Content)
	}
	if got[0].Score <= 0 || got[0].Score >= 1 {
		t.Errorf("score = %v, want in (0,1)", got[0].Score)
	}
}

func TestSimilaritySearch_EmptyQuery(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SimilaritySearch(context.Background(), "  ", "", 10)
	if !fault.IsKind(err, fault.InvalidArgument) {
		t.Errorf("err = %v, want invalid_argument", err)
	}
}

func TestSimilaritySearch_CategoryScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "retry policy decided"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, InsertParams{Category: "open_loop", Content: "retry policy needs docs"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.SimilaritySearch(ctx, "retry policy", "decision", 10)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	for _, r := range got {
		if r.Category != "decision" {
			t.Errorf("category scope leaked %q", r.Category)
		}
	}
}

// --- Delete ---

func TestDelete_ByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.Insert(ctx, InsertParams{Category: "decision", Content: "wrong decision"})

	n, err := s.Delete(ctx, DeleteParams{ID: id})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := s.Get(ctx, id); !fault.IsKind(err, fault.NotFound) {
		t.Errorf("entry still readable after delete: %v", err)
	}
}

func TestDelete_ThenAddIsTheRevisionPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old, _ := s.Insert(ctx, InsertParams{Category: "decision", Content: "use polling"})
	if _, err := s.Delete(ctx, DeleteParams{ID: old}); err != nil {
		t.Fatal(err)
	}
	replacement, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "use webhooks, polling was too slow"})
	if err != nil {
		t.Fatal(err)
	}

	// Search must see only the replacement: the FTS index follows the
	// delete.
	got, err := s.SimilaritySearch(ctx, "polling", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != replacement {
		t.Errorf("search after revision = %+v, want only the replacement", got)
	}
}

func TestDelete_CategoryRequiresConfirm(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "keep me"}); err != nil {
		t.Fatal(err)
	}

	n, err := s.Delete(ctx, DeleteParams{Category: "decision"})
	if !fault.IsKind(err, fault.InvalidArgument) {
		t.Errorf("err = %v, want invalid_argument", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}
	if cnt, _ := s.Count(ctx, "decision"); cnt != 1 {
		t.Errorf("count = %d, unconfirmed delete must be a no-op", cnt)
	}

	n, err = s.Delete(ctx, DeleteParams{Category: "decision", Confirm: true})
	if err != nil {
		t.Fatalf("confirmed delete: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestDelete_RejectsBothSelectors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Delete(context.Background(), DeleteParams{ID: "abc", Category: "decision", Confirm: true})
	if !fault.IsKind(err, fault.InvalidArgument) {
		t.Errorf("err = %v, want invalid_argument", err)
	}
}

func TestDelete_RejectsNeitherSelector(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Delete(context.Background(), DeleteParams{})
	if !fault.IsKind(err, fault.InvalidArgument) {
		t.Errorf("err = %v, want invalid_argument", err)
	}
}

// --- aggregates ---

func TestLatestSessionSummaryAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok := s.LatestSessionSummaryAt(ctx); ok {
		t.Error("empty store should report no session summary")
	}

	if _, err := s.Insert(ctx, InsertParams{Category: "session_summary", Content: "did things"}); err != nil {
		t.Fatal(err)
	}

	ts, ok := s.LatestSessionSummaryAt(ctx)
	if !ok {
		t.Fatal("summary not found after insert")
	}
	if time.Since(ts) > time.Minute {
		t.Errorf("timestamp = %v, should be recent", ts)
	}
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 3 {
		if _, err := s.Insert(ctx, InsertParams{Category: "decision", Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Insert(ctx, InsertParams{Category: "brief", Content: "y"}); err != nil {
		t.Fatal(err)
	}

	if n, _ := s.Count(ctx, ""); n != 4 {
		t.Errorf("total = %d, want 4", n)
	}
	if n, _ := s.Count(ctx, "decision"); n != 3 {
		t.Errorf("decisions = %d, want 3", n)
	}
}

// --- helpers ---

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	if got := Truncate("0123456789", 4); got != "0123..." {
		t.Errorf("Truncate = %q, want 0123...", got)
	}
}
