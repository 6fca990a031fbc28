// Package memory implements Ember's persistent memory store.
//
// It uses SQLite with FTS5 full-text search as the structured backend and
// stores embedding vectors as float32 blobs for semantic similarity. An
// entry is immutable once created: there is no update operation, because a
// stale vector for edited content is worse than no vector. Semantic change
// is always delete-then-add.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/emberhq/ember/internal/fault"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeFormat is how created_at is stored (UTC, SQLite datetime style).
const timeFormat = "2006-01-02 15:04:05"

// ─── Types ───────────────────────────────────────────────────────────────────

// Entry is a single immutable memory record.
type Entry struct {
	ID        string            `json:"id"`
	Category  string            `json:"category"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Embedding []float32         `json:"-"`
}

// Scored is an Entry with a similarity score normalized to [0,1].
type Scored struct {
	Entry
	Score float64 `json:"score"`
}

// InsertParams holds the input for creating a new entry.
type InsertParams struct {
	Category string            `json:"category"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Filter selects entries for Query. Zero values mean "no constraint".
type Filter struct {
	Category string
	Since    time.Time
	Limit    int
}

// DeleteParams selects entries for Delete. Exactly one of ID or Category
// must be set; Category deletion additionally requires Confirm.
type DeleteParams struct {
	ID       string
	Category string
	Confirm  bool
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store configuration.
type Config struct {
	DataDir          string
	MaxEntryLength   int
	MaxQueryResults  int
	MaxSearchResults int
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".ember"),
		MaxEntryLength:   4000,
		MaxQueryResults:  200,
		MaxSearchResults: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the memory store backed by SQLite + FTS5.
type Store struct {
	db       *sql.DB
	cfg      Config
	embedder Embedder
	logger   *log.Logger
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, and runs migrations.
// embedder may be nil: similarity search then falls back to FTS5 ranking.
func New(cfg Config, embedder Embedder, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "ember.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	if logger == nil {
		logger = log.New(os.Stderr)
	}

	s := &Store{db: db, cfg: cfg, embedder: embedder, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("memory: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			id         TEXT PRIMARY KEY,
			category   TEXT NOT NULL,
			content    TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			embedding  BLOB,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_category ON entries(category);
		CREATE INDEX IF NOT EXISTS idx_entries_created  ON entries(created_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			content,
			category,
			content='entries',
			content_rowid='rowid'
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS triggers (idempotent): FTS5 external-content tables need
	// explicit sync on insert and delete. There is no update trigger
	// because entries are immutable.
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='entries_fts_insert'",
	).Scan(&name)

	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER entries_fts_insert AFTER INSERT ON entries BEGIN
				INSERT INTO entries_fts(rowid, content, category)
				VALUES (new.rowid, new.content, new.category);
			END;

			CREATE TRIGGER entries_fts_delete AFTER DELETE ON entries BEGIN
				INSERT INTO entries_fts(entries_fts, rowid, content, category)
				VALUES ('delete', old.rowid, old.content, old.category);
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}

// ─── Insert ──────────────────────────────────────────────────────────────────

// Insert creates a new entry and returns its 8-char id. The content is
// embedded when an embedder is configured; embedding failures degrade to a
// vector-less entry and never block the write.
func (s *Store) Insert(ctx context.Context, p InsertParams) (string, error) {
	category := strings.TrimSpace(p.Category)
	content := strings.TrimSpace(p.Content)
	if category == "" {
		return "", fault.New(fault.InvalidArgument, "category is required")
	}
	if content == "" {
		return "", fault.New(fault.InvalidArgument, "content is required")
	}
	if len(content) > s.cfg.MaxEntryLength {
		content = content[:s.cfg.MaxEntryLength] + "... [truncated]"
	}

	meta := p.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fault.Wrap(fault.InvalidArgument, err, "encoding metadata")
	}

	var blob []byte
	if s.embedder != nil {
		vec, embErr := s.embedder.Embed(ctx, content)
		if embErr != nil {
			s.logger.Warn("embedding failed, storing entry without vector", "err", embErr)
		} else {
			blob = encodeVector(vec)
		}
	}

	createdAt := time.Now().UTC().Format(timeFormat)

	// 8-char ids collide rarely; retry with a fresh id when they do.
	for attempt := 0; attempt < 3; attempt++ {
		id := newEntryID()
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO entries (id, category, content, metadata, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, category, content, string(metaJSON), blob, createdAt,
		)
		if err == nil {
			return id, nil
		}
		if !isUniqueViolation(err) {
			return "", fault.Wrap(fault.StoreUnavailable, err, "inserting entry")
		}
	}
	return "", fault.New(fault.StoreUnavailable, "could not allocate a unique entry id")
}

// newEntryID returns the first 8 hex chars of a UUIDv4.
func newEntryID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ─── Query ───────────────────────────────────────────────────────────────────

// Query returns entries matching the filter, most recent first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = s.cfg.MaxQueryResults
	}

	query := `SELECT id, category, content, metadata, embedding, created_at FROM entries WHERE 1=1`
	args := []any{}

	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC().Format(timeFormat))
	}

	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "querying entries")
	}
	defer func() { _ = rows.Close() }()

	var results []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fault.Wrap(fault.StoreUnavailable, err, "scanning entry")
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "reading entries")
	}
	return results, nil
}

// Get returns a single entry by id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, content, metadata, embedding, created_at FROM entries WHERE id = ?`, id)
	if err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "querying entry %s", id)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, fault.New(fault.NotFound, "memory entry %q not found", id)
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "scanning entry %s", id)
	}
	return &e, nil
}

// ─── Similarity search ───────────────────────────────────────────────────────

// SimilaritySearch returns up to limit entries ranked by semantic
// similarity to query. With an embedder it is cosine similarity over the
// stored vectors; without one (or when no entry has a vector) it degrades
// to FTS5 ranking. Scores are normalized to [0,1] either way.
func (s *Store) SimilaritySearch(ctx context.Context, query, category string, limit int) ([]Scored, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fault.New(fault.InvalidArgument, "query is required")
	}
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	if s.embedder != nil {
		queryVec, err := s.embedder.Embed(ctx, query)
		if err == nil {
			results, vecErr := s.vectorSearch(ctx, queryVec, category, limit)
			if vecErr != nil {
				return nil, vecErr
			}
			if len(results) > 0 {
				return results, nil
			}
			// No entry has a vector yet; fall through to FTS.
		} else {
			s.logger.Warn("query embedding failed, falling back to text search", "err", err)
		}
	}

	return s.textSearch(ctx, query, category, limit)
}

func (s *Store) vectorSearch(ctx context.Context, queryVec []float32, category string, limit int) ([]Scored, error) {
	sqlStr := `SELECT id, category, content, metadata, embedding, created_at
	           FROM entries WHERE embedding IS NOT NULL`
	args := []any{}
	if category != "" {
		sqlStr += " AND category = ?"
		args = append(args, category)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "vector search")
	}
	defer func() { _ = rows.Close() }()

	var results []Scored
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fault.Wrap(fault.StoreUnavailable, err, "scanning entry")
		}
		sim := Cosine(queryVec, e.Embedding)
		// Cosine is [-1,1]; shift to [0,1] for the ranker contract.
		results = append(results, Scored{Entry: e, Score: (sim + 1) / 2})
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "reading vector search results")
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) textSearch(ctx context.Context, query, category string, limit int) ([]Scored, error) {
	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	sqlStr := `
		SELECT e.id, e.category, e.content, e.metadata, e.embedding, e.created_at, fts.rank
		FROM entries_fts fts
		JOIN entries e ON e.rowid = fts.rowid
		WHERE entries_fts MATCH ?
	`
	args := []any{ftsQuery}
	if category != "" {
		sqlStr += " AND e.category = ?"
		args = append(args, category)
	}
	sqlStr += " ORDER BY fts.rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "text search")
	}
	defer func() { _ = rows.Close() }()

	var results []Scored
	for rows.Next() {
		var (
			e         Entry
			metaJSON  string
			blob      []byte
			createdAt string
			rank      float64
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Content, &metaJSON, &blob, &createdAt, &rank); err != nil {
			return nil, fault.Wrap(fault.StoreUnavailable, err, "scanning search result")
		}
		fillEntry(&e, metaJSON, blob, createdAt)
		// FTS5 rank is negative bm25 (more negative = better match).
		// Map it into (0,1) so callers see one score contract.
		score := -rank
		if score < 0 {
			score = 0
		}
		results = append(results, Scored{Entry: e, Score: score / (score + 1)})
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.StoreUnavailable, err, "reading search results")
	}
	return results, nil
}

// ─── Delete ──────────────────────────────────────────────────────────────────

// Delete removes entries by id or by whole category and returns the count
// of deleted rows. Category deletion requires Confirm to guard against
// accidental bulk loss; without it the call is a no-op InvalidArgument.
func (s *Store) Delete(ctx context.Context, p DeleteParams) (int, error) {
	switch {
	case p.ID != "" && p.Category != "":
		return 0, fault.New(fault.InvalidArgument, "delete by id or by category, not both")
	case p.ID != "":
		res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, p.ID)
		if err != nil {
			return 0, fault.Wrap(fault.StoreUnavailable, err, "deleting entry %s", p.ID)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	case p.Category != "":
		if !p.Confirm {
			return 0, fault.New(fault.InvalidArgument,
				"deleting category %q requires confirm=true", p.Category)
		}
		res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE category = ?`, p.Category)
		if err != nil {
			return 0, fault.Wrap(fault.StoreUnavailable, err, "deleting category %s", p.Category)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	default:
		return 0, fault.New(fault.InvalidArgument, "delete requires an id or a category")
	}
}

// ─── Aggregates ──────────────────────────────────────────────────────────────

// LatestSessionSummaryAt returns the timestamp of the most recent
// session_summary entry. The second return is false when none exists.
func (s *Store) LatestSessionSummaryAt(ctx context.Context) (time.Time, bool) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM entries WHERE category = 'session_summary'`,
	).Scan(&ts)
	if err != nil || !ts.Valid {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timeFormat, ts.String, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Count returns the number of entries, optionally filtered by category.
func (s *Store) Count(ctx context.Context, category string) (int, error) {
	var n int
	var err error
	if category == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE category = ?`, category).Scan(&n)
	}
	if err != nil {
		return 0, fault.Wrap(fault.StoreUnavailable, err, "counting entries")
	}
	return n, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type rowLike interface {
	Scan(dest ...any) error
}

func scanEntry(row rowLike) (Entry, error) {
	var (
		e         Entry
		metaJSON  string
		blob      []byte
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.Category, &e.Content, &metaJSON, &blob, &createdAt); err != nil {
		return Entry{}, err
	}
	fillEntry(&e, metaJSON, blob, createdAt)
	return e, nil
}

func fillEntry(e *Entry, metaJSON string, blob []byte, createdAt string) {
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
	}
	if len(blob) > 0 {
		e.Embedding = decodeVector(blob)
	}
	if t, err := time.ParseInLocation(timeFormat, createdAt, time.UTC); err == nil {
		e.CreatedAt = t
	}
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
