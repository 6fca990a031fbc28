package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/emberhq/ember/internal/memory"
)

// knownCategories is advisory: any non-empty category is accepted, these
// are the ones the assembler gives dedicated treatment.
var knownCategories = []string{
	"brief", "decision", "open_loop", "next_action", "recent_change", "session_summary",
}

// MemoryAddTool handles the memory_add MCP tool.
type MemoryAddTool struct {
	store *memory.Store
}

// NewMemoryAddTool creates a MemoryAddTool.
func NewMemoryAddTool(store *memory.Store) *MemoryAddTool {
	return &MemoryAddTool{store: store}
}

// Definition returns the MCP tool definition for memory_add.
func (t *MemoryAddTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_add",
		mcp.WithDescription(
			"Save a fact to persistent project memory. Call PROACTIVELY after decisions, "+
				"discoveries, and completed work — don't wait to be asked. Entries are immutable: "+
				"to revise one, delete it and add a replacement.",
		),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Entry category: "+strings.Join(knownCategories, ", ")+", or any custom label"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The fact to remember, self-contained and specific"),
		),
		mcp.WithString("files",
			mcp.Description("Comma-separated file paths this entry relates to (improves later relevance ranking)"),
		),
	)
}

// Handle processes the memory_add tool call.
func (t *MemoryAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	content := req.GetString("content", "")
	if category == "" {
		return mcp.NewToolResultError("'category' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	var meta map[string]string
	if files := strings.TrimSpace(req.GetString("files", "")); files != "" {
		meta = map[string]string{"files": files}
	}

	id, err := t.store.Insert(ctx, memory.InsertParams{
		Category: category,
		Content:  content,
		Metadata: meta,
	})
	if err != nil {
		return faultResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Remembered (%s): %s", category, id)), nil
}

// ─── MemoryListTool ─────────────────────────────────────────────────────────

// MemoryListTool handles the memory_list MCP tool.
type MemoryListTool struct {
	store *memory.Store
}

// NewMemoryListTool creates a MemoryListTool.
func NewMemoryListTool(store *memory.Store) *MemoryListTool {
	return &MemoryListTool{store: store}
}

// Definition returns the MCP tool definition for memory_list.
func (t *MemoryListTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_list",
		mcp.WithDescription("List memory entries, newest first, optionally filtered by category."),
		mcp.WithString("category",
			mcp.Description("Only entries in this category"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default: 20)"),
		),
	)
}

// Handle processes the memory_list tool call.
func (t *MemoryListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := t.store.Query(ctx, memory.Filter{
		Category: req.GetString("category", ""),
		Limit:    intArg(req, "limit", 20),
	})
	if err != nil {
		return faultResult(err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No memory entries found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d entries:\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s (%s)\n  %s\n",
			e.ID, e.Category, e.CreatedAt.Format("2006-01-02 15:04"),
			memory.Truncate(e.Content, 200))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── MemorySearchTool ───────────────────────────────────────────────────────

// MemorySearchTool handles the memory_search MCP tool.
type MemorySearchTool struct {
	store *memory.Store
}

// NewMemorySearchTool creates a MemorySearchTool.
func NewMemorySearchTool(store *memory.Store) *MemorySearchTool {
	return &MemorySearchTool{store: store}
}

// Definition returns the MCP tool definition for memory_search.
func (t *MemorySearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search memory by meaning. Uses embedding similarity when available, "+
				"full-text ranking otherwise.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look for"),
		),
		mcp.WithString("category",
			mcp.Description("Restrict the search to one category"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default: 10)"),
		),
	)
}

// Handle processes the memory_search tool call.
func (t *MemorySearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	results, err := t.store.SimilaritySearch(ctx, query,
		req.GetString("category", ""), intArg(req, "limit", 10))
	if err != nil {
		return faultResult(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No matches."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d matches for %q:\n\n", len(results), query)
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s (score %.2f)\n  %s\n",
			r.ID, r.Category, r.Score, memory.Truncate(r.Content, 300))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── MemoryDeleteTool ───────────────────────────────────────────────────────

// MemoryDeleteTool handles the memory_delete MCP tool.
type MemoryDeleteTool struct {
	store *memory.Store
}

// NewMemoryDeleteTool creates a MemoryDeleteTool.
func NewMemoryDeleteTool(store *memory.Store) *MemoryDeleteTool {
	return &MemoryDeleteTool{store: store}
}

// Definition returns the MCP tool definition for memory_delete.
func (t *MemoryDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_delete",
		mcp.WithDescription(
			"Delete a memory entry by id, or an entire category with confirm=true. "+
				"Set exactly one of id or category.",
		),
		mcp.WithString("id",
			mcp.Description("Entry id to delete"),
		),
		mcp.WithString("category",
			mcp.Description("Category to clear (requires confirm)"),
		),
		mcp.WithBoolean("confirm",
			mcp.Description("Must be true for category deletion"),
		),
	)
}

// Handle processes the memory_delete tool call.
func (t *MemoryDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := t.store.Delete(ctx, memory.DeleteParams{
		ID:       req.GetString("id", ""),
		Category: req.GetString("category", ""),
		Confirm:  boolArg(req, "confirm", false),
	})
	if err != nil {
		return faultResult(err), nil
	}
	if n == 0 {
		return mcp.NewToolResultText("Nothing deleted."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %d entr%s.", n, plural(n, "y", "ies"))), nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
