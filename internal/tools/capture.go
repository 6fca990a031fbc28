package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/emberhq/ember/internal/memory"
	"github.com/emberhq/ember/internal/signals"
)

// MemoryCaptureTool handles the memory_capture MCP tool: the structured
// end-of-session write that feeds the next session's warmup.
type MemoryCaptureTool struct {
	store *memory.Store
}

// NewMemoryCaptureTool creates a MemoryCaptureTool.
func NewMemoryCaptureTool(store *memory.Store) *MemoryCaptureTool {
	return &MemoryCaptureTool{store: store}
}

// Definition returns the MCP tool definition for memory_capture.
func (t *MemoryCaptureTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_capture",
		mcp.WithDescription(
			"Capture the session outcome before ending: a summary plus any open loops and "+
				"next actions. This is what the next session's warmup is built from — "+
				"call it at the end of every working session.",
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("What happened this session: goal, what was accomplished, notable findings"),
		),
		mcp.WithString("open_loops",
			mcp.Description("Unfinished threads, one per line"),
		),
		mcp.WithString("next_actions",
			mcp.Description("Concrete next steps, one per line"),
		),
	)
}

// Handle processes the memory_capture tool call. The summary insert must
// succeed; loop and action inserts are best-effort and reported per line.
func (t *MemoryCaptureTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary := req.GetString("summary", "")
	if summary == "" {
		return mcp.NewToolResultError("'summary' is required"), nil
	}

	id, err := t.store.Insert(ctx, memory.InsertParams{
		Category: "session_summary",
		Content:  summary,
	})
	if err != nil {
		return faultResult(err), nil
	}

	saved := 1
	failed := 0
	for category, raw := range map[string]string{
		"open_loop":   req.GetString("open_loops", ""),
		"next_action": req.GetString("next_actions", ""),
	} {
		for _, line := range strings.Split(raw, "\n") {
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			if _, err := t.store.Insert(ctx, memory.InsertParams{Category: category, Content: line}); err != nil {
				failed++
				continue
			}
			saved++
		}
	}

	out := fmt.Sprintf("Session captured: %s (%d entries saved)", id, saved)
	if failed > 0 {
		out += fmt.Sprintf(", %d failed", failed)
	}
	return mcp.NewToolResultText(out), nil
}

// ─── MemoryBootstrapTool ────────────────────────────────────────────────────

// MemoryBootstrapTool handles the memory_bootstrap MCP tool: first-run
// seeding of the project brief from what the repository already says
// about itself.
type MemoryBootstrapTool struct {
	store   *memory.Store
	signals *signals.Collector
}

// NewMemoryBootstrapTool creates a MemoryBootstrapTool.
func NewMemoryBootstrapTool(store *memory.Store, sig *signals.Collector) *MemoryBootstrapTool {
	return &MemoryBootstrapTool{store: store, signals: sig}
}

// Definition returns the MCP tool definition for memory_bootstrap.
func (t *MemoryBootstrapTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_bootstrap",
		mcp.WithDescription(
			"Seed memory for a project that has none yet: reads the repo's own docs "+
				"(README, agent instruction files, manifests) and stores a project brief. "+
				"Refuses to run when a brief already exists unless force=true.",
		),
		mcp.WithString("brief",
			mcp.Description("Project brief to store. When omitted, one is assembled from repo docs."),
		),
		mcp.WithBoolean("force",
			mcp.Description("Replace an existing brief (default: false)"),
		),
	)
}

// Handle processes the memory_bootstrap tool call.
func (t *MemoryBootstrapTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	existing, err := t.store.Count(ctx, "brief")
	if err != nil {
		return faultResult(err), nil
	}
	force := boolArg(req, "force", false)
	if existing > 0 && !force {
		return mcp.NewToolResultText(
			"A project brief already exists. Pass force=true to replace it, " +
				"or use memory_add for incremental facts."), nil
	}

	brief := strings.TrimSpace(req.GetString("brief", ""))
	if brief == "" {
		brief = t.briefFromRepo()
	}
	if brief == "" {
		return mcp.NewToolResultError(
			"no 'brief' given and no README or manifest found to assemble one from"), nil
	}

	if existing > 0 && force {
		if _, err := t.store.Delete(ctx, memory.DeleteParams{Category: "brief", Confirm: true}); err != nil {
			return faultResult(err), nil
		}
	}

	id, err := t.store.Insert(ctx, memory.InsertParams{Category: "brief", Content: brief})
	if err != nil {
		return faultResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Project brief stored: %s\n\n%s",
		id, memory.Truncate(brief, 500))), nil
}

// briefFromRepo assembles a brief from repo docs: the first doc found
// (README and friends), plus a one-line inventory of manifests present.
func (t *MemoryBootstrapTool) briefFromRepo() string {
	var b strings.Builder

	docs := t.signals.Docs()
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(memory.Truncate(strings.TrimSpace(docs[name]), 1500))
		b.WriteString("\n")
		break
	}

	if manifests := t.signals.Manifests(); len(manifests) > 0 {
		keys := make([]string, 0, len(manifests))
		for name := range manifests {
			keys = append(keys, name)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, "\nBuild manifests: %s\n", strings.Join(keys, ", "))
	}

	return strings.TrimSpace(b.String())
}
