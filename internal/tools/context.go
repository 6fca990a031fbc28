package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/emberhq/ember/internal/assemble"
)

// WarmupTool handles the warmup MCP tool.
type WarmupTool struct {
	asm *assemble.Assembler
}

// NewWarmupTool creates a WarmupTool.
func NewWarmupTool(asm *assemble.Assembler) *WarmupTool {
	return &WarmupTool{asm: asm}
}

// Definition returns the MCP tool definition for warmup.
func (t *WarmupTool) Definition() mcp.Tool {
	return mcp.NewTool("warmup",
		mcp.WithDescription(
			"Get a bounded session-start summary: project goal, recent decisions, open loops, "+
				"uncommitted changes, and next actions. Call this at the start of every session "+
				"before doing anything else.",
		),
		mcp.WithString("focus",
			mcp.Description("Optional topic to bias the summary toward (e.g. 'auth refactor')"),
		),
		mcp.WithString("since",
			mcp.Description("Recency window: last_session (default), 24h, or 7d"),
		),
	)
}

// Handle processes the warmup tool call.
func (t *WarmupTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.asm.Warmup(ctx, assemble.WarmupRequest{
		Focus: req.GetString("focus", ""),
		Since: assemble.Window(req.GetString("since", "")),
	})
	if err != nil {
		return faultResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

// ─── ContextPackTool ────────────────────────────────────────────────────────

// ContextPackTool handles the context_pack MCP tool.
type ContextPackTool struct {
	asm *assemble.Assembler
}

// NewContextPackTool creates a ContextPackTool.
func NewContextPackTool(asm *assemble.Assembler) *ContextPackTool {
	return &ContextPackTool{asm: asm}
}

// Definition returns the MCP tool definition for context_pack.
func (t *ContextPackTool) Definition() mcp.Tool {
	return mcp.NewTool("context_pack",
		mcp.WithDescription(
			"Build a focused context bundle for a specific task: project brief, relevant memory, "+
				"excerpts of the most relevant files, and pointers for deeper lookup. Use before "+
				"starting non-trivial work on a named area.",
		),
		mcp.WithString("focus",
			mcp.Required(),
			mcp.Description("The task or area to build context for"),
		),
		mcp.WithNumber("max_files",
			mcp.Description("Maximum number of file excerpts to include (default: 5)"),
		),
		mcp.WithNumber("max_chars",
			mcp.Description("Hard output ceiling in characters (default: 12000)"),
		),
	)
}

// Handle processes the context_pack tool call.
func (t *ContextPackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	focus := req.GetString("focus", "")
	if focus == "" {
		return mcp.NewToolResultError("'focus' is required"), nil
	}

	out, err := t.asm.ContextPack(ctx, assemble.PackRequest{
		Focus:    focus,
		MaxFiles: intArg(req, "max_files", 0),
		MaxChars: intArg(req, "max_chars", 0),
	})
	if err != nil {
		return faultResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}

// ─── SpotcheckTool ──────────────────────────────────────────────────────────

// SpotcheckTool handles the spotcheck MCP tool.
type SpotcheckTool struct {
	asm *assemble.Assembler
}

// NewSpotcheckTool creates a SpotcheckTool.
func NewSpotcheckTool(asm *assemble.Assembler) *SpotcheckTool {
	return &SpotcheckTool{asm: asm}
}

// Definition returns the MCP tool definition for spotcheck.
func (t *SpotcheckTool) Definition() mcp.Tool {
	return mcp.NewTool("spotcheck",
		mcp.WithDescription(
			"Quick risk triage of the uncommitted change set: the top few files a reviewer "+
				"should look at first, each with a severity and a one-line reason. Lighter than "+
				"start_review — use it mid-work, not as a final gate.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of risk items to return (default: 3)"),
		),
	)
}

// Handle processes the spotcheck tool call.
func (t *SpotcheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := t.asm.Spotcheck(ctx, assemble.SpotcheckRequest{
		Limit: intArg(req, "limit", 0),
	})
	if err != nil {
		return faultResult(err), nil
	}
	return mcp.NewToolResultText(out), nil
}
