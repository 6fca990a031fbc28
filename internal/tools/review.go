package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/emberhq/ember/internal/review"
)

// StartReviewTool handles the start_review MCP tool.
type StartReviewTool struct {
	orch *review.Orchestrator
}

// NewStartReviewTool creates a StartReviewTool.
func NewStartReviewTool(orch *review.Orchestrator) *StartReviewTool {
	return &StartReviewTool{orch: orch}
}

// Definition returns the MCP tool definition for start_review.
func (t *StartReviewTool) Definition() mcp.Tool {
	return mcp.NewTool("start_review",
		mcp.WithDescription(
			"Start an iterative review of completed work. An external reviewer agent examines "+
				"the target, and the session loops until it approves or the iteration cap is hit. "+
				"Call this after finishing a unit of work, before considering it done.",
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("What to review: a description of the completed work (e.g. 'the new rate limiter in internal/limit')"),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description("Maximum review iterations before giving up (default: 3)"),
		),
	)
}

// Handle processes the start_review tool call. The first iteration runs
// synchronously, so the response already carries the first verdict.
func (t *StartReviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := req.GetString("target", "")
	if strings.TrimSpace(target) == "" {
		return mcp.NewToolResultError("'target' is required"), nil
	}
	maxIts := intArg(req, "max_iterations", t.orch.DefaultMaxIterations())

	s, err := t.orch.Start(ctx, target, maxIts)
	if err != nil {
		if s == nil {
			return faultResult(err), nil
		}
		// The session exists but the first iteration failed; report the
		// retryable state instead of a bare error.
		return mcp.NewToolResultText(renderSession(s) +
			fmt.Sprintf("\nIteration failed: %v\nRetry with continue_review.\n", err)), nil
	}
	return mcp.NewToolResultText(renderSession(s)), nil
}

// ─── ContinueReviewTool ─────────────────────────────────────────────────────

// ContinueReviewTool handles the continue_review MCP tool.
type ContinueReviewTool struct {
	orch *review.Orchestrator
}

// NewContinueReviewTool creates a ContinueReviewTool.
func NewContinueReviewTool(orch *review.Orchestrator) *ContinueReviewTool {
	return &ContinueReviewTool{orch: orch}
}

// Definition returns the MCP tool definition for continue_review.
func (t *ContinueReviewTool) Definition() mcp.Tool {
	return mcp.NewTool("continue_review",
		mcp.WithDescription(
			"Run the next iteration of an active review session, after addressing the "+
				"reviewer's feedback. Also retries a session whose last invocation failed.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The review session id returned by start_review"),
		),
		mcp.WithString("notes",
			mcp.Description("Optional note for the reviewer, e.g. what was changed since the last round"),
		),
	)
}

// Handle processes the continue_review tool call.
func (t *ContinueReviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	notes := req.GetString("notes", "")

	s, err := t.orch.Continue(ctx, id, notes)
	if err != nil {
		if s == nil {
			return faultResult(err), nil
		}
		return mcp.NewToolResultText(renderSession(s) +
			fmt.Sprintf("\nIteration failed: %v\nRetry with continue_review.\n", err)), nil
	}
	return mcp.NewToolResultText(renderSession(s)), nil
}

// ─── ReviewStatusTool ───────────────────────────────────────────────────────

// ReviewStatusTool handles the get_review_status MCP tool.
type ReviewStatusTool struct {
	orch *review.Orchestrator
}

// NewReviewStatusTool creates a ReviewStatusTool.
func NewReviewStatusTool(orch *review.Orchestrator) *ReviewStatusTool {
	return &ReviewStatusTool{orch: orch}
}

// Definition returns the MCP tool definition for get_review_status.
func (t *ReviewStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("get_review_status",
		mcp.WithDescription("Get the current status and iteration history of a review session."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The review session id"),
		),
	)
}

// Handle processes the get_review_status tool call.
func (t *ReviewStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("session_id", "")
	if id == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	s, err := t.orch.Status(id)
	if err != nil {
		return faultResult(err), nil
	}
	return mcp.NewToolResultText(renderSession(s)), nil
}

// renderSession formats a session snapshot for the tool response: status
// line, then the iteration history with the most recent feedback last.
func renderSession(s *review.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review session %s\n", s.ID)
	fmt.Fprintf(&b, "Status: %s (iteration %d/%d)\n", s.Status, s.Iteration, s.MaxIterations)
	fmt.Fprintf(&b, "Target: %s\n", s.Target)

	for _, rec := range s.History {
		fmt.Fprintf(&b, "\n--- Iteration %d: %s ---\n", rec.Iteration, rec.Verdict)
		if rec.Summary != "" {
			b.WriteString(rec.Summary)
			b.WriteString("\n")
		}
	}

	switch s.Status {
	case review.StatusApproved:
		b.WriteString("\nThe reviewer approved the work. Nothing further required.\n")
	case review.StatusChangesRequested:
		b.WriteString("\nAddress the feedback above, then call continue_review with this session_id.\n")
	case review.StatusMaxIterations:
		b.WriteString("\nIteration cap reached without approval. Remaining findings need human judgment.\n")
	case review.StatusFailed:
		b.WriteString("\nThe last agent invocation failed. continue_review retries the same iteration.\n")
	}
	return b.String()
}
