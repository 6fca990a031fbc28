// Package prompts implements Ember's MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the ember_start MCP prompt: the session-open
// ritual of warming up from memory before touching code.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("ember_start",
		mcp.WithPromptDescription(
			"Start a working session with full continuity: recover context from memory, "+
				"check in-flight work, and pick up where the last session left off.",
		),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription("Optional topic to focus this session on"),
		),
	)
}

// Handle processes the ember_start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	focus := ""
	if args := req.Params.Arguments; args != nil {
		focus = args["focus"]
	}

	text := "Start this session with continuity:\n\n" +
		"1. Call `warmup`"
	if focus != "" {
		text += " with focus='" + focus + "'"
	}
	text += " to recover the project goal, recent decisions, open loops, and next actions\n" +
		"2. Summarize for me in a few lines what state the project is in and what the obvious next step is\n" +
		"3. If we start non-trivial work on a named area, call `context_pack` for it first\n" +
		"4. Throughout the session, save decisions and discoveries with `memory_add`\n" +
		"5. Before we finish, call `memory_capture` with a session summary, open loops, and next actions\n"

	description := "Start session with continuity"
	if focus != "" {
		description += ": " + focus
	}

	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
