// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools and prompts that depend on abstractions.
// No business logic lives here — only wiring.
package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/emberhq/ember/internal/agent"
	"github.com/emberhq/ember/internal/assemble"
	"github.com/emberhq/ember/internal/config"
	"github.com/emberhq/ember/internal/memory"
	"github.com/emberhq/ember/internal/prompts"
	"github.com/emberhq/ember/internal/resources"
	"github.com/emberhq/ember/internal/review"
	"github.com/emberhq/ember/internal/signals"
	"github.com/emberhq/ember/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools and prompts
// registered. This is the single place where all dependencies are
// resolved.
//
// The returned cleanup function closes the memory store's database
// connection and must be called on shutdown (typically via defer). It is
// always non-nil and safe to call even if initialization partly failed.
func New() (*server.MCPServer, func(), error) {
	cfg := config.FromEnv()

	// All logging goes to stderr: stdout belongs to the MCP stdio
	// transport and a single stray line corrupts the protocol stream.
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "ember",
	})

	// --- Memory store (embeddings optional) ---
	//
	// The embedder degrades, the store does not: a missing Ollama means
	// FTS-only search, but a broken database is a startup failure —
	// every tool depends on memory.

	var embedder memory.Embedder
	if cfg.OllamaModel != "" {
		if e, err := memory.NewOllamaEmbedder(cfg.OllamaHost, cfg.OllamaModel); err != nil {
			logger.Warn("embedder unavailable, falling back to text search", "err", err)
		} else {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := e.Ping(pingCtx); err != nil {
				logger.Warn("ollama unreachable, falling back to text search", "err", err)
			} else {
				embedder = e
			}
			cancel()
		}
	}

	memCfg := memory.DefaultConfig()
	memCfg.DataDir = cfg.DataDir
	store, err := memory.New(memCfg, embedder, logger)
	if err != nil {
		return nil, noop, fmt.Errorf("initializing memory store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("memory store close", "err", err)
		}
	}

	// --- Context assembly ---

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	collector := signals.NewCollector(workDir)
	assembler := assemble.New(store, collector, cfg)

	// --- Review orchestration ---

	invoker := agent.NewCLIInvoker(cfg.AgentCommand, cfg.AgentTimeout, workDir)
	sessions := review.NewSessionStore(cfg.SessionGrace)
	orch := review.NewOrchestrator(sessions, invoker, assembler, store,
		cfg.AgentCommand[0], cfg.DefaultMaxIterations, logger)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"ember",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register review tools ---

	startReview := tools.NewStartReviewTool(orch)
	s.AddTool(startReview.Definition(), startReview.Handle)

	continueReview := tools.NewContinueReviewTool(orch)
	s.AddTool(continueReview.Definition(), continueReview.Handle)

	reviewStatus := tools.NewReviewStatusTool(orch)
	s.AddTool(reviewStatus.Definition(), reviewStatus.Handle)

	// --- Register context tools ---

	warmup := tools.NewWarmupTool(assembler)
	s.AddTool(warmup.Definition(), warmup.Handle)

	contextPack := tools.NewContextPackTool(assembler)
	s.AddTool(contextPack.Definition(), contextPack.Handle)

	spotcheck := tools.NewSpotcheckTool(assembler)
	s.AddTool(spotcheck.Definition(), spotcheck.Handle)

	// --- Register memory tools ---

	memAdd := tools.NewMemoryAddTool(store)
	s.AddTool(memAdd.Definition(), memAdd.Handle)

	memList := tools.NewMemoryListTool(store)
	s.AddTool(memList.Definition(), memList.Handle)

	memSearch := tools.NewMemorySearchTool(store)
	s.AddTool(memSearch.Definition(), memSearch.Handle)

	memDelete := tools.NewMemoryDeleteTool(store)
	s.AddTool(memDelete.Definition(), memDelete.Handle)

	memCapture := tools.NewMemoryCaptureTool(store)
	s.AddTool(memCapture.Definition(), memCapture.Handle)

	memBootstrap := tools.NewMemoryBootstrapTool(store, collector)
	s.AddTool(memBootstrap.Definition(), memBootstrap.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)

	logger.Info("server configured",
		"data_dir", cfg.DataDir,
		"agent", cfg.AgentCommand[0],
		"embeddings", embedder != nil)

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails before the
// store is open.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use Ember effectively.
func serverInstructions() string {
	return `You have access to Ember, a continuity and review MCP server.
Ember keeps project memory across sessions and runs an external reviewer
agent over your completed work.

## Session lifecycle

1. At session start, call warmup (or the user runs the ember_start prompt).
   It returns the project goal, recent decisions, open loops, uncommitted
   changes, and next actions. Read it before doing anything else.
2. Before starting non-trivial work on a named area, call context_pack
   with a focus. It returns the project brief, relevant memory, and
   excerpts of the most relevant files.
3. Before ending a session, call memory_capture with a summary, open
   loops, and next actions. The next session's warmup is built from it.

## Memory

- Save PROACTIVELY with memory_add after decisions, fixes, and
  discoveries — don't wait to be asked. Categories: brief, decision,
  open_loop, next_action, recent_change, or any custom label.
- Entries are immutable. To revise one, memory_delete it and add a
  replacement.
- memory_search finds entries by meaning; memory_list browses by
  category. memory_bootstrap seeds the project brief on first run.

## Review

- After finishing a unit of work, call start_review with a description
  of what you built. An external reviewer examines it and returns a
  verdict.
- If changes are requested, address the feedback, then call
  continue_review with the session id and a note on what changed.
  Repeat until approved or the iteration cap is reached.
- An ambiguous reviewer response is never treated as approval. If the
  cap is reached without approval, surface the remaining findings to the
  user instead of declaring the work done.
- spotcheck is the lightweight alternative mid-work: a quick ranked list
  of the riskiest uncommitted files. It does not replace start_review.

## Rules

- Never skip the final review of substantial work.
- Never mark work complete while a review session is in
  changes_requested.
- Keep memory entries short, specific, and self-contained.`
}
