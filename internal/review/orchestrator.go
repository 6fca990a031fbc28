package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/emberhq/ember/internal/agent"
	"github.com/emberhq/ember/internal/fault"
	"github.com/emberhq/ember/internal/memory"
)

// maxSummaryLength bounds how much agent feedback is kept per iteration.
const maxSummaryLength = 1200

// ContextBuilder supplies the focused context pack for a review target.
// A nil builder or a build error degrades to a context-less prompt —
// missing context never blocks a review.
type ContextBuilder interface {
	ReviewContext(ctx context.Context, target string) (string, error)
}

// Recorder persists terminal session outcomes as memory entries.
type Recorder interface {
	Insert(ctx context.Context, p memory.InsertParams) (string, error)
}

// Orchestrator is the review session state machine. Sessions are
// independent and may run concurrently; calls on the same session id
// must be serialized by the caller.
type Orchestrator struct {
	sessions *SessionStore
	invoker  agent.Invoker
	builder  ContextBuilder
	recorder Recorder
	logger   *log.Logger

	agentID       string
	defaultMaxIts int
}

// NewOrchestrator creates an Orchestrator. builder and recorder may be
// nil (no context enrichment, no terminal capture).
func NewOrchestrator(
	sessions *SessionStore,
	invoker agent.Invoker,
	builder ContextBuilder,
	recorder Recorder,
	agentID string,
	defaultMaxIterations int,
	logger *log.Logger,
) *Orchestrator {
	if defaultMaxIterations < 1 {
		defaultMaxIterations = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		sessions:      sessions,
		invoker:       invoker,
		builder:       builder,
		recorder:      recorder,
		logger:        logger,
		agentID:       agentID,
		defaultMaxIts: defaultMaxIterations,
	}
}

// DefaultMaxIterations returns the configured default iteration cap.
func (o *Orchestrator) DefaultMaxIterations() int { return o.defaultMaxIts }

// Start creates a session for the target and runs the first review
// iteration. maxIterations must be >= 1.
func (o *Orchestrator) Start(ctx context.Context, target string, maxIterations int) (*Session, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fault.New(fault.InvalidArgument, "target description is required")
	}
	if maxIterations < 1 {
		return nil, fault.New(fault.InvalidArgument,
			"max_iterations must be >= 1, got %d", maxIterations)
	}

	now := timeNow().UTC()
	s := &Session{
		ID:            uuid.NewString(),
		Status:        StatusPending,
		MaxIterations: maxIterations,
		Target:        target,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Status = StatusInProgress
	o.sessions.Put(s)

	o.logger.Info("review started", "session_id", s.ID, "target", target, "max_iterations", maxIterations)

	err := o.runIteration(ctx, s, "")
	return s.clone(), err
}

// Continue runs the next review iteration for an existing session,
// optionally threading human input into the prompt. A failed session may
// be continued: the retry re-attempts from the same iteration count.
func (o *Orchestrator) Continue(ctx context.Context, id, humanInput string) (*Session, error) {
	s, err := o.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if !s.Status.Continuable() {
		return nil, fault.New(fault.InvalidState,
			"session %s is %s and cannot be continued", id, s.Status)
	}

	s.Status = StatusInProgress
	err = o.runIteration(ctx, s, humanInput)
	return s.clone(), err
}

// Status returns a read-only snapshot of the session.
func (o *Orchestrator) Status(id string) (*Session, error) {
	return o.sessions.Get(id)
}

// runIteration performs one invoke-parse-transition cycle. On an
// invocation failure the session is marked failed without incrementing
// the iteration, so a retry re-attempts the same iteration.
func (o *Orchestrator) runIteration(ctx context.Context, s *Session, humanInput string) error {
	prompt := o.buildPrompt(ctx, s, humanInput)

	res, err := o.invoker.Invoke(ctx, agent.Request{
		AgentID: o.agentID,
		Prompt:  prompt,
		Mode:    agent.ModeReview,
	})
	if err != nil {
		s.Status = StatusFailed
		s.UpdatedAt = timeNow().UTC()
		o.sessions.Put(s)
		o.logger.Warn("agent invocation failed", "session_id", s.ID, "iteration", s.Iteration+1, "err", err)
		return err
	}

	verdict := ParseVerdict(res.Events, res.Text)
	s.Iteration++
	s.History = append(s.History, IterationRecord{
		Iteration: s.Iteration,
		Summary:   memory.Truncate(strings.TrimSpace(res.Text), maxSummaryLength),
		Verdict:   verdict,
	})

	// Transition policy: approval wins, the iteration cap is checked
	// next regardless of verdict, and everything else (including an
	// inconclusive parse) means another round.
	switch {
	case verdict == VerdictApproved:
		s.Status = StatusApproved
	case s.Iteration >= s.MaxIterations:
		s.Status = StatusMaxIterations
	default:
		s.Status = StatusChangesRequested
	}
	s.UpdatedAt = timeNow().UTC()
	o.sessions.Put(s)

	o.logger.Info("review iteration done",
		"session_id", s.ID, "iteration", s.Iteration, "verdict", verdict, "status", s.Status)

	if s.Status.Terminal() {
		o.capture(ctx, s)
	}
	return nil
}

// buildPrompt assembles the review prompt: instructions, optional
// context pack, the target, prior feedback, and any human input.
func (o *Orchestrator) buildPrompt(ctx context.Context, s *Session, humanInput string) string {
	var b strings.Builder

	b.WriteString("You are a code reviewer. Review the work described below for bugs, security issues, and design problems.\n\n")
	fmt.Fprintf(&b, "Review target: %s\n", s.Target)

	if o.builder != nil {
		if pack, err := o.builder.ReviewContext(ctx, s.Target); err == nil && pack != "" {
			b.WriteString("\nProject context:\n")
			b.WriteString(pack)
			b.WriteString("\n")
		}
	}

	if last := s.LastSummary(); last != "" {
		fmt.Fprintf(&b, "\nYour previous review (iteration %d) said:\n%s\n", s.Iteration, last)
		b.WriteString("\nThe issues above should have been addressed. Re-review with fresh eyes.\n")
	}
	if humanInput = strings.TrimSpace(humanInput); humanInput != "" {
		fmt.Fprintf(&b, "\nNote from the developer:\n%s\n", humanInput)
	}

	b.WriteString("\nWhen you are done, emit a single JSON line: " +
		`{"type":"verdict","verdict":"approved"} if the work is acceptable, ` +
		`or {"type":"verdict","verdict":"changes_requested"} followed by your findings. ` +
		"Only say approved when you mean it.\n")

	return b.String()
}

// capture writes the terminal outcome into the memory store. Capture
// failures are logged, never surfaced — a finished review is not undone
// by a memory write error.
func (o *Orchestrator) capture(ctx context.Context, s *Session) {
	if o.recorder == nil {
		return
	}

	summary := fmt.Sprintf("Review of %q finished with status %s after %d iteration(s).",
		s.Target, s.Status, s.Iteration)
	if last := s.LastSummary(); last != "" {
		summary += "\nFinal feedback: " + memory.Truncate(last, 400)
	}

	_, err := o.recorder.Insert(ctx, memory.InsertParams{
		Category: "session_summary",
		Content:  summary,
		Metadata: map[string]string{
			"session_id": s.ID,
			"status":     string(s.Status),
			"iterations": fmt.Sprintf("%d", s.Iteration),
		},
	})
	if err != nil {
		o.logger.Warn("session capture failed", "session_id", s.ID, "err", err)
		return
	}

	if s.Status == StatusApproved {
		_, err := o.recorder.Insert(ctx, memory.InsertParams{
			Category: "recent_change",
			Content:  fmt.Sprintf("%s (review approved)", s.Target),
			Metadata: map[string]string{"session_id": s.ID},
		})
		if err != nil {
			o.logger.Warn("recent_change capture failed", "session_id", s.ID, "err", err)
		}
	}
}
