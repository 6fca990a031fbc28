// Package agent is the invocation boundary to external AI agent
// processes. The core does not know or care how an agent executes; it
// hands over a prompt and gets back free text plus optional structured
// events. Non-zero exit status and transport errors are treated
// identically as invocation failures.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/emberhq/ember/internal/fault"
)

// Mode selects how the agent should behave for this invocation.
type Mode string

const (
	// ModeReview asks the agent to review code and emit a verdict.
	ModeReview Mode = "review"
)

// Request is a single agent invocation.
type Request struct {
	AgentID string
	Prompt  string
	Mode    Mode
}

// Event is one structured event parsed from the agent's output stream.
type Event struct {
	Type    string `json:"type"`
	Verdict string `json:"verdict,omitempty"`
	Text    string `json:"text,omitempty"`
	Raw     string `json:"-"`
}

// Result is what an invocation produced.
type Result struct {
	Text       string
	Events     []Event
	ExitStatus int
}

// Invoker runs an external agent. Implementations must respect the
// context deadline — the timeout is the cancellation mechanism.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// CLIInvoker runs an agent CLI as a subprocess, passing the prompt as the
// final argument and parsing stdout as JSONL events.
type CLIInvoker struct {
	// Command is the argv prefix, e.g. ["codex", "exec", "--json"].
	Command []string
	// Timeout bounds the invocation wall-clock.
	Timeout time.Duration
	// WorkDir is the working directory for the subprocess.
	WorkDir string
}

// NewCLIInvoker creates a CLIInvoker.
func NewCLIInvoker(command []string, timeout time.Duration, workDir string) *CLIInvoker {
	return &CLIInvoker{Command: command, Timeout: timeout, WorkDir: workDir}
}

// Invoke runs the agent CLI and parses its output. Timeouts, spawn
// errors, and non-zero exits all surface as InvocationFailure.
func (c *CLIInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	if len(c.Command) == 0 {
		return nil, fault.New(fault.InvocationFailure, "no agent command configured")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.Command[1:]...), req.Prompt)
	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	cmd.Dir = c.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fault.New(fault.InvocationFailure,
			"agent %s timed out after %s", req.AgentID, c.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fault.New(fault.InvocationFailure,
				"agent %s exited with code %d: %s",
				req.AgentID, exitErr.ExitCode(), firstLine(stderr.String()))
		}
		return nil, fault.Wrap(fault.InvocationFailure, err, "running agent %s", req.AgentID)
	}

	result := ParseOutput(stdout.String())
	return result, nil
}

// ParseOutput parses agent stdout: JSONL lines become structured events,
// and free text is recovered from message events (or, when no line parses
// as JSON, from the raw output itself).
func ParseOutput(stdout string) *Result {
	result := &Result{}
	var texts []string

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.Type == "" {
			// Not a structured event; keep as free text.
			texts = append(texts, line)
			continue
		}
		ev.Raw = line

		if ev.Type == "message" && ev.Text == "" {
			ev.Text = extractMessageText(line)
		}
		if ev.Text != "" {
			texts = append(texts, ev.Text)
		}
		result.Events = append(result.Events, ev)
	}

	result.Text = strings.Join(texts, "\n")
	return result
}

// extractMessageText digs message content out of the common CLI event
// shapes: {"message":{"content":"..."}} and content blocks
// [{"type":"text","text":"..."}].
func extractMessageText(line string) string {
	var wrapper struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal([]byte(line), &wrapper); err != nil || len(wrapper.Message.Content) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(wrapper.Message.Content, &asString); err == nil {
		return asString
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(wrapper.Message.Content, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
