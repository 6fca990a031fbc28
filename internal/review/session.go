// Package review drives an external review agent through iterative
// review/fix cycles to convergence. It owns the live session state
// machine; only terminal outcomes cross into the durable memory store.
package review

import "time"

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

// Status is the review session state.
//
// pending → in_progress → {approved, changes_requested, max_iterations, failed}
//
// changes_requested loops back to in_progress on the next Continue until
// approved, max_iterations, or failed.
type Status string

const (
	StatusPending          Status = "pending"
	StatusInProgress       Status = "in_progress"
	StatusChangesRequested Status = "changes_requested"
	StatusApproved         Status = "approved"
	StatusMaxIterations    Status = "max_iterations"
	StatusFailed           Status = "failed"
)

// Terminal reports whether no further iterations may run. A failed
// session is not terminal in this sense: the caller may retry it by
// calling Continue again, which re-attempts from the same iteration.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusMaxIterations
}

// Continuable reports whether Continue is a valid operation.
func (s Status) Continuable() bool {
	return s == StatusInProgress || s == StatusChangesRequested || s == StatusFailed
}

// Verdict is the orchestrator's reading of one agent response.
type Verdict string

const (
	VerdictApproved         Verdict = "approved"
	VerdictChangesRequested Verdict = "changes_requested"
	VerdictInconclusive     Verdict = "inconclusive"
)

// IterationRecord is one entry in a session's history.
type IterationRecord struct {
	Iteration int     `json:"iteration"`
	Summary   string  `json:"summary"`
	Verdict   Verdict `json:"verdict"`
}

// Session is the live state of one multi-iteration review.
type Session struct {
	ID            string            `json:"session_id"`
	Status        Status            `json:"status"`
	Iteration     int               `json:"iteration"`
	MaxIterations int               `json:"max_iterations"`
	Target        string            `json:"target"`
	History       []IterationRecord `json:"history"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// LastSummary returns the most recent iteration's feedback summary.
func (s *Session) LastSummary() string {
	if len(s.History) == 0 {
		return ""
	}
	return s.History[len(s.History)-1].Summary
}

// clone returns a deep copy so callers never share the orchestrator's
// mutable state.
func (s *Session) clone() *Session {
	out := *s
	out.History = make([]IterationRecord, len(s.History))
	copy(out.History, s.History)
	return &out
}
