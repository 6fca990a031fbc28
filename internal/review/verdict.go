package review

import (
	"strings"

	"github.com/emberhq/ember/internal/agent"
)

// VerdictParser extracts a verdict from one agent response. Parsers are
// tried in order; the first conclusive answer wins.
//
// The ordering and its bias are a policy choice, not a parsing detail:
// structured events are authoritative, the text heuristic is a fallback,
// and every ambiguous case reads as "not yet approved". An agent that
// wants approval must say so explicitly.
type VerdictParser interface {
	Parse(events []agent.Event, text string) (Verdict, bool)
}

// defaultParsers is the structured-event-first, text-heuristic-fallback
// chain used by the orchestrator.
var defaultParsers = []VerdictParser{
	eventVerdictParser{},
	textHeuristicParser{},
}

// ParseVerdict runs the parser chain. When no parser is conclusive the
// verdict is inconclusive, which the state machine treats as
// changes-requested — never as approved.
func ParseVerdict(events []agent.Event, text string) Verdict {
	for _, p := range defaultParsers {
		if v, ok := p.Parse(events, text); ok {
			return v
		}
	}
	return VerdictInconclusive
}

// eventVerdictParser looks for an explicit machine-readable verdict
// event, e.g. {"type":"verdict","verdict":"approved"}.
type eventVerdictParser struct{}

func (eventVerdictParser) Parse(events []agent.Event, _ string) (Verdict, bool) {
	// Last verdict event wins: agents that revise mid-stream get their
	// final answer honored.
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type != "verdict" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(events[i].Verdict)) {
		case "approved", "approve", "lgtm":
			return VerdictApproved, true
		case "changes_requested", "has_issues", "rejected":
			return VerdictChangesRequested, true
		}
	}
	return VerdictInconclusive, false
}

// approvalMarkers are the free-text tokens accepted as approval.
var approvalMarkers = []string{"lgtm", "approved", "no issues"}

// negatedMarkers disqualify a text from approval even when it contains
// an approval token ("not approved", "cannot approve").
var negatedMarkers = []string{"not approved", "cannot approve", "can't approve", "not lgtm"}

// textHeuristicParser is the conservative free-text fallback: an
// explicit approval marker means approved, anything else means another
// iteration.
type textHeuristicParser struct{}

func (textHeuristicParser) Parse(_ []agent.Event, text string) (Verdict, bool) {
	normalized := strings.ToLower(text)
	if strings.TrimSpace(normalized) == "" {
		return VerdictInconclusive, false
	}

	for _, m := range negatedMarkers {
		if strings.Contains(normalized, m) {
			return VerdictChangesRequested, true
		}
	}
	for _, m := range approvalMarkers {
		if strings.Contains(normalized, m) {
			return VerdictApproved, true
		}
	}
	return VerdictChangesRequested, true
}
