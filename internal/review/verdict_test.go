package review

import (
	"testing"

	"github.com/emberhq/ember/internal/agent"
)

// --- structured events ---

func TestParseVerdict_EventApproved(t *testing.T) {
	events := []agent.Event{{Type: "verdict", Verdict: "approved"}}
	if got := ParseVerdict(events, "looks bad actually"); got != VerdictApproved {
		t.Errorf("verdict = %s, want approved (event outranks text)", got)
	}
}

func TestParseVerdict_EventChangesRequested(t *testing.T) {
	events := []agent.Event{{Type: "verdict", Verdict: "changes_requested"}}
	if got := ParseVerdict(events, "lgtm"); got != VerdictChangesRequested {
		t.Errorf("verdict = %s, want changes_requested (event outranks text)", got)
	}
}

func TestParseVerdict_LastEventWins(t *testing.T) {
	events := []agent.Event{
		{Type: "verdict", Verdict: "approved"},
		{Type: "verdict", Verdict: "changes_requested"},
	}
	if got := ParseVerdict(events, ""); got != VerdictChangesRequested {
		t.Errorf("verdict = %s, want changes_requested (final event wins)", got)
	}
}

func TestParseVerdict_EventSynonyms(t *testing.T) {
	cases := map[string]Verdict{
		"approve":  VerdictApproved,
		"LGTM":     VerdictApproved,
		"rejected": VerdictChangesRequested,
	}
	for raw, want := range cases {
		events := []agent.Event{{Type: "verdict", Verdict: raw}}
		if got := ParseVerdict(events, ""); got != want {
			t.Errorf("verdict(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseVerdict_UnknownEventFallsThrough(t *testing.T) {
	events := []agent.Event{{Type: "verdict", Verdict: "maybe"}}
	if got := ParseVerdict(events, "lgtm"); got != VerdictApproved {
		t.Errorf("verdict = %s, want approved via text fallback", got)
	}
}

// --- text heuristic ---

func TestParseVerdict_TextApprovalMarkers(t *testing.T) {
	for _, text := range []string{"LGTM!", "Approved.", "I found no issues with this change."} {
		if got := ParseVerdict(nil, text); got != VerdictApproved {
			t.Errorf("verdict(%q) = %s, want approved", text, got)
		}
	}
}

func TestParseVerdict_NegatedApprovalIsNotApproval(t *testing.T) {
	for _, text := range []string{
		"This is not approved yet.",
		"I cannot approve this until the race is fixed.",
		"not LGTM — the error path leaks the handle",
	} {
		if got := ParseVerdict(nil, text); got != VerdictChangesRequested {
			t.Errorf("verdict(%q) = %s, want changes_requested", text, got)
		}
	}
}

func TestParseVerdict_PlainFeedbackMeansChanges(t *testing.T) {
	text := "The retry loop never backs off and the mutex is copied by value."
	if got := ParseVerdict(nil, text); got != VerdictChangesRequested {
		t.Errorf("verdict = %s, want changes_requested", got)
	}
}

// --- conservatism ---

func TestParseVerdict_EmptyResponseInconclusive(t *testing.T) {
	if got := ParseVerdict(nil, ""); got != VerdictInconclusive {
		t.Errorf("verdict = %s, want inconclusive", got)
	}
	if got := ParseVerdict(nil, "   \n  "); got != VerdictInconclusive {
		t.Errorf("verdict(whitespace) = %s, want inconclusive", got)
	}
}

func TestParseVerdict_NeverApprovesAmbiguity(t *testing.T) {
	// No input combination without an explicit approval signal may
	// produce approved.
	ambiguous := []struct {
		events []agent.Event
		text   string
	}{
		{nil, ""},
		{nil, "hmm"},
		{[]agent.Event{{Type: "message", Text: "thinking"}}, ""},
		{[]agent.Event{{Type: "verdict", Verdict: "unsure"}}, "it might be fine"},
	}
	for _, c := range ambiguous {
		if got := ParseVerdict(c.events, c.text); got == VerdictApproved {
			t.Errorf("ParseVerdict(%v, %q) = approved; ambiguity must never approve", c.events, c.text)
		}
	}
}
