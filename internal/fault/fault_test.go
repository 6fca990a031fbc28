package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_CarriesKindAndMessage(t *testing.T) {
	err := New(InvalidArgument, "limit must be >= 1, got %d", 0)

	if got := KindOf(err); got != InvalidArgument {
		t.Errorf("KindOf = %q, want %q", got, InvalidArgument)
	}
	want := "invalid_argument: limit must be >= 1, got 0"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(StoreUnavailable, cause, "inserting entry")

	if !errors.Is(err, cause) {
		t.Error("wrapped error should match its cause via errors.Is")
	}
	if got := KindOf(err); got != StoreUnavailable {
		t.Errorf("KindOf = %q, want %q", got, StoreUnavailable)
	}
}

func TestKindOf_UnclassifiedError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain error) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestKindOf_SurvivesFmtWrapping(t *testing.T) {
	inner := New(NotFound, "session %q not found", "abc")
	outer := fmt.Errorf("handling request: %w", inner)

	if !IsKind(outer, NotFound) {
		t.Error("kind should survive fmt.Errorf %w wrapping")
	}
}

func TestIs_MatchesOnKindOnly(t *testing.T) {
	a := New(InvalidState, "cannot continue")
	b := New(InvalidState, "different message")

	if !errors.Is(a, b) {
		t.Error("errors with the same kind should match")
	}
	if errors.Is(a, New(NotFound, "x")) {
		t.Error("errors with different kinds should not match")
	}
}
