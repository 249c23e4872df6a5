package domain

import (
	"testing"
)

func TestPhaseTotalOrder(t *testing.T) {
	t.Parallel()

	want := []Phase{PhaseVision, PhaseGaps, PhaseFounderFit, PhaseSynthesis, PhaseComplete}
	got := Phases()
	if len(got) != len(want) {
		t.Fatalf("expected %d phases, got %d", len(want), len(got))
	}
	for i, p := range want {
		if got[i] != p {
			t.Errorf("position %d: expected %q, got %q", i, p, got[i])
		}
		if p.Index() != i {
			t.Errorf("phase %q: expected index %d, got %d", p, i, p.Index())
		}
	}

	for i := 0; i < len(want)-1; i++ {
		if !want[i].Before(want[i+1]) {
			t.Errorf("expected %q < %q", want[i], want[i+1])
		}
		if want[i+1].Before(want[i]) {
			t.Errorf("did not expect %q < %q", want[i+1], want[i])
		}
	}
}

func TestPhaseNext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		phase Phase
		next  Phase
	}{
		{PhaseVision, PhaseGaps},
		{PhaseGaps, PhaseFounderFit},
		{PhaseFounderFit, PhaseSynthesis},
		{PhaseSynthesis, PhaseComplete},
		{PhaseComplete, PhaseComplete},
	}
	for _, tc := range cases {
		if got := tc.phase.Next(); got != tc.next {
			t.Errorf("Next(%q): expected %q, got %q", tc.phase, tc.next, got)
		}
	}
}

func TestPhaseNextPanicsOnUnknownPhase(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown phase")
		}
	}()
	_ = Phase("daydream").Next()
}

func TestParsePhase(t *testing.T) {
	t.Parallel()

	if _, err := ParsePhase("vision"); err != nil {
		t.Errorf("expected vision to parse, got %v", err)
	}
	if _, err := ParsePhase("limbo"); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestSessionAppendAndLastAssistant(t *testing.T) {
	t.Parallel()

	s := &DiscoverySession{}
	now := s.CreatedAt
	s.Append(RoleAssistant, "welcome", now)
	s.Append(RoleUser, "my idea", now)

	if len(s.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.Messages))
	}
	if got := s.LastAssistantMessage(); got != "welcome" {
		t.Errorf("expected last assistant message %q, got %q", "welcome", got)
	}

	s.Append(RoleAssistant, "tell me more", now)
	if got := s.LastAssistantMessage(); got != "tell me more" {
		t.Errorf("expected last assistant message %q, got %q", "tell me more", got)
	}
}
