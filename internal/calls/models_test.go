package calls

import "testing"

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		from, to CallStatus
		want     bool
	}{
		{StatusRinging, StatusInProgress, true},
		{StatusRinging, StatusCompleted, true},
		{StatusRinging, StatusMissed, true},
		{StatusRinging, StatusFailed, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusMissed, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusRinging, false},
		{StatusCompleted, StatusRinging, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusMissed, StatusCompleted, false},
		{StatusFailed, StatusInProgress, false},
		// same-status re-delivery is always allowed
		{StatusCompleted, StatusCompleted, true},
		{StatusRinging, StatusRinging, true},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []CallStatus{StatusCompleted, StatusMissed, StatusFailed} {
		if !s.Terminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
	for _, s := range []CallStatus{StatusRinging, StatusInProgress} {
		if s.Terminal() {
			t.Fatalf("expected %s non-terminal", s)
		}
	}
}

func TestValidators(t *testing.T) {
	if ValidStatus("queued") {
		t.Fatalf("queued is not a lifecycle status")
	}
	if !ValidDirection(DirectionInbound) || !ValidDirection(DirectionOutbound) {
		t.Fatalf("expected directions valid")
	}
	if ValidDirection("sideways") {
		t.Fatalf("expected invalid direction rejected")
	}
	if ValidSentiment("angry") {
		t.Fatalf("expected invalid sentiment rejected")
	}
}
