package proctor

import "testing"

func TestObserveEscalatesAtMax(t *testing.T) {
	m := NewMonitor(0)
	if m.Max() != DefaultMaxViolations {
		t.Fatalf("max = %d, want %d", m.Max(), DefaultMaxViolations)
	}

	want := []Outcome{OutcomeWarned, OutcomeWarned, OutcomeEscalated, OutcomeIgnored}
	for i, w := range want {
		if got := m.Observe(SignalVisibilityHidden); got != w {
			t.Errorf("signal %d: outcome = %s, want %s", i+1, got, w)
		}
	}
	if m.Count() != 3 {
		t.Errorf("count = %d, want 3", m.Count())
	}
	if m.State() != StateEscalated {
		t.Errorf("state = %s, want escalated", m.State())
	}
}

func TestBlockedSignalsDoNotCount(t *testing.T) {
	m := NewMonitor(3)
	for _, s := range []Signal{SignalCopy, SignalPaste, SignalContextMenu} {
		if got := m.Observe(s); got != OutcomeBlocked {
			t.Errorf("%s: outcome = %s, want blocked", s, got)
		}
	}
	if m.Count() != 0 || m.State() != StateNormal {
		t.Errorf("count = %d state = %s after blocked signals", m.Count(), m.State())
	}
}

func TestUnknownSignalIgnored(t *testing.T) {
	m := NewMonitor(3)
	if got := m.Observe(Signal("focus")); got != OutcomeIgnored {
		t.Errorf("outcome = %s, want ignored", got)
	}
	if m.Count() != 0 {
		t.Errorf("count = %d", m.Count())
	}
}

func TestAcknowledgeHidesWarningOnly(t *testing.T) {
	m := NewMonitor(3)
	m.Observe(SignalVisibilityHidden)
	if !m.WarningVisible() || m.State() != StateWarned {
		t.Fatal("warning not visible after violation")
	}
	m.Acknowledge()
	if m.WarningVisible() || m.State() != StateNormal {
		t.Error("warning still visible after acknowledge")
	}
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}
}

func TestRestoreSeedsCounter(t *testing.T) {
	tests := []struct {
		name     string
		restored int
		wantEsc  bool
		want     Outcome
	}{
		{"below max", 1, false, OutcomeWarned},
		{"one below max", 2, false, OutcomeEscalated},
		{"at max", 3, true, OutcomeIgnored},
		{"above max", 5, true, OutcomeIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(3)
			if got := m.Restore(tt.restored); got != tt.wantEsc {
				t.Errorf("Restore = %v, want %v", got, tt.wantEsc)
			}
			wantState := StateNormal
			if tt.wantEsc {
				wantState = StateEscalated
			}
			if m.State() != wantState {
				t.Errorf("state after restore = %s, want %s", m.State(), wantState)
			}
			if got := m.Observe(SignalVisibilityHidden); got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCounterNeverDecreases(t *testing.T) {
	m := NewMonitor(10)
	m.Restore(4)
	m.Restore(2)
	if m.Count() != 4 {
		t.Errorf("count = %d, want 4", m.Count())
	}
}
