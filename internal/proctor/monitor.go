// Package proctor turns client environment signals into violation counts
// and decides when an attempt must be submitted automatically.
package proctor

// DefaultMaxViolations is the number of counted violations that forces submission.
const DefaultMaxViolations = 3

// Signal is an environment event reported by the exam client.
type Signal string

const (
	SignalVisibilityHidden Signal = "visibility_hidden"
	SignalCopy             Signal = "copy"
	SignalPaste            Signal = "paste"
	SignalContextMenu      Signal = "contextmenu"
)

// Counted reports whether the signal increments the violation counter.
func (s Signal) Counted() bool { return s == SignalVisibilityHidden }

// Blocked reports whether the signal is an action the client must suppress.
func (s Signal) Blocked() bool {
	switch s {
	case SignalCopy, SignalPaste, SignalContextMenu:
		return true
	}
	return false
}

// Outcome is what the caller should do after a signal was observed.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeWarned
	OutcomeEscalated
	OutcomeBlocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWarned:
		return "warned"
	case OutcomeEscalated:
		return "escalated"
	case OutcomeBlocked:
		return "blocked"
	default:
		return "ignored"
	}
}

// State of the monitor.
type State string

const (
	StateNormal    State = "normal"
	StateWarned    State = "warned"
	StateEscalated State = "escalated"
)

// Monitor counts violations for a single attempt. It is not safe for
// concurrent use; the session controller serialises access.
type Monitor struct {
	max       int
	count     int
	warning   bool
	escalated bool
}

// NewMonitor returns a monitor escalating at max violations. max <= 0 uses the default.
func NewMonitor(max int) *Monitor {
	if max <= 0 {
		max = DefaultMaxViolations
	}
	return &Monitor{max: max}
}

// Restore seeds the counter from a saved snapshot. A lower count is
// ignored. A count at or above max leaves the monitor escalated, and
// Restore reports true so the caller can force the submission that was
// interrupted.
func (m *Monitor) Restore(count int) bool {
	if count > m.count {
		m.count = count
	}
	if m.count >= m.max {
		m.escalated = true
		m.warning = false
	}
	return m.escalated
}

// Escalated reports whether the threshold has been reached.
func (m *Monitor) Escalated() bool { return m.escalated }

// Observe applies a signal.
func (m *Monitor) Observe(s Signal) Outcome {
	switch {
	case s.Blocked():
		return OutcomeBlocked
	case !s.Counted() || m.escalated:
		return OutcomeIgnored
	}

	m.count++
	if m.count >= m.max {
		m.escalated = true
		m.warning = false
		return OutcomeEscalated
	}
	m.warning = true
	return OutcomeWarned
}

// Acknowledge hides the warning. The counter is untouched.
func (m *Monitor) Acknowledge() { m.warning = false }

func (m *Monitor) Count() int           { return m.count }
func (m *Monitor) Max() int             { return m.max }
func (m *Monitor) WarningVisible() bool { return m.warning }

// State reports the current monitor state.
func (m *Monitor) State() State {
	switch {
	case m.escalated:
		return StateEscalated
	case m.warning:
		return StateWarned
	default:
		return StateNormal
	}
}
