package websocket

import (
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionGoTo       Action = "goto"
	ActionNext       Action = "next"
	ActionPrevious   Action = "previous"
	ActionSelect     Action = "select"
	ActionReview     Action = "review"
	ActionClear      Action = "clear"
	ActionAckWarning Action = "ack_warning"
	ActionSubmit     Action = "submit"
	ActionSignal     Action = "signal"
	ActionPing       Action = "ping"
)

// RequestPayload is every message the client sends. Only the field that
// belongs to the action is read.
type RequestPayload struct {
	Action Action         `json:"action" binding:"required,oneof=goto next previous select review clear ack_warning submit signal ping"`
	Index  *int           `json:"index" binding:"required_if=Action goto"`
	Option *int           `json:"option" binding:"required_if=Action select"`
	Signal proctor.Signal `json:"signal" binding:"required_if=Action signal"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventWarning   Event = "warning"
	EventBlocked   Event = "blocked"
	EventEscalated Event = "escalated"
	EventCompleted Event = "completed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// Notice texts shown to the student.
const (
	WarningMessage   = "You have switched tabs or minimized the window. This action is being monitored. Continuing to do so may result in automatic submission of your exam."
	BlockedMessage   = "This action is disabled during the exam."
	EscalatedMessage = "Exam submitted automatically due to exceeding the maximum number of warnings."
)

type StateResponse struct {
	Event Event        `json:"event"`
	Data  session.View `json:"data"`
}

type TickResponse struct {
	Event           Event `json:"event"`
	TimeLeftSeconds int   `json:"time_left_seconds"`
}

type WarningResponse struct {
	Event          Event  `json:"event"`
	ViolationCount int    `json:"violation_count"`
	MaxViolations  int    `json:"max_violations"`
	Message        string `json:"message"`
}

type BlockedResponse struct {
	Event   Event          `json:"event"`
	Signal  proctor.Signal `json:"signal"`
	Message string         `json:"message"`
}

type CompletedResponse struct {
	Event  Event        `json:"event"`
	Result model.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event             `json:"event"`
	Code  string            `json:"code,omitempty"`
	Error string            `json:"error"`
	Field map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
