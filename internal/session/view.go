package session

import (
	"github.com/stemsi/exstem-proctor/internal/ledger"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Phase is the lifecycle stage of a session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseLocked    Phase = "locked"
	PhaseNoContent Phase = "no_content"
	PhaseCompleted Phase = "completed"
	PhaseClosed    Phase = "closed"
)

// QuestionView is the current question resolved for the session language.
type QuestionView struct {
	Number   int                `json:"number"`
	Total    int                `json:"total"`
	ID       int                `json:"id"`
	Text     string             `json:"text"`
	Options  []string           `json:"options"`
	Selected *int               `json:"selected_option_index"`
	Status   model.AnswerStatus `json:"status"`
}

// View is the read-only render state of a session.
type View struct {
	Phase           Phase                `json:"phase"`
	ExamName        string               `json:"exam_name"`
	Language        string               `json:"language"`
	CurrentIndex    int                  `json:"current_index"`
	Question        *QuestionView        `json:"question,omitempty"`
	Palette         []model.AnswerStatus `json:"palette"`
	Summary         ledger.Summary       `json:"summary"`
	TimeLeftSeconds int                  `json:"time_left_seconds"`
	ViolationCount  int                  `json:"violation_count"`
	MaxViolations   int                  `json:"max_violations"`
	WarningVisible  bool                 `json:"warning_visible"`
	Result          *model.Result        `json:"result,omitempty"`
}

func (c *Controller) viewLocked() View {
	v := View{
		Phase:          c.phase,
		ExamName:       c.attempt.ExamName,
		Language:       c.attempt.Language,
		CurrentIndex:   c.current,
		Palette:        ledger.Palette(c.answers),
		Summary:        ledger.Counts(c.answers),
		ViolationCount: c.monitor.Count(),
		MaxViolations:  c.monitor.Max(),
		WarningVisible: c.monitor.WarningVisible(),
		Result:         c.result,
	}
	if c.countdown != nil {
		v.TimeLeftSeconds = c.countdown.Remaining()
	}
	if c.running() && c.current < len(c.answers) {
		q := c.exam.Questions[c.current]
		a := c.answers[c.current]
		qv := &QuestionView{
			Number:  c.current + 1,
			Total:   len(c.exam.Questions),
			ID:      q.ID,
			Text:    q.Text.Resolve(c.attempt.Language),
			Options: make([]string, len(q.Options)),
			Status:  a.Status,
		}
		for i, opt := range q.Options {
			qv.Options[i] = opt.Resolve(c.attempt.Language)
		}
		if sel, ok := a.Selected(); ok {
			qv.Selected = model.IntPtr(sel)
		}
		v.Question = qv
	}
	return v
}
