package model

import "time"

// SubmitReason records what triggered a submission.
type SubmitReason string

const (
	ReasonManual       SubmitReason = "manual"
	ReasonTimerExpired SubmitReason = "timer_expired"
	ReasonViolations   SubmitReason = "violations"
)

// Remark is the qualitative band of a percentage.
type Remark string

const (
	RemarkExcellent Remark = "Excellent"
	RemarkGood      Remark = "Good"
	RemarkAverage   Remark = "Average"
	RemarkFail      Remark = "Fail"
)

// RemarkFor maps a percentage onto its remark band.
func RemarkFor(percentage float64) Remark {
	switch {
	case percentage >= 80:
		return RemarkExcellent
	case percentage >= 60:
		return RemarkGood
	case percentage >= 40:
		return RemarkAverage
	default:
		return RemarkFail
	}
}

// Result is the scored outcome of a submitted attempt.
type Result struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	ExamName         string       `json:"exam_name"`
	TotalQuestions   int          `json:"total_questions"`
	CorrectAnswers   int          `json:"correct_answers"`
	IncorrectAnswers int          `json:"incorrect_answers"`
	Unanswered       int          `json:"unanswered"`
	Score            int          `json:"score"`
	Percentage       float64      `json:"percentage"`
	Remark           Remark       `json:"remark"`
	Reason           SubmitReason `json:"reason"`
	Timestamp        time.Time    `json:"timestamp"`
}

// ViolationEvent is a single counted proctoring violation.
type ViolationEvent struct {
	UserID         string    `json:"user_id"`
	ExamName       string    `json:"exam_name"`
	Signal         string    `json:"signal"`
	ViolationCount int       `json:"violation_count"`
	MaxViolations  int       `json:"max_violations"`
	Escalated      bool      `json:"escalated"`
	RecordedAt     time.Time `json:"recorded_at"`
}
