package model

import (
	"errors"
	"fmt"
)

// ErrSnapshotMismatch is returned when a stored snapshot does not fit the exam it is restored into.
var ErrSnapshotMismatch = errors.New("snapshot does not match exam")

// SessionSnapshot is the resumable progress of one attempt.
type SessionSnapshot struct {
	Answers              []Answer `json:"answers"`
	TimeLeftSeconds      int      `json:"time_left_seconds"`
	CurrentQuestionIndex int      `json:"current_question_index"`
	ViolationCount       int      `json:"violation_count"`
}

// Validate checks the snapshot against the exam's questions: one answer per
// question in the same order, an in-range cursor and sane counters.
func (s *SessionSnapshot) Validate(questions []Question) error {
	if len(s.Answers) != len(questions) {
		return fmt.Errorf("%w: %d answers for %d questions", ErrSnapshotMismatch, len(s.Answers), len(questions))
	}
	for i, a := range s.Answers {
		if a.QuestionID != questions[i].ID {
			return fmt.Errorf("%w: answer %d is for question %d, want %d", ErrSnapshotMismatch, i, a.QuestionID, questions[i].ID)
		}
		if !a.Status.Valid() {
			return fmt.Errorf("%w: answer %d has status %q", ErrSnapshotMismatch, i, a.Status)
		}
		if a.SelectedOptionIndex != nil && !ValidOption(*a.SelectedOptionIndex) {
			return fmt.Errorf("%w: answer %d selects option %d", ErrSnapshotMismatch, i, *a.SelectedOptionIndex)
		}
		if a.Status == StatusAnswered && a.SelectedOptionIndex == nil {
			return fmt.Errorf("%w: answer %d is answered without a selection", ErrSnapshotMismatch, i)
		}
		if a.Status == StatusUnanswered && a.SelectedOptionIndex != nil {
			return fmt.Errorf("%w: answer %d is unanswered with a selection", ErrSnapshotMismatch, i)
		}
	}
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(questions) {
		return fmt.Errorf("%w: current index %d out of range", ErrSnapshotMismatch, s.CurrentQuestionIndex)
	}
	if s.TimeLeftSeconds < 0 {
		return fmt.Errorf("%w: negative time left", ErrSnapshotMismatch)
	}
	if s.ViolationCount < 0 {
		return fmt.Errorf("%w: negative violation count", ErrSnapshotMismatch)
	}
	return nil
}

// ValidateFor runs Validate against exam and also rejects more time left
// than the exam allows.
func (s *SessionSnapshot) ValidateFor(exam *ExamDefinition) error {
	if err := s.Validate(exam.Questions); err != nil {
		return err
	}
	if limit := exam.DurationSeconds(); s.TimeLeftSeconds > limit {
		return fmt.Errorf("%w: %d seconds left exceeds the %d second limit", ErrSnapshotMismatch, s.TimeLeftSeconds, limit)
	}
	return nil
}
