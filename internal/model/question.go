package model

import (
	"errors"
	"fmt"
)

// OptionCount is the number of options every question carries.
const OptionCount = 4

// ErrInvalidQuestion is returned when a question definition is malformed.
var ErrInvalidQuestion = errors.New("invalid question")

// Question is a single multiple-choice item of an exam.
type Question struct {
	ID                 int               `json:"id" yaml:"id"`
	Text               LocalizedString   `json:"text" yaml:"text"`
	Options            []LocalizedString `json:"options" yaml:"options"`
	CorrectAnswerIndex int               `json:"correct_answer_index" yaml:"correct_answer_index"`
}

// Validate checks the option count and the correct answer index.
func (q Question) Validate() error {
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w: question %d has %d options, want %d", ErrInvalidQuestion, q.ID, len(q.Options), OptionCount)
	}
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= OptionCount {
		return fmt.Errorf("%w: question %d correct answer index %d out of range", ErrInvalidQuestion, q.ID, q.CorrectAnswerIndex)
	}
	if q.Text.Len() == 0 {
		return fmt.Errorf("%w: question %d has no text", ErrInvalidQuestion, q.ID)
	}
	return nil
}

// ValidOption reports whether idx addresses one of the question's options.
func ValidOption(idx int) bool {
	return idx >= 0 && idx < OptionCount
}
