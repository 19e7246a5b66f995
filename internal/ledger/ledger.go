// Package ledger holds the per-question answer records of an attempt.
// Operations return a new slice and leave their input untouched.
package ledger

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrInvalidOption   = errors.New("option index out of range")
)

// Summary tallies the palette.
type Summary struct {
	Answered   int `json:"answered"`
	Review     int `json:"review"`
	Unanswered int `json:"unanswered"`
}

// Initialize builds an unanswered record for every question, in order.
func Initialize(questions []model.Question) []model.Answer {
	answers := make([]model.Answer, len(questions))
	for i, q := range questions {
		answers[i] = model.Answer{QuestionID: q.ID, Status: model.StatusUnanswered}
	}
	return answers
}

// Select records option as the answer at index and marks it answered.
func Select(answers []model.Answer, index, option int) ([]model.Answer, error) {
	if err := checkIndex(answers, index); err != nil {
		return nil, err
	}
	if !model.ValidOption(option) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}
	next := clone(answers)
	next[index].SelectedOptionIndex = model.IntPtr(option)
	next[index].Status = model.StatusAnswered
	return next, nil
}

// ToggleReview flips the review mark at index. Leaving review falls back to
// answered or unanswered depending on whether a selection exists.
func ToggleReview(answers []model.Answer, index int) ([]model.Answer, error) {
	if err := checkIndex(answers, index); err != nil {
		return nil, err
	}
	next := clone(answers)
	a := &next[index]
	switch {
	case a.Status != model.StatusReview:
		a.Status = model.StatusReview
	case a.SelectedOptionIndex != nil:
		a.Status = model.StatusAnswered
	default:
		a.Status = model.StatusUnanswered
	}
	return next, nil
}

// Clear removes the selection at index and marks it unanswered.
func Clear(answers []model.Answer, index int) ([]model.Answer, error) {
	if err := checkIndex(answers, index); err != nil {
		return nil, err
	}
	next := clone(answers)
	next[index].SelectedOptionIndex = nil
	next[index].Status = model.StatusUnanswered
	return next, nil
}

// Palette lists the status of each question.
func Palette(answers []model.Answer) []model.AnswerStatus {
	out := make([]model.AnswerStatus, len(answers))
	for i, a := range answers {
		out[i] = a.Status
	}
	return out
}

// Counts tallies records per status.
func Counts(answers []model.Answer) Summary {
	var c Summary
	for _, a := range answers {
		switch a.Status {
		case model.StatusAnswered:
			c.Answered++
		case model.StatusReview:
			c.Review++
		default:
			c.Unanswered++
		}
	}
	return c
}

// Clone returns a copy of answers that shares no selection pointers.
func Clone(answers []model.Answer) []model.Answer {
	next := clone(answers)
	for i := range next {
		if v, ok := next[i].Selected(); ok {
			next[i].SelectedOptionIndex = model.IntPtr(v)
		}
	}
	return next
}

func clone(answers []model.Answer) []model.Answer {
	next := make([]model.Answer, len(answers))
	copy(next, answers)
	return next
}

func checkIndex(answers []model.Answer, index int) error {
	if index < 0 || index >= len(answers) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(answers))
	}
	return nil
}
