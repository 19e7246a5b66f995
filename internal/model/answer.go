package model

// AnswerStatus is the palette state of a single question.
type AnswerStatus string

const (
	StatusUnanswered AnswerStatus = "unanswered"
	StatusAnswered   AnswerStatus = "answered"
	StatusReview     AnswerStatus = "review"
)

// Valid reports whether s is a known status.
func (s AnswerStatus) Valid() bool {
	switch s {
	case StatusUnanswered, StatusAnswered, StatusReview:
		return true
	}
	return false
}

// Answer is a student's response record for one question.
type Answer struct {
	QuestionID          int          `json:"question_id"`
	SelectedOptionIndex *int         `json:"selected_option_index"`
	Status              AnswerStatus `json:"status"`
}

// Selected returns the chosen option and whether one is set.
func (a Answer) Selected() (int, bool) {
	if a.SelectedOptionIndex == nil {
		return 0, false
	}
	return *a.SelectedOptionIndex, true
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
