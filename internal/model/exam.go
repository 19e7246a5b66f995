package model

import (
	"errors"
	"fmt"
	"time"
)

// ScheduleStatus describes where "now" sits relative to an exam's window.
type ScheduleStatus string

const (
	ScheduleUpcoming  ScheduleStatus = "upcoming"
	ScheduleAvailable ScheduleStatus = "available"
	ScheduleEnded     ScheduleStatus = "ended"
)

// ErrInvalidExam is returned when an exam definition is malformed.
var ErrInvalidExam = errors.New("invalid exam definition")

// ExamDefinition is the read-only content of an exam.
type ExamDefinition struct {
	Name               string     `json:"name" yaml:"name"`
	DurationMinutes    int        `json:"duration_minutes" yaml:"duration_minutes"`
	SupportedLanguages []string   `json:"supported_languages" yaml:"supported_languages"`
	StartTime          *time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime            *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Questions          []Question `json:"questions" yaml:"questions"`
}

// DurationSeconds returns the full exam duration in seconds.
func (e *ExamDefinition) DurationSeconds() int {
	return e.DurationMinutes * 60
}

// DefaultLanguage is the first supported language, or "en" when none are listed.
func (e *ExamDefinition) DefaultLanguage() string {
	if len(e.SupportedLanguages) == 0 {
		return "en"
	}
	return e.SupportedLanguages[0]
}

// ResolveLanguage returns lang when the exam supports it, else the default.
func (e *ExamDefinition) ResolveLanguage(lang string) string {
	for _, l := range e.SupportedLanguages {
		if l == lang {
			return lang
		}
	}
	return e.DefaultLanguage()
}

// ScheduleStatus reports whether the exam window has opened or closed at now.
// Missing bounds are treated as open.
func (e *ExamDefinition) ScheduleStatus(now time.Time) ScheduleStatus {
	if e.StartTime != nil && now.Before(*e.StartTime) {
		return ScheduleUpcoming
	}
	if e.EndTime != nil && now.After(*e.EndTime) {
		return ScheduleEnded
	}
	return ScheduleAvailable
}

// Validate checks the definition before it is stored.
func (e *ExamDefinition) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidExam)
	}
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("%w: %s duration must be positive", ErrInvalidExam, e.Name)
	}
	if e.StartTime != nil && e.EndTime != nil && !e.EndTime.After(*e.StartTime) {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidExam, e.Name)
	}
	seen := make(map[int]struct{}, len(e.Questions))
	for _, q := range e.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s has duplicate question id %d", ErrInvalidExam, e.Name, q.ID)
		}
		seen[q.ID] = struct{}{}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
	}
	return nil
}

// ExamInstructions is the pre-exam summary shown before a student starts.
type ExamInstructions struct {
	Name               string         `json:"name"`
	DurationMinutes    int            `json:"duration_minutes"`
	QuestionCount      int            `json:"question_count"`
	SupportedLanguages []string       `json:"supported_languages"`
	DefaultLanguage    string         `json:"default_language"`
	StartTime          *time.Time     `json:"start_time,omitempty"`
	EndTime            *time.Time     `json:"end_time,omitempty"`
	Status             ScheduleStatus `json:"status"`
	MaxViolations      int            `json:"max_violations"`
}
