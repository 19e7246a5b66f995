package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/session"
)

type stubExams map[string]*model.ExamDefinition

func (s stubExams) GetExamDefinition(_ context.Context, name string) (*model.ExamDefinition, error) {
	if e, ok := s[name]; ok {
		return e, nil
	}
	return nil, repository.ErrExamNotFound
}

type discardResults struct{}

func (discardResults) SubmitResult(context.Context, model.Result) error { return nil }

type discardViolations struct{}

func (discardViolations) RecordViolation(context.Context, model.ViolationEvent) error { return nil }

func windowExam(name string, start, end *time.Time) *model.ExamDefinition {
	opts := []model.LocalizedString{
		model.NewLocalizedString("en", "A"), model.NewLocalizedString("en", "B"),
		model.NewLocalizedString("en", "C"), model.NewLocalizedString("en", "D"),
	}
	return &model.ExamDefinition{
		Name:               name,
		DurationMinutes:    30,
		SupportedLanguages: []string{"en", "hi"},
		StartTime:          start,
		EndTime:            end,
		Questions: []model.Question{
			{ID: 1, Text: model.NewLocalizedString("en", "Q", "hi", "प्र"), Options: opts},
		},
	}
}

func newTestSessionService(exams stubExams, now time.Time) *SessionService {
	svc := NewSessionService(
		exams,
		discardResults{},
		repository.NewMemorySnapshotStore(),
		discardViolations{},
		clock.NewManualScheduler(),
		&config.Config{MaxViolations: 3, PersistEvery: 5, EscalationDelay: 500 * time.Millisecond},
		zerolog.Nop(),
	)
	svc.now = func() time.Time { return now }
	return svc
}

func TestOpenRespectsScheduleWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	later, earlier := now.Add(time.Hour), now.Add(-time.Hour)
	svc := newTestSessionService(stubExams{
		"future": windowExam("future", &later, nil),
		"past":   windowExam("past", nil, &earlier),
		"open":   windowExam("open", &earlier, &later),
	}, now)

	tests := []struct {
		exam string
		want error
	}{
		{"future", ErrExamNotStarted},
		{"past", ErrExamEnded},
		{"open", nil},
		{"missing", session.ErrNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.exam, func(t *testing.T) {
			ctrl, err := svc.Open(context.Background(), OpenRequest{UserID: "u1", ExamName: tt.exam}, nil, nil, nil)
			if ctrl != nil {
				defer ctrl.Close()
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenResolvesLanguage(t *testing.T) {
	svc := newTestSessionService(stubExams{"gk": windowExam("gk", nil, nil)}, time.Now())

	for req, want := range map[string]string{"hi": "hi", "fr": "en", "": "en"} {
		ctrl, err := svc.Open(context.Background(), OpenRequest{UserID: "u-" + req, ExamName: "gk", Language: req}, nil, nil, nil)
		if err != nil {
			t.Fatalf("Open(%q): %v", req, err)
		}
		if got := ctrl.View().Language; got != want {
			t.Errorf("language for %q = %q, want %q", req, got, want)
		}
		ctrl.Close()
	}
}

func TestBuildInstructions(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	in := BuildInstructions(windowExam("gk", &later, nil), 3, now)

	if in.Status != model.ScheduleUpcoming || in.QuestionCount != 1 || in.DefaultLanguage != "en" || in.MaxViolations != 3 {
		t.Errorf("instructions = %+v", in)
	}
}
