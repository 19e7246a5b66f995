package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// SessionService opens proctored exam sessions for authenticated students.
type SessionService struct {
	exams      session.ExamProvider
	results    session.ResultSubmitter
	store      session.SnapshotStore
	violations session.ViolationRecorder
	sched      clock.Scheduler
	cfg        session.Config
	now        func() time.Time
	log        zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	exams session.ExamProvider,
	results session.ResultSubmitter,
	store session.SnapshotStore,
	violations session.ViolationRecorder,
	sched clock.Scheduler,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		exams:      exams,
		results:    results,
		store:      store,
		violations: violations,
		sched:      sched,
		cfg: session.Config{
			MaxViolations:   cfg.MaxViolations,
			PersistEvery:    cfg.PersistEvery,
			EscalationDelay: cfg.EscalationDelay,
		},
		now: time.Now,
		log: log,
	}
}

// OpenRequest identifies the attempt to open.
type OpenRequest struct {
	UserID   string
	ExamName string
	Language string
}

// Open checks the exam's schedule window, picks the display language and
// starts a controller wired to the caller's transport. On ErrNoContent the
// returned controller is non-nil and sits in PhaseNoContent.
func (s *SessionService) Open(
	ctx context.Context,
	req OpenRequest,
	events session.EventSource,
	notifier session.Notifier,
	onComplete func(model.Result),
) (*session.Controller, error) {
	lang := req.Language

	exam, err := s.exams.GetExamDefinition(ctx, req.ExamName)
	switch {
	case err == nil:
		switch exam.ScheduleStatus(s.now()) {
		case model.ScheduleUpcoming:
			return nil, ErrExamNotStarted
		case model.ScheduleEnded:
			return nil, ErrExamEnded
		}
		lang = exam.ResolveLanguage(lang)
	case !errors.Is(err, ErrExamNotFound):
		s.log.Warn().Err(err).Str("exam", req.ExamName).Msg("Exam lookup failed before session start")
	}

	ctrl := session.New(
		session.Attempt{UserID: req.UserID, ExamName: req.ExamName, Language: lang},
		session.Deps{
			Exams:      s.exams,
			Results:    s.results,
			Store:      s.store,
			Scheduler:  s.sched,
			Events:     events,
			Notifier:   notifier,
			Violations: s.violations,
			OnComplete: onComplete,
			Log:        s.log,
		},
		s.cfg,
	)
	if err := ctrl.Start(ctx); err != nil {
		return ctrl, err
	}
	return ctrl, nil
}
