package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

// ExamProvider supplies exam definitions.
type ExamProvider interface {
	GetExamDefinition(ctx context.Context, name string) (*model.ExamDefinition, error)
}

// ResultSubmitter accepts a scored result.
type ResultSubmitter interface {
	SubmitResult(ctx context.Context, r model.Result) error
}

// SnapshotStore persists resumable progress and the per-user submit guard.
type SnapshotStore interface {
	Load(ctx context.Context, userID string) (*model.SessionSnapshot, error)
	Save(ctx context.Context, userID string, snap *model.SessionSnapshot) error
	Clear(ctx context.Context, userID string) error
	AcquireSubmitGuard(ctx context.Context, userID string) (bool, error)
	ReleaseSubmitGuard(ctx context.Context, userID string) error
}

// ViolationRecorder receives counted violations for auditing.
type ViolationRecorder interface {
	RecordViolation(ctx context.Context, v model.ViolationEvent) error
}

// EventSource delivers client environment signals. The handler must not be
// invoked while the source holds a lock that unsubscribe also takes.
type EventSource interface {
	Subscribe(handler func(proctor.Signal)) (unsubscribe func())
}

// Notifier receives everything the session wants the student to see.
type Notifier interface {
	StateChanged(v View)
	Tick(timeLeft int)
	Warning(count, max int)
	Blocked(s proctor.Signal)
	Escalated(count, max int)
	Completed(r model.Result)
	Error(err error)
}

// Deps are the collaborators of a Controller. Violations, Events and
// OnComplete are optional.
type Deps struct {
	Exams      ExamProvider
	Results    ResultSubmitter
	Store      SnapshotStore
	Scheduler  clock.Scheduler
	Events     EventSource
	Notifier   Notifier
	Violations ViolationRecorder
	OnComplete func(model.Result)
	Log        zerolog.Logger
}

// Config tunes a Controller. Zero values take the defaults.
type Config struct {
	MaxViolations   int
	PersistEvery    int
	EscalationDelay time.Duration
	OpTimeout       time.Duration
	Now             func() time.Time
}

const (
	DefaultEscalationDelay = 500 * time.Millisecond
	defaultOpTimeout       = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxViolations <= 0 {
		c.MaxViolations = proctor.DefaultMaxViolations
	}
	if c.PersistEvery <= 0 {
		c.PersistEvery = clock.DefaultPersistEvery
	}
	if c.EscalationDelay <= 0 {
		c.EscalationDelay = DefaultEscalationDelay
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = defaultOpTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) StateChanged(View)      {}
func (NopNotifier) Tick(int)               {}
func (NopNotifier) Warning(int, int)       {}
func (NopNotifier) Blocked(proctor.Signal) {}
func (NopNotifier) Escalated(int, int)     {}
func (NopNotifier) Completed(model.Result) {}
func (NopNotifier) Error(error)            {}
