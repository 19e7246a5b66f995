// Package session runs a single student's proctored exam attempt: the
// answer ledger, the countdown, the violation monitor and the guarded
// submission that ends it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/ledger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/scoring"
)

var (
	ErrNoContent      = errors.New("exam has no content")
	ErrNotActive      = errors.New("session is not active")
	ErrLocked         = errors.New("session is locked pending submission")
	ErrAlreadyStarted = errors.New("session already started")
)

// Attempt identifies whose attempt this is and how it is displayed.
type Attempt struct {
	UserID   string
	ExamName string
	Language string
}

// Controller owns one attempt. All methods are safe for concurrent use;
// state changes are serialised on a single mutex.
type Controller struct {
	mu      sync.Mutex
	attempt Attempt
	deps    Deps
	cfg     Config
	log     zerolog.Logger

	phase         Phase
	exam          *model.ExamDefinition
	answers       []model.Answer
	current       int
	monitor       *proctor.Monitor
	countdown     *clock.Countdown
	unsubscribe   func()
	pendingSubmit clock.Cancel
	result        *model.Result
}

// New builds an idle controller. Call Start to load the exam.
func New(attempt Attempt, deps Deps, cfg Config) *Controller {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = clock.NewRealScheduler()
	}
	cfg = cfg.withDefaults()

	return &Controller{
		attempt: attempt,
		deps:    deps,
		cfg:     cfg,
		log: deps.Log.With().
			Str("component", "session").
			Str("user_id", attempt.UserID).
			Str("exam", attempt.ExamName).
			Logger(),
		phase:   PhaseIdle,
		monitor: proctor.NewMonitor(cfg.MaxViolations),
	}
}

// Start loads the exam, restores saved progress when it fits, and starts
// the countdown. An exam that cannot be loaded or has no questions leaves
// the controller in PhaseNoContent and returns ErrNoContent.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseIdle {
		return ErrAlreadyStarted
	}

	if err := c.deps.Store.ReleaseSubmitGuard(ctx, c.attempt.UserID); err != nil {
		c.log.Warn().Err(err).Msg("Failed to release stale submit guard")
	}

	exam, err := c.deps.Exams.GetExamDefinition(ctx, c.attempt.ExamName)
	if err != nil || exam == nil || len(exam.Questions) == 0 {
		c.phase = PhaseNoContent
		c.log.Warn().Err(err).Msg("Exam has no content")
		c.deps.Notifier.StateChanged(c.viewLocked())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoContent, err)
		}
		return ErrNoContent
	}
	c.exam = exam
	if c.attempt.Language == "" {
		c.attempt.Language = exam.DefaultLanguage()
	}

	timeLeft := exam.DurationSeconds()
	escalated := false
	if snap := c.loadSnapshot(ctx); snap != nil {
		c.answers = ledger.Clone(snap.Answers)
		c.current = snap.CurrentQuestionIndex
		timeLeft = snap.TimeLeftSeconds
		escalated = c.monitor.Restore(snap.ViolationCount)
		c.log.Info().
			Int("time_left", timeLeft).
			Int("violations", snap.ViolationCount).
			Msg("Resumed exam from saved progress")
	} else {
		c.answers = ledger.Initialize(exam.Questions)
		c.current = 0
		c.saveLocked(ctx, timeLeft)
		c.log.Info().Int("time_left", timeLeft).Msg("Started exam")
	}

	c.countdown = clock.NewCountdown(timeLeft, c.cfg.PersistEvery, clock.Hooks{
		OnTick:    c.onTick,
		OnPersist: c.onPersist,
		OnExpire:  c.onExpire,
	})
	c.phase = PhaseActive
	if c.deps.Events != nil {
		c.unsubscribe = c.deps.Events.Subscribe(c.HandleSignal)
	}
	c.countdown.Start(c.deps.Scheduler)

	// The threshold was reached before the attempt was interrupted.
	if escalated {
		c.log.Warn().Int("violations", c.monitor.Count()).Msg("Resumed at the violation limit, forcing submission")
		c.escalateLocked()
	}

	c.deps.Notifier.StateChanged(c.viewLocked())
	return nil
}

func (c *Controller) loadSnapshot(ctx context.Context) *model.SessionSnapshot {
	snap, err := c.deps.Store.Load(ctx, c.attempt.UserID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Discarding unreadable saved progress")
		return nil
	}
	if snap == nil {
		return nil
	}
	if err := snap.ValidateFor(c.exam); err != nil {
		c.log.Warn().Err(err).Msg("Discarding saved progress that does not fit the exam")
		return nil
	}
	return snap
}

// GoTo moves to question index. Out-of-range indexes are ignored.
func (c *Controller) GoTo(index int) error {
	return c.navigate(func(int) int { return index })
}

// Next moves to the following question, if any.
func (c *Controller) Next() error {
	return c.navigate(func(cur int) int { return cur + 1 })
}

// Previous moves to the preceding question, if any.
func (c *Controller) Previous() error {
	return c.navigate(func(cur int) int { return cur - 1 })
}

func (c *Controller) navigate(target func(cur int) int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	index := target(c.current)
	if index < 0 || index >= len(c.answers) || index == c.current {
		return nil
	}
	c.current = index
	c.deps.Notifier.StateChanged(c.viewLocked())
	return nil
}

// SelectOption records option for the current question.
func (c *Controller) SelectOption(option int) error {
	return c.edit(func(a []model.Answer, i int) ([]model.Answer, error) {
		return ledger.Select(a, i, option)
	})
}

// ToggleReview flips the review mark on the current question.
func (c *Controller) ToggleReview() error {
	return c.edit(ledger.ToggleReview)
}

// ClearResponse removes the selection on the current question.
func (c *Controller) ClearResponse() error {
	return c.edit(ledger.Clear)
}

func (c *Controller) edit(op func([]model.Answer, int) ([]model.Answer, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	next, err := op(c.answers, c.current)
	if err != nil {
		return err
	}
	c.answers = next
	c.deps.Notifier.StateChanged(c.viewLocked())
	return nil
}

// AcknowledgeWarning hides the violation warning.
func (c *Controller) AcknowledgeWarning() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running() {
		return ErrNotActive
	}
	c.monitor.Acknowledge()
	c.deps.Notifier.StateChanged(c.viewLocked())
	return nil
}

// HandleSignal applies a client environment signal. It is the handler
// registered with the EventSource.
func (c *Controller) HandleSignal(s proctor.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running() {
		return
	}

	outcome := c.monitor.Observe(s)
	switch outcome {
	case proctor.OutcomeBlocked:
		c.deps.Notifier.Blocked(s)
		return
	case proctor.OutcomeIgnored:
		return
	}

	escalated := outcome == proctor.OutcomeEscalated
	c.log.Warn().
		Str("signal", string(s)).
		Int("count", c.monitor.Count()).
		Bool("escalated", escalated).
		Msg("Violation recorded")

	ctx, cancel := c.opContext()
	defer cancel()
	c.recordViolationLocked(ctx, s, escalated)
	c.saveLocked(ctx, c.countdown.Remaining())

	if escalated {
		c.escalateLocked()
	} else {
		c.deps.Notifier.Warning(c.monitor.Count(), c.monitor.Max())
	}
	c.deps.Notifier.StateChanged(c.viewLocked())
}

func (c *Controller) recordViolationLocked(ctx context.Context, s proctor.Signal, escalated bool) {
	if c.deps.Violations == nil {
		return
	}
	err := c.deps.Violations.RecordViolation(ctx, model.ViolationEvent{
		UserID:         c.attempt.UserID,
		ExamName:       c.attempt.ExamName,
		Signal:         string(s),
		ViolationCount: c.monitor.Count(),
		MaxViolations:  c.monitor.Max(),
		Escalated:      escalated,
		RecordedAt:     c.cfg.Now(),
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to record violation")
	}
}

// escalateLocked freezes the ledger and schedules the forced submission.
func (c *Controller) escalateLocked() {
	if c.pendingSubmit != nil {
		return
	}
	c.phase = PhaseLocked
	c.deps.Notifier.Escalated(c.monitor.Count(), c.monitor.Max())
	c.pendingSubmit = c.deps.Scheduler.After(c.cfg.EscalationDelay, func() {
		ctx, cancel := c.opContext()
		defer cancel()
		if _, err := c.Submit(ctx, model.ReasonViolations); err != nil {
			c.log.Error().Err(err).Msg("Forced submission failed")
		}
	})
}

// Submit scores the attempt and hands the result on. Only the first
// successful call does any work; later calls return false.
func (c *Controller) Submit(ctx context.Context, reason model.SubmitReason) (bool, error) {
	c.mu.Lock()
	result, err := c.submitLocked(ctx, reason)
	c.mu.Unlock()

	if err != nil || result == nil {
		return false, err
	}
	if c.deps.OnComplete != nil {
		c.deps.OnComplete(*result)
	}
	return true, nil
}

func (c *Controller) submitLocked(ctx context.Context, reason model.SubmitReason) (*model.Result, error) {
	if !c.running() {
		return nil, nil
	}
	uid := c.attempt.UserID

	acquired, err := c.deps.Store.AcquireSubmitGuard(ctx, uid)
	if err != nil {
		c.deps.Notifier.Error(err)
		return nil, fmt.Errorf("acquire submit guard: %w", err)
	}
	if !acquired {
		c.log.Debug().Str("reason", string(reason)).Msg("Submission already in progress")
		return nil, nil
	}

	result := scoring.Score(c.exam.Questions, c.answers, scoring.Meta{
		UserID:   uid,
		ExamName: c.attempt.ExamName,
		Reason:   reason,
		At:       c.cfg.Now(),
	})
	result.ID = uuid.NewString()

	if err := c.deps.Results.SubmitResult(ctx, result); err != nil {
		if rerr := c.deps.Store.ReleaseSubmitGuard(ctx, uid); rerr != nil {
			c.log.Warn().Err(rerr).Msg("Failed to release submit guard")
		}
		// With the clock run out the only way forward is another submit.
		if c.countdown.Expired() {
			c.phase = PhaseLocked
		}
		err = fmt.Errorf("submit result: %w", err)
		c.log.Error().Err(err).Str("reason", string(reason)).Msg("Result submission failed")
		c.deps.Notifier.Error(err)
		c.deps.Notifier.StateChanged(c.viewLocked())
		return nil, err
	}

	c.teardownLocked()
	if err := c.deps.Store.Clear(ctx, uid); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear saved progress")
	}
	c.result = &result
	c.phase = PhaseCompleted

	c.log.Info().
		Str("result_id", result.ID).
		Str("reason", string(reason)).
		Int("score", result.Score).
		Float64("percentage", result.Percentage).
		Msg("Exam submitted")

	c.deps.Notifier.Completed(result)
	return &result, nil
}

// View returns the current render state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Phase returns the lifecycle stage.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Result returns the submitted result, or nil before completion.
func (c *Controller) Result() *model.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

// Close saves final progress for a running attempt and cancels every
// pending callback. A forced submission still waiting out its delay runs
// now instead of being dropped. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.phase == PhaseLocked && c.pendingSubmit != nil {
		c.pendingSubmit()
		c.pendingSubmit = nil
		c.mu.Unlock()

		ctx, cancel := c.opContext()
		if _, err := c.Submit(ctx, model.ReasonViolations); err != nil {
			c.log.Error().Err(err).Msg("Forced submission on close failed")
		}
		cancel()
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	if c.running() {
		ctx, cancel := c.opContext()
		defer cancel()
		c.saveLocked(ctx, c.countdown.Remaining())
	}
	c.teardownLocked()
	if c.phase != PhaseCompleted && c.phase != PhaseNoContent {
		c.phase = PhaseClosed
	}
}

func (c *Controller) onTick(left int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running() {
		c.deps.Notifier.Tick(left)
	}
}

func (c *Controller) onPersist(left int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running() {
		return
	}
	ctx, cancel := c.opContext()
	defer cancel()
	c.saveLocked(ctx, left)
}

func (c *Controller) onExpire() {
	ctx, cancel := c.opContext()
	defer cancel()
	if _, err := c.Submit(ctx, model.ReasonTimerExpired); err != nil {
		c.log.Error().Err(err).Msg("Submission on timer expiry failed")
	}
}

func (c *Controller) saveLocked(ctx context.Context, timeLeft int) {
	snap := &model.SessionSnapshot{
		Answers:              ledger.Clone(c.answers),
		TimeLeftSeconds:      timeLeft,
		CurrentQuestionIndex: c.current,
		ViolationCount:       c.monitor.Count(),
	}
	if err := c.deps.Store.Save(ctx, c.attempt.UserID, snap); err != nil {
		c.log.Warn().Err(err).Msg("Failed to save progress")
	}
}

func (c *Controller) teardownLocked() {
	if c.countdown != nil {
		c.countdown.Stop()
	}
	if c.pendingSubmit != nil {
		c.pendingSubmit()
		c.pendingSubmit = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Controller) running() bool {
	return c.phase == PhaseActive || c.phase == PhaseLocked
}

func (c *Controller) editableLocked() error {
	switch c.phase {
	case PhaseActive:
		return nil
	case PhaseLocked:
		return ErrLocked
	default:
		return ErrNotActive
	}
}

func (c *Controller) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.cfg.OpTimeout)
}
