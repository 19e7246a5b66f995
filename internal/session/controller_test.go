package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type fakeExams struct {
	exams map[string]*model.ExamDefinition
}

func (f *fakeExams) GetExamDefinition(_ context.Context, name string) (*model.ExamDefinition, error) {
	if e, ok := f.exams[name]; ok {
		return e, nil
	}
	return nil, repository.ErrExamNotFound
}

type fakeResults struct {
	mu      sync.Mutex
	fail    error
	results []model.Result
}

func (f *fakeResults) SubmitResult(_ context.Context, r model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.results = append(f.results, r)
	return nil
}

func (f *fakeResults) all() []model.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Result(nil), f.results...)
}

func (f *fakeResults) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

type fakeEvents struct {
	mu           sync.Mutex
	handler      func(proctor.Signal)
	unsubscribed bool
}

func (f *fakeEvents) Subscribe(h func(proctor.Signal)) func() {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.handler = nil
		f.unsubscribed = true
		f.mu.Unlock()
	}
}

func (f *fakeEvents) emit(s proctor.Signal) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(s)
	}
}

type fakeViolations struct {
	mu     sync.Mutex
	events []model.ViolationEvent
}

func (f *fakeViolations) RecordViolation(_ context.Context, v model.ViolationEvent) error {
	f.mu.Lock()
	f.events = append(f.events, v)
	f.mu.Unlock()
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	ticks     []int
	warnings  int
	escalated int
	blocked   []proctor.Signal
	completed []model.Result
	errs      []error
	last      View
}

func (n *recordingNotifier) StateChanged(v View) {
	n.mu.Lock()
	n.last = v
	n.mu.Unlock()
}

func (n *recordingNotifier) Tick(left int) {
	n.mu.Lock()
	n.ticks = append(n.ticks, left)
	n.mu.Unlock()
}

func (n *recordingNotifier) Warning(int, int) {
	n.mu.Lock()
	n.warnings++
	n.mu.Unlock()
}

func (n *recordingNotifier) Escalated(int, int) {
	n.mu.Lock()
	n.escalated++
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(err error) {
	n.mu.Lock()
	n.errs = append(n.errs, err)
	n.mu.Unlock()
}

func (n *recordingNotifier) Blocked(s proctor.Signal) {
	n.mu.Lock()
	n.blocked = append(n.blocked, s)
	n.mu.Unlock()
}

func (n *recordingNotifier) Completed(r model.Result) {
	n.mu.Lock()
	n.completed = append(n.completed, r)
	n.mu.Unlock()
}

// ─── Harness ────────────────────────────────────────────────────────

const testUser = "student-1"

func sampleExam(name string, minutes, questions int, langs ...string) *model.ExamDefinition {
	if len(langs) == 0 {
		langs = []string{"en", "hi"}
	}
	e := &model.ExamDefinition{Name: name, DurationMinutes: minutes, SupportedLanguages: langs}
	for i := 0; i < questions; i++ {
		q := model.Question{
			ID:                 i + 1,
			Text:               model.NewLocalizedString("en", fmt.Sprintf("Question %d", i+1), "hi", fmt.Sprintf("प्रश्न %d", i+1)),
			CorrectAnswerIndex: i % model.OptionCount,
		}
		for o := 0; o < model.OptionCount; o++ {
			q.Options = append(q.Options, model.NewLocalizedString("en", fmt.Sprintf("Option %d", o)))
		}
		e.Questions = append(e.Questions, q)
	}
	return e
}

type harness struct {
	ctrl        *Controller
	sched       *clock.ManualScheduler
	store       *repository.MemorySnapshotStore
	results     *fakeResults
	events      *fakeEvents
	notifier    *recordingNotifier
	violations  *fakeViolations
	exams       *fakeExams
	completions atomic.Int32
}

func newHarness(t *testing.T, exam *model.ExamDefinition) *harness {
	t.Helper()
	h := &harness{
		sched:      clock.NewManualScheduler(),
		store:      repository.NewMemorySnapshotStore(),
		results:    &fakeResults{},
		violations: &fakeViolations{},
		exams:      &fakeExams{exams: map[string]*model.ExamDefinition{}},
	}
	if exam != nil {
		h.exams.exams[exam.Name] = exam
	}
	h.ctrl = h.newController(exam.Name, "en")
	t.Cleanup(h.ctrl.Close)
	return h
}

// newController builds a fresh controller sharing the harness's store and
// collaborators, as a page reload would.
func (h *harness) newController(examName, lang string) *Controller {
	h.events = &fakeEvents{}
	h.notifier = &recordingNotifier{}
	return New(
		Attempt{UserID: testUser, ExamName: examName, Language: lang},
		Deps{
			Exams:      h.exams,
			Results:    h.results,
			Store:      h.store,
			Scheduler:  h.sched,
			Events:     h.events,
			Notifier:   h.notifier,
			Violations: h.violations,
			OnComplete: func(model.Result) { h.completions.Add(1) },
			Log:        zerolog.Nop(),
		},
		Config{Now: func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }},
	)
}

func mustStart(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func mustSaved(t *testing.T, h *harness) *model.SessionSnapshot {
	t.Helper()
	snap, err := h.store.Load(context.Background(), testUser)
	if err != nil || snap == nil {
		t.Fatalf("saved progress = %v, %v", snap, err)
	}
	return snap
}

// ─── Scenarios ──────────────────────────────────────────────────────

func TestAnswerNavigateAndPersist(t *testing.T) {
	h := newHarness(t, sampleExam("General Knowledge Championship", 30, 10))
	mustStart(t, h.ctrl)

	if err := h.ctrl.SelectOption(2); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	if err := h.ctrl.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := h.ctrl.ToggleReview(); err != nil {
		t.Fatalf("ToggleReview: %v", err)
	}

	h.sched.Advance(5 * time.Second)

	snap := mustSaved(t, h)
	if snap.TimeLeftSeconds != 1795 {
		t.Errorf("time left = %d, want 1795", snap.TimeLeftSeconds)
	}
	if snap.CurrentQuestionIndex != 1 {
		t.Errorf("current index = %d, want 1", snap.CurrentQuestionIndex)
	}
	if sel, ok := snap.Answers[0].Selected(); !ok || sel != 2 || snap.Answers[0].Status != model.StatusAnswered {
		t.Errorf("answers[0] = %+v", snap.Answers[0])
	}
	if snap.Answers[1].Status != model.StatusReview || snap.Answers[1].SelectedOptionIndex != nil {
		t.Errorf("answers[1] = %+v", snap.Answers[1])
	}
	for i := 2; i < 10; i++ {
		if snap.Answers[i].Status != model.StatusUnanswered {
			t.Errorf("answers[%d] = %+v", i, snap.Answers[i])
		}
	}

	v := h.ctrl.View()
	if v.TimeLeftSeconds != 1795 || v.Question == nil || v.Question.Number != 2 {
		t.Errorf("view = %+v", v)
	}
	if len(h.notifier.ticks) != 5 {
		t.Errorf("ticks = %v", h.notifier.ticks)
	}
}

func TestTimerExpirySubmitsOnce(t *testing.T) {
	exam := sampleExam("Basic Computer Literacy Test", 1, 10, "en")
	h := newHarness(t, exam)
	mustStart(t, h.ctrl)

	for i := 0; i < 7; i++ {
		if err := h.ctrl.GoTo(i); err != nil {
			t.Fatalf("GoTo(%d): %v", i, err)
		}
		if err := h.ctrl.SelectOption(exam.Questions[i].CorrectAnswerIndex); err != nil {
			t.Fatalf("SelectOption: %v", err)
		}
	}

	h.sched.Advance(60 * time.Second)

	results := h.results.all()
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if r.Score != 7 || r.Percentage != 70 || r.Remark != model.RemarkGood {
		t.Errorf("result = %+v", r)
	}
	if r.Unanswered != 3 || r.Reason != model.ReasonTimerExpired || r.ID == "" {
		t.Errorf("result = %+v", r)
	}
	if h.ctrl.Phase() != PhaseCompleted {
		t.Errorf("phase = %s", h.ctrl.Phase())
	}
	if h.completions.Load() != 1 || len(h.notifier.completed) != 1 {
		t.Errorf("completions = %d notified = %d", h.completions.Load(), len(h.notifier.completed))
	}
	if snap, _ := h.store.Load(context.Background(), testUser); snap != nil {
		t.Error("saved progress survived submission")
	}

	if ok, err := h.ctrl.Submit(context.Background(), model.ReasonManual); ok || err != nil {
		t.Errorf("second Submit = %v, %v", ok, err)
	}
	h.sched.Advance(time.Minute)
	if len(h.results.all()) != 1 || h.completions.Load() != 1 {
		t.Error("submission happened more than once")
	}
}

func TestViolationEscalationForcesSubmit(t *testing.T) {
	h := newHarness(t, sampleExam("General Knowledge Championship", 30, 10))
	mustStart(t, h.ctrl)

	h.events.emit(proctor.SignalVisibilityHidden)
	if !h.ctrl.View().WarningVisible {
		t.Fatal("warning not shown after first violation")
	}
	_ = h.ctrl.AcknowledgeWarning()
	h.events.emit(proctor.SignalVisibilityHidden)
	_ = h.ctrl.AcknowledgeWarning()
	h.events.emit(proctor.SignalVisibilityHidden)

	if h.notifier.warnings != 2 || h.notifier.escalated != 1 {
		t.Errorf("warnings = %d escalated = %d", h.notifier.warnings, h.notifier.escalated)
	}
	if h.ctrl.Phase() != PhaseLocked {
		t.Fatalf("phase = %s, want locked", h.ctrl.Phase())
	}
	if err := h.ctrl.SelectOption(0); !errors.Is(err, ErrLocked) {
		t.Errorf("SelectOption during delay = %v, want ErrLocked", err)
	}
	if err := h.ctrl.Next(); !errors.Is(err, ErrLocked) {
		t.Errorf("Next during delay = %v, want ErrLocked", err)
	}

	h.sched.Advance(499 * time.Millisecond)
	if len(h.results.all()) != 0 {
		t.Fatal("submitted before the escalation delay")
	}
	h.sched.Advance(time.Millisecond)

	results := h.results.all()
	if len(results) != 1 || results[0].Reason != model.ReasonViolations {
		t.Fatalf("results = %+v", results)
	}

	// a timer expiry racing the forced submission finds the session done
	if ok, _ := h.ctrl.Submit(context.Background(), model.ReasonTimerExpired); ok {
		t.Error("second trigger submitted again")
	}
	if len(h.results.all()) != 1 {
		t.Error("more than one result")
	}

	h.violations.mu.Lock()
	defer h.violations.mu.Unlock()
	if len(h.violations.events) != 3 || !h.violations.events[2].Escalated {
		t.Errorf("violations = %+v", h.violations.events)
	}
}

func TestReloadRestoresProgress(t *testing.T) {
	exam := sampleExam("General Knowledge Championship", 30, 10)
	h := newHarness(t, exam)
	mustStart(t, h.ctrl)

	_ = h.ctrl.SelectOption(1)
	_ = h.ctrl.GoTo(4)
	h.sched.Advance(7 * time.Second)
	h.events.emit(proctor.SignalVisibilityHidden)
	h.ctrl.Close()

	if !h.events.unsubscribed {
		t.Error("Close did not unsubscribe from events")
	}

	reloaded := h.newController(exam.Name, "en")
	defer reloaded.Close()
	mustStart(t, reloaded)

	v := reloaded.View()
	if v.TimeLeftSeconds != 1793 {
		t.Errorf("time left = %d, want 1793", v.TimeLeftSeconds)
	}
	if v.CurrentIndex != 4 || v.ViolationCount != 1 {
		t.Errorf("current = %d violations = %d", v.CurrentIndex, v.ViolationCount)
	}
	if v.Palette[0] != model.StatusAnswered {
		t.Errorf("palette = %v", v.Palette)
	}

	// two more violations reach the maximum
	h.events.emit(proctor.SignalVisibilityHidden)
	h.events.emit(proctor.SignalVisibilityHidden)
	if reloaded.Phase() != PhaseLocked {
		t.Errorf("phase = %s, want locked", reloaded.Phase())
	}
}

func TestReloadRestoresSavedSnapshotExactly(t *testing.T) {
	exam := sampleExam("General Knowledge Championship", 30, 10)
	h := newHarness(t, exam)

	answers := make([]model.Answer, len(exam.Questions))
	for i, q := range exam.Questions {
		answers[i] = model.Answer{QuestionID: q.ID, Status: model.StatusUnanswered}
	}
	answers[0] = model.Answer{QuestionID: 1, SelectedOptionIndex: model.IntPtr(2), Status: model.StatusAnswered}
	answers[3] = model.Answer{QuestionID: 4, Status: model.StatusReview}
	if err := h.store.Save(context.Background(), testUser, &model.SessionSnapshot{
		Answers:              answers,
		TimeLeftSeconds:      945,
		CurrentQuestionIndex: 4,
		ViolationCount:       1,
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	mustStart(t, h.ctrl)

	v := h.ctrl.View()
	if v.Phase != PhaseActive || v.TimeLeftSeconds != 945 || v.CurrentIndex != 4 || v.ViolationCount != 1 {
		t.Fatalf("view = phase %s time %d index %d violations %d", v.Phase, v.TimeLeftSeconds, v.CurrentIndex, v.ViolationCount)
	}
	if v.Question == nil || v.Question.Number != 5 {
		t.Errorf("question = %+v, want number 5", v.Question)
	}
	if v.WarningVisible {
		t.Error("restored warning should stay hidden")
	}
	want := []model.AnswerStatus{model.StatusAnswered, model.StatusUnanswered, model.StatusUnanswered, model.StatusReview}
	for i, st := range want {
		if v.Palette[i] != st {
			t.Errorf("palette[%d] = %s, want %s", i, v.Palette[i], st)
		}
	}

	h.sched.Advance(5 * time.Second)
	if got := mustSaved(t, h).TimeLeftSeconds; got != 940 {
		t.Errorf("saved time left = %d, want 940", got)
	}
}

func TestReloadAtViolationLimitForcesSubmit(t *testing.T) {
	exam := sampleExam("GK", 30, 2)
	h := newHarness(t, exam)
	_ = h.store.Save(context.Background(), testUser, &model.SessionSnapshot{
		Answers: []model.Answer{
			{QuestionID: 1, SelectedOptionIndex: model.IntPtr(0), Status: model.StatusAnswered},
			{QuestionID: 2, Status: model.StatusUnanswered},
		},
		TimeLeftSeconds: 600,
		ViolationCount:  3,
	})
	mustStart(t, h.ctrl)

	if h.ctrl.Phase() != PhaseLocked || h.notifier.escalated != 1 {
		t.Fatalf("phase = %s escalated = %d, want locked and notified", h.ctrl.Phase(), h.notifier.escalated)
	}
	if err := h.ctrl.SelectOption(1); !errors.Is(err, ErrLocked) {
		t.Errorf("SelectOption = %v, want ErrLocked", err)
	}

	h.sched.Advance(500 * time.Millisecond)
	results := h.results.all()
	if len(results) != 1 || results[0].Reason != model.ReasonViolations || results[0].CorrectAnswers != 1 {
		t.Fatalf("results = %+v", results)
	}
}

func TestCloseDuringEscalationDelaySubmits(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 2))
	mustStart(t, h.ctrl)
	for i := 0; i < 3; i++ {
		h.events.emit(proctor.SignalVisibilityHidden)
	}

	h.ctrl.Close()

	results := h.results.all()
	if len(results) != 1 || results[0].Reason != model.ReasonViolations {
		t.Fatalf("results = %+v, want one forced submission", results)
	}
	if h.ctrl.Phase() != PhaseCompleted || h.completions.Load() != 1 {
		t.Errorf("phase = %s completions = %d", h.ctrl.Phase(), h.completions.Load())
	}
	if h.sched.Pending() != 0 {
		t.Errorf("pending = %d after Close", h.sched.Pending())
	}
	h.sched.Advance(time.Second)
	if len(h.results.all()) != 1 {
		t.Error("delayed callback submitted a second time")
	}
}

func TestDisconnectAtLimitNeverSkipsSubmission(t *testing.T) {
	exam := sampleExam("GK", 30, 2)
	h := newHarness(t, exam)
	mustStart(t, h.ctrl)
	for i := 0; i < 3; i++ {
		h.events.emit(proctor.SignalVisibilityHidden)
	}

	// the result sink is down while the socket drops
	h.results.setFail(errors.New("queue unavailable"))
	h.ctrl.Close()
	h.sched.Advance(time.Second)
	if len(h.results.all()) != 0 {
		t.Fatal("result stored while the sink was failing")
	}
	if snap := mustSaved(t, h); snap.ViolationCount != 3 {
		t.Fatalf("saved violations = %d, want 3", snap.ViolationCount)
	}

	h.results.setFail(nil)
	reloaded := h.newController(exam.Name, "en")
	defer reloaded.Close()
	mustStart(t, reloaded)
	if err := reloaded.SelectOption(0); !errors.Is(err, ErrLocked) {
		t.Errorf("SelectOption after reload = %v, want ErrLocked", err)
	}

	h.sched.Advance(2 * time.Second)
	results := h.results.all()
	if len(results) != 1 || results[0].Reason != model.ReasonViolations {
		t.Fatalf("results = %+v, want exactly one forced submission", results)
	}
	if reloaded.Phase() != PhaseCompleted {
		t.Errorf("phase = %s", reloaded.Phase())
	}
}

func TestViewFallsBackToFirstLanguage(t *testing.T) {
	exam := sampleExam("General Knowledge Championship", 30, 2)
	exam.Questions[0].Text = model.NewLocalizedString("en", "Capital of France?")
	h := newHarness(t, exam)
	h.ctrl = h.newController(exam.Name, "hi")
	defer h.ctrl.Close()
	mustStart(t, h.ctrl)

	q := h.ctrl.View().Question
	if q.Text != "Capital of France?" {
		t.Errorf("text = %q, want English fallback", q.Text)
	}
	if q.Options[3] != "Option 3" {
		t.Errorf("option = %q", q.Options[3])
	}

	_ = h.ctrl.Next()
	if got := h.ctrl.View().Question.Text; got != "प्रश्न 2" {
		t.Errorf("text = %q, want Hindi", got)
	}
}

// ─── Edge cases ─────────────────────────────────────────────────────

func TestMalformedSnapshotStartsFresh(t *testing.T) {
	for name, raw := range map[string]string{
		"garbage":                   `{not json`,
		"wrong shape":               `{"answers":[{"question_id":1,"selected_option_index":null,"status":"unanswered"}],"time_left_seconds":10,"current_question_index":0,"violation_count":0}`,
		"bad selection":             `{"answers":[{"question_id":1,"selected_option_index":9,"status":"answered"},{"question_id":2,"selected_option_index":null,"status":"unanswered"}],"time_left_seconds":10,"current_question_index":0,"violation_count":0}`,
		"unanswered with selection": `{"answers":[{"question_id":1,"selected_option_index":0,"status":"unanswered"},{"question_id":2,"selected_option_index":null,"status":"unanswered"}],"time_left_seconds":100,"current_question_index":0,"violation_count":0}`,
		"more time than the exam":   `{"answers":[{"question_id":1,"selected_option_index":null,"status":"unanswered"},{"question_id":2,"selected_option_index":null,"status":"unanswered"}],"time_left_seconds":99999,"current_question_index":0,"violation_count":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, sampleExam("GK", 30, 2))
			h.store.PutRaw(testUser, []byte(raw))
			mustStart(t, h.ctrl)

			v := h.ctrl.View()
			if v.TimeLeftSeconds != 1800 || v.CurrentIndex != 0 || v.Summary.Unanswered != 2 {
				t.Errorf("view = %+v, want fresh start", v)
			}

			if ok, err := h.ctrl.Submit(context.Background(), model.ReasonManual); !ok || err != nil {
				t.Fatalf("Submit = %v, %v", ok, err)
			}
			if r := h.results.all()[0]; r.CorrectAnswers != 0 || r.Unanswered != 2 {
				t.Errorf("result = %+v, want nothing carried over", r)
			}
		})
	}
}

func TestNoContent(t *testing.T) {
	h := newHarness(t, sampleExam("Empty", 30, 0))
	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrNoContent) {
		t.Errorf("empty exam: err = %v", err)
	}
	if h.ctrl.Phase() != PhaseNoContent {
		t.Errorf("phase = %s", h.ctrl.Phase())
	}
	if err := h.ctrl.SelectOption(0); !errors.Is(err, ErrNotActive) {
		t.Errorf("SelectOption = %v", err)
	}

	missing := h.newController("Unknown", "en")
	if err := missing.Start(context.Background()); !errors.Is(err, ErrNoContent) {
		t.Errorf("missing exam: err = %v", err)
	}
	if h.sched.Pending() != 0 {
		t.Errorf("pending = %d", h.sched.Pending())
	}
}

func TestSubmitFailureReleasesGuard(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 3))
	mustStart(t, h.ctrl)
	_ = h.ctrl.SelectOption(0)
	h.sched.Advance(5 * time.Second)

	h.results.setFail(errors.New("queue unavailable"))
	ok, err := h.ctrl.Submit(context.Background(), model.ReasonManual)
	if ok || err == nil {
		t.Fatalf("Submit = %v, %v; want failure", ok, err)
	}
	if h.store.GuardHeld(testUser) {
		t.Error("guard still held after failed submission")
	}
	if h.ctrl.Phase() != PhaseActive || len(h.notifier.errs) != 1 {
		t.Errorf("phase = %s errs = %d", h.ctrl.Phase(), len(h.notifier.errs))
	}
	if mustSaved(t, h).Answers[0].SelectedOptionIndex == nil {
		t.Error("saved progress lost after failed submission")
	}

	h.results.setFail(nil)
	if ok, err := h.ctrl.Submit(context.Background(), model.ReasonManual); !ok || err != nil {
		t.Fatalf("retry Submit = %v, %v", ok, err)
	}
	if len(h.results.all()) != 1 {
		t.Errorf("results = %d", len(h.results.all()))
	}
}

func TestExpiredSubmitFailureLocksLedger(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 1, 3))
	mustStart(t, h.ctrl)
	h.results.setFail(errors.New("queue unavailable"))

	h.sched.Advance(time.Minute)

	if h.ctrl.Phase() != PhaseLocked {
		t.Fatalf("phase = %s, want locked", h.ctrl.Phase())
	}
	if err := h.ctrl.SelectOption(1); !errors.Is(err, ErrLocked) {
		t.Errorf("SelectOption = %v", err)
	}
	h.results.setFail(nil)
	if ok, _ := h.ctrl.Submit(context.Background(), model.ReasonManual); !ok {
		t.Error("manual retry after expiry did not submit")
	}
}

func TestConcurrentSubmitsProduceOneResult(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 5))
	mustStart(t, h.ctrl)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := h.ctrl.Submit(context.Background(), model.ReasonManual); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || len(h.results.all()) != 1 || h.completions.Load() != 1 {
		t.Errorf("wins = %d results = %d completions = %d", wins.Load(), len(h.results.all()), h.completions.Load())
	}
}

func TestStaleGuardReleasedOnStart(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 2))
	_, _ = h.store.AcquireSubmitGuard(context.Background(), testUser)
	mustStart(t, h.ctrl)

	if ok, err := h.ctrl.Submit(context.Background(), model.ReasonManual); !ok || err != nil {
		t.Errorf("Submit = %v, %v", ok, err)
	}
}

func TestBlockedSignalsAreReportedNotCounted(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 2))
	mustStart(t, h.ctrl)

	h.events.emit(proctor.SignalCopy)
	h.events.emit(proctor.SignalPaste)
	h.events.emit(proctor.SignalContextMenu)
	h.events.emit(proctor.Signal("resize"))

	if len(h.notifier.blocked) != 3 {
		t.Errorf("blocked = %v", h.notifier.blocked)
	}
	if v := h.ctrl.View(); v.ViolationCount != 0 || v.WarningVisible {
		t.Errorf("view = %+v", v)
	}
}

func TestNavigationOutOfRangeIsNoop(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 3))
	mustStart(t, h.ctrl)

	_ = h.ctrl.Previous()
	if h.ctrl.View().CurrentIndex != 0 {
		t.Error("Previous moved before the first question")
	}
	_ = h.ctrl.GoTo(2)
	_ = h.ctrl.Next()
	_ = h.ctrl.GoTo(7)
	_ = h.ctrl.GoTo(-1)
	if h.ctrl.View().CurrentIndex != 2 {
		t.Errorf("current = %d, want 2", h.ctrl.View().CurrentIndex)
	}
}

func TestInvalidOptionRejected(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 1))
	mustStart(t, h.ctrl)
	if err := h.ctrl.SelectOption(model.OptionCount); err == nil {
		t.Error("out-of-range option accepted")
	}
	if h.ctrl.View().Summary.Answered != 0 {
		t.Error("ledger changed after rejected option")
	}
}

func TestCloseCancelsEverything(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 1, 2))
	mustStart(t, h.ctrl)
	h.events.emit(proctor.SignalVisibilityHidden)
	h.events.emit(proctor.SignalVisibilityHidden)

	h.ctrl.Close()
	if h.sched.Pending() != 0 {
		t.Errorf("pending = %d after Close", h.sched.Pending())
	}
	h.sched.Advance(time.Hour)
	if len(h.results.all()) != 0 {
		t.Error("callback fired after Close")
	}
	if h.ctrl.Phase() != PhaseClosed {
		t.Errorf("phase = %s", h.ctrl.Phase())
	}
}

func TestZeroTimeLeftExpiresOnStart(t *testing.T) {
	exam := sampleExam("GK", 30, 2)
	h := newHarness(t, exam)
	_ = h.store.Save(context.Background(), testUser, &model.SessionSnapshot{
		Answers: []model.Answer{
			{QuestionID: 1, SelectedOptionIndex: model.IntPtr(0), Status: model.StatusAnswered},
			{QuestionID: 2, Status: model.StatusUnanswered},
		},
		TimeLeftSeconds: 0,
	})
	mustStart(t, h.ctrl)

	h.sched.Advance(0)

	results := h.results.all()
	if len(results) != 1 || results[0].CorrectAnswers != 1 || results[0].Reason != model.ReasonTimerExpired {
		t.Errorf("results = %+v", results)
	}
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t, sampleExam("GK", 30, 1))
	mustStart(t, h.ctrl)
	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v", err)
	}
}
