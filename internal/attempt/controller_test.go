package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

type fakeQuiz struct {
	mu          sync.Mutex
	quiz        model.Quiz
	start       model.AttemptStart
	quizErrs    []error
	submitErrs  []error
	submitGate  chan struct{}
	submits     []model.SubmissionRequest
	exists      bool
	statusCalls int
	startCalls  int
}

func newFakeQuiz(n int, minutes int) *fakeQuiz {
	q := model.Quiz{ID: "quiz-1", Title: "Algebra", DurationMinutes: minutes, TotalMarks: float64(n)}
	for i := 1; i <= n; i++ {
		q.Questions = append(q.Questions, model.Question{
			ID:      fmt.Sprintf("q%d", i),
			Prompt:  fmt.Sprintf("question %d", i),
			Options: []string{"a", "b", "c", "d"},
			Marks:   1,
		})
	}
	return &fakeQuiz{quiz: q, start: model.AttemptStart{AttemptID: "att-1", StartedAt: t0}, exists: true}
}

func (f *fakeQuiz) GetQuiz(_ context.Context, _ string) (*model.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.quizErrs) > 0 {
		err := f.quizErrs[0]
		f.quizErrs = f.quizErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	q := f.quiz
	q.Questions = append([]model.Question(nil), f.quiz.Questions...)
	return &q, nil
}

func (f *fakeQuiz) GetQuestions(_ context.Context, _ string) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Question(nil), f.quiz.Questions...), nil
}

func (f *fakeQuiz) StartAttempt(_ context.Context, _, _ string) (*model.AttemptStart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	s := f.start
	return &s, nil
}

func (f *fakeQuiz) SubmitAttempt(_ context.Context, _ string, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	if f.submitGate != nil {
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, *req)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	score := float64(len(req.Answers))
	return &model.SubmissionResult{AttemptID: req.AttemptID, Score: &score, TotalMarks: f.quiz.TotalMarks}, nil
}

func (f *fakeQuiz) QuizExists(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return f.exists, nil
}

func (f *fakeQuiz) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

type memStore struct {
	mu         sync.Mutex
	starts     map[string]time.Time
	answers    map[string]map[string]int
	violations map[string]int
	outcomes   map[string]model.AttemptOutcome
	cleared    int
}

func newMemStore() *memStore {
	return &memStore{
		starts:     map[string]time.Time{},
		answers:    map[string]map[string]int{},
		violations: map[string]int{},
		outcomes:   map[string]model.AttemptOutcome{},
	}
}

func (m *memStore) StartTime(_ context.Context, quizID, sessionID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.starts[quizID+"/"+sessionID]
	return t, ok, nil
}

func (m *memStore) SaveStartTime(_ context.Context, quizID, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts[quizID+"/"+sessionID] = at
	return nil
}

func (m *memStore) SavedAnswers(_ context.Context, quizID, sessionID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for k, v := range m.answers[quizID+"/"+sessionID] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) SaveAnswer(_ context.Context, quizID, sessionID, questionID string, option int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := quizID + "/" + sessionID
	if m.answers[key] == nil {
		m.answers[key] = map[string]int{}
	}
	m.answers[key][questionID] = option
	return nil
}

func (m *memStore) DeleteAnswer(_ context.Context, quizID, sessionID, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.answers[quizID+"/"+sessionID], questionID)
	return nil
}

func (m *memStore) ViolationCount(_ context.Context, quizID, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violations[quizID+"/"+sessionID], nil
}

func (m *memStore) SaveViolationCount(_ context.Context, quizID, sessionID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[quizID+"/"+sessionID] = count
	return nil
}

func (m *memStore) Outcome(_ context.Context, quizID, sessionID string) (*model.AttemptOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outcomes[quizID+"/"+sessionID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) SaveOutcome(_ context.Context, quizID, sessionID string, o model.AttemptOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[quizID+"/"+sessionID] = o
	return nil
}

func (m *memStore) Clear(_ context.Context, quizID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.answers, quizID+"/"+sessionID)
	delete(m.starts, quizID+"/"+sessionID)
	delete(m.violations, quizID+"/"+sessionID)
	m.cleared++
	return nil
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recorder) count(t NoticeType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Type == t {
			n++
		}
	}
	return n
}

type sinkFunc func(model.ViolationEvent)

func (f sinkFunc) Record(_ context.Context, ev model.ViolationEvent) error {
	f(ev)
	return nil
}

type fakeVerifier struct {
	combo    string
	password string
	length   time.Duration
}

func (v fakeVerifier) AdminCombination(context.Context) (lockdown.Combination, error) {
	return lockdown.ParseCombination(v.combo)
}

func (v fakeVerifier) VerifyAdmin(_ context.Context, _, password string) (time.Duration, error) {
	if password != v.password {
		return 0, lockdown.ErrOverrideRejected
	}
	return v.length, nil
}

type harness struct {
	ctl   *Controller
	quiz  *fakeQuiz
	store *memStore
	clock *fakeClock
	rec   *recorder
}

func newHarness(t *testing.T, quiz *fakeQuiz, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{quiz: quiz, store: newMemStore(), clock: &fakeClock{t: t0}, rec: &recorder{}}
	opts := Options{
		QuizID:    "quiz-1",
		SessionID: "sess-1",
		Quiz:      quiz,
		Store:     h.store,
		Clock:     h.clock.Now,
		Logger:    zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.ctl = New(opts)
	h.ctl.Attach(h.rec)
	return h
}

func (h *harness) load(t *testing.T) {
	t.Helper()
	if err := h.ctl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.ctl.State() != model.AttemptInProgress {
		t.Fatalf("state = %s", h.ctl.State())
	}
}

// reopen builds a fresh controller for the same session over the same store,
// as after a restart or once the previous controller was released.
func (h *harness) reopen(t *testing.T) *harness {
	t.Helper()
	next := newHarness(t, h.quiz, func(o *Options) { *o = h.ctl.opts })
	next.store, next.clock = h.store, h.clock
	return next
}

func (h *harness) tick(at time.Time) {
	h.clock.Set(at)
	h.ctl.Tick(context.Background(), at)
}

func TestTimerExpiryAutoSubmitsAnsweredOnly(t *testing.T) {
	h := newHarness(t, newFakeQuiz(5, 10), nil)
	h.load(t)
	ctx := context.Background()

	for id, opt := range map[string]int{"q1": 2, "q3": 0, "q5": 1} {
		if err := h.ctl.SetAnswer(ctx, id, opt); err != nil {
			t.Fatal(err)
		}
	}
	if p := h.ctl.Snapshot().Progress; p != 0.6 {
		t.Fatalf("progress = %v", p)
	}

	h.tick(t0.Add(5 * time.Minute))
	if h.quiz.submitCount() != 0 {
		t.Fatal("submitted before expiry")
	}
	h.tick(t0.Add(10 * time.Minute))

	if h.ctl.State() != model.AttemptSubmitted {
		t.Fatalf("state = %s, want submitted", h.ctl.State())
	}
	if h.quiz.submitCount() != 1 {
		t.Fatalf("submits = %d", h.quiz.submitCount())
	}
	req := h.quiz.submits[0]
	if req.Trigger != model.TriggerTimer || req.TimeTaken != 600 || req.AttemptID != "att-1" {
		t.Fatalf("request = %+v", req)
	}
	want := []model.AnswerEntry{{QuestionID: "q1", SelectedOption: 2}, {QuestionID: "q3", SelectedOption: 0}, {QuestionID: "q5", SelectedOption: 1}}
	if len(req.Answers) != len(want) {
		t.Fatalf("answers = %+v", req.Answers)
	}
	for i := range want {
		if req.Answers[i] != want[i] {
			t.Fatalf("answers = %+v", req.Answers)
		}
	}
	if h.rec.count(NoticeTimeExpired) != 1 || h.rec.count(NoticeSubmitted) != 1 {
		t.Fatalf("notices = %+v", h.rec.notices)
	}
	if err := h.ctl.SetAnswer(ctx, "q2", 1); !errors.Is(err, ErrFinished) {
		t.Fatalf("mutation after submit: %v", err)
	}
	if h.store.cleared != 1 {
		t.Fatal("autosave not cleared after submission")
	}

	h.tick(t0.Add(11 * time.Minute))
	if h.quiz.submitCount() != 1 {
		t.Fatal("second submission after terminal state")
	}
}

func TestSubmitOnceWhenTimerAndManualRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		quiz := newFakeQuiz(3, 1)
		h := newHarness(t, quiz, nil)
		h.load(t)
		if _, err := h.ctl.RequestSubmit(); err != nil {
			t.Fatal(err)
		}

		expiry := t0.Add(time.Minute)
		h.clock.Set(expiry)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.ctl.ConfirmSubmit(context.Background())
		}()
		go func() {
			defer wg.Done()
			h.ctl.Tick(context.Background(), expiry)
		}()
		wg.Wait()

		if quiz.submitCount() != 1 {
			t.Fatalf("run %d: submits = %d", i, quiz.submitCount())
		}
		if h.ctl.State() != model.AttemptSubmitted {
			t.Fatalf("run %d: state = %s", i, h.ctl.State())
		}
	}
}

func TestConfirmWhileSubmissionInFlight(t *testing.T) {
	quiz := newFakeQuiz(2, 1)
	quiz.submitGate = make(chan struct{})
	h := newHarness(t, quiz, nil)
	h.load(t)

	if _, err := h.ctl.RequestSubmit(); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.ctl.ConfirmSubmit(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !h.ctl.Snapshot().Busy {
		if time.Now().After(deadline) {
			t.Fatal("submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	if h.ctl.State() != model.AttemptSubmitting {
		t.Fatalf("state = %s", h.ctl.State())
	}
	if _, err := h.ctl.ConfirmSubmit(context.Background()); err == nil {
		t.Fatal("second confirm accepted while submitting")
	}
	h.tick(t0.Add(time.Minute))

	close(quiz.submitGate)
	<-done
	if quiz.submitCount() != 1 {
		t.Fatalf("submits = %d", quiz.submitCount())
	}
}

func TestSubmitFailurePreservesAnswersAndRetries(t *testing.T) {
	quiz := newFakeQuiz(4, 30)
	quiz.submitErrs = []error{errors.New("upstream 502")}
	h := newHarness(t, quiz, nil)
	h.load(t)
	ctx := context.Background()

	_ = h.ctl.SetAnswer(ctx, "q2", 3)
	_ = h.ctl.SetAnswer(ctx, "q4", 0)
	_, _ = h.ctl.RequestSubmit()

	_, err := h.ctl.ConfirmSubmit(ctx)
	if err == nil || !IsRetryable(err) {
		t.Fatalf("ConfirmSubmit err = %v", err)
	}
	snap := h.ctl.Snapshot()
	if snap.State != model.AttemptError || snap.Answered != 2 || snap.Answers["q2"] != 3 {
		t.Fatalf("snapshot after failure = %+v", snap)
	}
	if snap.Error == "" || h.rec.count(NoticeSubmitFailed) != 1 {
		t.Fatal("failure not surfaced")
	}

	if err := h.ctl.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if h.ctl.State() != model.AttemptSubmitted {
		t.Fatalf("state = %s", h.ctl.State())
	}
	if quiz.submitCount() != 2 || len(quiz.submits[1].Answers) != 2 || quiz.submits[1].Trigger != model.TriggerManual {
		t.Fatalf("retry payload = %+v", quiz.submits)
	}
	if err := h.ctl.Retry(ctx); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("Retry after success: %v", err)
	}
}

func TestLoadFailureThenRetry(t *testing.T) {
	quiz := newFakeQuiz(3, 10)
	quiz.quizErrs = []error{errors.New("connection refused")}
	h := newHarness(t, quiz, nil)

	err := h.ctl.Load(context.Background())
	var f *Failure
	if !errors.As(err, &f) || f.Phase != PhaseLoad {
		t.Fatalf("Load err = %v", err)
	}
	if h.ctl.State() != model.AttemptError || h.rec.count(NoticeLoadFailed) != 1 {
		t.Fatal("load failure not surfaced")
	}
	if err := h.ctl.SetAnswer(context.Background(), "q1", 0); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("SetAnswer during error: %v", err)
	}

	if err := h.ctl.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if h.ctl.State() != model.AttemptInProgress || h.ctl.Snapshot().Total != 3 {
		t.Fatalf("snapshot = %+v", h.ctl.Snapshot())
	}
}

func TestLivenessTerminatesDeletedQuiz(t *testing.T) {
	quiz := newFakeQuiz(3, 60)
	quiz.quiz.SecuritySettings = &model.SecuritySettings{DisableRightClick: true}
	h := newHarness(t, quiz, nil)
	h.load(t)
	_ = h.ctl.SetAnswer(context.Background(), "q1", 1)

	h.tick(t0.Add(29 * time.Second))
	if quiz.statusCalls != 0 {
		t.Fatal("polled before the interval")
	}
	h.tick(t0.Add(30 * time.Second))
	if quiz.statusCalls != 1 || h.ctl.State() != model.AttemptInProgress {
		t.Fatalf("calls=%d state=%s", quiz.statusCalls, h.ctl.State())
	}

	quiz.mu.Lock()
	quiz.exists = false
	quiz.mu.Unlock()
	h.tick(t0.Add(45 * time.Second))
	if quiz.statusCalls != 1 {
		t.Fatal("polled twice within one interval")
	}
	h.tick(t0.Add(60 * time.Second))

	snap := h.ctl.Snapshot()
	if snap.State != model.AttemptTerminated || snap.TerminatedReason != ReasonQuizDeleted {
		t.Fatalf("snapshot = %+v", snap)
	}
	if h.rec.count(NoticeTerminated) != 1 || h.store.cleared != 1 {
		t.Fatal("termination not surfaced")
	}
	d, err := h.ctl.HandleBrowserEvent(context.Background(), lockdown.Event{Kind: lockdown.EventKeyDown, Key: "a"})
	if err != nil || !d.Prevent || !d.Terminated {
		t.Fatalf("input after termination: %+v %v", d, err)
	}
	if _, err := h.ctl.RequestSubmit(); !errors.Is(err, ErrFinished) {
		t.Fatalf("RequestSubmit after termination: %v", err)
	}
}

func TestViolationThresholdTerminatesAttempt(t *testing.T) {
	quiz := newFakeQuiz(2, 30)
	quiz.quiz.SecuritySettings = &model.SecuritySettings{DisableRightClick: true}

	var mu sync.Mutex
	var recorded []model.ViolationEvent
	h := newHarness(t, quiz, func(o *Options) {
		o.ParticipantID = "p-9"
		o.Lockdown = lockdown.Config{Threshold: 5}
		o.Violations = sinkFunc(func(ev model.ViolationEvent) {
			mu.Lock()
			recorded = append(recorded, ev)
			mu.Unlock()
		})
	})
	h.load(t)

	var last lockdown.Decision
	for i := 0; i < 5; i++ {
		d, err := h.ctl.HandleBrowserEvent(context.Background(), lockdown.Event{Kind: lockdown.EventContextMenu})
		if err != nil {
			t.Fatal(err)
		}
		last = d
	}
	if !last.Terminated || h.ctl.State() != model.AttemptTerminated {
		t.Fatalf("decision = %+v state = %s", last, h.ctl.State())
	}
	if len(recorded) != 5 || recorded[4].Count != 5 || recorded[0].ParticipantID != "p-9" {
		t.Fatalf("recorded = %+v", recorded)
	}
	if h.ctl.Snapshot().TerminatedReason != ReasonViolations {
		t.Fatal("wrong termination reason")
	}
	if quiz.submitCount() != 0 {
		t.Fatal("terminated attempt was submitted")
	}
}

func TestAdminOverrideThroughVerifier(t *testing.T) {
	quiz := newFakeQuiz(2, 30)
	quiz.quiz.SecuritySettings = &model.SecuritySettings{EnableProctoringMode: true}
	h := newHarness(t, quiz, func(o *Options) {
		o.Overrides = fakeVerifier{combo: "ctrl+5", password: "s3cret", length: 300 * time.Second}
	})
	h.load(t)
	ctx := context.Background()

	if _, err := h.ctl.ConsentFullscreen(); err != nil {
		t.Fatal(err)
	}
	_, _ = h.ctl.HandleBrowserEvent(ctx, lockdown.Event{Kind: lockdown.EventFullscreenEnter})

	if _, _, err := h.ctl.SubmitAdminPassword(ctx, "s3cret"); !errors.Is(err, lockdown.ErrNoPromptPending) {
		t.Fatalf("password without prompt: %v", err)
	}

	combo := lockdown.Event{Kind: lockdown.EventKeyDown, Key: "5", Ctrl: true}
	if d, _ := h.ctl.HandleBrowserEvent(ctx, combo); !d.Prevent || len(d.Commands) == 0 {
		t.Fatalf("combo decision = %+v", d)
	}
	if _, _, err := h.ctl.SubmitAdminPassword(ctx, "nope"); !errors.Is(err, lockdown.ErrOverrideRejected) {
		t.Fatalf("wrong password: %v", err)
	}

	_, _ = h.ctl.HandleBrowserEvent(ctx, combo)
	grant, _, err := h.ctl.SubmitAdminPassword(ctx, "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if !grant.ExpiresAt.Equal(t0.Add(300 * time.Second)) {
		t.Fatalf("grant = %+v", grant)
	}
	if d, _ := h.ctl.HandleBrowserEvent(ctx, lockdown.Event{Kind: lockdown.EventContextMenu}); d.Violation != nil || d.Prevent {
		t.Fatal("enforcement active during override")
	}

	h.tick(t0.Add(299 * time.Second))
	if got := h.ctl.Snapshot().Lockdown.State; got != string(lockdown.StateOverridden) {
		t.Fatalf("lockdown state = %s", got)
	}
	h.tick(t0.Add(300 * time.Second))
	if got := h.ctl.Snapshot().Lockdown.State; got != string(lockdown.StateMonitoring) {
		t.Fatalf("lockdown state = %s, want monitoring", got)
	}
}

func TestNavigationAndConfirmation(t *testing.T) {
	h := newHarness(t, newFakeQuiz(3, 10), nil)
	h.load(t)

	if _, err := h.ctl.Previous(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Previous at 0: %v", err)
	}
	if i, _ := h.ctl.Next(); i != 1 {
		t.Fatalf("Next = %d", i)
	}
	if i, _ := h.ctl.Next(); i != 2 {
		t.Fatalf("Next = %d", i)
	}
	if _, err := h.ctl.Next(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Next past end: %v", err)
	}
	if _, err := h.ctl.Jump(0); !errors.Is(err, ErrJumpUnsupported) {
		t.Fatalf("Jump in one-at-a-time: %v", err)
	}

	if _, err := h.ctl.ConfirmSubmit(context.Background()); !errors.Is(err, ErrNoConfirmation) {
		t.Fatalf("confirm without request: %v", err)
	}
	_ = h.ctl.SetAnswer(context.Background(), "q2", 1)
	conf, err := h.ctl.RequestSubmit()
	if err != nil || conf != (Confirmation{Answered: 1, Total: 3, Unanswered: 2}) {
		t.Fatalf("confirmation = %+v %v", conf, err)
	}
	h.ctl.CancelSubmit()
	if h.ctl.Snapshot().ConfirmPending {
		t.Fatal("cancel did not dismiss")
	}
	if err := h.ctl.SetAnswer(context.Background(), "q9", 0); err == nil {
		t.Fatal("unknown question accepted")
	}
}

func TestJumpInAllAtOnceMode(t *testing.T) {
	quiz := newFakeQuiz(4, 10)
	quiz.quiz.QuestionDisplayMode = model.DisplayAllAtOnce
	h := newHarness(t, quiz, nil)
	h.load(t)

	if i, err := h.ctl.Jump(3); err != nil || i != 3 {
		t.Fatalf("Jump = %d %v", i, err)
	}
	if _, err := h.ctl.Jump(4); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Jump out of range: %v", err)
	}
}

func TestServerRemainingTimeWins(t *testing.T) {
	quiz := newFakeQuiz(2, 10)
	left := 120
	quiz.start = model.AttemptStart{AttemptID: "att-1", StartedAt: t0.Add(-time.Minute), RemainingSeconds: &left}
	h := newHarness(t, quiz, nil)
	h.load(t)

	snap := h.ctl.Snapshot()
	if snap.RemainingSeconds != 120 {
		t.Fatalf("remaining = %d", snap.RemainingSeconds)
	}
	if !snap.StartedAt.Equal(t0.Add(-8 * time.Minute)) {
		t.Fatalf("started_at = %s", snap.StartedAt)
	}
}

func TestResumeFromStoredStartAndAutosave(t *testing.T) {
	quiz := newFakeQuiz(3, 10)
	quiz.start = model.AttemptStart{AttemptID: "att-1"}
	h := newHarness(t, quiz, nil)
	ctx := context.Background()
	_ = h.store.SaveStartTime(ctx, "quiz-1", "sess-1", t0.Add(-4*time.Minute))
	_ = h.store.SaveAnswer(ctx, "quiz-1", "sess-1", "q2", 0)
	_ = h.store.SaveAnswer(ctx, "quiz-1", "sess-1", "gone", 1)
	h.load(t)

	snap := h.ctl.Snapshot()
	if snap.RemainingSeconds != 360 {
		t.Fatalf("remaining = %d, want 360", snap.RemainingSeconds)
	}
	if snap.Answered != 1 || snap.Answers["q2"] != 0 {
		t.Fatalf("restored answers = %+v", snap.Answers)
	}

	_ = h.ctl.ClearAnswer(ctx, "q2")
	saved, _ := h.store.SavedAnswers(ctx, "quiz-1", "sess-1")
	if _, ok := saved["q2"]; ok {
		t.Fatal("cleared answer still autosaved")
	}
}

func TestCloseRejectsFurtherWork(t *testing.T) {
	h := newHarness(t, newFakeQuiz(2, 10), nil)
	h.load(t)
	h.ctl.Close()

	if err := h.ctl.SetAnswer(context.Background(), "q1", 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("SetAnswer after close: %v", err)
	}
	h.tick(t0.Add(time.Hour))
	if h.quiz.submitCount() != 0 {
		t.Fatal("closed controller submitted")
	}
	if !h.ctl.Finished() {
		t.Fatal("closed controller not finished")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	quiz := newFakeQuiz(1, 10)
	quiz.start = model.AttemptStart{AttemptID: "att-1", StartedAt: time.Now()}
	h := newHarness(t, quiz, func(o *Options) { o.Clock = nil })
	h.load(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.ctl.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	if h.rec.count(NoticeCountdown) == 0 {
		t.Fatal("no countdown notices while running")
	}
}

func TestSubmittedAttemptIsNotRestarted(t *testing.T) {
	h := newHarness(t, newFakeQuiz(3, 10), nil)
	h.load(t)
	ctx := context.Background()

	_ = h.ctl.SetAnswer(ctx, "q1", 2)
	_, _ = h.ctl.RequestSubmit()
	want, err := h.ctl.ConfirmSubmit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	starts := h.quiz.startCalls

	next := h.reopen(t)
	if err := next.ctl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := next.ctl.Snapshot()
	if snap.State != model.AttemptSubmitted || snap.Result == nil || *snap.Result.Score != *want.Score {
		t.Fatalf("reopened snapshot = %+v", snap)
	}
	if snap.Answered != 1 || snap.Total != 3 || snap.AttemptID != "att-1" {
		t.Fatalf("reopened progress = %+v", snap)
	}
	if h.quiz.startCalls != starts {
		t.Fatal("finished attempt was started again upstream")
	}
	if next.rec.count(NoticeSubmitted) != 1 || next.rec.count(NoticeLoaded) != 0 {
		t.Fatalf("notices = %+v", next.rec.notices)
	}
	if err := next.ctl.SetAnswer(ctx, "q2", 0); !errors.Is(err, ErrFinished) {
		t.Fatalf("SetAnswer after reopen: %v", err)
	}
	next.tick(t0.Add(time.Hour))
	if h.quiz.submitCount() != 1 {
		t.Fatalf("submits = %d", h.quiz.submitCount())
	}
}

func TestTerminatedAttemptStaysTerminated(t *testing.T) {
	quiz := newFakeQuiz(2, 30)
	quiz.quiz.SecuritySettings = &model.SecuritySettings{DisableRightClick: true}
	h := newHarness(t, quiz, func(o *Options) { o.Lockdown = lockdown.Config{Threshold: 5} })
	h.load(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = h.ctl.HandleBrowserEvent(ctx, lockdown.Event{Kind: lockdown.EventContextMenu})
	}
	if h.ctl.State() != model.AttemptTerminated {
		t.Fatalf("state = %s", h.ctl.State())
	}

	next := h.reopen(t)
	if err := next.ctl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	snap := next.ctl.Snapshot()
	if snap.State != model.AttemptTerminated || snap.TerminatedReason != ReasonViolations {
		t.Fatalf("reopened snapshot = %+v", snap)
	}
	if snap.Lockdown == nil || snap.Lockdown.Violations != 5 {
		t.Fatalf("lockdown = %+v", snap.Lockdown)
	}
	if next.rec.count(NoticeTerminated) != 1 {
		t.Fatal("terminal notice not replayed")
	}
	d, err := next.ctl.HandleBrowserEvent(ctx, lockdown.Event{Kind: lockdown.EventKeyDown, Key: "a"})
	if err != nil || !d.Terminated {
		t.Fatalf("input after reopen: %+v %v", d, err)
	}
	if quiz.startCalls != 1 {
		t.Fatalf("start calls = %d", quiz.startCalls)
	}
}

func TestViolationCountSurvivesRestart(t *testing.T) {
	quiz := newFakeQuiz(2, 30)
	quiz.quiz.SecuritySettings = &model.SecuritySettings{DisableRightClick: true}
	h := newHarness(t, quiz, func(o *Options) { o.Lockdown = lockdown.Config{Threshold: 5} })
	h.load(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = h.ctl.HandleBrowserEvent(ctx, lockdown.Event{Kind: lockdown.EventContextMenu})
	}
	h.ctl.Close()

	next := h.reopen(t)
	next.load(t)
	if got := next.ctl.Snapshot().Lockdown.Violations; got != 3 {
		t.Fatalf("violations after restart = %d, want 3", got)
	}
	_, _ = next.ctl.HandleBrowserEvent(ctx, lockdown.Event{Kind: lockdown.EventContextMenu})
	d, _ := next.ctl.HandleBrowserEvent(ctx, lockdown.Event{Kind: lockdown.EventContextMenu})
	if !d.Terminated || next.ctl.State() != model.AttemptTerminated {
		t.Fatalf("5th violation = %+v state = %s", d, next.ctl.State())
	}
}

func TestLockdownActiveWhileSubmissionPending(t *testing.T) {
	quiz := newFakeQuiz(2, 30)
	quiz.quiz.SecuritySettings = &model.SecuritySettings{DisableRightClick: true}
	quiz.submitErrs = []error{errors.New("upstream 503")}
	quiz.submitGate = make(chan struct{})
	h := newHarness(t, quiz, func(o *Options) { o.Lockdown = lockdown.Config{Threshold: 3} })
	h.load(t)
	ctx := context.Background()
	rightClick := lockdown.Event{Kind: lockdown.EventContextMenu}

	_, _ = h.ctl.RequestSubmit()
	done := make(chan error, 1)
	go func() {
		_, err := h.ctl.ConfirmSubmit(ctx)
		done <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for h.ctl.State() != model.AttemptSubmitting {
		if time.Now().After(deadline) {
			t.Fatal("submission never started")
		}
		time.Sleep(time.Millisecond)
	}

	d, err := h.ctl.HandleBrowserEvent(ctx, rightClick)
	if err != nil || !d.Prevent || d.Violation == nil {
		t.Fatalf("event while submitting = %+v %v", d, err)
	}

	close(quiz.submitGate)
	if err := <-done; !IsRetryable(err) {
		t.Fatalf("ConfirmSubmit err = %v", err)
	}
	if h.ctl.State() != model.AttemptError {
		t.Fatalf("state = %s", h.ctl.State())
	}

	d, _ = h.ctl.HandleBrowserEvent(ctx, rightClick)
	if !d.Prevent || d.Violation == nil || d.Violation.Count != 2 {
		t.Fatalf("event after failed submit = %+v", d)
	}
	d, _ = h.ctl.HandleBrowserEvent(ctx, rightClick)
	if !d.Terminated || h.ctl.State() != model.AttemptTerminated {
		t.Fatalf("threshold during retry wait = %+v state = %s", d, h.ctl.State())
	}
	if err := h.ctl.Retry(ctx); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("Retry after termination: %v", err)
	}
}
