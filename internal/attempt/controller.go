// Package attempt runs one participant's timed quiz attempt: it loads the
// quiz, tracks answers and the countdown, feeds browser events to the
// lockdown monitor and submits exactly once.
//
// All state lives behind a single mutex. Network calls run outside the lock
// with the attempt marked busy, and notices are delivered after the lock is
// released.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/answers"
	"github.com/stemsi/exstem-attempt/internal/countdown"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// DefaultLivenessInterval is how often the upstream quiz status is polled.
const DefaultLivenessInterval = 30 * time.Second

// Options wires a Controller. Quiz is required; the rest are optional.
type Options struct {
	QuizID        string
	SessionID     string
	ParticipantID string

	Quiz       QuizService
	Overrides  OverrideVerifier
	Store      Store
	Violations ViolationSink

	Lockdown         lockdown.Config
	LivenessInterval time.Duration
	Clock            func() time.Time
	Logger           zerolog.Logger
}

// Controller is the attempt state machine for one (quiz, session) pair.
type Controller struct {
	opts Options
	log  zerolog.Logger
	now  func() time.Time

	mu             sync.Mutex
	state          model.AttemptState
	quiz           *model.Quiz
	attemptID      string
	timer          *countdown.Timer
	tracker        *answers.Tracker
	monitor        *lockdown.Monitor
	current        int
	confirmPending bool
	inFlight       int
	submitIssued   bool
	trigger        model.SubmitTrigger
	timerFired     bool
	failure        *Failure
	result         *model.SubmissionResult
	reason         string
	restored       *model.AttemptOutcome
	nextLiveness   time.Time
	livenessBusy   bool
	closed         bool
	pending        []Notice

	notifyMu sync.Mutex
	notifier Notifier
}

// New creates a controller in the loading state. Call Load to fetch the quiz.
func New(opts Options) *Controller {
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = DefaultLivenessInterval
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Controller{
		opts:  opts,
		now:   now,
		state: model.AttemptLoading,
		log: opts.Logger.With().
			Str("quiz_id", opts.QuizID).
			Str("session_id", opts.SessionID).
			Logger(),
	}
}

// Attach sets the notice receiver, replacing any previous one. A nil
// notifier detaches; the attempt keeps running without a client.
func (c *Controller) Attach(n Notifier) {
	c.notifyMu.Lock()
	c.notifier = n
	c.notifyMu.Unlock()
}

// Load fetches the quiz and questions, starts (or resumes) the attempt and
// moves to in_progress. A session whose attempt already finished is restored
// into its terminal state without contacting the quiz service. On failure the
// attempt enters the error state and Retry runs Load again.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != model.AttemptLoading && !c.failedIn(PhaseLoad) {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("load: %w (state %s)", ErrNotInProgress, st)
	}
	if c.inFlight > 0 {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = model.AttemptLoading
	c.failure = nil
	c.inFlight++
	c.mu.Unlock()

	loaded, err := c.fetch(ctx)

	c.mu.Lock()
	c.inFlight--
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		failure := &Failure{Phase: PhaseLoad, Err: err}
		c.failure = failure
		c.state = model.AttemptError
		c.push(Notice{Type: NoticeLoadFailed, Message: err.Error(), Retryable: true})
		c.unlockAndFlush()
		c.log.Warn().Err(err).Msg("Attempt load failed")
		return failure
	}

	if loaded.outcome != nil {
		c.restore(loaded.outcome)
		c.unlockAndFlush()
		c.log.Info().Str("state", string(loaded.outcome.State)).Msg("Finished attempt restored")
		return nil
	}

	c.apply(loaded)
	c.push(Notice{Type: NoticeLoaded})
	var finished *model.AttemptOutcome
	if c.monitor.State() == lockdown.StateTerminated {
		// The stored violation count already reached the threshold.
		c.terminate(ReasonViolations)
		o := c.outcomeLocked()
		finished = &o
	}
	c.unlockAndFlush()

	if finished != nil {
		c.log.Warn().Int("violations", finished.Violations).Msg("Resumed attempt over violation threshold, terminated")
		c.finish(ctx, *finished)
		return nil
	}

	c.log.Info().
		Str("attempt_id", loaded.start.AttemptID).
		Int("questions", len(loaded.quiz.Questions)).
		Time("started_at", loaded.startedAt).
		Msg("Attempt loaded")
	return nil
}

type loadResult struct {
	outcome    *model.AttemptOutcome
	quiz       *model.Quiz
	start      *model.AttemptStart
	startedAt  time.Time
	saved      map[string]int
	violations int
	combo      *lockdown.Combination
}

// fetch performs every network call of the load phase. It runs unlocked.
func (c *Controller) fetch(ctx context.Context) (*loadResult, error) {
	if c.opts.Store != nil {
		// An unreadable outcome fails the load rather than risk restarting a
		// finished attempt.
		o, err := c.opts.Store.Outcome(ctx, c.opts.QuizID, c.opts.SessionID)
		if err != nil {
			return nil, fmt.Errorf("read outcome: %w", err)
		}
		if o != nil {
			return &loadResult{outcome: o}, nil
		}
	}

	quiz, err := c.opts.Quiz.GetQuiz(ctx, c.opts.QuizID)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if len(quiz.Questions) == 0 {
		questions, err := c.opts.Quiz.GetQuestions(ctx, c.opts.QuizID)
		if err != nil {
			return nil, fmt.Errorf("get questions: %w", err)
		}
		quiz.Questions = questions
	}

	start, err := c.opts.Quiz.StartAttempt(ctx, c.opts.QuizID, c.opts.SessionID)
	if err != nil {
		return nil, fmt.Errorf("start attempt: %w", err)
	}

	res := &loadResult{quiz: quiz, start: start}
	now := c.now()

	// Server-reported remaining time wins, then the server start instant,
	// then the locally stored one.
	switch {
	case start.RemainingSeconds != nil:
		left := time.Duration(*start.RemainingSeconds) * time.Second
		res.startedAt = countdown.FromRemaining(quiz.Duration(), left, now, nil).StartedAt()
	case !start.StartedAt.IsZero():
		res.startedAt = start.StartedAt
	default:
		res.startedAt = now
		if c.opts.Store != nil {
			if t, ok, err := c.opts.Store.StartTime(ctx, c.opts.QuizID, c.opts.SessionID); err != nil {
				c.log.Warn().Err(err).Msg("Stored start time unavailable")
			} else if ok {
				res.startedAt = t
			}
		}
	}

	if c.opts.Store != nil {
		if err := c.opts.Store.SaveStartTime(ctx, c.opts.QuizID, c.opts.SessionID, res.startedAt); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache start time")
		}
		saved, err := c.opts.Store.SavedAnswers(ctx, c.opts.QuizID, c.opts.SessionID)
		if err != nil {
			c.log.Warn().Err(err).Msg("Autosaved answers unavailable")
		}
		res.saved = saved

		n, err := c.opts.Store.ViolationCount(ctx, c.opts.QuizID, c.opts.SessionID)
		if err != nil {
			c.log.Warn().Err(err).Msg("Stored violation count unavailable")
		}
		res.violations = n
	}

	if c.opts.Overrides != nil && lockdown.PolicyFrom(quiz.SecuritySettings).Active() {
		combo, err := c.opts.Overrides.AdminCombination(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("Admin override combination unavailable")
		} else {
			res.combo = &combo
		}
	}
	return res, nil
}

// apply installs a successful load. Caller holds c.mu.
func (c *Controller) apply(r *loadResult) {
	c.quiz = r.quiz
	c.attemptID = r.start.AttemptID

	// onExpire runs inside Tick, under c.mu.
	c.timer = countdown.New(r.quiz.Duration(), r.startedAt, func() { c.timerFired = true })

	c.tracker = answers.NewTracker(r.quiz.QuestionIDs())
	if len(r.saved) > 0 {
		c.tracker.Restore(r.saved)
	}

	cfg := c.opts.Lockdown
	if r.combo != nil {
		cfg.AdminCombo = r.combo
	}
	c.monitor = lockdown.NewMonitor(lockdown.PolicyFrom(r.quiz.SecuritySettings), cfg)
	c.monitor.Start()
	c.monitor.Resume(r.violations)

	c.current = 0
	c.state = model.AttemptInProgress
	c.nextLiveness = c.now().Add(c.opts.LivenessInterval)
}

// restore installs a stored terminal outcome. Caller holds c.mu.
func (c *Controller) restore(o *model.AttemptOutcome) {
	c.restored = o
	c.attemptID = o.AttemptID
	c.submitIssued = true
	if o.State == model.AttemptTerminated {
		c.terminate(o.Reason)
		return
	}
	c.state = model.AttemptSubmitted
	c.result = o.Result
	c.push(Notice{Type: NoticeSubmitted, Result: o.Result})
}

// SetAnswer records option for questionID and autosaves it.
func (c *Controller) SetAnswer(ctx context.Context, questionID string, option int) error {
	c.mu.Lock()
	if err := c.mutableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.tracker.SetAnswer(questionID, option); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.SaveAnswer(ctx, c.opts.QuizID, c.opts.SessionID, questionID, option); err != nil {
			c.log.Warn().Err(err).Str("question_id", questionID).Msg("Autosave failed")
		}
	}
	return nil
}

// ClearAnswer removes the selection for questionID.
func (c *Controller) ClearAnswer(ctx context.Context, questionID string) error {
	c.mu.Lock()
	if err := c.mutableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.tracker.ClearAnswer(questionID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.DeleteAnswer(ctx, c.opts.QuizID, c.opts.SessionID, questionID); err != nil {
			c.log.Warn().Err(err).Str("question_id", questionID).Msg("Autosave delete failed")
		}
	}
	return nil
}

// Next moves to the following question.
func (c *Controller) Next() (int, error) {
	return c.navigate(func(cur, total int) (int, error) {
		if cur+1 >= total {
			return cur, ErrOutOfRange
		}
		return cur + 1, nil
	})
}

// Previous moves to the preceding question.
func (c *Controller) Previous() (int, error) {
	return c.navigate(func(cur, _ int) (int, error) {
		if cur == 0 {
			return cur, ErrOutOfRange
		}
		return cur - 1, nil
	})
}

// Jump moves directly to index. Only available in all-at-once mode.
func (c *Controller) Jump(index int) (int, error) {
	return c.navigate(func(cur, total int) (int, error) {
		if c.quiz.Mode() != model.DisplayAllAtOnce {
			return cur, ErrJumpUnsupported
		}
		if index < 0 || index >= total {
			return cur, ErrOutOfRange
		}
		return index, nil
	})
}

func (c *Controller) navigate(step func(cur, total int) (int, error)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return c.current, err
	}
	next, err := step(c.current, len(c.quiz.Questions))
	if err != nil {
		return c.current, err
	}
	c.current = next
	return next, nil
}

// RequestSubmit opens the manual submission confirmation.
func (c *Controller) RequestSubmit() (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return Confirmation{}, err
	}
	c.confirmPending = true
	answered, total := c.tracker.Answered(), c.tracker.Total()
	return Confirmation{Answered: answered, Total: total, Unanswered: total - answered}, nil
}

// CancelSubmit dismisses the confirmation.
func (c *Controller) CancelSubmit() {
	c.mu.Lock()
	c.confirmPending = false
	c.mu.Unlock()
}

// ConfirmSubmit submits after RequestSubmit. It blocks until the upstream
// call completes and returns the result.
func (c *Controller) ConfirmSubmit(ctx context.Context) (*model.SubmissionResult, error) {
	c.mu.Lock()
	if err := c.mutableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !c.confirmPending {
		c.mu.Unlock()
		return nil, ErrNoConfirmation
	}
	req, ok := c.beginSubmit(model.TriggerManual)
	c.unlockAndFlush()
	if !ok {
		return nil, ErrAlreadySubmit
	}
	return c.submit(ctx, req)
}

// beginSubmit flips the guard and builds the payload. Only the caller that
// wins the guard gets ok=true. Caller holds c.mu.
func (c *Controller) beginSubmit(trigger model.SubmitTrigger) (*model.SubmissionRequest, bool) {
	if c.submitIssued {
		return nil, false
	}
	c.submitIssued = true
	c.trigger = trigger
	c.state = model.AttemptSubmitting
	c.confirmPending = false
	c.failure = nil
	c.inFlight++

	return &model.SubmissionRequest{
		AttemptID: c.attemptID,
		SessionID: c.opts.SessionID,
		Answers:   c.tracker.SubmissionPayload(),
		Trigger:   trigger,
		TimeTaken: int(c.timer.Elapsed(c.now()).Seconds()),
	}, true
}

// submit performs the upstream call for a request obtained from beginSubmit.
func (c *Controller) submit(ctx context.Context, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	res, err := c.opts.Quiz.SubmitAttempt(ctx, c.opts.QuizID, req)

	c.mu.Lock()
	c.inFlight--
	if c.state != model.AttemptSubmitting {
		// Terminated or closed while the request was in flight.
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	if err != nil {
		failure := &Failure{Phase: PhaseSubmit, Err: err}
		c.failure = failure
		c.state = model.AttemptError
		c.submitIssued = false
		c.push(Notice{Type: NoticeSubmitFailed, Message: err.Error(), Retryable: true})
		c.unlockAndFlush()
		c.log.Error().Err(err).Str("trigger", string(req.Trigger)).Msg("Submission failed")
		return nil, failure
	}

	if res == nil {
		res = &model.SubmissionResult{}
	}
	c.result = res
	c.state = model.AttemptSubmitted
	c.timer.Stop()
	c.push(Notice{Type: NoticeSubmitted, Result: res})
	outcome := c.outcomeLocked()
	c.unlockAndFlush()

	c.log.Info().
		Str("trigger", string(req.Trigger)).
		Int("answered", len(req.Answers)).
		Int("time_taken", req.TimeTaken).
		Msg("Attempt submitted")

	c.finish(ctx, outcome)
	return res, nil
}

// Retry re-runs the phase that failed.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != model.AttemptError || c.failure == nil {
		c.mu.Unlock()
		return ErrNothingToRetry
	}
	if c.failure.Phase == PhaseLoad {
		c.mu.Unlock()
		return c.Load(ctx)
	}
	req, ok := c.beginSubmit(c.trigger)
	c.unlockAndFlush()
	if !ok {
		return ErrAlreadySubmit
	}
	_, err := c.submit(ctx, req)
	return err
}

// Tick advances every time-driven concern in a fixed order: countdown,
// liveness poll, then lockdown override expiry and fullscreen retries.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	c.mu.Lock()
	if c.closed || c.state != model.AttemptInProgress {
		c.mu.Unlock()
		return
	}

	var (
		req      *model.SubmissionRequest
		liveness bool
	)

	left, _ := c.timer.Tick(now)
	if c.timerFired {
		c.timerFired = false
		if r, ok := c.beginSubmit(model.TriggerTimer); ok {
			req = r
			c.push(Notice{Type: NoticeTimeExpired, Message: "time is up, submitting your answers"})
		}
	} else {
		secs := int(left / time.Second)
		c.push(Notice{Type: NoticeCountdown, Remaining: &secs})

		if !c.livenessBusy && !now.Before(c.nextLiveness) {
			c.livenessBusy = true
			c.nextLiveness = now.Add(c.opts.LivenessInterval)
			liveness = true
		}
	}

	if cmds := c.monitor.Tick(now); len(cmds) > 0 {
		c.push(Notice{Type: NoticeCommands, Commands: cmds})
	}
	c.unlockAndFlush()

	if req != nil {
		c.log.Info().Msg("Time expired, auto-submitting")
		_, _ = c.submit(ctx, req)
	}
	if liveness {
		c.checkLiveness(ctx)
	}
}

// checkLiveness polls the quiz status and terminates when the quiz is gone.
// Transport errors are ignored until the next poll.
func (c *Controller) checkLiveness(ctx context.Context) {
	exists, err := c.opts.Quiz.QuizExists(ctx, c.opts.QuizID)

	c.mu.Lock()
	c.livenessBusy = false
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("Quiz status check failed")
		return
	}
	if exists || c.state != model.AttemptInProgress {
		c.mu.Unlock()
		return
	}
	c.terminate(ReasonQuizDeleted)
	outcome := c.outcomeLocked()
	c.unlockAndFlush()
	c.log.Warn().Msg("Quiz deleted upstream, attempt terminated")
	c.finish(ctx, outcome)
}

// HandleBrowserEvent runs one reported DOM event through the lockdown monitor.
// Lockdown stays in force while a submission is in flight or waiting for a
// retry.
func (c *Controller) HandleBrowserEvent(ctx context.Context, ev lockdown.Event) (lockdown.Decision, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return lockdown.Decision{}, ErrClosed
	case c.state == model.AttemptTerminated:
		c.mu.Unlock()
		return lockdown.Decision{Prevent: true, Terminated: true}, nil
	case !c.monitoredLocked():
		c.mu.Unlock()
		return lockdown.Decision{}, nil
	}

	d := c.monitor.Handle(ev, c.now())
	var violation *model.ViolationEvent
	if d.Violation != nil {
		violation = &model.ViolationEvent{
			QuizID:        c.opts.QuizID,
			SessionID:     c.opts.SessionID,
			ParticipantID: c.opts.ParticipantID,
			Kind:          d.Violation.Kind,
			Count:         d.Violation.Count,
			Detail:        d.Violation.Detail,
			Timestamp:     d.Violation.At.Unix(),
		}
		c.push(Notice{Type: NoticeViolation, Violation: d.Violation})
	}
	var outcome model.AttemptOutcome
	if d.Terminated {
		c.terminate(ReasonViolations)
		outcome = c.outcomeLocked()
	}
	c.unlockAndFlush()

	if violation != nil {
		c.log.Warn().
			Str("kind", string(violation.Kind)).
			Int("count", violation.Count).
			Msg("Lockdown violation")
		if c.opts.Store != nil && !d.Terminated {
			if err := c.opts.Store.SaveViolationCount(ctx, c.opts.QuizID, c.opts.SessionID, violation.Count); err != nil {
				c.log.Warn().Err(err).Msg("Failed to save violation count")
			}
		}
		if c.opts.Violations != nil {
			if err := c.opts.Violations.Record(ctx, *violation); err != nil {
				c.log.Error().Err(err).Msg("Failed to record violation")
			}
		}
	}
	if d.Terminated {
		c.finish(ctx, outcome)
	}
	return d, nil
}

// ConsentFullscreen handles the taker's explicit fullscreen consent.
func (c *Controller) ConsentFullscreen() ([]lockdown.Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return nil, err
	}
	return c.monitor.Consent()
}

// SubmitPersonalPassword checks the personal override password.
func (c *Controller) SubmitPersonalPassword(password string) (lockdown.Grant, []lockdown.Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return lockdown.Grant{}, nil, err
	}
	return c.monitor.SubmitPersonalPassword(password, c.now())
}

// SubmitAdminPassword verifies the admin password upstream and grants an
// override of the length the verifier reports.
func (c *Controller) SubmitAdminPassword(ctx context.Context, password string) (lockdown.Grant, []lockdown.Command, error) {
	if c.opts.Overrides == nil {
		return lockdown.Grant{}, nil, ErrNoVerifier
	}

	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return lockdown.Grant{}, nil, err
	}
	if c.monitor.PromptPending() != lockdown.OverrideAdmin {
		c.mu.Unlock()
		return lockdown.Grant{}, nil, lockdown.ErrNoPromptPending
	}
	c.inFlight++
	c.mu.Unlock()

	length, err := c.opts.Overrides.VerifyAdmin(ctx, c.opts.QuizID, password)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	if err != nil {
		cmds := c.monitor.DismissPrompt()
		c.log.Warn().Err(err).Msg("Admin override rejected")
		return lockdown.Grant{}, cmds, err
	}
	if err := c.activeLocked(); err != nil {
		return lockdown.Grant{}, nil, err
	}
	g, cmds, err := c.monitor.GrantOverride(lockdown.OverrideAdmin, length, c.now())
	if err == nil {
		c.log.Info().Dur("length", length).Msg("Admin override granted")
	}
	return g, cmds, err
}

// DismissPrompt closes an open override prompt.
func (c *Controller) DismissPrompt() []lockdown.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.monitor == nil {
		return nil
	}
	return c.monitor.DismissPrompt()
}

// ReEnableSecurity ends an active override early.
func (c *Controller) ReEnableSecurity() ([]lockdown.Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return nil, err
	}
	return c.monitor.ReEnable(), nil
}

// State returns the lifecycle state.
func (c *Controller) State() model.AttemptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Finished reports whether there is nothing left to drive: the attempt is
// terminal or the controller was closed.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsTerminal() || c.closed
}

// Restored reports whether Load found the attempt already finished.
func (c *Controller) Restored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored != nil
}

// Snapshot returns the externally visible state.
func (c *Controller) Snapshot() model.AttemptSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := model.AttemptSnapshot{
		QuizID:           c.opts.QuizID,
		AttemptID:        c.attemptID,
		State:            c.state,
		CurrentQuestion:  c.current,
		Busy:             c.inFlight > 0,
		ConfirmPending:   c.confirmPending,
		Result:           c.result,
		TerminatedReason: c.reason,
		DisplayMode:      model.DisplayOneAtATime,
	}
	if c.failure != nil {
		s.Error = c.failure.Error()
	}
	if c.quiz != nil {
		s.DisplayMode = c.quiz.Mode()
	}
	if c.timer != nil {
		s.StartedAt = c.timer.StartedAt()
		s.RemainingSeconds = int(c.timer.Remaining(c.now()) / time.Second)
	}
	if c.tracker != nil {
		s.Answers = c.tracker.Snapshot()
		s.Answered = c.tracker.Answered()
		s.Total = c.tracker.Total()
		s.Progress = c.tracker.Progress()
	}
	if c.monitor != nil {
		s.Lockdown = c.monitor.Snapshot()
	}
	if o := c.restored; o != nil {
		s.Answered, s.Total = o.Answered, o.Total
		if o.Total > 0 {
			s.Progress = float64(o.Answered) / float64(o.Total)
		}
		ls := lockdown.StateInactive
		if o.State == model.AttemptTerminated {
			ls = lockdown.StateTerminated
		}
		s.Lockdown = &model.LockdownSnapshot{State: string(ls), Violations: o.Violations}
	}
	return s
}

// Close stops the timer and rejects further operations. An in-flight
// submission is allowed to complete on its own.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil && c.state != model.AttemptSubmitting {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.Attach(nil)
}

// terminate moves to the terminal terminated state. Caller holds c.mu.
func (c *Controller) terminate(reason string) {
	c.state = model.AttemptTerminated
	c.reason = reason
	c.failure = nil
	c.confirmPending = false
	if c.timer != nil {
		c.timer.Stop()
	}
	c.push(Notice{
		Type:     NoticeTerminated,
		Reason:   reason,
		Commands: []lockdown.Command{{Type: lockdown.CmdRedirect, Reason: reason}},
	})
}

// outcomeLocked captures the terminal state for persistence. Caller holds c.mu.
func (c *Controller) outcomeLocked() model.AttemptOutcome {
	o := model.AttemptOutcome{
		AttemptID:  c.attemptID,
		State:      c.state,
		Reason:     c.reason,
		Result:     c.result,
		FinishedAt: c.now(),
	}
	if c.tracker != nil {
		o.Answered, o.Total = c.tracker.Answered(), c.tracker.Total()
	}
	if c.monitor != nil {
		o.Violations = c.monitor.Count()
	}
	return o
}

// finish records the outcome and drops the autosave after a terminal
// transition. It outlives the caller's context.
func (c *Controller) finish(ctx context.Context, o model.AttemptOutcome) {
	if c.opts.Store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := c.opts.Store.SaveOutcome(ctx, c.opts.QuizID, c.opts.SessionID, o); err != nil {
		c.log.Error().Err(err).Str("state", string(o.State)).Msg("Failed to persist attempt outcome")
	}
	if err := c.opts.Store.Clear(ctx, c.opts.QuizID, c.opts.SessionID); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear autosave")
	}
}

func (c *Controller) failedIn(p Phase) bool {
	return c.state == model.AttemptError && c.failure != nil && c.failure.Phase == p
}

// monitoredLocked reports whether browser events still reach the lockdown
// monitor.
func (c *Controller) monitoredLocked() bool {
	if c.monitor == nil {
		return false
	}
	return c.state == model.AttemptInProgress ||
		c.state == model.AttemptSubmitting ||
		c.failedIn(PhaseSubmit)
}

// activeLocked guards lockdown operations.
func (c *Controller) activeLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state.IsTerminal():
		return ErrFinished
	case c.state != model.AttemptInProgress:
		return ErrNotInProgress
	}
	return nil
}

// mutableLocked guards answer, navigation and submission operations.
func (c *Controller) mutableLocked() error {
	if err := c.activeLocked(); err != nil {
		return err
	}
	if c.inFlight > 0 {
		return ErrBusy
	}
	return nil
}

func (c *Controller) push(n Notice) {
	c.pending = append(c.pending, n)
}

// unlockAndFlush releases c.mu and delivers queued notices in order.
func (c *Controller) unlockAndFlush() {
	pending := c.pending
	c.pending = nil
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	if c.notifier == nil {
		return
	}
	for _, n := range pending {
		c.notifier.Notify(n)
	}
}

// IsRetryable reports whether err leaves the attempt recoverable.
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
