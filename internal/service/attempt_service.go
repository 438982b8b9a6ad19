package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/attempt"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/quizapi"
	"github.com/stemsi/exstem-attempt/internal/session"
)

// Attempt service errors.
var (
	ErrQuizUnavailable      = errors.New("quiz is not available")
	ErrRegistrationRejected = errors.New("registration rejected")
	ErrShuttingDown         = errors.New("attempt service is shutting down")
)

// FinishedRetention is how long a finished attempt stays in memory. After
// release the session reloads the stored outcome instead of restarting.
const FinishedRetention = 2 * time.Minute

// EnterResult is returned to a participant entering a quiz.
type EnterResult struct {
	Token   string             `json:"token"`
	Session *model.QuizSession `json:"session"`
	Quiz    model.QuizSummary  `json:"quiz"`
}

// AttemptService hosts one attempt controller per quiz session and drives
// each with its own tick loop.
type AttemptService struct {
	cfg       *config.Config
	quizzes   *QuizSource
	sessions  *session.Store
	auth      *AuthService
	store     attempt.Store
	events    *EventPublisher
	overrides attempt.OverrideVerifier
	log       zerolog.Logger
	clock     func() time.Time
	tick      time.Duration

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	attempts map[string]*hosted
	closed   bool
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	cfg *config.Config,
	quizzes *QuizSource,
	sessions *session.Store,
	auth *AuthService,
	store attempt.Store,
	events *EventPublisher,
	overrides attempt.OverrideVerifier,
	log zerolog.Logger,
) *AttemptService {
	ctx, stop := context.WithCancel(context.Background())
	return &AttemptService{
		cfg:       cfg,
		quizzes:   quizzes,
		sessions:  sessions,
		auth:      auth,
		store:     store,
		events:    events,
		overrides: overrides,
		log:       log.With().Str("component", "attempt_service").Logger(),
		clock:     time.Now,
		tick:      attempt.TickInterval,
		baseCtx:   ctx,
		stop:      stop,
		attempts:  make(map[string]*hosted),
	}
}

// Enter validates the quiz, registers the participant for event quizzes,
// creates the quiz session and issues its token.
func (s *AttemptService) Enter(ctx context.Context, quizID string, req *model.EnterQuizRequest) (*EnterResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, quizapi.ErrNotFound) {
			return nil, ErrQuizUnavailable
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	participant := model.Participant{
		Name:        req.Name,
		Email:       req.Email,
		Identifier:  req.Identifier,
		Institution: req.Institution,
	}

	if quiz.Kind == model.QuizKindEvent {
		reg := &model.Registration{Participant: participant, AccessCode: req.AccessCode}
		if err := s.quizzes.Register(ctx, quizID, reg); err != nil {
			var se *quizapi.StatusError
			if errors.As(err, &se) && se.Code < 500 {
				return nil, fmt.Errorf("%w: %s", ErrRegistrationRejected, se.Message)
			}
			return nil, fmt.Errorf("register: %w", err)
		}
	}

	sess, err := s.sessions.Create(ctx, quizID, participant)
	if err != nil {
		return nil, err
	}
	token, err := s.auth.GenerateParticipantToken(sess)
	if err != nil {
		_ = s.sessions.Destroy(ctx, sess.SessionID)
		return nil, err
	}

	s.log.Info().
		Str("quiz_id", quizID).
		Str("session_id", sess.SessionID).
		Str("participant_id", sess.Participant.ID).
		Msg("Participant entered quiz")

	return &EnterResult{
		Token:   token,
		Session: sess,
		Quiz: model.QuizSummary{
			ID:              quiz.ID,
			Title:           quiz.Title,
			Kind:            quiz.Kind,
			DurationMinutes: quiz.DurationMinutes,
			QuestionCount:   len(quiz.Questions),
		},
	}, nil
}

// Connect returns the session's controller, starting it if needed, and
// routes its notices to n until release is called. A later Connect for the
// same session displaces this one and calls displaced.
func (s *AttemptService) Connect(sess *model.QuizSession, n attempt.Notifier, displaced func()) (*attempt.Controller, func(), error) {
	var gen uint64
	h, err := s.open(sess, func(h *hosted) { gen = h.attach(n, displaced) })
	if err != nil {
		return nil, nil, err
	}
	return h.ctrl, func() { h.detach(gen) }, nil
}

// Controller returns the hosted controller for a session, starting it if
// the process has not seen the session yet.
func (s *AttemptService) Controller(sess *model.QuizSession) (*attempt.Controller, error) {
	h, err := s.open(sess, nil)
	if err != nil {
		return nil, err
	}
	return h.ctrl, nil
}

// Logout closes the attempt and destroys the session record.
func (s *AttemptService) Logout(ctx context.Context, sess *model.QuizSession) error {
	s.mu.Lock()
	h := s.attempts[sess.SessionID]
	delete(s.attempts, sess.SessionID)
	s.mu.Unlock()

	if h != nil {
		h.cancel()
		h.ctrl.Close()
		h.kick()
		if snap := h.ctrl.Snapshot(); !snap.State.IsTerminal() {
			s.events.Publish(ctx, s.monitorEvent(model.MonitorLeft, h, snap))
		}
	}
	if err := s.store.Clear(ctx, sess.QuizID, sess.SessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Failed to clear autosave on logout")
	}
	if err := s.sessions.Destroy(ctx, sess.SessionID); err != nil {
		return err
	}
	s.log.Info().Str("session_id", sess.SessionID).Msg("Participant logged out")
	return nil
}

// HostedCount returns the number of attempts hosted by this process.
func (s *AttemptService) HostedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

// LiveAttempts lists the attempts of a quiz hosted by this process.
func (s *AttemptService) LiveAttempts(quizID string) []model.LiveAttempt {
	s.mu.Lock()
	hosts := make([]*hosted, 0, len(s.attempts))
	for _, h := range s.attempts {
		if h.session.QuizID == quizID {
			hosts = append(hosts, h)
		}
	}
	s.mu.Unlock()

	out := make([]model.LiveAttempt, 0, len(hosts))
	for _, h := range hosts {
		snap := h.ctrl.Snapshot()
		live := model.LiveAttempt{
			SessionID:     h.session.SessionID,
			ParticipantID: h.session.Participant.ID,
			Name:          h.session.Participant.Name,
			State:         snap.State,
			Answered:      snap.Answered,
			Total:         snap.Total,
			Remaining:     snap.RemainingSeconds,
			Connected:     h.connected(),
		}
		if snap.Lockdown != nil {
			live.Violations = snap.Lockdown.Violations
		}
		out = append(out, live)
	}
	return out
}

// Shutdown stops every tick loop and waits for them, bounded by ctx.
// In-flight submissions are allowed to complete.
func (s *AttemptService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	hosts := make([]*hosted, 0, len(s.attempts))
	for _, h := range s.attempts {
		hosts = append(hosts, h)
	}
	s.mu.Unlock()

	s.stop()
	for _, h := range hosts {
		h.ctrl.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Int("attempts", len(hosts)).Msg("Attempt loops stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// open returns the hosted attempt for sess, creating and starting it when
// missing. prepare runs before a new attempt starts loading.
func (s *AttemptService) open(sess *model.QuizSession, prepare func(*hosted)) (*hosted, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if h, ok := s.attempts[sess.SessionID]; ok {
		s.mu.Unlock()
		if prepare != nil {
			prepare(h)
		}
		return h, nil
	}

	h := &hosted{session: sess}
	h.ctrl = attempt.New(attempt.Options{
		QuizID:        sess.QuizID,
		SessionID:     sess.SessionID,
		ParticipantID: sess.Participant.ID,
		Quiz:          s.quizzes,
		Overrides:     s.overrides,
		Store:         s.store,
		Violations:    s.events,
		Lockdown: lockdown.Config{
			Threshold:            s.cfg.ViolationThreshold,
			FullscreenRetryLimit: s.cfg.FullscreenRetryLimit,
			PersonalEnabled:      s.cfg.PersonalOverrideEnabled,
			PersonalLength:       s.cfg.PersonalOverrideLength,
		},
		LivenessInterval: s.cfg.LivenessInterval,
		Clock:            s.clock,
		Logger:           s.log,
	})
	h.ctrl.Attach(h)

	ctx, cancel := context.WithCancel(s.baseCtx)
	h.cancel = cancel
	s.attempts[sess.SessionID] = h
	s.wg.Add(1)
	s.mu.Unlock()

	if prepare != nil {
		prepare(h)
	}
	go s.drive(ctx, h)
	return h, nil
}

// drive loads the attempt, runs its tick loop and announces the outcome.
// Only a real terminal transition is announced; closing the controller on
// logout or shutdown is not.
func (s *AttemptService) drive(ctx context.Context, h *hosted) {
	defer s.wg.Done()
	defer h.cancel()

	sess := h.session
	if err := h.ctrl.Load(ctx); err == nil {
		if h.ctrl.Restored() {
			// Announced when it happened.
			time.AfterFunc(FinishedRetention, func() { s.release(sess.SessionID, h) })
			return
		}
		snap := h.ctrl.Snapshot()
		if snap.AttemptID != "" && snap.AttemptID != sess.AttemptID {
			updated := *sess
			updated.AttemptID = snap.AttemptID
			if err := s.sessions.Save(ctx, &updated); err != nil {
				s.log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Failed to record attempt id")
			}
		}
		s.events.Publish(ctx, s.monitorEvent(model.MonitorJoined, h, snap))
	}

	h.ctrl.Run(ctx, s.tick)
	snap := h.ctrl.Snapshot()
	if !snap.State.IsTerminal() {
		return
	}

	kind := model.MonitorSubmitted
	if snap.State == model.AttemptTerminated {
		kind = model.MonitorTerminated
	}
	s.events.Publish(context.WithoutCancel(ctx), s.monitorEvent(kind, h, snap))

	time.AfterFunc(FinishedRetention, func() { s.release(sess.SessionID, h) })
}

func (s *AttemptService) release(sessionID string, h *hosted) {
	s.mu.Lock()
	if s.attempts[sessionID] == h {
		delete(s.attempts, sessionID)
	}
	s.mu.Unlock()
	h.ctrl.Close()
}

func (s *AttemptService) monitorEvent(kind model.MonitorEventType, h *hosted, snap model.AttemptSnapshot) model.MonitorEvent {
	ev := model.MonitorEvent{
		Type:          kind,
		QuizID:        h.session.QuizID,
		SessionID:     h.session.SessionID,
		ParticipantID: h.session.Participant.ID,
		Name:          h.session.Participant.Name,
		State:         snap.State,
		Answered:      snap.Answered,
		Total:         snap.Total,
		Reason:        snap.TerminatedReason,
		Timestamp:     s.clock().UnixMilli(),
	}
	if snap.Lockdown != nil {
		ev.Violations = snap.Lockdown.Violations
	}
	return ev
}

// hosted is a running controller plus the client currently receiving its
// notices. It is attached to the controller as its only notifier.
type hosted struct {
	ctrl    *attempt.Controller
	session *model.QuizSession
	cancel  context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	client  attempt.Notifier
	onEvict func()
}

// Notify forwards to the current client. It must not call into ctrl.
func (h *hosted) Notify(n attempt.Notice) {
	h.mu.Lock()
	client := h.client
	h.mu.Unlock()
	if client != nil {
		client.Notify(n)
	}
}

func (h *hosted) attach(n attempt.Notifier, displaced func()) uint64 {
	h.mu.Lock()
	prev := h.onEvict
	h.gen++
	h.client = n
	h.onEvict = displaced
	gen := h.gen
	h.mu.Unlock()
	if prev != nil {
		prev()
	}
	return gen
}

func (h *hosted) detach(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen != gen {
		return
	}
	h.client = nil
	h.onEvict = nil
}

// kick disconnects the current client.
func (h *hosted) kick() {
	h.mu.Lock()
	evict := h.onEvict
	h.client = nil
	h.onEvict = nil
	h.gen++
	h.mu.Unlock()
	if evict != nil {
		evict()
	}
}

func (h *hosted) connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client != nil
}
