package attempt

import (
	"context"
	"time"

	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// QuizService is the upstream quiz API as seen by one attempt.
type QuizService interface {
	GetQuiz(ctx context.Context, quizID string) (*model.Quiz, error)
	GetQuestions(ctx context.Context, quizID string) ([]model.Question, error)
	StartAttempt(ctx context.Context, quizID, sessionID string) (*model.AttemptStart, error)
	SubmitAttempt(ctx context.Context, quizID string, req *model.SubmissionRequest) (*model.SubmissionResult, error)
	// QuizExists reports false (with a nil error) once the quiz was deleted.
	QuizExists(ctx context.Context, quizID string) (bool, error)
}

// OverrideVerifier backs the admin override.
type OverrideVerifier interface {
	AdminCombination(ctx context.Context) (lockdown.Combination, error)
	// VerifyAdmin returns the override length on success and
	// lockdown.ErrOverrideRejected for a wrong password.
	VerifyAdmin(ctx context.Context, quizID, password string) (time.Duration, error)
}

// Store persists what must survive a process restart: the start instant,
// autosaved answers, the running violation count and, once finished, the
// outcome.
type Store interface {
	StartTime(ctx context.Context, quizID, sessionID string) (time.Time, bool, error)
	SaveStartTime(ctx context.Context, quizID, sessionID string, startedAt time.Time) error
	SavedAnswers(ctx context.Context, quizID, sessionID string) (map[string]int, error)
	SaveAnswer(ctx context.Context, quizID, sessionID, questionID string, option int) error
	DeleteAnswer(ctx context.Context, quizID, sessionID, questionID string) error
	ViolationCount(ctx context.Context, quizID, sessionID string) (int, error)
	SaveViolationCount(ctx context.Context, quizID, sessionID string, count int) error
	// Outcome returns nil with a nil error while the attempt is unfinished.
	Outcome(ctx context.Context, quizID, sessionID string) (*model.AttemptOutcome, error)
	SaveOutcome(ctx context.Context, quizID, sessionID string, o model.AttemptOutcome) error
	// Clear drops the autosave. The outcome is kept.
	Clear(ctx context.Context, quizID, sessionID string) error
}

// ViolationSink receives every recorded violation.
type ViolationSink interface {
	Record(ctx context.Context, ev model.ViolationEvent) error
}
