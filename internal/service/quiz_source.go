package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/cache"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/quizapi"
	"golang.org/x/sync/singleflight"
)

// QuizSource fronts the Quiz Service client for attempts. Concurrent loads
// of the same quiz share one upstream request; landing content and security
// settings go through the tiered cache. Attempt calls (start, submit,
// status) are never cached.
type QuizSource struct {
	api   *quizapi.Client
	cache *cache.Cache
	sf    singleflight.Group
	log   zerolog.Logger
}

// NewQuizSource creates a new QuizSource.
func NewQuizSource(api *quizapi.Client, c *cache.Cache, log zerolog.Logger) *QuizSource {
	return &QuizSource{
		api:   api,
		cache: c,
		log:   log.With().Str("component", "quiz_source").Logger(),
	}
}

// GetQuiz returns a private copy of the quiz; callers may modify it.
func (s *QuizSource) GetQuiz(ctx context.Context, quizID string) (*model.Quiz, error) {
	// Waiters share the first caller's request, so its cancellation must
	// not fail them. The client timeout still bounds the call.
	v, err, shared := s.sf.Do("quiz:"+quizID, func() (interface{}, error) {
		return s.api.GetQuiz(context.WithoutCancel(ctx), quizID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Str("quiz_id", quizID).Msg("Quiz fetch shared")
	}
	q := *v.(*model.Quiz)
	q.Questions = append([]model.Question(nil), q.Questions...)
	if q.SecuritySettings != nil {
		settings := *q.SecuritySettings
		q.SecuritySettings = &settings
	}
	return &q, nil
}

func (s *QuizSource) GetQuestions(ctx context.Context, quizID string) ([]model.Question, error) {
	v, err, _ := s.sf.Do("questions:"+quizID, func() (interface{}, error) {
		return s.api.GetQuestions(context.WithoutCancel(ctx), quizID)
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Question(nil), v.([]model.Question)...), nil
}

func (s *QuizSource) StartAttempt(ctx context.Context, quizID, sessionID string) (*model.AttemptStart, error) {
	return s.api.StartAttempt(ctx, quizID, sessionID)
}

func (s *QuizSource) SubmitAttempt(ctx context.Context, quizID string, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	return s.api.SubmitAttempt(ctx, quizID, req)
}

func (s *QuizSource) QuizExists(ctx context.Context, quizID string) (bool, error) {
	return s.api.QuizExists(ctx, quizID)
}

// Register enrolls a participant in an event quiz.
func (s *QuizSource) Register(ctx context.Context, quizID string, reg *model.Registration) error {
	return s.api.Register(ctx, quizID, reg)
}

// PublicQuizzes returns landing content from the medium cache tier.
func (s *QuizSource) PublicQuizzes(ctx context.Context) ([]model.QuizSummary, error) {
	return cache.GetOrLoad(ctx, s.cache, config.CacheKey.PublicQuizzesKey(), cache.TierMedium,
		func(ctx context.Context) ([]model.QuizSummary, error) {
			return s.api.PublicQuizzes(ctx)
		})
}

// SecuritySettings returns the global security configuration from the long
// cache tier.
func (s *QuizSource) SecuritySettings(ctx context.Context) (*model.SecurityConfig, error) {
	return cache.GetOrLoad(ctx, s.cache, config.CacheKey.SecuritySettingsKey(), cache.TierLong,
		func(ctx context.Context) (*model.SecurityConfig, error) {
			return s.api.SecuritySettings(ctx)
		})
}

// ValidateAdminOverride is uncached; every attempt is checked upstream.
func (s *QuizSource) ValidateAdminOverride(ctx context.Context, quizID, password string) (*quizapi.OverrideValidation, error) {
	return s.api.ValidateAdminOverride(ctx, quizID, password)
}

// InvalidateSecuritySettings drops the cached security configuration.
func (s *QuizSource) InvalidateSecuritySettings(ctx context.Context) error {
	return s.cache.Delete(ctx, config.CacheKey.SecuritySettingsKey())
}
