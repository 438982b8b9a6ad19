package service

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/repository"
)

// ViolationReader is the audit query surface used for staff review.
type ViolationReader interface {
	SummaryByQuiz(ctx context.Context, quizID string) ([]model.ViolationSummary, error)
	ListBySession(ctx context.Context, quizID, sessionID string) ([]model.ViolationEvent, error)
	CountByQuiz(ctx context.Context, quizID string) (int64, error)
}

var _ ViolationReader = (*repository.ViolationRepository)(nil)

// LiveSource lists attempts hosted by this process.
type LiveSource interface {
	LiveAttempts(quizID string) []model.LiveAttempt
}

// MonitorService orchestrates staff review of running quizzes.
type MonitorService struct {
	violations ViolationReader
	live       LiveSource
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(violations ViolationReader, live LiveSource) *MonitorService {
	return &MonitorService{violations: violations, live: live}
}

// GetQuizOverview returns per-session violation summaries alongside the
// live attempts. The two audit queries run in parallel.
func (s *MonitorService) GetQuizOverview(ctx context.Context, quizID string) (*model.QuizMonitorOverview, error) {
	overview := &model.QuizMonitorOverview{
		QuizID:    quizID,
		Summaries: []model.ViolationSummary{},
	}

	var (
		summaries  []model.ViolationSummary
		total      int64
		summaryErr error
		totalErr   error
		wg         sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		summaries, summaryErr = s.violations.SummaryByQuiz(ctx, quizID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		total, totalErr = s.violations.CountByQuiz(ctx, quizID)
	}()

	overview.Live = s.live.LiveAttempts(quizID)

	wg.Wait()

	// Summaries are critical; the total is best-effort
	if summaryErr != nil {
		return nil, summaryErr
	}
	if summaries != nil {
		overview.Summaries = summaries
	}

	if totalErr == nil {
		overview.TotalViolations = total
	} else {
		for _, sm := range overview.Summaries {
			overview.TotalViolations += sm.Count
		}
	}

	return overview, nil
}

// GetSessionViolations returns one session's audit trail.
func (s *MonitorService) GetSessionViolations(ctx context.Context, quizID, sessionID string) ([]model.ViolationEvent, error) {
	return s.violations.ListBySession(ctx, quizID, sessionID)
}
