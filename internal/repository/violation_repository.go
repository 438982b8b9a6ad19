package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// ViolationRepository persists the lockdown violation audit trail.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

var violationColumns = []string{"quiz_id", "session_id", "participant_id", "kind", "count", "detail", "occurred_at"}

// InsertBatch bulk-loads events with COPY. Either all rows land or none do.
func (r *ViolationRepository) InsertBatch(ctx context.Context, events []model.ViolationEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []interface{}{
			ev.QuizID, ev.SessionID, ev.ParticipantID, string(ev.Kind), ev.Count, ev.Detail, occurredAt(ev),
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_violations"},
		violationColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert writes a single event.
func (r *ViolationRepository) Insert(ctx context.Context, ev model.ViolationEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_violations (quiz_id, session_id, participant_id, kind, count, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.QuizID, ev.SessionID, ev.ParticipantID, string(ev.Kind), ev.Count, ev.Detail, occurredAt(ev),
	)
	return err
}

// SummaryByQuiz returns one row per session that recorded at least one
// violation in the quiz, most violations first.
func (r *ViolationRepository) SummaryByQuiz(ctx context.Context, quizID string) ([]model.ViolationSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id,
		        MAX(participant_id),
		        COUNT(*),
		        (ARRAY_AGG(kind ORDER BY occurred_at DESC))[1],
		        MAX(occurred_at)
		 FROM attempt_violations
		 WHERE quiz_id = $1
		 GROUP BY session_id
		 ORDER BY COUNT(*) DESC, MAX(occurred_at) DESC`,
		quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]model.ViolationSummary, 0)
	for rows.Next() {
		var s model.ViolationSummary
		if err := rows.Scan(&s.SessionID, &s.ParticipantID, &s.Count, &s.LastKind, &s.LastAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ListBySession returns a session's violations in the order they happened.
func (r *ViolationRepository) ListBySession(ctx context.Context, quizID, sessionID string) ([]model.ViolationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT quiz_id, session_id, participant_id, kind, count, detail, occurred_at
		 FROM attempt_violations
		 WHERE quiz_id = $1 AND session_id = $2
		 ORDER BY occurred_at ASC, count ASC`,
		quizID, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.ViolationEvent, 0)
	for rows.Next() {
		var (
			ev   model.ViolationEvent
			kind string
			at   time.Time
		)
		if err := rows.Scan(&ev.QuizID, &ev.SessionID, &ev.ParticipantID, &kind, &ev.Count, &ev.Detail, &at); err != nil {
			return nil, err
		}
		ev.Kind = model.ViolationKind(kind)
		ev.Timestamp = at.UnixMilli()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountByQuiz returns the total number of violations recorded for a quiz.
func (r *ViolationRepository) CountByQuiz(ctx context.Context, quizID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempt_violations WHERE quiz_id = $1`, quizID,
	).Scan(&n)
	return n, err
}

func occurredAt(ev model.ViolationEvent) time.Time {
	if ev.Timestamp == 0 {
		return time.Now()
	}
	return time.UnixMilli(ev.Timestamp)
}
