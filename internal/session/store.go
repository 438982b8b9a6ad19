// Package session keeps the participant's quiz-session record in Redis.
// The record is created when a participant enters a quiz, read when the
// attempt resumes and destroyed on logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// ErrNotFound is returned when the session record is missing or expired.
var ErrNotFound = errors.New("quiz session not found")

// Store persists quiz sessions as JSON strings with a TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a store. ttl bounds how long an abandoned session lives.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

// Create writes a new session record for the participant.
func (s *Store) Create(ctx context.Context, quizID string, p model.Participant) (*model.QuizSession, error) {
	sess := &model.QuizSession{
		SessionID:   uuid.NewString(),
		QuizID:      quizID,
		Participant: p,
		LoginTime:   s.now().UTC(),
	}
	if sess.Participant.ID == "" {
		sess.Participant.ID = uuid.NewString()
	}
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save overwrites the record, refreshing its TTL.
func (s *Store) Save(ctx context.Context, sess *model.QuizSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.QuizSessionKey(sess.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get reads a session record.
func (s *Store) Get(ctx context.Context, sessionID string) (*model.QuizSession, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.QuizSessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess model.QuizSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Destroy removes the record. Destroying a missing session is not an error.
func (s *Store) Destroy(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, config.CacheKey.QuizSessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
