package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// AttemptStore keeps the attempt start instant, autosaved answers, the
// violation count and the final outcome in Redis so an attempt survives a
// process restart and cannot be restarted once finished.
type AttemptStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAttemptStore creates an AttemptStore. Keys expire after ttl.
func NewAttemptStore(rdb *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{rdb: rdb, ttl: ttl}
}

func (s *AttemptStore) StartTime(ctx context.Context, quizID, sessionID string) (time.Time, bool, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptStartKey(quizID, sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get start time: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse start time %q: %w", raw, err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *AttemptStore) SaveStartTime(ctx context.Context, quizID, sessionID string, startedAt time.Time) error {
	key := config.CacheKey.AttemptStartKey(quizID, sessionID)
	if err := s.rdb.Set(ctx, key, startedAt.UnixMilli(), s.ttl).Err(); err != nil {
		return fmt.Errorf("save start time: %w", err)
	}
	return nil
}

// SavedAnswers returns autosaved answers. Malformed fields are skipped.
func (s *AttemptStore) SavedAnswers(ctx context.Context, quizID, sessionID string) (map[string]int, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(quizID, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	out := make(map[string]int, len(raw))
	for qid, v := range raw {
		opt, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[qid] = opt
	}
	return out, nil
}

func (s *AttemptStore) SaveAnswer(ctx context.Context, quizID, sessionID, questionID string, option int) error {
	key := config.CacheKey.AttemptAnswersKey(quizID, sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, questionID, option)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *AttemptStore) DeleteAnswer(ctx context.Context, quizID, sessionID, questionID string) error {
	if err := s.rdb.HDel(ctx, config.CacheKey.AttemptAnswersKey(quizID, sessionID), questionID).Err(); err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return nil
}

func (s *AttemptStore) ViolationCount(ctx context.Context, quizID, sessionID string) (int, error) {
	n, err := s.rdb.Get(ctx, config.CacheKey.AttemptViolationsKey(quizID, sessionID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get violation count: %w", err)
	}
	return n, nil
}

func (s *AttemptStore) SaveViolationCount(ctx context.Context, quizID, sessionID string, count int) error {
	key := config.CacheKey.AttemptViolationsKey(quizID, sessionID)
	if err := s.rdb.Set(ctx, key, count, s.ttl).Err(); err != nil {
		return fmt.Errorf("save violation count: %w", err)
	}
	return nil
}

func (s *AttemptStore) Outcome(ctx context.Context, quizID, sessionID string) (*model.AttemptOutcome, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptOutcomeKey(quizID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	var o model.AttemptOutcome
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	return &o, nil
}

func (s *AttemptStore) SaveOutcome(ctx context.Context, quizID, sessionID string, o model.AttemptOutcome) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.AttemptOutcomeKey(quizID, sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

// Clear drops the autosaved attempt state. A stored outcome is kept until it
// expires.
func (s *AttemptStore) Clear(ctx context.Context, quizID, sessionID string) error {
	err := s.rdb.Del(ctx,
		config.CacheKey.AttemptStartKey(quizID, sessionID),
		config.CacheKey.AttemptAnswersKey(quizID, sessionID),
		config.CacheKey.AttemptViolationsKey(quizID, sessionID),
	).Err()
	if err != nil {
		return fmt.Errorf("clear attempt: %w", err)
	}
	return nil
}

