package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizSessionKey returns the key holding a participant's quiz-session record.
func (r *CacheKeyStruct) QuizSessionKey(sessionID string) string {
	return fmt.Sprintf("quiz_session:%s", sessionID)
}

// AttemptStartKey returns the key holding the unix start time of an attempt.
func (r *CacheKeyStruct) AttemptStartKey(quizID, sessionID string) string {
	return fmt.Sprintf("session:%s:quiz:%s:attempt_start", sessionID, quizID)
}

// AttemptAnswersKey returns the hash key holding autosaved answers (question id -> option index).
func (r *CacheKeyStruct) AttemptAnswersKey(quizID, sessionID string) string {
	return fmt.Sprintf("session:%s:quiz:%s:answers", sessionID, quizID)
}

// AttemptViolationsKey returns the key holding an attempt's running violation count.
func (r *CacheKeyStruct) AttemptViolationsKey(quizID, sessionID string) string {
	return fmt.Sprintf("session:%s:quiz:%s:violations", sessionID, quizID)
}

// AttemptOutcomeKey returns the key holding a finished attempt's outcome.
func (r *CacheKeyStruct) AttemptOutcomeKey(quizID, sessionID string) string {
	return fmt.Sprintf("session:%s:quiz:%s:outcome", sessionID, quizID)
}

// CacheEntryKey namespaces a tiered cache entry.
func (r *CacheKeyStruct) CacheEntryKey(key string) string {
	return fmt.Sprintf("cache:%s", key)
}

// PublicQuizzesKey is the cache key for landing-page quiz listings.
func (r *CacheKeyStruct) PublicQuizzesKey() string {
	return "public:quizzes"
}

// SecuritySettingsKey is the cache key for the upstream security settings.
func (r *CacheKeyStruct) SecuritySettingsKey() string {
	return "security:settings"
}

// QuizMonitorChannel returns the Redis PubSub channel name for a quiz's live monitor.
func (r *CacheKeyStruct) QuizMonitorChannel(quizID string) string {
	return fmt.Sprintf("quiz:%s:monitor", quizID)
}

// RateLimitKey returns the counter key for one client in one limiter window.
func (r *CacheKeyStruct) RateLimitKey(scope, clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, clientIP, window)
}

var CacheKey = NewCacheKeyStruct()
