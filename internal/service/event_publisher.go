package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// EventPublisher fans attempt events out to Redis: violations are queued
// for the audit worker and every event goes to the quiz's monitor channel.
type EventPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
	now func() time.Time
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(rdb *redis.Client, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		rdb: rdb,
		log: log.With().Str("component", "event_publisher").Logger(),
		now: time.Now,
	}
}

// Record queues a violation for persistence and announces it to monitors.
func (p *EventPublisher) Record(ctx context.Context, ev model.ViolationEvent) error {
	if ev.Timestamp == 0 {
		ev.Timestamp = p.now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode violation: %w", err)
	}
	notice, err := json.Marshal(model.MonitorEvent{
		Type:          model.MonitorViolation,
		QuizID:        ev.QuizID,
		SessionID:     ev.SessionID,
		ParticipantID: ev.ParticipantID,
		Violations:    ev.Count,
		Violation:     &ev,
		Timestamp:     ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode monitor event: %w", err)
	}

	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	pipe.Publish(ctx, config.CacheKey.QuizMonitorChannel(ev.QuizID), notice)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue violation: %w", err)
	}
	return nil
}

// Publish announces a lifecycle event. Failures are logged, not returned:
// the monitor is best-effort.
func (p *EventPublisher) Publish(ctx context.Context, ev model.MonitorEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = p.now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to encode monitor event")
		return
	}
	if err := p.rdb.Publish(ctx, config.CacheKey.QuizMonitorChannel(ev.QuizID), data).Err(); err != nil {
		p.log.Warn().Err(err).Str("quiz_id", ev.QuizID).Str("type", string(ev.Type)).Msg("Failed to publish monitor event")
	}
}
