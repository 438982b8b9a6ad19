package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationWriter persists audit rows.
type ViolationWriter interface {
	InsertBatch(ctx context.Context, events []model.ViolationEvent) error
	Insert(ctx context.Context, ev model.ViolationEvent) error
}

// ViolationWorker drains persist_violations_queue into Postgres in batches.
type ViolationWorker struct {
	repo         ViolationWriter
	rdb          *redis.Client
	log          zerolog.Logger
	requeuePause time.Duration
	errorPause   time.Duration
}

func NewViolationWorker(repo ViolationWriter, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		repo:         repo,
		rdb:          rdb,
		log:          log.With().Str("component", "violation_worker").Logger(),
		requeuePause: 2 * time.Second,
		errorPause:   3 * time.Second,
	}
}

func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]model.ViolationEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Graceful shutdown
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. BLPop returns immediately if data exists, otherwise after PollTimeout.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			sleepCtx(ctx, w.errorPause)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var ev model.ViolationEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			// Malformed JSON cannot be retried.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed violation")
			continue
		}
		if ev.QuizID == "" || ev.SessionID == "" {
			w.log.Error().Str("data", result[1]).Msg("Discarding violation without quiz or session")
			continue
		}

		buffer = append(buffer, ev)
	}
}

// flushSafe tries a bulk insert, then row-by-row, then requeues.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.ViolationEvent) {
	if err := w.repo.InsertBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Violations persisted")
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []model.ViolationEvent) {
	requeueList := make([]model.ViolationEvent, 0)

	for _, ev := range batch {
		if err := w.repo.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).
				Str("quiz_id", ev.QuizID).
				Str("session_id", ev.SessionID).
				Msg("Insert failed, requeueing")
			requeueList = append(requeueList, ev)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []model.ViolationEvent) {
	// The worker context may already be cancelled during shutdown.
	ctx = context.WithoutCancel(ctx)

	pipe := w.rdb.Pipeline()
	for _, ev := range items {
		data, _ := json.Marshal(ev)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue violations. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed violations")
	time.Sleep(w.requeuePause)
}

func (w *ViolationWorker) shutdown(buffer []model.ViolationEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
