package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/cache"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/database"
	"github.com/stemsi/exstem-attempt/internal/handler"
	"github.com/stemsi/exstem-attempt/internal/logger"
	"github.com/stemsi/exstem-attempt/internal/quizapi"
	"github.com/stemsi/exstem-attempt/internal/repository"
	"github.com/stemsi/exstem-attempt/internal/router"
	"github.com/stemsi/exstem-attempt/internal/service"
	"github.com/stemsi/exstem-attempt/internal/session"
	"github.com/stemsi/exstem-attempt/internal/validator"
	"github.com/stemsi/exstem-attempt/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("quiz_api", cfg.QuizAPIURL).
		Str("override_verifier", cfg.OverrideVerifier).
		Msg("Starting ExStem attempt service")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	violationRepo := repository.NewViolationRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	sessions := session.NewStore(rdb, cfg.CacheSessionTTL)
	tiered := cache.New(rdb, cfg.CacheSessionTTL)
	quizAPI := quizapi.New(cfg.QuizAPIURL, cfg.QuizAPIToken, cfg.QuizAPITimeout, log)

	authService := service.NewAuthService(cfg, sessions)
	settingService := service.NewSettingService(settingRepo, log)
	quizSource := service.NewQuizSource(quizAPI, tiered, log)
	overrideService := service.NewOverrideService(cfg.OverrideVerifier, quizSource, settingService, authService, cfg.AdminOverrideCombo, log)
	events := service.NewEventPublisher(rdb, log)
	attemptStore := service.NewAttemptStore(rdb, cfg.CacheSessionTTL)
	attemptService := service.NewAttemptService(cfg, quizSource, sessions, authService, attemptStore, events, overrideService, log)
	monitorService := service.NewMonitorService(violationRepo, attemptService)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(),
		Attempt: handler.NewAttemptHandler(attemptService, quizSource, log),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(rdb, monitorService, log),
		Setting: handler.NewSettingHandler(settingService, authService, quizSource, log),
		System:  handler.NewSystemHandler(rdb, pool, attemptService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	violationWorker := worker.NewViolationWorker(violationRepo, rdb, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		violationWorker.Start(workerCtx)
	}()

	// ─── Prewarm Caches ───────────────────────────────────────────────
	// Security settings are read by every attempt on load.
	if _, err := quizSource.SecuritySettings(ctx); err != nil {
		log.Warn().Err(err).Msg("Security settings prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, rdb, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked WebSocket
	// connections are not tracked by Shutdown; step 2 closes their attempts.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop attempt tick loops; in-flight submissions may finish.
	attemptCtx, attemptCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer attemptCancel()
	if err := attemptService.Shutdown(attemptCtx); err != nil {
		log.Error().Err(err).Msg("Attempt shutdown timed out")
	}

	// 3. Stop the violation worker; it flushes its buffer before returning.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Violation worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
