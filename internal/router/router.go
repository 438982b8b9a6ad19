package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/handler"
	"github.com/stemsi/exstem-attempt/internal/logger"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	Setting *handler.SettingHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	rdb *redis.Client,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the access log can carry it.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/healthz", handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(middleware.CacheControl(60))
	{
		publicAPI.GET("/quizzes", handlers.Attempt.ListQuizzes)
	}

	// ─── 1. Entry (Public, Rate Limited) ───────────────────────────────
	enterLimiter := middleware.NewRateLimiter(rdb, "enter", cfg.EnterRateLimit, time.Minute, log)
	router.POST("/api/v1/quizzes/:quiz_id/enter",
		enterLimiter.Middleware(),
		middleware.NoStore(),
		handlers.Attempt.EnterQuiz,
	)

	// ─── 2. Attempt Group (Participant JWT + Live Session) ─────────────
	attemptAPI := router.Group("/api/v1/attempt")
	attemptAPI.Use(
		middleware.RequireParticipantJWT(authService),
		middleware.CheckQuizSession(authService),
		middleware.NoStore(),
	)
	{
		attemptAPI.GET("/session", handlers.Attempt.GetSession)
		attemptAPI.GET("/state", handlers.Attempt.GetState)
		attemptAPI.POST("/logout", handlers.Attempt.Logout)
	}

	// ─── 3. WebSocket Group (Participant WS Auth) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireParticipantWSAuth(authService),
		middleware.CheckQuizSession(authService),
	)
	{
		ws.GET("/attempt/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Staff Group (JWT + Scopes) ─────────────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireStaffJWT(authService))
	{
		staffAPI.GET("/me", handlers.Auth.GetStaffProfile)

		staffAPI.GET("/quizzes/:quiz_id/overview",
			middleware.RequireScope(service.ScopeMonitor),
			handlers.Monitor.GetOverview,
		)
		staffAPI.GET("/quizzes/:quiz_id/sessions/:session_id/violations",
			middleware.RequireScope(service.ScopeMonitor),
			handlers.Monitor.GetSessionViolations,
		)
		staffAPI.GET("/quizzes/:quiz_id/monitor",
			middleware.RequireScope(service.ScopeMonitor),
			handlers.Monitor.MonitorQuizSSE,
		)
		staffAPI.GET("/system/metrics",
			middleware.RequireScope(service.ScopeMonitor),
			handlers.System.SystemMetricsSSE,
		)

		settingsGroup := staffAPI.Group("/settings")
		settingsGroup.Use(middleware.RequireScope(service.ScopeSettings))
		{
			settingsGroup.GET("", handlers.Setting.GetAllSettings)
			settingsGroup.PUT("/admin-override", handlers.Setting.UpdateAdminOverride)
			settingsGroup.POST("/security/refresh", handlers.Setting.RefreshSecuritySettings)
		}
	}

	return router
}
