package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
	"github.com/stemsi/exstem-attempt/internal/validator"
)

type SettingHandler struct {
	settingService *service.SettingService
	authService    *service.AuthService
	quizzes        *service.QuizSource
	log            zerolog.Logger
}

func NewSettingHandler(settingService *service.SettingService, authService *service.AuthService, quizzes *service.QuizSource, log zerolog.Logger) *SettingHandler {
	return &SettingHandler{
		settingService: settingService,
		authService:    authService,
		quizzes:        quizzes,
		log:            log.With().Str("component", "setting_handler").Logger(),
	}
}

// GetAllSettings godoc
// GET /api/v1/staff/settings
func (h *SettingHandler) GetAllSettings(c *gin.Context) {
	settings, err := h.settingService.GetAllSettings(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settings": settings})
}

// UpdateAdminOverride godoc
// PUT /api/v1/staff/settings/admin-override
// Stores the locally verified admin override password.
func (h *SettingHandler) UpdateAdminOverride(c *gin.Context) {
	var req model.AdminOverrideRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	timeout := service.DefaultAdminOverrideTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	if err := h.settingService.SetAdminOverride(c.Request.Context(), hash, timeout, req.Combo); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	staff := ""
	if claims := middleware.GetClaims(c); claims != nil {
		staff = claims.Subject
	}
	h.log.Info().Str("staff", staff).Dur("timeout", timeout).Msg("Admin override password updated")

	response.Success(c, http.StatusOK, gin.H{"message": "admin override updated"})
}

// RefreshSecuritySettings godoc
// POST /api/v1/staff/settings/security/refresh
// Drops the cached upstream security settings so the next attempt reloads them.
func (h *SettingHandler) RefreshSecuritySettings(c *gin.Context) {
	if err := h.quizzes.InvalidateSecuritySettings(c.Request.Context()); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "security settings refreshed"})
}
