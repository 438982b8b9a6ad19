package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
	"github.com/stemsi/exstem-attempt/internal/validator"
)

// quizIDPattern bounds the upstream quiz identifiers accepted in paths;
// they end up in Redis keys and upstream URLs.
var quizIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AttemptHandler handles participant entry and the REST side of an attempt.
type AttemptHandler struct {
	attemptService *service.AttemptService
	quizzes        *service.QuizSource
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, quizzes *service.QuizSource, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		quizzes:        quizzes,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// ListQuizzes godoc
// GET /api/v1/public/quizzes
// Returns the landing-page quiz listing.
func (h *AttemptHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.quizzes.PublicQuizzes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if quizzes == nil {
		quizzes = []model.QuizSummary{}
	}
	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// EnterQuiz godoc
// POST /api/v1/quizzes/:quiz_id/enter
// Registers the participant (event quizzes) and opens a quiz session.
func (h *AttemptHandler) EnterQuiz(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	var req model.EnterQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	result, err := h.attemptService.Enter(c.Request.Context(), quizID, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetSession godoc
// GET /api/v1/attempt/session
// Returns the quiz session bound to the token, used to resume after reload.
func (h *AttemptHandler) GetSession(c *gin.Context) {
	sess := middleware.GetQuizSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// GetState godoc
// GET /api/v1/attempt/state
// Returns the attempt snapshot. Starts the attempt if this process has not
// hosted it yet, so the first call after a restart may still be loading.
func (h *AttemptHandler) GetState(c *gin.Context) {
	sess := middleware.GetQuizSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
		return
	}

	ctrl, err := h.attemptService.Controller(sess)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, ctrl.Snapshot())
}

// Logout godoc
// POST /api/v1/attempt/logout
// Closes the attempt, clears autosaved answers and destroys the session.
func (h *AttemptHandler) Logout(c *gin.Context) {
	sess := middleware.GetQuizSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
		return
	}

	if err := h.attemptService.Logout(c.Request.Context(), sess); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AttemptHandler) fail(c *gin.Context, err error) {
	api := classify(err)
	if api.Code == response.ErrInternal {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	if errors.Is(err, service.ErrRegistrationRejected) {
		detail := strings.TrimPrefix(err.Error(), service.ErrRegistrationRejected.Error())
		response.FailWithDetail(c, api.Status, api.Code, strings.TrimPrefix(detail, ": "))
		return
	}
	if api.Retryable {
		response.FailRetryable(c, api.Status, api.Code)
		return
	}
	response.Fail(c, api.Status, api.Code)
}

func quizIDParam(c *gin.Context) (string, bool) {
	quizID := c.Param("quiz_id")
	if !quizIDPattern.MatchString(quizID) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return quizID, true
}
