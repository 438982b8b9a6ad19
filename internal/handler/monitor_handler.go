package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler serves the proctor views of a quiz: the violation overview
// and a live event stream.
type MonitorHandler struct {
	rdb            *redis.Client
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(rdb *redis.Client, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// GetOverview godoc
// GET /api/v1/staff/quizzes/:quiz_id/overview
func (h *MonitorHandler) GetOverview(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	overview, err := h.monitorService.GetQuizOverview(c.Request.Context(), quizID)
	if err != nil {
		h.log.Error().Err(err).Str("quiz_id", quizID).Msg("Failed to build overview")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, overview)
}

// GetSessionViolations godoc
// GET /api/v1/staff/quizzes/:quiz_id/sessions/:session_id/violations
func (h *MonitorHandler) GetSessionViolations(c *gin.Context) {
	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	events, err := h.monitorService.GetSessionViolations(c.Request.Context(), quizID, sessionID.String())
	if err != nil {
		h.log.Error().Err(err).Str("quiz_id", quizID).Msg("Failed to list violations")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if events == nil {
		events = []model.ViolationEvent{}
	}
	response.Success(c, http.StatusOK, gin.H{"violations": events})
}

// MonitorQuizSSE godoc
// GET /api/v1/staff/quizzes/:quiz_id/monitor
// Streams monitor events (joined, violation, submitted, terminated) and a
// periodic overview refresh.
func (h *MonitorHandler) MonitorQuizSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, ok := quizIDParam(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Subscribe before the snapshot so no event falls between them.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.QuizMonitorChannel(quizID))
	defer pubsub.Close()
	ch := pubsub.Channel()

	hasEvents := h.sendOverview(c, reqCtx, quizID, "snapshot")

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	monLog := h.log.With().Str("quiz_id", quizID).Str("staff", claims.Subject).Logger()
	monLog.Info().Msg("Proctor attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			monLog.Info().Msg("Proctor disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payload is already a JSON MonitorEvent.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			hasEvents = true

		case <-refreshTicker.C:
			if !hasEvents {
				continue
			}
			h.sendOverview(c, reqCtx, quizID, "refresh")

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendOverview writes one overview event and reports whether the quiz has
// any activity worth refreshing.
func (h *MonitorHandler) sendOverview(c *gin.Context, parent context.Context, quizID, kind string) bool {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	overview, err := h.monitorService.GetQuizOverview(ctx, quizID)
	if err != nil {
		h.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Failed to fetch monitor overview")
		overview = &model.QuizMonitorOverview{QuizID: quizID}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": kind,
		"data": overview,
	})
	c.Writer.Flush()

	return len(overview.Live) > 0 || overview.TotalViolations > 0
}
