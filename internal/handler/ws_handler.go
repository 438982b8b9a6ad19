package handler

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/attempt"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
	ws "github.com/stemsi/exstem-attempt/internal/websocket"
)

const (
	outboxSize    = 64
	actionTimeout = 30 * time.Second
	maxPassword   = 72

	// CloseDisplaced is sent when the same session connects elsewhere.
	CloseDisplaced = 4001
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one attempt over a WebSocket: browser events and taker
// actions in, decisions and controller notices out.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempt/stream?token=...
// Upgrades to WebSocket and attaches the connection to the session's attempt.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	sess := middleware.GetQuizSession(c)
	if sess == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("quiz_id", sess.QuizID).
		Str("session_id", sess.SessionID).
		Logger()

	out := ws.NewOutbox(outboxSize)
	var displaced atomic.Bool

	notifier := attempt.NotifierFunc(func(n attempt.Notice) {
		if !out.Send(ws.NoticeResponse{Event: ws.EventNotice, Notice: n}) {
			wsLog.Warn().Str("notice", string(n.Type)).Msg("Outbox full, dropping connection")
			out.Close()
		}
	})

	ctrl, release, err := h.attemptService.Connect(sess, notifier, func() {
		displaced.Store(true)
		out.Close()
	})
	if err != nil {
		_ = ws.WriteTyped(conn, h.errorResponse(wsLog, "", err))
		return
	}
	defer release()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := out.Pump(conn); err != nil {
			wsLog.Debug().Err(err).Msg("Write pump stopped")
		}
		code, text := websocket.CloseNormalClosure, ""
		if displaced.Load() {
			code, text = CloseDisplaced, "session opened elsewhere"
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
		// Unblocks the read loop.
		_ = conn.Close()
	}()

	ws.KeepAlive(conn)
	out.Send(ws.SnapshotResponse{Event: ws.EventSnapshot, Snapshot: ctrl.Snapshot()})
	wsLog.Info().Msg("Participant connected")

	reqCtx := context.WithoutCancel(c.Request.Context())
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, CloseDisplaced) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.dispatch(reqCtx, wsLog, ctrl, &msg)
		for _, r := range reply {
			if !out.Send(r) {
				out.Close()
				break
			}
		}
	}

	out.Close()
	<-pumpDone
	wsLog.Info().Bool("displaced", displaced.Load()).Msg("Participant disconnected")
}

// dispatch runs one client action and returns the replies in send order.
func (h *WSHandler) dispatch(parent context.Context, log zerolog.Logger, ctrl *attempt.Controller, msg *ws.RequestPayload) []interface{} {
	ctx, cancel := context.WithTimeout(parent, actionTimeout)
	defer cancel()

	invalid := func() []interface{} {
		return []interface{}{ws.ErrorResponse{
			Event:   ws.EventError,
			Action:  msg.Action,
			Code:    response.ErrInvalidPayload,
			Message: response.GetMessage(response.ErrInvalidPayload),
		}}
	}
	fail := func(err error) []interface{} {
		return []interface{}{h.errorResponse(log, msg.Action, err)}
	}
	ack := []interface{}{ws.AckResponse{Event: ws.EventAck, Action: msg.Action}}

	switch msg.Action {
	case ws.ActionEvent:
		if msg.Event == nil || msg.Event.Kind == "" {
			return invalid()
		}
		d, err := ctrl.HandleBrowserEvent(ctx, *msg.Event)
		if err != nil {
			return fail(err)
		}
		return []interface{}{ws.DecisionResponse{Event: ws.EventDecision, Decision: d}}

	case ws.ActionAnswer:
		if msg.QuestionID == "" || msg.Option == nil {
			return invalid()
		}
		if err := ctrl.SetAnswer(ctx, msg.QuestionID, *msg.Option); err != nil {
			return fail(err)
		}
		return ack

	case ws.ActionClear:
		if msg.QuestionID == "" {
			return invalid()
		}
		if err := ctrl.ClearAnswer(ctx, msg.QuestionID); err != nil {
			return fail(err)
		}
		return ack

	case ws.ActionNext, ws.ActionPrev, ws.ActionJump:
		var (
			idx int
			err error
		)
		switch msg.Action {
		case ws.ActionNext:
			idx, err = ctrl.Next()
		case ws.ActionPrev:
			idx, err = ctrl.Previous()
		default:
			if msg.Index == nil {
				return invalid()
			}
			idx, err = ctrl.Jump(*msg.Index)
		}
		if err != nil {
			return fail(err)
		}
		return []interface{}{ws.NavigatedResponse{Event: ws.EventNavigated, Index: idx}}

	case ws.ActionRequestSubmit:
		conf, err := ctrl.RequestSubmit()
		if err != nil {
			return fail(err)
		}
		return []interface{}{ws.ConfirmationResponse{Event: ws.EventConfirmation, Confirmation: conf}}

	case ws.ActionConfirmSubmit:
		res, err := ctrl.ConfirmSubmit(ctx)
		if err != nil {
			return fail(err)
		}
		return []interface{}{ws.ResultResponse{Event: ws.EventResult, Result: res}}

	case ws.ActionCancelSubmit:
		ctrl.CancelSubmit()
		return ack

	case ws.ActionConsent:
		cmds, err := ctrl.ConsentFullscreen()
		if err != nil {
			return fail(err)
		}
		return []interface{}{ws.CommandsResponse{Event: ws.EventCommands, Action: msg.Action, Commands: cmds}}

	case ws.ActionPersonalPassword, ws.ActionAdminPassword:
		if msg.Password == "" || len(msg.Password) > maxPassword {
			return invalid()
		}
		if msg.Action == ws.ActionPersonalPassword {
			g, cmds, err := ctrl.SubmitPersonalPassword(msg.Password)
			if err != nil {
				return fail(err)
			}
			return []interface{}{ws.CommandsResponse{Event: ws.EventCommands, Action: msg.Action, Commands: cmds, Grant: &g}}
		}
		g, cmds, err := ctrl.SubmitAdminPassword(ctx, msg.Password)
		if err != nil {
			// A rejected password still closes the prompt.
			replies := fail(err)
			if len(cmds) > 0 {
				replies = append([]interface{}{ws.CommandsResponse{Event: ws.EventCommands, Action: msg.Action, Commands: cmds}}, replies...)
			}
			return replies
		}
		return []interface{}{ws.CommandsResponse{Event: ws.EventCommands, Action: msg.Action, Commands: cmds, Grant: &g}}

	case ws.ActionDismissPrompt:
		return []interface{}{ws.CommandsResponse{Event: ws.EventCommands, Action: msg.Action, Commands: ctrl.DismissPrompt()}}

	case ws.ActionReEnable:
		cmds, err := ctrl.ReEnableSecurity()
		if err != nil {
			return fail(err)
		}
		return []interface{}{ws.CommandsResponse{Event: ws.EventCommands, Action: msg.Action, Commands: cmds}}

	case ws.ActionRetry:
		if err := ctrl.Retry(ctx); err != nil {
			return fail(err)
		}
		return []interface{}{ws.SnapshotResponse{Event: ws.EventSnapshot, Snapshot: ctrl.Snapshot()}}

	case ws.ActionSnapshot:
		return []interface{}{ws.SnapshotResponse{Event: ws.EventSnapshot, Snapshot: ctrl.Snapshot()}}

	case ws.ActionPing:
		return []interface{}{ws.PongResponse{Event: ws.EventPong}}

	default:
		log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		return []interface{}{ws.ErrorResponse{
			Event:   ws.EventError,
			Action:  msg.Action,
			Code:    response.ErrUnknownAction,
			Message: response.GetMessage(response.ErrUnknownAction),
		}}
	}
}

func (h *WSHandler) errorResponse(log zerolog.Logger, action ws.Action, err error) ws.ErrorResponse {
	api := classify(err)
	if api.Code == response.ErrInternal {
		log.Error().Err(err).Str("action", string(action)).Msg("Action failed")
	}
	return ws.ErrorResponse{
		Event:     ws.EventError,
		Action:    action,
		Code:      api.Code,
		Message:   response.GetMessage(api.Code),
		Retryable: api.Retryable,
	}
}
