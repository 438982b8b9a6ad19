package websocket

import (
	"github.com/stemsi/exstem-attempt/internal/attempt"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionEvent            Action = "event"
	ActionAnswer           Action = "answer"
	ActionClear            Action = "clear"
	ActionNext             Action = "next"
	ActionPrev             Action = "prev"
	ActionJump             Action = "jump"
	ActionRequestSubmit    Action = "request_submit"
	ActionConfirmSubmit    Action = "confirm_submit"
	ActionCancelSubmit     Action = "cancel_submit"
	ActionConsent          Action = "consent"
	ActionPersonalPassword Action = "personal_password"
	ActionAdminPassword    Action = "admin_password"
	ActionDismissPrompt    Action = "dismiss_prompt"
	ActionReEnable         Action = "reenable"
	ActionRetry            Action = "retry"
	ActionSnapshot         Action = "snapshot"
	ActionPing             Action = "ping"
)

// RequestPayload is every client message. Only the fields of the named
// action are read.
type RequestPayload struct {
	Action     Action          `json:"action"`
	Event      *lockdown.Event `json:"event,omitempty"`
	QuestionID string          `json:"q_id,omitempty"`
	Option     *int            `json:"option,omitempty"`
	Index      *int            `json:"index,omitempty"`
	Password   string          `json:"password,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSnapshot     Event = "snapshot"
	EventDecision     Event = "decision"
	EventNotice       Event = "notice"
	EventConfirmation Event = "confirmation"
	EventResult       Event = "result"
	EventNavigated    Event = "navigated"
	EventCommands     Event = "commands"
	EventAck          Event = "ack"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

type SnapshotResponse struct {
	Event    Event                 `json:"event"`
	Snapshot model.AttemptSnapshot `json:"snapshot"`
}

type DecisionResponse struct {
	Event    Event             `json:"event"`
	Decision lockdown.Decision `json:"decision"`
}

type NoticeResponse struct {
	Event  Event          `json:"event"`
	Notice attempt.Notice `json:"notice"`
}

type ConfirmationResponse struct {
	Event        Event                `json:"event"`
	Confirmation attempt.Confirmation `json:"confirmation"`
}

type ResultResponse struct {
	Event  Event                   `json:"event"`
	Result *model.SubmissionResult `json:"result"`
}

type NavigatedResponse struct {
	Event Event `json:"event"`
	Index int   `json:"index"`
}

// CommandsResponse answers consent, override and prompt actions.
type CommandsResponse struct {
	Event    Event              `json:"event"`
	Action   Action             `json:"action"`
	Commands []lockdown.Command `json:"commands"`
	Grant    *lockdown.Grant    `json:"grant,omitempty"`
}

type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
}

// ErrorResponse tells the client whether to retry or give up.
type ErrorResponse struct {
	Event     Event            `json:"event"`
	Action    Action           `json:"action,omitempty"`
	Code      response.ErrCode `json:"code"`
	Message   string           `json:"message"`
	Retryable bool             `json:"retryable"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
