package model

import "time"

// AttemptState is the lifecycle of an attempt session.
type AttemptState string

const (
	AttemptLoading    AttemptState = "loading"
	AttemptInProgress AttemptState = "in_progress"
	AttemptSubmitting AttemptState = "submitting"
	AttemptSubmitted  AttemptState = "submitted"
	AttemptError      AttemptState = "error"
	AttemptTerminated AttemptState = "terminated"
)

// IsTerminal reports whether no further transitions are possible.
func (s AttemptState) IsTerminal() bool {
	return s == AttemptSubmitted || s == AttemptTerminated
}

// AnswerEntry is one answered question in a submission payload.
type AnswerEntry struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"`
}

// SubmitTrigger records why a submission happened.
type SubmitTrigger string

const (
	TriggerManual SubmitTrigger = "manual"
	TriggerTimer  SubmitTrigger = "timer"
)

// SubmissionRequest is sent to the upstream submit endpoint.
type SubmissionRequest struct {
	AttemptID string        `json:"attemptId,omitempty"`
	SessionID string        `json:"sessionToken,omitempty"`
	Answers   []AnswerEntry `json:"answers"`
	Trigger   SubmitTrigger `json:"trigger"`
	TimeTaken int           `json:"timeTaken"` // seconds
}

// SubmissionResult is the upstream response to a submission.
type SubmissionResult struct {
	AttemptID  string   `json:"attemptId,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	TotalMarks float64  `json:"totalMarks,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// AttemptStart is returned when the upstream opens (or resumes) an attempt.
type AttemptStart struct {
	AttemptID        string    `json:"attemptId"`
	StartedAt        time.Time `json:"startedAt"`
	RemainingSeconds *int      `json:"remainingSeconds,omitempty"`
}

// AttemptSnapshot is the externally visible state of an attempt session.
type AttemptSnapshot struct {
	QuizID           string            `json:"quiz_id"`
	AttemptID        string            `json:"attempt_id,omitempty"`
	State            AttemptState      `json:"state"`
	StartedAt        time.Time         `json:"started_at"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Answers          map[string]int    `json:"answers"`
	Answered         int               `json:"answered"`
	Total            int               `json:"total"`
	Progress         float64           `json:"progress"`
	CurrentQuestion  int               `json:"current_question"`
	DisplayMode      DisplayMode       `json:"display_mode"`
	Busy             bool              `json:"busy"`
	ConfirmPending   bool              `json:"confirm_pending"`
	Lockdown         *LockdownSnapshot `json:"lockdown,omitempty"`
	Result           *SubmissionResult `json:"result,omitempty"`
	Error            string            `json:"error,omitempty"`
	TerminatedReason string            `json:"terminated_reason,omitempty"`
}

// LockdownSnapshot summarizes the lockdown monitor for the client.
type LockdownSnapshot struct {
	State          string     `json:"state"`
	Violations     int        `json:"violations"`
	Threshold      int        `json:"threshold"`
	Listeners      []string   `json:"listeners"`
	OverrideKind   string     `json:"override_kind,omitempty"`
	OverrideUntil  *time.Time `json:"override_until,omitempty"`
	IndicatorStyle string     `json:"indicator,omitempty"`
}

// AttemptOutcome is persisted once an attempt reaches a terminal state so
// the session can never start the attempt again.
type AttemptOutcome struct {
	AttemptID  string            `json:"attempt_id,omitempty"`
	State      AttemptState      `json:"state"`
	Reason     string            `json:"reason,omitempty"`
	Result     *SubmissionResult `json:"result,omitempty"`
	Answered   int               `json:"answered"`
	Total      int               `json:"total"`
	Violations int               `json:"violations"`
	FinishedAt time.Time         `json:"finished_at"`
}
