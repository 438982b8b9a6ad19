package attempt

import (
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/model"
)

// NoticeType classifies asynchronous messages for the taker.
type NoticeType string

const (
	NoticeCountdown    NoticeType = "countdown"
	NoticeTimeExpired  NoticeType = "time_expired"
	NoticeLoaded       NoticeType = "loaded"
	NoticeLoadFailed   NoticeType = "load_failed"
	NoticeSubmitted    NoticeType = "submitted"
	NoticeSubmitFailed NoticeType = "submit_failed"
	NoticeViolation    NoticeType = "violation"
	NoticeCommands     NoticeType = "commands"
	NoticeTerminated   NoticeType = "terminated"
)

// Termination reasons.
const (
	ReasonViolations  = lockdown.RedirectViolations
	ReasonQuizDeleted = "quiz_deleted"
)

// Notice is emitted after the controller lock is released. Retryable
// notices invite a retry; terminated notices mean the taker is redirected.
type Notice struct {
	Type      NoticeType              `json:"type"`
	Message   string                  `json:"message,omitempty"`
	Retryable bool                    `json:"retryable,omitempty"`
	Remaining *int                    `json:"remaining_seconds,omitempty"`
	Violation *model.ViolationRecord  `json:"violation,omitempty"`
	Commands  []lockdown.Command      `json:"commands,omitempty"`
	Result    *model.SubmissionResult `json:"result,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
}

// Notifier receives notices in emission order. Implementations must not
// call back into the Controller synchronously.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Confirmation is shown before a manual submission.
type Confirmation struct {
	Answered   int `json:"answered"`
	Total      int `json:"total"`
	Unanswered int `json:"unanswered"`
}
