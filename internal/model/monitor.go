package model

// MonitorEventType labels live monitor messages.
type MonitorEventType string

const (
	MonitorJoined     MonitorEventType = "joined"
	MonitorProgress   MonitorEventType = "progress"
	MonitorViolation  MonitorEventType = "violation"
	MonitorSubmitted  MonitorEventType = "submitted"
	MonitorTerminated MonitorEventType = "terminated"
	MonitorLeft       MonitorEventType = "left"
)

// MonitorEvent is published on a quiz's monitor channel and forwarded to
// staff over SSE as-is.
type MonitorEvent struct {
	Type          MonitorEventType `json:"type"`
	QuizID        string           `json:"quiz_id"`
	SessionID     string           `json:"session_id"`
	ParticipantID string           `json:"participant_id,omitempty"`
	Name          string           `json:"name,omitempty"`
	State         AttemptState     `json:"state,omitempty"`
	Answered      int              `json:"answered"`
	Total         int              `json:"total"`
	Violations    int              `json:"violations"`
	Violation     *ViolationEvent  `json:"violation,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Timestamp     int64            `json:"timestamp"`
}

// LiveAttempt is a staff view of an attempt hosted by this process.
type LiveAttempt struct {
	SessionID     string       `json:"session_id"`
	ParticipantID string       `json:"participant_id"`
	Name          string       `json:"name"`
	State         AttemptState `json:"state"`
	Answered      int          `json:"answered"`
	Total         int          `json:"total"`
	Remaining     int          `json:"remaining_seconds"`
	Violations    int          `json:"violations"`
	Connected     bool         `json:"connected"`
}

// QuizMonitorOverview combines the audit trail with live attempts.
type QuizMonitorOverview struct {
	QuizID          string             `json:"quiz_id"`
	TotalViolations int64              `json:"total_violations"`
	Summaries       []ViolationSummary `json:"summaries"`
	Live            []LiveAttempt      `json:"live"`
}
