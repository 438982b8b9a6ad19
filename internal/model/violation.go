package model

import "time"

// ViolationKind enumerates lockdown policy breaches.
type ViolationKind string

const (
	ViolationFullscreenExit  ViolationKind = "fullscreen_exit"
	ViolationRightClick      ViolationKind = "right_click"
	ViolationTabSwitch       ViolationKind = "tab_switch"
	ViolationBlockedShortcut ViolationKind = "blocked_shortcut"
	ViolationDevTools        ViolationKind = "dev_tools_attempt"
	ViolationWindowBlur      ViolationKind = "window_blur"
)

// ViolationRecord is one detected breach with the running count at that point.
type ViolationRecord struct {
	Kind   ViolationKind `json:"kind"`
	At     time.Time     `json:"at"`
	Count  int           `json:"count"`
	Detail string        `json:"detail,omitempty"`
}

// ViolationEvent is the queued/audited form of a violation.
type ViolationEvent struct {
	QuizID        string        `json:"quiz_id"`
	SessionID     string        `json:"session_id"`
	ParticipantID string        `json:"participant_id,omitempty"`
	Kind          ViolationKind `json:"kind"`
	Count         int           `json:"count"`
	Detail        string        `json:"detail,omitempty"`
	Timestamp     int64         `json:"timestamp"`
}

// ViolationSummary aggregates violations per session for staff review.
type ViolationSummary struct {
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	Count         int64     `json:"count"`
	LastKind      string    `json:"last_kind"`
	LastAt        time.Time `json:"last_at"`
}
