package model

import "time"

// Participant is the taker's identity as captured at entry.
type Participant struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Identifier  string `json:"identifier,omitempty"` // roll number / NISN
	Institution string `json:"institution,omitempty"`
}

// QuizSession is the record created when a participant enters a quiz.
// Lifecycle: created on enter, read on resume, destroyed on logout.
type QuizSession struct {
	SessionID   string      `json:"session_id"`
	QuizID      string      `json:"quiz_id"`
	AttemptID   string      `json:"attempt_id,omitempty"`
	Participant Participant `json:"participant"`
	LoginTime   time.Time   `json:"login_time"`
}

// EnterQuizRequest is the payload for entering a quiz.
type EnterQuizRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=120,personname"`
	Email       string `json:"email" binding:"required,email"`
	Identifier  string `json:"identifier" binding:"omitempty,max=64"`
	Institution string `json:"institution" binding:"omitempty,max=160"`
	AccessCode  string `json:"access_code" binding:"omitempty,min=4,max=32"`
}

// Registration is sent upstream before starting an event quiz.
type Registration struct {
	Participant Participant `json:"participant"`
	AccessCode  string      `json:"accessCode,omitempty"`
}
