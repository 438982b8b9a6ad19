package model

import "time"

// DisplayMode controls how questions are presented to the taker.
type DisplayMode string

const (
	DisplayOneAtATime DisplayMode = "one-at-a-time"
	DisplayAllAtOnce  DisplayMode = "all-at-once"
)

// QuizKind separates institution-run academic quizzes from open event quizzes.
type QuizKind string

const (
	QuizKindAcademic QuizKind = "academic"
	QuizKindEvent    QuizKind = "event"
)

// SecuritySettings is the lockdown policy attached to a quiz.
// Field names mirror the upstream Quiz Service documents.
type SecuritySettings struct {
	EnableFullscreen     bool `json:"enableFullscreen"`
	DisableRightClick    bool `json:"disableRightClick"`
	DisableCopyPaste     bool `json:"disableCopyPaste"`
	DisableTabSwitch     bool `json:"disableTabSwitch"`
	EnableProctoringMode bool `json:"enableProctoringMode"`
}

// Question is a single multiple-choice question as served to takers.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"` // may contain markup
	Options       []string `json:"options"`
	Marks         float64  `json:"marks"`
	NegativeMarks *float64 `json:"negativeMarks,omitempty"`
}

// Quiz is read-only to the attempt controller.
type Quiz struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Kind                QuizKind          `json:"kind,omitempty"`
	DurationMinutes     int               `json:"duration"`
	TotalMarks          float64           `json:"totalMarks"`
	Questions           []Question        `json:"questions"`
	SecuritySettings    *SecuritySettings `json:"securitySettings,omitempty"`
	QuestionDisplayMode DisplayMode       `json:"questionDisplayMode,omitempty"`
}

// Duration returns the configured length of the quiz.
func (q *Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// Mode returns the display mode, defaulting to one-at-a-time.
func (q *Quiz) Mode() DisplayMode {
	if q.QuestionDisplayMode == DisplayAllAtOnce {
		return DisplayAllAtOnce
	}
	return DisplayOneAtATime
}

// QuestionIDs returns question identifiers in presentation order.
func (q *Quiz) QuestionIDs() []string {
	ids := make([]string, len(q.Questions))
	for i := range q.Questions {
		ids[i] = q.Questions[i].ID
	}
	return ids
}

// QuizSummary is the landing-page view of a quiz.
type QuizSummary struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Kind            QuizKind `json:"kind,omitempty"`
	DurationMinutes int      `json:"duration"`
	QuestionCount   int      `json:"questionCount"`
}

// QuizStatus is the liveness answer of the upstream status endpoint.
type QuizStatus struct {
	Exists bool   `json:"exists"`
	Status string `json:"status,omitempty"`
}

// KeyCombination is an override trigger, e.g. {ctrl, 5} or {"", 1+2}.
type KeyCombination struct {
	Modifier string `json:"modifier,omitempty"`
	Key      string `json:"key"`
}

// SecurityConfig is served by the upstream settings endpoint.
type SecurityConfig struct {
	AdminKeyCombination *KeyCombination `json:"adminKeyCombination,omitempty"`
}
