// Package answers tracks in-progress selections for one attempt.
package answers

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// ErrUnknownQuestion is returned for question ids that are not part of the quiz.
var ErrUnknownQuestion = errors.New("question is not part of this quiz")

// Tracker maps question id to selected option index. Absence means
// unanswered; option 0 is a real selection.
type Tracker struct {
	order    []string
	known    map[string]struct{}
	selected map[string]int
}

// NewTracker creates a tracker with every question unanswered.
func NewTracker(questionIDs []string) *Tracker {
	t := &Tracker{
		order:    make([]string, 0, len(questionIDs)),
		known:    make(map[string]struct{}, len(questionIDs)),
		selected: make(map[string]int, len(questionIDs)),
	}
	for _, id := range questionIDs {
		if _, dup := t.known[id]; dup {
			continue
		}
		t.known[id] = struct{}{}
		t.order = append(t.order, id)
	}
	return t
}

// SetAnswer replaces any prior selection for questionID.
func (t *Tracker) SetAnswer(questionID string, option int) error {
	if _, ok := t.known[questionID]; !ok {
		return fmt.Errorf("set answer %q: %w", questionID, ErrUnknownQuestion)
	}
	t.selected[questionID] = option
	return nil
}

// ClearAnswer removes the entry for questionID entirely.
func (t *Tracker) ClearAnswer(questionID string) error {
	if _, ok := t.known[questionID]; !ok {
		return fmt.Errorf("clear answer %q: %w", questionID, ErrUnknownQuestion)
	}
	delete(t.selected, questionID)
	return nil
}

// Selected returns the option chosen for questionID, if any.
func (t *Tracker) Selected(questionID string) (int, bool) {
	opt, ok := t.selected[questionID]
	return opt, ok
}

// Restore seeds selections recovered from autosave. Unknown ids are dropped.
func (t *Tracker) Restore(saved map[string]int) {
	for id, opt := range saved {
		if _, ok := t.known[id]; ok {
			t.selected[id] = opt
		}
	}
}

// Answered returns the number of questions with a selection.
func (t *Tracker) Answered() int { return len(t.selected) }

// Total returns the number of questions in the quiz.
func (t *Tracker) Total() int { return len(t.order) }

// Progress returns answered/total in [0,1].
func (t *Tracker) Progress() float64 {
	if len(t.order) == 0 {
		return 0
	}
	return float64(len(t.selected)) / float64(len(t.order))
}

// Snapshot returns a copy of the current selections.
func (t *Tracker) Snapshot() map[string]int {
	out := make(map[string]int, len(t.selected))
	for id, opt := range t.selected {
		out[id] = opt
	}
	return out
}

// SubmissionPayload lists answered questions in quiz order. Unanswered
// questions are omitted rather than sent as null.
func (t *Tracker) SubmissionPayload() []model.AnswerEntry {
	out := make([]model.AnswerEntry, 0, len(t.selected))
	for _, id := range t.order {
		if opt, ok := t.selected[id]; ok {
			out = append(out, model.AnswerEntry{QuestionID: id, SelectedOption: opt})
		}
	}
	return out
}
