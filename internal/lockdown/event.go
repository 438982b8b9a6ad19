package lockdown

import "strings"

// EventKind is a browser event reported by the client.
type EventKind string

const (
	EventKeyDown          EventKind = "keydown"
	EventKeyUp            EventKind = "keyup"
	EventContextMenu      EventKind = "contextmenu"
	EventCopy             EventKind = "copy"
	EventCut              EventKind = "cut"
	EventPaste            EventKind = "paste"
	EventVisibilityHidden EventKind = "visibility_hidden"
	EventWindowBlur       EventKind = "window_blur"
	EventFullscreenExit   EventKind = "fullscreen_exit"
	EventFullscreenEnter  EventKind = "fullscreen_enter"
)

// Event is one DOM event as seen by the browser.
type Event struct {
	Kind  EventKind `json:"kind" binding:"required"`
	Key   string    `json:"key,omitempty"`
	Ctrl  bool      `json:"ctrl,omitempty"`
	Alt   bool      `json:"alt,omitempty"`
	Shift bool      `json:"shift,omitempty"`
	Meta  bool      `json:"meta,omitempty"`
}

// Modifiers is a bit set of held modifier keys. Meta folds into Ctrl.
type Modifiers uint8

const (
	ModCtrl Modifiers = 1 << iota
	ModAlt
	ModShift
)

// Modifiers returns the held modifiers of the event.
func (e Event) Modifiers() Modifiers {
	var m Modifiers
	if e.Ctrl || e.Meta {
		m |= ModCtrl
	}
	if e.Alt {
		m |= ModAlt
	}
	if e.Shift {
		m |= ModShift
	}
	return m
}

// NormalizedKey lower-cases the key name ("Escape" -> "escape", "I" -> "i").
func (e Event) NormalizedKey() string {
	return normalizeKey(e.Key)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func isModifierKey(k string) bool {
	switch k {
	case "control", "ctrl", "alt", "shift", "meta", "os", "altgraph":
		return true
	}
	return false
}
