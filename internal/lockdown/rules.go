package lockdown

import "github.com/stemsi/exstem-attempt/internal/model"

// Rule is the policy action for one (key, modifiers) chord or event kind.
type Rule struct {
	Name      string
	Guard     func(Policy) bool
	Prevent   bool
	Violation model.ViolationKind
}

type chord struct {
	key  string
	mods Modifiers
}

func tabSwitchGuard(p Policy) bool  { return p.TabSwitch }
func fullscreenGuard(p Policy) bool { return p.Fullscreen }
func copyPasteGuard(p Policy) bool  { return p.CopyPaste }
func rightClickGuard(p Policy) bool { return p.RightClick }
func anyGuard(p Policy) bool        { return p.Active() }

func shortcut(name string, guard func(Policy) bool, kind model.ViolationKind) Rule {
	return Rule{Name: name, Guard: guard, Prevent: true, Violation: kind}
}

// keyRules maps keydown chords to their rule.
var keyRules = map[chord]Rule{
	{"t", ModCtrl}:              shortcut("new-tab", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"n", ModCtrl}:              shortcut("new-window", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"w", ModCtrl}:              shortcut("close-tab", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"n", ModCtrl | ModShift}:   shortcut("incognito-window", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"t", ModCtrl | ModShift}:   shortcut("reopen-tab", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"tab", ModCtrl}:            shortcut("next-tab", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"tab", ModCtrl | ModShift}: shortcut("previous-tab", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"tab", ModAlt}:             shortcut("switch-window", tabSwitchGuard, model.ViolationBlockedShortcut),
	{"f4", ModAlt}:              shortcut("close-window", tabSwitchGuard, model.ViolationBlockedShortcut),

	{"f12", 0}:                shortcut("dev-tools", anyGuard, model.ViolationDevTools),
	{"i", ModCtrl | ModShift}: shortcut("dev-tools-inspector", anyGuard, model.ViolationDevTools),
	{"j", ModCtrl | ModShift}: shortcut("dev-tools-console", anyGuard, model.ViolationDevTools),
	{"c", ModCtrl | ModShift}: shortcut("dev-tools-picker", anyGuard, model.ViolationDevTools),
	{"u", ModCtrl}:            shortcut("view-source", anyGuard, model.ViolationDevTools),

	{"escape", 0}: shortcut("exit-fullscreen", fullscreenGuard, model.ViolationBlockedShortcut),
	{"f11", 0}:    shortcut("toggle-fullscreen", fullscreenGuard, model.ViolationBlockedShortcut),

	{"c", ModCtrl}: shortcut("copy", copyPasteGuard, model.ViolationBlockedShortcut),
	{"v", ModCtrl}: shortcut("paste", copyPasteGuard, model.ViolationBlockedShortcut),
	{"x", ModCtrl}: shortcut("cut", copyPasteGuard, model.ViolationBlockedShortcut),
}

// eventRules maps non-keyboard events to their rule. Visibility, blur and
// fullscreen exit cannot be prevented, only recorded.
var eventRules = map[EventKind]Rule{
	EventContextMenu:      shortcut("context-menu", rightClickGuard, model.ViolationRightClick),
	EventCopy:             shortcut("copy-event", copyPasteGuard, model.ViolationBlockedShortcut),
	EventCut:              shortcut("cut-event", copyPasteGuard, model.ViolationBlockedShortcut),
	EventPaste:            shortcut("paste-event", copyPasteGuard, model.ViolationBlockedShortcut),
	EventVisibilityHidden: {Name: "tab-hidden", Guard: tabSwitchGuard, Violation: model.ViolationTabSwitch},
	EventWindowBlur:       {Name: "window-blur", Guard: tabSwitchGuard, Violation: model.ViolationWindowBlur},
	EventFullscreenExit:   {Name: "fullscreen-exit", Guard: fullscreenGuard, Violation: model.ViolationFullscreenExit},
}

// Dispatch looks up the rule for ev under policy p. The second result is
// false when the event is allowed.
func Dispatch(p Policy, ev Event) (Rule, bool) {
	var (
		rule Rule
		ok   bool
	)
	if ev.Kind == EventKeyDown {
		rule, ok = keyRules[chord{key: ev.NormalizedKey(), mods: ev.Modifiers()}]
	} else {
		rule, ok = eventRules[ev.Kind]
	}
	if !ok || !rule.Guard(p) {
		return Rule{}, false
	}
	return rule, true
}
