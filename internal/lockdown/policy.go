// Package lockdown enforces a quiz's browser security policy. The browser
// reports raw events; the Monitor decides whether the default action is
// prevented, records violations and issues commands back to the client.
package lockdown

import (
	"sort"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// Policy is the effective set of lockdown flags.
type Policy struct {
	Fullscreen bool
	RightClick bool
	CopyPaste  bool
	TabSwitch  bool
	Proctoring bool
}

// PolicyFrom expands quiz security settings. Proctoring mode implies every
// other flag. A nil settings value yields an inactive policy.
func PolicyFrom(s *model.SecuritySettings) Policy {
	if s == nil {
		return Policy{}
	}
	if s.EnableProctoringMode {
		return Policy{Fullscreen: true, RightClick: true, CopyPaste: true, TabSwitch: true, Proctoring: true}
	}
	return Policy{
		Fullscreen: s.EnableFullscreen,
		RightClick: s.DisableRightClick,
		CopyPaste:  s.DisableCopyPaste,
		TabSwitch:  s.DisableTabSwitch,
	}
}

// Active reports whether any flag is set.
func (p Policy) Active() bool {
	return p.Fullscreen || p.RightClick || p.CopyPaste || p.TabSwitch || p.Proctoring
}

// Listeners returns the DOM event types the client has to install for this
// policy. An inactive policy needs none.
func (p Policy) Listeners() []string {
	if !p.Active() {
		return nil
	}
	set := map[string]struct{}{
		"keydown": {},
		"keyup":   {},
	}
	for kind, rule := range eventRules {
		if rule.Guard(p) {
			set[domEventFor(kind)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func domEventFor(kind EventKind) string {
	switch kind {
	case EventVisibilityHidden:
		return "visibilitychange"
	case EventWindowBlur:
		return "blur"
	case EventFullscreenExit, EventFullscreenEnter:
		return "fullscreenchange"
	default:
		return string(kind)
	}
}
