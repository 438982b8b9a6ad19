package lockdown

import (
	"testing"

	"github.com/stemsi/exstem-attempt/internal/model"
)

var fullPolicy = PolicyFrom(&model.SecuritySettings{EnableProctoringMode: true})

func TestDispatchTable(t *testing.T) {
	cases := []struct {
		name    string
		policy  Policy
		event   Event
		matched bool
		prevent bool
		kind    model.ViolationKind
	}{
		{"ctrl+t blocked", fullPolicy, Event{Kind: EventKeyDown, Key: "t", Ctrl: true}, true, true, model.ViolationBlockedShortcut},
		{"meta folds into ctrl", fullPolicy, Event{Kind: EventKeyDown, Key: "W", Meta: true}, true, true, model.ViolationBlockedShortcut},
		{"ctrl+shift+n", fullPolicy, Event{Kind: EventKeyDown, Key: "N", Ctrl: true, Shift: true}, true, true, model.ViolationBlockedShortcut},
		{"alt+tab", fullPolicy, Event{Kind: EventKeyDown, Key: "Tab", Alt: true}, true, true, model.ViolationBlockedShortcut},
		{"f12 dev tools", fullPolicy, Event{Kind: EventKeyDown, Key: "F12"}, true, true, model.ViolationDevTools},
		{"ctrl+shift+i dev tools", fullPolicy, Event{Kind: EventKeyDown, Key: "I", Ctrl: true, Shift: true}, true, true, model.ViolationDevTools},
		{"escape", fullPolicy, Event{Kind: EventKeyDown, Key: "Escape"}, true, true, model.ViolationBlockedShortcut},
		{"ctrl+c", fullPolicy, Event{Kind: EventKeyDown, Key: "c", Ctrl: true}, true, true, model.ViolationBlockedShortcut},
		{"plain letter allowed", fullPolicy, Event{Kind: EventKeyDown, Key: "a"}, false, false, ""},
		{"ctrl+i allowed", fullPolicy, Event{Kind: EventKeyDown, Key: "i", Ctrl: true}, false, false, ""},
		{"context menu", fullPolicy, Event{Kind: EventContextMenu}, true, true, model.ViolationRightClick},
		{"paste event", fullPolicy, Event{Kind: EventPaste}, true, true, model.ViolationBlockedShortcut},
		{"tab hidden not preventable", fullPolicy, Event{Kind: EventVisibilityHidden}, true, false, model.ViolationTabSwitch},
		{"blur", fullPolicy, Event{Kind: EventWindowBlur}, true, false, model.ViolationWindowBlur},
		{"fullscreen exit", fullPolicy, Event{Kind: EventFullscreenExit}, true, false, model.ViolationFullscreenExit},

		{"copy allowed without flag", Policy{RightClick: true}, Event{Kind: EventKeyDown, Key: "c", Ctrl: true}, false, false, ""},
		{"escape allowed without fullscreen", Policy{TabSwitch: true}, Event{Kind: EventKeyDown, Key: "Escape"}, false, false, ""},
		{"dev tools guarded by any flag", Policy{CopyPaste: true}, Event{Kind: EventKeyDown, Key: "F12"}, true, true, model.ViolationDevTools},
		{"right click allowed without flag", Policy{CopyPaste: true}, Event{Kind: EventContextMenu}, false, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := Dispatch(tc.policy, tc.event)
			if ok != tc.matched {
				t.Fatalf("matched = %v, want %v", ok, tc.matched)
			}
			if rule.Prevent != tc.prevent {
				t.Fatalf("prevent = %v, want %v", rule.Prevent, tc.prevent)
			}
			if rule.Violation != tc.kind {
				t.Fatalf("violation = %q, want %q", rule.Violation, tc.kind)
			}
		})
	}
}

func TestPolicyFromProctoringImpliesAll(t *testing.T) {
	p := PolicyFrom(&model.SecuritySettings{EnableProctoringMode: true})
	if !(p.Fullscreen && p.RightClick && p.CopyPaste && p.TabSwitch) {
		t.Fatalf("proctoring did not expand: %+v", p)
	}
	if PolicyFrom(nil).Active() {
		t.Fatal("nil settings must be inactive")
	}
	if PolicyFrom(&model.SecuritySettings{}).Active() {
		t.Fatal("empty settings must be inactive")
	}
}

func TestListeners(t *testing.T) {
	if got := (Policy{}).Listeners(); len(got) != 0 {
		t.Fatalf("inactive policy installs listeners: %v", got)
	}

	got := fullPolicy.Listeners()
	want := []string{"blur", "contextmenu", "copy", "cut", "fullscreenchange", "keydown", "keyup", "paste", "visibilitychange"}
	if len(got) != len(want) {
		t.Fatalf("Listeners = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Listeners = %v, want %v", got, want)
		}
	}
}
