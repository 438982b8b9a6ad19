package lockdown

import (
	"errors"
	"testing"
	"time"

	"github.com/stemsi/exstem-attempt/internal/model"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func hasCommand(cmds []Command, typ CommandType) bool {
	for _, c := range cmds {
		if c.Type == typ {
			return true
		}
	}
	return false
}

func monitoringMonitor(t *testing.T, cfg Config) *Monitor {
	t.Helper()
	m := NewMonitor(fullPolicy, cfg)
	m.Start()
	if m.State() != StateAwaitingFullscreen {
		t.Fatalf("state = %s, want awaiting consent", m.State())
	}
	cmds, err := m.Consent()
	if err != nil || !hasCommand(cmds, CmdRequestFullscreen) {
		t.Fatalf("Consent = %v, %v", cmds, err)
	}
	m.Handle(Event{Kind: EventFullscreenEnter}, t0)
	if m.State() != StateMonitoring {
		t.Fatalf("state = %s, want monitoring", m.State())
	}
	return m
}

func TestInactivePolicyIsNoOp(t *testing.T) {
	m := NewMonitor(Policy{}, Config{})
	m.Start()
	if m.State() != StateInactive {
		t.Fatalf("state = %s", m.State())
	}
	events := []Event{
		{Kind: EventKeyDown, Key: "F12"},
		{Kind: EventContextMenu},
		{Kind: EventVisibilityHidden},
		{Kind: EventKeyDown, Key: "c", Ctrl: true},
	}
	for _, ev := range events {
		if d := m.Handle(ev, t0); d.Prevent || d.Violation != nil || len(d.Commands) != 0 {
			t.Fatalf("%+v produced %+v", ev, d)
		}
	}
	if m.Count() != 0 || len(m.Snapshot().Listeners) != 0 {
		t.Fatal("inactive monitor recorded state")
	}
	if _, err := m.Consent(); !errors.Is(err, ErrNoConsentNeeded) {
		t.Fatalf("Consent err = %v", err)
	}
}

func TestNonFullscreenPolicyMonitorsImmediately(t *testing.T) {
	m := NewMonitor(Policy{RightClick: true}, Config{})
	m.Start()
	if m.State() != StateMonitoring {
		t.Fatalf("state = %s", m.State())
	}
	d := m.Handle(Event{Kind: EventContextMenu}, t0)
	if !d.Prevent || d.Violation == nil || d.Violation.Kind != model.ViolationRightClick {
		t.Fatalf("decision = %+v", d)
	}
}

func TestNoViolationsBeforeConsent(t *testing.T) {
	m := NewMonitor(fullPolicy, Config{})
	m.Start()
	d := m.Handle(Event{Kind: EventVisibilityHidden}, t0)
	if d.Violation != nil || m.Count() != 0 {
		t.Fatalf("violation recorded while awaiting consent: %+v", d)
	}
}

func TestThresholdTerminatesDespiteOverrideHistory(t *testing.T) {
	m := monitoringMonitor(t, Config{Threshold: 5, PersonalEnabled: true})
	now := t0

	for i := 0; i < 3; i++ {
		now = now.Add(time.Second)
		m.Handle(Event{Kind: EventContextMenu}, now)
	}

	// Personal override between violation 3 and 4.
	combo := PersonalCombination(now)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[0]}, now)
	d := m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[1]}, now)
	if !hasCommand(d.Commands, CmdShowPrompt) || m.PromptPending() != OverridePersonal {
		t.Fatalf("combo did not open the prompt: %+v", d)
	}
	if _, _, err := m.SubmitPersonalPassword(PersonalPassword(now), now); err != nil {
		t.Fatalf("SubmitPersonalPassword: %v", err)
	}
	if m.State() != StateOverridden {
		t.Fatalf("state = %s, want overridden", m.State())
	}

	d = m.Handle(Event{Kind: EventContextMenu}, now)
	if d.Violation != nil {
		t.Fatal("violation recorded while overridden")
	}

	m.ReEnable()
	if m.State() != StateMonitoring {
		t.Fatalf("state = %s after ReEnable", m.State())
	}

	now = now.Add(time.Second)
	d = m.Handle(Event{Kind: EventKeyDown, Key: "F12"}, now)
	if d.Violation == nil || d.Violation.Count != 4 || d.Terminated {
		t.Fatalf("4th violation = %+v", d)
	}

	now = now.Add(time.Second)
	d = m.Handle(Event{Kind: EventWindowBlur}, now)
	if !d.Terminated || !hasCommand(d.Commands, CmdRedirect) {
		t.Fatalf("5th violation did not terminate: %+v", d)
	}
	if m.State() != StateTerminated || m.Count() != 5 || len(m.Violations()) != 5 {
		t.Fatalf("state=%s count=%d", m.State(), m.Count())
	}

	d = m.Handle(Event{Kind: EventKeyDown, Key: "a"}, now)
	if !d.Prevent || !d.Terminated {
		t.Fatal("terminated monitor must block everything")
	}
	if _, _, err := m.GrantOverride(OverrideAdmin, time.Minute, now); !errors.Is(err, ErrOverrideUnavailable) {
		t.Fatalf("override after termination: %v", err)
	}
}

func TestAdminOverrideExpiresBackToMonitoring(t *testing.T) {
	combo, _ := ParseCombination("ctrl+5")
	m := monitoringMonitor(t, Config{AdminCombo: &combo})

	d := m.Handle(Event{Kind: EventKeyDown, Key: "5", Ctrl: true}, t0)
	if !d.Prevent || m.PromptPending() != OverrideAdmin {
		t.Fatalf("admin combo not detected: %+v", d)
	}

	grant, cmds, err := m.GrantOverride(OverrideAdmin, 300*time.Second, t0)
	if err != nil || !hasCommand(cmds, CmdHidePrompt) {
		t.Fatalf("GrantOverride = %v, %v", cmds, err)
	}
	if grant.Indicator() != IndicatorBanner {
		t.Fatalf("indicator = %s", grant.Indicator())
	}
	snap := m.Snapshot()
	if snap.OverrideKind != "admin" || snap.OverrideUntil == nil || !snap.OverrideUntil.Equal(t0.Add(300*time.Second)) {
		t.Fatalf("snapshot = %+v", snap)
	}

	if cmds := m.Tick(t0.Add(299 * time.Second)); cmds != nil || m.State() != StateOverridden {
		t.Fatal("override ended early")
	}
	m.Tick(t0.Add(300 * time.Second))
	if m.State() != StateMonitoring {
		t.Fatalf("state = %s, want monitoring", m.State())
	}
	if _, ok := m.Grant(); ok {
		t.Fatal("grant survived expiry")
	}
}

func TestOverrideExpiryRequestsFullscreenWhenOut(t *testing.T) {
	m := monitoringMonitor(t, Config{FullscreenRetryLimit: 2})
	if _, _, err := m.GrantOverride(OverrideAdmin, time.Minute, t0); err != nil {
		t.Fatal(err)
	}
	// Leaving fullscreen while overridden is not a violation.
	if d := m.Handle(Event{Kind: EventFullscreenExit}, t0); d.Violation != nil {
		t.Fatal("violation while overridden")
	}
	cmds := m.Tick(t0.Add(time.Minute))
	if !hasCommand(cmds, CmdRequestFullscreen) {
		t.Fatalf("expiry commands = %+v", cmds)
	}
}

func TestFullscreenExitRetriesUntilLimit(t *testing.T) {
	m := monitoringMonitor(t, Config{FullscreenRetryLimit: 2})

	d := m.Handle(Event{Kind: EventFullscreenExit}, t0)
	if d.Violation == nil || d.Violation.Kind != model.ViolationFullscreenExit {
		t.Fatalf("decision = %+v", d)
	}
	if !hasCommand(d.Commands, CmdRequestFullscreen) {
		t.Fatal("exit did not request fullscreen")
	}

	for i := 0; i < 2; i++ {
		if !hasCommand(m.Tick(t0.Add(time.Duration(i+1)*time.Second)), CmdRequestFullscreen) {
			t.Fatalf("retry %d missing", i+1)
		}
	}
	if cmds := m.Tick(t0.Add(3 * time.Second)); cmds != nil {
		t.Fatalf("retries beyond limit: %+v", cmds)
	}

	m.Handle(Event{Kind: EventFullscreenExit}, t0.Add(4*time.Second))
	m.Handle(Event{Kind: EventFullscreenEnter}, t0.Add(5*time.Second))
	if cmds := m.Tick(t0.Add(6 * time.Second)); cmds != nil {
		t.Fatal("retry after re-entering fullscreen")
	}
}

func TestPersonalPasswordFlow(t *testing.T) {
	m := monitoringMonitor(t, Config{PersonalEnabled: true})

	if _, _, err := m.SubmitPersonalPassword("anything", t0); !errors.Is(err, ErrNoPromptPending) {
		t.Fatalf("err = %v", err)
	}

	combo := PersonalCombination(t0)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[0]}, t0)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[1]}, t0)

	_, cmds, err := m.SubmitPersonalPassword("wrong", t0)
	if !errors.Is(err, ErrOverrideRejected) || !hasCommand(cmds, CmdHidePrompt) {
		t.Fatalf("wrong password = %v, %v", cmds, err)
	}
	if m.State() != StateMonitoring || m.PromptPending() != "" {
		t.Fatal("rejected password changed state")
	}

	m.Handle(Event{Kind: EventKeyUp, Key: combo.Keys[1]}, t0)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[0]}, t0)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[1]}, t0)
	grant, _, err := m.SubmitPersonalPassword(PersonalPassword(t0), t0)
	if err != nil {
		t.Fatal(err)
	}
	if grant.Indicator() != IndicatorMarker || !grant.ExpiresAt.Equal(t0.Add(10*time.Minute)) {
		t.Fatalf("grant = %+v", grant)
	}
}

func TestPersonalDisabled(t *testing.T) {
	m := monitoringMonitor(t, Config{})
	combo := PersonalCombination(t0)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[0]}, t0)
	d := m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[1]}, t0)
	if hasCommand(d.Commands, CmdShowPrompt) {
		t.Fatal("personal combo active while disabled")
	}
	if _, _, err := m.SubmitPersonalPassword(PersonalPassword(t0), t0); !errors.Is(err, ErrPersonalDisabled) {
		t.Fatalf("err = %v", err)
	}
}

func TestPersonalPasswordUsesPromptDay(t *testing.T) {
	m := monitoringMonitor(t, Config{PersonalEnabled: true})
	opened := time.Date(2026, 3, 14, 23, 59, 50, 0, time.UTC)
	submitted := opened.Add(20 * time.Second)
	if PersonalPassword(opened) == PersonalPassword(submitted) {
		t.Fatal("fixture needs passwords that differ across midnight")
	}

	combo := PersonalCombination(opened)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[0]}, opened)
	m.Handle(Event{Kind: EventKeyDown, Key: combo.Keys[1]}, opened)

	if _, _, err := m.SubmitPersonalPassword(PersonalPassword(opened), submitted); err != nil {
		t.Fatalf("password of the prompt's day rejected: %v", err)
	}
	if m.State() != StateOverridden {
		t.Fatalf("state = %s", m.State())
	}
}

func TestResumeCarriesViolationCount(t *testing.T) {
	m := monitoringMonitor(t, Config{Threshold: 5})
	m.Resume(3)
	if m.Count() != 3 || m.State() != StateMonitoring {
		t.Fatalf("count = %d state = %s", m.Count(), m.State())
	}
	m.Handle(Event{Kind: EventContextMenu}, t0)
	d := m.Handle(Event{Kind: EventContextMenu}, t0.Add(time.Second))
	if !d.Terminated || d.Violation == nil || d.Violation.Count != 5 {
		t.Fatalf("5th violation after resume = %+v", d)
	}

	full := monitoringMonitor(t, Config{Threshold: 5})
	full.Resume(5)
	if d := full.Handle(Event{Kind: EventKeyDown, Key: "a"}, t0); full.State() != StateTerminated || !d.Terminated {
		t.Fatalf("resume at threshold: state = %s decision = %+v", full.State(), d)
	}
}
