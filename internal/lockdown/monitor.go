package lockdown

import (
	"errors"
	"time"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// State is the monitor lifecycle.
type State string

const (
	StateInactive           State = "inactive"
	StateAwaitingFullscreen State = "awaiting_fullscreen_consent"
	StateMonitoring         State = "monitoring"
	StateOverridden         State = "overridden"
	StateTerminated         State = "terminated"
)

var (
	ErrNoConsentNeeded     = errors.New("fullscreen consent is not pending")
	ErrOverrideUnavailable = errors.New("override is not available in the current state")
	ErrNoPromptPending     = errors.New("no override prompt is pending")
	ErrOverrideRejected    = errors.New("override password rejected")
	ErrPersonalDisabled    = errors.New("personal override is disabled")
)

// CommandType is an instruction for the client.
type CommandType string

const (
	CmdRequestFullscreen CommandType = "request_fullscreen"
	CmdShowPrompt        CommandType = "show_prompt"
	CmdHidePrompt        CommandType = "hide_prompt"
	CmdRedirect          CommandType = "redirect"
)

// Command is sent to the client alongside a decision or tick.
type Command struct {
	Type   CommandType  `json:"type"`
	Prompt OverrideKind `json:"prompt,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// RedirectViolations is the redirect reason after the violation threshold.
const RedirectViolations = "violation_threshold"

// Decision is the monitor's verdict on one event.
type Decision struct {
	Prevent    bool                   `json:"prevent"`
	Violation  *model.ViolationRecord `json:"violation,omitempty"`
	Commands   []Command              `json:"commands,omitempty"`
	Terminated bool                   `json:"terminated,omitempty"`
}

// Config tunes the monitor.
type Config struct {
	Threshold            int
	FullscreenRetryLimit int
	PersonalEnabled      bool
	PersonalLength       time.Duration
	AdminCombo           *Combination
}

// Monitor is the lockdown state machine for one attempt. It is not safe for
// concurrent use; the attempt controller serializes access.
type Monitor struct {
	policy     Policy
	cfg        Config
	state      State
	count      int
	violations []model.ViolationRecord
	grant      *Grant
	detector   *Detector
	prompt     OverrideKind
	promptAt   time.Time
	fullscreen bool
	retries    int
	comboDay   string
}

// NewMonitor builds a monitor in the inactive state.
func NewMonitor(policy Policy, cfg Config) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.PersonalLength <= 0 {
		cfg.PersonalLength = 10 * time.Minute
	}
	m := &Monitor{
		policy:   policy,
		cfg:      cfg,
		state:    StateInactive,
		detector: NewDetector(),
	}
	if cfg.AdminCombo != nil {
		m.detector.Bind(OverrideAdmin, *cfg.AdminCombo)
	}
	return m
}

// Start leaves the inactive state according to the policy. A policy with no
// flags keeps the monitor inactive.
func (m *Monitor) Start() {
	if m.state != StateInactive || !m.policy.Active() {
		return
	}
	if m.policy.Fullscreen {
		m.state = StateAwaitingFullscreen
		return
	}
	m.state = StateMonitoring
}

// Resume carries the violation count over from an earlier run of the same
// attempt. Reaching the threshold terminates.
func (m *Monitor) Resume(count int) {
	if count <= 0 || m.state == StateInactive {
		return
	}
	m.count = count
	if m.count >= m.cfg.Threshold {
		m.state = StateTerminated
	}
}

// Consent handles the explicit user gesture that allows fullscreen.
func (m *Monitor) Consent() ([]Command, error) {
	if m.state != StateAwaitingFullscreen {
		return nil, ErrNoConsentNeeded
	}
	return []Command{{Type: CmdRequestFullscreen}}, nil
}

// Handle evaluates one browser event.
func (m *Monitor) Handle(ev Event, now time.Time) Decision {
	switch m.state {
	case StateInactive:
		return Decision{}
	case StateTerminated:
		return Decision{Prevent: true, Terminated: true}
	}

	switch ev.Kind {
	case EventKeyDown:
		if m.state == StateMonitoring || m.state == StateOverridden {
			if d, ok := m.detectCombo(ev, now); ok {
				return d
			}
		}
	case EventKeyUp:
		m.detector.KeyUp(ev)
		return Decision{}
	case EventFullscreenEnter:
		m.fullscreen = true
		m.retries = 0
		if m.state == StateAwaitingFullscreen {
			m.state = StateMonitoring
		}
		return Decision{}
	case EventFullscreenExit:
		m.fullscreen = false
	}

	if m.state != StateMonitoring {
		return Decision{}
	}

	rule, ok := Dispatch(m.policy, ev)
	if !ok {
		return Decision{}
	}

	d := Decision{Prevent: rule.Prevent}
	if ev.Kind == EventFullscreenExit {
		m.retries = m.cfg.FullscreenRetryLimit
		d.Commands = append(d.Commands, Command{Type: CmdRequestFullscreen})
	}
	if rule.Violation != "" {
		m.raise(rule.Violation, rule.Name, now, &d)
	}
	return d
}

// Tick runs time-driven transitions: override expiry and fullscreen
// re-entry retries.
func (m *Monitor) Tick(now time.Time) []Command {
	switch m.state {
	case StateOverridden:
		if m.grant != nil && m.grant.Expired(now) {
			return m.restore()
		}
	case StateMonitoring:
		if m.policy.Fullscreen && !m.fullscreen && m.retries > 0 {
			m.retries--
			return []Command{{Type: CmdRequestFullscreen}}
		}
	}
	return nil
}

// PromptPending returns the override kind whose password prompt is open.
func (m *Monitor) PromptPending() OverrideKind { return m.prompt }

// SubmitPersonalPassword checks the locally derived password and grants a
// personal override on success. The password belongs to the day the prompt
// opened, matching the combination that opened it.
func (m *Monitor) SubmitPersonalPassword(password string, now time.Time) (Grant, []Command, error) {
	if !m.cfg.PersonalEnabled {
		return Grant{}, nil, ErrPersonalDisabled
	}
	if m.prompt != OverridePersonal {
		return Grant{}, nil, ErrNoPromptPending
	}
	if password != PersonalPassword(m.promptAt) {
		return Grant{}, m.DismissPrompt(), ErrOverrideRejected
	}
	return m.GrantOverride(OverridePersonal, m.cfg.PersonalLength, now)
}

// GrantOverride activates an override, replacing any active one.
func (m *Monitor) GrantOverride(kind OverrideKind, length time.Duration, now time.Time) (Grant, []Command, error) {
	if m.state != StateMonitoring && m.state != StateOverridden {
		return Grant{}, nil, ErrOverrideUnavailable
	}
	g := Grant{Kind: kind, ActivatedAt: now, ExpiresAt: now.Add(length)}
	m.grant = &g
	m.state = StateOverridden
	m.retries = 0
	m.prompt = ""
	return g, []Command{{Type: CmdHidePrompt}}, nil
}

// DismissPrompt closes an open password prompt.
func (m *Monitor) DismissPrompt() []Command {
	if m.prompt == "" {
		return nil
	}
	m.prompt = ""
	return []Command{{Type: CmdHidePrompt}}
}

// ReEnable ends an active override early.
func (m *Monitor) ReEnable() []Command {
	if m.state != StateOverridden {
		return nil
	}
	return m.restore()
}

// State returns the current state.
func (m *Monitor) State() State { return m.state }

// Count returns the running violation count.
func (m *Monitor) Count() int { return m.count }

// Violations returns a copy of every recorded violation.
func (m *Monitor) Violations() []model.ViolationRecord {
	out := make([]model.ViolationRecord, len(m.violations))
	copy(out, m.violations)
	return out
}

// Grant returns the active override, if any.
func (m *Monitor) Grant() (Grant, bool) {
	if m.grant == nil {
		return Grant{}, false
	}
	return *m.grant, true
}

// Snapshot summarizes the monitor for clients.
func (m *Monitor) Snapshot() *model.LockdownSnapshot {
	s := &model.LockdownSnapshot{
		State:      string(m.state),
		Violations: m.count,
		Threshold:  m.cfg.Threshold,
		Listeners:  m.policy.Listeners(),
	}
	if m.state == StateOverridden && m.grant != nil {
		until := m.grant.ExpiresAt
		s.OverrideKind = string(m.grant.Kind)
		s.OverrideUntil = &until
		s.IndicatorStyle = m.grant.Indicator()
	}
	return s
}

func (m *Monitor) detectCombo(ev Event, now time.Time) (Decision, bool) {
	if m.cfg.PersonalEnabled {
		// The personal combination rotates daily.
		day := now.Format("2006-01-02")
		if day != m.comboDay {
			m.detector.Bind(OverridePersonal, PersonalCombination(now))
			m.comboDay = day
		}
	}
	kind, ok := m.detector.KeyDown(ev)
	if !ok {
		return Decision{}, false
	}
	m.prompt = kind
	m.promptAt = now
	return Decision{Prevent: true, Commands: []Command{{Type: CmdShowPrompt, Prompt: kind}}}, true
}

func (m *Monitor) raise(kind model.ViolationKind, detail string, now time.Time, d *Decision) {
	m.count++
	rec := model.ViolationRecord{Kind: kind, At: now, Count: m.count, Detail: detail}
	m.violations = append(m.violations, rec)
	d.Violation = &rec

	if m.count >= m.cfg.Threshold {
		m.state = StateTerminated
		m.grant = nil
		m.prompt = ""
		m.retries = 0
		d.Prevent = true
		d.Terminated = true
		d.Commands = append(d.Commands, Command{Type: CmdRedirect, Reason: RedirectViolations})
	}
}

func (m *Monitor) restore() []Command {
	m.state = StateMonitoring
	m.grant = nil
	if m.policy.Fullscreen && !m.fullscreen {
		m.retries = m.cfg.FullscreenRetryLimit
		return []Command{{Type: CmdRequestFullscreen}}
	}
	return nil
}
