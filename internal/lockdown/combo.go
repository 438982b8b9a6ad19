package lockdown

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-attempt/internal/model"
)

// ErrInvalidCombination is returned for unparsable override combinations.
var ErrInvalidCombination = errors.New("invalid key combination")

// Combination is either a modifier plus one digit (ctrl+5) or two plain
// digits held together (1+2).
type Combination struct {
	Modifier Modifiers
	Keys     []string
}

// ParseCombination parses "ctrl+5", "alt+7" or "1+2".
func ParseCombination(raw string) (Combination, error) {
	var c Combination
	for _, part := range strings.Split(raw, "+") {
		tok := normalizeKey(part)
		switch tok {
		case "":
			return Combination{}, fmt.Errorf("%w: %q", ErrInvalidCombination, raw)
		case "ctrl", "control", "cmd", "meta":
			c.Modifier |= ModCtrl
		case "alt", "option":
			c.Modifier |= ModAlt
		case "shift":
			c.Modifier |= ModShift
		default:
			if len(tok) != 1 || tok[0] < '0' || tok[0] > '9' {
				return Combination{}, fmt.Errorf("%w: %q is not a digit", ErrInvalidCombination, part)
			}
			c.Keys = append(c.Keys, tok)
		}
	}
	switch {
	case c.Modifier != 0 && len(c.Keys) == 1:
	case c.Modifier == 0 && len(c.Keys) == 2 && c.Keys[0] != c.Keys[1]:
	default:
		return Combination{}, fmt.Errorf("%w: %q", ErrInvalidCombination, raw)
	}
	return c, nil
}

// CombinationFrom converts the upstream settings representation.
func CombinationFrom(kc *model.KeyCombination) (Combination, error) {
	if kc == nil {
		return Combination{}, ErrInvalidCombination
	}
	if kc.Modifier == "" {
		return ParseCombination(kc.Key)
	}
	return ParseCombination(kc.Modifier + "+" + kc.Key)
}

// String renders the combination in ParseCombination syntax.
func (c Combination) String() string {
	parts := make([]string, 0, 3+len(c.Keys))
	if c.Modifier&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if c.Modifier&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	if c.Modifier&ModShift != 0 {
		parts = append(parts, "shift")
	}
	parts = append(parts, c.Keys...)
	return strings.Join(parts, "+")
}

type binding struct {
	kind  OverrideKind
	combo Combination
}

// Detector tracks currently pressed keys and matches override combinations.
type Detector struct {
	pressed  map[string]struct{}
	bindings []binding
}

// NewDetector returns an empty detector.
func NewDetector() *Detector {
	return &Detector{pressed: make(map[string]struct{})}
}

// Bind registers (or replaces) the combination for kind.
func (d *Detector) Bind(kind OverrideKind, c Combination) {
	for i := range d.bindings {
		if d.bindings[i].kind == kind {
			d.bindings[i].combo = c
			return
		}
	}
	d.bindings = append(d.bindings, binding{kind: kind, combo: c})
}

// KeyDown records the key and reports a matched override kind.
func (d *Detector) KeyDown(ev Event) (OverrideKind, bool) {
	key := ev.NormalizedKey()
	if key == "" || isModifierKey(key) {
		return "", false
	}
	d.pressed[key] = struct{}{}

	mods := ev.Modifiers()
	for _, b := range d.bindings {
		if b.combo.Modifier != mods {
			continue
		}
		if d.holds(b.combo.Keys) {
			d.reset()
			return b.kind, true
		}
	}
	return "", false
}

// KeyUp releases the key; the whole set clears once no modifier is held.
func (d *Detector) KeyUp(ev Event) {
	delete(d.pressed, ev.NormalizedKey())
	if ev.Modifiers() == 0 {
		d.reset()
	}
}

// Pressed returns the number of tracked keys.
func (d *Detector) Pressed() int { return len(d.pressed) }

func (d *Detector) holds(keys []string) bool {
	for _, k := range keys {
		if _, ok := d.pressed[k]; !ok {
			return false
		}
	}
	return true
}

func (d *Detector) reset() {
	for k := range d.pressed {
		delete(d.pressed, k)
	}
}
