package lockdown

import (
	"fmt"
	"strconv"
	"time"
)

// OverrideKind distinguishes the two unlock paths.
type OverrideKind string

const (
	OverridePersonal OverrideKind = "personal"
	OverrideAdmin    OverrideKind = "admin"
)

// Indicator styles shown while an override is active.
const (
	IndicatorBanner = "banner"
	IndicatorMarker = "marker"
)

// Grant is an active override.
type Grant struct {
	Kind        OverrideKind `json:"kind"`
	ActivatedAt time.Time    `json:"activated_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Expired reports whether the grant has run out at now.
func (g Grant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// Indicator returns the on-screen marker: admin overrides show a visible
// banner, personal ones a near-invisible marker.
func (g Grant) Indicator() string {
	if g.Kind == OverrideAdmin {
		return IndicatorBanner
	}
	return IndicatorMarker
}

// PersonalCombination derives the day's two-digit unlock combination from
// day-of-month and month, both modulo 9.
//
// Anyone who can read this code can derive the combination; the personal
// override is a convenience, not a security boundary. The admin path is the
// only server-verified override.
func PersonalCombination(day time.Time) Combination {
	first := day.Day() % 9
	second := int(day.Month()) % 9
	if first == second {
		second = (second + 1) % 10
	}
	return Combination{Keys: []string{strconv.Itoa(first), strconv.Itoa(second)}}
}

// PersonalPassword derives the day's personal override password. Same
// caveat as PersonalCombination.
func PersonalPassword(day time.Time) string {
	d, m, y := day.Day(), int(day.Month()), day.Year()%100
	return fmt.Sprintf("ex%02d%02d%d", (d*7)%100, (m*11)%100, (y+d+m)%10)
}
