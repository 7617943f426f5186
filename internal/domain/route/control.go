// Package route models the event's controls, the two start variants and the
// waves that select between them.
package route

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Leg is the half of the route a control belongs to.
type Leg int

const (
	North Leg = iota
	South
)

func (l Leg) String() string {
	if l == South {
		return "South"
	}
	return "North"
}

// MarshalText renders the leg as "North"/"South".
func (l Leg) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts anything ParseLeg does.
func (l *Leg) UnmarshalText(b []byte) error {
	v, err := ParseLeg(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLeg accepts "north", "N", "south", "S" in any case.
func ParseLeg(s string) (Leg, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n":
		return North, nil
	case "south", "s":
		return South, nil
	}
	return North, fmt.Errorf("%w: %q", ErrInvalidLeg, s)
}

// Control is a named waypoint at a cumulative distance from the variant's start.
type Control struct {
	Name string  `json:"name"`
	Km   float64 `json:"km"`
	Leg  Leg     `json:"leg"`
}

// Variant is one ordered control sequence. Offset is the distance every
// shared control is shifted by relative to the zero-offset variant.
type Variant struct {
	Name         string
	Offset       float64
	DefaultStart time.Duration // time of day on the event date
	Controls     []Control
}

// TotalKm is the distance of the last control.
func (v Variant) TotalKm() float64 {
	if len(v.Controls) == 0 {
		return 0
	}
	return v.Controls[len(v.Controls)-1].Km
}

// Start returns the variant's first control.
func (v Variant) Start() Control {
	if len(v.Controls) == 0 {
		return Control{Name: StartName}
	}
	return v.Controls[0]
}

// Next returns the first control strictly beyond km.
func (v Variant) Next(km float64) (Control, bool) {
	for _, c := range v.Controls {
		if c.Km > km {
			return c, true
		}
	}
	return Control{}, false
}

// IsFinal reports whether km is at or beyond the finish.
func (v Variant) IsFinal(km float64) bool {
	return len(v.Controls) > 0 && km >= v.TotalKm()
}

// MergedControl is an entry of the occupancy view where both starts are one.
type MergedControl struct {
	ID string `json:"id"`
	Control
}

// mergedID derives the occupancy bucket id for the control at index i.
func mergedID(c Control, i int) string {
	if i == 0 {
		return startID
	}
	return slug(c.Name) + "-" + strings.ToLower(c.Leg.String()[:1])
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
