// Package timefmt turns the feed's checkpoint timestamps into instants on the
// event's calendar and provides the "now" they are compared against.
package timefmt

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // event zone must resolve on hosts without zoneinfo
)

// EventZone is the timezone the event runs in.
const EventZone = "Europe/London"

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
	daysPerWeek    = 7
)

var (
	dateLayout = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\s+(\d{1,2}):(\d{2})$`) //nolint:gochecknoglobals // compiled once
	dayLayout  = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2}):(\d{2})$`)         //nolint:gochecknoglobals // compiled once
)

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLocation sets the event timezone.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithEventStart sets the first calendar day of the event.
func WithEventStart(year int, month time.Month, day int) Option {
	return func(n *Normalizer) {
		n.year, n.month, n.day = year, month, day
	}
}

// WithClock replaces the system clock.
func WithClock(clock func() time.Time) Option {
	return func(n *Normalizer) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithNaiveArithmetic reconstructs every instant from event-local wall clock
// fields in a zone-less location. Differences then ignore DST transitions.
func WithNaiveArithmetic(naive bool) Option {
	return func(n *Normalizer) { n.naive = naive }
}

// Normalizer converts between the feed's timestamp encodings and instants.
// All instants it returns share one location, so they can be subtracted.
type Normalizer struct {
	loc   *time.Location
	year  int
	month time.Month
	day   int
	clock func() time.Time
	naive bool
}

// New builds a Normalizer. Without WithEventStart the event starts on the
// current date in the event zone.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{clock: time.Now}
	if loc, err := time.LoadLocation(EventZone); err == nil {
		n.loc = loc
	} else {
		n.loc = time.UTC
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.year == 0 {
		n.year, n.month, n.day = n.clock().In(n.loc).Date()
	}
	return n
}

// arith is the location instants are reconstructed in.
func (n *Normalizer) arith() *time.Location {
	if n.naive {
		return time.UTC
	}
	return n.loc
}

// Location returns the event timezone.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Now renders the clock into event-local calendar fields and rebuilds an
// instant from them.
func (n *Normalizer) Now() time.Time {
	return n.Wall(n.clock())
}

// Wall rebuilds t from its event-local wall clock fields.
func (n *Normalizer) Wall(t time.Time) time.Time {
	l := t.In(n.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), n.arith())
}

// EventDate returns midnight at the start of the event.
func (n *Normalizer) EventDate() time.Time {
	return time.Date(n.year, n.month, n.day, 0, 0, 0, 0, n.arith())
}

// At returns the instant offset from midnight on the event date by a time of day.
func (n *Normalizer) At(tod time.Duration) time.Time {
	d := n.EventDate()
	h := int(tod / time.Hour)
	m := int((tod % time.Hour) / time.Minute)
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, d.Location())
}

// Parse converts a checkpoint timestamp. It accepts "D/M HH:MM" in the event
// year and "DayName HH:MM" within the seven days from the event start. It
// reports false for anything else.
func (n *Normalizer) Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if m := dateLayout.FindStringSubmatch(raw); m != nil {
		return n.parseDate(m[1], m[2], m[3], m[4])
	}
	if m := dayLayout.FindStringSubmatch(raw); m != nil {
		return n.parseDay(m[1], m[2], m[3])
	}
	return time.Time{}, false
}

func (n *Normalizer) parseDate(ds, ms, hs, mins string) (time.Time, bool) {
	day, err1 := strconv.Atoi(ds)
	month, err2 := strconv.Atoi(ms)
	h, mm, ok := clockFields(hs, mins)
	if err1 != nil || err2 != nil || !ok || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(n.year, time.Month(month), day, h, mm, 0, 0, n.arith())
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false // 31/2 and friends
	}
	return t, true
}

func (n *Normalizer) parseDay(name, hs, mins string) (time.Time, bool) {
	wd, ok := ParseWeekday(name)
	if !ok {
		return time.Time{}, false
	}
	h, mm, ok := clockFields(hs, mins)
	if !ok {
		return time.Time{}, false
	}
	start := n.EventDate()
	offset := (int(wd) - int(start.Weekday()) + daysPerWeek) % daysPerWeek
	return time.Date(start.Year(), start.Month(), start.Day()+offset, h, mm, 0, 0, start.Location()), true
}

func clockFields(hs, ms string) (int, int, bool) {
	h, err1 := strconv.Atoi(hs)
	m, err2 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// ParseWeekday accepts a full English weekday name in any case.
func ParseWeekday(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, true
		}
	}
	return time.Sunday, false
}

// FormatDayTime renders t as "Sunday 04:00".
func (n *Normalizer) FormatDayTime(t time.Time) string {
	t = n.Wall(t)
	return fmt.Sprintf("%s %02d:%02d", t.Weekday(), t.Hour(), t.Minute())
}

// FormatDate renders t as "3/8 04:00".
func (n *Normalizer) FormatDate(t time.Time) string {
	t = n.Wall(t)
	return fmt.Sprintf("%d/%d %02d:%02d", t.Day(), int(t.Month()), t.Hour(), t.Minute())
}

// MinutesBetween is the floor of b-a in whole minutes. Callers treat a
// negative result as "not reached yet".
func MinutesBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Minutes()))
}

// ClockMinutes differences two instants by time of day only, adding a day
// when the later clock reading is numerically smaller (midnight crossed).
func ClockMinutes(a, b time.Time) int {
	am := a.Hour()*minutesPerHour + a.Minute()
	bm := b.Hour()*minutesPerHour + b.Minute()
	d := bm - am
	if d < 0 {
		d += minutesPerDay
	}
	return d
}

// FormatElapsed renders minutes as "1d 0h 50m", dropping leading zero units.
// Negative input renders as "0m".
func FormatElapsed(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	d := minutes / minutesPerDay
	h := (minutes % minutesPerDay) / minutesPerHour
	m := minutes % minutesPerHour
	switch {
	case d > 0:
		return fmt.Sprintf("%dd %dh %dm", d, h, m)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
