// Package status classifies a rider's lifecycle state from the upstream
// status and the derived progress, including the stalled override.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/audax/internal/domain/progress"
	"github.com/okian/audax/internal/domain/timefmt"
)

// Status is a rider lifecycle state. Unknown only appears as a reported
// status; effective statuses are always one of the other four.
type Status int

const (
	Unknown Status = iota
	NotStarted
	InProgress
	Finished
	DNF
)

var names = map[Status]string{ //nolint:gochecknoglobals // static lookup
	Unknown:    "unknown",
	NotStarted: "not_started",
	InProgress: "in_progress",
	Finished:   "finished",
	DNF:        "dnf",
}

// All lists the effective statuses in display order.
func All() []Status {
	return []Status{NotStarted, InProgress, Finished, DNF}
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return names[Unknown]
}

// MarshalText renders the snake_case name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any spelling ParseReported accepts.
func (s *Status) UnmarshalText(b []byte) error {
	v := ParseReported(string(b))
	if v == Unknown && normalize(string(b)) != names[Unknown] {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(b))
	}
	*s = v
	return nil
}

// ParseReported maps the upstream status text onto a Status. Case, spaces,
// hyphens and underscores are ignored. Unrecognised text is Unknown.
func ParseReported(raw string) Status {
	switch normalize(raw) {
	case "not_started", "notstarted", "registered", "pending", "dns":
		return NotStarted
	case "in_progress", "inprogress", "started", "riding", "active", "on_course":
		return InProgress
	case "finished", "finish", "completed", "complete":
		return Finished
	case "dnf", "did_not_finish", "abandoned", "retired", "withdrawn", "scratched":
		return DNF
	}
	return Unknown
}

func normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

// Reason explains where an effective status came from.
type Reason string

const (
	ReasonReported Reason = "reported"
	ReasonStalled  Reason = "stalled"
	ReasonInferred Reason = "inferred"
)

// Verdict is the effective status of one rider at one instant.
type Verdict struct {
	Status   Status `json:"status"`
	Reported Status `json:"reported"`
	Stalled  bool   `json:"stalled"`
	Reason   Reason `json:"reason"`
}

// Moving reports whether the position estimate may extrapolate.
func (v Verdict) Moving() bool {
	return v.Status == InProgress
}

// DefaultStallMinutes is twelve hours.
const DefaultStallMinutes = 12 * 60

// Option configures a Classifier.
type Option func(*Classifier)

// WithStallMinutes sets the inactivity threshold. Non-positive values keep
// the default.
func WithStallMinutes(minutes int) Option {
	return func(c *Classifier) {
		if minutes > 0 {
			c.stallMinutes = minutes
		}
	}
}

// Classifier is the single place effective statuses are decided.
type Classifier struct {
	stallMinutes int
}

// NewClassifier builds a Classifier.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{stallMinutes: DefaultStallMinutes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StallMinutes returns the inactivity threshold.
func (c *Classifier) StallMinutes() int { return c.stallMinutes }

// IsStalled is true when the rider is neither finished nor DNF upstream, has
// not reached the final control, and the last parseable checkpoint is at
// least the threshold old. With no parseable checkpoint staleness cannot be
// determined and the rider is not stalled.
func (c *Classifier) IsStalled(reported Status, p progress.Progress, now time.Time) bool {
	if reported == Finished || reported == DNF {
		return false
	}
	if p.Checkpoints == 0 || !p.HasLastSeen || p.AtFinish {
		return false
	}
	return timefmt.MinutesBetween(p.LastSeen, now) >= c.stallMinutes
}

// Effective applies dnf > stalled > finished > in_progress > not_started.
// An Unknown reported status is inferred from progress: the final control
// means finished, any checkpoint means in progress.
func (c *Classifier) Effective(reported Status, p progress.Progress, now time.Time) Verdict {
	v := Verdict{Reported: reported, Reason: ReasonReported}
	switch {
	case reported == DNF:
		v.Status = DNF
	case c.IsStalled(reported, p, now):
		v.Status, v.Stalled, v.Reason = DNF, true, ReasonStalled
	case reported == Finished, reported == InProgress, reported == NotStarted:
		v.Status = reported
	case p.AtFinish:
		v.Status, v.Reason = Finished, ReasonInferred
	case p.Checkpoints > 0:
		v.Status, v.Reason = InProgress, ReasonInferred
	default:
		v.Status, v.Reason = NotStarted, ReasonInferred
	}
	return v
}
