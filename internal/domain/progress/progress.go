// Package progress derives distance, elapsed time, speed and an estimated
// position for one rider from the checkpoints it has reported.
package progress

import (
	"math"
	"time"

	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/timefmt"
)

const minutesPerDay = 1440

// Policy holds the tunables of the position estimate.
type Policy struct {
	// GraceMinutes after a checkpoint before the estimate starts to move.
	GraceMinutes int
	// DefaultSpeedKmh is used while the rider has no average speed yet.
	DefaultSpeedKmh float64
	// NextControlCap is the share of the gap to the next control the
	// estimate may cover.
	NextControlCap float64
}

// DefaultPolicy is a 10 minute grace, 15 km/h and a 90% cap.
func DefaultPolicy() Policy {
	return Policy{GraceMinutes: 10, DefaultSpeedKmh: 15, NextControlCap: 0.9}
}

// Leg is the movement between two consecutive usable checkpoint records.
type Leg struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	FromKm   float64 `json:"from_km"`
	ToKm     float64 `json:"to_km"`
	Minutes  int     `json:"minutes"`
	SpeedKmh float64 `json:"speed_kmh"`
}

// Progress is recomputed from scratch on every refresh.
type Progress struct {
	RiderID string  `json:"rider_id"`
	Variant string  `json:"variant"`
	Wave    string  `json:"wave"`
	TotalKm float64 `json:"total_km"`

	// FurthestIndex is -1 when no record matched a control.
	FurthestKm    float64       `json:"furthest_km"`
	Furthest      route.Control `json:"furthest"`
	FurthestIndex int           `json:"furthest_index"`
	Next          route.Control `json:"next"`
	HasNext       bool          `json:"has_next"`
	AtFinish      bool          `json:"at_finish"`

	Anchor         time.Time `json:"anchor"`
	AnchorFromWave bool      `json:"anchor_from_wave"`
	LastSeen       time.Time `json:"last_seen"`
	HasLastSeen    bool      `json:"has_last_seen"`

	ElapsedMinutes  int     `json:"elapsed_minutes"`
	HasElapsed      bool    `json:"has_elapsed"`
	OnCourseMinutes int     `json:"on_course_minutes"`
	AverageKmh      float64 `json:"average_kmh"`
	Legs            []Leg   `json:"legs"`
	EstimatedKm     float64 `json:"estimated_km"`
	Percent         float64 `json:"percent"`

	Checkpoints int `json:"checkpoints"`
	Unparseable int `json:"unparseable"`
	Unmatched   int `json:"unmatched"`
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithPolicy replaces the estimate tunables. Non-positive fields keep defaults.
func WithPolicy(p Policy) Option {
	return func(c *Calculator) {
		if p.GraceMinutes > 0 {
			c.policy.GraceMinutes = p.GraceMinutes
		}
		if p.DefaultSpeedKmh > 0 {
			c.policy.DefaultSpeedKmh = p.DefaultSpeedKmh
		}
		if p.NextControlCap > 0 && p.NextControlCap < 1 {
			c.policy.NextControlCap = p.NextControlCap
		}
	}
}

// Calculator computes Progress. It holds no per-rider state.
type Calculator struct {
	routes *route.Model
	times  *timefmt.Normalizer
	policy Policy
}

// NewCalculator binds a route model and a time normalizer.
func NewCalculator(routes *route.Model, times *timefmt.Normalizer, opts ...Option) *Calculator {
	c := &Calculator{routes: routes, times: times, policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective tunables.
func (c *Calculator) Policy() Policy { return c.policy }

// record is one checkpoint after matching and parsing.
type record struct {
	res     route.Resolution
	matched bool
	at      time.Time
	parsed  bool
}

func (c *Calculator) resolve(r model.Rider) []record {
	recs := make([]record, len(r.Checkpoints))
	furthest := 0.0
	for i, cp := range r.Checkpoints {
		var rec record
		rec.res, rec.matched = c.routes.Resolve(cp.Name, r.ID, furthest)
		rec.at, rec.parsed = c.times.Parse(cp.Time)
		if rec.matched && rec.res.Control.Km > furthest {
			furthest = rec.res.Control.Km
		}
		recs[i] = rec
	}
	return recs
}

// Compute derives everything except the position estimate, which needs the
// rider's effective status (see Estimate).
func (c *Calculator) Compute(r model.Rider, now time.Time) Progress {
	v := c.routes.VariantFor(r.ID)
	wave := c.routes.Wave(r.ID)
	p := Progress{
		RiderID:       r.ID,
		Variant:       v.Name,
		Wave:          wave.Code,
		TotalKm:       v.TotalKm(),
		FurthestIndex: -1,
		Checkpoints:   len(r.Checkpoints),
	}

	recs := c.resolve(r)
	for _, rec := range recs {
		if !rec.parsed {
			p.Unparseable++
		}
		if !rec.matched {
			p.Unmatched++
			continue
		}
		if p.FurthestIndex < 0 || rec.res.Control.Km > p.FurthestKm {
			p.FurthestKm = rec.res.Control.Km
			p.Furthest = rec.res.Control
			p.FurthestIndex = rec.res.Index
		}
	}
	p.Next, p.HasNext = v.Next(p.FurthestKm)
	p.AtFinish = p.FurthestIndex >= 0 && v.IsFinal(p.FurthestKm)

	p.Anchor, p.AnchorFromWave = c.anchor(recs, wave)
	if last, ok := lastParsed(recs); ok {
		p.LastSeen, p.HasLastSeen = last.at, true
		p.ElapsedMinutes, p.HasElapsed = elapsed(p.Anchor, last.at)
	}
	// also counts for a rider whose wave has gone without any report yet
	if since := timefmt.MinutesBetween(p.Anchor, now); since > 0 {
		p.OnCourseMinutes = since
	}

	p.AverageKmh = AverageSpeed(p.FurthestKm, p.ElapsedMinutes)
	p.Legs = legs(recs)
	p.EstimatedKm = p.FurthestKm
	p.Percent = ProgressPercent(p.FurthestKm, p.TotalKm)
	return p
}

// anchor is the first parseable record when it is the start control,
// otherwise the scheduled wave start.
func (c *Calculator) anchor(recs []record, wave route.Wave) (time.Time, bool) {
	for _, rec := range recs {
		if !rec.parsed {
			continue
		}
		if rec.matched && rec.res.Index == 0 {
			return rec.at, false
		}
		break
	}
	return c.times.At(wave.Start), true
}

func lastParsed(recs []record) (record, bool) {
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].parsed {
			return recs[i], true
		}
	}
	return record{}, false
}

// elapsed applies the midnight correction to a negative difference and gives
// up when even that stays negative.
func elapsed(from, to time.Time) (int, bool) {
	d := timefmt.MinutesBetween(from, to)
	if d >= 0 {
		return d, true
	}
	if d+minutesPerDay >= 0 {
		return d + minutesPerDay, true
	}
	return 0, false
}

func legs(recs []record) []Leg {
	var out []Leg
	var prev *record
	for i := range recs {
		rec := &recs[i]
		if !rec.parsed || !rec.matched {
			continue
		}
		if prev != nil {
			mins := timefmt.MinutesBetween(prev.at, rec.at)
			// a report older than the previous one, or a repeat of it, has no leg
			if mins < 0 || (mins == 0 && rec.res.Index == prev.res.Index) {
				continue
			}
			out = append(out, Leg{
				From:     prev.res.Control.Name,
				To:       rec.res.Control.Name,
				FromKm:   prev.res.Control.Km,
				ToKm:     rec.res.Control.Km,
				Minutes:  mins,
				SpeedKmh: LegSpeed(prev.res.Control.Km, rec.res.Control.Km, 0, mins),
			})
		}
		prev = rec
	}
	return out
}

// Estimate interpolates the rider's position when moving is true. It stays at
// the furthest confirmed control during the grace period, at the finish, and
// never covers more than the policy's share of the gap to the next control.
func (c *Calculator) Estimate(p Progress, moving bool, now time.Time) float64 {
	if !moving || !p.HasLastSeen || p.AtFinish || !p.HasNext {
		return p.FurthestKm
	}
	since := timefmt.MinutesBetween(p.LastSeen, now)
	if since <= c.policy.GraceMinutes {
		return p.FurthestKm
	}
	speed := p.AverageKmh
	if speed <= 0 {
		speed = c.policy.DefaultSpeedKmh
	}
	projected := p.FurthestKm + speed*float64(since)/60
	limit := p.FurthestKm + c.policy.NextControlCap*(p.Next.Km-p.FurthestKm)
	return math.Min(projected, limit)
}

// FurthestDistance is the largest control distance any record resolves to.
// Record order does not matter; unmatched records count as 0.
func FurthestDistance(checkpoints []model.Checkpoint, routes *route.Model, riderID string) float64 {
	furthest := 0.0
	for _, cp := range checkpoints {
		if r, ok := routes.Resolve(cp.Name, riderID, furthest); ok && r.Control.Km > furthest {
			furthest = r.Control.Km
		}
	}
	return furthest
}

// AverageSpeed is km/h, or 0 when either input is not positive.
func AverageSpeed(km float64, minutes int) float64 {
	if minutes <= 0 || km <= 0 || math.IsNaN(km) || math.IsInf(km, 0) {
		return 0
	}
	return km / (float64(minutes) / 60)
}

// LegSpeed is the speed between two records given their distances and
// elapsed minutes. It is 0 for non-positive deltas.
func LegSpeed(prevKm, currKm float64, prevElapsed, currElapsed int) float64 {
	return AverageSpeed(currKm-prevKm, currElapsed-prevElapsed)
}

// ProgressPercent is km over total, clamped to 0..100.
func ProgressPercent(km, total float64) float64 {
	if total <= 0 || km <= 0 || math.IsNaN(km) {
		return 0
	}
	return math.Min(100, km/total*100)
}
