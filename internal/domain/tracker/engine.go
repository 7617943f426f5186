// Package tracker runs one synchronous evaluation of the whole rider set:
// progress, effective status and the position estimate per rider, then the
// group views over the result.
package tracker

import (
	"time"

	"github.com/okian/audax/internal/domain/aggregate"
	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/internal/domain/progress"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/status"
	"github.com/okian/audax/internal/domain/timefmt"
)

// Result is one rider's evaluation.
type Result = aggregate.Result

// Report is everything a presentation layer needs for one refresh.
type Report struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	Results     []Result                     `json:"-"`
	Summary     aggregate.Summary            `json:"summary"`
	ByVariant   map[string]aggregate.Summary `json:"by_variant"`
	Occupancy   []aggregate.Occupancy        `json:"occupancy"`
	Arrivals    []aggregate.Arrival          `json:"arrivals"`
	// Unparseable and Unmatched total the records skipped across all riders.
	Unparseable int `json:"unparseable"`
	Unmatched   int `json:"unmatched"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the position estimate tunables.
func WithPolicy(p progress.Policy) Option {
	return func(e *Engine) { e.progressOpts = append(e.progressOpts, progress.WithPolicy(p)) }
}

// WithStallMinutes sets the stalled threshold.
func WithStallMinutes(minutes int) Option {
	return func(e *Engine) { e.statusOpts = append(e.statusOpts, status.WithStallMinutes(minutes)) }
}

// WithArrivals sets the recent arrivals window in minutes and the feed length.
func WithArrivals(window, limit int) Option {
	return func(e *Engine) {
		if window > 0 {
			e.arrivalWindow = window
		}
		if limit > 0 {
			e.arrivalLimit = limit
		}
	}
}

// Engine evaluates riders. It keeps no state between calls and is safe for
// concurrent use.
type Engine struct {
	routes     *route.Model
	times      *timefmt.Normalizer
	calc       *progress.Calculator
	classifier *status.Classifier

	arrivalWindow int
	arrivalLimit  int

	progressOpts []progress.Option
	statusOpts   []status.Option
}

// New builds an Engine over a route model and a time normalizer.
func New(routes *route.Model, times *timefmt.Normalizer, opts ...Option) *Engine {
	e := &Engine{
		routes:        routes,
		times:         times,
		arrivalWindow: aggregate.DefaultArrivalWindow,
		arrivalLimit:  aggregate.DefaultArrivalLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.calc = progress.NewCalculator(routes, times, e.progressOpts...)
	e.classifier = status.NewClassifier(e.statusOpts...)
	return e
}

// Routes returns the route model.
func (e *Engine) Routes() *route.Model { return e.routes }

// Times returns the time normalizer.
func (e *Engine) Times() *timefmt.Normalizer { return e.times }

// Now is the normalizer's current instant.
func (e *Engine) Now() time.Time { return e.times.Now() }

// EvaluateOne computes a single rider.
func (e *Engine) EvaluateOne(r model.Rider, now time.Time) Result {
	p := e.calc.Compute(r, now)
	v := e.classifier.Effective(status.ParseReported(r.Status), p, now)
	p.EstimatedKm = e.calc.Estimate(p, v.Moving(), now)

	res := Result{
		RiderID:    r.ID,
		Name:       r.Name,
		Verdict:    v,
		Progress:   p,
		ReportedKm: r.ReportedKm,
	}
	if p.HasElapsed {
		res.Elapsed = timefmt.FormatElapsed(p.ElapsedMinutes)
	}
	if cp, ok := r.Last(); ok {
		res.Latest = e.arrival(r, cp, p)
	}
	return res
}

func (e *Engine) arrival(r model.Rider, cp model.Checkpoint, p progress.Progress) *aggregate.Arrival {
	a := &aggregate.Arrival{
		RiderID: r.ID,
		Name:    r.Name,
		Variant: p.Variant,
		Control: cp.Name,
		Raw:     cp.Time,
	}
	a.At, a.Parsed = e.times.Parse(cp.Time)
	if res, ok := e.routes.Resolve(cp.Name, r.ID, p.FurthestKm); ok {
		a.Control = res.Control.Name
		a.ControlID = e.routes.MergedID(r.ID, res.Index)
		a.Km = res.Control.Km
	}
	return a
}

// Evaluate computes every rider in input order.
func (e *Engine) Evaluate(riders []model.Rider, now time.Time) []Result {
	out := make([]Result, len(riders))
	for i := range riders {
		out[i] = e.EvaluateOne(riders[i], now)
	}
	return out
}

// Report evaluates every rider and builds the group views.
func (e *Engine) Report(riders []model.Rider, now time.Time) Report {
	results := e.Evaluate(riders, now)
	rep := Report{
		GeneratedAt: now,
		Results:     results,
		Summary:     aggregate.Summarize(results),
		ByVariant:   aggregate.ByVariant(results),
		Occupancy:   aggregate.OccupancyByControl(results, e.routes),
		Arrivals:    aggregate.RecentArrivals(results, now, e.arrivalWindow, e.arrivalLimit),
	}
	for i := range results {
		rep.Unparseable += results[i].Progress.Unparseable
		rep.Unmatched += results[i].Progress.Unmatched
	}
	return rep
}
