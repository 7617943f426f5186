package tracker_test

import (
	"testing"
	"time"

	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/internal/domain/progress"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/status"
	"github.com/okian/audax/internal/domain/timefmt"
	"github.com/okian/audax/internal/domain/tracker"
	. "github.com/smartystreets/goconvey/convey"
)

func newEngine(opts ...tracker.Option) (*tracker.Engine, func(string) time.Time) {
	times := timefmt.New(timefmt.WithEventStart(2025, time.August, 3))
	at := func(raw string) time.Time {
		t, ok := times.Parse(raw)
		if !ok {
			panic("bad fixture time " + raw)
		}
		return t
	}
	return tracker.New(route.Default(), times, opts...), at
}

func rider(id, st string, cps ...string) model.Rider {
	r := model.Rider{ID: id, Name: "Rider " + id, Status: st}
	for i := 0; i+1 < len(cps); i += 2 {
		r.Checkpoints = append(r.Checkpoints, model.Checkpoint{Name: cps[i], Time: cps[i+1]})
	}
	return r
}

func TestEvaluateOne(t *testing.T) {
	Convey("Given an in-progress rider an hour after Boston", t, func() {
		e, at := newEngine()
		res := e.EvaluateOne(rider("A1", "in_progress", "Start", "Sunday 04:00", "Boston", "Sunday 09:00"), at("Sunday 10:00"))

		Convey("Then progress, status and estimate are combined", func() {
			So(res.Progress.FurthestKm, ShouldEqual, 193)
			So(res.Status(), ShouldEqual, status.InProgress)
			So(res.Progress.EstimatedKm, ShouldAlmostEqual, 231.6, 1e-9)
			So(res.Elapsed, ShouldEqual, "5h 0m")
			So(res.Latest, ShouldNotBeNil)
			So(res.Latest.ControlID, ShouldEqual, "boston-n")
			So(res.Latest.Parsed, ShouldBeTrue)
		})
	})

	Convey("Given the same rider thirteen hours after Boston", t, func() {
		e, at := newEngine()
		res := e.EvaluateOne(rider("A1", "in_progress", "Start", "Sunday 04:00", "Boston", "Sunday 09:00"), at("Sunday 22:00"))

		Convey("Then it is stalled to DNF and its estimate stays put", func() {
			So(res.Status(), ShouldEqual, status.DNF)
			So(res.Verdict.Stalled, ShouldBeTrue)
			So(res.Progress.EstimatedKm, ShouldEqual, 193)
		})
	})

	Convey("Given a finished rider", t, func() {
		e, at := newEngine()
		res := e.EvaluateOne(rider("LA1", "Finished", "Start", "Sunday 05:00", "London S", "Thursday 20:00"), at("Friday 10:00"))

		Convey("Then nothing is extrapolated", func() {
			So(res.Status(), ShouldEqual, status.Finished)
			So(res.Progress.FurthestKm, ShouldEqual, 1550)
			So(res.Progress.EstimatedKm, ShouldEqual, 1550)
		})
	})

	Convey("Given a rider with an unknown control and no times", t, func() {
		e, at := newEngine()
		res := e.EvaluateOne(rider("Q9", "", "Somewhere", "soon"), at("Sunday 10:00"))

		Convey("Then the record is kept as the latest arrival without a bucket", func() {
			So(res.Latest.Control, ShouldEqual, "Somewhere")
			So(res.Latest.ControlID, ShouldEqual, "")
			So(res.Latest.Parsed, ShouldBeFalse)
			So(res.Elapsed, ShouldBeEmpty)
			So(res.Status(), ShouldEqual, status.InProgress)
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given riders from both variants", t, func() {
		e, at := newEngine()
		now := at("Sunday 12:00")
		riders := []model.Rider{
			rider("LA1", "in_progress", "Start", "Sunday 05:00", "Northstowe", "Sunday 10:00"),
			rider("A1", "in_progress", "Start", "Sunday 04:00", "Northstowe", "Sunday 08:00"),
		}

		results := e.Evaluate(riders, now)

		Convey("Then results keep input order and the variant offset", func() {
			So(len(results), ShouldEqual, 2)
			So(results[0].RiderID, ShouldEqual, "LA1")
			So(results[0].Progress.FurthestKm, ShouldEqual, 110)
			So(results[1].Progress.FurthestKm, ShouldEqual, 90)
		})

		Convey("Then evaluation is deterministic for the same input", func() {
			again := e.Evaluate(riders, now)
			So(again, ShouldResemble, results)
		})

		Convey("Then empty input gives empty output", func() {
			So(e.Evaluate(nil, now), ShouldBeEmpty)
		})
	})
}

func TestReport(t *testing.T) {
	Convey("Given a configured engine", t, func() {
		e, at := newEngine(
			tracker.WithStallMinutes(180),
			tracker.WithPolicy(progress.Policy{GraceMinutes: 5, DefaultSpeedKmh: 20, NextControlCap: 0.5}),
			tracker.WithArrivals(120, 1),
		)
		now := at("Sunday 10:00")
		rep := e.Report([]model.Rider{
			rider("A1", "in_progress", "Start", "Sunday 04:00", "Boston", "Sunday 08:00"),
			rider("B2", "in_progress", "Start", "Sunday 04:15", "Boston", "??"),
			rider("C3", "", "Nowhere", "Sunday 09:45"),
		}, now)

		Convey("Then options reach the classifier", func() {
			So(rep.Summary.Total, ShouldEqual, 3)
			So(rep.Summary.Stalled, ShouldEqual, 1)
			So(rep.Results[1].Verdict.Stalled, ShouldBeTrue)
		})

		Convey("Then options reach the estimate", func() {
			So(rep.Results[0].Progress.EstimatedKm, ShouldAlmostEqual, 193+0.5*54, 1e-9)
		})

		Convey("Then the arrivals feed honours the limit", func() {
			So(len(rep.Arrivals), ShouldEqual, 1)
			So(rep.Arrivals[0].RiderID, ShouldEqual, "C3")
		})

		Convey("Then skipped records are totalled", func() {
			So(rep.Unparseable, ShouldEqual, 1)
			So(rep.Unmatched, ShouldEqual, 1)
			So(rep.GeneratedAt.Equal(now), ShouldBeTrue)
			So(len(rep.Occupancy), ShouldEqual, 21)
			So(rep.ByVariant[route.WrittleName].Total, ShouldEqual, 3)
		})
	})
}
