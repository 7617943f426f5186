package status_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/internal/domain/progress"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/status"
	"github.com/okian/audax/internal/domain/timefmt"
	. "github.com/smartystreets/goconvey/convey"
)

type fixture struct {
	times *timefmt.Normalizer
	calc  *progress.Calculator
}

func newFixture() fixture {
	times := timefmt.New(timefmt.WithEventStart(2025, time.August, 3))
	return fixture{times: times, calc: progress.NewCalculator(route.Default(), times)}
}

func (f fixture) at(raw string) time.Time {
	t, ok := f.times.Parse(raw)
	if !ok {
		panic("bad fixture time " + raw)
	}
	return t
}

func (f fixture) progress(now time.Time, cps ...string) progress.Progress {
	r := model.Rider{ID: "A1"}
	for i := 0; i+1 < len(cps); i += 2 {
		r.Checkpoints = append(r.Checkpoints, model.Checkpoint{Name: cps[i], Time: cps[i+1]})
	}
	return f.calc.Compute(r, now)
}

func TestParseReported(t *testing.T) {
	Convey("Given upstream status spellings", t, func() {
		So(status.ParseReported("DNF"), ShouldEqual, status.DNF)
		So(status.ParseReported("Did Not Finish"), ShouldEqual, status.DNF)
		So(status.ParseReported("Finished"), ShouldEqual, status.Finished)
		So(status.ParseReported("In Progress"), ShouldEqual, status.InProgress)
		So(status.ParseReported("in-progress"), ShouldEqual, status.InProgress)
		So(status.ParseReported(" not-started "), ShouldEqual, status.NotStarted)
		So(status.ParseReported(""), ShouldEqual, status.Unknown)
		So(status.ParseReported("sleeping"), ShouldEqual, status.Unknown)
	})
}

func TestStatusJSON(t *testing.T) {
	Convey("Given a status in JSON", t, func() {
		b, err := json.Marshal(map[string]status.Status{"s": status.InProgress})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"s":"in_progress"}`)

		var s status.Status
		So(json.Unmarshal([]byte(`"Finished"`), &s), ShouldBeNil)
		So(s, ShouldEqual, status.Finished)

		err = json.Unmarshal([]byte(`"bogus"`), &s)
		So(errors.Is(err, status.ErrInvalidStatus), ShouldBeTrue)

		So(status.Status(42).String(), ShouldEqual, "unknown")
		So(len(status.All()), ShouldEqual, 4)
	})
}

func TestIsStalled(t *testing.T) {
	Convey("Given a rider last seen at Boston on Sunday morning", t, func() {
		f := newFixture()
		c := status.NewClassifier()
		now := f.at("Sunday 22:00")
		p := f.progress(now, "Start", "Sunday 04:00", "Boston", "Sunday 09:00")

		Convey("When 13 hours have passed", func() {
			later := f.at("Sunday 22:00")

			Convey("Then the rider is stalled and presented as DNF", func() {
				So(c.IsStalled(status.InProgress, p, later), ShouldBeTrue)
				v := c.Effective(status.InProgress, p, later)
				So(v.Status, ShouldEqual, status.DNF)
				So(v.Stalled, ShouldBeTrue)
				So(v.Reason, ShouldEqual, status.ReasonStalled)
				So(v.Moving(), ShouldBeFalse)
			})
		})

		Convey("When less than the threshold has passed", func() {
			So(c.IsStalled(status.InProgress, p, f.at("Sunday 20:59")), ShouldBeFalse)
			So(c.IsStalled(status.InProgress, p, f.at("Sunday 21:00")), ShouldBeTrue)
		})

		Convey("Then stalling is monotonic in time", func() {
			stalled := false
			for m := 0; m < 3*24*60; m += 17 {
				now := f.at("Sunday 09:00").Add(time.Duration(m) * time.Minute)
				s := c.IsStalled(status.InProgress, p, now)
				if stalled {
					So(s, ShouldBeTrue)
				}
				stalled = s
			}
			So(stalled, ShouldBeTrue)
		})

		Convey("Then explicit finished and dnf are never stalled", func() {
			So(c.IsStalled(status.Finished, p, now), ShouldBeFalse)
			So(c.IsStalled(status.DNF, p, now), ShouldBeFalse)
		})

		Convey("When the threshold is configured", func() {
			short := status.NewClassifier(status.WithStallMinutes(60))
			So(short.StallMinutes(), ShouldEqual, 60)
			So(short.IsStalled(status.InProgress, p, f.at("Sunday 10:00")), ShouldBeTrue)
			So(status.NewClassifier(status.WithStallMinutes(-1)).StallMinutes(), ShouldEqual, status.DefaultStallMinutes)
		})
	})

	Convey("Given riders whose staleness cannot be judged from every record", t, func() {
		f := newFixture()
		c := status.NewClassifier()
		now := f.at("Monday 10:00")

		Convey("When the latest timestamp is unparseable", func() {
			p := f.progress(now, "Start", "Sunday 04:00", "Boston", "??")

			Convey("Then the previous parseable record is used", func() {
				So(c.IsStalled(status.InProgress, p, now), ShouldBeTrue)
				So(c.IsStalled(status.InProgress, p, f.at("Sunday 15:00")), ShouldBeFalse)
			})
		})

		Convey("When no timestamp parses", func() {
			p := f.progress(now, "Start", "??", "Boston", "later")
			So(c.IsStalled(status.InProgress, p, now), ShouldBeFalse)
		})

		Convey("When the rider has no checkpoints", func() {
			p := f.progress(now)
			So(c.IsStalled(status.InProgress, p, now), ShouldBeFalse)
		})

		Convey("When the rider reached the final control", func() {
			p := f.progress(now, "Start", "Sunday 04:00", "Writtle S", "Sunday 23:00")
			So(p.AtFinish, ShouldBeTrue)
			So(c.IsStalled(status.InProgress, p, f.at("Wednesday 10:00")), ShouldBeFalse)
		})
	})
}

func TestEffective(t *testing.T) {
	Convey("Given a classifier", t, func() {
		f := newFixture()
		c := status.NewClassifier()
		now := f.at("Sunday 10:00")
		moving := f.progress(now, "Start", "Sunday 04:00", "Boston", "Sunday 09:00")
		idle := f.progress(now)

		Convey("Then explicit dnf wins over everything", func() {
			v := c.Effective(status.DNF, moving, now)
			So(v.Status, ShouldEqual, status.DNF)
			So(v.Stalled, ShouldBeFalse)
			So(v.Reason, ShouldEqual, status.ReasonReported)
		})

		Convey("Then explicit statuses pass through when not stalled", func() {
			So(c.Effective(status.Finished, moving, now).Status, ShouldEqual, status.Finished)
			v := c.Effective(status.InProgress, moving, now)
			So(v.Status, ShouldEqual, status.InProgress)
			So(v.Moving(), ShouldBeTrue)
			So(c.Effective(status.NotStarted, idle, now).Status, ShouldEqual, status.NotStarted)
		})

		Convey("When the upstream status is unknown", func() {
			Convey("Then checkpoints mean in progress", func() {
				v := c.Effective(status.Unknown, moving, now)
				So(v.Status, ShouldEqual, status.InProgress)
				So(v.Reason, ShouldEqual, status.ReasonInferred)
			})

			Convey("Then no checkpoints means not started", func() {
				So(c.Effective(status.Unknown, idle, now).Status, ShouldEqual, status.NotStarted)
			})

			Convey("Then the final control means finished", func() {
				done := f.progress(now, "Start", "Sunday 04:00", "Writtle S", "Sunday 09:30")
				So(c.Effective(status.Unknown, done, now).Status, ShouldEqual, status.Finished)
			})
		})

		Convey("Then the effective status is never unknown", func() {
			for _, s := range append(status.All(), status.Unknown) {
				for _, p := range []progress.Progress{moving, idle} {
					So(c.Effective(s, p, now).Status, ShouldNotEqual, status.Unknown)
				}
			}
		})
	})
}
