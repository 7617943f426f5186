package route_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/audax/internal/domain/route"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVariantSelection(t *testing.T) {
	Convey("Given the default route model", t, func() {
		m := route.Default()

		Convey("When the wave code is L plus A..Q", func() {
			Convey("Then the London variant is selected", func() {
				So(m.VariantFor("LA1").Name, ShouldEqual, route.LondonName)
				So(m.VariantFor("LQ204").Name, ShouldEqual, route.LondonName)
				So(m.VariantFor("la7").Name, ShouldEqual, route.LondonName)
			})
		})

		Convey("When the wave code is anything else", func() {
			Convey("Then the Writtle variant is selected", func() {
				So(m.VariantFor("A1").Name, ShouldEqual, route.WrittleName)
				So(m.VariantFor("LR5").Name, ShouldEqual, route.WrittleName)
				So(m.VariantFor("L12").Name, ShouldEqual, route.WrittleName)
				So(m.VariantFor("").Name, ShouldEqual, route.WrittleName)
				So(m.VariantFor("123").Name, ShouldEqual, route.WrittleName)
			})
		})

		Convey("Then every rider gets a non-empty ordered list ending at the total", func() {
			for _, id := range []string{"A1", "LA1", "ZZ9", "", "LQ1", "X"} {
				cs := m.ControlsFor(id)
				So(len(cs), ShouldBeGreaterThan, 0)
				for i := 1; i < len(cs); i++ {
					So(cs[i].Km, ShouldBeGreaterThan, cs[i-1].Km)
				}
				So(m.TotalDistanceFor(id), ShouldEqual, cs[len(cs)-1].Km)
			}
		})
	})
}

func TestSharedBody(t *testing.T) {
	Convey("Given both built-in variants", t, func() {
		a, b := route.Default().Variants()

		Convey("Then the shared section matches once offsets are removed", func() {
			So(len(a.Controls), ShouldEqual, len(b.Controls))
			for i := 1; i < len(a.Controls)-1; i++ {
				So(a.Controls[i].Name, ShouldEqual, b.Controls[i].Name)
				So(a.Controls[i].Leg, ShouldEqual, b.Controls[i].Leg)
				So(a.Controls[i].Km-a.Offset, ShouldEqual, b.Controls[i].Km-b.Offset)
			}
		})

		Convey("Then the starts and finishes carry the location names", func() {
			So(a.Controls[0].Name, ShouldEqual, route.LondonName)
			So(b.Controls[0].Name, ShouldEqual, route.WrittleName)
			So(a.TotalKm(), ShouldEqual, 1550)
			So(b.TotalKm(), ShouldEqual, 1530)
		})

		Convey("When a variant breaks the shared section", func() {
			broken := b
			broken.Controls = append([]route.Control(nil), b.Controls...)
			broken.Controls[3].Km += 1
			_, err := route.New(route.WithVariants(a, broken))

			Convey("Then validation fails", func() {
				So(errors.Is(err, route.ErrInvalidRoute), ShouldBeTrue)
			})
		})

		Convey("Then the finishes differ by the fixed offset only", func() {
			m := route.Default()
			So(m.TotalDistanceFor("LA1")-m.TotalDistanceFor("A1"), ShouldEqual, a.Offset)
		})

		Convey("When a variant's finish drifts past the offset", func() {
			broken := a
			broken.Controls = append([]route.Control(nil), a.Controls...)
			broken.Controls[len(broken.Controls)-1].Km += 20
			_, err := route.New(route.WithVariants(broken, b))

			Convey("Then validation fails", func() {
				So(errors.Is(err, route.ErrInvalidRoute), ShouldBeTrue)
			})
		})

		Convey("When a variant is out of order", func() {
			broken := a
			broken.Controls = []route.Control{{Name: "London", Km: 0}, {Name: "X", Km: 10}, {Name: "Y", Km: 5}}
			_, err := route.New(route.WithVariants(broken, b))
			So(errors.Is(err, route.ErrInvalidRoute), ShouldBeTrue)
		})
	})
}

func TestDistanceOfControl(t *testing.T) {
	Convey("Given the default route model", t, func() {
		m := route.Default()

		Convey("Then Northstowe keeps the 20 km offset between variants", func() {
			So(m.DistanceOfControl("Northstowe", "LA1"), ShouldEqual, 110)
			So(m.DistanceOfControl("Northstowe", "A1"), ShouldEqual, 90)
		})

		Convey("Then Start is 0 regardless of the start location name", func() {
			So(m.DistanceOfControl("Start", "LA1"), ShouldEqual, 0)
			So(m.DistanceOfControl("Start", "A1"), ShouldEqual, 0)
			So(m.DistanceOfControl("London", "LA1"), ShouldEqual, 0)
			So(m.DistanceOfControl("Writtle", "A1"), ShouldEqual, 0)
		})

		Convey("Then the finish location needs Resolve with the rider's position", func() {
			r, ok := m.Resolve("London", "LA1", 1460)
			So(ok, ShouldBeTrue)
			So(r.Control.Km, ShouldEqual, 1550)
		})

		Convey("Then a direction suffix is stripped and selects the leg", func() {
			So(m.DistanceOfControl("Brampton N", "A1"), ShouldEqual, 566)
			So(m.DistanceOfControl("Brampton S", "A1"), ShouldEqual, 964)
			So(m.DistanceOfControl("BramptonS", "A1"), ShouldEqual, 964)
			So(m.DistanceOfControl("Boston N", "A1"), ShouldEqual, 193)
		})

		Convey("Then a containing name falls back to substring match", func() {
			So(m.DistanceOfControl("Barnard Castle School", "A1"), ShouldEqual, 464)
			So(m.DistanceOfControl("moffat", "A1"), ShouldEqual, 648)
		})

		Convey("Then unknown names are 0", func() {
			So(m.DistanceOfControl("Timbuktu", "A1"), ShouldEqual, 0)
			So(m.DistanceOfControl("", "A1"), ShouldEqual, 0)
		})
	})
}

func TestResolveNear(t *testing.T) {
	Convey("Given a rider on the return leg", t, func() {
		m := route.Default()

		Convey("When an unsuffixed duplicate name is reported past the turn", func() {
			r, ok := m.Resolve("Brampton", "A1", 902)

			Convey("Then the return occurrence wins", func() {
				So(ok, ShouldBeTrue)
				So(r.Control.Km, ShouldEqual, 964)
				So(r.Control.Leg, ShouldEqual, route.South)
				So(r.Tier, ShouldEqual, route.TierExact)
			})
		})

		Convey("When the finish location is reported near the end", func() {
			r, ok := m.Resolve("Writtle", "A1", 1440)
			So(ok, ShouldBeTrue)
			So(r.Control.Km, ShouldEqual, 1530)
		})

		Convey("When an outbound report arrives late", func() {
			r, ok := m.Resolve("Malton", "A1", 566)
			So(ok, ShouldBeTrue)
			So(r.Control.Km, ShouldEqual, 370)
		})
	})
}

func TestMatcherTiers(t *testing.T) {
	Convey("Given a small control list", t, func() {
		cs := []route.Control{
			{Name: "Louth", Km: 0},
			{Name: "Louth Park", Km: 10},
			{Name: "Hessle", Km: 20, Leg: route.North},
			{Name: "Hessle", Km: 30, Leg: route.South},
		}
		mt := route.DefaultMatcher()

		Convey("Then exact match outranks substring containment", func() {
			idx, tier := mt.Candidates("Louth", cs)
			So(tier, ShouldEqual, route.TierExact)
			So(idx, ShouldResemble, []int{0})
		})

		Convey("Then a suffixed name is matched on the suffix tier", func() {
			idx, tier := mt.Candidates("Hessle S", cs)
			So(tier, ShouldEqual, route.TierSuffix)
			So(idx, ShouldResemble, []int{3})
		})

		Convey("Then substring is the last resort", func() {
			idx, tier := mt.Candidates("Louth Park Hall", cs)
			So(tier, ShouldEqual, route.TierSubstring)
			So(idx, ShouldResemble, []int{0, 1})
		})

		Convey("Then nothing matches an empty name", func() {
			idx, tier := mt.Candidates("", cs)
			So(idx, ShouldBeEmpty)
			So(tier, ShouldEqual, route.TierNone)
		})

		Convey("Then each strategy is usable on its own", func() {
			So(route.ExactMatch{}.Match("louth", cs), ShouldBeEmpty)
			So(route.SuffixMatch{}.Match("louth", cs), ShouldResemble, []int{0})
			So(route.SubstringMatch{}.Match("park", cs), ShouldResemble, []int{1})
		})
	})
}

func TestStripSuffix(t *testing.T) {
	Convey("Given reported names", t, func() {
		base, leg, ok := route.StripSuffix("Malton S")
		So(base, ShouldEqual, "Malton")
		So(leg, ShouldEqual, route.South)
		So(ok, ShouldBeTrue)

		base, _, ok = route.StripSuffix("MaltonN")
		So(base, ShouldEqual, "Malton")
		So(ok, ShouldBeTrue)

		base, _, ok = route.StripSuffix("Malton")
		So(base, ShouldEqual, "Malton")
		So(ok, ShouldBeFalse)

		base, _, _ = route.StripSuffix("CP A")
		So(base, ShouldEqual, "CP")

		base, _, ok = route.StripSuffix("UK")
		So(base, ShouldEqual, "UK")
		So(ok, ShouldBeFalse)
	})
}

func TestWaves(t *testing.T) {
	Convey("Given the default waves", t, func() {
		m := route.Default()

		Convey("Then a known wave gets its scheduled start", func() {
			w := m.Wave("A1")
			So(w.Code, ShouldEqual, "A")
			So(w.Start, ShouldEqual, 4*time.Hour)
			So(w.Scheduled, ShouldBeTrue)
			So(m.Wave("LB3").Start, ShouldEqual, 5*time.Hour+15*time.Minute)
		})

		Convey("Then an unknown wave falls back to the variant default", func() {
			w := m.Wave("ZZ1")
			So(w.Scheduled, ShouldBeFalse)
			So(w.Start, ShouldEqual, 6*time.Hour)
		})

		Convey("When waves are overridden", func() {
			m2, err := route.New(route.WithWaves(map[string]time.Duration{"a": time.Hour}))
			So(err, ShouldBeNil)
			So(m2.Wave("A9").Start, ShouldEqual, time.Hour)
			So(m2.Wave("B9").Scheduled, ShouldBeFalse)
		})
	})
}

func TestMergedControls(t *testing.T) {
	Convey("Given the merged occupancy view", t, func() {
		m := route.Default()
		merged := m.MergedControls()

		Convey("Then both starts are one synthetic Start at 0", func() {
			So(merged[0].ID, ShouldEqual, "start")
			So(merged[0].Name, ShouldEqual, route.StartName)
			So(merged[0].Km, ShouldEqual, 0)
			So(m.MergedID("LA1", 0), ShouldEqual, "start")
			So(m.MergedID("A1", 0), ShouldEqual, "start")
		})

		Convey("Then shared controls map to the same bucket on both variants", func() {
			So(m.MergedID("LA1", 1), ShouldEqual, "northstowe-n")
			So(m.MergedID("A1", 1), ShouldEqual, "northstowe-n")
			So(m.MergedID("A1", 12), ShouldEqual, "brampton-s")
		})

		Convey("Then ids are unique and both finishes are present", func() {
			seen := map[string]bool{}
			for _, c := range merged {
				So(seen[c.ID], ShouldBeFalse)
				seen[c.ID] = true
			}
			So(seen["writtle-s"], ShouldBeTrue)
			So(seen["london-s"], ShouldBeTrue)
			So(len(merged), ShouldEqual, 21)
		})

		Convey("Then out-of-range indexes have no bucket", func() {
			So(m.MergedID("A1", 99), ShouldEqual, "")
		})
	})
}

func TestParseLeg(t *testing.T) {
	Convey("Given leg strings", t, func() {
		l, err := route.ParseLeg("South")
		So(err, ShouldBeNil)
		So(l, ShouldEqual, route.South)
		l, err = route.ParseLeg("n")
		So(err, ShouldBeNil)
		So(l, ShouldEqual, route.North)
		_, err = route.ParseLeg("east")
		So(errors.Is(err, route.ErrInvalidLeg), ShouldBeTrue)
	})
}
