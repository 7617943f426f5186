package route

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
)

// cohortA selects Variant A: an L followed by a wave letter A..Q.
var cohortA = regexp.MustCompile(`^L[A-Q]`) //nolint:gochecknoglobals // compiled once

// Wave is a start group resolved from a rider id.
type Wave struct {
	Code      string
	Variant   *Variant
	Start     time.Duration // time of day on the event date
	Scheduled bool          // false when Start is the variant default
}

// Resolution is the outcome of matching one reported checkpoint name.
type Resolution struct {
	Control Control
	Index   int
	Tier    Tier
}

// Option configures a Model.
type Option func(*Model)

// WithVariants replaces the built-in control tables.
func WithVariants(a, b Variant) Option {
	return func(m *Model) {
		m.a = a
		m.b = b
	}
}

// WithWaves replaces the scheduled wave starts.
func WithWaves(waves map[string]time.Duration) Option {
	return func(m *Model) {
		if waves != nil {
			m.waves = make(map[string]time.Duration, len(waves))
			for k, v := range waves {
				m.waves[strings.ToUpper(k)] = v
			}
		}
	}
}

// WithMatcher overrides the name matching precedence.
func WithMatcher(mt Matcher) Option {
	return func(m *Model) { m.matcher = mt }
}

// Model answers route questions per rider. It is immutable after New and
// safe for concurrent use.
type Model struct {
	a, b    Variant
	waves   map[string]time.Duration
	matcher Matcher
	merged  []MergedControl

	byID sync.Map // rider id -> *Variant
}

// New builds a Model from the built-in tables unless options override them.
func New(opts ...Option) (*Model, error) {
	m := &Model{
		a:       LondonVariant(),
		b:       WrittleVariant(),
		waves:   DefaultWaves(),
		matcher: DefaultMatcher(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.merged = m.buildMerged()
	return m, nil
}

// Default returns the built-in model. The built-in tables always validate.
func Default() *Model {
	m, err := New()
	if err != nil {
		panic(err)
	}
	return m
}

// Variants returns Variant A then Variant B.
func (m *Model) Variants() (Variant, Variant) { return m.a, m.b }

// WaveCode returns the leading letters of a rider id, upper-cased.
func WaveCode(id string) string {
	id = strings.TrimSpace(id)
	end := strings.IndexFunc(id, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(id)
	}
	return strings.ToUpper(id[:end])
}

// VariantFor selects the rider's variant. Unrecognised ids get Variant B.
func (m *Model) VariantFor(id string) *Variant {
	if v, ok := m.byID.Load(id); ok {
		return v.(*Variant)
	}
	v := &m.b
	if cohortA.MatchString(WaveCode(id)) {
		v = &m.a
	}
	m.byID.Store(id, v)
	return v
}

// ControlsFor returns the ordered controls of the rider's variant.
func (m *Model) ControlsFor(id string) []Control {
	return m.VariantFor(id).Controls
}

// TotalDistanceFor returns the finish distance of the rider's variant.
func (m *Model) TotalDistanceFor(id string) float64 {
	return m.VariantFor(id).TotalKm()
}

// Wave resolves the rider's wave and scheduled start time of day.
func (m *Model) Wave(id string) Wave {
	v := m.VariantFor(id)
	code := WaveCode(id)
	if start, ok := m.waves[code]; ok {
		return Wave{Code: code, Variant: v, Start: start, Scheduled: true}
	}
	return Wave{Code: code, Variant: v, Start: v.DefaultStart}
}

// DistanceOfControl returns the distance of the first control matching name,
// or 0 when nothing matches. It resolves from 0 km, so a name shared by the
// start and the finish (the start location) gives 0. Use Resolve with the
// rider's furthest distance to reach later occurrences.
func (m *Model) DistanceOfControl(name, id string) float64 {
	r, ok := m.Resolve(name, id, 0)
	if !ok {
		return 0
	}
	return r.Control.Km
}

// Resolve matches a reported name on the rider's variant. When several
// controls match at the winning tier the one closest to near wins, earliest
// on ties, so a return-leg duplicate resolves to the occurrence the rider is
// actually near.
func (m *Model) Resolve(name, id string, near float64) (Resolution, bool) {
	v := m.VariantFor(id)
	if base, _, _ := StripSuffix(name); strings.EqualFold(base, StartName) {
		if len(v.Controls) == 0 {
			return Resolution{}, false
		}
		return Resolution{Control: v.Controls[0], Index: 0, Tier: TierExact}, true
	}
	idx, tier := m.matcher.Candidates(name, v.Controls)
	if len(idx) == 0 {
		return Resolution{}, false
	}
	best := idx[0]
	for _, i := range idx[1:] {
		if math.Abs(v.Controls[i].Km-near) < math.Abs(v.Controls[best].Km-near) {
			best = i
		}
	}
	return Resolution{Control: v.Controls[best], Index: best, Tier: tier}, true
}

// MergedControls is the occupancy view: both starts become one "Start" at 0 km.
// It must not be used for distance arithmetic.
func (m *Model) MergedControls() []MergedControl {
	return m.merged
}

// MergedID returns the occupancy bucket for a control of the rider's variant.
func (m *Model) MergedID(id string, index int) string {
	v := m.VariantFor(id)
	if index < 0 || index >= len(v.Controls) {
		return ""
	}
	return mergedID(v.Controls[index], index)
}

func (m *Model) buildMerged() []MergedControl {
	out := []MergedControl{{ID: startID, Control: Control{Name: StartName, Km: 0, Leg: North}}}
	seen := map[string]bool{startID: true}
	for _, v := range []Variant{m.b, m.a} {
		for i, c := range v.Controls {
			id := mergedID(c, i)
			if seen[id] {
				continue
			}
			seen[id] = true
			c.Km -= v.Offset
			out = append(out, MergedControl{ID: id, Control: c})
		}
	}
	return out
}

// Validate checks that both variants are non-empty and ordered, and that the
// shared body and the finish are identical once each variant's offset is
// removed.
func (m *Model) Validate() error {
	for _, v := range []Variant{m.a, m.b} {
		if len(v.Controls) < 2 {
			return fmt.Errorf("%w: variant %q has %d controls", ErrInvalidRoute, v.Name, len(v.Controls))
		}
		if v.Controls[0].Km != 0 {
			return fmt.Errorf("%w: variant %q does not start at 0 km", ErrInvalidRoute, v.Name)
		}
		for i := 1; i < len(v.Controls); i++ {
			if v.Controls[i].Km <= v.Controls[i-1].Km {
				return fmt.Errorf("%w: variant %q not ordered at %q", ErrInvalidRoute, v.Name, v.Controls[i].Name)
			}
		}
	}
	ab, bb := sharedBody(m.a), sharedBody(m.b)
	if len(ab) != len(bb) {
		return fmt.Errorf("%w: shared sections differ in length (%d vs %d)", ErrInvalidRoute, len(ab), len(bb))
	}
	for i := range ab {
		x, y := ab[i], bb[i]
		if x.Name != y.Name || x.Leg != y.Leg || x.Km-m.a.Offset != y.Km-m.b.Offset {
			return fmt.Errorf("%w: shared control %d differs (%q vs %q)", ErrInvalidRoute, i, x.Name, y.Name)
		}
	}
	if fa, fb := m.a.TotalKm()-m.a.Offset, m.b.TotalKm()-m.b.Offset; fa != fb {
		return fmt.Errorf("%w: finishes differ by %g km beyond the offset", ErrInvalidRoute, fa-fb)
	}
	return nil
}

// sharedBody is everything between the variant's own start and finish.
func sharedBody(v Variant) []Control {
	if len(v.Controls) < 2 {
		return nil
	}
	return v.Controls[1 : len(v.Controls)-1]
}
