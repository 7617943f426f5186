package route

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tier identifies which strategy produced a match.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierSuffix
	TierSubstring
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSuffix:
		return "suffix"
	case TierSubstring:
		return "substring"
	}
	return "none"
}

// Strategy finds the controls a reported checkpoint name refers to.
// It returns indexes into controls, in route order.
type Strategy interface {
	Tier() Tier
	Match(name string, controls []Control) []int
}

// Matcher runs strategies in order and stops at the first one that matches.
type Matcher struct {
	strategies []Strategy
}

// NewMatcher builds a matcher from an explicit precedence list.
func NewMatcher(strategies ...Strategy) Matcher {
	return Matcher{strategies: strategies}
}

// DefaultMatcher is exact, then suffix-stripped, then substring containment.
func DefaultMatcher() Matcher {
	return NewMatcher(ExactMatch{}, SuffixMatch{}, SubstringMatch{})
}

// Candidates returns the matching control indexes and the tier that found them.
func (m Matcher) Candidates(name string, controls []Control) ([]int, Tier) {
	for _, s := range m.strategies {
		if idx := s.Match(name, controls); len(idx) > 0 {
			return idx, s.Tier()
		}
	}
	return nil, TierNone
}

// ExactMatch compares names byte for byte.
type ExactMatch struct{}

func (ExactMatch) Tier() Tier { return TierExact }

func (ExactMatch) Match(name string, controls []Control) []int {
	var out []int
	for i, c := range controls {
		if c.Name == name {
			out = append(out, i)
		}
	}
	return out
}

// SuffixMatch strips a trailing direction letter and compares case-insensitively.
// An N or S suffix narrows the match to that leg when such a control exists.
type SuffixMatch struct{}

func (SuffixMatch) Tier() Tier { return TierSuffix }

func (SuffixMatch) Match(name string, controls []Control) []int {
	base, leg, hasLeg := StripSuffix(name)
	if base == "" {
		return nil
	}
	var all, onLeg []int
	for i, c := range controls {
		if !strings.EqualFold(c.Name, base) {
			continue
		}
		all = append(all, i)
		if hasLeg && c.Leg == leg {
			onLeg = append(onLeg, i)
		}
	}
	if len(onLeg) > 0 {
		return onLeg
	}
	return all
}

// SubstringMatch accepts either name containing the other, ignoring case.
type SubstringMatch struct{}

func (SubstringMatch) Tier() Tier { return TierSubstring }

func (SubstringMatch) Match(name string, controls []Control) []int {
	base, _, _ := StripSuffix(name)
	q := strings.ToLower(base)
	if q == "" {
		return nil
	}
	var out []int
	for i, c := range controls {
		cn := strings.ToLower(c.Name)
		if cn == "" {
			continue
		}
		if strings.Contains(q, cn) || strings.Contains(cn, q) {
			out = append(out, i)
		}
	}
	return out
}

// StripSuffix removes one trailing uppercase direction letter, as in
// "Brampton N" or "BramptonS". The letter only counts as a suffix when it
// follows a space or a lowercase letter. N and S also report the leg.
func StripSuffix(name string) (string, Leg, bool) {
	name = strings.TrimSpace(name)
	last, size := utf8.DecodeLastRuneInString(name)
	if size == 0 || !unicode.IsUpper(last) || len(name) == size {
		return name, North, false
	}
	rest := name[:len(name)-size]
	prev, _ := utf8.DecodeLastRuneInString(rest)
	if !unicode.IsSpace(prev) && !unicode.IsLower(prev) {
		return name, North, false
	}
	rest = strings.TrimSpace(rest)
	switch last {
	case 'N':
		return rest, North, true
	case 'S':
		return rest, South, true
	}
	return rest, North, false
}
