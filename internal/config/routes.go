package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/audax/internal/domain/route"
)

// RouteFile is the YAML shape of a control table override. The first
// variant is the London cohort's, the second everyone else's.
type RouteFile struct {
	Variants []VariantSpec `koanf:"variants"`
}

// VariantSpec describes one variant.
type VariantSpec struct {
	Name         string        `koanf:"name"`
	Offset       float64       `koanf:"offset"`
	DefaultStart string        `koanf:"default_start"`
	Controls     []ControlSpec `koanf:"controls"`
}

// ControlSpec describes one control.
type ControlSpec struct {
	Name string  `koanf:"name"`
	Km   float64 `koanf:"km"`
	Leg  string  `koanf:"leg"`
}

// LoadRoutes reads a route file into the two variants. The result still has
// to pass route.New's validation.
func LoadRoutes(path string) (route.Variant, route.Variant, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return route.Variant{}, route.Variant{}, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
	}
	var rf RouteFile
	if err := k.UnmarshalWithConf("", &rf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return route.Variant{}, route.Variant{}, fmt.Errorf("%w: %s: %v", ErrInvalidRoutes, path, err)
	}
	if len(rf.Variants) != 2 {
		return route.Variant{}, route.Variant{}, fmt.Errorf("%w: want 2 variants, got %d", ErrInvalidRoutes, len(rf.Variants))
	}
	a, err := rf.Variants[0].variant()
	if err != nil {
		return route.Variant{}, route.Variant{}, err
	}
	b, err := rf.Variants[1].variant()
	if err != nil {
		return route.Variant{}, route.Variant{}, err
	}
	return a, b, nil
}

func (vs VariantSpec) variant() (route.Variant, error) {
	if vs.Name == "" || len(vs.Controls) == 0 {
		return route.Variant{}, fmt.Errorf("%w: variant needs a name and controls", ErrInvalidRoutes)
	}
	v := route.Variant{Name: vs.Name, Offset: vs.Offset}
	if vs.DefaultStart != "" {
		tod, err := ParseTimeOfDay(vs.DefaultStart)
		if err != nil {
			return route.Variant{}, fmt.Errorf("%w: %s: %v", ErrInvalidRoutes, vs.Name, err)
		}
		v.DefaultStart = tod
	}
	v.Controls = make([]route.Control, 0, len(vs.Controls))
	for _, cs := range vs.Controls {
		c := route.Control{Name: cs.Name, Km: cs.Km}
		if cs.Leg != "" {
			leg, err := route.ParseLeg(cs.Leg)
			if err != nil {
				return route.Variant{}, fmt.Errorf("%w: %s: %v", ErrInvalidRoutes, vs.Name, err)
			}
			c.Leg = leg
		}
		v.Controls = append(v.Controls, c)
	}
	return v, nil
}
