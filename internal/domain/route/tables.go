package route

import (
	"time"
)

// Names of the two start locations and the unified start.
const (
	StartName   = "Start"
	WrittleName = "Writtle"
	LondonName  = "London"

	startID      = "start"
	londonOffset = 20.0
)

// body is the shared section, in kilometres from the Writtle start.
var body = []Control{ //nolint:gochecknoglobals // static route table
	{Name: "Northstowe", Km: 90, Leg: North},
	{Name: "Boston", Km: 193, Leg: North},
	{Name: "Louth", Km: 247, Leg: North},
	{Name: "Hessle", Km: 305, Leg: North},
	{Name: "Malton", Km: 370, Leg: North},
	{Name: "Barnard Castle", Km: 464, Leg: North},
	{Name: "Brampton", Km: 566, Leg: North},
	{Name: "Moffat", Km: 648, Leg: North},
	{Name: "Dunfermline", Km: 762, Leg: North},
	{Name: "Innerleithen", Km: 842, Leg: South},
	{Name: "Eskdalemuir", Km: 902, Leg: South},
	{Name: "Brampton", Km: 964, Leg: South},
	{Name: "Barnard Castle", Km: 1066, Leg: South},
	{Name: "Malton", Km: 1160, Leg: South},
	{Name: "Hessle", Km: 1225, Leg: South},
	{Name: "Louth", Km: 1283, Leg: South},
	{Name: "Boston", Km: 1337, Leg: South},
	{Name: "Northstowe", Km: 1440, Leg: South},
}

// approach is the leg from the last shared control to the finish. The offset
// already carried by the body keeps the London finish 20 km beyond Writtle's.
const approach = 90.0

func variant(name string, offset float64, start time.Duration) Variant {
	cs := make([]Control, 0, len(body)+2)
	cs = append(cs, Control{Name: name, Km: 0, Leg: North})
	for _, c := range body {
		c.Km += offset
		cs = append(cs, c)
	}
	last := cs[len(cs)-1].Km
	cs = append(cs, Control{Name: name, Km: last + approach, Leg: South})
	return Variant{Name: name, Offset: offset, DefaultStart: start, Controls: cs}
}

// WrittleVariant is the zero-offset variant (Variant B).
func WrittleVariant() Variant {
	return variant(WrittleName, 0, 6*time.Hour)
}

// LondonVariant is the offset variant (Variant A).
func LondonVariant() Variant {
	return variant(LondonName, londonOffset, 7*time.Hour)
}

// DefaultWaves returns scheduled starts: Writtle waves A..Z every 15 minutes
// from 04:00, London waves LA..LQ every 15 minutes from 05:00.
func DefaultWaves() map[string]time.Duration {
	const step = 15 * time.Minute
	w := make(map[string]time.Duration, 26+17)
	for i, c := range "ABCDEFGHIJKLMNOPQRSTUVWXYZ" {
		w[string(c)] = 4*time.Hour + time.Duration(i)*step
	}
	for i, c := range "ABCDEFGHIJKLMNOPQ" {
		w["L"+string(c)] = 5*time.Hour + time.Duration(i)*step
	}
	return w
}
