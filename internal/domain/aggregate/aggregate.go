// Package aggregate folds per-rider results into group views: counts by
// effective status, per-control occupancy and the recent arrivals feed.
package aggregate

import (
	"sort"
	"time"

	"github.com/okian/audax/internal/domain/progress"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/status"
	"github.com/okian/audax/internal/domain/timefmt"
)

// Defaults for RecentArrivals.
const (
	DefaultArrivalWindow = 24 * 60
	DefaultArrivalLimit  = 25
)

// Arrival is a rider's latest checkpoint record.
type Arrival struct {
	RiderID   string    `json:"rider_id"`
	Name      string    `json:"name"`
	Variant   string    `json:"variant"`
	Control   string    `json:"control"`
	ControlID string    `json:"control_id,omitempty"`
	Km        float64   `json:"km"`
	Raw       string    `json:"raw_time"`
	At        time.Time `json:"at"`
	Parsed    bool      `json:"parsed"`
}

// Result is one rider's evaluation at one instant.
type Result struct {
	RiderID    string            `json:"id"`
	Name       string            `json:"name"`
	Verdict    status.Verdict    `json:"verdict"`
	Progress   progress.Progress `json:"progress"`
	Elapsed    string            `json:"elapsed"`
	ReportedKm float64           `json:"reported_km"`
	Latest     *Arrival          `json:"latest,omitempty"`
}

// Status is the effective status.
func (r *Result) Status() status.Status { return r.Verdict.Status }

// Summary counts riders by effective status. Stalled riders are counted as
// DNF and again in Stalled.
type Summary struct {
	Total      int `json:"total"`
	NotStarted int `json:"not_started"`
	InProgress int `json:"in_progress"`
	Finished   int `json:"finished"`
	DNF        int `json:"dnf"`
	Stalled    int `json:"stalled"`
}

func (s *Summary) add(r *Result) {
	s.Total++
	switch r.Verdict.Status {
	case status.NotStarted:
		s.NotStarted++
	case status.InProgress:
		s.InProgress++
	case status.Finished:
		s.Finished++
	case status.DNF:
		s.DNF++
	}
	if r.Verdict.Stalled {
		s.Stalled++
	}
}

// Count returns the number of riders in st.
func (s Summary) Count(st status.Status) int {
	switch st {
	case status.NotStarted:
		return s.NotStarted
	case status.InProgress:
		return s.InProgress
	case status.Finished:
		return s.Finished
	case status.DNF:
		return s.DNF
	}
	return 0
}

// Summarize counts riders by effective status.
func Summarize(results []Result) Summary {
	var s Summary
	for i := range results {
		s.add(&results[i])
	}
	return s
}

// ByVariant summarizes each route variant separately.
func ByVariant(results []Result) map[string]Summary {
	out := make(map[string]Summary)
	for i := range results {
		s := out[results[i].Progress.Variant]
		s.add(&results[i])
		out[results[i].Progress.Variant] = s
	}
	return out
}

// Occupancy is one bucket of the merged control view.
type Occupancy struct {
	route.MergedControl
	// Current counts in-progress riders whose furthest control is this one.
	Current int `json:"current"`
	// Passed counts riders who have reached this control or beyond.
	Passed int      `json:"passed"`
	Riders []string `json:"riders"`
}

// OccupancyByControl buckets riders by the merged control view, where both
// start locations are one Start.
func OccupancyByControl(results []Result, routes *route.Model) []Occupancy {
	merged := routes.MergedControls()
	out := make([]Occupancy, len(merged))
	pos := make(map[string]int, len(merged))
	for i, mc := range merged {
		out[i] = Occupancy{MergedControl: mc, Riders: []string{}}
		pos[mc.ID] = i
	}
	for i := range results {
		r := &results[i]
		last := r.Progress.FurthestIndex
		if last < 0 {
			continue
		}
		for idx := 0; idx <= last; idx++ {
			if b, ok := pos[routes.MergedID(r.RiderID, idx)]; ok {
				out[b].Passed++
			}
		}
		if r.Verdict.Status != status.InProgress {
			continue
		}
		if b, ok := pos[routes.MergedID(r.RiderID, last)]; ok {
			out[b].Current++
			out[b].Riders = append(out[b].Riders, r.RiderID)
		}
	}
	for i := range out {
		sort.Strings(out[i].Riders)
	}
	return out
}

// RecentArrivals lists each rider's latest record, newest first, dropping
// unparseable records and records older than window minutes. Non-positive
// window or limit use the defaults.
func RecentArrivals(results []Result, now time.Time, window, limit int) []Arrival {
	if window <= 0 {
		window = DefaultArrivalWindow
	}
	if limit <= 0 {
		limit = DefaultArrivalLimit
	}
	out := make([]Arrival, 0, limit)
	for i := range results {
		a := results[i].Latest
		if a == nil || !a.Parsed {
			continue
		}
		age := timefmt.MinutesBetween(a.At, now)
		if age < 0 || age > window {
			continue
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		return out[i].RiderID < out[j].RiderID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
