// Package model contains the raw input shapes handed to the tracking engine.
package model

// Checkpoint is one control arrival as reported by the data source. Name may
// carry a directional suffix and Time is one of the two source encodings
// ("Sunday 04:00" or "3/8 04:00"); neither is validated here.
type Checkpoint struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// Rider is a participant as received from the feed. Checkpoints are kept in
// source order, which the engine treats as time order.
type Rider struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	// ReportedKm is the upstream distance figure. It is informational only;
	// the engine derives distance from control names.
	ReportedKm float64 `json:"distance"`
}

// Last returns the latest checkpoint and false when there is none.
func (r Rider) Last() (Checkpoint, bool) {
	if len(r.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return r.Checkpoints[len(r.Checkpoints)-1], true
}
