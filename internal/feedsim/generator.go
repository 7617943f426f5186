package feedsim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/okian/audax/internal/domain/model"
	"github.com/okian/audax/internal/domain/route"
	"github.com/okian/audax/internal/domain/timefmt"
	"github.com/okian/audax/pkg/logger"
)

// Rider behaviour ranges.
const (
	notStartedShare = 0.05
	abandonShare    = 0.08
	suffixShare     = 0.5
	minSpeedKmh     = 14.0
	speedRangeKmh   = 14.0
	minStopMinutes  = 10
	stopRangeMin    = 40
)

// Field is a generated feed plus the distance every rider reached.
type Field struct {
	Riders   []model.Rider
	Expected map[string]float64
}

// Generator builds riders against a route model.
type Generator struct {
	routes *route.Model
	times  *timefmt.Normalizer
	now    time.Time
	seed   uint64
	codes  []string
}

// NewGenerator places riders on routes as of now.
func NewGenerator(routes *route.Model, times *timefmt.Normalizer, now time.Time, seed uint64) *Generator {
	waves := route.DefaultWaves()
	codes := make([]string, 0, len(waves))
	for c := range waves {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return &Generator{routes: routes, times: times, now: now, seed: seed, codes: codes}
}

// Generate creates n riders using up to workers goroutines. The result
// depends only on the seed, n and now.
func (g *Generator) Generate(ctx context.Context, n, workers int) (Field, error) {
	logger.Get().Info(ctx, "generating riders", logger.Int("riders", n))

	type riderResult struct {
		index int
		rider model.Rider
		km    float64
	}

	if workers < 1 {
		workers = 1
	}
	workers = min(workers, max(n, 1))
	perWorker := n / workers

	results := make(chan riderResult, n)
	for w := 0; w < workers; w++ {
		start := w * perWorker
		end := start + perWorker
		if w == workers-1 {
			end = n
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				r, km := g.rider(i)
				results <- riderResult{index: i, rider: r, km: km}
			}
		}(start, end)
	}

	f := Field{Riders: make([]model.Rider, n), Expected: make(map[string]float64, n)}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return Field{}, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		case res := <-results:
			f.Riders[res.index] = res.rider
			f.Expected[res.rider.ID] = res.km
		}
	}
	return f, nil
}

// rider walks one rider along its variant until now.
func (g *Generator) rider(i int) (model.Rider, float64) {
	rng := rand.New(rand.NewPCG(g.seed, uint64(i))) //nolint:gosec // reproducible simulation, not security

	code := g.codes[rng.IntN(len(g.codes))]
	r := model.Rider{
		ID:   fmt.Sprintf("%s%d", code, i+1),
		Name: fmt.Sprintf("Rider %d", i+1),
	}
	if rng.Float64() < notStartedShare {
		r.Status = "registered"
		return r, 0
	}

	controls := g.routes.ControlsFor(r.ID)
	speed := minSpeedKmh + rng.Float64()*speedRangeKmh
	suffixed := rng.Float64() < suffixShare
	quitAt := -1
	if rng.Float64() < abandonShare && len(controls) > 2 {
		quitAt = 1 + rng.IntN(len(controls)-2)
	}

	at := g.times.At(g.routes.Wave(r.ID).Start)
	var furthest, prevKm float64
	for idx, c := range controls {
		if idx > 0 {
			ride := time.Duration((c.Km - prevKm) / speed * float64(time.Hour))
			at = at.Add(ride)
		}
		if at.After(g.now) {
			break
		}
		r.Checkpoints = append(r.Checkpoints, model.Checkpoint{
			Name: checkpointName(c, idx, len(controls), suffixed),
			Time: g.times.FormatDayTime(at),
		})
		furthest, prevKm = c.Km, c.Km
		at = at.Add(time.Duration(minStopMinutes+rng.IntN(stopRangeMin)) * time.Minute)
		if idx == quitAt {
			break
		}
	}

	switch {
	case len(r.Checkpoints) == 0:
		r.Status = "registered"
	case len(r.Checkpoints) == len(controls):
		r.Status = "finished"
	case len(r.Checkpoints)-1 == quitAt:
		r.Status = "DNF"
	default:
		r.Status = "riding"
	}
	r.ReportedKm = furthest
	return r, furthest
}

// checkpointName mimics the upstream spelling: "Start" for the first
// control and, for some riders, a direction letter on the shared body.
func checkpointName(c route.Control, idx, total int, suffixed bool) string {
	switch {
	case idx == 0:
		return route.StartName
	case idx == total-1 || !suffixed:
		return c.Name
	default:
		return c.Name + " " + c.Leg.String()[:1]
	}
}
