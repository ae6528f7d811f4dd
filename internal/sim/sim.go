// Package sim generates synthetic drifted datasets for testing and demos.
// It takes a baseline dataset and applies configurable mean shifts plus
// gaussian noise, producing a "current" dataset a detector should flag.
package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"

	"driftwatch/internal/dataset"
)

// Shift describes how one feature drifts: the column mean moves by
// ShiftPct percent of its baseline mean.
type Shift struct {
	Feature  string
	ShiftPct float64
}

// Options controls the simulation.
type Options struct {
	Shifts   []Shift
	NoisePct float64 // gaussian noise sigma as a percent of the feature mean
	Seed     int64
	ClipMin  float64 // lower clip bound applied to all shifted values
	ClipMax  float64 // upper clip bound; ignored when not above ClipMin
}

// DefaultNoisePct keeps unshifted columns from being byte-identical to
// the baseline, which would make the comparison trivially clean.
const DefaultNoisePct = 1.0

// Apply produces a drifted copy of the baseline dataset.
func Apply(baseline *dataset.Dataset, opts Options) (*dataset.Dataset, error) {
	if baseline == nil || baseline.NumColumns() == 0 {
		return nil, fmt.Errorf("baseline dataset is empty")
	}

	shiftByFeature := make(map[string]float64, len(opts.Shifts))
	for _, s := range opts.Shifts {
		if _, ok := baseline.Column(s.Feature); !ok {
			return nil, fmt.Errorf("shift target %q not in baseline", s.Feature)
		}
		shiftByFeature[s.Feature] = s.ShiftPct
	}

	noisePct := opts.NoisePct
	if noisePct <= 0 {
		noisePct = DefaultNoisePct
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	out := dataset.New()

	for _, name := range baseline.Columns() {
		values, _ := baseline.Column(name)

		shiftPct := shiftByFeature[name]
		drifted := driftColumn(values, shiftPct, noisePct, rng, opts)
		out.Add(name, drifted)

		log.Debug().
			Str("feature", name).
			Float64("shift_pct", shiftPct).
			Msg("simulated feature")
	}

	log.Info().
		Int("features", out.NumColumns()).
		Int("shifted", len(shiftByFeature)).
		Int64("seed", opts.Seed).
		Msg("drift simulation complete")
	return out, nil
}

// driftColumn shifts each value by shiftPct of the column mean and adds
// gaussian noise scaled to the same mean. NaN values pass through.
func driftColumn(values []float64, shiftPct, noisePct float64, rng *rand.Rand, opts Options) []float64 {
	mean := columnMean(values)
	shift := mean * shiftPct / 100
	sigma := math.Abs(mean) * noisePct / 100

	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		nv := v + shift + rng.NormFloat64()*sigma
		if opts.ClipMax > opts.ClipMin {
			nv = math.Max(opts.ClipMin, math.Min(opts.ClipMax, nv))
		}
		out[i] = nv
	}
	return out
}

func columnMean(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
