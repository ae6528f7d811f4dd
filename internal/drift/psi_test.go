package drift

import (
	"math"
	"math/rand"
	"testing"
)

func normalSample(n int, mean, std float64, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + std*r.NormFloat64()
	}
	return out
}

func TestCalculatePSI_IdenticalDistributions(t *testing.T) {
	t.Parallel()

	data := normalSample(1000, 0, 1, 42)
	psi := CalculatePSI(data, data, DefaultBins)

	if psi >= 0.1 {
		t.Errorf("expected PSI < 0.1 for identical distributions, got %f", psi)
	}
	if psi < 0 {
		t.Errorf("PSI must be non-negative, got %f", psi)
	}
}

func TestCalculatePSI_MajorShift(t *testing.T) {
	t.Parallel()

	baseline := normalSample(1000, 0, 1, 42)
	current := make([]float64, len(baseline))
	for i, v := range baseline {
		current[i] = v + 5 // shift far beyond the spread
	}

	psi := CalculatePSI(baseline, current, DefaultBins)
	if psi <= 0.2 {
		t.Errorf("expected PSI > 0.2 for a large shift, got %f", psi)
	}
}

func TestCalculatePSI_MinorShiftNonNegative(t *testing.T) {
	t.Parallel()

	baseline := normalSample(1000, 0, 1, 1)
	current := normalSample(1000, 0.05, 1, 2)

	psi := CalculatePSI(baseline, current, DefaultBins)
	if psi < 0 {
		t.Errorf("PSI must be non-negative, got %f", psi)
	}
	if math.IsNaN(psi) || math.IsInf(psi, 0) {
		t.Errorf("PSI must be finite, got %f", psi)
	}
}

func TestCalculatePSI_EmptySeries(t *testing.T) {
	t.Parallel()

	data := []float64{1, 2, 3}
	if psi := CalculatePSI(nil, data, DefaultBins); psi != 0 {
		t.Errorf("expected sentinel 0 for empty baseline, got %f", psi)
	}
	if psi := CalculatePSI(data, nil, DefaultBins); psi != 0 {
		t.Errorf("expected sentinel 0 for empty current, got %f", psi)
	}
	if psi := CalculatePSI(nil, nil, DefaultBins); psi != 0 {
		t.Errorf("expected sentinel 0 for two empty series, got %f", psi)
	}
}

func TestCalculatePSI_NaNValuesIgnored(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	baseline := []float64{1, 2, 3, nan, 5, 6, 7, 8, 9, 10}
	current := []float64{1, 2, 3, 4, nan, 6, 7, 8, 9, 10}

	psi := CalculatePSI(baseline, current, DefaultBins)
	if math.IsNaN(psi) {
		t.Error("PSI must not propagate NaN input values")
	}
	if math.IsInf(psi, 0) {
		t.Errorf("PSI must be finite, got %f", psi)
	}
}

func TestCalculatePSI_AllNaN(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	psi := CalculatePSI([]float64{nan, nan}, []float64{nan, nan}, DefaultBins)
	if psi != 0 {
		t.Errorf("expected sentinel 0 for all-NaN input, got %f", psi)
	}
}

func TestCalculatePSI_SingleDistinctValue(t *testing.T) {
	t.Parallel()

	constant := make([]float64, 100)
	for i := range constant {
		constant[i] = 5.0
	}

	psi := CalculatePSI(constant, constant, DefaultBins)
	if psi != 0 {
		t.Errorf("expected PSI 0 for identical single-value distributions, got %f", psi)
	}
}

func TestCalculatePSI_DefaultBinsFallback(t *testing.T) {
	t.Parallel()

	baseline := normalSample(500, 0, 1, 7)
	current := normalSample(500, 0, 1, 8)

	// A non-positive bin count falls back to the default instead of failing.
	psi := CalculatePSI(baseline, current, 0)
	if math.IsNaN(psi) || psi < 0 {
		t.Errorf("expected a valid PSI with default bins, got %f", psi)
	}
}

func TestCalculatePSI_DisjointRanges(t *testing.T) {
	t.Parallel()

	baseline := []float64{20, 30, 40, 50, 60}
	current := []float64{25, 35, 45, 55, 65}

	psi := CalculatePSI(baseline, current, DefaultBins)
	if psi <= 0.2 {
		t.Errorf("expected major drift for fully shifted bins, got %f", psi)
	}
}
