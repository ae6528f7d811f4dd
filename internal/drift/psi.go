package drift

import "math"

// DefaultBins is the number of equal-width bins used for PSI when the
// configuration does not say otherwise.
const DefaultBins = 10

// psiEpsilon replaces empty-bin proportions so the PSI log term stays finite.
const psiEpsilon = 1e-6

// CalculatePSI computes the Population Stability Index between an expected
// (baseline) and an actual (current) distribution.
//
// The combined value range of both series is split into equal-width bins and
// the index sums (actual_pct - expected_pct) * ln(actual_pct / expected_pct)
// over all bins. NaN values are dropped before binning. Degenerate inputs
// never fail: an empty series or a range collapsed to a single value yields
// the sentinel 0. The result is always finite and non-negative.
func CalculatePSI(expected, actual []float64, bins int) float64 {
	if bins <= 0 {
		bins = DefaultBins
	}

	exp := dropNaN(expected)
	act := dropNaN(actual)
	if len(exp) == 0 || len(act) == 0 {
		return 0
	}

	minVal := math.Min(minOf(exp), minOf(act))
	maxVal := math.Max(maxOf(exp), maxOf(act))
	if minVal == maxVal {
		return 0
	}

	expPct := binProportions(exp, minVal, maxVal, bins)
	actPct := binProportions(act, minVal, maxVal, bins)

	psi := 0.0
	for i := 0; i < bins; i++ {
		e := expPct[i]
		a := actPct[i]
		if e == 0 {
			e = psiEpsilon
		}
		if a == 0 {
			a = psiEpsilon
		}
		psi += (a - e) * math.Log(a/e)
	}

	if psi < 0 {
		psi = 0
	}
	return psi
}

// binProportions returns the share of values falling into each of the
// equal-width bins spanning [minVal, maxVal].
func binProportions(values []float64, minVal, maxVal float64, bins int) []float64 {
	width := (maxVal - minVal) / float64(bins)
	counts := make([]float64, bins)
	for _, v := range values {
		idx := int((v - minVal) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}

	total := float64(len(values))
	for i := range counts {
		counts[i] /= total
	}
	return counts
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
