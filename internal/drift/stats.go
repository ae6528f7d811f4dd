package drift

import (
	"fmt"
	"math"
	"sort"
)

// TestType selects the two-sample test run by CompareDistributions.
type TestType string

const (
	TestKS          TestType = "ks"
	TestMannWhitney TestType = "mannwhitney"
)

// TestResult is the outcome of a two-sample distribution comparison.
// Applicable is false when the inputs were too degenerate to test (empty
// series, or two identical constant series); such results carry the neutral
// values statistic 0 and p-value 1 so they serialize cleanly.
type TestResult struct {
	Method      TestType `json:"method"`
	Statistic   float64  `json:"statistic"`
	PValue      float64  `json:"p_value"`
	Significant bool     `json:"significant"`
	Applicable  bool     `json:"applicable"`
}

// notApplicable is the neutral sentinel for degenerate inputs.
func notApplicable(method TestType) TestResult {
	return TestResult{Method: method, Statistic: 0, PValue: 1, Significant: false, Applicable: false}
}

// CompareDistributions runs a two-sample statistical test between a baseline
// and a current series. NaN values are dropped first. An unknown test type is
// a caller error and fails fast; degenerate data does not.
func CompareDistributions(baseline, current []float64, test TestType, alpha float64) (TestResult, error) {
	if test != TestKS && test != TestMannWhitney {
		return TestResult{}, fmt.Errorf("%w: unknown test type %q", ErrInvalidInput, test)
	}
	if alpha <= 0 {
		alpha = DefaultAlpha
	}

	b := dropNaN(baseline)
	c := dropNaN(current)
	if len(b) == 0 || len(c) == 0 {
		return notApplicable(test), nil
	}
	if constantAndEqual(b, c) {
		return notApplicable(test), nil
	}

	var statistic, pValue float64
	switch test {
	case TestKS:
		statistic, pValue = ksTwoSample(b, c)
	case TestMannWhitney:
		var ok bool
		statistic, pValue, ok = mannWhitneyU(b, c)
		if !ok {
			return notApplicable(test), nil
		}
	}

	return TestResult{
		Method:      test,
		Statistic:   statistic,
		PValue:      pValue,
		Significant: pValue < alpha,
		Applicable:  true,
	}, nil
}

// constantAndEqual reports whether both series consist of one identical value.
func constantAndEqual(a, b []float64) bool {
	if minOf(a) != maxOf(a) || minOf(b) != maxOf(b) {
		return false
	}
	return a[0] == b[0]
}

// ksTwoSample computes the two-sample Kolmogorov-Smirnov statistic (maximum
// distance between the empirical CDFs) and its asymptotic p-value.
func ksTwoSample(baseline, current []float64) (statistic, pValue float64) {
	b := append([]float64(nil), baseline...)
	c := append([]float64(nil), current...)
	sort.Float64s(b)
	sort.Float64s(c)

	n1 := float64(len(b))
	n2 := float64(len(c))

	maxDiff := 0.0
	i, j := 0, 0
	for i < len(b) && j < len(c) {
		v := math.Min(b[i], c[j])
		for i < len(b) && b[i] == v {
			i++
		}
		for j < len(c) && c[j] == v {
			j++
		}
		diff := math.Abs(float64(i)/n1 - float64(j)/n2)
		if diff > maxDiff {
			maxDiff = diff
		}
	}

	return maxDiff, ksPValue(maxDiff, n1, n2)
}

// ksPValue approximates Q_KS for the two-sample statistic using the
// asymptotic Kolmogorov distribution with the standard small-sample
// correction (Numerical Recipes form).
func ksPValue(d, n1, n2 float64) float64 {
	if d <= 0 {
		return 1
	}
	ne := n1 * n2 / (n1 + n2)
	lambda := (math.Sqrt(ne) + 0.12 + 0.11/math.Sqrt(ne)) * d

	sum := 0.0
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j)*float64(j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}

	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// mannWhitneyU computes the two-sided Mann-Whitney U test using the normal
// approximation with tie correction. Returns ok=false when the rank variance
// collapses (all values tied), which the caller reports as not applicable.
func mannWhitneyU(baseline, current []float64) (statistic, pValue float64, ok bool) {
	n1 := len(baseline)
	n2 := len(current)
	n := n1 + n2

	type tagged struct {
		value    float64
		baseline bool
	}
	all := make([]tagged, 0, n)
	for _, v := range baseline {
		all = append(all, tagged{v, true})
	}
	for _, v := range current {
		all = append(all, tagged{v, false})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Average ranks across ties, accumulating the tie correction term.
	ranks := make([]float64, n)
	tieTerm := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && all[j].value == all[i].value {
			j++
		}
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		t := float64(j - i)
		tieTerm += t*t*t - t
		i = j
	}

	r1 := 0.0
	for i, tag := range all {
		if tag.baseline {
			r1 += ranks[i]
		}
	}

	u1 := r1 - float64(n1)*float64(n1+1)/2.0
	mu := float64(n1) * float64(n2) / 2.0

	nf := float64(n)
	variance := float64(n1) * float64(n2) / 12.0 * ((nf + 1) - tieTerm/(nf*(nf-1)))
	if variance <= 0 {
		return 0, 1, false
	}

	// Continuity correction toward the mean.
	z := (u1 - mu)
	switch {
	case z > 0:
		z -= 0.5
	case z < 0:
		z += 0.5
	}
	z /= math.Sqrt(variance)

	p := 2 * (1 - normalCDF(math.Abs(z)))
	if p > 1 {
		p = 1
	}
	return u1, p, true
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
