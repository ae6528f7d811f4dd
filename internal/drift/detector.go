// Package drift implements statistical drift detection for production ML
// models: per-feature Population Stability Index, two-sample distribution
// tests, model-performance comparison, and alert aggregation into a single
// immutable report per run.
package drift

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidInput marks caller errors: malformed datasets, unknown test
// types, mismatched schemas. Degenerate statistics (empty series, NaN,
// constant values) are absorbed into sentinel results and never wrapped here.
var ErrInvalidInput = errors.New("drift: invalid input")

// DefaultAlpha is the significance threshold for distribution tests.
const DefaultAlpha = 0.05

// Thresholds are the policy constants for alert generation. The PSI cutoffs
// follow the standard reading of the index (0.1 minor, 0.2 major); the
// degradation cutoffs are relative percentages against the baseline metric.
type Thresholds struct {
	PSIMinor        float64 `yaml:"psiMinor" json:"psi_minor"`
	PSIMajor        float64 `yaml:"psiMajor" json:"psi_major"`
	Alpha           float64 `yaml:"alpha" json:"alpha"`
	AccuracyWarnPct float64 `yaml:"accuracyWarnPct" json:"accuracy_warn_pct"`
	AccuracyCritPct float64 `yaml:"accuracyCritPct" json:"accuracy_crit_pct"`
	MetricWarnPct   float64 `yaml:"metricWarnPct" json:"metric_warn_pct"`
	MetricCritPct   float64 `yaml:"metricCritPct" json:"metric_crit_pct"`
	Bins            int     `yaml:"bins" json:"bins"`
}

// DefaultThresholds returns the policy defaults documented in Thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PSIMinor:        0.1,
		PSIMajor:        0.2,
		Alpha:           DefaultAlpha,
		AccuracyWarnPct: 5,
		AccuracyCritPct: 10,
		MetricWarnPct:   5,
		MetricCritPct:   10,
		Bins:            DefaultBins,
	}
}

// withDefaults fills zero-valued fields so a partially specified config
// behaves like the documented policy.
func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.PSIMinor == 0 {
		t.PSIMinor = def.PSIMinor
	}
	if t.PSIMajor == 0 {
		t.PSIMajor = def.PSIMajor
	}
	if t.Alpha == 0 {
		t.Alpha = def.Alpha
	}
	if t.AccuracyWarnPct == 0 {
		t.AccuracyWarnPct = def.AccuracyWarnPct
	}
	if t.AccuracyCritPct == 0 {
		t.AccuracyCritPct = def.AccuracyCritPct
	}
	if t.MetricWarnPct == 0 {
		t.MetricWarnPct = def.MetricWarnPct
	}
	if t.MetricCritPct == 0 {
		t.MetricCritPct = def.MetricCritPct
	}
	if t.Bins == 0 {
		t.Bins = def.Bins
	}
	return t
}

// DataSource is the feature-table view the detector needs. *dataset.Dataset
// satisfies it.
type DataSource interface {
	Columns() []string
	Column(name string) ([]float64, bool)
}

// FeatureDrift holds the per-feature detection results.
type FeatureDrift struct {
	PSI          float64    `json:"psi"`
	PSILevel     PSILevel   `json:"psi_level"`
	KS           TestResult `json:"ks"`
	BaselineMean float64    `json:"baseline_mean"`
	CurrentMean  float64    `json:"current_mean"`
	MeanShift    float64    `json:"mean_shift"`
	MeanShiftPct float64    `json:"mean_shift_pct"`
	BaselineStd  float64    `json:"baseline_std"`
	CurrentStd   float64    `json:"current_std"`
	StdShift     float64    `json:"std_shift"`
	StdShiftPct  float64    `json:"std_shift_pct"`
	HasDrift     bool       `json:"has_drift"`
}

// MetricDrift compares one model performance metric between snapshots.
type MetricDrift struct {
	Baseline       float64  `json:"baseline"`
	Current        float64  `json:"current"`
	Degradation    float64  `json:"degradation"`
	DegradationPct float64  `json:"degradation_pct"`
	AlertLevel     Severity `json:"alert_level"`
}

// Alert flags a drift condition that crossed a policy threshold. Alerts are
// value types and never mutated after the report is built.
type Alert struct {
	Type     string   `json:"type"` // feature_drift or performance_degradation
	Subject  string   `json:"subject"`
	Severity Severity `json:"severity"`
	Score    float64  `json:"score"`
	Message  string   `json:"message"`
}

// Summary aggregates counts for quick inspection of a report.
type Summary struct {
	FeaturesAnalyzed  int `json:"features_analyzed"`
	FeaturesWithDrift int `json:"features_with_drift"`
	TotalAlerts       int `json:"total_alerts"`
	CriticalAlerts    int `json:"critical_alerts"`
	WarningAlerts     int `json:"warning_alerts"`
}

// Report is the immutable result of one detection run.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Features    map[string]FeatureDrift `json:"feature_drift"`
	Metrics     map[string]MetricDrift  `json:"performance_drift"`
	Alerts      []Alert                 `json:"alerts"`
	Summary     Summary                 `json:"summary"`
}

// FeatureStats is a compact distribution snapshot persisted alongside
// reports so a monitor can compare future data against a stored baseline.
type FeatureStats struct {
	Mean      float64    `json:"mean"`
	Std       float64    `json:"std"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Count     int        `json:"count"`
	Quartiles [3]float64 `json:"quartiles"` // 25th, 50th, 75th
}

// Summarize computes FeatureStats over a series, ignoring NaN values.
func Summarize(values []float64) FeatureStats {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return FeatureStats{}
	}
	sorted := append([]float64(nil), clean...)
	sort.Float64s(sorted)

	fs := FeatureStats{
		Mean:  stat.Mean(clean, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(clean),
	}
	if len(clean) > 1 {
		fs.Std = stat.StdDev(clean, nil)
	}
	fs.Quartiles[0] = stat.Quantile(0.25, stat.Empirical, sorted, nil)
	fs.Quartiles[1] = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	fs.Quartiles[2] = stat.Quantile(0.75, stat.Empirical, sorted, nil)
	return fs
}

// knownMetrics is the canonical metric ordering; extra metrics common to
// both snapshots are compared after these, alphabetically.
var knownMetrics = []string{"accuracy", "precision", "recall", "f1"}

// Detector orchestrates per-feature and per-metric drift detection.
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a detector; zero-valued threshold fields fall back to
// the documented defaults.
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t.withDefaults()}
}

// Thresholds returns the effective policy constants.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// DetectDrift compares a current dataset and metric snapshot against a
// baseline and returns the aggregated report. Features are the numeric
// columns common to both datasets; metrics are compared by name. Statistical
// edge cases inside a feature degrade to sentinels, but structurally invalid
// input (nil or empty datasets, no shared features) fails fast.
func (d *Detector) DetectDrift(baseline, current DataSource, baselineMetrics, currentMetrics map[string]float64) (*Report, error) {
	if baseline == nil || current == nil {
		return nil, fmt.Errorf("%w: baseline and current datasets are required", ErrInvalidInput)
	}
	if len(baseline.Columns()) == 0 {
		return nil, fmt.Errorf("%w: baseline dataset has no numeric features", ErrInvalidInput)
	}
	if len(current.Columns()) == 0 {
		return nil, fmt.Errorf("%w: current dataset has no numeric features", ErrInvalidInput)
	}

	features := commonColumns(baseline, current)
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: datasets share no feature columns", ErrInvalidInput)
	}

	log.Info().Int("features", len(features)).Msg("Starting drift detection")

	featureDrift := make(map[string]FeatureDrift, len(features))
	for _, name := range features {
		b, _ := baseline.Column(name)
		c, _ := current.Column(name)
		featureDrift[name] = d.analyzeFeature(name, b, c)
	}

	metricDrift, err := d.comparePerformance(baselineMetrics, currentMetrics)
	if err != nil {
		return nil, err
	}

	alerts := d.generateAlerts(featureDrift, metricDrift)

	summary := Summary{
		FeaturesAnalyzed: len(featureDrift),
		TotalAlerts:      len(alerts),
	}
	for _, fd := range featureDrift {
		if fd.HasDrift {
			summary.FeaturesWithDrift++
		}
	}
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			summary.CriticalAlerts++
		case SeverityWarning:
			summary.WarningAlerts++
		}
	}

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Features:    featureDrift,
		Metrics:     metricDrift,
		Alerts:      alerts,
		Summary:     summary,
	}

	log.Info().
		Int("features_with_drift", summary.FeaturesWithDrift).
		Int("alerts", summary.TotalAlerts).
		Msg("Drift detection complete")

	return report, nil
}

// analyzeFeature runs PSI and the KS test for one feature and derives the
// mean and standard deviation shifts.
func (d *Detector) analyzeFeature(name string, baseline, current []float64) FeatureDrift {
	psi := CalculatePSI(baseline, current, d.thresholds.Bins)
	ks, _ := CompareDistributions(baseline, current, TestKS, d.thresholds.Alpha)

	bStats := Summarize(baseline)
	cStats := Summarize(current)

	fd := FeatureDrift{
		PSI:          psi,
		PSILevel:     d.thresholds.ClassifyPSI(psi),
		KS:           ks,
		BaselineMean: bStats.Mean,
		CurrentMean:  cStats.Mean,
		MeanShift:    cStats.Mean - bStats.Mean,
		BaselineStd:  bStats.Std,
		CurrentStd:   cStats.Std,
		StdShift:     cStats.Std - bStats.Std,
	}
	if bStats.Mean != 0 {
		fd.MeanShiftPct = fd.MeanShift / bStats.Mean * 100
	}
	if bStats.Std != 0 {
		fd.StdShiftPct = fd.StdShift / bStats.Std * 100
	}
	fd.HasDrift = fd.PSILevel != PSINone || (ks.Applicable && ks.Significant)

	log.Debug().
		Str("feature", name).
		Float64("psi", psi).
		Bool("has_drift", fd.HasDrift).
		Msg("Feature analyzed")

	return fd
}

// comparePerformance computes the degradation of each metric present in both
// snapshots. Metric values outside [0, 1] are malformed input.
func (d *Detector) comparePerformance(baselineMetrics, currentMetrics map[string]float64) (map[string]MetricDrift, error) {
	out := make(map[string]MetricDrift)

	for _, name := range metricNames(baselineMetrics, currentMetrics) {
		b, okB := baselineMetrics[name]
		c, okC := currentMetrics[name]
		if !okB || !okC {
			continue
		}
		if !validMetricValue(b) || !validMetricValue(c) {
			return nil, fmt.Errorf("%w: metric %q has value outside [0,1] (baseline %v, current %v)", ErrInvalidInput, name, b, c)
		}

		md := MetricDrift{
			Baseline:    b,
			Current:     c,
			Degradation: b - c,
		}
		if b > 0 {
			md.DegradationPct = md.Degradation / b * 100
		}

		warn, crit := d.thresholds.MetricWarnPct, d.thresholds.MetricCritPct
		if name == "accuracy" {
			warn, crit = d.thresholds.AccuracyWarnPct, d.thresholds.AccuracyCritPct
		}
		md.AlertLevel = degradationSeverity(md.DegradationPct, warn, crit)

		out[name] = md
	}
	return out, nil
}

// generateAlerts turns per-feature and per-metric results into the sorted
// alert list: severity descending, then score descending, then subject.
func (d *Detector) generateAlerts(features map[string]FeatureDrift, metrics map[string]MetricDrift) []Alert {
	var alerts []Alert

	for name, fd := range features {
		if sev := psiAlertSeverity(fd.PSILevel); sev != SeverityNone {
			alerts = append(alerts, Alert{
				Type:     "feature_drift",
				Subject:  name,
				Severity: sev,
				Score:    fd.PSI,
				Message:  fmt.Sprintf("Feature %q shows %s drift (PSI %.3f)", name, fd.PSILevel, fd.PSI),
			})
			continue
		}
		if fd.KS.Applicable && fd.KS.Significant {
			alerts = append(alerts, Alert{
				Type:     "feature_drift",
				Subject:  name,
				Severity: SeverityWarning,
				Score:    fd.KS.Statistic,
				Message:  fmt.Sprintf("Feature %q distribution changed significantly (KS p-value %.4f)", name, fd.KS.PValue),
			})
		}
	}

	for name, md := range metrics {
		switch md.AlertLevel {
		case SeverityCritical:
			alerts = append(alerts, Alert{
				Type:     "performance_degradation",
				Subject:  name,
				Severity: SeverityCritical,
				Score:    md.DegradationPct,
				Message:  fmt.Sprintf("Critical degradation in %s: %.2f%% drop from %.4f to %.4f", name, md.DegradationPct, md.Baseline, md.Current),
			})
		case SeverityWarning:
			alerts = append(alerts, Alert{
				Type:     "performance_degradation",
				Subject:  name,
				Severity: SeverityWarning,
				Score:    md.DegradationPct,
				Message:  fmt.Sprintf("Metric %s degraded by %.2f%%", name, md.DegradationPct),
			})
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		if alerts[i].Score != alerts[j].Score {
			return alerts[i].Score > alerts[j].Score
		}
		return alerts[i].Subject < alerts[j].Subject
	})

	return alerts
}

// commonColumns returns baseline columns also present in current, in
// baseline order, logging whatever is missing on either side.
func commonColumns(baseline, current DataSource) []string {
	currentSet := make(map[string]bool)
	for _, name := range current.Columns() {
		currentSet[name] = true
	}

	var common []string
	for _, name := range baseline.Columns() {
		if currentSet[name] {
			common = append(common, name)
			delete(currentSet, name)
		} else {
			log.Warn().Str("feature", name).Msg("Feature missing from current dataset")
		}
	}
	for name := range currentSet {
		log.Warn().Str("feature", name).Msg("Feature missing from baseline dataset")
	}
	return common
}

// metricNames returns the canonical metric names first, then any extra
// metrics shared by both snapshots in alphabetical order.
func metricNames(baseline, current map[string]float64) []string {
	names := append([]string(nil), knownMetrics...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}

	var extra []string
	for n := range baseline {
		if !seen[n] {
			if _, ok := current[n]; ok {
				extra = append(extra, n)
			}
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func validMetricValue(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
