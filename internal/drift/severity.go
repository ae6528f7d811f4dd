package drift

// Severity is the urgency of an emitted alert.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting. Higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// PSILevel classifies a PSI score against the standard industry thresholds:
// below 0.1 no drift, 0.1-0.2 minor drift, above 0.2 major drift.
type PSILevel string

const (
	PSINone  PSILevel = "none"
	PSIMinor PSILevel = "minor"
	PSIMajor PSILevel = "major"
)

// ClassifyPSI maps a PSI score to its drift level under the given thresholds.
func (t Thresholds) ClassifyPSI(psi float64) PSILevel {
	switch {
	case psi > t.PSIMajor:
		return PSIMajor
	case psi > t.PSIMinor:
		return PSIMinor
	default:
		return PSINone
	}
}

// psiAlertSeverity is the single place where a PSI level becomes an alert
// severity: minor drift warns, major drift is critical.
func psiAlertSeverity(level PSILevel) Severity {
	switch level {
	case PSIMajor:
		return SeverityCritical
	case PSIMinor:
		return SeverityWarning
	default:
		return SeverityNone
	}
}

// degradationSeverity classifies a relative metric degradation (percent)
// against warning and critical cutoffs.
func degradationSeverity(pct, warnPct, critPct float64) Severity {
	switch {
	case pct >= critPct:
		return SeverityCritical
	case pct >= warnPct:
		return SeverityWarning
	default:
		return SeverityNone
	}
}
