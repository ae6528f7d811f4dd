// Package report serializes drift reports to their persisted formats: a
// lossless JSON document, a human-readable alerts file, a per-feature CSV
// table, and histogram figures.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"driftwatch/internal/drift"
)

const (
	jsonFileName    = "drift_report.json"
	alertsFileName  = "drift_alerts.txt"
	featureFileName = "feature_drift.csv"
)

// Emitter writes all report artifacts under one output directory.
type Emitter struct {
	outputDir string
}

// NewEmitter creates an emitter rooted at outputDir.
func NewEmitter(outputDir string) *Emitter {
	return &Emitter{outputDir: outputDir}
}

// Write emits the JSON report, the alerts text file, and the feature CSV.
func (e *Emitter) Write(rep *drift.Report) error {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	if err := e.writeJSON(rep); err != nil {
		return err
	}
	if err := e.writeAlertsText(rep); err != nil {
		return err
	}
	return e.writeFeatureCSV(rep)
}

func (e *Emitter) writeJSON(rep *drift.Report) error {
	path := filepath.Join(e.outputDir, jsonFileName)

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal drift report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write drift report: %w", err)
	}

	log.Info().Str("file", path).Msg("JSON report generated")
	return nil
}

// LoadJSON reads a previously emitted JSON report back into memory. The
// round trip is lossless: every field of the report survives.
func LoadJSON(path string) (*drift.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drift report %s: %w", path, err)
	}

	var rep drift.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse drift report %s: %w", path, err)
	}
	return &rep, nil
}

// JSONPath returns where Write places the JSON report.
func (e *Emitter) JSONPath() string {
	return filepath.Join(e.outputDir, jsonFileName)
}

func (e *Emitter) writeAlertsText(rep *drift.Report) error {
	path := filepath.Join(e.outputDir, alertsFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create alerts file: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "DATA DRIFT ALERTS")
	fmt.Fprintln(f, "=================")
	fmt.Fprintln(f)

	if len(rep.Alerts) == 0 {
		fmt.Fprintln(f, "No drift alerts detected.")
	}
	for _, alert := range rep.Alerts {
		fmt.Fprintf(f, "[%s] %s\n", strings.ToUpper(string(alert.Severity)), alert.Type)
		fmt.Fprintf(f, "  %s\n", alert.Message)
		fmt.Fprintf(f, "  score: %.4f\n\n", alert.Score)
	}

	log.Info().Str("file", path).Msg("Alerts file generated")
	return nil
}

func (e *Emitter) writeFeatureCSV(rep *drift.Report) error {
	path := filepath.Join(e.outputDir, featureFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create feature report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"Feature", "PSI", "PSI Level", "KS Statistic", "KS p-value", "KS Significant",
		"Baseline Mean", "Current Mean", "Mean Shift %", "Baseline Std", "Current Std", "Has Drift",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, name := range sortedFeatureNames(rep) {
		fd := rep.Features[name]
		record := []string{
			name,
			fmt.Sprintf("%.4f", fd.PSI),
			string(fd.PSILevel),
			fmt.Sprintf("%.4f", fd.KS.Statistic),
			fmt.Sprintf("%.4f", fd.KS.PValue),
			fmt.Sprintf("%t", fd.KS.Significant),
			fmt.Sprintf("%.4f", fd.BaselineMean),
			fmt.Sprintf("%.4f", fd.CurrentMean),
			fmt.Sprintf("%.2f", fd.MeanShiftPct),
			fmt.Sprintf("%.4f", fd.BaselineStd),
			fmt.Sprintf("%.4f", fd.CurrentStd),
			fmt.Sprintf("%t", fd.HasDrift),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", path).Msg("Feature drift table generated")
	return nil
}

// PrintSummary prints a condensed run summary to stdout.
func PrintSummary(rep *drift.Report) {
	fmt.Println("\n=== DRIFT DETECTION SUMMARY ===")
	fmt.Printf("Generated: %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Features analyzed: %d\n", rep.Summary.FeaturesAnalyzed)
	fmt.Printf("Features with drift: %d\n", rep.Summary.FeaturesWithDrift)
	fmt.Printf("Alerts: %d (%d critical, %d warning)\n",
		rep.Summary.TotalAlerts, rep.Summary.CriticalAlerts, rep.Summary.WarningAlerts)

	if len(rep.Alerts) > 0 {
		fmt.Println("\nTop alerts:")
		for i, alert := range rep.Alerts {
			if i >= 5 {
				break
			}
			fmt.Printf("  [%s] %s\n", strings.ToUpper(string(alert.Severity)), alert.Message)
		}
	}
	fmt.Println("===============================")
}

func sortedFeatureNames(rep *drift.Report) []string {
	names := make([]string, 0, len(rep.Features))
	for name := range rep.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
