package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/internal/dataset"
	"driftwatch/internal/drift"
)

func buildReport(t *testing.T) (*drift.Report, *dataset.Dataset, *dataset.Dataset) {
	t.Helper()

	baseline := dataset.FromColumns(map[string][]float64{
		"Age":    {20, 30, 40, 50, 60},
		"Weight": {60, 70, 80, 90, 100},
	})
	current := dataset.FromColumns(map[string][]float64{
		"Age":    {25, 35, 45, 55, 65},
		"Weight": {65, 75, 85, 95, 105},
	})

	detector := drift.NewDetector(drift.DefaultThresholds())
	rep, err := detector.DetectDrift(baseline, current,
		map[string]float64{"accuracy": 0.99, "precision": 0.99, "recall": 0.99, "f1": 0.99},
		map[string]float64{"accuracy": 0.85, "precision": 0.85, "recall": 0.85, "f1": 0.85},
	)
	require.NoError(t, err)
	return rep, baseline, current
}

func TestEmitter_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	rep, _, _ := buildReport(t)
	emitter := NewEmitter(t.TempDir())
	require.NoError(t, emitter.Write(rep))

	got, err := LoadJSON(emitter.JSONPath())
	require.NoError(t, err)

	assert.True(t, rep.GeneratedAt.Equal(got.GeneratedAt), "timestamp must survive the round trip")
	assert.Equal(t, rep.Features, got.Features)
	assert.Equal(t, rep.Metrics, got.Metrics)
	assert.Equal(t, rep.Alerts, got.Alerts)
	assert.Equal(t, rep.Summary, got.Summary)
}

func TestEmitter_WritesAllArtifacts(t *testing.T) {
	t.Parallel()

	rep, _, _ := buildReport(t)
	dir := t.TempDir()
	emitter := NewEmitter(dir)
	require.NoError(t, emitter.Write(rep))

	for _, name := range []string{jsonFileName, alertsFileName, featureFileName} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected artifact %s", name)
	}
}

func TestEmitter_AlertsText(t *testing.T) {
	t.Parallel()

	rep, _, _ := buildReport(t)
	dir := t.TempDir()
	require.NoError(t, NewEmitter(dir).Write(rep))

	data, err := os.ReadFile(filepath.Join(dir, alertsFileName))
	require.NoError(t, err)

	text := string(data)
	require.NotEmpty(t, rep.Alerts)
	assert.Contains(t, text, strings.ToUpper(string(rep.Alerts[0].Severity)))
	assert.Contains(t, text, rep.Alerts[0].Message)
}

func TestEmitter_NoAlerts(t *testing.T) {
	t.Parallel()

	baseline := dataset.FromColumns(map[string][]float64{"Age": {20, 30, 40, 50, 60}})
	detector := drift.NewDetector(drift.DefaultThresholds())
	rep, err := detector.DetectDrift(baseline, baseline, nil, nil)
	require.NoError(t, err)
	require.Empty(t, rep.Alerts)

	dir := t.TempDir()
	require.NoError(t, NewEmitter(dir).Write(rep))

	data, err := os.ReadFile(filepath.Join(dir, alertsFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "No drift alerts detected.")
}

func TestRenderFigures(t *testing.T) {
	t.Parallel()

	rep, baseline, current := buildReport(t)
	dir := t.TempDir()
	require.NoError(t, RenderFigures(rep, baseline, current, dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "one figure per feature")
	for _, entry := range entries {
		assert.True(t, strings.HasSuffix(entry.Name(), "_drift.png"))
	}
}

func TestFeatureCSVContents(t *testing.T) {
	t.Parallel()

	rep, _, _ := buildReport(t)
	dir := t.TempDir()
	require.NoError(t, NewEmitter(dir).Write(rep))

	data, err := os.ReadFile(filepath.Join(dir, featureFileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3, "header plus one row per feature")
	assert.True(t, strings.HasPrefix(lines[1], "Age,"))
	assert.True(t, strings.HasPrefix(lines[2], "Weight,"))
}
