package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"driftwatch/internal/drift"
)

const figureBins = 20

// RenderFigures draws a baseline-vs-current histogram overlay for every
// feature in the report and saves one PNG per feature under figuresDir.
// Features whose series are empty after NaN removal are skipped.
func RenderFigures(rep *drift.Report, baseline, current drift.DataSource, figuresDir string) error {
	if err := os.MkdirAll(figuresDir, 0o755); err != nil {
		return fmt.Errorf("create figures directory: %w", err)
	}

	for _, name := range sortedFeatureNames(rep) {
		b, okB := baseline.Column(name)
		c, okC := current.Column(name)
		if !okB || !okC {
			continue
		}
		if err := renderFeature(rep.Features[name], name, b, c, figuresDir); err != nil {
			return fmt.Errorf("render figure for %s: %w", name, err)
		}
	}
	return nil
}

func renderFeature(fd drift.FeatureDrift, name string, baseline, current []float64, dir string) error {
	b := finiteValues(baseline)
	c := finiteValues(current)
	if len(b) == 0 || len(c) == 0 {
		log.Warn().Str("feature", name).Msg("Skipping figure for empty feature")
		return nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (PSI %.3f, %s drift)", name, fd.PSI, fd.PSILevel)
	p.X.Label.Text = name
	p.Y.Label.Text = "density"

	hb, err := plotter.NewHist(b, figureBins)
	if err != nil {
		return err
	}
	hb.Normalize(1)
	hb.FillColor = color.NRGBA{R: 70, G: 130, B: 180, A: 128}
	hb.LineStyle.Color = color.NRGBA{R: 70, G: 130, B: 180, A: 255}

	hc, err := plotter.NewHist(c, figureBins)
	if err != nil {
		return err
	}
	hc.Normalize(1)
	hc.FillColor = color.NRGBA{R: 205, G: 92, B: 92, A: 128}
	hc.LineStyle.Color = color.NRGBA{R: 205, G: 92, B: 92, A: 255}

	p.Add(hb, hc)

	path := filepath.Join(dir, name+"_drift.png")
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return err
	}

	log.Info().Str("file", path).Msg("Figure generated")
	return nil
}

func finiteValues(values []float64) plotter.Values {
	out := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
