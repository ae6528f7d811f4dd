// Command driftsim generates a synthetically drifted copy of a dataset.
// It is used to exercise the detector end to end and to produce demo data:
//
//	driftsim -input data/baseline.csv -output data/current.csv -shift Age=20 -shift Weight=10
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"driftwatch/internal/dataset"
	"driftwatch/internal/sim"
)

// shiftFlags collects repeated -shift Feature=pct arguments.
type shiftFlags []sim.Shift

func (s *shiftFlags) String() string {
	parts := make([]string, len(*s))
	for i, sh := range *s {
		parts[i] = fmt.Sprintf("%s=%g", sh.Feature, sh.ShiftPct)
	}
	return strings.Join(parts, ",")
}

func (s *shiftFlags) Set(value string) error {
	name, pctStr, found := strings.Cut(value, "=")
	if !found || name == "" {
		return fmt.Errorf("shift must be Feature=percent, got %q", value)
	}
	pct, err := strconv.ParseFloat(pctStr, 64)
	if err != nil {
		return fmt.Errorf("invalid shift percent %q: %w", pctStr, err)
	}
	*s = append(*s, sim.Shift{Feature: name, ShiftPct: pct})
	return nil
}

func main() {
	var shifts shiftFlags
	var (
		inputPath  = flag.String("input", "data/baseline.csv", "baseline dataset CSV")
		outputPath = flag.String("output", "data/current.csv", "where to write the drifted dataset")
		seed       = flag.Int64("seed", 42, "random seed")
		noisePct   = flag.Float64("noise", sim.DefaultNoisePct, "gaussian noise sigma as percent of the feature mean")
		clipMin    = flag.Float64("clip-min", 0, "lower clip bound")
		clipMax    = flag.Float64("clip-max", 0, "upper clip bound (ignored unless above clip-min)")
	)
	flag.Var(&shifts, "shift", "feature shift as Feature=percent, repeatable")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	baseline, err := dataset.LoadCSV(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load baseline dataset")
	}

	drifted, err := sim.Apply(baseline, sim.Options{
		Shifts:   shifts,
		NoisePct: *noisePct,
		Seed:     *seed,
		ClipMin:  *clipMin,
		ClipMax:  *clipMax,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}

	if err := drifted.WriteCSV(*outputPath); err != nil {
		log.Fatal().Err(err).Msg("failed to write drifted dataset")
	}

	log.Info().
		Str("input", *inputPath).
		Str("output", *outputPath).
		Int("rows", drifted.Rows()).
		Int("features", drifted.NumColumns()).
		Msg("drifted dataset written")
}
