// Package dataset loads feature tables and model metric snapshots for
// drift analysis. A dataset is a set of named numeric columns; categorical
// columns in the source CSV are skipped and missing cells become NaN so the
// statistical layer can exclude them explicitly.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Dataset holds numeric feature columns in their original column order.
type Dataset struct {
	columns []string
	values  map[string][]float64
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{values: make(map[string][]float64)}
}

// FromColumns builds a dataset from a column map. Column order follows the
// sorted column names so construction from a map literal stays deterministic.
func FromColumns(cols map[string][]float64) *Dataset {
	d := New()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d.Add(name, cols[name])
	}
	return d
}

// Add appends a column. An existing column with the same name is replaced
// in place without changing its position.
func (d *Dataset) Add(name string, values []float64) {
	if _, exists := d.values[name]; !exists {
		d.columns = append(d.columns, name)
	}
	col := make([]float64, len(values))
	copy(col, values)
	d.values[name] = col
}

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Column returns the values of a named column.
func (d *Dataset) Column(name string) ([]float64, bool) {
	v, ok := d.values[name]
	return v, ok
}

// NumColumns returns the number of numeric columns.
func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

// Rows returns the length of the longest column.
func (d *Dataset) Rows() int {
	max := 0
	for _, v := range d.values {
		if len(v) > max {
			max = len(v)
		}
	}
	return max
}

// missing cell spellings treated as NaN rather than as a parse failure
var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true,
}

// LoadCSV reads a feature table from a CSV file with a header row. Columns
// where any non-missing cell fails to parse as a number are treated as
// categorical and dropped.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("dataset %s: missing header row", path)
	}

	header := records[0]
	rows := records[1:]

	cols := make([][]float64, len(header))
	numeric := make([]bool, len(header))
	for i := range header {
		cols[i] = make([]float64, 0, len(rows))
		numeric[i] = true
	}

	for _, row := range rows {
		for i := range header {
			if !numeric[i] || i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if missingTokens[strings.ToLower(cell)] {
				cols[i] = append(cols[i], math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				numeric[i] = false
				continue
			}
			cols[i] = append(cols[i], v)
		}
	}

	d := New()
	for i, name := range header {
		if !numeric[i] {
			log.Debug().Str("column", name).Str("file", path).Msg("Skipping non-numeric column")
			continue
		}
		d.Add(name, cols[i])
	}

	if d.NumColumns() == 0 {
		return nil, fmt.Errorf("dataset %s: no numeric columns", path)
	}
	return d, nil
}

// LoadMetrics reads a metric snapshot (name to value) from a JSON file.
// Values must lie in [0, 1]; anything else indicates a malformed snapshot.
func LoadMetrics(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metrics %s: %w", path, err)
	}

	var metrics map[string]float64
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("parse metrics %s: %w", path, err)
	}

	for name, v := range metrics {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, fmt.Errorf("metrics %s: metric %q value %v outside [0,1]", path, name, v)
		}
	}
	return metrics, nil
}

// WriteCSV writes the dataset back out with a header row. Used by the drift
// simulator to persist generated datasets.
func (d *Dataset) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(d.columns); err != nil {
		return err
	}

	rows := d.Rows()
	record := make([]string, len(d.columns))
	for i := 0; i < rows; i++ {
		for j, name := range d.columns {
			col := d.values[name]
			if i >= len(col) || math.IsNaN(col[i]) {
				record[j] = ""
				continue
			}
			record[j] = strconv.FormatFloat(col[i], 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
