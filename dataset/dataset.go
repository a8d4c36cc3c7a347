// Package dataset loads numeric training tables from CSV.
//
// The first row is a header. Every column must be numeric; the target column
// is split off into Y. Rows with a missing cell are dropped, as are rows whose
// values are not finite.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
)

// missing lists the cell spellings treated as missing values.
var missing = []string{"", "na", "n/a", "nan", "null", "none"}

// Dataset is a feature matrix with its target column.
type Dataset struct {
	Features []string
	Target   string
	X        *mat.Dense
	Y        *mat.Dense // n×1
	// Dropped is the number of rows skipped because of missing values.
	Dropped int
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path, target string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	return LoadCSV(f, target)
}

// LoadCSV reads a header row followed by numeric rows. target names the
// column that becomes Y; all other columns become features in file order.
func LoadCSV(r io.Reader, target string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewModelError("dataset.LoadCSV", "empty data", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	targetIdx := slices.IndexFunc(header, func(h string) bool { return strings.TrimSpace(h) == target })
	if targetIdx < 0 {
		return nil, errors.NewValueError("dataset.LoadCSV", "target column "+strconv.Quote(target)+" not found")
	}
	if len(header) < 2 {
		return nil, errors.NewValueError("dataset.LoadCSV", "no feature columns")
	}

	ds := &Dataset{Target: target}
	for i, h := range header {
		if i != targetIdx {
			ds.Features = append(ds.Features, strings.TrimSpace(h))
		}
	}

	var xs, ys []float64
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		vals, ok, err := parseRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if !ok {
			ds.Dropped++
			continue
		}
		for i, v := range vals {
			if i == targetIdx {
				ys = append(ys, v)
			} else {
				xs = append(xs, v)
			}
		}
	}

	if len(ys) == 0 {
		return nil, errors.NewModelError("dataset.LoadCSV", "empty data", errors.ErrEmptyData)
	}
	ds.X = mat.NewDense(len(ys), len(ds.Features), xs)
	ds.Y = mat.NewDense(len(ys), 1, ys)

	log.GetLoggerWithName("dataset").Debug("dataset loaded",
		log.SamplesKey, len(ys),
		log.FeaturesKey, len(ds.Features),
		"data.dropped", ds.Dropped,
	)
	return ds, nil
}

// parseRow returns ok=false when the row has a missing or non-finite value.
func parseRow(row []string) ([]float64, bool, error) {
	vals := make([]float64, len(row))
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if slices.Contains(missing, strings.ToLower(cell)) {
			return nil, false, nil
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false, errors.NewValueError("dataset.LoadCSV",
				"column "+strconv.Itoa(i)+": "+strconv.Quote(cell)+" is not numeric")
		}
		if math.IsInf(v, 0) {
			return nil, false, nil
		}
		vals[i] = v
	}
	return vals, true, nil
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int {
	r, _ := d.X.Dims()
	return r
}

// FeatureIndex returns the column of the named feature, or -1.
func (d *Dataset) FeatureIndex(name string) int {
	return slices.Index(d.Features, name)
}

// Shuffle returns a copy with rows permuted by a PCG stream seeded with seed.
// The receiver is not modified.
func (d *Dataset) Shuffle(seed uint64) *Dataset {
	n, cols := d.X.Dims()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	out := &Dataset{
		Features: slices.Clone(d.Features),
		Target:   d.Target,
		X:        mat.NewDense(n, cols, nil),
		Y:        mat.NewDense(n, 1, nil),
		Dropped:  d.Dropped,
	}
	for i, src := range perm {
		out.X.SetRow(i, d.X.RawRowView(src))
		out.Y.Set(i, 0, d.Y.At(src, 0))
	}
	return out
}
