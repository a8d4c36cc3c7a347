package report

import (
	"image/color"
	"math"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/propval/estimo/pkg/errors"
)

var palette = []color.RGBA{
	{R: 20, G: 80, B: 200, A: 220},
	{R: 200, G: 30, B: 30, A: 200},
	{R: 40, G: 140, B: 40, A: 200},
	{R: 200, G: 130, B: 0, A: 220},
	{R: 120, G: 60, B: 160, A: 200},
}

// PlotPredictions writes a predicted-vs-actual scatter plot to path. The
// image format follows the extension (.png, .svg, .pdf). Every series in
// preds must have len(yTrue) points. A dashed y = x line marks perfect
// predictions.
func PlotPredictions(path string, yTrue []float64, preds map[string][]float64) error {
	if len(yTrue) == 0 {
		return errors.NewModelError("report.PlotPredictions", "empty data", errors.ErrEmptyData)
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual price"
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"
	p.Add(plotter.NewGrid())

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range yTrue {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	names := make([]string, 0, len(preds))
	for name := range preds {
		names = append(names, name)
	}
	slices.Sort(names)

	for i, name := range names {
		pred := preds[name]
		if len(pred) != len(yTrue) {
			return errors.NewDimensionError("report.PlotPredictions", len(yTrue), len(pred), 0)
		}
		xys := make(plotter.XYs, len(pred))
		for j := range pred {
			xys[j].X = yTrue[j]
			xys[j].Y = pred[j]
			lo, hi = math.Min(lo, pred[j]), math.Max(hi, pred[j])
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return errors.Wrapf(err, "series %s", name)
		}
		sc.GlyphStyle.Color = palette[i%len(palette)]
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(name, sc)
	}

	ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "reference line")
	}
	ref.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(ref)
	p.Legend.Add("y = x", ref)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}
