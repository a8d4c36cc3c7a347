// Package report renders evaluation results as terminal tables and plots.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/propval/estimo/model_selection"
	"github.com/propval/estimo/session"
)

// Printer writes human-readable tables to w.
type Printer struct {
	w      io.Writer
	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
}

// NewPrinter returns a Printer. With colorize false no escape codes are
// written regardless of the terminal.
func NewPrinter(w io.Writer, colorize bool) *Printer {
	mk := func(attr color.Attribute) func(a ...interface{}) string {
		c := color.New(attr)
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &Printer{
		w:      w,
		green:  mk(color.FgGreen),
		red:    mk(color.FgRed),
		yellow: mk(color.FgYellow),
		cyan:   mk(color.FgCyan),
	}
}

// FormatMoney rounds v to cents and groups thousands: 1234567.891 → "1,234,567.89".
func FormatMoney(v float64) string {
	s := decimal.NewFromFloat(v).Round(2).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Evaluation prints the ALGORITHM | MAE | ACCURACY table. The hybrid row is
// separated from the single models, and the best accuracy is highlighted.
func (p *Printer) Evaluation(r *session.EvaluationReport) {
	const width = 60
	best := ""
	bestAcc := 0.0
	for i, res := range r.Results {
		if i == 0 || res.Accuracy > bestAcc {
			best, bestAcc = res.Name, res.Accuracy
		}
	}

	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, strings.Repeat("=", width))
	fmt.Fprintf(p.w, "%-25s | %14s | %s\n", "ALGORITHM", "MAE (€)", "ACCURACY (%)")
	fmt.Fprintln(p.w, strings.Repeat("-", width))
	for _, res := range r.Results {
		if res.Name == session.AlgorithmHybrid {
			fmt.Fprintln(p.w, strings.Repeat("-", width))
		}
		acc := fmt.Sprintf("%11.2f%%", res.Accuracy)
		switch {
		case res.Name == best:
			acc = p.green(acc)
		case res.Accuracy < 0:
			acc = p.red(acc)
		}
		fmt.Fprintf(p.w, "%-25s | %14s | %s\n", res.Name, FormatMoney(res.MAE), acc)
	}
	fmt.Fprintln(p.w, strings.Repeat("=", width))
	fmt.Fprintf(p.w, "%s train=%d test=%d run=%s\n",
		p.cyan(r.ModelVersion), r.TrainSamples, r.TestSamples, r.RunID)
}

// CrossValidation prints per-fold scores with their mean and spread.
func (p *Printer) CrossValidation(name string, res *model_selection.CVResult) {
	fmt.Fprintf(p.w, "\n%s cross-validation (%d folds)\n", p.cyan(name), len(res.TestScores))
	fmt.Fprintln(p.w, strings.Repeat("-", 40))
	fmt.Fprintf(p.w, "%-6s %-8s %-8s %12s\n", "Fold", "Train", "Test", "Accuracy")
	for i, s := range res.TestScores {
		line := fmt.Sprintf("%-6d %-8d %-8d %11.2f%%", i+1, res.TrainSizes[i], res.TestSizes[i], s)
		if i == res.BestFold() {
			line = p.green(line)
		}
		fmt.Fprintln(p.w, line)
	}
	fmt.Fprintln(p.w, strings.Repeat("-", 40))
	fmt.Fprintf(p.w, "Mean accuracy: %s (+/- %.2f)\n",
		p.yellow(fmt.Sprintf("%.2f%%", res.MeanScore())), res.StdScore())
}

// Prediction prints the per-model predictions for one sample.
func (p *Printer) Prediction(pred session.Prediction) {
	fmt.Fprintf(p.w, "%-25s %16s\n", "Random Forest", FormatMoney(pred.RandomForest))
	fmt.Fprintf(p.w, "%-25s %16s\n", "k-Nearest Neighbors", FormatMoney(pred.KNN))
	fmt.Fprintln(p.w, strings.Repeat("-", 42))
	fmt.Fprintf(p.w, "%-25s %16s\n", "Estimated price", p.green(FormatMoney(pred.Hybrid)))
}
