// Package metrics は回帰モデルの評価指標を提供する。
//
// 各関数は n 要素のベクトル（または n×1 の行列）を受け取り、
// 長さの不一致には DimensionError、空入力には ValueError を返す。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/propval/estimo/pkg/errors"
)

// MAPEEpsilon は真値が 0 の行で分母の代わりに使われる値
const MAPEEpsilon = 1e-10

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}

	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}

	return sum / float64(n), nil
}

// MAPE は平均絶対パーセンテージ誤差をパーセントで返す。
//
// MAPE = (100/n) * Σ|yTrue - yPred| / |yTrue|
//
// 真値が 0 の行は分母を MAPEEpsilon に置き換えて計算し、
// UndefinedMetricWarning を1回だけ発行する。結果は非常に大きくなりうる。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	zeros := 0
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		denom := math.Abs(yTrueVal)
		if yTrueVal == 0 {
			denom = MAPEEpsilon
			zeros++
		}
		sum += math.Abs(yTrueVal-yPred.AtVec(i)) / denom
	}

	if zeros > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("MAPE", "zero values in y_true", MAPEEpsilon))
	}

	return sum / float64(n) * 100, nil
}

// Accuracy は 100 - MAPE を返す。評価表と交差検証のスコアに使われる
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	mape, err := MAPE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 100 - mape, nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := mat.Sum(yTrue) / float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)

		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	// すべてのyTrueが同じ値
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}

	return 1 - rss/tss, nil
}

// MSEMatrix は n×1 行列に対して MSE を計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// MAEMatrix は n×1 行列に対して MAE を計算する
func MAEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MAEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MAE(t, p)
}

// MAPEMatrix は n×1 行列に対して MAPE を計算する
func MAPEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MAPEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MAPE(t, p)
}

// R2ScoreMatrix は n×1 行列に対して R² を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p)
}

// CalculateMetrics は MAE と MAPE（パーセント）をまとめて返す
func CalculateMetrics(yTrue, yPred mat.Matrix) (mae, mape float64, err error) {
	t, p, err := columnPair("CalculateMetrics", yTrue, yPred)
	if err != nil {
		return 0, 0, err
	}
	if mae, err = MAE(t, p); err != nil {
		return 0, 0, err
	}
	if mape, err = MAPE(t, p); err != nil {
		return 0, 0, err
	}
	return mae, mape, nil
}

// Mean は算術平均を返す。空スライスでは 0
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// Variance は母分散（n で割る）を返す。空スライスでは 0
func Variance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	_, v := stat.PopMeanVariance(x, nil)
	return v
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yTrue.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.IsEmpty() {
		return 0, errors.NewDimensionError(op, n, 0, 0)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func columnPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	t, err := ColumnVector(op, yTrue)
	if err != nil {
		return nil, nil, err
	}
	p, err := ColumnVector(op, yPred)
	if err != nil {
		return nil, nil, err
	}
	if t.Len() != p.Len() {
		return nil, nil, errors.NewDimensionError(op, t.Len(), p.Len(), 0)
	}
	return t, p, nil
}

// ColumnVector は n×1 行列を VecDense に変換する
func ColumnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if v, ok := m.(*mat.VecDense); ok {
		if v.IsEmpty() {
			return nil, errors.NewValueError(op, "empty vector")
		}
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}
