// Package preprocessing は特徴量のスケーリングを提供する。
package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/pkg/errors"
)

// MinMaxScaler は各特徴量を学習データの最小値・最大値で
// 指定した範囲（デフォルト[0,1]）にスケーリングする。
//
// 学習データで値の幅が 0 の特徴量（全サンプルで同じ値）は、
// 学習データ・クエリを問わず常に FeatureRange[0] に変換される。
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin は学習データの各特徴量の最小値
	DataMin []float64

	// DataMax は学習データの各特徴量の最大値
	DataMax []float64

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 1.0})
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// NewMinMaxScalerFromBounds は保存済みの最小値・最大値から学習済みのスケーラーを復元する
func NewMinMaxScalerFromBounds(dataMin, dataMax []float64) (*MinMaxScaler, error) {
	if len(dataMin) == 0 || len(dataMin) != len(dataMax) {
		return nil, errors.NewDimensionError("MinMaxScaler.FromBounds", len(dataMin), len(dataMax), 1)
	}
	m := NewMinMaxScalerDefault()
	m.DataMin = append([]float64(nil), dataMin...)
	m.DataMax = append([]float64(nil), dataMax...)
	m.SetFitted(len(dataMin))
	return m, nil
}

// Fit は訓練データから各特徴量の最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	dataMin := make([]float64, c)
	dataMax := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		dataMin[j] = floats.Min(col)
		dataMax[j] = floats.Max(col)
	}

	m.DataMin = dataMin
	m.DataMax = dataMax
	m.SetFitted(c)
	return nil
}

// Transform は学習済みの最小値・最大値を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.RequireFitted("MinMaxScaler", "Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		m.transformInto(row, row)
		result.SetRow(i, row)
	}
	return result, nil
}

// TransformRow は1サンプルをスケーリングする。dst が nil なら新しく確保する
func (m *MinMaxScaler) TransformRow(dst, x []float64) ([]float64, error) {
	if err := m.RequireFitted("MinMaxScaler", "TransformRow", len(x)); err != nil {
		return nil, err
	}
	if dst == nil {
		dst = make([]float64, len(x))
	}
	m.transformInto(dst, x)
	return dst, nil
}

func (m *MinMaxScaler) transformInto(dst, x []float64) {
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	for j, val := range x {
		dataRange := m.DataMax[j] - m.DataMin[j]
		if dataRange == 0 {
			dst[j] = lo
			continue
		}
		// X_scaled = (X - X.min) / (X.max - X.min) * (max - min) + min
		dst[j] = (val-m.DataMin[j])/dataRange*(hi-lo) + lo
	}
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す。
// 幅 0 の特徴量は学習時の値に戻る
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.RequireFitted("MinMaxScaler", "InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dataRange := m.DataMax[j] - m.DataMin[j]
			original := (X.At(i, j)-lo)/(hi-lo)*dataRange + m.DataMin[j]
			result.Set(i, j, original)
		}
	}
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures())
}
