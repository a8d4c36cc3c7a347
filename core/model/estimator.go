package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は教師あり学習モデルの基本インターフェース
type Estimator interface {
	Fitter
	Predictor
}

// Regressor は回帰モデルのインターフェース
type Regressor interface {
	Estimator

	// PredictOne は 1 サンプルの予測値を返す
	PredictOne(x []float64) (float64, error)

	// Score は決定係数 R² を返す
	Score(X, y mat.Matrix) (float64, error)
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter はハイパーパラメータを変更できるモデルのインターフェース
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// WeightExporter は学習済み状態を JSON 用スキーマでエクスポートできるモデル
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}
