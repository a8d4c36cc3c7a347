package model

import (
	"encoding/json"
	"fmt"
)

// ModelWeights はモデルの学習済み状態を表す構造体（JSONシリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（DecisionTreeRegressor, KNeighborsRegressor等）
	ModelType string `json:"model_type"`

	// Version はスキーマのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Payload はモデル固有の状態（木のノード列、KNNの学習データ等）
	Payload json.RawMessage `json:"payload,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}

	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}

	if !mw.IsFitted && len(mw.Payload) > 0 {
		return fmt.Errorf("unfitted model should not have a payload")
	}

	if mw.IsFitted && len(mw.Payload) == 0 {
		return fmt.Errorf("fitted model must have a payload")
	}

	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		IsFitted:        mw.IsFitted,
		Payload:         append(json.RawMessage(nil), mw.Payload...),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
	}

	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}

	return clone
}
