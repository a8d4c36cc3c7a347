package model

import (
	"io"
	"os"

	"github.com/propval/estimo/pkg/errors"
)

// BinaryModel はバイナリ形式で保存・復元できるモデル
type BinaryModel interface {
	// ModelType はエンベロープに記録されるモデル名を返す
	ModelType() string
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// SaveModel はモデルをファイルに保存する
//
// 使用例:
//
//	rf := ensemble.NewRandomForestRegressor()
//	// ... モデルの学習 ...
//	err := model.SaveModel(rf, "rf_model.pb")
func SaveModel(m BinaryModel, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %s", filename)
	}
	if err := SaveModelToWriter(m, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadModel はファイルからモデルを読み込む。
// ファイルのモデル種別が m と異なる場合はエラーになる。
//
//	rf := ensemble.NewRandomForestRegressor()
//	err := model.LoadModel(rf, "rf_model.pb")
func LoadModel(m BinaryModel, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", filename)
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m BinaryModel, w io.Writer) error {
	payload, err := m.MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", m.ModelType())
	}
	if _, err := w.Write(EncodeEnvelope(m.ModelType(), payload)); err != nil {
		return errors.Wrap(err, "failed to write model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m BinaryModel, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "failed to read model")
	}
	modelType, payload, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}
	if modelType != m.ModelType() {
		return errors.Wrapf(errors.ErrCorruptModel, "model type mismatch: file has %s, want %s", modelType, m.ModelType())
	}
	if err := m.UnmarshalBinary(payload); err != nil {
		return errors.Wrapf(err, "failed to decode %s", modelType)
	}
	return nil
}
