package model

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/propval/estimo/pkg/errors"
)

// バイナリ形式はprotobufのワイヤフォーマットで書かれる（.protoファイルは持たない）。
//
// エンベロープ:
//
//	1: model_type (string)
//	2: version    (string)
//	3: payload    (bytes, モデル固有)
//
// 決定木ペイロード（DecisionTreeRegressor）:
//
//	1: max_depth (varint)  2: min_samples_split (varint)  3: n_features (varint)
//	4: node (bytes, 繰り返し, 前順)
//	   node: 1: kind (varint, 0=leaf 1=split)
//	         2: value (fixed64)                 leaf のみ
//	         3: feature (varint) 4: threshold (fixed64)  split のみ
//
// ランダムフォレストペイロード:
//
//	1: n_trees 2: max_depth 3: min_samples_split 4: random_state (zigzag)
//	5: bootstrap (varint) 6: tree (bytes, 決定木ペイロード, 繰り返し)
//
// KNNペイロード:
//
//	1: k 2: epsilon (fixed64) 3: n_features 4: x_train (packed fixed64, 行優先)
//	5: y_train (packed fixed64) 6: min (packed) 7: max (packed)
//
// 浮動小数点数はビットパターンのまま保存されるため、読み戻した値は完全に一致する。

// Encoder はprotowireでフィールドを追記するバッファ
type Encoder struct {
	buf []byte
}

// Varint は符号なし整数フィールドを追記する
func (e *Encoder) Varint(num protowire.Number, v uint64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

// Int は符号付き整数フィールドをzigzag符号化で追記する
func (e *Encoder) Int(num protowire.Number, v int64) {
	e.Varint(num, protowire.EncodeZigZag(v))
}

// Bool は真偽値フィールドを追記する
func (e *Encoder) Bool(num protowire.Number, v bool) {
	e.Varint(num, protowire.EncodeBool(v))
}

// Double はfloat64をfixed64で追記する
func (e *Encoder) Double(num protowire.Number, v float64) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
}

// Doubles はfloat64スライスをpackedで追記する
func (e *Encoder) Doubles(num protowire.Number, vs []float64) {
	packed := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		packed = protowire.AppendFixed64(packed, math.Float64bits(v))
	}
	e.RawBytes(num, packed)
}

// String は文字列フィールドを追記する
func (e *Encoder) String(num protowire.Number, s string) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

// RawBytes は長さ付きバイト列フィールドを追記する
func (e *Encoder) RawBytes(num protowire.Number, b []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// Message はネストしたメッセージを追記する
func (e *Encoder) Message(num protowire.Number, fn func(*Encoder)) {
	var inner Encoder
	fn(&inner)
	e.RawBytes(num, inner.buf)
}

// Bytes は符号化済みのバイト列を返す
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Field は復号された1フィールド
type Field struct {
	Num     protowire.Number
	Type    protowire.Type
	Varint  uint64
	Fixed64 uint64
	Bytes   []byte
}

// Float64 はfixed64フィールドをfloat64として返す
func (f Field) Float64() float64 {
	return math.Float64frombits(f.Fixed64)
}

// Int はzigzag符号化された整数を返す
func (f Field) Int() int64 {
	return protowire.DecodeZigZag(f.Varint)
}

// Bool は真偽値を返す
func (f Field) Bool() bool {
	return protowire.DecodeBool(f.Varint)
}

// Doubles はpacked fixed64フィールドを復号する
func (f Field) Doubles() ([]float64, error) {
	if f.Type != protowire.BytesType || len(f.Bytes)%8 != 0 {
		return nil, errors.Wrapf(errors.ErrCorruptModel, "field %d: invalid packed doubles", f.Num)
	}
	out := make([]float64, 0, len(f.Bytes)/8)
	b := f.Bytes
	for len(b) > 0 {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, errors.Wrapf(errors.ErrCorruptModel, "field %d: %v", f.Num, protowire.ParseError(n))
		}
		out = append(out, math.Float64frombits(v))
		b = b[n:]
	}
	return out, nil
}

// RangeFields はメッセージ b の各フィールドについて fn を呼ぶ。
// 未知のワイヤ型のフィールドは読み飛ばす。
func RangeFields(b []byte, fn func(Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrapf(errors.ErrCorruptModel, "tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.Fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.Wrapf(errors.ErrCorruptModel, "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return errors.Wrapf(errors.ErrCorruptModel, "field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// FormatVersion はバイナリ形式のバージョン
const FormatVersion = "1"

const (
	envelopeModelType protowire.Number = 1
	envelopeVersion   protowire.Number = 2
	envelopePayload   protowire.Number = 3
)

// EncodeEnvelope はモデル種別とペイロードをエンベロープに包む
func EncodeEnvelope(modelType string, payload []byte) []byte {
	var e Encoder
	e.String(envelopeModelType, modelType)
	e.String(envelopeVersion, FormatVersion)
	e.RawBytes(envelopePayload, payload)
	return e.Bytes()
}

// DecodeEnvelope はエンベロープを開き、モデル種別とペイロードを返す
func DecodeEnvelope(b []byte) (modelType string, payload []byte, err error) {
	var version string
	var sawPayload bool
	err = RangeFields(b, func(f Field) error {
		switch f.Num {
		case envelopeModelType:
			modelType = string(f.Bytes)
		case envelopeVersion:
			version = string(f.Bytes)
		case envelopePayload:
			payload = f.Bytes
			sawPayload = true
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if modelType == "" || !sawPayload {
		return "", nil, errors.Wrap(errors.ErrCorruptModel, "envelope: missing model type or payload")
	}
	if version != FormatVersion {
		return "", nil, errors.Wrapf(errors.ErrCorruptModel, "envelope: unsupported version %q", version)
	}
	return modelType, payload, nil
}
