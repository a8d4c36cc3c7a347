package model

import (
	"math"

	"github.com/propval/estimo/pkg/errors"
)

// IntParam は params[key] が存在すれば整数として dst に設定する。
// JSON から読んだ float64 も整数値であれば受け付ける。
func IntParam(params map[string]interface{}, key string, dst *int) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case int:
		*dst = x
	case int64:
		*dst = int(x)
	case float64:
		if x != math.Trunc(x) {
			return errors.NewValidationError(key, "must be an integer", v)
		}
		*dst = int(x)
	default:
		return errors.NewValidationError(key, "must be an integer", v)
	}
	return nil
}

// FloatParam は params[key] が存在すれば float64 として dst に設定する
func FloatParam(params map[string]interface{}, key string, dst *float64) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch x := v.(type) {
	case float64:
		*dst = x
	case int:
		*dst = float64(x)
	default:
		return errors.NewValidationError(key, "must be a number", v)
	}
	return nil
}

// BoolParam は params[key] が存在すれば bool として dst に設定する
func BoolParam(params map[string]interface{}, key string, dst *bool) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return errors.NewValidationError(key, "must be a boolean", v)
	}
	*dst = b
	return nil
}
