package decode

import (
	"encoding/json"
	"reflect"
	"strings"

	"ProjectHub/tools/errs"

	"github.com/mitchellh/mapstructure"
)

// Mode 控制类型转换的宽松程度
type Mode int

const (
	// Loose "12" -> int、12.0 -> int64、字符串两端空白去掉
	Loose Mode = iota
	// Strict 类型必须一致，多余字段报错
	Strict
)

// Object 解一个 JSON 对象到 T，字段按 json tag 匹配
func Object[T any](raw []byte, mode Mode) (*T, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.ErrArgs.WrapMsg("frame is not a JSON object", "err", err.Error())
	}
	return FromMap[T](m, mode)
}

// FromMap 同 Object，输入已经是 map
func FromMap[T any](m map[string]any, mode Mode) (*T, error) {
	if m == nil {
		return nil, errs.ErrArgs.WrapMsg("empty object")
	}
	var out T
	cfg := &mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	}
	switch mode {
	case Strict:
		cfg.ErrorUnused = true
	default:
		cfg.WeaklyTypedInput = true
		cfg.DecodeHook = mapstructure.ComposeDecodeHookFunc(trimHook, numberHook, nestedJSONHook)
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "new decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, errs.ErrArgs.WrapMsg("decode object", "err", err.Error())
	}
	return &out, nil
}

func trimHook(from, to reflect.Kind, data any) (any, error) {
	if from == reflect.String && to == reflect.String {
		return strings.TrimSpace(data.(string)), nil
	}
	return data, nil
}

// numberHook JSON 数字都是 float64
func numberHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.Float64 {
		return data, nil
	}
	f := data.(float64)
	switch to {
	case reflect.Int:
		return int(f), nil
	case reflect.Int32:
		return int32(f), nil
	case reflect.Int64:
		return int64(f), nil
	}
	return data, nil
}

// nestedJSONHook 客户端把对象再序列化成字符串发过来的情况
func nestedJSONHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.String || to != reflect.Map {
		return data, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
		return m, nil
	}
	return data, nil
}
