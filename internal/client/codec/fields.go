package codec

import (
	"errors"
	"math"
	"strconv"

	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/tidwall/gjson"
)

func parse(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, common.NewDecodeError("invalid json")
	}
	return gjson.ParseBytes(data), nil
}

func typeName(r gjson.Result) string {
	if !r.Exists() {
		return "nothing"
	}
	switch {
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	}
	switch r.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "bool"
	default:
		return "null"
	}
}

func join(path []string, name string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, name)
}

func expectObject(r gjson.Result, path ...string) error {
	if !r.IsObject() {
		return common.NewDecodeError("expected object, got "+typeName(r), path...)
	}
	return nil
}

func expectArray(r gjson.Result, path ...string) error {
	if !r.IsArray() {
		return common.NewDecodeError("expected array, got "+typeName(r), path...)
	}
	return nil
}

func requireString(obj gjson.Result, name string, path ...string) (string, error) {
	r := obj.Get(escape(name))
	p := join(path, name)
	if !r.Exists() {
		return "", common.NewDecodeError("missing required field", p...)
	}
	if r.Type != gjson.String {
		return "", common.NewDecodeError("expected string, got "+typeName(r), p...)
	}
	return r.Str, nil
}

// optionalString treats null like an absent field.
func optionalString(obj gjson.Result, name string, path ...string) (string, error) {
	r := obj.Get(escape(name))
	if !r.Exists() || r.Type == gjson.Null {
		return "", nil
	}
	if r.Type != gjson.String {
		return "", common.NewDecodeError("expected string, got "+typeName(r), join(path, name)...)
	}
	return r.Str, nil
}

func intValue(r gjson.Result, path ...string) (int64, error) {
	if r.Type != gjson.Number {
		return 0, common.NewDecodeError("expected integer, got "+typeName(r), path...)
	}
	if r.Num != math.Trunc(r.Num) {
		return 0, common.NewDecodeError("expected integer, got "+r.Raw, path...)
	}
	n, err := strconv.ParseInt(r.Raw, 10, 64)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, common.NewDecodeError("integer out of range", path...)
	}
	// 1e3 or 10.0; -2^63 and 2^63 are exact in float64
	if r.Num < math.MinInt64 || r.Num >= math.MaxInt64 {
		return 0, common.NewDecodeError("integer out of range", path...)
	}
	return int64(r.Num), nil
}

func requireInt(obj gjson.Result, name string, path ...string) (int64, error) {
	r := obj.Get(escape(name))
	p := join(path, name)
	if !r.Exists() {
		return 0, common.NewDecodeError("missing required field", p...)
	}
	return intValue(r, p...)
}

func optionalInt(obj gjson.Result, name string, path ...string) (*int64, error) {
	r := obj.Get(escape(name))
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	n, err := intValue(r, join(path, name)...)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// optionalCount is optionalInt narrowed to the platform int.
func optionalCount(obj gjson.Result, name string, path ...string) (*int, error) {
	v, err := optionalInt(obj, name, path...)
	if err != nil || v == nil {
		return nil, err
	}
	if *v < math.MinInt || *v > math.MaxInt {
		return nil, common.NewDecodeError("integer out of range", join(path, name)...)
	}
	n := int(*v)
	return &n, nil
}

func stringList(r gjson.Result, path ...string) ([]string, error) {
	if err := expectArray(r, path...); err != nil {
		return nil, err
	}
	arr := r.Array()
	out := make([]string, 0, len(arr))
	for i, v := range arr {
		if v.Type != gjson.String {
			return nil, common.NewDecodeError("expected string, got "+typeName(v), join(path, strconv.Itoa(i))...)
		}
		out = append(out, v.Str)
	}
	return out, nil
}

func requireStringList(obj gjson.Result, name string, path ...string) ([]string, error) {
	r := obj.Get(escape(name))
	p := join(path, name)
	if !r.Exists() {
		return nil, common.NewDecodeError("missing required field", p...)
	}
	return stringList(r, p...)
}

// escape quotes gjson path metacharacters in a literal key.
func escape(key string) string {
	var buf []byte
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			buf = append(buf, '\\')
		}
		buf = append(buf, key[i])
	}
	return string(buf)
}
