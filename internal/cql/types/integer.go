package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

func init() {
	Int = &intType{}
	BigInt = &bigIntType{}
}

// intType implements the int type (32-bit)
type intType struct{}

func (t *intType) Name() string {
	return "int"
}

func (t *intType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	return compareOrdered(a.Data.(int32), b.Data.(int32))
}

func (t *intType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	val, ok := v.Data.(int32)
	if !ok {
		return nil, fmt.Errorf("expected int32, got %T", v.Data)
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(val)) // nolint:gosec // two's complement round trip
	return buf, nil
}

func (t *intType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	if len(data) != 4 {
		return Value{}, fmt.Errorf("expected 4 bytes for int, got %d", len(data))
	}
	return NewValue(int32(binary.BigEndian.Uint32(data))), nil // nolint:gosec // two's complement round trip
}

func (t *intType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	_, ok := v.Data.(int32)
	return ok
}

func (t *intType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	n, ok := integral(v.Data)
	if !ok {
		return Value{}, coerceError(t, v)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return Value{}, fmt.Errorf("value %d out of range for int", n)
	}
	return NewValue(int32(n)), nil
}

// bigIntType implements the bigint type (64-bit)
type bigIntType struct{}

func (t *bigIntType) Name() string {
	return "bigint"
}

func (t *bigIntType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	return compareOrdered(a.Data.(int64), b.Data.(int64))
}

func (t *bigIntType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	val, ok := v.Data.(int64)
	if !ok {
		return nil, fmt.Errorf("expected int64, got %T", v.Data)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(val)) // nolint:gosec // two's complement round trip
	return buf, nil
}

func (t *bigIntType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	if len(data) != 8 {
		return Value{}, fmt.Errorf("expected 8 bytes for bigint, got %d", len(data))
	}
	return NewValue(int64(binary.BigEndian.Uint64(data))), nil // nolint:gosec // two's complement round trip
}

func (t *bigIntType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	_, ok := v.Data.(int64)
	return ok
}

func (t *bigIntType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	n, ok := integral(v.Data)
	if !ok {
		return Value{}, coerceError(t, v)
	}
	return NewValue(n), nil
}

// integral accepts the integer representations produced by literals,
// YAML decoding and client bound values. Floats are accepted only when
// they hold a whole number.
func integral(d interface{}) (int64, bool) {
	switch n := d.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}
