package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

func init() {
	Float = &floatType{}
	Double = &doubleType{}
}

// floatType implements the float type (32-bit IEEE-754)
type floatType struct{}

func (t *floatType) Name() string {
	return "float"
}

func (t *floatType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	return compareOrdered(a.Data.(float32), b.Data.(float32))
}

func (t *floatType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	val, ok := v.Data.(float32)
	if !ok {
		return nil, fmt.Errorf("expected float32, got %T", v.Data)
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(val))
	return buf, nil
}

func (t *floatType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	if len(data) != 4 {
		return Value{}, fmt.Errorf("expected 4 bytes for float, got %d", len(data))
	}
	return NewValue(math.Float32frombits(binary.BigEndian.Uint32(data))), nil
}

func (t *floatType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	_, ok := v.Data.(float32)
	return ok
}

func (t *floatType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	switch f := v.Data.(type) {
	case float32:
		return v, nil
	case float64:
		return NewValue(float32(f)), nil
	}
	if n, ok := integral(v.Data); ok {
		return NewValue(float32(n)), nil
	}
	return Value{}, coerceError(t, v)
}

// doubleType implements the double type (64-bit IEEE-754)
type doubleType struct{}

func (t *doubleType) Name() string {
	return "double"
}

func (t *doubleType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	return compareOrdered(a.Data.(float64), b.Data.(float64))
}

func (t *doubleType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	val, ok := v.Data.(float64)
	if !ok {
		return nil, fmt.Errorf("expected float64, got %T", v.Data)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(val))
	return buf, nil
}

func (t *doubleType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	if len(data) != 8 {
		return Value{}, fmt.Errorf("expected 8 bytes for double, got %d", len(data))
	}
	return NewValue(math.Float64frombits(binary.BigEndian.Uint64(data))), nil
}

func (t *doubleType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	_, ok := v.Data.(float64)
	return ok
}

func (t *doubleType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	switch f := v.Data.(type) {
	case float64:
		return v, nil
	case float32:
		return NewValue(float64(f)), nil
	}
	if n, ok := integral(v.Data); ok {
		return NewValue(float64(n)), nil
	}
	return Value{}, coerceError(t, v)
}
