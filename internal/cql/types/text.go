package types

import (
	"fmt"
	"unicode/utf8"
)

func init() {
	Text = &textType{name: "text"}
	Ascii = &textType{name: "ascii", asciiOnly: true}
	Boolean = &booleanType{}
}

// textType implements text/varchar and ascii
type textType struct {
	name      string
	asciiOnly bool
}

func (t *textType) Name() string {
	return t.name
}

func (t *textType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	return compareOrdered(a.Data.(string), b.Data.(string))
}

func (t *textType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	s, ok := v.Data.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v.Data)
	}
	return []byte(s), nil
}

func (t *textType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	v := NewValue(string(data))
	if !t.IsValid(v) {
		return Value{}, fmt.Errorf("invalid %s bytes", t.name)
	}
	return v, nil
}

func (t *textType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	s, ok := v.Data.(string)
	if !ok {
		return false
	}
	if t.asciiOnly {
		for i := 0; i < len(s); i++ {
			if s[i] > 127 {
				return false
			}
		}
		return true
	}
	return utf8.ValidString(s)
}

func (t *textType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	if !t.IsValid(v) {
		return Value{}, coerceError(t, v)
	}
	return v, nil
}

// booleanType implements the boolean type
type booleanType struct{}

func (t *booleanType) Name() string {
	return "boolean"
}

func (t *booleanType) Compare(a, b Value) int {
	return CompareValues(a, b)
}

func (t *booleanType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	val, ok := v.Data.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", v.Data)
	}
	if val {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (t *booleanType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	if len(data) != 1 {
		return Value{}, fmt.Errorf("expected 1 byte for boolean, got %d", len(data))
	}
	return NewValue(data[0] != 0), nil
}

func (t *booleanType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	_, ok := v.Data.(bool)
	return ok
}

func (t *booleanType) Coerce(v Value) (Value, error) {
	if !t.IsValid(v) {
		return Value{}, coerceError(t, v)
	}
	return v, nil
}
