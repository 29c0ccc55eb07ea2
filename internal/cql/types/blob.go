package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

func init() {
	Blob = &blobType{}
}

// blobType implements the blob type
type blobType struct{}

func (t *blobType) Name() string {
	return "blob"
}

func (t *blobType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	return bytes.Compare(a.Data.([]byte), b.Data.([]byte))
}

func (t *blobType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	data, ok := v.Data.([]byte)
	if !ok {
		return nil, fmt.Errorf("expected []byte, got %T", v.Data)
	}
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

func (t *blobType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	result := make([]byte, len(data))
	copy(result, data)
	return NewValue(result), nil
}

func (t *blobType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	_, ok := v.Data.([]byte)
	return ok
}

func (t *blobType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	if s, ok := v.Data.(string); ok {
		if !strings.HasPrefix(strings.ToLower(s), "0x") {
			return Value{}, fmt.Errorf("blob literal %q must start with 0x", s)
		}
		data, err := hex.DecodeString(s[2:])
		if err != nil {
			return Value{}, fmt.Errorf("invalid blob literal %q: %w", s, err)
		}
		return NewValue(data), nil
	}
	if !t.IsValid(v) {
		return Value{}, coerceError(t, v)
	}
	return v, nil
}
