package types

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

func init() {
	UUID = &uuidType{}
	TimeUUID = &uuidType{timeBased: true}
}

// uuidType implements uuid and timeuuid. A timeuuid must be version 1 and
// orders by its embedded timestamp first.
type uuidType struct {
	timeBased bool
}

func (t *uuidType) Name() string {
	if t.timeBased {
		return "timeuuid"
	}
	return "uuid"
}

func (t *uuidType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	ua, ub := a.Data.(uuid.UUID), b.Data.(uuid.UUID)
	if t.timeBased || (ua.Version() == 1 && ub.Version() == 1) {
		if c := compareOrdered(int64(ua.Time()), int64(ub.Time())); c != 0 {
			return c
		}
	} else if ua.Version() != ub.Version() {
		return compareOrdered(int64(ua.Version()), int64(ub.Version()))
	}
	return bytes.Compare(ua[:], ub[:])
}

func (t *uuidType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	u, ok := v.Data.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("expected uuid.UUID, got %T", v.Data)
	}
	buf := make([]byte, 16)
	copy(buf, u[:])
	return buf, nil
}

func (t *uuidType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	u, err := uuid.FromBytes(data)
	if err != nil {
		return Value{}, fmt.Errorf("invalid %s bytes: %w", t.Name(), err)
	}
	v := NewValue(u)
	if !t.IsValid(v) {
		return Value{}, fmt.Errorf("uuid %s is not a time-based uuid", u)
	}
	return v, nil
}

func (t *uuidType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	u, ok := v.Data.(uuid.UUID)
	if !ok {
		return false
	}
	return !t.timeBased || u.Version() == 1
}

func (t *uuidType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	if s, ok := v.Data.(string); ok {
		u, err := uuid.Parse(s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid %s %q: %w", t.Name(), s, err)
		}
		v = NewValue(u)
	}
	if !t.IsValid(v) {
		return Value{}, coerceError(t, v)
	}
	return v, nil
}
