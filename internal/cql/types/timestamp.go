package types

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

func init() {
	Timestamp = &timestampType{}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// timestampType implements the timestamp type: milliseconds since the
// Unix epoch, UTC.
type timestampType struct{}

func (t *timestampType) Name() string {
	return "timestamp"
}

func (t *timestampType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	return a.Data.(time.Time).Compare(b.Data.(time.Time))
}

func (t *timestampType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	val, ok := v.Data.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time.Time, got %T", v.Data)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(val.UnixMilli())) // nolint:gosec // two's complement round trip
	return buf, nil
}

func (t *timestampType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	if len(data) != 8 {
		return Value{}, fmt.Errorf("expected 8 bytes for timestamp, got %d", len(data))
	}
	millis := int64(binary.BigEndian.Uint64(data)) // nolint:gosec // two's complement round trip
	return NewValue(time.UnixMilli(millis).UTC()), nil
}

func (t *timestampType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	_, ok := v.Data.(time.Time)
	return ok
}

func (t *timestampType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	switch d := v.Data.(type) {
	case time.Time:
		return NewValue(d.UTC().Truncate(time.Millisecond)), nil
	case string:
		ts, err := ParseTimestamp(d)
		if err != nil {
			return Value{}, err
		}
		return NewValue(ts), nil
	}
	if n, ok := integral(v.Data); ok {
		return NewValue(time.UnixMilli(n).UTC()), nil
	}
	return Value{}, coerceError(t, v)
}

// ParseTimestamp parses the textual timestamp forms accepted in literals.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", s)
}
