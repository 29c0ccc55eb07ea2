package types

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DataType is a semantic column type with a total order.
type DataType interface {
	// Name returns the CQL name of the type (e.g., "int", "list<text>")
	Name() string

	// Compare compares two values of this type
	// Returns: -1 if a < b, 0 if a == b, 1 if a > b
	Compare(a, b Value) int

	// Serialize converts a value to its binary form
	Serialize(v Value) ([]byte, error)

	// Deserialize converts bytes back to a value
	Deserialize(data []byte) (Value, error)

	// IsValid checks if a value is valid for this type
	IsValid(v Value) bool

	// Coerce converts a literal or bound value into this type's
	// representation, rejecting values that cannot be represented.
	Coerce(v Value) (Value, error)
}

// Value represents a CQL value that can be NULL
type Value struct {
	Data interface{}
	Null bool
}

// NewValue creates a non-null value
func NewValue(data interface{}) Value {
	return Value{Data: data, Null: false}
}

// NewNullValue creates a null value
func NewNullValue() Value {
	return Value{Data: nil, Null: true}
}

// IsNull returns true if the value is NULL
func (v Value) IsNull() bool {
	return v.Null
}

// String returns a string representation of the value
func (v Value) String() string {
	if v.Null {
		return "null"
	}
	switch d := v.Data.(type) {
	case string:
		return "'" + strings.ReplaceAll(d, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("0x%x", d)
	case time.Time:
		return d.UTC().Format(time.RFC3339Nano)
	case []Value:
		parts := make([]string, len(d))
		for i, e := range d {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []MapEntry:
		parts := make([]string, len(d))
		for i, e := range d {
			parts[i] = e.Key.String() + ": " + e.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// AsInt64 returns the value as an int64
func (v Value) AsInt64() (int64, error) {
	if v.Null {
		return 0, fmt.Errorf("cannot convert null to int")
	}
	switch val := v.Data.(type) {
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v.Data)
	}
}

// AsString returns the value as a string
func (v Value) AsString() (string, error) {
	if v.Null {
		return "", fmt.Errorf("cannot convert null to string")
	}
	if s, ok := v.Data.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v.Data)
}

// Equal returns true if two values are equal
func (v Value) Equal(other Value) bool {
	return CompareValues(v, other) == 0
}

// MapEntry is one key/value pair of a map value. Map values are kept as a
// slice of entries sorted by key.
type MapEntry struct {
	Key   Value
	Value Value
}

// CompareValues compares two values, handling NULLs
// NULL is considered less than any non-NULL value
func CompareValues(a, b Value) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return -1
	}
	if b.Null {
		return 1
	}
	switch v1 := a.Data.(type) {
	case int32:
		if v2, ok := b.Data.(int32); ok {
			return compareOrdered(v1, v2)
		}
	case int64:
		if v2, ok := b.Data.(int64); ok {
			return compareOrdered(v1, v2)
		}
	case string:
		if v2, ok := b.Data.(string); ok {
			return compareOrdered(v1, v2)
		}
	case bool:
		if v2, ok := b.Data.(bool); ok {
			if !v1 && v2 {
				return -1
			} else if v1 && !v2 {
				return 1
			}
			return 0
		}
	case float32:
		if v2, ok := b.Data.(float32); ok {
			return compareOrdered(v1, v2)
		}
	case float64:
		if v2, ok := b.Data.(float64); ok {
			return compareOrdered(v1, v2)
		}
	case time.Time:
		if v2, ok := b.Data.(time.Time); ok {
			return v1.Compare(v2)
		}
	case uuid.UUID:
		if v2, ok := b.Data.(uuid.UUID); ok {
			return bytes.Compare(v1[:], v2[:])
		}
	case []byte:
		if v2, ok := b.Data.([]byte); ok {
			return bytes.Compare(v1, v2)
		}
	case []Value:
		if v2, ok := b.Data.([]Value); ok {
			return compareSequences(v1, v2, CompareValues)
		}
	case []MapEntry:
		if v2, ok := b.Data.([]MapEntry); ok {
			return compareEntries(v1, v2, CompareValues, CompareValues)
		}
	}
	// For unsupported types or type mismatches, panic to catch bugs early
	panic(fmt.Sprintf("CompareValues: unsupported or mismatched types: %T vs %T", a.Data, b.Data))
}

type ordered interface {
	~int32 | ~int64 | ~float32 | ~float64 | ~string
}

func compareOrdered[T ordered](a, b T) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareSequences(a, b []Value, cmp func(x, y Value) int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := cmp(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareOrdered(int64(len(a)), int64(len(b)))
}

func compareEntries(a, b []MapEntry, keyCmp, valCmp func(x, y Value) int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := keyCmp(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := valCmp(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return compareOrdered(int64(len(a)), int64(len(b)))
}

// Native CQL types
var (
	Int       DataType
	BigInt    DataType
	Boolean   DataType
	Float     DataType
	Double    DataType
	Text      DataType
	Ascii     DataType
	Timestamp DataType
	UUID      DataType
	TimeUUID  DataType
	Blob      DataType
)

// NativeTypes lists every non-collection type by name.
func NativeTypes() []DataType {
	return []DataType{Int, BigInt, Boolean, Float, Double, Text, Ascii, Timestamp, UUID, TimeUUID, Blob}
}

// ParseType resolves a CQL type name such as "int", "varchar" or
// "map<text, int>".
func ParseType(name string) (DataType, error) {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
	if strings.HasPrefix(n, "frozen<") && strings.HasSuffix(n, ">") {
		return ParseType(n[len("frozen<") : len(n)-1])
	}
	switch {
	case strings.HasPrefix(n, "list<") && strings.HasSuffix(n, ">"):
		elem, err := ParseType(n[len("list<") : len(n)-1])
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	case strings.HasPrefix(n, "set<") && strings.HasSuffix(n, ">"):
		elem, err := ParseType(n[len("set<") : len(n)-1])
		if err != nil {
			return nil, err
		}
		return SetOf(elem), nil
	case strings.HasPrefix(n, "map<") && strings.HasSuffix(n, ">"):
		inner := n[len("map<") : len(n)-1]
		split := topLevelComma(inner)
		if split < 0 {
			return nil, fmt.Errorf("invalid map type %q", name)
		}
		key, err := ParseType(inner[:split])
		if err != nil {
			return nil, err
		}
		val, err := ParseType(inner[split+1:])
		if err != nil {
			return nil, err
		}
		return MapOf(key, val), nil
	}
	switch n {
	case "int":
		return Int, nil
	case "bigint", "counter":
		return BigInt, nil
	case "boolean":
		return Boolean, nil
	case "float":
		return Float, nil
	case "double":
		return Double, nil
	case "text", "varchar":
		return Text, nil
	case "ascii":
		return Ascii, nil
	case "timestamp":
		return Timestamp, nil
	case "uuid":
		return UUID, nil
	case "timeuuid":
		return TimeUUID, nil
	case "blob":
		return Blob, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

func topLevelComma(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Row represents a row of values
type Row struct {
	Values []Value
}

// NewRow creates a new row with the given values
func NewRow(values ...Value) Row {
	return Row{Values: values}
}

// Get returns the value at the given index
func (r Row) Get(index int) Value {
	if index < 0 || index >= len(r.Values) {
		return NewNullValue()
	}
	return r.Values[index]
}

func coerceError(t DataType, v Value) error {
	return fmt.Errorf("cannot use %v (%T) as %s", v.Data, v.Data, t.Name())
}
