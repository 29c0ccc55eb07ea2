package types

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// CollectionKind distinguishes the collection types.
type CollectionKind int

const (
	KindList CollectionKind = iota
	KindSet
	KindMap
)

func (k CollectionKind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// CollectionType is implemented by list, set and map types.
type CollectionType interface {
	DataType
	Kind() CollectionKind
	// Elements returns the element type of a list or set, or the value
	// type of a map.
	Elements() DataType
	// Keys returns the key type of a map, nil otherwise.
	Keys() DataType
}

// AsCollection returns t as a CollectionType when it is one.
func AsCollection(t DataType) (CollectionType, bool) {
	c, ok := t.(CollectionType)
	return c, ok
}

// ListOf returns the list type with the given element type.
func ListOf(elem DataType) CollectionType {
	return &collectionType{kind: KindList, elem: elem}
}

// SetOf returns the set type with the given element type.
func SetOf(elem DataType) CollectionType {
	return &collectionType{kind: KindSet, elem: elem}
}

// MapOf returns the map type with the given key and value types.
func MapOf(key, value DataType) CollectionType {
	return &collectionType{kind: KindMap, key: key, elem: value}
}

type collectionType struct {
	kind CollectionKind
	key  DataType
	elem DataType
}

func (t *collectionType) Kind() CollectionKind { return t.kind }
func (t *collectionType) Elements() DataType   { return t.elem }
func (t *collectionType) Keys() DataType       { return t.key }

func (t *collectionType) Name() string {
	if t.kind == KindMap {
		return fmt.Sprintf("map<%s, %s>", t.key.Name(), t.elem.Name())
	}
	return fmt.Sprintf("%s<%s>", t.kind, t.elem.Name())
}

func (t *collectionType) Compare(a, b Value) int {
	if a.Null || b.Null {
		return CompareValues(a, b)
	}
	if t.kind == KindMap {
		return compareEntries(a.Data.([]MapEntry), b.Data.([]MapEntry), t.key.Compare, t.elem.Compare)
	}
	return compareSequences(a.Data.([]Value), b.Data.([]Value), t.elem.Compare)
}

func (t *collectionType) IsValid(v Value) bool {
	if v.Null {
		return true
	}
	if t.kind == KindMap {
		entries, ok := v.Data.([]MapEntry)
		if !ok {
			return false
		}
		for _, e := range entries {
			if e.Key.Null || !t.key.IsValid(e.Key) || !t.elem.IsValid(e.Value) {
				return false
			}
		}
		return true
	}
	elems, ok := v.Data.([]Value)
	if !ok {
		return false
	}
	for _, e := range elems {
		if e.Null || !t.elem.IsValid(e) {
			return false
		}
	}
	return true
}

func (t *collectionType) Coerce(v Value) (Value, error) {
	if v.Null {
		return v, nil
	}
	if t.kind == KindMap {
		return t.coerceMap(v)
	}
	var raw []Value
	switch d := v.Data.(type) {
	case []Value:
		raw = d
	case []interface{}:
		raw = make([]Value, len(d))
		for i, e := range d {
			raw[i] = NewValue(e)
		}
	default:
		return Value{}, coerceError(t, v)
	}
	out := make([]Value, 0, len(raw))
	for _, e := range raw {
		if e.Null {
			return Value{}, fmt.Errorf("null is not supported inside a %s", t.kind)
		}
		c, err := t.elem.Coerce(e)
		if err != nil {
			return Value{}, err
		}
		out = append(out, c)
	}
	if t.kind == KindSet {
		out = sortedUnique(out, t.elem.Compare)
	}
	return NewValue(out), nil
}

func (t *collectionType) coerceMap(v Value) (Value, error) {
	var raw []MapEntry
	switch d := v.Data.(type) {
	case []MapEntry:
		raw = d
	case map[string]interface{}:
		for k, e := range d {
			raw = append(raw, MapEntry{Key: NewValue(k), Value: NewValue(e)})
		}
	case map[interface{}]interface{}:
		for k, e := range d {
			raw = append(raw, MapEntry{Key: NewValue(k), Value: NewValue(e)})
		}
	default:
		return Value{}, coerceError(t, v)
	}
	out := make([]MapEntry, 0, len(raw))
	for _, e := range raw {
		if e.Key.Null {
			return Value{}, fmt.Errorf("null is not supported as a map key")
		}
		k, err := t.key.Coerce(e.Key)
		if err != nil {
			return Value{}, err
		}
		val, err := t.elem.Coerce(e.Value)
		if err != nil {
			return Value{}, err
		}
		out = append(out, MapEntry{Key: k, Value: val})
	}
	sort.SliceStable(out, func(i, j int) bool { return t.key.Compare(out[i].Key, out[j].Key) < 0 })
	deduped := out[:0]
	for i, e := range out {
		// last write wins for repeated keys
		if i+1 < len(out) && t.key.Compare(e.Key, out[i+1].Key) == 0 {
			continue
		}
		deduped = append(deduped, e)
	}
	return NewValue(deduped), nil
}

func (t *collectionType) Serialize(v Value) ([]byte, error) {
	if v.Null {
		return nil, nil
	}
	if !t.IsValid(v) {
		return nil, fmt.Errorf("expected %s, got %T", t.Name(), v.Data)
	}
	var buf []byte
	if t.kind == KindMap {
		entries := v.Data.([]MapEntry)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(entries))) // nolint:gosec // collection sizes fit
		for _, e := range entries {
			var err error
			if buf, err = appendElement(buf, t.key, e.Key); err != nil {
				return nil, err
			}
			if buf, err = appendElement(buf, t.elem, e.Value); err != nil {
				return nil, err
			}
		}
		return buf, nil
	}
	elems := v.Data.([]Value)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(elems))) // nolint:gosec // collection sizes fit
	for _, e := range elems {
		var err error
		if buf, err = appendElement(buf, t.elem, e); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (t *collectionType) Deserialize(data []byte) (Value, error) {
	if data == nil {
		return NewNullValue(), nil
	}
	if len(data) < 4 {
		return Value{}, fmt.Errorf("truncated %s", t.Name())
	}
	n := int(binary.BigEndian.Uint32(data))
	rest := data[4:]
	if t.kind == KindMap {
		entries := make([]MapEntry, 0, n)
		for i := 0; i < n; i++ {
			var k, val Value
			var err error
			if k, rest, err = readElement(rest, t.key); err != nil {
				return Value{}, err
			}
			if val, rest, err = readElement(rest, t.elem); err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: k, Value: val})
		}
		return NewValue(entries), nil
	}
	elems := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		var e Value
		var err error
		if e, rest, err = readElement(rest, t.elem); err != nil {
			return Value{}, err
		}
		elems = append(elems, e)
	}
	return NewValue(elems), nil
}

func appendElement(buf []byte, t DataType, v Value) ([]byte, error) {
	data, err := t.Serialize(v)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data))) // nolint:gosec // element sizes fit
	return append(buf, data...), nil
}

func readElement(data []byte, t DataType) (Value, []byte, error) {
	if len(data) < 4 {
		return Value{}, nil, fmt.Errorf("truncated %s element", t.Name())
	}
	n := int(binary.BigEndian.Uint32(data))
	data = data[4:]
	if len(data) < n {
		return Value{}, nil, fmt.Errorf("truncated %s element", t.Name())
	}
	v, err := t.Deserialize(data[:n])
	return v, data[n:], err
}

func sortedUnique(vals []Value, cmp func(a, b Value) int) []Value {
	sort.SliceStable(vals, func(i, j int) bool { return cmp(vals[i], vals[j]) < 0 })
	out := vals[:0]
	for i, v := range vals {
		if i > 0 && cmp(vals[i-1], v) == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Contains reports whether a collection value holds elem among its
// elements (list, set) or values (map).
func Contains(t CollectionType, coll, elem Value) bool {
	if coll.Null || elem.Null {
		return false
	}
	if t.Kind() == KindMap {
		for _, e := range coll.Data.([]MapEntry) {
			if t.Elements().Compare(e.Value, elem) == 0 {
				return true
			}
		}
		return false
	}
	for _, e := range coll.Data.([]Value) {
		if t.Elements().Compare(e, elem) == 0 {
			return true
		}
	}
	return false
}

// ContainsKey reports whether a map value has the given key.
func ContainsKey(t CollectionType, coll, key Value) bool {
	_, ok := MapGet(t, coll, key)
	return ok
}

// MapGet returns the value stored under key in a map value.
func MapGet(t CollectionType, coll, key Value) (Value, bool) {
	if t.Kind() != KindMap || coll.Null || key.Null {
		return Value{}, false
	}
	entries := coll.Data.([]MapEntry)
	i := sort.Search(len(entries), func(i int) bool { return t.Keys().Compare(entries[i].Key, key) >= 0 })
	if i < len(entries) && t.Keys().Compare(entries[i].Key, key) == 0 {
		return entries[i].Value, true
	}
	return Value{}, false
}
