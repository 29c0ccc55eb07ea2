// Package dht maps partition keys to tokens on the ring.
package dht

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

// Token is a position on the ring.
type Token int64

// MinToken is reserved as the ring minimum and never produced by hashing.
const (
	MinToken Token = math.MinInt64
	MaxToken Token = math.MaxInt64
)

func (t Token) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// TokenOf hashes a serialized partition key.
func TokenOf(key []byte) Token {
	h := Token(xxhash.Sum64(key)) // nolint:gosec // wraps into the signed ring
	if h == MinToken {
		return MaxToken
	}
	return h
}

// SerializeKey encodes the partition key components of schema. A single
// component key is its serialized value; composite keys encode each
// component as a 2-byte length, the value and a zero byte.
func SerializeKey(schema *catalog.Schema, key []types.Value) ([]byte, error) {
	if len(key) != len(schema.PartitionKey) {
		return nil, fmt.Errorf("partition key of %s has %d components, got %d",
			schema.QualifiedName(), len(schema.PartitionKey), len(key))
	}
	if len(key) == 1 {
		return serializeComponent(schema.PartitionKey[0], key[0])
	}
	var buf []byte
	for i, col := range schema.PartitionKey {
		data, err := serializeComponent(col, key[i])
		if err != nil {
			return nil, err
		}
		if len(data) > math.MaxUint16 {
			return nil, fmt.Errorf("partition key component %s is too long", col.Name)
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(data)))
		buf = append(buf, data...)
		buf = append(buf, 0)
	}
	return buf, nil
}

func serializeComponent(col *catalog.ColumnDefinition, v types.Value) ([]byte, error) {
	if v.Null {
		return nil, fmt.Errorf("null partition key component %s", col.Name)
	}
	return col.Type.Serialize(v)
}

// KeyToken computes the token of a partition key.
func KeyToken(schema *catalog.Schema, key []types.Value) (Token, error) {
	data, err := SerializeKey(schema, key)
	if err != nil {
		return 0, err
	}
	return TokenOf(data), nil
}

// Bound is one end of a token range.
type Bound struct {
	Token     Token
	Inclusive bool
}

// Range is a token range. A nil Start or End is unbounded on that side.
type Range struct {
	Start *Bound
	End   *Bound
}

// FullRange covers the whole ring.
func FullRange() Range {
	return Range{}
}

// Contains reports whether t lies in the range.
func (r Range) Contains(t Token) bool {
	if r.Start != nil {
		if t < r.Start.Token || (t == r.Start.Token && !r.Start.Inclusive) {
			return false
		}
	}
	if r.End != nil {
		if t > r.End.Token || (t == r.End.Token && !r.End.Inclusive) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no token can fall in the range.
func (r Range) IsEmpty() bool {
	if r.Start == nil || r.End == nil {
		return false
	}
	if r.Start.Token > r.End.Token {
		return true
	}
	return r.Start.Token == r.End.Token && !(r.Start.Inclusive && r.End.Inclusive)
}

// IsFull reports whether the range is unbounded on both sides.
func (r Range) IsFull() bool {
	return r.Start == nil && r.End == nil
}

func (r Range) String() string {
	lo, hi := "(", ")"
	start, end := "-inf", "+inf"
	if r.Start != nil {
		start = r.Start.Token.String()
		if r.Start.Inclusive {
			lo = "["
		}
	}
	if r.End != nil {
		end = r.End.Token.String()
		if r.End.Inclusive {
			hi = "]"
		}
	}
	return lo + start + ", " + end + hi
}
