package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

func TestKeyTokenStable(t *testing.T) {
	s := catalog.NewSchemaBuilder("ks", "t").
		PartitionKey("a", types.Int).
		PartitionKey("b", types.Text).
		MustBuild()

	key := []types.Value{types.NewValue(int32(1)), types.NewValue("x")}
	t1, err := KeyToken(s, key)
	require.NoError(t, err)
	t2, err := KeyToken(s, []types.Value{types.NewValue(int32(1)), types.NewValue("x")})
	require.NoError(t, err)
	assert.Equal(t, t1, t2)

	other, err := KeyToken(s, []types.Value{types.NewValue(int32(1)), types.NewValue("y")})
	require.NoError(t, err)
	assert.NotEqual(t, t1, other)
	assert.NotEqual(t, MinToken, t1)
}

func TestSerializeKeyErrors(t *testing.T) {
	s := catalog.NewSchemaBuilder("ks", "t").PartitionKey("a", types.Int).MustBuild()

	_, err := SerializeKey(s, nil)
	assert.Error(t, err)
	_, err = SerializeKey(s, []types.Value{types.NewNullValue()})
	assert.Error(t, err)

	data, err := SerializeKey(s, []types.Value{types.NewValue(int32(1))})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 1}, data)
}

func TestRange(t *testing.T) {
	r := Range{Start: &Bound{Token: 10}, End: &Bound{Token: 20, Inclusive: true}}
	assert.False(t, r.Contains(10))
	assert.True(t, r.Contains(11))
	assert.True(t, r.Contains(20))
	assert.False(t, r.Contains(21))
	assert.Equal(t, "(10, 20]", r.String())
	assert.False(t, r.IsEmpty())

	assert.True(t, Range{Start: &Bound{Token: 5}, End: &Bound{Token: 5, Inclusive: true}}.IsEmpty())
	assert.True(t, Range{Start: &Bound{Token: 6, Inclusive: true}, End: &Bound{Token: 5, Inclusive: true}}.IsEmpty())
	assert.True(t, FullRange().IsFull())
	assert.True(t, FullRange().Contains(MinToken))
	assert.Equal(t, "(-inf, +inf)", FullRange().String())
}
