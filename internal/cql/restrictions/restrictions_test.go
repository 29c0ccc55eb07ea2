package restrictions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/parser"
	"github.com/dshills/QuantaCQL/internal/cql/term"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

type indexes map[string]catalog.IndexOperator

func (i indexes) Supports(_ *catalog.Schema, column string, op catalog.IndexOperator) bool {
	o, ok := i[column]
	return ok && o == op
}

func eventsSchema() *catalog.Schema {
	return catalog.NewSchemaBuilder("ks", "events").
		PartitionKey("id", types.Int).
		Clustering("ts", types.Int, catalog.Ascending).
		Clustering("seq", types.Int, catalog.Descending).
		Static("owner", types.Text).
		Regular("v", types.Int).
		Regular("tags", types.SetOf(types.Text)).
		Regular("attrs", types.MapOf(types.Text, types.Int)).
		MustBuild()
}

func build(t *testing.T, where string, idx catalog.IndexChecker) (*StatementRestrictions, *term.VariableSpecifications, error) {
	t.Helper()
	stmt := parser.MustParse("SELECT * FROM ks.events WHERE " + where)
	vars := term.NewVariableSpecifications()
	r, err := New(eventsSchema(), idx, stmt.Where, vars, Options{Aliases: map[string]bool{"total": true}})
	return r, vars, err
}

func mustBuild(t *testing.T, where string, idx catalog.IndexChecker) *StatementRestrictions {
	t.Helper()
	r, _, err := build(t, where, idx)
	require.NoError(t, err)
	return r
}

func ints(vals ...int) []types.Value {
	out := make([]types.Value, len(vals))
	for i, v := range vals {
		out[i] = types.NewValue(int32(v))
	}
	return out
}

func TestSinglePartitionSlice(t *testing.T) {
	r := mustBuild(t, "id = 5 AND ts > 10", nil)
	assert.False(t, r.IsKeyRange())
	assert.False(t, r.NeedsFiltering())
	assert.True(t, r.HasClusteringColumnsRestriction())
	assert.False(t, r.HasPartitionKeyIN())

	b, err := r.Bind(nil)
	require.NoError(t, err)
	assert.False(t, b.Empty)
	assert.Equal(t, [][]types.Value{ints(5)}, b.PartitionKeys)
	assert.Equal(t, [][]types.Value{{}}, b.ClusteringPrefixes)
	require.NotNil(t, b.SliceColumn)
	assert.Equal(t, "ts", b.SliceColumn.Name)
	require.NotNil(t, b.Lower)
	assert.Equal(t, int32(10), b.Lower.Value.Data)
	assert.False(t, b.Lower.Inclusive)
	assert.Nil(t, b.Upper)
}

func TestPartitionKeyIN(t *testing.T) {
	r := mustBuild(t, "id IN (2, 1, 2)", nil)
	assert.True(t, r.HasPartitionKeyIN())

	b, err := r.Bind(nil)
	require.NoError(t, err)
	assert.Equal(t, [][]types.Value{ints(1), ints(2)}, b.PartitionKeys)

	r = mustBuild(t, "id IN ?", nil)
	b, err = r.Bind([]types.Value{types.NewValue([]types.Value{})})
	require.NoError(t, err)
	assert.True(t, b.Empty)
}

func TestClusteringPrefixesFollowStorageOrder(t *testing.T) {
	r := mustBuild(t, "id = 1 AND ts IN (3, 1) AND seq IN (1, 2)", nil)
	b, err := r.Bind(nil)
	require.NoError(t, err)

	// seq is descending
	assert.Equal(t, [][]types.Value{
		ints(1, 2), ints(1, 1), ints(3, 2), ints(3, 1),
	}, b.ClusteringPrefixes)
}

func TestCompositePartitionKey(t *testing.T) {
	schema := catalog.NewSchemaBuilder("ks", "c").
		PartitionKey("a", types.Int).
		PartitionKey("b", types.Text).
		Regular("v", types.Int).
		MustBuild()

	stmt := parser.MustParse("SELECT * FROM c WHERE a = 1")
	_, err := New(schema, nil, stmt.Where, term.NewVariableSpecifications(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition key parts: b")

	stmt = parser.MustParse("SELECT * FROM c WHERE a IN (1, 2) AND b IN ('x', 'y')")
	r, err := New(schema, nil, stmt.Where, term.NewVariableSpecifications(), Options{})
	require.NoError(t, err)
	b, err := r.Bind(nil)
	require.NoError(t, err)
	assert.Len(t, b.PartitionKeys, 4)

	// a partial key narrows an index scan
	stmt = parser.MustParse("SELECT * FROM c WHERE a = 1 AND v = 3")
	r, err = New(schema, indexes{"v": catalog.IndexEQ}, stmt.Where, term.NewVariableSpecifications(), Options{})
	require.NoError(t, err)
	assert.True(t, r.IsKeyRange())
	assert.True(t, r.UsesSecondaryIndexing())
	assert.False(t, r.NeedsFiltering())
	assert.True(t, r.HasRowFilter())
}

func TestFilteringClassification(t *testing.T) {
	tests := []struct {
		where     string
		idx       catalog.IndexChecker
		filtering bool
		indexing  bool
	}{
		{"id = 1", nil, false, false},
		{"id = 1 AND ts = 2 AND seq > 3", nil, false, false},
		{"id = 1 AND seq = 3", nil, true, false},
		{"id = 1 AND ts > 1 AND seq = 3", nil, true, false},
		{"ts = 2", nil, true, false},
		{"v = 3", nil, true, false},
		{"v = 3", indexes{"v": catalog.IndexEQ}, false, true},
		{"v > 3", indexes{"v": catalog.IndexEQ}, true, false},
		{"tags CONTAINS 'a'", indexes{"tags": catalog.IndexContains}, false, true},
		{"tags CONTAINS 'a'", nil, true, false},
		{"attrs CONTAINS KEY 'k'", indexes{"attrs": catalog.IndexContains}, true, false},
		{"attrs['k'] = 1", indexes{"attrs": catalog.IndexMapEntry}, false, true},
		{"v = 3 AND owner = 'x'", indexes{"v": catalog.IndexEQ, "owner": catalog.IndexEQ}, true, true},
		{"id = 1 AND seq = 3", indexes{"seq": catalog.IndexEQ}, false, true},
		{"token(id) > 5", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.where, func(t *testing.T) {
			r := mustBuild(t, tt.where, tt.idx)
			assert.Equal(t, tt.filtering, r.NeedsFiltering(), "needs filtering")
			assert.Equal(t, tt.indexing, r.UsesSecondaryIndexing(), "uses index")
		})
	}
}

func TestOnlyOneIndexExpression(t *testing.T) {
	r := mustBuild(t, "v = 3 AND owner = 'x'", indexes{"v": catalog.IndexEQ, "owner": catalog.IndexEQ})
	b, err := r.Bind(nil)
	require.NoError(t, err)
	require.Len(t, b.IndexExpressions, 1)
	require.Len(t, b.Filter, 1)
}

func TestInvalidRelations(t *testing.T) {
	tests := []struct {
		where string
		msg   string
	}{
		{"nope = 1", "undefined name nope"},
		{"total = 1", "aliases aren't allowed"},
		{"v != 1", "unsupported \"!=\" relation"},
		{"id > 1", "only EQ and IN relation are supported on the partition key"},
		{"id = 1 AND id = 2", "cannot be restricted by more than one relation"},
		{"id = 1 AND id IN (1, 2)", "cannot be restricted by more than one relation"},
		{"id = 1 AND ts > 1 AND ts > 2", "more than one restriction was found for the start bound"},
		{"token(id) > 1 AND id = 1", "cannot be restricted by both a normal relation and a token relation"},
		{"token(ts) > 1", "token function arguments must be in the partition key order"},
		{"v = null", "invalid null value"},
		{"v CONTAINS 1", "cannot use CONTAINS on non-collection column v"},
		{"tags CONTAINS KEY 'a'", "cannot use CONTAINS KEY on non-map column tags"},
		{"tags > {'a'}", "slice restrictions are not supported on collection column tags"},
		{"v = 'text'", "invalid constant"},
	}
	for _, tt := range tests {
		t.Run(tt.where, func(t *testing.T) {
			_, _, err := build(t, tt.where, nil)
			require.Error(t, err)
			assert.True(t, errors.IsClass(err, errors.ClassCompile), "compile class: %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRepeatedEqualityOnMarkers(t *testing.T) {
	r, vars, err := build(t, "id = ? AND id = ?", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, vars.Count())

	b, err := r.Bind(ints(4, 4))
	require.NoError(t, err)
	assert.False(t, b.Empty)
	assert.Equal(t, [][]types.Value{ints(4)}, b.PartitionKeys)

	b, err = r.Bind(ints(4, 5))
	require.NoError(t, err)
	assert.True(t, b.Empty)

	r = mustBuild(t, "id = 4 AND id = 4", nil)
	b, err = r.Bind(nil)
	require.NoError(t, err)
	assert.Equal(t, [][]types.Value{ints(4)}, b.PartitionKeys)
}

func TestBindErrors(t *testing.T) {
	r := mustBuild(t, "id = ? AND ts > ?", nil)

	_, err := r.Bind([]types.Value{types.NewNullValue(), types.NewValue(1)})
	require.Error(t, err)
	assert.True(t, errors.IsClass(err, errors.ClassBind))
	assert.Contains(t, err.Error(), "invalid null value for partition key part id")

	_, err = r.Bind([]types.Value{types.NewValue(1), types.NewNullValue()})
	require.Error(t, err)
	assert.True(t, errors.IsClass(err, errors.ClassBind))

	_, err = r.Bind([]types.Value{types.NewValue("x"), types.NewValue(1)})
	require.Error(t, err)
	assert.True(t, errors.IsClass(err, errors.ClassBind))
}

func TestEmptyRanges(t *testing.T) {
	r := mustBuild(t, "id = 1 AND ts > 5 AND ts < 5", nil)
	b, err := r.Bind(nil)
	require.NoError(t, err)
	assert.True(t, b.Empty)

	r = mustBuild(t, "id = 1 AND ts >= 5 AND ts <= 5", nil)
	b, err = r.Bind(nil)
	require.NoError(t, err)
	assert.False(t, b.Empty)

	r = mustBuild(t, "token(id) > ? AND token(id) <= ?", nil)
	b, err = r.Bind([]types.Value{types.NewValue(int64(10)), types.NewValue(int64(20))})
	require.NoError(t, err)
	assert.False(t, b.Empty)
	assert.Equal(t, "(10, 20]", b.TokenRange.String())

	b, err = r.Bind([]types.Value{types.NewValue(int64(20)), types.NewValue(int64(10))})
	require.NoError(t, err)
	assert.True(t, b.Empty)
}

func TestRowFilterExpressions(t *testing.T) {
	r := mustBuild(t, "v IN (3, 1) AND tags CONTAINS 'a' AND attrs['k'] = 2", nil)
	b, err := r.Bind(nil)
	require.NoError(t, err)
	require.Len(t, b.Filter, 3)

	s := eventsSchema()
	row := map[string]types.Value{
		"v":     types.NewValue(int32(3)),
		"tags":  types.NewValue([]types.Value{types.NewValue("a"), types.NewValue("b")}),
		"attrs": types.NewValue([]types.MapEntry{{Key: types.NewValue("k"), Value: types.NewValue(int32(2))}}),
	}
	get := func(c *catalog.ColumnDefinition) types.Value {
		if v, ok := row[c.Name]; ok {
			return v
		}
		return types.NewNullValue()
	}
	assert.True(t, b.Filter.Matches(get))

	row["v"] = types.NewValue(int32(2))
	assert.False(t, b.Filter.Matches(get))

	delete(row, "v")
	assert.False(t, b.Filter.Matches(get), "null never matches")
	assert.False(t, b.Filter.StaticOnly())
	assert.Len(t, b.Filter.Columns(), 3)
	assert.NotNil(t, s.Column("attrs"))
}

func TestRestrictionStrings(t *testing.T) {
	r := mustBuild(t, "id = 1 AND ts > ? AND ts <= 9 AND tags CONTAINS 'a'", nil)
	var got []string
	for _, restr := range r.Restrictions() {
		got = append(got, restr.String())
	}
	assert.Equal(t, []string{"id = 1", "ts > ?0 AND ts <= 9", "tags CONTAINS 'a'"}, got)
}
