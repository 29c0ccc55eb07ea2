package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/parser"
	"github.com/dshills/QuantaCQL/internal/cql/term"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/dht"
	"github.com/dshills/QuantaCQL/internal/errors"
)

func usersSchema() *catalog.Schema {
	return catalog.NewSchemaBuilder("ks", "users").
		PartitionKey("id", types.Int).
		Clustering("ts", types.Int, catalog.Descending).
		Static("owner", types.Text).
		Regular("v", types.Int).
		Regular("note", types.Text).
		MustBuild()
}

func prepare(t *testing.T, cql string) (*Selection, *term.VariableSpecifications, error) {
	t.Helper()
	stmt := parser.MustParse(cql)
	vars := term.NewVariableSpecifications()
	sel, err := New(usersSchema(), stmt.Selectors, vars)
	return sel, vars, err
}

func names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func TestWildcard(t *testing.T) {
	sel, _, err := prepare(t, "SELECT * FROM users")
	require.NoError(t, err)
	assert.True(t, sel.IsWildcard())
	assert.True(t, sel.ContainsStaticColumns())
	assert.Equal(t, []string{"id", "ts", "owner", "v", "note"}, names(sel.Columns()))
}

func TestExplicitSelection(t *testing.T) {
	sel, _, err := prepare(t, "SELECT note, V AS value, id FROM users")
	require.NoError(t, err)
	assert.False(t, sel.IsWildcard())
	assert.False(t, sel.ContainsStaticColumns())
	assert.Equal(t, []string{"note", "value", "id"}, names(sel.Columns()))
	assert.True(t, sel.Aliases()["value"])

	var required []string
	for _, c := range sel.RequiredColumns() {
		required = append(required, c.Name)
	}
	assert.Equal(t, []string{"id", "v", "note"}, required)

	col, ok := sel.FirstNonPartitionKeyColumn()
	require.True(t, ok)
	assert.Equal(t, "note", col.Name)
}

func TestSelectionErrors(t *testing.T) {
	tests := []struct {
		cql string
		msg string
	}{
		{"SELECT nope FROM users", "undefined name nope in selection clause"},
		{"SELECT v AS a, note AS a FROM users", "ambiguous"},
		{"SELECT unknownfn(v) FROM users", "unknown function"},
		{"SELECT dateof(v) FROM users", "type error"},
		{"SELECT token(id, v) FROM users", "invalid number of arguments"},
		{"SELECT intasblob('x') FROM users", "invalid constant"},
	}
	for _, tt := range tests {
		t.Run(tt.cql, func(t *testing.T) {
			_, _, err := prepare(t, tt.cql)
			require.Error(t, err)
			assert.True(t, errors.IsClass(err, errors.ClassCompile))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAssembleRow(t *testing.T) {
	sel, _, err := prepare(t, "SELECT id, ts, owner, v FROM users")
	require.NoError(t, err)

	in := Input{
		PartitionKey: []types.Value{types.NewValue(int32(1))},
		Clustering:   []types.Value{types.NewValue(int32(7))},
		Cells:        map[string]types.Value{"v": types.NewValue(int32(42))},
		Static:       map[string]types.Value{"owner": types.NewValue("ann")},
	}
	row, err := sel.AssembleRow(in, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.Value{
		types.NewValue(int32(1)),
		types.NewValue(int32(7)),
		types.NewValue("ann"),
		types.NewValue(int32(42)),
	}, row)

	// a static row carries no clustering or regular values
	static := Input{PartitionKey: in.PartitionKey, Static: in.Static}
	assert.True(t, static.IsStaticRow())
	row, err = sel.AssembleRow(static, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.Value{
		types.NewValue(int32(1)),
		types.NewNullValue(),
		types.NewValue("ann"),
		types.NewNullValue(),
	}, row)
}

func TestFunctionSelectors(t *testing.T) {
	sel, vars, err := prepare(t, "SELECT token(id), blobasint(intasblob(v)), intasblob(?) AS b FROM users")
	require.NoError(t, err)
	assert.Equal(t, 1, vars.Count())
	assert.Equal(t, []string{"token(id)", "blobasint(intasblob(v))", "b"}, names(sel.Columns()))
	assert.Equal(t, types.BigInt, sel.Columns()[0].Type)

	in := Input{
		PartitionKey: []types.Value{types.NewValue(int32(9))},
		Clustering:   []types.Value{types.NewValue(int32(1))},
		Cells:        map[string]types.Value{"v": types.NewValue(int32(3))},
	}
	row, err := sel.AssembleRow(in, []types.Value{types.NewValue(int32(1))})
	require.NoError(t, err)

	tok, err := dht.KeyToken(usersSchema(), in.PartitionKey)
	require.NoError(t, err)
	assert.Equal(t, int64(tok), row[0].Data)
	assert.Equal(t, int32(3), row[1].Data)
	assert.Equal(t, []byte{0, 0, 0, 1}, row[2].Data)
}

func TestWithOrderingColumns(t *testing.T) {
	schema := usersSchema()
	stmt := parser.MustParse("SELECT v FROM users")
	sel, err := New(schema, stmt.Selectors, term.NewVariableSpecifications())
	require.NoError(t, err)

	withTs := sel.WithOrderingColumns([]*catalog.ColumnDefinition{schema.Column("ts"), schema.Column("v")})
	assert.Equal(t, 1, withTs.HiddenCount())
	assert.Equal(t, []string{"v"}, names(withTs.Columns()))
	assert.Equal(t, 1, withTs.IndexOf(schema.Column("ts")))
	assert.Equal(t, "v, ts(hidden)", withTs.String())

	// the original is untouched
	assert.Equal(t, 0, sel.HiddenCount())
	assert.Equal(t, -1, sel.IndexOf(schema.Column("ts")))
}
