package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

func fixture() (*catalog.Schema, *ColumnSpecification) {
	s := catalog.NewSchemaBuilder("ks", "t").
		PartitionKey("id", types.Int).
		Regular("tags", types.SetOf(types.Text)).
		Regular("attrs", types.MapOf(types.Text, types.Int)).
		MustBuild()
	return s, Receiver(s, s.Column("id"))
}

func TestPrepareLiteral(t *testing.T) {
	s, recv := fixture()
	vars := NewVariableSpecifications()

	tm, err := Prepare(ast.Lit(5), recv, s, vars)
	require.NoError(t, err)
	assert.False(t, tm.ContainsBindMarker())
	v, err := tm.Bind(nil)
	require.NoError(t, err)
	assert.Equal(t, int32(5), v.Data)

	_, err = Prepare(ast.Lit("five"), recv, s, vars)
	require.Error(t, err)
	assert.True(t, errors.IsClass(err, errors.ClassCompile))
	assert.Equal(t, 0, vars.Count())
}

func TestPrepareMarker(t *testing.T) {
	s, recv := fixture()
	vars := NewVariableSpecifications()

	first, err := Prepare(&ast.BindMarker{}, recv, s, vars)
	require.NoError(t, err)
	second, err := Prepare(&ast.BindMarker{Name: "other"}, recv, s, vars)
	require.NoError(t, err)
	assert.Equal(t, 2, vars.Count())
	assert.Equal(t, []string{"", "other"}, vars.Names())

	values := []types.Value{types.NewValue(1), types.NewValue(int64(2))}
	v, err := second.Bind(values)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v.Data)

	_, err = first.Bind([]types.Value{types.NewValue("x")})
	require.Error(t, err)
	assert.True(t, errors.IsClass(err, errors.ClassBind))
	assert.Equal(t, "id", errors.GetError(err).Column)
}

func TestPrepareList(t *testing.T) {
	s, recv := fixture()
	vars := NewVariableSpecifications()

	list, err := PrepareList([]ast.Term{ast.Lit(1), &ast.BindMarker{}, ast.Lit(3)}, nil, recv, s, vars)
	require.NoError(t, err)
	assert.True(t, list.ContainsBindMarker())
	got, err := list.BindAll([]types.Value{types.NewValue(2)})
	require.NoError(t, err)
	assert.Equal(t, []types.Value{
		types.NewValue(int32(1)), types.NewValue(int32(2)), types.NewValue(int32(3)),
	}, got)

	whole, err := PrepareList(nil, &ast.BindMarker{}, recv, s, vars)
	require.NoError(t, err)
	assert.Equal(t, "in(id)", vars.Specs()[1].Name)
	got, err = whole.BindAll([]types.Value{types.NewValue(0), types.NewValue([]interface{}{4, 5})})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = whole.BindAll([]types.Value{types.NewValue(0), types.NewNullValue()})
	assert.True(t, errors.IsClass(err, errors.ClassBind))
}

func TestPrepareFunctionFolds(t *testing.T) {
	s, _ := fixture()
	vars := NewVariableSpecifications()
	recv := &ColumnSpecification{Name: "token", Type: types.BigInt}

	tm, err := Prepare(&ast.FunctionCall{Name: "token", Args: []ast.Term{ast.Lit(5)}}, recv, s, vars)
	require.NoError(t, err)
	_, folded := tm.(*Constant)
	assert.True(t, folded)

	tm, err = Prepare(&ast.FunctionCall{Name: "token", Args: []ast.Term{&ast.BindMarker{}}}, recv, s, vars)
	require.NoError(t, err)
	assert.True(t, tm.ContainsBindMarker())
	assert.Equal(t, "arg0(token)", vars.Specs()[0].Name)

	_, err = Prepare(&ast.FunctionCall{Name: "token", Args: nil}, recv, s, vars)
	assert.Error(t, err)

	_, err = Prepare(&ast.FunctionCall{Name: "now"}, recv, s, vars)
	assert.Error(t, err, "timeuuid result cannot feed a bigint receiver")
}

func TestPrepareCollections(t *testing.T) {
	s, _ := fixture()
	vars := NewVariableSpecifications()
	tags := Receiver(s, s.Column("tags"))
	attrs := Receiver(s, s.Column("attrs"))

	tm, err := Prepare(&ast.SetLiteral{Elements: []ast.Term{ast.Lit("b"), ast.Lit("a")}}, tags, s, vars)
	require.NoError(t, err)
	v, err := tm.Bind(nil)
	require.NoError(t, err)
	assert.Equal(t, []types.Value{types.NewValue("a"), types.NewValue("b")}, v.Data)

	_, err = Prepare(&ast.ListLiteral{}, tags, s, vars)
	assert.Error(t, err)

	tm, err = Prepare(&ast.MapLiteral{Entries: []ast.MapLiteralEntry{{Key: ast.Lit("k"), Value: &ast.BindMarker{}}}}, attrs, s, vars)
	require.NoError(t, err)
	assert.Equal(t, "value(attrs)", vars.Specs()[0].Name)
	v, err = tm.Bind([]types.Value{types.NewValue(9)})
	require.NoError(t, err)
	assert.Equal(t, []types.MapEntry{{Key: types.NewValue("k"), Value: types.NewValue(int32(9))}}, v.Data)
}
