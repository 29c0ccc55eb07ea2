// Package selection resolves the select clause against a table schema and
// assembles result rows from fetched partitions.
package selection

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/functions"
	"github.com/dshills/QuantaCQL/internal/cql/term"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Column is the metadata of one output column.
type Column struct {
	Keyspace string
	Table    string
	Name     string
	Type     types.DataType
	// Source is the selected column, nil for computed values.
	Source *catalog.ColumnDefinition
}

// Selection is an ordered list of output expressions. It is immutable;
// WithOrderingColumns returns a copy.
type Selection struct {
	schema         *catalog.Schema
	columns        []Column
	evaluators     []evaluator
	aliases        map[string]bool
	isWildcard     bool
	containsStatic bool
	hidden         int
}

// Wildcard selects every column in schema order.
func Wildcard(schema *catalog.Schema) *Selection {
	s := &Selection{schema: schema, isWildcard: true, aliases: map[string]bool{}}
	for _, col := range schema.Columns() {
		s.addColumn(col, col.Name)
	}
	return s
}

// New resolves raw selectors. Bind markers in function arguments are
// registered in vars. An empty raw list is a wildcard.
func New(schema *catalog.Schema, raw []ast.RawSelector, vars *term.VariableSpecifications) (*Selection, error) {
	if len(raw) == 0 {
		return Wildcard(schema), nil
	}
	s := &Selection{schema: schema, aliases: map[string]bool{}}
	for _, rs := range raw {
		name := rs.Selector.String()
		if rs.Alias != nil {
			name = rs.Alias.Name()
			if s.aliases[name] {
				return nil, errors.AmbiguousColumnError(name)
			}
			s.aliases[name] = true
		}

		if cs, ok := rs.Selector.(*ast.ColumnSelector); ok {
			col, err := resolveColumn(schema, cs.Column)
			if err != nil {
				return nil, err
			}
			if rs.Alias == nil {
				name = col.Name
			}
			s.addColumn(col, name)
			continue
		}

		fs, ok := rs.Selector.(*ast.FunctionSelector)
		if !ok {
			return nil, errors.InvalidRequestf("invalid selector %s: only columns and function calls can be selected", rs.Selector.String())
		}
		ev, err := prepareFunction(schema, fs, vars)
		if err != nil {
			return nil, err
		}
		s.columns = append(s.columns, Column{
			Keyspace: schema.Keyspace,
			Table:    schema.Name,
			Name:     name,
			Type:     ev.returnType(),
		})
		s.evaluators = append(s.evaluators, ev)
		if ev.readsStatic() {
			s.containsStatic = true
		}
	}
	return s, nil
}

func resolveColumn(schema *catalog.Schema, id ast.Identifier) (*catalog.ColumnDefinition, error) {
	col := schema.Column(id.Name())
	if col == nil {
		return nil, errors.UnrecognizedEntityError(id.Name(), "selection")
	}
	return col, nil
}

func (s *Selection) addColumn(col *catalog.ColumnDefinition, name string) {
	s.columns = append(s.columns, Column{
		Keyspace: s.schema.Keyspace,
		Table:    s.schema.Name,
		Name:     name,
		Type:     col.Type,
		Source:   col,
	})
	s.evaluators = append(s.evaluators, &columnEvaluator{col: col})
	if col.Kind == catalog.Static {
		s.containsStatic = true
	}
}

// WithOrderingColumns returns a selection that also carries every column
// in cols that is not already selected as a plain column. The added
// columns are hidden and must be trimmed from emitted rows.
func (s *Selection) WithOrderingColumns(cols []*catalog.ColumnDefinition) *Selection {
	out := &Selection{
		schema:         s.schema,
		columns:        append([]Column(nil), s.columns...),
		evaluators:     append([]evaluator(nil), s.evaluators...),
		aliases:        s.aliases,
		isWildcard:     s.isWildcard,
		containsStatic: s.containsStatic,
		hidden:         s.hidden,
	}
	for _, col := range cols {
		if out.IndexOf(col) >= 0 {
			continue
		}
		out.addColumn(col, col.Name)
		out.hidden++
	}
	return out
}

// IndexOf returns the position of col when it is selected as a plain
// column, or -1.
func (s *Selection) IndexOf(col *catalog.ColumnDefinition) int {
	for i, c := range s.columns {
		if c.Source != nil && c.Source.Name == col.Name {
			return i
		}
	}
	return -1
}

// Columns returns the visible output columns.
func (s *Selection) Columns() []Column {
	return s.columns[:len(s.columns)-s.hidden]
}

// HiddenCount returns how many trailing columns exist only for ordering.
func (s *Selection) HiddenCount() int { return s.hidden }

func (s *Selection) IsWildcard() bool            { return s.isWildcard }
func (s *Selection) ContainsStaticColumns() bool { return s.containsStatic }

// Aliases returns the select-clause aliases.
func (s *Selection) Aliases() map[string]bool { return s.aliases }

// RequiredColumns returns every column read by the selection, in schema
// order.
func (s *Selection) RequiredColumns() []*catalog.ColumnDefinition {
	seen := make(map[string]bool)
	for _, ev := range s.evaluators {
		for _, col := range ev.columns() {
			seen[col.Name] = true
		}
	}
	var cols []*catalog.ColumnDefinition
	for _, col := range s.schema.Columns() {
		if seen[col.Name] {
			cols = append(cols, col)
		}
	}
	return cols
}

// FirstNonPartitionKeyColumn returns a selected column outside the
// partition key, if any.
func (s *Selection) FirstNonPartitionKeyColumn() (*catalog.ColumnDefinition, bool) {
	for _, ev := range s.evaluators {
		for _, col := range ev.columns() {
			if col.Kind != catalog.PartitionKey {
				return col, true
			}
		}
	}
	return nil, false
}

// AssembleRow evaluates every output expression, hidden ones included, on
// a single input row. It has no side effects beyond impure functions.
func (s *Selection) AssembleRow(in Input, values []types.Value) ([]types.Value, error) {
	row := make([]types.Value, len(s.evaluators))
	for i, ev := range s.evaluators {
		v, err := ev.eval(in, values)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (s *Selection) String() string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
		if i >= len(s.columns)-s.hidden {
			names[i] += "(hidden)"
		}
	}
	return strings.Join(names, ", ")
}

type evaluator interface {
	eval(in Input, values []types.Value) (types.Value, error)
	returnType() types.DataType
	columns() []*catalog.ColumnDefinition
	readsStatic() bool
}

type columnEvaluator struct {
	col *catalog.ColumnDefinition
}

func (e *columnEvaluator) eval(in Input, _ []types.Value) (types.Value, error) {
	return in.Value(e.col), nil
}

func (e *columnEvaluator) returnType() types.DataType           { return e.col.Type }
func (e *columnEvaluator) columns() []*catalog.ColumnDefinition { return []*catalog.ColumnDefinition{e.col} }
func (e *columnEvaluator) readsStatic() bool                    { return e.col.Kind == catalog.Static }

type termEvaluator struct {
	t   term.Term
	typ types.DataType
}

func (e *termEvaluator) eval(_ Input, values []types.Value) (types.Value, error) {
	return e.t.Bind(values)
}

func (e *termEvaluator) returnType() types.DataType           { return e.typ }
func (e *termEvaluator) columns() []*catalog.ColumnDefinition { return nil }
func (e *termEvaluator) readsStatic() bool                    { return false }

type functionEvaluator struct {
	fn   functions.Function
	args []evaluator
}

func (e *functionEvaluator) eval(in Input, values []types.Value) (types.Value, error) {
	args := make([]types.Value, len(e.args))
	for i, a := range e.args {
		v, err := a.eval(in, values)
		if err != nil {
			return types.Value{}, err
		}
		args[i] = v
	}
	return e.fn.Execute(args)
}

func (e *functionEvaluator) returnType() types.DataType { return e.fn.ReturnType() }

func (e *functionEvaluator) columns() []*catalog.ColumnDefinition {
	var cols []*catalog.ColumnDefinition
	for _, a := range e.args {
		cols = append(cols, a.columns()...)
	}
	return cols
}

func (e *functionEvaluator) readsStatic() bool {
	for _, a := range e.args {
		if a.readsStatic() {
			return true
		}
	}
	return false
}

func prepareFunction(schema *catalog.Schema, fs *ast.FunctionSelector, vars *term.VariableSpecifications) (*functionEvaluator, error) {
	fn, err := functions.Lookup(fs.Name, schema)
	if err != nil {
		return nil, err
	}
	argTypes := fn.ArgTypes()
	if len(fs.Args) != len(argTypes) {
		return nil, errors.InvalidRequestf("invalid number of arguments in call to function %s: %d required but %d provided",
			fn.Name(), len(argTypes), len(fs.Args))
	}
	ev := &functionEvaluator{fn: fn, args: make([]evaluator, len(fs.Args))}
	for i, raw := range fs.Args {
		want := argTypes[i]
		var arg evaluator
		switch a := raw.(type) {
		case *ast.ColumnSelector:
			col, err := resolveColumn(schema, a.Column)
			if err != nil {
				return nil, err
			}
			arg = &columnEvaluator{col: col}
		case *ast.FunctionSelector:
			nested, err := prepareFunction(schema, a, vars)
			if err != nil {
				return nil, err
			}
			arg = nested
		case *ast.TermSelector:
			receiver := &term.ColumnSpecification{
				Keyspace: schema.Keyspace,
				Table:    schema.Name,
				Name:     fmt.Sprintf("arg%d(%s)", i, fn.Name()),
				Type:     want,
			}
			t, err := term.Prepare(a.Term, receiver, schema, vars)
			if err != nil {
				return nil, err
			}
			arg = &termEvaluator{t: t, typ: want}
		default:
			return nil, errors.InvalidRequestf("invalid argument %s to function %s", raw.String(), fn.Name())
		}
		if arg.returnType().Name() != want.Name() {
			return nil, errors.InvalidRequestf("type error: %s cannot be passed as argument %d of %s of type %s",
				raw.String(), i, fn.Name(), want.Name())
		}
		ev.args[i] = arg
	}
	return ev, nil
}
