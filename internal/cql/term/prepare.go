package term

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/functions"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Prepare converts a raw term into a Term for receiver. Bind markers are
// registered in vars in the order they are met.
func Prepare(raw ast.Term, receiver *ColumnSpecification, schema *catalog.Schema, vars *VariableSpecifications) (Term, error) {
	switch t := raw.(type) {
	case *ast.Literal:
		if t.Value.Null {
			return &Constant{Value: types.NewNullValue()}, nil
		}
		v, err := receiver.Type.Coerce(t.Value)
		if err != nil {
			return nil, errors.InvalidRequestf("invalid constant (%s) for \"%s\" of type %s",
				t.String(), receiver.Name, receiver.Type.Name())
		}
		return &Constant{Value: v}, nil

	case *ast.BindMarker:
		return &Marker{Index: vars.Add(t.Name, receiver), Receiver: receiver}, nil

	case *ast.FunctionCall:
		return prepareFunction(t, receiver, schema, vars)

	case *ast.ListLiteral:
		coll, ok := types.AsCollection(receiver.Type)
		if !ok || coll.Kind() != types.KindList {
			return nil, errors.InvalidRequestf("invalid list literal for %s of type %s", receiver.Name, receiver.Type.Name())
		}
		return prepareElements(t.Elements, coll, receiver, schema, vars)

	case *ast.SetLiteral:
		coll, ok := types.AsCollection(receiver.Type)
		if !ok || coll.Kind() != types.KindSet {
			return nil, errors.InvalidRequestf("invalid set literal for %s of type %s", receiver.Name, receiver.Type.Name())
		}
		return prepareElements(t.Elements, coll, receiver, schema, vars)

	case *ast.MapLiteral:
		coll, ok := types.AsCollection(receiver.Type)
		if ok && coll.Kind() == types.KindSet && len(t.Entries) == 0 {
			return &Constant{Value: types.NewValue([]types.Value{})}, nil
		}
		if !ok || coll.Kind() != types.KindMap {
			return nil, errors.InvalidRequestf("invalid map literal for %s of type %s", receiver.Name, receiver.Type.Name())
		}
		return prepareMap(t, coll, receiver, schema, vars)
	}
	return nil, errors.InvalidRequestf("unsupported term %s", raw.String())
}

// PrepareList prepares the values of an IN relation: either an explicit
// list or a single marker bound to the whole list.
func PrepareList(values []ast.Term, marker ast.Term, receiver *ColumnSpecification, schema *catalog.Schema, vars *VariableSpecifications) (Terms, error) {
	if marker != nil {
		bm, ok := marker.(*ast.BindMarker)
		if !ok {
			return nil, errors.InvalidRequestf("invalid IN value %s for %s", marker.String(), receiver.Name)
		}
		listReceiver := &ColumnSpecification{
			Keyspace: receiver.Keyspace,
			Table:    receiver.Table,
			Name:     "in(" + receiver.Name + ")",
			Type:     types.ListOf(receiver.Type),
		}
		return &ListMarker{Marker{Index: vars.Add(bm.Name, listReceiver), Receiver: listReceiver}}, nil
	}
	list := &List{Elements: make([]Term, 0, len(values))}
	for _, raw := range values {
		t, err := Prepare(raw, receiver, schema, vars)
		if err != nil {
			return nil, err
		}
		list.Elements = append(list.Elements, t)
	}
	return list, nil
}

// Receiver returns the specification of a column as a bind receiver.
func Receiver(schema *catalog.Schema, col *catalog.ColumnDefinition) *ColumnSpecification {
	return &ColumnSpecification{Keyspace: schema.Keyspace, Table: schema.Name, Name: col.Name, Type: col.Type}
}

// Derived returns a receiver derived from base with a new name and type,
// e.g. value(tags) for CONTAINS on a set.
func Derived(base *ColumnSpecification, name string, t types.DataType) *ColumnSpecification {
	return &ColumnSpecification{Keyspace: base.Keyspace, Table: base.Table, Name: name, Type: t}
}

// FunctionTerm applies a function to bound arguments.
type FunctionTerm struct {
	Fn   functions.Function
	Args []Term
}

func (f *FunctionTerm) Bind(values []types.Value) (types.Value, error) {
	args := make([]types.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Bind(values)
		if err != nil {
			return types.Value{}, err
		}
		args[i] = v
	}
	return f.Fn.Execute(args)
}

func (f *FunctionTerm) ContainsBindMarker() bool {
	for _, a := range f.Args {
		if a.ContainsBindMarker() {
			return true
		}
	}
	return false
}

func (f *FunctionTerm) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Fn.Name(), strings.Join(parts, ", "))
}

func prepareFunction(call *ast.FunctionCall, receiver *ColumnSpecification, schema *catalog.Schema, vars *VariableSpecifications) (Term, error) {
	fn, err := functions.Lookup(call.Name, schema)
	if err != nil {
		return nil, err
	}
	if len(call.Args) != len(fn.ArgTypes()) {
		return nil, errors.InvalidRequestf("invalid number of arguments in call to function %s: %d required but %d provided",
			fn.Name(), len(fn.ArgTypes()), len(call.Args))
	}
	if fn.ReturnType().Name() != receiver.Type.Name() {
		return nil, errors.InvalidRequestf("type error: cannot assign result of function %s (type %s) to %s (type %s)",
			fn.Name(), fn.ReturnType().Name(), receiver.Name, receiver.Type.Name())
	}
	ft := &FunctionTerm{Fn: fn, Args: make([]Term, len(call.Args))}
	for i, raw := range call.Args {
		argReceiver := Derived(receiver, fmt.Sprintf("arg%d(%s)", i, fn.Name()), fn.ArgTypes()[i])
		arg, err := Prepare(raw, argReceiver, schema, vars)
		if err != nil {
			return nil, err
		}
		ft.Args[i] = arg
	}
	if fn.IsPure() && !ft.ContainsBindMarker() {
		v, err := ft.Bind(nil)
		if err != nil {
			return nil, err
		}
		return &Constant{Value: v}, nil
	}
	return ft, nil
}

// CollectionTerm builds a list, set or map value from element terms.
type CollectionTerm struct {
	Type     types.CollectionType
	Elements []Term
	Keys     []Term // maps only, parallel to Elements
}

func (c *CollectionTerm) Bind(values []types.Value) (types.Value, error) {
	if c.Type.Kind() == types.KindMap {
		entries := make([]types.MapEntry, len(c.Elements))
		for i := range c.Elements {
			k, err := c.Keys[i].Bind(values)
			if err != nil {
				return types.Value{}, err
			}
			v, err := c.Elements[i].Bind(values)
			if err != nil {
				return types.Value{}, err
			}
			entries[i] = types.MapEntry{Key: k, Value: v}
		}
		return c.coerce(types.NewValue(entries))
	}
	elems := make([]types.Value, len(c.Elements))
	for i, e := range c.Elements {
		v, err := e.Bind(values)
		if err != nil {
			return types.Value{}, err
		}
		elems[i] = v
	}
	return c.coerce(types.NewValue(elems))
}

func (c *CollectionTerm) coerce(v types.Value) (types.Value, error) {
	out, err := c.Type.Coerce(v)
	if err != nil {
		return types.Value{}, errors.InvalidBoundValueError(c.Type.Name(), err.Error())
	}
	return out, nil
}

func (c *CollectionTerm) ContainsBindMarker() bool {
	for i, e := range c.Elements {
		if e.ContainsBindMarker() || (c.Keys != nil && c.Keys[i].ContainsBindMarker()) {
			return true
		}
	}
	return false
}

func (c *CollectionTerm) String() string {
	parts := make([]string, len(c.Elements))
	for i, e := range c.Elements {
		if c.Keys != nil {
			parts[i] = c.Keys[i].String() + ": " + e.String()
		} else {
			parts[i] = e.String()
		}
	}
	switch c.Type.Kind() {
	case types.KindList:
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "{" + strings.Join(parts, ", ") + "}"
	}
}

func prepareElements(raw []ast.Term, coll types.CollectionType, receiver *ColumnSpecification, schema *catalog.Schema, vars *VariableSpecifications) (Term, error) {
	ct := &CollectionTerm{Type: coll, Elements: make([]Term, len(raw))}
	elemReceiver := Derived(receiver, "value("+receiver.Name+")", coll.Elements())
	for i, r := range raw {
		t, err := Prepare(r, elemReceiver, schema, vars)
		if err != nil {
			return nil, err
		}
		ct.Elements[i] = t
	}
	return fold(ct)
}

func prepareMap(m *ast.MapLiteral, coll types.CollectionType, receiver *ColumnSpecification, schema *catalog.Schema, vars *VariableSpecifications) (Term, error) {
	ct := &CollectionTerm{Type: coll, Elements: make([]Term, len(m.Entries)), Keys: make([]Term, len(m.Entries))}
	keyReceiver := Derived(receiver, "key("+receiver.Name+")", coll.Keys())
	valueReceiver := Derived(receiver, "value("+receiver.Name+")", coll.Elements())
	for i, e := range m.Entries {
		k, err := Prepare(e.Key, keyReceiver, schema, vars)
		if err != nil {
			return nil, err
		}
		v, err := Prepare(e.Value, valueReceiver, schema, vars)
		if err != nil {
			return nil, err
		}
		ct.Keys[i], ct.Elements[i] = k, v
	}
	return fold(ct)
}

func fold(ct *CollectionTerm) (Term, error) {
	if ct.ContainsBindMarker() {
		return ct, nil
	}
	v, err := ct.Bind(nil)
	if err != nil {
		return nil, errors.InvalidRequestf("invalid collection literal %s: %v", ct.String(), err)
	}
	return &Constant{Value: v}, nil
}
