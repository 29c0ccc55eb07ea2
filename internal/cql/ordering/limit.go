package ordering

import (
	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/term"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Limit is a LIMIT clause: a literal, a bind marker, or nothing.
type Limit struct {
	t term.Term
}

// Unlimited is the absent LIMIT.
var Unlimited = Limit{}

// ResolveLimit prepares a LIMIT term. A marker is registered in vars with
// the receiver [limit].
func ResolveLimit(schema *catalog.Schema, raw ast.Term, vars *term.VariableSpecifications) (Limit, error) {
	if raw == nil {
		return Unlimited, nil
	}
	receiver := &term.ColumnSpecification{
		Keyspace: schema.Keyspace,
		Table:    schema.Name,
		Name:     "[limit]",
		Type:     types.Int,
	}
	t, err := term.Prepare(raw, receiver, schema, vars)
	if err != nil {
		return Unlimited, errors.MalformedLimitError(raw.String()).WithCause(err)
	}
	if c, ok := t.(*term.Constant); ok {
		if c.Value.Null {
			return Unlimited, errors.MalformedLimitError("LIMIT cannot be null")
		}
		if c.Value.Data.(int32) < 0 {
			return Unlimited, errors.MalformedLimitError("LIMIT must not be negative")
		}
	}
	return Limit{t: t}, nil
}

// IsBounded reports whether the statement has a LIMIT clause.
func (l Limit) IsBounded() bool { return l.t != nil }

// Bind resolves the limit. ok is false for an absent LIMIT.
func (l Limit) Bind(values []types.Value) (n int, ok bool, err error) {
	if l.t == nil {
		return 0, false, nil
	}
	v, err := l.t.Bind(values)
	if err != nil {
		return 0, false, errors.InvalidLimitError(err.Error()).WithCause(err)
	}
	if v.Null {
		return 0, false, errors.InvalidLimitError("LIMIT cannot be null")
	}
	n = int(v.Data.(int32))
	if n < 0 {
		return 0, false, errors.InvalidLimitError("LIMIT must not be negative")
	}
	return n, true, nil
}

func (l Limit) String() string {
	if l.t == nil {
		return "none"
	}
	return l.t.String()
}
