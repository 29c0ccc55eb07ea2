// Package term prepares raw AST terms against their receivers and binds
// them to values at execution time.
package term

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// ColumnSpecification describes what a value is bound to: a column, a
// derived receiver such as in(col) or value(col), or [limit].
type ColumnSpecification struct {
	Keyspace string
	Table    string
	Name     string
	Type     types.DataType
}

func (c *ColumnSpecification) String() string {
	return fmt.Sprintf("%s %s", c.Name, c.Type.Name())
}

// VariableSpecifications records the receiver of every bind marker in the
// order markers are met while preparing.
type VariableSpecifications struct {
	specs []*ColumnSpecification
	names []string
}

// NewVariableSpecifications creates an empty set.
func NewVariableSpecifications() *VariableSpecifications {
	return &VariableSpecifications{}
}

// Add records a marker and returns its index.
func (v *VariableSpecifications) Add(name string, spec *ColumnSpecification) int {
	v.specs = append(v.specs, spec)
	v.names = append(v.names, name)
	return len(v.specs) - 1
}

// Count returns the number of markers.
func (v *VariableSpecifications) Count() int {
	return len(v.specs)
}

// Specs returns the receivers in marker order.
func (v *VariableSpecifications) Specs() []*ColumnSpecification {
	out := make([]*ColumnSpecification, len(v.specs))
	copy(out, v.specs)
	return out
}

// Names returns marker names; positional markers have an empty name.
func (v *VariableSpecifications) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Term is a prepared value position.
type Term interface {
	// Bind resolves the term to a value of its receiver's type.
	Bind(values []types.Value) (types.Value, error)
	// ContainsBindMarker reports whether Bind depends on the values.
	ContainsBindMarker() bool
	String() string
}

// Terms is a prepared list of values, as used by IN.
type Terms interface {
	BindAll(values []types.Value) ([]types.Value, error)
	ContainsBindMarker() bool
	String() string
}

// Constant is a value known at prepare time.
type Constant struct {
	Value types.Value
}

func (c *Constant) Bind([]types.Value) (types.Value, error) { return c.Value, nil }
func (c *Constant) ContainsBindMarker() bool                 { return false }
func (c *Constant) String() string                           { return c.Value.String() }

// Marker is a bind marker with its receiver.
type Marker struct {
	Index    int
	Receiver *ColumnSpecification
}

func (m *Marker) Bind(values []types.Value) (types.Value, error) {
	if m.Index >= len(values) {
		return types.Value{}, errors.BoundArityError(m.Index+1, len(values))
	}
	v, err := m.Receiver.Type.Coerce(values[m.Index])
	if err != nil {
		return types.Value{}, errors.InvalidBoundValueError(m.Receiver.Name, err.Error())
	}
	return v, nil
}

func (m *Marker) ContainsBindMarker() bool { return true }
func (m *Marker) String() string           { return fmt.Sprintf("?%d", m.Index) }

// List is an explicit list of terms, e.g. IN (1, ?, 3).
type List struct {
	Elements []Term
}

func (l *List) BindAll(values []types.Value) ([]types.Value, error) {
	out := make([]types.Value, 0, len(l.Elements))
	for _, e := range l.Elements {
		v, err := e.Bind(values)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *List) ContainsBindMarker() bool {
	for _, e := range l.Elements {
		if e.ContainsBindMarker() {
			return true
		}
	}
	return false
}

func (l *List) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ListMarker is a single marker bound to a whole list, e.g. IN ?. Its
// receiver has a list type.
type ListMarker struct {
	Marker
}

func (m *ListMarker) BindAll(values []types.Value) ([]types.Value, error) {
	v, err := m.Bind(values)
	if err != nil {
		return nil, err
	}
	if v.Null {
		return nil, errors.InvalidBoundValueError(m.Receiver.Name, "invalid null value for IN restriction")
	}
	return v.Data.([]types.Value), nil
}

func (m *ListMarker) String() string { return m.Marker.String() }
