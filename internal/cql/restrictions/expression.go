package restrictions

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

// Op is the operator of a bound Expression.
type Op int

const (
	OpEQ Op = iota
	OpIN
	OpSlice
	OpContains
	OpContainsKey
	OpMapEntry
)

// Bound is one bound side of a range over values.
type Bound struct {
	Value     types.Value
	Inclusive bool
}

// Expression is a single-column predicate with its values bound. It is
// used for index expressions handed to storage and for the row filter.
type Expression struct {
	Column *catalog.ColumnDefinition
	Op     Op
	Value  types.Value   // EQ, CONTAINS, CONTAINS KEY, map entry value
	Key    types.Value   // map entry key
	Values []types.Value // IN
	Lower  *Bound        // slice
	Upper  *Bound        // slice
}

// Matches evaluates the predicate on a column value. Null never matches.
func (e Expression) Matches(v types.Value) bool {
	if v.Null {
		return false
	}
	t := e.Column.Type
	switch e.Op {
	case OpEQ:
		return t.Compare(v, e.Value) == 0
	case OpIN:
		for _, candidate := range e.Values {
			if t.Compare(v, candidate) == 0 {
				return true
			}
		}
		return false
	case OpSlice:
		return inRange(t, v, e.Lower, e.Upper)
	case OpContains:
		coll, ok := types.AsCollection(t)
		return ok && types.Contains(coll, v, e.Value)
	case OpContainsKey:
		coll, ok := types.AsCollection(t)
		return ok && types.ContainsKey(coll, v, e.Value)
	case OpMapEntry:
		coll, ok := types.AsCollection(t)
		if !ok {
			return false
		}
		got, found := types.MapGet(coll, v, e.Key)
		return found && coll.Elements().Compare(got, e.Value) == 0
	}
	return false
}

func inRange(t types.DataType, v types.Value, lower, upper *Bound) bool {
	if lower != nil {
		c := t.Compare(v, lower.Value)
		if c < 0 || (c == 0 && !lower.Inclusive) {
			return false
		}
	}
	if upper != nil {
		c := t.Compare(v, upper.Value)
		if c > 0 || (c == 0 && !upper.Inclusive) {
			return false
		}
	}
	return true
}

// emptyRange reports whether no value can satisfy lower and upper.
func emptyRange(t types.DataType, lower, upper *Bound) bool {
	if lower == nil || upper == nil {
		return false
	}
	c := t.Compare(lower.Value, upper.Value)
	return c > 0 || (c == 0 && !(lower.Inclusive && upper.Inclusive))
}

func (e Expression) String() string {
	name := e.Column.Name
	switch e.Op {
	case OpEQ:
		return fmt.Sprintf("%s = %s", name, e.Value)
	case OpIN:
		parts := make([]string, len(e.Values))
		for i, v := range e.Values {
			parts[i] = v.String()
		}
		return fmt.Sprintf("%s IN (%s)", name, strings.Join(parts, ", "))
	case OpSlice:
		var parts []string
		if e.Lower != nil {
			op := ">"
			if e.Lower.Inclusive {
				op = ">="
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", name, op, e.Lower.Value))
		}
		if e.Upper != nil {
			op := "<"
			if e.Upper.Inclusive {
				op = "<="
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", name, op, e.Upper.Value))
		}
		return strings.Join(parts, " AND ")
	case OpContains:
		return fmt.Sprintf("%s CONTAINS %s", name, e.Value)
	case OpContainsKey:
		return fmt.Sprintf("%s CONTAINS KEY %s", name, e.Value)
	case OpMapEntry:
		return fmt.Sprintf("%s[%s] = %s", name, e.Key, e.Value)
	}
	return name
}

// RowFilter is a conjunction of expressions evaluated on fetched rows.
type RowFilter []Expression

// Matches reports whether every expression holds. get returns the value of
// a column for the row under test.
func (f RowFilter) Matches(get func(*catalog.ColumnDefinition) types.Value) bool {
	for _, e := range f {
		if !e.Matches(get(e.Column)) {
			return false
		}
	}
	return true
}

// Columns returns the distinct columns the filter reads.
func (f RowFilter) Columns() []*catalog.ColumnDefinition {
	var cols []*catalog.ColumnDefinition
	seen := make(map[string]bool)
	for _, e := range f {
		if !seen[e.Column.Name] {
			seen[e.Column.Name] = true
			cols = append(cols, e.Column)
		}
	}
	return cols
}

// StaticOnly reports whether the filter reads only partition key and
// static columns, so a partition's static row alone can satisfy it.
func (f RowFilter) StaticOnly() bool {
	for _, e := range f {
		if e.Column.Kind != catalog.Static && e.Column.Kind != catalog.PartitionKey {
			return false
		}
	}
	return true
}
