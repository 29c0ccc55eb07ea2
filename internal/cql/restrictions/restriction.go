// Package restrictions classifies WHERE relations against a table schema
// and evaluates them once values are bound.
package restrictions

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/term"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Kind tags a Restriction variant.
type Kind int

const (
	KindEQ Kind = iota
	KindIN
	KindSlice
	KindContains
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindEQ:
		return "EQ"
	case KindIN:
		return "IN"
	case KindSlice:
		return "SLICE"
	case KindContains:
		return "CONTAINS"
	case KindToken:
		return "TOKEN"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Restriction is one of *EQ, *IN, *Slice, *Contains or *Token.
type Restriction interface {
	Kind() Kind
	// Columns returns the restricted columns: one, or the partition key
	// for a token restriction.
	Columns() []*catalog.ColumnDefinition
	ContainsBindMarker() bool
	String() string
	restriction()
}

// EQ restricts a column to a value. Several terms arise when a column is
// restricted more than once; they must all bind to the same value.
type EQ struct {
	Column *catalog.ColumnDefinition
	Terms  []term.Term
}

func (r *EQ) Kind() Kind                           { return KindEQ }
func (r *EQ) Columns() []*catalog.ColumnDefinition { return []*catalog.ColumnDefinition{r.Column} }
func (r *EQ) restriction()                         {}

func (r *EQ) ContainsBindMarker() bool {
	for _, t := range r.Terms {
		if t.ContainsBindMarker() {
			return true
		}
	}
	return false
}

func (r *EQ) String() string {
	parts := make([]string, len(r.Terms))
	for i, t := range r.Terms {
		parts[i] = fmt.Sprintf("%s = %s", r.Column.Name, t)
	}
	return strings.Join(parts, " AND ")
}

// IN restricts a column to a set of values.
type IN struct {
	Column *catalog.ColumnDefinition
	Values term.Terms
}

func (r *IN) Kind() Kind                           { return KindIN }
func (r *IN) Columns() []*catalog.ColumnDefinition { return []*catalog.ColumnDefinition{r.Column} }
func (r *IN) ContainsBindMarker() bool             { return r.Values.ContainsBindMarker() }
func (r *IN) String() string                       { return fmt.Sprintf("%s IN %s", r.Column.Name, r.Values) }
func (r *IN) restriction()                         {}

// SliceBound is one side of a range.
type SliceBound struct {
	Value     term.Term
	Inclusive bool
}

// Slice restricts a column to a range. Start and End are in value order,
// independent of the column's clustering order.
type Slice struct {
	Column *catalog.ColumnDefinition
	Start  *SliceBound
	End    *SliceBound
}

func (r *Slice) Kind() Kind                           { return KindSlice }
func (r *Slice) Columns() []*catalog.ColumnDefinition { return []*catalog.ColumnDefinition{r.Column} }
func (r *Slice) restriction()                         {}

func (r *Slice) ContainsBindMarker() bool {
	return (r.Start != nil && r.Start.Value.ContainsBindMarker()) ||
		(r.End != nil && r.End.Value.ContainsBindMarker())
}

func (r *Slice) String() string {
	return sliceString(r.Column.Name, r.Start, r.End)
}

func sliceString(name string, start, end *SliceBound) string {
	var parts []string
	if start != nil {
		op := ">"
		if start.Inclusive {
			op = ">="
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", name, op, start.Value))
	}
	if end != nil {
		op := "<"
		if end.Inclusive {
			op = "<="
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", name, op, end.Value))
	}
	return strings.Join(parts, " AND ")
}

// merge adds the bounds of other, rejecting a second bound on the same side.
func (r *Slice) merge(other *Slice) error {
	if other.Start != nil {
		if r.Start != nil {
			return errors.InvalidRequestf("more than one restriction was found for the start bound on %s", r.Column.Name)
		}
		r.Start = other.Start
	}
	if other.End != nil {
		if r.End != nil {
			return errors.InvalidRequestf("more than one restriction was found for the end bound on %s", r.Column.Name)
		}
		r.End = other.End
	}
	return nil
}

// MapEntryTerm is the key and value of a m[k] = v relation.
type MapEntryTerm struct {
	Key   term.Term
	Value term.Term
}

// Contains restricts a collection column by element, key or map entry.
type Contains struct {
	Column  *catalog.ColumnDefinition
	Values  []term.Term
	Keys    []term.Term
	Entries []MapEntryTerm
}

func (r *Contains) Kind() Kind                           { return KindContains }
func (r *Contains) Columns() []*catalog.ColumnDefinition { return []*catalog.ColumnDefinition{r.Column} }
func (r *Contains) restriction()                         {}

func (r *Contains) ContainsBindMarker() bool {
	for _, t := range r.Values {
		if t.ContainsBindMarker() {
			return true
		}
	}
	for _, t := range r.Keys {
		if t.ContainsBindMarker() {
			return true
		}
	}
	for _, e := range r.Entries {
		if e.Key.ContainsBindMarker() || e.Value.ContainsBindMarker() {
			return true
		}
	}
	return false
}

func (r *Contains) String() string {
	var parts []string
	for _, t := range r.Values {
		parts = append(parts, fmt.Sprintf("%s CONTAINS %s", r.Column.Name, t))
	}
	for _, t := range r.Keys {
		parts = append(parts, fmt.Sprintf("%s CONTAINS KEY %s", r.Column.Name, t))
	}
	for _, e := range r.Entries {
		parts = append(parts, fmt.Sprintf("%s[%s] = %s", r.Column.Name, e.Key, e.Value))
	}
	return strings.Join(parts, " AND ")
}

func (r *Contains) merge(other *Contains) {
	r.Values = append(r.Values, other.Values...)
	r.Keys = append(r.Keys, other.Keys...)
	r.Entries = append(r.Entries, other.Entries...)
}

// indexOperators lists what an index must serve to answer r.
func (r *Contains) indexOperators() []catalog.IndexOperator {
	var ops []catalog.IndexOperator
	if len(r.Values) > 0 {
		ops = append(ops, catalog.IndexContains)
	}
	if len(r.Keys) > 0 {
		ops = append(ops, catalog.IndexContainsKey)
	}
	if len(r.Entries) > 0 {
		ops = append(ops, catalog.IndexMapEntry)
	}
	return ops
}

// Token restricts token(partition key) by equality or range.
type Token struct {
	PartitionKey []*catalog.ColumnDefinition
	EQ           term.Term
	Start        *SliceBound
	End          *SliceBound
}

func (r *Token) Kind() Kind                           { return KindToken }
func (r *Token) Columns() []*catalog.ColumnDefinition { return r.PartitionKey }
func (r *Token) restriction()                         {}

func (r *Token) ContainsBindMarker() bool {
	return (r.EQ != nil && r.EQ.ContainsBindMarker()) ||
		(r.Start != nil && r.Start.Value.ContainsBindMarker()) ||
		(r.End != nil && r.End.Value.ContainsBindMarker())
}

func (r *Token) String() string {
	names := make([]string, len(r.PartitionKey))
	for i, c := range r.PartitionKey {
		names[i] = c.Name
	}
	lhs := "token(" + strings.Join(names, ", ") + ")"
	if r.EQ != nil {
		return fmt.Sprintf("%s = %s", lhs, r.EQ)
	}
	return sliceString(lhs, r.Start, r.End)
}

func (r *Token) merge(other *Token) error {
	if r.EQ != nil || other.EQ != nil {
		return errors.InvalidRequestf("%s cannot be restricted by more than one relation if it includes an Equal", r.lhs())
	}
	s := &Slice{Column: &catalog.ColumnDefinition{Name: r.lhs()}, Start: r.Start, End: r.End}
	if err := s.merge(&Slice{Start: other.Start, End: other.End}); err != nil {
		return err
	}
	r.Start, r.End = s.Start, s.End
	return nil
}

func (r *Token) lhs() string {
	names := make([]string, len(r.PartitionKey))
	for i, c := range r.PartitionKey {
		names[i] = c.Name
	}
	return "token(" + strings.Join(names, ", ") + ")"
}

// mergeRestrictions combines two restrictions on the same column.
func mergeRestrictions(existing, added Restriction) (Restriction, error) {
	col := existing.Columns()[0].Name
	switch e := existing.(type) {
	case *EQ:
		a, ok := added.(*EQ)
		if !ok {
			return nil, errors.InvalidRequestf("%s cannot be restricted by more than one relation if it includes an Equal", col)
		}
		return mergeEQ(e, a)
	case *IN:
		return nil, errors.InvalidRequestf("%s cannot be restricted by more than one relation if it includes a IN", col)
	case *Slice:
		a, ok := added.(*Slice)
		if !ok {
			return nil, errors.InvalidRequestf("column %s cannot be restricted by both an inequality relation and %s", col, added.Kind())
		}
		if err := e.merge(a); err != nil {
			return nil, err
		}
		return e, nil
	case *Contains:
		a, ok := added.(*Contains)
		if !ok {
			return nil, errors.InvalidRequestf("collection column %s can only be restricted by CONTAINS, CONTAINS KEY, or map-entry equality", col)
		}
		e.merge(a)
		return e, nil
	}
	return nil, errors.InvalidRequestf("unsupported restriction on %s", col)
}

// mergeEQ keeps repeated equalities. Two constants that differ are a
// contradiction detectable now; anything involving a marker is checked
// when values are bound.
func mergeEQ(e, a *EQ) (Restriction, error) {
	for _, t := range a.Terms {
		dup := false
		if c, ok := t.(*term.Constant); ok {
			for _, existing := range e.Terms {
				ec, ok := existing.(*term.Constant)
				if !ok {
					continue
				}
				if e.Column.Type.Compare(ec.Value, c.Value) != 0 {
					return nil, errors.InvalidRequestf("%s cannot be restricted by more than one relation if it includes an Equal", e.Column.Name).
						WithDetailf("conflicting values %s and %s", ec.Value, c.Value)
				}
				dup = true
			}
		}
		if !dup {
			e.Terms = append(e.Terms, t)
		}
	}
	return e, nil
}
