// Package ast holds the raw, unvalidated form of a SELECT statement as
// produced by the parser. Nothing here is resolved against a schema.
package ast

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/cql/types"
)

// Node is the base interface for all AST nodes.
type Node interface {
	String() string
}

// Identifier is a keyspace, table, column or alias name as written.
type Identifier struct {
	Text   string
	Quoted bool
}

// Ident returns an unquoted identifier.
func Ident(text string) Identifier {
	return Identifier{Text: text}
}

// QuotedIdent returns a double-quoted, case-sensitive identifier.
func QuotedIdent(text string) Identifier {
	return Identifier{Text: text, Quoted: true}
}

// Name returns the internal name: lower-cased unless quoted.
func (i Identifier) Name() string {
	if i.Quoted {
		return i.Text
	}
	return strings.ToLower(i.Text)
}

// IsZero reports whether the identifier is unset.
func (i Identifier) IsZero() bool {
	return i.Text == ""
}

func (i Identifier) String() string {
	if i.Quoted {
		return `"` + strings.ReplaceAll(i.Text, `"`, `""`) + `"`
	}
	return strings.ToLower(i.Text)
}

// Term is a value position: literal, bind marker, function call or
// collection literal.
type Term interface {
	Node
	termNode()
}

// Literal is an untyped constant. Its Data is int64, float64, string,
// bool or []byte; typing happens against the receiving column.
type Literal struct {
	Value types.Value
}

// Lit builds a literal from a Go value. nil yields NULL.
func Lit(v interface{}) *Literal {
	if v == nil {
		return &Literal{Value: types.NewNullValue()}
	}
	if n, ok := v.(int); ok {
		v = int64(n)
	}
	return &Literal{Value: types.NewValue(v)}
}

func (l *Literal) termNode() {}
func (l *Literal) String() string {
	if l.Value.IsNull() {
		return "NULL"
	}
	return l.Value.String()
}

// BindMarker is a positional (?) or named (:name) marker.
type BindMarker struct {
	Name string
}

func (b *BindMarker) termNode() {}
func (b *BindMarker) String() string {
	if b.Name != "" {
		return ":" + b.Name
	}
	return "?"
}

// FunctionCall is a function applied to terms, e.g. token(?) or now().
type FunctionCall struct {
	Name string
	Args []Term
}

func (f *FunctionCall) termNode() {}
func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", strings.ToLower(f.Name), strings.Join(args, ", "))
}

// ListLiteral is [a, b, ...].
type ListLiteral struct {
	Elements []Term
}

func (l *ListLiteral) termNode() {}
func (l *ListLiteral) String() string {
	return "[" + joinTerms(l.Elements) + "]"
}

// SetLiteral is {a, b, ...}.
type SetLiteral struct {
	Elements []Term
}

func (s *SetLiteral) termNode() {}
func (s *SetLiteral) String() string {
	return "{" + joinTerms(s.Elements) + "}"
}

// MapLiteral is {k: v, ...}.
type MapLiteral struct {
	Entries []MapLiteralEntry
}

// MapLiteralEntry is one k: v pair of a map literal.
type MapLiteralEntry struct {
	Key   Term
	Value Term
}

func (m *MapLiteral) termNode() {}
func (m *MapLiteral) String() string {
	parts := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		parts[i] = e.Key.String() + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func joinTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Selector is one unaliased item of the select clause.
type Selector interface {
	Node
	selectorNode()
}

// ColumnSelector selects a column by name.
type ColumnSelector struct {
	Column Identifier
}

func (c *ColumnSelector) selectorNode() {}
func (c *ColumnSelector) String() string {
	return c.Column.String()
}

// FunctionSelector applies a function to selector arguments.
type FunctionSelector struct {
	Name string
	Args []Selector
}

func (f *FunctionSelector) selectorNode() {}
func (f *FunctionSelector) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", strings.ToLower(f.Name), strings.Join(args, ", "))
}

// TermSelector is a literal or bind marker used as a function argument.
type TermSelector struct {
	Term Term
}

func (t *TermSelector) selectorNode() {}
func (t *TermSelector) String() string {
	return t.Term.String()
}

// RawSelector is a selector with an optional alias.
type RawSelector struct {
	Selector Selector
	Alias    *Identifier
}

func (r RawSelector) String() string {
	if r.Alias != nil {
		return fmt.Sprintf("%s AS %s", r.Selector.String(), r.Alias.String())
	}
	return r.Selector.String()
}

// Operator is a relation operator.
type Operator int

const (
	OpEQ Operator = iota
	OpLT
	OpLTE
	OpGT
	OpGTE
	OpIN
	OpContains
	OpContainsKey
	OpNEQ
)

var operatorStrings = map[Operator]string{
	OpEQ:          "=",
	OpLT:          "<",
	OpLTE:         "<=",
	OpGT:          ">",
	OpGTE:         ">=",
	OpIN:          "IN",
	OpContains:    "CONTAINS",
	OpContainsKey: "CONTAINS KEY",
	OpNEQ:         "!=",
}

func (o Operator) String() string {
	if s, ok := operatorStrings[o]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", int(o))
}

// IsSlice reports whether the operator bounds a range.
func (o Operator) IsSlice() bool {
	return o == OpLT || o == OpLTE || o == OpGT || o == OpGTE
}

// Relation is one conjunct of the WHERE clause.
type Relation interface {
	Node
	relationNode()
}

// SingleColumnRelation restricts one column, or one map entry when MapKey
// is set (m[k] = v). For IN, either InValues holds the list or Value is a
// marker bound to the whole list.
type SingleColumnRelation struct {
	Column   Identifier
	MapKey   Term
	Op       Operator
	Value    Term
	InValues []Term
}

func (r *SingleColumnRelation) relationNode() {}
func (r *SingleColumnRelation) String() string {
	lhs := r.Column.String()
	if r.MapKey != nil {
		lhs = fmt.Sprintf("%s[%s]", lhs, r.MapKey.String())
	}
	if r.Op == OpIN && r.Value == nil {
		return fmt.Sprintf("%s IN (%s)", lhs, joinTerms(r.InValues))
	}
	return fmt.Sprintf("%s %s %s", lhs, r.Op, r.Value.String())
}

// TokenRelation restricts token(pk...) of the partition key.
type TokenRelation struct {
	Columns []Identifier
	Op      Operator
	Value   Term
}

func (r *TokenRelation) relationNode() {}
func (r *TokenRelation) String() string {
	cols := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = c.String()
	}
	return fmt.Sprintf("token(%s) %s %s", strings.Join(cols, ", "), r.Op, r.Value.String())
}

// Ordering is one ORDER BY item.
type Ordering struct {
	Column Identifier
	Desc   bool
}

func (o Ordering) String() string {
	if o.Desc {
		return o.Column.String() + " DESC"
	}
	return o.Column.String() + " ASC"
}

// SelectStatement is a parsed SELECT.
type SelectStatement struct {
	Keyspace       Identifier
	Table          Identifier
	Distinct       bool
	Selectors      []RawSelector // empty means *
	Where          []Relation
	OrderBy        []Ordering
	Limit          Term
	AllowFiltering bool
}

// IsWildcard reports whether the statement selects *.
func (s *SelectStatement) IsWildcard() bool {
	return len(s.Selectors) == 0
}

// WithDefaultKeyspace returns s, or a copy of s qualified with keyspace
// when s names none.
func (s *SelectStatement) WithDefaultKeyspace(keyspace string) *SelectStatement {
	if !s.Keyspace.IsZero() || keyspace == "" {
		return s
	}
	cp := *s
	cp.Keyspace = Identifier{Text: keyspace, Quoted: keyspace != strings.ToLower(keyspace)}
	return &cp
}

// String renders the canonical text of the statement. Two statements with
// the same canonical text are equivalent.
func (s *SelectStatement) String() string {
	var parts []string

	sel := "SELECT "
	if s.Distinct {
		sel += "DISTINCT "
	}
	if s.IsWildcard() {
		sel += "*"
	} else {
		cols := make([]string, len(s.Selectors))
		for i, c := range s.Selectors {
			cols[i] = c.String()
		}
		sel += strings.Join(cols, ", ")
	}
	parts = append(parts, sel)

	from := s.Table.String()
	if !s.Keyspace.IsZero() {
		from = s.Keyspace.String() + "." + from
	}
	parts = append(parts, "FROM "+from)

	if len(s.Where) > 0 {
		conds := make([]string, len(s.Where))
		for i, r := range s.Where {
			conds[i] = r.String()
		}
		parts = append(parts, "WHERE "+strings.Join(conds, " AND "))
	}

	if len(s.OrderBy) > 0 {
		orders := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			orders[i] = o.String()
		}
		parts = append(parts, "ORDER BY "+strings.Join(orders, ", "))
	}

	if s.Limit != nil {
		parts = append(parts, "LIMIT "+s.Limit.String())
	}
	if s.AllowFiltering {
		parts = append(parts, "ALLOW FILTERING")
	}
	return strings.Join(parts, " ")
}
