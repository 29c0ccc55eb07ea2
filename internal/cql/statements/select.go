// Package statements compiles SELECT statements against a table schema
// and executes them against a storage reader.
package statements

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/ordering"
	"github.com/dshills/QuantaCQL/internal/cql/restrictions"
	"github.com/dshills/QuantaCQL/internal/cql/selection"
	"github.com/dshills/QuantaCQL/internal/cql/term"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// SelectStatement is a prepared SELECT. It is immutable and safe to
// execute concurrently.
type SelectStatement struct {
	schema       *catalog.Schema
	variables    []*term.ColumnSpecification
	selection    *selection.Selection
	restrictions *restrictions.StatementRestrictions
	ordering     *ordering.Ordering
	comparator   ordering.Comparator
	limit        ordering.Limit
	distinct     bool
}

// Prepare validates raw against schema and compiles it. idx tells which
// relations a secondary index can serve; nil means none.
//
// Bind markers are numbered in the order they appear in the statement:
// select clause, then WHERE, then LIMIT.
func Prepare(schema *catalog.Schema, idx catalog.IndexChecker, raw *ast.SelectStatement) (*SelectStatement, error) {
	vars := term.NewVariableSpecifications()

	sel, err := selection.New(schema, raw.Selectors, vars)
	if err != nil {
		return nil, err
	}

	restr, err := restrictions.New(schema, idx, raw.Where, vars, restrictions.Options{
		AllowFiltering: raw.AllowFiltering,
		Aliases:        sel.Aliases(),
	})
	if err != nil {
		return nil, err
	}

	if raw.Distinct {
		if err := validateDistinct(schema, sel, restr); err != nil {
			return nil, err
		}
		if len(raw.OrderBy) > 0 {
			return nil, errors.InvalidRequestf("ORDER BY is not supported with SELECT DISTINCT")
		}
	}

	ord, err := ordering.Resolve(schema, raw.OrderBy, restr, sel.Aliases())
	if err != nil {
		return nil, err
	}

	if restr.NeedsFiltering() && !raw.AllowFiltering {
		return nil, errors.FilteringRequiredError().WithTable(schema.Keyspace, schema.Name)
	}

	limit, err := ordering.ResolveLimit(schema, raw.Limit, vars)
	if err != nil {
		return nil, err
	}

	stmt := &SelectStatement{
		schema:       schema,
		variables:    vars.Specs(),
		selection:    sel,
		restrictions: restr,
		ordering:     ord,
		limit:        limit,
		distinct:     raw.Distinct,
	}
	if ord.NeedsPostSort() {
		stmt.selection = sel.WithOrderingColumns(ord.Columns())
		stmt.comparator = ord.Comparator(stmt.selection)
	}
	return stmt, nil
}

// validateDistinct checks that a DISTINCT query selects exactly the
// partition key and restricts nothing else.
func validateDistinct(schema *catalog.Schema, sel *selection.Selection, restr *restrictions.StatementRestrictions) error {
	if col, ok := sel.FirstNonPartitionKeyColumn(); ok {
		return errors.DistinctSelectionError(col.Name)
	}
	selected := make(map[string]bool)
	for _, col := range sel.RequiredColumns() {
		selected[col.Name] = true
	}
	for _, pk := range schema.PartitionKey {
		if !selected[pk.Name] {
			return errors.InvalidRequestf("SELECT DISTINCT queries must request all the partition key columns (missing %s)", pk.Name).
				WithColumn(pk.Name)
		}
	}
	for _, col := range restr.RestrictedColumns() {
		if col.Kind != catalog.PartitionKey {
			return errors.InvalidRequestf("SELECT DISTINCT with WHERE clause only supports restriction by partition key").
				WithColumn(col.Name)
		}
	}
	return nil
}

// BoundTermCount returns the number of bind markers.
func (s *SelectStatement) BoundTermCount() int {
	return len(s.variables)
}

// Variables returns the receiver of every bind marker, in marker order.
func (s *SelectStatement) Variables() []*term.ColumnSpecification {
	out := make([]*term.ColumnSpecification, len(s.variables))
	copy(out, s.variables)
	return out
}

func (s *SelectStatement) Selection() *selection.Selection                   { return s.selection }
func (s *SelectStatement) Restrictions() *restrictions.StatementRestrictions { return s.restrictions }

// IsReversed reports whether rows are read in reverse clustering order.
func (s *SelectStatement) IsReversed() bool {
	return s.ordering.IsReversed()
}

// HasComparator reports whether rows are sorted after they are fetched.
func (s *SelectStatement) HasComparator() bool {
	return s.comparator != nil
}

// ResultColumns describes the emitted columns.
func (s *SelectStatement) ResultColumns() []selection.Column {
	return s.selection.Columns()
}

// String describes the compiled statement, one property per line.
func (s *SelectStatement) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Select %s\n", s.schema.QualifiedName())

	bound := make([]string, len(s.variables))
	for i, v := range s.variables {
		bound[i] = v.String()
	}
	if len(bound) == 0 {
		bound = append(bound, "none")
	}
	fmt.Fprintf(&b, "  bound: %s\n", strings.Join(bound, ", "))

	sel := s.selection.String()
	if s.selection.IsWildcard() {
		sel = "* (" + sel + ")"
	}
	fmt.Fprintf(&b, "  selection: %s\n", sel)
	if s.selection.ContainsStaticColumns() {
		b.WriteString("  static columns: yes\n")
	}

	switch {
	case s.comparator != nil:
		keys := make([]string, len(s.ordering.Keys()))
		for i, k := range s.ordering.Keys() {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			keys[i] = k.Column.Name + " " + dir
		}
		fmt.Fprintf(&b, "  ordering: post-query sort by %s\n", strings.Join(keys, ", "))
	case s.ordering.IsReversed():
		b.WriteString("  ordering: reversed\n")
	default:
		b.WriteString("  ordering: clustering\n")
	}
	fmt.Fprintf(&b, "  limit: %s\n", s.limit)
	if s.distinct {
		b.WriteString("  distinct\n")
	}
	return b.String()
}
