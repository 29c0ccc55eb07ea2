package restrictions

import (
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/term"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Options tunes classification.
type Options struct {
	AllowFiltering bool
	// Aliases holds select-clause aliases, which WHERE may not reference.
	Aliases map[string]bool
}

// StatementRestrictions is the classified WHERE clause of a statement.
// It is immutable once built.
type StatementRestrictions struct {
	schema *catalog.Schema

	byColumn     map[string]Restriction
	partitionKey []Restriction // EQ or IN, in partition key order; nil when not fully pinned
	token        *Token
	clustering   []Restriction // accepted EQ/IN prefix, optionally ending with a Slice
	indexed      []Restriction
	filtered     []Restriction

	usesSecondaryIndexing bool
	isKeyRange            bool
	hasClustering         bool
	needsFiltering        bool
}

// New classifies the relations of a WHERE clause. Bind markers are
// registered in vars in relation order.
func New(schema *catalog.Schema, idx catalog.IndexChecker, where []ast.Relation, vars *term.VariableSpecifications, opts Options) (*StatementRestrictions, error) {
	if idx == nil {
		idx = catalog.NoIndexes
	}
	r := &StatementRestrictions{
		schema:   schema,
		byColumn: make(map[string]Restriction),
	}
	for _, rel := range where {
		if err := r.add(rel, vars, opts); err != nil {
			return nil, err
		}
	}
	if err := r.classify(idx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *StatementRestrictions) add(rel ast.Relation, vars *term.VariableSpecifications, opts Options) error {
	switch rel := rel.(type) {
	case *ast.TokenRelation:
		t, err := r.newToken(rel, vars)
		if err != nil {
			return err
		}
		if r.token == nil {
			r.token = t
			return nil
		}
		return r.token.merge(t)

	case *ast.SingleColumnRelation:
		name := rel.Column.Name()
		col := r.schema.Column(name)
		if col == nil {
			if opts.Aliases[name] {
				return errors.AliasNotAllowedError(name, "WHERE")
			}
			return errors.UnrecognizedEntityError(name, "WHERE")
		}
		added, err := r.newSingleColumn(rel, col, vars)
		if err != nil {
			return err
		}
		existing, ok := r.byColumn[col.Name]
		if !ok {
			r.byColumn[col.Name] = added
			return nil
		}
		merged, err := mergeRestrictions(existing, added)
		if err != nil {
			return err
		}
		r.byColumn[col.Name] = merged
		return nil
	}
	return errors.InvalidRequestf("unsupported relation %s", rel.String())
}

func (r *StatementRestrictions) newToken(rel *ast.TokenRelation, vars *term.VariableSpecifications) (*Token, error) {
	pk := r.schema.PartitionKey
	names := make([]string, len(rel.Columns))
	for i, c := range rel.Columns {
		names[i] = c.Name()
		if r.schema.Column(names[i]) == nil {
			return nil, errors.UnrecognizedEntityError(names[i], "WHERE")
		}
	}
	if len(names) != len(pk) {
		return nil, errors.InvalidRequestf("the token() function must be applied to all partition key components or none of them")
	}
	for i, c := range pk {
		if names[i] != c.Name {
			return nil, errors.InvalidRequestf("the token function arguments must be in the partition key order: %s", joinNames(pk))
		}
	}

	receiver := &term.ColumnSpecification{
		Keyspace: r.schema.Keyspace,
		Table:    r.schema.Name,
		Name:     "partition key token",
		Type:     types.BigInt,
	}
	value, err := term.Prepare(rel.Value, receiver, r.schema, vars)
	if err != nil {
		return nil, err
	}
	if isNullConstant(value) {
		return nil, errors.InvalidRequestf("invalid null value in condition for %s", receiver.Name)
	}
	t := &Token{PartitionKey: pk}
	switch rel.Op {
	case ast.OpEQ:
		t.EQ = value
	case ast.OpGT, ast.OpGTE:
		t.Start = &SliceBound{Value: value, Inclusive: rel.Op == ast.OpGTE}
	case ast.OpLT, ast.OpLTE:
		t.End = &SliceBound{Value: value, Inclusive: rel.Op == ast.OpLTE}
	default:
		return nil, errors.InvalidRequestf("unsupported operator %s on token()", rel.Op)
	}
	return t, nil
}

func (r *StatementRestrictions) newSingleColumn(rel *ast.SingleColumnRelation, col *catalog.ColumnDefinition, vars *term.VariableSpecifications) (Restriction, error) {
	receiver := term.Receiver(r.schema, col)
	coll, isColl := types.AsCollection(col.Type)

	if rel.MapKey != nil {
		if !isColl || coll.Kind() != types.KindMap {
			return nil, errors.InvalidRequestf("column %s cannot be used as a map", col.Name)
		}
		key, err := r.prepareNonNull(rel.MapKey, term.Derived(receiver, "key("+col.Name+")", coll.Keys()), vars)
		if err != nil {
			return nil, err
		}
		value, err := r.prepareNonNull(rel.Value, term.Derived(receiver, "value("+col.Name+")", coll.Elements()), vars)
		if err != nil {
			return nil, err
		}
		return &Contains{Column: col, Entries: []MapEntryTerm{{Key: key, Value: value}}}, nil
	}

	switch rel.Op {
	case ast.OpEQ:
		value, err := r.prepareNonNull(rel.Value, receiver, vars)
		if err != nil {
			return nil, err
		}
		return &EQ{Column: col, Terms: []term.Term{value}}, nil

	case ast.OpIN:
		values, err := term.PrepareList(rel.InValues, rel.Value, receiver, r.schema, vars)
		if err != nil {
			return nil, err
		}
		if list, ok := values.(*term.List); ok {
			for _, e := range list.Elements {
				if isNullConstant(e) {
					return nil, errors.InvalidRequestf("invalid null value in condition for column %s", col.Name)
				}
			}
		}
		return &IN{Column: col, Values: values}, nil

	case ast.OpLT, ast.OpLTE, ast.OpGT, ast.OpGTE:
		if isColl {
			return nil, errors.InvalidRequestf("slice restrictions are not supported on collection column %s", col.Name)
		}
		value, err := r.prepareNonNull(rel.Value, receiver, vars)
		if err != nil {
			return nil, err
		}
		bound := &SliceBound{Value: value, Inclusive: rel.Op == ast.OpGTE || rel.Op == ast.OpLTE}
		if rel.Op == ast.OpGT || rel.Op == ast.OpGTE {
			return &Slice{Column: col, Start: bound}, nil
		}
		return &Slice{Column: col, End: bound}, nil

	case ast.OpContains:
		if !isColl {
			return nil, errors.InvalidRequestf("cannot use CONTAINS on non-collection column %s", col.Name)
		}
		value, err := r.prepareNonNull(rel.Value, term.Derived(receiver, "value("+col.Name+")", coll.Elements()), vars)
		if err != nil {
			return nil, err
		}
		return &Contains{Column: col, Values: []term.Term{value}}, nil

	case ast.OpContainsKey:
		if !isColl || coll.Kind() != types.KindMap {
			return nil, errors.InvalidRequestf("cannot use CONTAINS KEY on non-map column %s", col.Name)
		}
		key, err := r.prepareNonNull(rel.Value, term.Derived(receiver, "key("+col.Name+")", coll.Keys()), vars)
		if err != nil {
			return nil, err
		}
		return &Contains{Column: col, Keys: []term.Term{key}}, nil

	case ast.OpNEQ:
		return nil, errors.InvalidRequestf("unsupported \"!=\" relation: %s", rel.String())
	}
	return nil, errors.InvalidRequestf("unsupported operator %s on %s", rel.Op, col.Name)
}

func (r *StatementRestrictions) prepareNonNull(raw ast.Term, receiver *term.ColumnSpecification, vars *term.VariableSpecifications) (term.Term, error) {
	t, err := term.Prepare(raw, receiver, r.schema, vars)
	if err != nil {
		return nil, err
	}
	if isNullConstant(t) {
		return nil, errors.InvalidRequestf("invalid null value in condition for column %s", receiver.Name)
	}
	return t, nil
}

func isNullConstant(t term.Term) bool {
	c, ok := t.(*term.Constant)
	return ok && c.Value.Null
}

// classify buckets the per-column restrictions into partition key,
// clustering prefix, index and filtering restrictions.
func (r *StatementRestrictions) classify(idx catalog.IndexChecker) error {
	s := r.schema

	// non-primary-key columns
	for _, col := range s.Columns() {
		if col.Kind.IsPrimaryKey() {
			continue
		}
		restr, ok := r.byColumn[col.Name]
		if !ok {
			continue
		}
		if indexServes(idx, s, restr) {
			r.indexed = append(r.indexed, restr)
		} else {
			r.filtered = append(r.filtered, restr)
		}
	}

	// clustering: EQ/IN prefix, at most one trailing slice
	prefixOpen := true
	for _, col := range s.Clustering {
		restr, ok := r.byColumn[col.Name]
		if !ok {
			prefixOpen = false
			continue
		}
		r.hasClustering = true
		if prefixOpen {
			r.clustering = append(r.clustering, restr)
			if restr.Kind() == KindSlice {
				prefixOpen = false
			}
			continue
		}
		if indexServes(idx, s, restr) {
			r.indexed = append(r.indexed, restr)
		} else {
			r.filtered = append(r.filtered, restr)
		}
	}
	r.usesSecondaryIndexing = len(r.indexed) > 0

	// partition key
	var restricted, missing []*catalog.ColumnDefinition
	for _, col := range s.PartitionKey {
		restr, ok := r.byColumn[col.Name]
		if !ok {
			missing = append(missing, col)
			continue
		}
		if r.token != nil {
			return errors.InvalidRequestf("columns %s cannot be restricted by both a normal relation and a token relation",
				joinNames(s.PartitionKey))
		}
		if restr.Kind() != KindEQ && restr.Kind() != KindIN {
			return errors.InvalidRequestf("only EQ and IN relation are supported on the partition key (unless you use the token() function)")
		}
		restricted = append(restricted, col)
	}
	switch {
	case len(restricted) == len(s.PartitionKey):
		for _, col := range s.PartitionKey {
			r.partitionKey = append(r.partitionKey, r.byColumn[col.Name])
		}
	case len(restricted) == 0:
		r.isKeyRange = true
	case r.usesSecondaryIndexing:
		// an index scan restricted by a partial partition key
		r.isKeyRange = true
		for _, col := range restricted {
			r.filtered = append(r.filtered, r.byColumn[col.Name])
		}
	default:
		return errors.PartitionKeyUnrestrictedError(missing[0].Name)
	}

	// only one index is used; further indexed restrictions are filtered
	if len(r.indexed) > 1 {
		r.filtered = append(r.filtered, r.indexed[1:]...)
		r.indexed = r.indexed[:1]
	}

	r.needsFiltering = r.filteredNeedsOptIn() ||
		(r.isKeyRange && len(r.clustering) > 0 && !r.usesSecondaryIndexing)
	return nil
}

// filteredNeedsOptIn reports whether a filtered restriction needs ALLOW
// FILTERING. Partition key parts narrowing an index scan do not.
func (r *StatementRestrictions) filteredNeedsOptIn() bool {
	for _, f := range r.filtered {
		if f.Kind() == KindToken {
			continue
		}
		if f.Columns()[0].Kind == catalog.PartitionKey && r.usesSecondaryIndexing {
			continue
		}
		return true
	}
	return false
}

func indexServes(idx catalog.IndexChecker, s *catalog.Schema, restr Restriction) bool {
	col := restr.Columns()[0]
	switch rs := restr.(type) {
	case *EQ:
		return idx.Supports(s, col.Name, catalog.IndexEQ)
	case *Contains:
		for _, op := range rs.indexOperators() {
			if !idx.Supports(s, col.Name, op) {
				return false
			}
		}
		return true
	}
	return false
}

func joinNames(cols []*catalog.ColumnDefinition) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// Schema returns the table the restrictions apply to.
func (r *StatementRestrictions) Schema() *catalog.Schema { return r.schema }

// UsesSecondaryIndexing reports whether an index serves a restriction.
func (r *StatementRestrictions) UsesSecondaryIndexing() bool { return r.usesSecondaryIndexing }

// IsKeyRange reports whether the query scans a range of partitions rather
// than looking up specific keys.
func (r *StatementRestrictions) IsKeyRange() bool { return r.isKeyRange }

// HasClusteringColumnsRestriction reports whether any clustering column is
// restricted, in the prefix or not.
func (r *StatementRestrictions) HasClusteringColumnsRestriction() bool { return r.hasClustering }

// NeedsFiltering reports whether answering requires post-fetch filtering
// the user must opt into with ALLOW FILTERING.
func (r *StatementRestrictions) NeedsFiltering() bool { return r.needsFiltering }

// HasRowFilter reports whether rows are filtered after fetching.
func (r *StatementRestrictions) HasRowFilter() bool { return len(r.filtered) > 0 }

// HasPartitionKeyIN reports whether the partition key is pinned with at
// least one IN restriction, making the query a multi-key lookup.
func (r *StatementRestrictions) HasPartitionKeyIN() bool {
	for _, p := range r.partitionKey {
		if p.Kind() == KindIN {
			return true
		}
	}
	return false
}

// RestrictedColumns returns the columns restricted by a single-column
// relation, in schema order.
func (r *StatementRestrictions) RestrictedColumns() []*catalog.ColumnDefinition {
	var cols []*catalog.ColumnDefinition
	for _, col := range r.schema.Columns() {
		if _, ok := r.byColumn[col.Name]; ok {
			cols = append(cols, col)
		}
	}
	return cols
}

// Restrictions returns every restriction in a stable order: token,
// partition key, clustering prefix, indexed, filtered.
func (r *StatementRestrictions) Restrictions() []Restriction {
	var all []Restriction
	if r.token != nil {
		all = append(all, r.token)
	}
	all = append(all, r.partitionKey...)
	all = append(all, r.clustering...)
	all = append(all, r.indexed...)
	all = append(all, r.filtered...)
	return all
}
