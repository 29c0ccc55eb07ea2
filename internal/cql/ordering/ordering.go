// Package ordering resolves ORDER BY and LIMIT clauses.
package ordering

import (
	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/restrictions"
	"github.com/dshills/QuantaCQL/internal/cql/selection"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Key is one resolved ORDER BY item.
type Key struct {
	Column *catalog.ColumnDefinition
	Desc   bool
}

// Ordering is a resolved ORDER BY clause. Either storage produces rows in
// the requested order, possibly reversed, or the rows are sorted after
// they are fetched.
type Ordering struct {
	keys     []Key
	reversed bool
	postSort bool
}

// None is the ordering of a statement without ORDER BY.
var None = &Ordering{}

// Comparator orders two assembled rows.
type Comparator func(a, b []types.Value) int

// Resolve validates an ORDER BY clause. Rows can only come back in
// clustering order or its exact reverse; any other order, and any order
// across several partitions, needs a post-query sort which is only legal
// for IN lookups on the partition key.
func Resolve(schema *catalog.Schema, orderings []ast.Ordering, restr *restrictions.StatementRestrictions, aliases map[string]bool) (*Ordering, error) {
	if len(orderings) == 0 {
		return None, nil
	}
	if restr.UsesSecondaryIndexing() {
		return nil, errors.InvalidRequestf("ORDER BY with 2ndary indexes is not supported")
	}
	if restr.IsKeyRange() {
		return nil, errors.InvalidRequestf("ORDER BY is only supported when the partition key is restricted by an EQ or an IN")
	}

	o := &Ordering{keys: make([]Key, 0, len(orderings))}
	for _, raw := range orderings {
		name := raw.Column.Name()
		col := schema.Column(name)
		if col == nil {
			if aliases[name] {
				return nil, errors.AliasNotAllowedError(name, "ORDER BY")
			}
			return nil, errors.UnrecognizedOrderingColumnError(name)
		}
		o.keys = append(o.keys, Key{Column: col, Desc: raw.Desc})
	}

	if restr.HasPartitionKeyIN() {
		o.postSort = true
		return o, nil
	}

	for i, k := range o.keys {
		if k.Column.Kind != catalog.Clustering || k.Column.Position != i {
			return nil, errors.OrderByNonClusteringError(k.Column.Name)
		}
		reversed := k.Desc != k.Column.IsReversed()
		if i == 0 {
			o.reversed = reversed
			continue
		}
		if reversed != o.reversed {
			return nil, errors.InvalidRequestf("unsupported order by relation: %s must be ordered the same way as %s relative to the clustering order",
				k.Column.Name, o.keys[0].Column.Name)
		}
	}
	return o, nil
}

// IsReversed reports whether rows must be read in reverse clustering
// order.
func (o *Ordering) IsReversed() bool { return o.reversed }

// NeedsPostSort reports whether rows are sorted after they are fetched.
func (o *Ordering) NeedsPostSort() bool { return o.postSort }

// Keys returns the resolved ORDER BY items.
func (o *Ordering) Keys() []Key { return o.keys }

// Columns returns the ORDER BY columns.
func (o *Ordering) Columns() []*catalog.ColumnDefinition {
	cols := make([]*catalog.ColumnDefinition, len(o.keys))
	for i, k := range o.keys {
		cols[i] = k.Column
	}
	return cols
}

// Comparator builds the post-query sort over rows assembled by sel. sel
// must carry every ordering column, see selection.WithOrderingColumns. It
// returns nil when no post-query sort is needed.
func (o *Ordering) Comparator(sel *selection.Selection) Comparator {
	if !o.postSort {
		return nil
	}
	type sortKey struct {
		idx  int
		typ  types.DataType
		desc bool
	}
	keys := make([]sortKey, 0, len(o.keys))
	for _, k := range o.keys {
		keys = append(keys, sortKey{idx: sel.IndexOf(k.Column), typ: k.Column.Type, desc: k.Desc})
	}
	return func(a, b []types.Value) int {
		for _, k := range keys {
			c := k.typ.Compare(a[k.idx], b[k.idx])
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}
