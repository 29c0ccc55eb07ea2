package restrictions

import (
	"sort"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/dht"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// BoundRestrictions are the restrictions of one execution with every
// marker resolved.
type BoundRestrictions struct {
	// PartitionKeys holds the pinned keys, sorted and deduplicated. It is
	// nil for a key range.
	PartitionKeys [][]types.Value
	TokenRange    dht.Range
	// ClusteringPrefixes holds the EQ/IN clustering combinations in
	// storage order. It holds a single empty prefix when no clustering
	// column is pinned.
	ClusteringPrefixes [][]types.Value
	// SliceColumn is the clustering column restricted by a trailing
	// slice; Lower and Upper bound it in value order.
	SliceColumn      *catalog.ColumnDefinition
	Lower            *Bound
	Upper            *Bound
	IndexExpressions []Expression
	Filter           RowFilter
	// Empty is set when the bound values cannot match any row, e.g.
	// conflicting equalities, an empty IN or an inverted range.
	Empty bool
}

// Bind resolves every restriction against the bound values.
func (r *StatementRestrictions) Bind(values []types.Value) (*BoundRestrictions, error) {
	b := &BoundRestrictions{TokenRange: dht.FullRange()}

	if r.partitionKey != nil {
		keys, err := r.bindPartitionKeys(values)
		if err != nil {
			return nil, err
		}
		b.PartitionKeys = keys
		b.Empty = len(keys) == 0
	}

	if r.token != nil {
		rng, err := r.bindToken(values)
		if err != nil {
			return nil, err
		}
		b.TokenRange = rng
		b.Empty = b.Empty || rng.IsEmpty()
	}

	prefixes, err := r.bindClusteringPrefixes(values)
	if err != nil {
		return nil, err
	}
	b.ClusteringPrefixes = prefixes
	b.Empty = b.Empty || len(prefixes) == 0

	if n := len(r.clustering); n > 0 {
		if s, ok := r.clustering[n-1].(*Slice); ok {
			lower, upper, err := bindSlice(s, values)
			if err != nil {
				return nil, err
			}
			b.SliceColumn, b.Lower, b.Upper = s.Column, lower, upper
			b.Empty = b.Empty || emptyRange(s.Column.Type, lower, upper)
		}
	}

	for _, restr := range r.indexed {
		exprs, empty, err := toExpressions(restr, values)
		if err != nil {
			return nil, err
		}
		b.IndexExpressions = append(b.IndexExpressions, exprs...)
		b.Empty = b.Empty || empty
	}
	for _, restr := range r.filtered {
		exprs, empty, err := toExpressions(restr, values)
		if err != nil {
			return nil, err
		}
		b.Filter = append(b.Filter, exprs...)
		b.Empty = b.Empty || empty
	}
	return b, nil
}

// bindPartitionKeys expands the EQ/IN partition key restrictions into the
// cross product of their values, in key order.
func (r *StatementRestrictions) bindPartitionKeys(values []types.Value) ([][]types.Value, error) {
	perColumn := make([][]types.Value, len(r.partitionKey))
	for i, restr := range r.partitionKey {
		col := restr.Columns()[0]
		vals, err := bindKeyColumn(restr, values, func(v types.Value) error {
			if v.Null {
				return errors.NullPartitionKeyError(col.Name)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, nil
		}
		perColumn[i] = uniqueSorted(vals, col.Type.Compare)
	}
	return crossProduct(perColumn), nil
}

// bindClusteringPrefixes expands the EQ/IN clustering prefix. IN values
// are ordered in storage order so prefixes come out the way rows are laid
// out.
func (r *StatementRestrictions) bindClusteringPrefixes(values []types.Value) ([][]types.Value, error) {
	var perColumn [][]types.Value
	for _, restr := range r.clustering {
		if restr.Kind() == KindSlice {
			break
		}
		col := restr.Columns()[0]
		vals, err := bindKeyColumn(restr, values, func(v types.Value) error {
			if v.Null {
				return errors.InvalidBoundValueError(col.Name, "invalid null value in condition for clustering column")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, nil
		}
		perColumn = append(perColumn, uniqueSorted(vals, col.Compare))
	}
	return crossProduct(perColumn), nil
}

// bindKeyColumn binds an EQ or IN restriction on a key column to its
// candidate values. Conflicting equalities yield no candidates.
func bindKeyColumn(restr Restriction, values []types.Value, check func(types.Value) error) ([]types.Value, error) {
	switch rs := restr.(type) {
	case *EQ:
		v, ok, err := bindEQ(rs, values, check)
		if err != nil || !ok {
			return nil, err
		}
		return []types.Value{v}, nil
	case *IN:
		vals, err := rs.Values.BindAll(values)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if err := check(v); err != nil {
				return nil, err
			}
		}
		return vals, nil
	}
	return nil, errors.InvalidRequestf("unsupported restriction %s on key column", restr)
}

// bindEQ binds every term of an equality. ok is false when the terms bind
// to different values.
func bindEQ(rs *EQ, values []types.Value, check func(types.Value) error) (types.Value, bool, error) {
	var first types.Value
	for i, t := range rs.Terms {
		v, err := t.Bind(values)
		if err != nil {
			return types.Value{}, false, err
		}
		if err := check(v); err != nil {
			return types.Value{}, false, err
		}
		if i == 0 {
			first = v
			continue
		}
		if rs.Column.Type.Compare(first, v) != 0 {
			return types.Value{}, false, nil
		}
	}
	return first, true, nil
}

func (r *StatementRestrictions) bindToken(values []types.Value) (dht.Range, error) {
	bindToken := func(v types.Value, err error) (dht.Token, error) {
		if err != nil {
			return 0, err
		}
		if v.Null {
			return 0, errors.InvalidBoundValueError("partition key token", "invalid null value")
		}
		n, err := v.AsInt64()
		if err != nil {
			return 0, errors.InvalidBoundValueError("partition key token", err.Error())
		}
		return dht.Token(n), nil
	}
	if r.token.EQ != nil {
		tok, err := bindToken(r.token.EQ.Bind(values))
		if err != nil {
			return dht.Range{}, err
		}
		return dht.Range{Start: &dht.Bound{Token: tok, Inclusive: true}, End: &dht.Bound{Token: tok, Inclusive: true}}, nil
	}
	rng := dht.FullRange()
	if s := r.token.Start; s != nil {
		tok, err := bindToken(s.Value.Bind(values))
		if err != nil {
			return dht.Range{}, err
		}
		rng.Start = &dht.Bound{Token: tok, Inclusive: s.Inclusive}
	}
	if e := r.token.End; e != nil {
		tok, err := bindToken(e.Value.Bind(values))
		if err != nil {
			return dht.Range{}, err
		}
		rng.End = &dht.Bound{Token: tok, Inclusive: e.Inclusive}
	}
	return rng, nil
}

func bindSlice(s *Slice, values []types.Value) (*Bound, *Bound, error) {
	bind := func(sb *SliceBound) (*Bound, error) {
		if sb == nil {
			return nil, nil
		}
		v, err := sb.Value.Bind(values)
		if err != nil {
			return nil, err
		}
		if v.Null {
			return nil, errors.InvalidBoundValueError(s.Column.Name, "invalid null value in condition")
		}
		return &Bound{Value: v, Inclusive: sb.Inclusive}, nil
	}
	lower, err := bind(s.Start)
	if err != nil {
		return nil, nil, err
	}
	upper, err := bind(s.End)
	if err != nil {
		return nil, nil, err
	}
	return lower, upper, nil
}

// toExpressions binds a restriction into row predicates. empty is set
// when no value can satisfy it.
func toExpressions(restr Restriction, values []types.Value) ([]Expression, bool, error) {
	col := restr.Columns()[0]
	notNull := func(v types.Value) error {
		if v.Null {
			return errors.InvalidBoundValueError(col.Name, "invalid null value in condition")
		}
		return nil
	}
	bindAll := func(v types.Value, err error) (types.Value, error) {
		if err != nil {
			return types.Value{}, err
		}
		return v, notNull(v)
	}

	switch rs := restr.(type) {
	case *EQ:
		v, ok, err := bindEQ(rs, values, notNull)
		if err != nil || !ok {
			return nil, !ok, err
		}
		return []Expression{{Column: col, Op: OpEQ, Value: v}}, false, nil

	case *IN:
		vals, err := rs.Values.BindAll(values)
		if err != nil {
			return nil, false, err
		}
		for _, v := range vals {
			if err := notNull(v); err != nil {
				return nil, false, err
			}
		}
		vals = uniqueSorted(vals, col.Type.Compare)
		if len(vals) == 0 {
			return nil, true, nil
		}
		return []Expression{{Column: col, Op: OpIN, Values: vals}}, false, nil

	case *Slice:
		lower, upper, err := bindSlice(rs, values)
		if err != nil {
			return nil, false, err
		}
		return []Expression{{Column: col, Op: OpSlice, Lower: lower, Upper: upper}}, emptyRange(col.Type, lower, upper), nil

	case *Contains:
		var exprs []Expression
		for _, t := range rs.Values {
			v, err := bindAll(t.Bind(values))
			if err != nil {
				return nil, false, err
			}
			exprs = append(exprs, Expression{Column: col, Op: OpContains, Value: v})
		}
		for _, t := range rs.Keys {
			v, err := bindAll(t.Bind(values))
			if err != nil {
				return nil, false, err
			}
			exprs = append(exprs, Expression{Column: col, Op: OpContainsKey, Value: v})
		}
		for _, e := range rs.Entries {
			k, err := bindAll(e.Key.Bind(values))
			if err != nil {
				return nil, false, err
			}
			v, err := bindAll(e.Value.Bind(values))
			if err != nil {
				return nil, false, err
			}
			exprs = append(exprs, Expression{Column: col, Op: OpMapEntry, Key: k, Value: v})
		}
		return exprs, false, nil
	}
	return nil, false, errors.InvalidRequestf("unsupported restriction %s", restr)
}

// uniqueSorted sorts vals with cmp and drops duplicates.
func uniqueSorted(vals []types.Value, cmp func(a, b types.Value) int) []types.Value {
	sorted := make([]types.Value, len(vals))
	copy(sorted, vals)
	sort.SliceStable(sorted, func(i, j int) bool { return cmp(sorted[i], sorted[j]) < 0 })
	out := sorted[:0]
	for i, v := range sorted {
		if i > 0 && cmp(out[len(out)-1], v) == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// crossProduct combines per-column candidates into full tuples, keeping
// the first column most significant.
func crossProduct(perColumn [][]types.Value) [][]types.Value {
	out := [][]types.Value{{}}
	for _, candidates := range perColumn {
		next := make([][]types.Value, 0, len(out)*len(candidates))
		for _, prefix := range out {
			for _, v := range candidates {
				tuple := make([]types.Value, len(prefix), len(prefix)+1)
				copy(tuple, prefix)
				next = append(next, append(tuple, v))
			}
		}
		out = next
	}
	return out
}
