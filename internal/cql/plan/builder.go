package plan

import (
	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/restrictions"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

// Params are the inputs of one plan.
type Params struct {
	Schema       *catalog.Schema
	Restrictions *restrictions.BoundRestrictions
	// Selected are the columns the selection reads.
	Selected []*catalog.ColumnDefinition
	Reversed bool
	// Limit is the bound LIMIT; Limited is false when there is none.
	Limit   int
	Limited bool
	// Unbounded lifts row caps at storage because rows are filtered or
	// sorted after they are fetched.
	Unbounded bool
	Distinct  bool
	PageSize  int
	// NativeExclusiveBounds reports whether storage honours exclusive
	// clustering bounds on a full clustering key.
	NativeExclusiveBounds bool
}

// Build derives the read command of one execution.
func Build(p Params) *ReadCommand {
	b := p.Restrictions
	cmd := &ReadCommand{
		Schema:            p.Schema,
		Reversed:          p.Reversed,
		PartitionRowLimit: NoLimit,
		TotalRowLimit:     NoLimit,
		PageSize:          p.PageSize,
		Columns:           requiredColumns(p.Schema, p.Selected, b),
		IndexExpressions:  b.IndexExpressions,
		Filter:            b.Filter,
		Distinct:          p.Distinct,
		Empty:             b.Empty,
	}

	switch {
	case len(b.PartitionKeys) == 1:
		cmd.Partitions = &SingleKey{Key: b.PartitionKeys[0]}
	case len(b.PartitionKeys) > 1:
		cmd.Partitions = &KeySet{Keys: b.PartitionKeys}
	default:
		cmd.Partitions = &TokenRange{Range: b.TokenRange}
	}

	cmd.Slices, cmd.Excluded = slices(p, b)

	switch {
	case p.Distinct:
		cmd.PartitionRowLimit = 1
		if p.Limited {
			cmd.TotalRowLimit = p.Limit
		}
	case p.Limited && !p.Unbounded:
		extra := excludedSlack(cmd)
		cmd.PartitionRowLimit = addCapped(p.Limit, extra)
		switch parts := cmd.Partitions.(type) {
		case *SingleKey:
			cmd.TotalRowLimit = addCapped(p.Limit, extra)
		case *KeySet:
			cmd.TotalRowLimit = addCapped(p.Limit, extra*len(parts.Keys))
		case *TokenRange:
			if extra == 0 {
				cmd.TotalRowLimit = p.Limit
			}
		}
	}
	return cmd
}

// excludedSlack is the number of simulated boundary rows a capped read may
// drop before it has enough rows. The far bound of the last range read is
// never reached while rows are still needed, so k ranges cost at most 2k-1.
func excludedSlack(cmd *ReadCommand) int {
	if len(cmd.Excluded) == 0 {
		return 0
	}
	return min(len(cmd.Excluded), 2*len(cmd.Slices)-1)
}

// slices converts the bound clustering restrictions into storage-order
// ranges, one per clustering prefix.
func slices(p Params, b *restrictions.BoundRestrictions) ([]ClusteringRange, [][]types.Value) {
	if b.SliceColumn == nil {
		if len(b.ClusteringPrefixes) == 1 && len(b.ClusteringPrefixes[0]) == 0 {
			return []ClusteringRange{WholePartition}, nil
		}
		out := make([]ClusteringRange, len(b.ClusteringPrefixes))
		for i, prefix := range b.ClusteringPrefixes {
			out[i] = ClusteringRange{
				Start: ClusteringBound{Prefix: prefix, Inclusive: true},
				End:   ClusteringBound{Prefix: prefix, Inclusive: true},
			}
		}
		return out, nil
	}

	col := b.SliceColumn
	// storage order flips the value-order bounds of a descending column
	first, last := b.Lower, b.Upper
	if col.IsReversed() {
		first, last = last, first
	}
	simulate := !p.NativeExclusiveBounds && col.Position == len(p.Schema.Clustering)-1

	var excluded [][]types.Value
	bound := func(prefix []types.Value, rb *restrictions.Bound) ClusteringBound {
		if rb == nil {
			if len(prefix) == 0 {
				return ClusteringBound{Inclusive: true}
			}
			return ClusteringBound{Prefix: prefix, Inclusive: true}
		}
		key := append(append(make([]types.Value, 0, len(prefix)+1), prefix...), rb.Value)
		if !rb.Inclusive && simulate {
			excluded = append(excluded, key)
			return ClusteringBound{Prefix: key, Inclusive: true}
		}
		return ClusteringBound{Prefix: key, Inclusive: rb.Inclusive}
	}

	out := make([]ClusteringRange, len(b.ClusteringPrefixes))
	for i, prefix := range b.ClusteringPrefixes {
		out[i] = ClusteringRange{Start: bound(prefix, first), End: bound(prefix, last)}
	}
	return out, excluded
}

// requiredColumns is the union of selected and filtered columns, in schema
// order.
func requiredColumns(schema *catalog.Schema, selected []*catalog.ColumnDefinition, b *restrictions.BoundRestrictions) []*catalog.ColumnDefinition {
	need := make(map[string]bool, len(selected))
	for _, col := range selected {
		need[col.Name] = true
	}
	for _, col := range b.Filter.Columns() {
		need[col.Name] = true
	}
	for _, e := range b.IndexExpressions {
		need[e.Column.Name] = true
	}
	var cols []*catalog.ColumnDefinition
	for _, col := range schema.Columns() {
		if need[col.Name] {
			cols = append(cols, col)
		}
	}
	return cols
}

func addCapped(a, b int) int {
	if a > NoLimit-b {
		return NoLimit
	}
	return a + b
}
