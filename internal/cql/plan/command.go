// Package plan builds the read command handed to storage for one
// execution of a prepared statement.
package plan

import (
	"fmt"
	"math"
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/restrictions"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/dht"
)

// NoLimit is an absent row cap.
const NoLimit = math.MaxInt32

// PartitionSelector picks the partitions a read touches: *SingleKey,
// *KeySet or *TokenRange.
type PartitionSelector interface {
	String() string
	partitions()
}

// SingleKey reads one partition.
type SingleKey struct {
	Key []types.Value
}

// KeySet reads several partitions, in key order.
type KeySet struct {
	Keys [][]types.Value
}

// TokenRange scans every partition whose token lies in Range.
type TokenRange struct {
	Range dht.Range
}

func (*SingleKey) partitions()  {}
func (*KeySet) partitions()     {}
func (*TokenRange) partitions() {}

func (s *SingleKey) String() string { return "key " + tuple(s.Key) }

func (s *KeySet) String() string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		parts[i] = tuple(k)
	}
	return "keys " + strings.Join(parts, ", ")
}

func (s *TokenRange) String() string {
	if s.Range.IsFull() {
		return "all"
	}
	return "token range " + s.Range.String()
}

// ClusteringBound is one end of a clustering slice. A nil Prefix leaves
// that end open. A bound on a shorter prefix covers every row sharing it.
type ClusteringBound struct {
	Prefix    []types.Value
	Inclusive bool
}

// ClusteringRange is a slice of a partition, bounds in storage order.
type ClusteringRange struct {
	Start ClusteringBound
	End   ClusteringBound
}

func (r ClusteringRange) String() string {
	lo, hi := "(", ")"
	if r.Start.Inclusive {
		lo = "["
	}
	if r.End.Inclusive {
		hi = "]"
	}
	start, end := "-inf", "+inf"
	if r.Start.Prefix != nil {
		start = tuple(r.Start.Prefix)
	}
	if r.End.Prefix != nil {
		end = tuple(r.End.Prefix)
	}
	return lo + start + ", " + end + hi
}

// Contains reports whether a clustering key lies in the range.
func (r ClusteringRange) Contains(schema *catalog.Schema, clustering []types.Value) bool {
	if r.Start.Prefix != nil {
		c := comparePrefix(schema, clustering, r.Start.Prefix)
		if c < 0 || (c == 0 && !r.Start.Inclusive) {
			return false
		}
	}
	if r.End.Prefix != nil {
		c := comparePrefix(schema, clustering, r.End.Prefix)
		if c > 0 || (c == 0 && !r.End.Inclusive) {
			return false
		}
	}
	return true
}

// comparePrefix compares a clustering key with a bound prefix on the
// prefix's components only.
func comparePrefix(schema *catalog.Schema, clustering, prefix []types.Value) int {
	n := len(prefix)
	if len(clustering) < n {
		n = len(clustering)
	}
	return schema.CompareClustering(clustering[:n], prefix[:n])
}

// WholePartition is the slice covering every row of a partition.
var WholePartition = ClusteringRange{Start: ClusteringBound{Inclusive: true}, End: ClusteringBound{Inclusive: true}}

// ReadCommand is a fully bound read. It is built per execution and never
// shared.
type ReadCommand struct {
	Schema     *catalog.Schema
	Partitions PartitionSelector
	// Slices are disjoint and listed in storage order, even when Reversed.
	Slices   []ClusteringRange
	Reversed bool
	// PartitionRowLimit caps rows returned per partition, TotalRowLimit
	// caps rows across partitions. Both count clustering rows.
	PartitionRowLimit int
	TotalRowLimit     int
	PageSize          int
	Columns           []*catalog.ColumnDefinition
	IndexExpressions  []restrictions.Expression
	// Excluded lists clustering keys to drop after the read. Exclusive
	// bounds are issued inclusive when storage cannot honour them, and
	// the bound row itself is excluded here.
	Excluded [][]types.Value
	Filter   restrictions.RowFilter
	Distinct bool
	// Empty marks a read that cannot return rows. It is answered without
	// calling storage.
	Empty bool
}

// IsExcluded reports whether a fetched clustering key must be dropped.
func (c *ReadCommand) IsExcluded(clustering []types.Value) bool {
	for _, key := range c.Excluded {
		if len(key) == len(clustering) && c.Schema.CompareClustering(key, clustering) == 0 {
			return true
		}
	}
	return false
}

// String renders the command as EXPLAIN text.
func (c *ReadCommand) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Read %s\n", c.Schema.QualifiedName())
	if c.Empty {
		b.WriteString("  empty: no row can match\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  partitions: %s\n", c.Partitions)

	slices := make([]string, len(c.Slices))
	for i, s := range c.Slices {
		slices[i] = s.String()
	}
	fmt.Fprintf(&b, "  slices: %s\n", strings.Join(slices, ", "))
	if len(c.Excluded) > 0 {
		excluded := make([]string, len(c.Excluded))
		for i, k := range c.Excluded {
			excluded[i] = tuple(k)
		}
		fmt.Fprintf(&b, "  exclude: %s\n", strings.Join(excluded, ", "))
	}
	if c.Reversed {
		b.WriteString("  order: reversed\n")
	} else {
		b.WriteString("  order: clustering\n")
	}

	cols := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = col.Name
	}
	fmt.Fprintf(&b, "  columns: %s\n", strings.Join(cols, ", "))
	fmt.Fprintf(&b, "  partition limit: %s\n", limitString(c.PartitionRowLimit))
	fmt.Fprintf(&b, "  limit: %s\n", limitString(c.TotalRowLimit))
	fmt.Fprintf(&b, "  page size: %d\n", c.PageSize)

	if len(c.IndexExpressions) > 0 {
		exprs := make([]string, len(c.IndexExpressions))
		for i, e := range c.IndexExpressions {
			exprs[i] = e.String()
		}
		fmt.Fprintf(&b, "  index: %s\n", strings.Join(exprs, " AND "))
	}
	if len(c.Filter) > 0 {
		exprs := make([]string, len(c.Filter))
		for i, e := range c.Filter {
			exprs[i] = e.String()
		}
		fmt.Fprintf(&b, "  filter: %s\n", strings.Join(exprs, " AND "))
	}
	if c.Distinct {
		b.WriteString("  distinct\n")
	}
	return b.String()
}

func limitString(n int) string {
	if n == NoLimit {
		return "none"
	}
	return fmt.Sprint(n)
}

func tuple(vals []types.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
