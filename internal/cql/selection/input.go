package selection

import (
	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

// Input is the raw material of one result row: the partition key
// components, the clustering components and cells of a clustering row,
// and the partition's static cells. Clustering is nil for a row built
// from the static row alone.
type Input struct {
	PartitionKey []types.Value
	Clustering   []types.Value
	Cells        map[string]types.Value
	Static       map[string]types.Value
}

// Value returns the value of col for this row. Kinds the row does not
// carry yield null.
func (in Input) Value(col *catalog.ColumnDefinition) types.Value {
	switch col.Kind {
	case catalog.PartitionKey:
		if col.Position < len(in.PartitionKey) {
			return in.PartitionKey[col.Position]
		}
	case catalog.Clustering:
		if col.Position < len(in.Clustering) {
			return in.Clustering[col.Position]
		}
	case catalog.Static:
		if v, ok := in.Static[col.Name]; ok {
			return v
		}
	case catalog.Regular, catalog.CompactValue:
		if v, ok := in.Cells[col.Name]; ok {
			return v
		}
	}
	return types.NewNullValue()
}

// IsStaticRow reports whether the input carries no clustering row.
func (in Input) IsStaticRow() bool {
	return in.Clustering == nil
}
