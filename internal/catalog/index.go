package catalog

import (
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// IndexTarget is what part of a column a secondary index covers.
type IndexTarget int

const (
	// IndexTargetValues indexes a scalar column, or the values of a
	// collection.
	IndexTargetValues IndexTarget = iota
	// IndexTargetKeys indexes map keys.
	IndexTargetKeys
	// IndexTargetEntries indexes map key/value pairs.
	IndexTargetEntries
)

func (t IndexTarget) String() string {
	switch t {
	case IndexTargetValues:
		return "values"
	case IndexTargetKeys:
		return "keys"
	case IndexTargetEntries:
		return "entries"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// ParseIndexTarget parses "values", "keys" or "entries". An empty string
// means values.
func ParseIndexTarget(s string) (IndexTarget, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "values":
		return IndexTargetValues, nil
	case "keys":
		return IndexTargetKeys, nil
	case "entries":
		return IndexTargetEntries, nil
	default:
		return 0, fmt.Errorf("unknown index target %q", s)
	}
}

func (t IndexTarget) serves(op IndexOperator) bool {
	switch t {
	case IndexTargetValues:
		return op == IndexEQ || op == IndexContains
	case IndexTargetKeys:
		return op == IndexContainsKey
	case IndexTargetEntries:
		return op == IndexMapEntry
	}
	return false
}

// IndexDefinition describes a secondary index on one column.
type IndexDefinition struct {
	Name     string
	Keyspace string
	Table    string
	Column   string
	Target   IndexTarget
}

func (d *IndexDefinition) normalize() {
	d.Keyspace = NormalizeIdentifier(d.Keyspace)
	d.Table = NormalizeIdentifier(d.Table)
	d.Column = NormalizeIdentifier(d.Column)
	if d.Name == "" {
		d.Name = fmt.Sprintf("%s_%s_idx", d.Table, d.Column)
	}
	d.Name = NormalizeIdentifier(d.Name)
}

func (d *IndexDefinition) validate(schema *Schema) error {
	col := schema.Column(d.Column)
	if col == nil {
		return errors.UnrecognizedEntityError(d.Column, "index")
	}
	if col.Kind == PartitionKey && len(schema.PartitionKey) == 1 {
		return errors.InvalidRequestf("cannot create secondary index on the only partition key column %s", col.Name)
	}
	coll, isColl := types.AsCollection(col.Type)
	switch d.Target {
	case IndexTargetKeys, IndexTargetEntries:
		if !isColl || coll.Kind() != types.KindMap {
			return errors.InvalidRequestf("cannot create index on %s of column %s with non-map type", d.Target, col.Name)
		}
	}
	return nil
}
