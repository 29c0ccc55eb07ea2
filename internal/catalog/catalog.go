package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// Catalog resolves table schemas and answers secondary-index questions.
type Catalog interface {
	// GetTable returns the schema of keyspace.table, or an unknown table
	// (or keyspace) error.
	GetTable(keyspace, table string) (*Schema, error)

	IndexChecker
}

// IndexChecker reports whether a secondary index can serve a relation.
type IndexChecker interface {
	Supports(schema *Schema, column string, op IndexOperator) bool
}

// IndexOperator is a relation operator an index may be able to answer.
type IndexOperator int

const (
	IndexEQ IndexOperator = iota
	IndexContains
	IndexContainsKey
	IndexMapEntry
)

func (o IndexOperator) String() string {
	switch o {
	case IndexEQ:
		return "="
	case IndexContains:
		return "CONTAINS"
	case IndexContainsKey:
		return "CONTAINS KEY"
	case IndexMapEntry:
		return "[]="
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// NoIndexes is an IndexChecker for tables without secondary indexes.
var NoIndexes IndexChecker = noIndexes{}

type noIndexes struct{}

func (noIndexes) Supports(*Schema, string, IndexOperator) bool { return false }

// ColumnKind tags a column with its role in the table.
type ColumnKind int

const (
	PartitionKey ColumnKind = iota
	Clustering
	Static
	Regular
	CompactValue
)

func (k ColumnKind) String() string {
	switch k {
	case PartitionKey:
		return "partition_key"
	case Clustering:
		return "clustering"
	case Static:
		return "static"
	case Regular:
		return "regular"
	case CompactValue:
		return "compact_value"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// IsPrimaryKey reports whether the kind is part of the primary key.
func (k ColumnKind) IsPrimaryKey() bool {
	return k == PartitionKey || k == Clustering
}

// SortOrder is the clustering order of a clustering column.
type SortOrder int

const (
	// Ascending sort order.
	Ascending SortOrder = iota
	// Descending sort order.
	Descending
)

func (s SortOrder) String() string {
	if s == Descending {
		return "DESC"
	}
	return "ASC"
}

// ColumnDefinition describes one column of a table.
type ColumnDefinition struct {
	Name string
	Type types.DataType
	Kind ColumnKind
	// Position is the component index for key columns and the declaration
	// index among columns of the same kind otherwise.
	Position int
	// Order only applies to clustering columns.
	Order SortOrder
}

// IsReversed reports whether the column is stored in descending order.
func (c *ColumnDefinition) IsReversed() bool {
	return c.Kind == Clustering && c.Order == Descending
}

// Compare compares two values in the column's storage order.
func (c *ColumnDefinition) Compare(a, b types.Value) int {
	cmp := c.Type.Compare(a, b)
	if c.IsReversed() {
		return -cmp
	}
	return cmp
}

func (c *ColumnDefinition) String() string {
	return c.Name
}

// Schema is a resolved, immutable table definition.
type Schema struct {
	ID           uuid.UUID
	Keyspace     string
	Name         string
	PartitionKey []*ColumnDefinition
	Clustering   []*ColumnDefinition
	Static       []*ColumnDefinition
	Regular      []*ColumnDefinition

	byName map[string]*ColumnDefinition
	all    []*ColumnDefinition
}

// QualifiedName returns keyspace.table.
func (s *Schema) QualifiedName() string {
	return s.Keyspace + "." + s.Name
}

// Column looks a column up by its internal (already normalized) name.
func (s *Schema) Column(name string) *ColumnDefinition {
	return s.byName[name]
}

// Columns returns every column in schema order: partition key, clustering,
// static, then regular columns.
func (s *Schema) Columns() []*ColumnDefinition {
	return s.all
}

// HasStatic reports whether the table declares static columns.
func (s *Schema) HasStatic() bool {
	return len(s.Static) > 0
}

// IsCompact reports whether the table has a single compact value column.
func (s *Schema) IsCompact() bool {
	return len(s.Regular) == 1 && s.Regular[0].Kind == CompactValue
}

// CompareClustering compares two clustering prefixes in storage order,
// honoring each column's clustering order. When one prefix is a prefix
// of the other, the shorter sorts first.
func (s *Schema) CompareClustering(a, b []types.Value) int {
	for i := 0; i < len(a) && i < len(b) && i < len(s.Clustering); i++ {
		if c := s.Clustering[i].Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// ComparePartitionKey compares two partition keys component by component.
func (s *Schema) ComparePartitionKey(a, b []types.Value) int {
	for i := 0; i < len(a) && i < len(b) && i < len(s.PartitionKey); i++ {
		if c := s.PartitionKey[i].Type.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// SchemaBuilder assembles a Schema. Column names are normalized to lower
// case unless written in double quotes.
type SchemaBuilder struct {
	schema *Schema
	err    error
}

// NewSchemaBuilder starts a schema for keyspace.table.
func NewSchemaBuilder(keyspace, table string) *SchemaBuilder {
	return &SchemaBuilder{
		schema: &Schema{
			ID:       uuid.New(),
			Keyspace: NormalizeIdentifier(keyspace),
			Name:     NormalizeIdentifier(table),
			byName:   make(map[string]*ColumnDefinition),
		},
	}
}

// WithID fixes the table ID instead of a random one.
func (b *SchemaBuilder) WithID(id uuid.UUID) *SchemaBuilder {
	b.schema.ID = id
	return b
}

func (b *SchemaBuilder) PartitionKey(name string, t types.DataType) *SchemaBuilder {
	b.add(name, t, PartitionKey, Ascending, &b.schema.PartitionKey)
	return b
}

func (b *SchemaBuilder) Clustering(name string, t types.DataType, order SortOrder) *SchemaBuilder {
	b.add(name, t, Clustering, order, &b.schema.Clustering)
	return b
}

func (b *SchemaBuilder) Static(name string, t types.DataType) *SchemaBuilder {
	b.add(name, t, Static, Ascending, &b.schema.Static)
	return b
}

func (b *SchemaBuilder) Regular(name string, t types.DataType) *SchemaBuilder {
	b.add(name, t, Regular, Ascending, &b.schema.Regular)
	return b
}

// CompactValue declares the single value column of a compact table.
func (b *SchemaBuilder) CompactValue(name string, t types.DataType) *SchemaBuilder {
	b.add(name, t, CompactValue, Ascending, &b.schema.Regular)
	return b
}

func (b *SchemaBuilder) add(name string, t types.DataType, kind ColumnKind, order SortOrder, into *[]*ColumnDefinition) {
	if b.err != nil {
		return
	}
	n := NormalizeIdentifier(name)
	if n == "" {
		b.err = errors.InvalidRequestf("empty column name in table %s", b.schema.QualifiedName())
		return
	}
	if t == nil {
		b.err = errors.InvalidRequestf("column %s has no type", n)
		return
	}
	if _, dup := b.schema.byName[n]; dup {
		b.err = errors.InvalidRequestf("multiple definition of identifier %s", n)
		return
	}
	if kind.IsPrimaryKey() {
		if _, isColl := types.AsCollection(t); isColl {
			b.err = errors.InvalidRequestf("invalid collection type for PRIMARY KEY component %s", n)
			return
		}
	}
	col := &ColumnDefinition{Name: n, Type: t, Kind: kind, Position: len(*into), Order: order}
	*into = append(*into, col)
	b.schema.byName[n] = col
}

// Build validates and returns the schema.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := b.schema
	if len(s.PartitionKey) == 0 {
		return nil, errors.InvalidRequestf("no PRIMARY KEY specified for table %s", s.QualifiedName())
	}
	if len(s.Static) > 0 && len(s.Clustering) == 0 {
		return nil, errors.InvalidRequestf("static columns are only useful (and thus allowed) if the table has at least one clustering column")
	}
	compact := 0
	for _, c := range s.Regular {
		if c.Kind == CompactValue {
			compact++
		}
	}
	if compact > 0 && len(s.Regular) != 1 {
		return nil, errors.InvalidRequestf("a compact table has exactly one value column")
	}
	s.all = make([]*ColumnDefinition, 0, len(s.byName))
	s.all = append(s.all, s.PartitionKey...)
	s.all = append(s.all, s.Clustering...)
	s.all = append(s.all, s.Static...)
	s.all = append(s.all, s.Regular...)
	return s, nil
}

// MustBuild is Build for fixtures; it panics on error.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// NormalizeIdentifier lower-cases an identifier unless it is wrapped in
// double quotes, in which case the quotes are stripped and case kept.
func NormalizeIdentifier(name string) string {
	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	return strings.ToLower(name)
}
