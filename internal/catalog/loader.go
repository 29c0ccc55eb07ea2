package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// KeyspaceDef is the YAML form of a keyspace and its tables.
type KeyspaceDef struct {
	// Keyspace is the keyspace name. It is created if missing.
	Keyspace string `yaml:"keyspace"`

	Tables []TableDef `yaml:"tables"`
}

// TableDef is the YAML form of one table.
type TableDef struct {
	Name string `yaml:"name"`

	// PartitionKey lists the partition key components in order.
	PartitionKey []ColumnDef `yaml:"partition_key"`

	// Clustering lists the clustering columns in order. Each may carry
	// order: desc.
	Clustering []ColumnDef `yaml:"clustering,omitempty"`

	Static  []ColumnDef `yaml:"static,omitempty"`
	Columns []ColumnDef `yaml:"columns,omitempty"`

	// CompactValue declares the value column of a compact table instead
	// of Columns.
	CompactValue *ColumnDef `yaml:"compact_value,omitempty"`

	Indexes []IndexDef `yaml:"indexes,omitempty"`
}

// ColumnDef is the YAML form of a column.
type ColumnDef struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Order string `yaml:"order,omitempty"`
}

// IndexDef is the YAML form of a secondary index.
type IndexDef struct {
	Name   string `yaml:"name,omitempty"`
	Column string `yaml:"column"`
	Target string `yaml:"target,omitempty"`
}

// LoadFile reads a keyspace definition from a YAML file.
func LoadFile(path string) (*KeyspaceDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a keyspace definition, rejecting unknown fields.
func Parse(data []byte) (*KeyspaceDef, error) {
	var def KeyspaceDef
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if def.Keyspace == "" {
		return nil, fmt.Errorf("keyspace is required")
	}
	return &def, nil
}

// Schema builds the schema of one table definition.
func (t TableDef) Schema(keyspace string) (*Schema, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	b := NewSchemaBuilder(keyspace, t.Name)
	for _, c := range t.PartitionKey {
		dt, err := types.ParseType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		b.PartitionKey(c.Name, dt)
	}
	for _, c := range t.Clustering {
		dt, err := types.ParseType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		order, err := parseOrder(c.Order)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		b.Clustering(c.Name, dt, order)
	}
	for _, c := range t.Static {
		dt, err := types.ParseType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		b.Static(c.Name, dt)
	}
	for _, c := range t.Columns {
		dt, err := types.ParseType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		b.Regular(c.Name, dt)
	}
	if t.CompactValue != nil {
		dt, err := types.ParseType(t.CompactValue.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s column %s: %w", t.Name, t.CompactValue.Name, err)
		}
		b.CompactValue(t.CompactValue.Name, dt)
	}
	return b.Build()
}

func parseOrder(s string) (SortOrder, error) {
	switch s {
	case "", "asc", "ASC":
		return Ascending, nil
	case "desc", "DESC":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown clustering order %q", s)
}

// Apply creates the keyspace (if needed), its tables and indexes in c.
func (d *KeyspaceDef) Apply(c *MemoryCatalog) error {
	ks := NormalizeIdentifier(d.Keyspace)
	if err := c.CreateKeyspace(ks); err != nil && !errors.IsError(err, errors.AlreadyExists) {
		return err
	}
	for _, t := range d.Tables {
		schema, err := t.Schema(ks)
		if err != nil {
			return err
		}
		if err := c.PutTable(schema); err != nil {
			return err
		}
		for _, idx := range t.Indexes {
			target, err := ParseIndexTarget(idx.Target)
			if err != nil {
				return fmt.Errorf("table %s index on %s: %w", t.Name, idx.Column, err)
			}
			err = c.CreateIndex(IndexDefinition{
				Name:     idx.Name,
				Keyspace: ks,
				Table:    schema.Name,
				Column:   idx.Column,
				Target:   target,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
