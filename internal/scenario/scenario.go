// Package scenario loads YAML files describing a keyspace, its rows and
// queries with expected results, and runs them through the query
// processor.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/QuantaCQL/internal/catalog"
)

// Scenario is one scenario file.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Schema declares the keyspace and its tables.
	Schema catalog.KeyspaceDef `yaml:"schema"`

	// Data lists the rows loaded before any query runs.
	Data []TableData `yaml:"data,omitempty"`

	Queries []Query `yaml:"queries"`
}

// TableData holds rows of one table. Each row maps column names to plain
// values; a missing column is not written, null writes a null.
type TableData struct {
	Table string                   `yaml:"table"`
	Rows  []map[string]interface{} `yaml:"rows"`
}

// Query is a statement to run.
type Query struct {
	Name string `yaml:"name"`
	CQL  string `yaml:"cql"`

	// Values are bound to the markers of CQL in order.
	Values []interface{} `yaml:"values,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a query. With Error set the query must
// fail with a message containing it; otherwise Rows must match exactly,
// in order.
type Expect struct {
	Columns []string        `yaml:"columns,omitempty"`
	Rows    [][]interface{} `yaml:"rows,omitempty"`
	Error   string          `yaml:"error,omitempty"`
	// Plan lists lines that must appear in the EXPLAIN text.
	Plan []string `yaml:"plan,omitempty"`
}

// LoadFile reads and validates a scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario, rejecting unknown fields.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks required fields.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Schema.Keyspace == "" {
		return fmt.Errorf("scenario %s: schema keyspace is required", s.Name)
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("scenario %s: at least one query is required", s.Name)
	}
	seen := make(map[string]bool)
	for i, q := range s.Queries {
		if q.CQL == "" {
			return fmt.Errorf("scenario %s: query %d has no cql", s.Name, i)
		}
		if q.Name == "" {
			continue
		}
		if seen[q.Name] {
			return fmt.Errorf("scenario %s: duplicate query name %s", s.Name, q.Name)
		}
		seen[q.Name] = true
	}
	return nil
}

// Find returns the query called name.
func (s *Scenario) Find(name string) (Query, bool) {
	for _, q := range s.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

// Label names a query for reports.
func (q Query) Label(i int) string {
	if q.Name != "" {
		return q.Name
	}
	return fmt.Sprintf("query %d", i+1)
}
