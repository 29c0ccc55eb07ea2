package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/QuantaCQL/internal/errors"
)

// ChangeKind describes a schema change event.
type ChangeKind int

const (
	TableCreated ChangeKind = iota
	TableUpdated
	TableDropped
)

func (k ChangeKind) String() string {
	switch k {
	case TableCreated:
		return "created"
	case TableUpdated:
		return "updated"
	case TableDropped:
		return "dropped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// SchemaChange is delivered to listeners after the catalog changed.
type SchemaChange struct {
	Kind     ChangeKind
	Keyspace string
	Table    string
}

// Listener receives schema change notifications. Listeners are called
// synchronously after the catalog lock is released.
type Listener func(SchemaChange)

// MemoryCatalog is an in-memory implementation of the Catalog interface.
type MemoryCatalog struct {
	mu        sync.RWMutex
	keyspaces map[string]map[string]*Schema // keyspace -> table -> schema
	indexes   map[string]*IndexDefinition   // "keyspace.table.index" -> index
	listeners []Listener
}

// NewMemoryCatalog creates a new in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		keyspaces: make(map[string]map[string]*Schema),
		indexes:   make(map[string]*IndexDefinition),
	}
}

// Subscribe registers a listener for schema changes.
func (c *MemoryCatalog) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *MemoryCatalog) notify(change SchemaChange) {
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}

// CreateKeyspace creates a new keyspace.
func (c *MemoryCatalog) CreateKeyspace(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name = NormalizeIdentifier(name)
	if _, exists := c.keyspaces[name]; exists {
		return errors.Newf(errors.AlreadyExists, "keyspace %s already exists", name).WithTable(name, "")
	}
	c.keyspaces[name] = make(map[string]*Schema)
	return nil
}

// PutTable adds a table, or replaces it when a table with the same name
// exists. Replacement is reported to listeners as TableUpdated.
func (c *MemoryCatalog) PutTable(schema *Schema) error {
	c.mu.Lock()
	tables, exists := c.keyspaces[schema.Keyspace]
	if !exists {
		c.mu.Unlock()
		return errors.UnknownKeyspaceError(schema.Keyspace)
	}
	kind := TableCreated
	if _, replaced := tables[schema.Name]; replaced {
		kind = TableUpdated
	}
	tables[schema.Name] = schema
	c.mu.Unlock()

	c.notify(SchemaChange{Kind: kind, Keyspace: schema.Keyspace, Table: schema.Name})
	return nil
}

// GetTable retrieves a table schema.
func (c *MemoryCatalog) GetTable(keyspace, table string) (*Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keyspace = NormalizeIdentifier(keyspace)
	table = NormalizeIdentifier(table)
	tables, exists := c.keyspaces[keyspace]
	if !exists {
		return nil, errors.UnknownKeyspaceError(keyspace)
	}
	schema, exists := tables[table]
	if !exists {
		return nil, errors.UnknownTableError(keyspace, table)
	}
	return schema, nil
}

// DropTable removes a table and its indexes.
func (c *MemoryCatalog) DropTable(keyspace, table string) error {
	c.mu.Lock()
	keyspace = NormalizeIdentifier(keyspace)
	table = NormalizeIdentifier(table)
	tables, exists := c.keyspaces[keyspace]
	if !exists {
		c.mu.Unlock()
		return errors.UnknownKeyspaceError(keyspace)
	}
	if _, exists := tables[table]; !exists {
		c.mu.Unlock()
		return errors.UnknownTableError(keyspace, table)
	}
	delete(tables, table)
	for key, idx := range c.indexes {
		if idx.Keyspace == keyspace && idx.Table == table {
			delete(c.indexes, key)
		}
	}
	c.mu.Unlock()

	c.notify(SchemaChange{Kind: TableDropped, Keyspace: keyspace, Table: table})
	return nil
}

func indexKey(keyspace, table, name string) string {
	return fmt.Sprintf("%s.%s.%s", keyspace, table, name)
}

// CreateIndex registers a secondary index on a column. Existing prepared
// statements on the table are invalidated through TableUpdated.
func (c *MemoryCatalog) CreateIndex(def IndexDefinition) error {
	def.normalize()

	c.mu.Lock()
	tables, exists := c.keyspaces[def.Keyspace]
	if !exists {
		c.mu.Unlock()
		return errors.UnknownKeyspaceError(def.Keyspace)
	}
	schema, exists := tables[def.Table]
	if !exists {
		c.mu.Unlock()
		return errors.UnknownTableError(def.Keyspace, def.Table)
	}
	if err := def.validate(schema); err != nil {
		c.mu.Unlock()
		return err
	}
	key := indexKey(def.Keyspace, def.Table, def.Name)
	if _, exists := c.indexes[key]; exists {
		c.mu.Unlock()
		return errors.Newf(errors.AlreadyExists, "index %s already exists", def.Name).WithTable(def.Keyspace, def.Table)
	}
	c.indexes[key] = &def
	c.mu.Unlock()

	c.notify(SchemaChange{Kind: TableUpdated, Keyspace: def.Keyspace, Table: def.Table})
	return nil
}

// DropIndex removes a secondary index.
func (c *MemoryCatalog) DropIndex(keyspace, table, name string) error {
	keyspace, table, name = NormalizeIdentifier(keyspace), NormalizeIdentifier(table), NormalizeIdentifier(name)

	c.mu.Lock()
	key := indexKey(keyspace, table, name)
	if _, exists := c.indexes[key]; !exists {
		c.mu.Unlock()
		return errors.InvalidRequestf("index %s could not be found in keyspace %s", name, keyspace)
	}
	delete(c.indexes, key)
	c.mu.Unlock()

	c.notify(SchemaChange{Kind: TableUpdated, Keyspace: keyspace, Table: table})
	return nil
}

// Indexes returns the indexes on a table.
func (c *MemoryCatalog) Indexes(keyspace, table string) []IndexDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []IndexDefinition
	for _, idx := range c.indexes {
		if idx.Keyspace == keyspace && idx.Table == table {
			result = append(result, *idx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Supports implements IndexChecker.
func (c *MemoryCatalog) Supports(schema *Schema, column string, op IndexOperator) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, idx := range c.indexes {
		if idx.Keyspace != schema.Keyspace || idx.Table != schema.Name || idx.Column != column {
			continue
		}
		if idx.Target.serves(op) {
			return true
		}
	}
	return false
}
