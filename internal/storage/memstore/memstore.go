// Package memstore is an in-memory storage collaborator. It keeps
// partitions in token order and clustering rows in clustering order, and
// evaluates index expressions by scanning.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/plan"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/dht"
	"github.com/dshills/QuantaCQL/internal/errors"
	"github.com/dshills/QuantaCQL/internal/storage"
)

// Store is an in-memory Reader. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	closed bool

	nativeReversal bool
	failure        error
	stats          Stats
}

// Stats counts the work done by a store.
type Stats struct {
	Reads int
	Pages int
	Rows  int
}

// Option configures a Store.
type Option func(*Store)

// WithNativeReversal controls whether reversed reads come back in reverse
// clustering order. When disabled, rows are selected in reverse but
// returned in clustering order and the caller reverses them.
func WithNativeReversal(enabled bool) Option {
	return func(s *Store) { s.nativeReversal = enabled }
}

type table struct {
	schema     *catalog.Schema
	partitions []*partition // token order, then key order
}

type partition struct {
	key    []types.Value
	token  dht.Token
	static map[string]types.Value
	rows   []storage.Row // clustering order
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tables:         make(map[string]*table),
		nativeReversal: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert upserts the cells of one row. Partition key columns are required;
// clustering columns are required unless only static cells are written.
func (s *Store) Insert(schema *catalog.Schema, cells map[string]types.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	key := make([]types.Value, len(schema.PartitionKey))
	for i, col := range schema.PartitionKey {
		v, ok := cells[col.Name]
		if !ok || v.Null {
			return errors.NullPartitionKeyError(col.Name)
		}
		key[i] = v
	}
	tok, err := dht.KeyToken(schema, key)
	if err != nil {
		return errors.GetError(err)
	}

	static := make(map[string]types.Value)
	regular := make(map[string]types.Value)
	for name, v := range cells {
		col := schema.Column(name)
		if col == nil {
			return errors.UnrecognizedEntityError(name, "INSERT")
		}
		switch col.Kind {
		case catalog.Static:
			static[name] = v
		case catalog.Regular, catalog.CompactValue:
			regular[name] = v
		}
	}

	// a write of static cells alone needs no clustering key
	staticOnly := len(regular) == 0 && len(static) > 0
	var clustering []types.Value
	if len(schema.Clustering) == 0 {
		clustering = []types.Value{}
	}
	for i, col := range schema.Clustering {
		v, ok := cells[col.Name]
		if !ok && staticOnly && i == 0 {
			break
		}
		if !ok {
			return errors.InvalidRequestf("missing mandatory clustering column %s", col.Name)
		}
		if v.Null {
			return errors.InvalidRequestf("invalid null value for clustering column %s", col.Name)
		}
		clustering = append(clustering, v)
	}

	p := s.table(schema).partition(key, tok)
	if len(static) > 0 {
		if p.static == nil {
			p.static = make(map[string]types.Value)
		}
		for k, v := range static {
			p.static[k] = v
		}
	}
	if clustering != nil {
		p.upsert(schema, clustering, regular)
	}
	return nil
}

func (s *Store) table(schema *catalog.Schema) *table {
	name := schema.QualifiedName()
	t, ok := s.tables[name]
	if !ok || t.schema != schema {
		t = &table{schema: schema, partitions: keepPartitions(t)}
		s.tables[name] = t
	}
	return t
}

func keepPartitions(t *table) []*partition {
	if t == nil {
		return nil
	}
	return t.partitions
}

func (t *table) partition(key []types.Value, tok dht.Token) *partition {
	i := sort.Search(len(t.partitions), func(i int) bool {
		p := t.partitions[i]
		if p.token != tok {
			return p.token > tok
		}
		return t.schema.ComparePartitionKey(p.key, key) >= 0
	})
	if i < len(t.partitions) && t.partitions[i].token == tok && t.schema.ComparePartitionKey(t.partitions[i].key, key) == 0 {
		return t.partitions[i]
	}
	p := &partition{key: key, token: tok}
	t.partitions = append(t.partitions, nil)
	copy(t.partitions[i+1:], t.partitions[i:])
	t.partitions[i] = p
	return p
}

func (p *partition) upsert(schema *catalog.Schema, clustering []types.Value, cells map[string]types.Value) {
	i := sort.Search(len(p.rows), func(i int) bool {
		return schema.CompareClustering(p.rows[i].Clustering, clustering) >= 0
	})
	if i < len(p.rows) && schema.CompareClustering(p.rows[i].Clustering, clustering) == 0 {
		for k, v := range cells {
			p.rows[i].Cells[k] = v
		}
		return
	}
	row := storage.Row{Clustering: clustering, Cells: make(map[string]types.Value, len(cells))}
	for k, v := range cells {
		row.Cells[k] = v
	}
	p.rows = append(p.rows, storage.Row{})
	copy(p.rows[i+1:], p.rows[i:])
	p.rows[i] = row
}

// FailWith makes every following read fail with err until it is called
// with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Close releases the store. Reads after Close fail with storage.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables = nil
	return nil
}

// ExecuteRead implements storage.Reader.
func (s *Store) ExecuteRead(ctx context.Context, cmd *plan.ReadCommand) (*storage.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	if s.failure != nil {
		return nil, s.failure
	}
	s.stats.Reads++

	result := &storage.Result{NativeReversed: s.nativeReversal}
	t, ok := s.tables[cmd.Schema.QualifiedName()]
	if !ok {
		return result, nil
	}

	wantStatic := false
	for _, col := range cmd.Columns {
		if col.Kind == catalog.Static {
			wantStatic = true
		}
	}

	remaining := cmd.TotalRowLimit
	for _, p := range t.selectPartitions(cmd.Partitions) {
		if remaining <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := s.readPartition(t.schema, p, cmd, min(cmd.PartitionRowLimit, remaining))
		var static map[string]types.Value
		if wantStatic && p.static != nil {
			static = project(p.static, cmd)
		}
		if len(rows) == 0 && static == nil {
			continue
		}
		result.Partitions = append(result.Partitions, storage.Partition{
			Key:    copyValues(p.key),
			Static: static,
			Rows:   rows,
		})
		remaining -= max(len(rows), 1)
	}
	return result, nil
}

func (t *table) selectPartitions(sel plan.PartitionSelector) []*partition {
	lookup := func(key []types.Value) *partition {
		tok, err := dht.KeyToken(t.schema, key)
		if err != nil {
			return nil
		}
		for _, p := range t.partitions {
			if p.token == tok && t.schema.ComparePartitionKey(p.key, key) == 0 {
				return p
			}
		}
		return nil
	}

	var out []*partition
	switch sel := sel.(type) {
	case *plan.SingleKey:
		if p := lookup(sel.Key); p != nil {
			out = append(out, p)
		}
	case *plan.KeySet:
		for _, k := range sel.Keys {
			if p := lookup(k); p != nil {
				out = append(out, p)
			}
		}
	case *plan.TokenRange:
		for _, p := range t.partitions {
			if sel.Range.Contains(p.token) {
				out = append(out, p)
			}
		}
	}
	return out
}

// readPartition returns up to limit rows of p matching the slices and
// index expressions, walking pages of cmd.PageSize rows.
func (s *Store) readPartition(schema *catalog.Schema, p *partition, cmd *plan.ReadCommand, limit int) []storage.Row {
	slices := cmd.Slices
	candidates := p.rows
	if cmd.Reversed {
		candidates = reversed(p.rows)
	}

	var out []storage.Row
	scanned := 0
	for _, row := range candidates {
		if len(out) >= limit {
			break
		}
		scanned++
		if cmd.PageSize > 0 && (scanned-1)%cmd.PageSize == 0 {
			s.stats.Pages++
		}
		if !inSlices(schema, slices, row.Clustering) {
			continue
		}
		if !matchesIndex(p, row, cmd) {
			continue
		}
		out = append(out, storage.Row{
			Clustering: copyValues(row.Clustering),
			Cells:      project(row.Cells, cmd),
		})
	}
	s.stats.Rows += len(out)

	if cmd.Reversed && !s.nativeReversal {
		out = reversed(out)
	}
	return out
}

func inSlices(schema *catalog.Schema, slices []plan.ClusteringRange, clustering []types.Value) bool {
	if clustering == nil {
		return true
	}
	for _, r := range slices {
		if r.Contains(schema, clustering) {
			return true
		}
	}
	return false
}

func matchesIndex(p *partition, row storage.Row, cmd *plan.ReadCommand) bool {
	for _, e := range cmd.IndexExpressions {
		var v types.Value
		switch e.Column.Kind {
		case catalog.PartitionKey:
			v = p.key[e.Column.Position]
		case catalog.Clustering:
			v = row.Clustering[e.Column.Position]
		case catalog.Static:
			v = cell(p.static, e.Column.Name)
		default:
			v = cell(row.Cells, e.Column.Name)
		}
		if !e.Matches(v) {
			return false
		}
	}
	return true
}

func copyValues(vals []types.Value) []types.Value {
	out := make([]types.Value, len(vals))
	copy(out, vals)
	return out
}

func cell(cells map[string]types.Value, name string) types.Value {
	if v, ok := cells[name]; ok {
		return v
	}
	return types.NewNullValue()
}

func project(cells map[string]types.Value, cmd *plan.ReadCommand) map[string]types.Value {
	out := make(map[string]types.Value)
	for _, col := range cmd.Columns {
		if v, ok := cells[col.Name]; ok {
			out[col.Name] = v
		}
	}
	return out
}

func reversed(rows []storage.Row) []storage.Row {
	out := make([]storage.Row, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}
