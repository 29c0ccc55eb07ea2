package query

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/QuantaCQL/internal/cql/statements"
	"github.com/dshills/QuantaCQL/internal/errors"
	"github.com/dshills/QuantaCQL/internal/metrics"
)

// StatementID identifies a prepared statement: the SHA-256 of its
// keyspace and canonical text.
type StatementID [sha256.Size]byte

// ComputeID hashes a keyspace and a canonical statement text.
func ComputeID(keyspace, text string) StatementID {
	h := sha256.New()
	h.Write([]byte(keyspace))
	h.Write([]byte{0})
	h.Write([]byte(text))
	var id StatementID
	copy(id[:], h.Sum(nil))
	return id
}

// ParseStatementID parses the hex form produced by String.
func ParseStatementID(s string) (StatementID, error) {
	var id StatementID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, errors.InvalidRequestf("malformed statement id %q", s).WithClass(errors.ClassBind)
	}
	copy(id[:], b)
	return id, nil
}

func (id StatementID) String() string {
	return hex.EncodeToString(id[:])
}

// Prepared is a cached prepared statement.
type Prepared struct {
	ID         StatementID
	Keyspace   string
	Table      string
	Text       string
	Statement  *statements.SelectStatement
	PreparedAt time.Time
}

// StatementCache is an LRU of prepared statements with per-table
// invalidation.
type StatementCache struct {
	lru     *lru.Cache[StatementID, *Prepared]
	metrics *metrics.Metrics

	mu          sync.Mutex
	byTable     map[string]map[StatementID]struct{}
	generations map[string]uint64
}

// NewStatementCache creates a cache holding at most size statements.
func NewStatementCache(size int, m *metrics.Metrics) (*StatementCache, error) {
	if m == nil {
		m = metrics.Nop()
	}
	c := &StatementCache{
		metrics:     m,
		byTable:     make(map[string]map[StatementID]struct{}),
		generations: make(map[string]uint64),
	}
	cache, err := lru.NewWithEvict[StatementID, *Prepared](size, c.forget)
	if err != nil {
		return nil, errors.InvalidConfigurationError("query.statement_cache_size", "must be positive").WithCause(err)
	}
	c.lru = cache
	return c, nil
}

func tableKey(keyspace, table string) string {
	return keyspace + "." + table
}

// forget drops a statement leaving the LRU from the table index.
func (c *StatementCache) forget(id StatementID, p *Prepared) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := tableKey(p.Keyspace, p.Table)
	if ids, ok := c.byTable[key]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(c.byTable, key)
		}
	}
	c.metrics.CachedStatements.Set(float64(c.lru.Len()))
}

// Get returns a cached statement and marks it recently used.
func (c *StatementCache) Get(id StatementID) (*Prepared, bool) {
	p, ok := c.lru.Get(id)
	if ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return p, ok
}

// Peek returns a cached statement without touching recency or metrics.
func (c *StatementCache) Peek(id StatementID) (*Prepared, bool) {
	return c.lru.Peek(id)
}

// Generation returns the schema generation of keyspace.table. It moves
// on every InvalidateTable; read it before looking the schema up and pass
// it to Add.
func (c *StatementCache) Generation(keyspace, table string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[tableKey(keyspace, table)]
}

// Add caches p, evicting the least recently used statement when full. p
// is not kept when its table was invalidated since generation was read;
// Add then reports false.
func (c *StatementCache) Add(p *Prepared, generation uint64) bool {
	key := tableKey(p.Keyspace, p.Table)
	c.mu.Lock()
	if c.generations[key] != generation {
		c.mu.Unlock()
		return false
	}
	if c.byTable[key] == nil {
		c.byTable[key] = make(map[StatementID]struct{})
	}
	c.byTable[key][p.ID] = struct{}{}
	c.mu.Unlock()

	// the eviction callback takes c.mu, so the LRU is touched unlocked
	if c.lru.Add(p.ID, p) {
		c.metrics.CacheEvictions.Inc()
	}

	c.mu.Lock()
	stale := c.generations[key] != generation
	c.mu.Unlock()
	if stale {
		// invalidated between registration and insertion
		c.lru.Remove(p.ID)
		return false
	}
	c.metrics.CachedStatements.Set(float64(c.lru.Len()))
	return true
}

// InvalidateTable drops every statement on keyspace.table and returns how
// many were dropped. Statements compiled against the old schema and
// still in flight are refused by Add.
func (c *StatementCache) InvalidateTable(keyspace, table string) int {
	key := tableKey(keyspace, table)
	c.mu.Lock()
	c.generations[key]++
	ids := make([]StatementID, 0, len(c.byTable[key]))
	for id := range c.byTable[key] {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	n := 0
	for _, id := range ids {
		if c.lru.Remove(id) {
			n++
		}
	}
	c.metrics.CacheInvalidations.Add(float64(n))
	return n
}

// Len returns the number of cached statements.
func (c *StatementCache) Len() int {
	return c.lru.Len()
}
