package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaCQL/internal/testutil"
)

func TestCacheRefusesStaleGeneration(t *testing.T) {
	c, err := NewStatementCache(4, nil)
	require.NoError(t, err)
	p := &Prepared{ID: ComputeID("ks", "SELECT * FROM ks.events"), Keyspace: "ks", Table: "events"}

	gen := c.Generation("ks", "events")
	assert.Equal(t, 0, c.InvalidateTable("ks", "events"))
	assert.NotEqual(t, gen, c.Generation("ks", "events"))

	assert.False(t, c.Add(p, gen))
	assert.Equal(t, 0, c.Len())
	_, ok := c.Peek(p.ID)
	assert.False(t, ok)

	// other tables keep their generation
	other := &Prepared{ID: ComputeID("ks", "SELECT * FROM ks.timeline"), Keyspace: "ks", Table: "timeline"}
	assert.True(t, c.Add(other, c.Generation("ks", "timeline")))

	assert.True(t, c.Add(p, c.Generation("ks", "events")))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.InvalidateTable("ks", "events"))
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictionKeepsTableIndex(t *testing.T) {
	c, err := NewStatementCache(1, nil)
	require.NoError(t, err)
	schema := testutil.EventsSchema()
	first := &Prepared{ID: ComputeID("ks", "a"), Keyspace: schema.Keyspace, Table: schema.Name}
	second := &Prepared{ID: ComputeID("ks", "b"), Keyspace: schema.Keyspace, Table: schema.Name}

	require.True(t, c.Add(first, 0))
	require.True(t, c.Add(second, 0))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.InvalidateTable("ks", "events"))
}
