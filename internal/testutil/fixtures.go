// Package testutil holds schemas, data loaders and assertions shared by
// tests.
package testutil

import (
	"testing"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

// EventsSchema is ks.events: id int partition key, ts int clustering
// column, a static owner and regular v, tags and attrs columns.
func EventsSchema() *catalog.Schema {
	return catalog.NewSchemaBuilder("ks", "events").
		PartitionKey("id", types.Int).
		Clustering("ts", types.Int, catalog.Ascending).
		Static("owner", types.Text).
		Regular("v", types.Int).
		Regular("tags", types.SetOf(types.Text)).
		Regular("attrs", types.MapOf(types.Text, types.Int)).
		MustBuild()
}

// TimelineSchema is ks.timeline: (user text, day int) partition key and
// clustering columns at ASC and seq DESC.
func TimelineSchema() *catalog.Schema {
	return catalog.NewSchemaBuilder("ks", "timeline").
		PartitionKey("user", types.Text).
		PartitionKey("day", types.Int).
		Clustering("at", types.BigInt, catalog.Ascending).
		Clustering("seq", types.Int, catalog.Descending).
		Regular("body", types.Text).
		MustBuild()
}

// Inserter is anything rows can be loaded into.
type Inserter interface {
	Insert(schema *catalog.Schema, cells map[string]types.Value) error
}

// Cells converts plain Go values into typed cells, coercing each value to
// its column type. A nil value becomes null.
func Cells(t *testing.T, schema *catalog.Schema, row map[string]any) map[string]types.Value {
	t.Helper()
	cells := make(map[string]types.Value, len(row))
	for name, raw := range row {
		col := schema.Column(name)
		if col == nil {
			t.Fatalf("unknown column %s in %s", name, schema.QualifiedName())
		}
		v := types.NewValue(raw)
		if raw == nil {
			v = types.NewNullValue()
		}
		coerced, err := col.Type.Coerce(v)
		if err != nil {
			t.Fatalf("column %s: %v", name, err)
		}
		cells[name] = coerced
	}
	return cells
}

// Load inserts rows into ins.
func Load(t *testing.T, ins Inserter, schema *catalog.Schema, rows ...map[string]any) {
	t.Helper()
	for _, row := range rows {
		AssertNoError(t, ins.Insert(schema, Cells(t, schema, row)))
	}
}
