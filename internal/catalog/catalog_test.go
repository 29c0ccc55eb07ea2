package catalog

import (
	"testing"

	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

func eventsSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchemaBuilder("ks", "Events").
		PartitionKey("id", types.Int).
		Clustering("ts", types.Int, Descending).
		Clustering("seq", types.Int, Ascending).
		Static("owner", types.Text).
		Regular("v", types.Text).
		Regular("tags", types.SetOf(types.Text)).
		Build()
	if err != nil {
		t.Fatalf("Failed to build schema: %v", err)
	}
	return s
}

func TestSchemaBuilder(t *testing.T) {
	s := eventsSchema(t)

	if s.Name != "events" {
		t.Errorf("Expected table name to be lower-cased, got %q", s.Name)
	}
	if s.QualifiedName() != "ks.events" {
		t.Errorf("Unexpected qualified name %q", s.QualifiedName())
	}

	var names []string
	for _, c := range s.Columns() {
		names = append(names, c.Name)
	}
	want := []string{"id", "ts", "seq", "owner", "v", "tags"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d columns, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Column %d: expected %s, got %s", i, want[i], names[i])
		}
	}

	if c := s.Column("seq"); c == nil || c.Kind != Clustering || c.Position != 1 {
		t.Errorf("Expected seq to be clustering column 1, got %+v", c)
	}
	if !s.Column("ts").IsReversed() {
		t.Error("Expected ts to be reversed")
	}
	if !s.HasStatic() {
		t.Error("Expected static columns")
	}
}

func TestSchemaBuilderErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *SchemaBuilder
	}{
		{"no partition key", NewSchemaBuilder("ks", "t").Regular("v", types.Int)},
		{"duplicate column", NewSchemaBuilder("ks", "t").PartitionKey("a", types.Int).Regular("A", types.Int)},
		{"static without clustering", NewSchemaBuilder("ks", "t").PartitionKey("a", types.Int).Static("s", types.Int)},
		{"collection key", NewSchemaBuilder("ks", "t").PartitionKey("a", types.ListOf(types.Int))},
		{"compact with regular", NewSchemaBuilder("ks", "t").PartitionKey("a", types.Int).
			Clustering("b", types.Int, Ascending).CompactValue("v", types.Int).Regular("w", types.Int)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.builder.Build(); err == nil {
				t.Error("Expected build error")
			}
		})
	}
}

func TestQuotedIdentifiers(t *testing.T) {
	if got := NormalizeIdentifier(`"MixedCase"`); got != "MixedCase" {
		t.Errorf("Expected quoted identifier to keep case, got %q", got)
	}
	if got := NormalizeIdentifier("MixedCase"); got != "mixedcase" {
		t.Errorf("Expected unquoted identifier to be lower-cased, got %q", got)
	}
}

func TestCompareClustering(t *testing.T) {
	s := eventsSchema(t)
	v := func(n int32) types.Value { return types.NewValue(n) }

	// ts is DESC: larger ts sorts first
	if c := s.CompareClustering([]types.Value{v(10), v(1)}, []types.Value{v(5), v(1)}); c >= 0 {
		t.Errorf("Expected ts=10 before ts=5, got %d", c)
	}
	// seq is ASC
	if c := s.CompareClustering([]types.Value{v(5), v(1)}, []types.Value{v(5), v(2)}); c >= 0 {
		t.Errorf("Expected seq=1 before seq=2, got %d", c)
	}
	// prefix sorts first
	if c := s.CompareClustering([]types.Value{v(5)}, []types.Value{v(5), v(2)}); c >= 0 {
		t.Errorf("Expected prefix first, got %d", c)
	}
	if c := s.CompareClustering([]types.Value{v(5), v(2)}, []types.Value{v(5), v(2)}); c != 0 {
		t.Errorf("Expected equal, got %d", c)
	}
}

func TestMemoryCatalogTables(t *testing.T) {
	c := NewMemoryCatalog()

	t.Run("Unknown keyspace", func(t *testing.T) {
		_, err := c.GetTable("nope", "events")
		if !errors.IsError(err, errors.Invalid) || !errors.IsClass(err, errors.ClassCompile) {
			t.Errorf("Expected invalid compile error, got %v", err)
		}
	})

	if err := c.CreateKeyspace("ks"); err != nil {
		t.Fatalf("Failed to create keyspace: %v", err)
	}
	if err := c.CreateKeyspace("KS"); !errors.IsError(err, errors.AlreadyExists) {
		t.Errorf("Expected already exists, got %v", err)
	}

	var changes []SchemaChange
	c.Subscribe(func(ch SchemaChange) { changes = append(changes, ch) })

	s := eventsSchema(t)
	if err := c.PutTable(s); err != nil {
		t.Fatalf("Failed to put table: %v", err)
	}

	t.Run("Get table", func(t *testing.T) {
		got, err := c.GetTable("ks", "EVENTS")
		if err != nil {
			t.Fatalf("Failed to get table: %v", err)
		}
		if got != s {
			t.Error("Expected the stored schema")
		}
	})

	t.Run("Unknown table", func(t *testing.T) {
		_, err := c.GetTable("ks", "missing")
		e := errors.GetError(err)
		if e == nil || e.Table != "missing" || e.Keyspace != "ks" {
			t.Errorf("Expected unknown table error, got %v", err)
		}
	})

	if err := c.PutTable(eventsSchema(t)); err != nil {
		t.Fatalf("Failed to replace table: %v", err)
	}
	if err := c.DropTable("ks", "events"); err != nil {
		t.Fatalf("Failed to drop table: %v", err)
	}

	want := []ChangeKind{TableCreated, TableUpdated, TableDropped}
	if len(changes) != len(want) {
		t.Fatalf("Expected %d changes, got %d", len(want), len(changes))
	}
	for i, k := range want {
		if changes[i].Kind != k || changes[i].Table != "events" {
			t.Errorf("Change %d: expected %s on events, got %+v", i, k, changes[i])
		}
	}
}

func TestMemoryCatalogIndexes(t *testing.T) {
	c := NewMemoryCatalog()
	if err := c.CreateKeyspace("ks"); err != nil {
		t.Fatal(err)
	}
	s := eventsSchema(t)
	if err := c.PutTable(s); err != nil {
		t.Fatal(err)
	}

	if c.Supports(s, "v", IndexEQ) {
		t.Error("Expected no index on v yet")
	}
	if err := c.CreateIndex(IndexDefinition{Keyspace: "ks", Table: "events", Column: "v"}); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	if !c.Supports(s, "v", IndexEQ) {
		t.Error("Expected values index to serve EQ")
	}
	if err := c.CreateIndex(IndexDefinition{Keyspace: "ks", Table: "events", Column: "tags"}); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	if !c.Supports(s, "tags", IndexContains) || c.Supports(s, "tags", IndexContainsKey) {
		t.Error("Expected set values index to serve CONTAINS only")
	}

	err := c.CreateIndex(IndexDefinition{Keyspace: "ks", Table: "events", Column: "tags", Target: IndexTargetKeys})
	if err == nil {
		t.Error("Expected keys index on a set to fail")
	}
	err = c.CreateIndex(IndexDefinition{Keyspace: "ks", Table: "events", Column: "nope"})
	if err == nil {
		t.Error("Expected index on unknown column to fail")
	}

	if got := c.Indexes("ks", "events"); len(got) != 2 || got[0].Name != "events_tags_idx" {
		t.Errorf("Unexpected indexes %+v", got)
	}
	if err := c.DropIndex("ks", "events", "events_v_idx"); err != nil {
		t.Fatalf("Failed to drop index: %v", err)
	}
	if c.Supports(s, "v", IndexEQ) {
		t.Error("Expected dropped index to stop serving")
	}
}

func TestLoadYAML(t *testing.T) {
	def, err := Parse([]byte(`
keyspace: shop
tables:
  - name: orders
    partition_key:
      - {name: customer, type: text}
    clustering:
      - {name: placed, type: timestamp, order: desc}
    static:
      - {name: tier, type: text}
    columns:
      - {name: total, type: double}
      - {name: attrs, type: "map<text, text>"}
    indexes:
      - {column: attrs, target: keys}
`))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	c := NewMemoryCatalog()
	if err := def.Apply(c); err != nil {
		t.Fatalf("Failed to apply: %v", err)
	}
	s, err := c.GetTable("shop", "orders")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Column("placed").IsReversed() {
		t.Error("Expected placed to be DESC")
	}
	if s.Column("attrs").Type.Name() != "map<text, text>" {
		t.Errorf("Unexpected attrs type %s", s.Column("attrs").Type.Name())
	}
	if !c.Supports(s, "attrs", IndexContainsKey) {
		t.Error("Expected keys index on attrs")
	}

	if _, err := Parse([]byte("keyspace: x\ntabels: []\n")); err == nil {
		t.Error("Expected unknown field to be rejected")
	}
}
