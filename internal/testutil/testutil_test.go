package testutil

import (
	"os"
	"testing"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/resultset"
	"github.com/dshills/QuantaCQL/internal/cql/selection"
	"github.com/dshills/QuantaCQL/internal/cql/types"
)

type recorder struct {
	rows []map[string]types.Value
}

func (r *recorder) Insert(_ *catalog.Schema, cells map[string]types.Value) error {
	r.rows = append(r.rows, cells)
	return nil
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, "schema.yaml", "keyspace: ks\n")
	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	if string(data) != "keyspace: ks\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestLoadCoercesValues(t *testing.T) {
	rec := &recorder{}
	Load(t, rec, EventsSchema(),
		map[string]any{"id": 1, "ts": 10, "v": nil},
		map[string]any{"id": 1, "owner": "ann", "tags": []any{"b", "a"}},
	)
	if len(rec.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rec.rows))
	}
	if got := rec.rows[0]["id"].Data; got != int32(1) {
		t.Errorf("id coerced to %T(%v), want int32(1)", got, got)
	}
	if !rec.rows[0]["v"].Null {
		t.Errorf("nil should load as null")
	}
	tags := rec.rows[1]["tags"].Data.([]types.Value)
	if len(tags) != 2 || tags[0].Data != "a" {
		t.Errorf("set not normalized: %v", tags)
	}
}

func TestAssertColumn(t *testing.T) {
	rs := resultset.New([]selection.Column{{Name: "ts"}}, 0)
	rs.Add([]types.Value{types.NewValue(int32(3))})
	rs.Add([]types.Value{types.NewNullValue()})
	AssertColumn(t, rs, 0, int32(3), nil)
}
