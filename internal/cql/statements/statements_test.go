package statements

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/cql/parser"
	"github.com/dshills/QuantaCQL/internal/cql/plan"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
	"github.com/dshills/QuantaCQL/internal/storage"
	"github.com/dshills/QuantaCQL/internal/storage/memstore"
	"github.com/dshills/QuantaCQL/internal/testutil"
)

func readingsSchema() *catalog.Schema {
	return catalog.NewSchemaBuilder("ks", "readings").
		PartitionKey("id", types.Int).
		Clustering("ts", types.Int, catalog.Ascending).
		Regular("v", types.Text).
		MustBuild()
}

func loadReadings(t *testing.T, s *memstore.Store) *catalog.Schema {
	t.Helper()
	schema := readingsSchema()
	for _, ts := range []int{8, 9, 10, 11, 12, 13} {
		testutil.Load(t, s, schema, map[string]any{"id": 5, "ts": ts, "v": "r"})
	}
	testutil.Load(t, s, schema,
		map[string]any{"id": 1, "ts": 5, "v": "a"},
		map[string]any{"id": 1, "ts": 9, "v": "b"},
		map[string]any{"id": 2, "ts": 3, "v": "c"},
		map[string]any{"id": 2, "ts": 7, "v": "d"},
	)
	return schema
}

func prepare(t *testing.T, schema *catalog.Schema, cql string) *SelectStatement {
	t.Helper()
	stmt, err := Prepare(schema, nil, parser.MustParse(cql))
	require.NoError(t, err)
	return stmt
}

func values(vals ...any) []types.Value {
	out := make([]types.Value, len(vals))
	for i, v := range vals {
		out[i] = types.NewValue(v)
	}
	return out
}

// unreachable fails the test when storage is called.
func unreachable(t *testing.T) storage.Reader {
	return storage.ReaderFunc(func(context.Context, *plan.ReadCommand) (*storage.Result, error) {
		t.Fatal("storage must not be called")
		return nil, nil
	})
}

func TestReversedSliceWithExclusiveBound(t *testing.T) {
	for _, native := range []bool{true, false} {
		store := memstore.New(memstore.WithNativeReversal(native))
		schema := loadReadings(t, store)
		stmt := prepare(t, schema, "SELECT ts FROM ks.readings WHERE id = 5 AND ts > 10 ORDER BY ts DESC LIMIT 3")

		assert.True(t, stmt.IsReversed())
		assert.False(t, stmt.HasComparator())

		cmd, err := stmt.Plan(QueryOptions{})
		require.NoError(t, err)
		assert.True(t, cmd.Reversed)
		assert.Equal(t, 4, cmd.PartitionRowLimit)
		assert.Equal(t, "[(10), +inf]", cmd.Slices[0].String())
		require.Len(t, cmd.Excluded, 1)

		rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
		require.NoError(t, err)
		testutil.AssertColumn(t, rs, 0, int32(13), int32(12), int32(11))
	}
}

func TestExclusiveUpperBound(t *testing.T) {
	tests := []struct {
		name string
		cql  string
		want []any
	}{
		{"ascending", "SELECT ts FROM ks.readings WHERE id = 5 AND ts < 12", []any{int32(8), int32(9), int32(10), int32(11)}},
		{"descending_limit", "SELECT ts FROM ks.readings WHERE id = 5 AND ts < 12 ORDER BY ts DESC LIMIT 2", []any{int32(11), int32(10)}},
		{"both_bounds_limit", "SELECT ts FROM ks.readings WHERE id = 5 AND ts > 8 AND ts < 13 LIMIT 2", []any{int32(9), int32(10)}},
		{"both_bounds_descending_limit", "SELECT ts FROM ks.readings WHERE id = 5 AND ts > 8 AND ts < 13 ORDER BY ts DESC LIMIT 2", []any{int32(12), int32(11)}},
	}
	for _, tt := range tests {
		for _, native := range []bool{true, false} {
			t.Run(fmt.Sprintf("%s/native_reversal=%t", tt.name, native), func(t *testing.T) {
				store := memstore.New(memstore.WithNativeReversal(native))
				schema := loadReadings(t, store)
				stmt := prepare(t, schema, tt.cql)

				rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
				require.NoError(t, err)
				testutil.AssertColumn(t, rs, 0, tt.want...)
			})
		}
	}
}

func TestNativeExclusiveBoundsSkipSimulation(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT ts FROM ks.readings WHERE id = 5 AND ts > 10 ORDER BY ts DESC LIMIT 3")

	opts := QueryOptions{NativeExclusiveBounds: true}
	cmd, err := stmt.Plan(opts)
	require.NoError(t, err)
	assert.Empty(t, cmd.Excluded)
	assert.Equal(t, 3, cmd.PartitionRowLimit)

	rs, err := stmt.Execute(context.Background(), store, opts)
	require.NoError(t, err)
	testutil.AssertColumn(t, rs, 0, int32(13), int32(12), int32(11))
}

func TestPartitionKeyINPostSort(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT ts FROM ks.readings WHERE id IN (1, 2) ORDER BY ts ASC LIMIT 2")

	assert.False(t, stmt.IsReversed())
	assert.True(t, stmt.HasComparator())

	cmd, err := stmt.Plan(QueryOptions{})
	require.NoError(t, err)
	keys, ok := cmd.Partitions.(*plan.KeySet)
	require.True(t, ok, "expected a key set, got %T", cmd.Partitions)
	assert.Len(t, keys.Keys, 2)
	assert.Equal(t, plan.NoLimit, cmd.PartitionRowLimit)

	rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	testutil.AssertColumn(t, rs, 0, int32(3), int32(5))
}

func TestHiddenOrderingColumn(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT v FROM ks.readings WHERE id IN (1, 2) ORDER BY ts DESC")

	require.Len(t, stmt.ResultColumns(), 1)
	assert.Equal(t, 1, stmt.Selection().HiddenCount())

	rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rs.Columns, 1)
	for _, row := range rs.Rows {
		assert.Len(t, row, 1)
	}
	testutil.AssertColumn(t, rs, 0, "b", "d", "a", "c")
}

func TestLimitZeroSkipsStorage(t *testing.T) {
	schema := readingsSchema()

	stmt := prepare(t, schema, "SELECT * FROM ks.readings WHERE id = 1 LIMIT 0")
	rs, err := stmt.Execute(context.Background(), unreachable(t), QueryOptions{})
	require.NoError(t, err)
	assert.True(t, rs.IsEmpty())

	stmt = prepare(t, schema, "SELECT * FROM ks.readings WHERE id = 1 LIMIT ?")
	rs, err = stmt.Execute(context.Background(), unreachable(t), QueryOptions{Values: values(0)})
	require.NoError(t, err)
	assert.True(t, rs.IsEmpty())
	assert.Len(t, rs.Columns, 3)
}

func TestEmptyPlanSkipsStorage(t *testing.T) {
	schema := readingsSchema()
	stmt := prepare(t, schema, "SELECT * FROM ks.readings WHERE id = 1 AND ts > 5 AND ts < 3")

	cmd, err := stmt.Plan(QueryOptions{})
	require.NoError(t, err)
	assert.True(t, cmd.Empty)

	rs, err := stmt.Execute(context.Background(), unreachable(t), QueryOptions{})
	require.NoError(t, err)
	assert.True(t, rs.IsEmpty())
}

func TestBoundValues(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT ts FROM ks.readings WHERE id = ? AND ts >= ? LIMIT ?")

	require.Equal(t, 3, stmt.BoundTermCount())
	vars := stmt.Variables()
	assert.Equal(t, "id", vars[0].Name)
	assert.Equal(t, "ts", vars[1].Name)
	assert.Equal(t, "[limit]", vars[2].Name)

	rs, err := stmt.Execute(context.Background(), store, QueryOptions{Values: values(5, 11, 2)})
	require.NoError(t, err)
	testutil.AssertColumn(t, rs, 0, int32(11), int32(12))

	// the same prepared statement serves different values
	rs, err = stmt.Execute(context.Background(), store, QueryOptions{Values: values(1, 0, 10)})
	require.NoError(t, err)
	testutil.AssertColumn(t, rs, 0, int32(5), int32(9))
}

func TestBindErrors(t *testing.T) {
	schema := readingsSchema()
	stmt := prepare(t, schema, "SELECT ts FROM ks.readings WHERE id = ? LIMIT ?")

	tests := []struct {
		name   string
		values []types.Value
		code   errors.Code
	}{
		{"too few values", values(1), errors.Invalid},
		{"too many values", values(1, 2, 3), errors.Invalid},
		{"negative limit", values(1, -1), errors.Invalid},
		{"null limit", []types.Value{types.NewValue(1), types.NewNullValue()}, errors.Invalid},
		{"null partition key", []types.Value{types.NewNullValue(), types.NewValue(3)}, errors.Invalid},
		{"wrong type", values("x", 3), errors.Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stmt.Execute(context.Background(), unreachable(t), QueryOptions{Values: tt.values})
			testutil.AssertErrorClass(t, err, errors.ClassBind)
			assert.True(t, errors.IsError(err, tt.code), "unexpected error %v", err)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	readings := readingsSchema()
	timeline := testutil.TimelineSchema()

	tests := []struct {
		name   string
		schema *catalog.Schema
		cql    string
		msg    string
	}{
		{"filtering required", readings, "SELECT * FROM ks.readings WHERE v = 'a'", "ALLOW FILTERING"},
		{"unknown column", readings, "SELECT nope FROM ks.readings", "undefined name nope"},
		{"distinct non key", readings, "SELECT DISTINCT id, v FROM ks.readings", "must only request partition key columns"},
		{"distinct wildcard", readings, "SELECT DISTINCT * FROM ks.readings", "must only request partition key columns"},
		{"distinct missing key part", timeline, "SELECT DISTINCT user FROM ks.timeline", "missing day"},
		{"distinct clustering restriction", readings, "SELECT DISTINCT id FROM ks.readings WHERE id = 1 AND ts = 2", "only supports restriction by partition key"},
		{"distinct order by", readings, "SELECT DISTINCT id FROM ks.readings WHERE id = 1 ORDER BY ts DESC", "ORDER BY is not supported with SELECT DISTINCT"},
		{"order by regular column", readings, "SELECT * FROM ks.readings WHERE id = 1 ORDER BY v", "order by is only supported on clustering columns"},
		{"order by key range", readings, "SELECT * FROM ks.readings ORDER BY ts DESC", "ORDER BY is only supported when the partition key is restricted"},
		{"order by alias", readings, "SELECT ts AS t FROM ks.readings WHERE id = 1 ORDER BY t", "aliases aren't allowed"},
		{"partial partition key", timeline, "SELECT * FROM ks.timeline WHERE user = 'a'", "partition key parts: day"},
		{"clustering gap", timeline, "SELECT * FROM ks.timeline WHERE user = 'a' AND day = 1 AND seq = 3", "ALLOW FILTERING"},
		{"negative literal limit", readings, "SELECT * FROM ks.readings LIMIT -1", "invalid limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.schema, nil, parser.MustParse(tt.cql))
			testutil.AssertErrorClass(t, err, errors.ClassCompile)
			assert.Contains(t, errors.GetError(err).Message+" "+errors.GetError(err).Hint, tt.msg)
		})
	}
}

func TestAllowFilteringAppliesRowFilter(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT id, ts FROM ks.readings WHERE v = 'd' ALLOW FILTERING")

	rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	testutil.AssertColumn(t, rs, 0, int32(2))
	testutil.AssertColumn(t, rs, 1, int32(7))

	// the filter runs before the limit is applied
	stmt = prepare(t, schema, "SELECT ts FROM ks.readings WHERE id = 5 AND v = 'r' LIMIT 2 ALLOW FILTERING")
	rs, err = stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	testutil.AssertColumn(t, rs, 0, int32(8), int32(9))
}

func TestStaticOnlyPartition(t *testing.T) {
	store := memstore.New()
	schema := testutil.EventsSchema()
	testutil.Load(t, store, schema,
		map[string]any{"id": 1, "ts": 5, "v": 50, "owner": "ann"},
		map[string]any{"id": 2, "owner": "bob"},
	)

	stmt := prepare(t, schema, "SELECT id, owner, v FROM ks.events WHERE id = 2")
	rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Size())
	testutil.AssertColumn(t, rs, 0, int32(2))
	testutil.AssertColumn(t, rs, 1, "bob")
	testutil.AssertColumn(t, rs, 2, nil)

	// a clustering restriction looks for rows the partition does not have
	stmt = prepare(t, schema, "SELECT id, owner, v FROM ks.events WHERE id = 2 AND ts > 0")
	rs, err = stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	assert.True(t, rs.IsEmpty())

	stmt = prepare(t, schema, "SELECT id, owner, ts FROM ks.events WHERE id = 1")
	rs, err = stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	testutil.AssertColumn(t, rs, 1, "ann")
	testutil.AssertColumn(t, rs, 2, int32(5))
}

func TestDistinct(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT DISTINCT id FROM ks.readings")

	cmd, err := stmt.Plan(QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, cmd.PartitionRowLimit)

	rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
	require.NoError(t, err)
	var ids []any
	for _, row := range rs.Rows {
		ids = append(ids, row[0].Data)
	}
	assert.ElementsMatch(t, []any{int32(1), int32(2), int32(5)}, ids)
}

func TestStorageErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"timeout", errors.ReadTimeoutError(1, 2)},
		{"unavailable", errors.UnavailableError(3, 1)},
		{"read_failure", errors.ReadFailureError(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			schema := loadReadings(t, store)
			stmt := prepare(t, schema, "SELECT * FROM ks.readings WHERE id = 1")

			store.FailWith(tt.err)
			rs, err := stmt.Execute(context.Background(), store, QueryOptions{})
			assert.Nil(t, rs)
			assert.Same(t, tt.err, err)
		})
	}

	t.Run("canceled", func(t *testing.T) {
		stmt := prepare(t, readingsSchema(), "SELECT * FROM ks.readings WHERE id = 1")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := stmt.Execute(ctx, memstore.New(), QueryOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStages(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT * FROM ks.readings WHERE id = 1")

	var seen []Stage
	_, err := stmt.Execute(context.Background(), store, QueryOptions{OnStage: func(s Stage) { seen = append(seen, s) }})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageCompiled, StagePlanned, StageRowsReceived, StageAssembled, StageEmitted}, seen)
	assert.Equal(t, "rows_received", StageRowsReceived.String())
}

func TestConcurrentExecutions(t *testing.T) {
	store := memstore.New()
	schema := loadReadings(t, store)
	stmt := prepare(t, schema, "SELECT ts FROM ks.readings WHERE id = ? ORDER BY ts DESC LIMIT 1")

	want := map[int]int32{1: 9, 2: 7, 5: 13}
	var g errgroup.Group
	for i := 0; i < 30; i++ {
		id := []int{1, 2, 5}[i%3]
		g.Go(func() error {
			rs, err := stmt.Execute(context.Background(), store, QueryOptions{Values: values(id)})
			if err != nil {
				return err
			}
			if rs.Size() != 1 || rs.Rows[0][0].Data != want[id] {
				return errors.Newf(errors.ServerError, "id %d: unexpected rows %v", id, rs.Rows)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
