package scenario

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/QuantaCQL/internal/config"
	"github.com/dshills/QuantaCQL/internal/log"
	"github.com/dshills/QuantaCQL/internal/metrics"
)

func setup(t *testing.T, s *Scenario) *Environment {
	t.Helper()
	env, err := Setup(s, config.DefaultConfig(), log.Discard(), metrics.Nop())
	require.NoError(t, err)
	return env
}

func TestSensorsScenario(t *testing.T) {
	s, err := LoadFile(filepath.Join("testdata", "sensors.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sensors", s.Name)
	assert.Len(t, s.Queries, 6)

	env := setup(t, s)
	assert.Equal(t, "metrics", env.Keyspace)

	for i, q := range s.Queries {
		t.Run(q.Label(i), func(t *testing.T) {
			out := env.Run(context.Background(), q)
			assert.Empty(t, Check(q, out))
		})
	}
}

func TestNativeReversalOff(t *testing.T) {
	s, err := LoadFile(filepath.Join("testdata", "sensors.yaml"))
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Storage.NativeReversal = false
	env, err := Setup(s, cfg, log.Discard(), metrics.Nop())
	require.NoError(t, err)

	q, ok := s.Find("latest")
	require.True(t, ok)
	assert.Empty(t, Check(q, env.Run(context.Background(), q)))
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\nschema: {keyspace: ks}\nqueries: [{cql: SELECT * FROM t}]\nbogus: 1\n",
			want: "field bogus not found",
		},
		{
			name: "missing name",
			yaml: "schema: {keyspace: ks}\nqueries: [{cql: SELECT * FROM t}]\n",
			want: "scenario name is required",
		},
		{
			name: "missing keyspace",
			yaml: "name: x\nqueries: [{cql: SELECT * FROM t}]\n",
			want: "schema keyspace is required",
		},
		{
			name: "no queries",
			yaml: "name: x\nschema: {keyspace: ks}\n",
			want: "at least one query is required",
		},
		{
			name: "empty cql",
			yaml: "name: x\nschema: {keyspace: ks}\nqueries: [{name: a}]\n",
			want: "query 0 has no cql",
		},
		{
			name: "duplicate names",
			yaml: "name: x\nschema: {keyspace: ks}\nqueries: [{name: a, cql: q}, {name: a, cql: q}]\n",
			want: "duplicate query name a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const tinyScenario = `
name: tiny
schema:
  keyspace: ks
  tables:
    - name: t
      partition_key: [{name: k, type: int}]
      clustering: [{name: c, type: int}]
      columns: [{name: v, type: text}]
data:
  - table: t
    rows:
      - {k: 1, c: 1, v: a}
      - {k: 1, c: 2, v: b}
queries:
  - cql: SELECT v FROM t WHERE k = 1
`

func TestSetupRejectsBadRows(t *testing.T) {
	s, err := Parse([]byte(tinyScenario))
	require.NoError(t, err)

	s.Data[0].Rows = append(s.Data[0].Rows, map[string]interface{}{"k": 1, "nope": 2})
	_, err = Setup(s, config.DefaultConfig(), log.Discard(), metrics.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column nope")

	s.Data[0].Rows[2] = map[string]interface{}{"k": "one", "c": 3}
	_, err = Setup(s, config.DefaultConfig(), log.Discard(), metrics.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column k")

	s.Data[0].Rows[2] = map[string]interface{}{"k": 1, "v": "z"}
	_, err = Setup(s, config.DefaultConfig(), log.Discard(), metrics.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory clustering column c")
}

func TestCheckReportsMismatches(t *testing.T) {
	s, err := Parse([]byte(tinyScenario))
	require.NoError(t, err)
	env := setup(t, s)
	ctx := context.Background()

	q := s.Queries[0]
	assert.Equal(t, "query 1", q.Label(0))
	out := env.Run(ctx, q)
	require.NoError(t, out.Err)
	assert.Empty(t, Check(q, out), "no expectation and no error")

	q.Expect = &Expect{Rows: [][]interface{}{{"a"}}}
	problems := Check(q, out)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "expected 1 rows, got 2")

	q.Expect = &Expect{Columns: []string{"w"}, Rows: [][]interface{}{{"a"}, {"c"}}}
	problems = Check(q, out)
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "expected columns [w]")
	assert.Contains(t, problems[1], "row 1 column v: expected 'c', got 'b'")

	q.Expect = &Expect{Plan: []string{"order: reversed"}, Rows: [][]interface{}{{"a"}, {"b"}}}
	problems = Check(q, out)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], `plan does not contain "order: reversed"`)

	q.Expect = &Expect{Error: "undefined name"}
	problems = Check(q, out)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "got success")

	bad := Query{CQL: "SELECT w FROM t", Expect: &Expect{Error: "undefined name w"}}
	out = env.Run(ctx, bad)
	require.Error(t, out.Err)
	assert.Empty(t, Check(bad, out))

	bad.Expect = nil
	assert.Len(t, Check(bad, out), 1)
}

func TestExplain(t *testing.T) {
	s, err := Parse([]byte(tinyScenario))
	require.NoError(t, err)
	env := setup(t, s)

	expl, err := env.Explain(context.Background(), Query{CQL: "SELECT v FROM t WHERE k = ? AND c > ?", Values: []interface{}{1, 1}})
	require.NoError(t, err)
	text := expl.String()
	assert.Contains(t, text, "Select ks.t\n  bound: k int, c int\n  selection: v\n")
	assert.Contains(t, text, "partitions: key (1)")

	_, err = env.Explain(context.Background(), Query{CQL: "SELEKT"})
	require.Error(t, err)
}
