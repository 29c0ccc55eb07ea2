package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/config"
	"github.com/dshills/QuantaCQL/internal/cql/parser"
	"github.com/dshills/QuantaCQL/internal/cql/plan"
	"github.com/dshills/QuantaCQL/internal/cql/query"
	"github.com/dshills/QuantaCQL/internal/cql/resultset"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/log"
	"github.com/dshills/QuantaCQL/internal/metrics"
	"github.com/dshills/QuantaCQL/internal/storage/memstore"
)

// Environment is a loaded scenario: catalog, populated store and a
// processor over them.
type Environment struct {
	Keyspace  string
	Catalog   *catalog.MemoryCatalog
	Store     *memstore.Store
	Processor *query.Processor
}

// Setup builds the environment of s.
func Setup(s *Scenario, cfg *config.Config, logger log.Logger, m *metrics.Metrics) (*Environment, error) {
	cat := catalog.NewMemoryCatalog()
	if err := s.Schema.Apply(cat); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	keyspace := catalog.NormalizeIdentifier(s.Schema.Keyspace)
	store := memstore.New(memstore.WithNativeReversal(cfg.Storage.NativeReversal))

	for _, td := range s.Data {
		schema, err := cat.GetTable(keyspace, td.Table)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		for i, row := range td.Rows {
			cells, err := Cells(schema, row)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: table %s row %d: %w", s.Name, td.Table, i, err)
			}
			if err := store.Insert(schema, cells); err != nil {
				return nil, fmt.Errorf("scenario %s: table %s row %d: %w", s.Name, td.Table, i, err)
			}
		}
	}

	p := query.NewProcessor(cat, store, cfg.Query, query.WithLogger(logger), query.WithMetrics(m))
	return &Environment{Keyspace: keyspace, Catalog: cat, Store: store, Processor: p}, nil
}

// Cells converts a plain row into typed cells of schema.
func Cells(schema *catalog.Schema, row map[string]interface{}) (map[string]types.Value, error) {
	cells := make(map[string]types.Value, len(row))
	for name, raw := range row {
		n := catalog.NormalizeIdentifier(name)
		col := schema.Column(n)
		if col == nil {
			return nil, fmt.Errorf("unknown column %s", name)
		}
		v, err := col.Type.Coerce(plainValue(raw))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		cells[n] = v
	}
	return cells, nil
}

func plainValue(raw interface{}) types.Value {
	if raw == nil {
		return types.NewNullValue()
	}
	return types.NewValue(raw)
}

// BoundValues converts the plain bound values of q.
func (q Query) BoundValues() []types.Value {
	out := make([]types.Value, len(q.Values))
	for i, raw := range q.Values {
		out[i] = plainValue(raw)
	}
	return out
}

// Outcome is what running a query produced.
type Outcome struct {
	Plan   *plan.ReadCommand
	Result *resultset.ResultSet
	Err    error
}

// Explain returns the compiled statement of q and its read command.
func (e *Environment) Explain(ctx context.Context, q Query) (*query.Explanation, error) {
	raw, err := parser.Parse(q.CQL)
	if err != nil {
		return nil, err
	}
	return e.Processor.Explain(ctx, e.Keyspace, raw, q.BoundValues())
}

// Run plans and executes q.
func (e *Environment) Run(ctx context.Context, q Query) Outcome {
	raw, err := parser.Parse(q.CQL)
	if err != nil {
		return Outcome{Err: err}
	}
	values := q.BoundValues()
	expl, err := e.Processor.Explain(ctx, e.Keyspace, raw, values)
	if err != nil {
		return Outcome{Err: err}
	}
	rs, err := e.Processor.Process(ctx, e.Keyspace, raw, values)
	return Outcome{Plan: expl.Command, Result: rs, Err: err}
}

// Check compares an outcome with the expectation of q and returns one
// message per mismatch.
func Check(q Query, out Outcome) []string {
	exp := q.Expect
	if exp == nil {
		if out.Err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", out.Err)}
		}
		return nil
	}
	if exp.Error != "" {
		if out.Err == nil {
			return []string{fmt.Sprintf("expected error containing %q, got success", exp.Error)}
		}
		if !strings.Contains(out.Err.Error(), exp.Error) {
			return []string{fmt.Sprintf("expected error containing %q, got %v", exp.Error, out.Err)}
		}
		return nil
	}
	if out.Err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", out.Err)}
	}

	var problems []string
	if out.Plan != nil {
		text := out.Plan.String()
		for _, line := range exp.Plan {
			if !strings.Contains(text, line) {
				problems = append(problems, fmt.Sprintf("plan does not contain %q:\n%s", line, text))
			}
		}
	}
	if exp.Columns != nil {
		got := make([]string, len(out.Result.Columns))
		for i, c := range out.Result.Columns {
			got[i] = c.Name
		}
		if strings.Join(got, ",") != strings.Join(exp.Columns, ",") {
			problems = append(problems, fmt.Sprintf("expected columns %v, got %v", exp.Columns, got))
		}
	}
	return append(problems, checkRows(exp.Rows, out.Result)...)
}

func checkRows(want [][]interface{}, rs *resultset.ResultSet) []string {
	if len(want) != rs.Size() {
		return []string{fmt.Sprintf("expected %d rows, got %d:\n%s", len(want), rs.Size(), rs)}
	}
	var problems []string
	for i, row := range want {
		if len(row) != len(rs.Columns) {
			problems = append(problems, fmt.Sprintf("row %d: expected %d values, result has %d columns", i, len(row), len(rs.Columns)))
			continue
		}
		for j, raw := range row {
			col := rs.Columns[j]
			expected, err := col.Type.Coerce(plainValue(raw))
			if err != nil {
				problems = append(problems, fmt.Sprintf("row %d column %s: %v", i, col.Name, err))
				continue
			}
			got := rs.Rows[i][j]
			if expected.Null != got.Null || (!got.Null && col.Type.Compare(expected, got) != 0) {
				problems = append(problems, fmt.Sprintf("row %d column %s: expected %s, got %s", i, col.Name, expected, got))
			}
		}
	}
	return problems
}
