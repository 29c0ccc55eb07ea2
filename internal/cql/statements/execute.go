package statements

import (
	"context"
	"fmt"

	"github.com/dshills/QuantaCQL/internal/cql/plan"
	"github.com/dshills/QuantaCQL/internal/cql/resultset"
	"github.com/dshills/QuantaCQL/internal/cql/selection"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
	"github.com/dshills/QuantaCQL/internal/storage"
)

// DefaultPageSize is the internal page size used when none is configured.
const DefaultPageSize = 10000

// Stage is a step of one execution.
type Stage int

const (
	StageCompiled Stage = iota
	StagePlanned
	StageRowsReceived
	StageAssembled
	StageEmitted
)

func (s Stage) String() string {
	switch s {
	case StageCompiled:
		return "compiled"
	case StagePlanned:
		return "planned"
	case StageRowsReceived:
		return "rows_received"
	case StageAssembled:
		return "assembled"
	case StageEmitted:
		return "emitted"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// QueryOptions are the per-execution inputs.
type QueryOptions struct {
	Values []types.Value
	// PageSize is the internal storage page size; zero means
	// DefaultPageSize.
	PageSize int
	// NativeExclusiveBounds tells the planner that storage honours
	// exclusive clustering bounds itself.
	NativeExclusiveBounds bool
	// OnStage, when set, is called as the execution enters each stage.
	OnStage func(Stage)
}

func (o QueryOptions) enter(stage Stage) {
	if o.OnStage != nil {
		o.OnStage(stage)
	}
}

func (o QueryOptions) pageSize() int {
	if o.PageSize <= 0 {
		return DefaultPageSize
	}
	return o.PageSize
}

// Plan binds opts.Values and returns the read command an execution would
// issue.
func (s *SelectStatement) Plan(opts QueryOptions) (*plan.ReadCommand, error) {
	if err := s.checkArity(opts.Values); err != nil {
		return nil, err
	}
	limit, limited, err := s.limit.Bind(opts.Values)
	if err != nil {
		return nil, err
	}
	return s.plan(opts, limit, limited)
}

func (s *SelectStatement) plan(opts QueryOptions, limit int, limited bool) (*plan.ReadCommand, error) {
	bound, err := s.restrictions.Bind(opts.Values)
	if err != nil {
		return nil, err
	}
	return plan.Build(plan.Params{
		Schema:                s.schema,
		Restrictions:          bound,
		Selected:              s.selection.RequiredColumns(),
		Reversed:              s.ordering.IsReversed(),
		Limit:                 limit,
		Limited:               limited,
		Unbounded:             s.restrictions.HasRowFilter() || s.comparator != nil,
		Distinct:              s.distinct,
		PageSize:              opts.pageSize(),
		NativeExclusiveBounds: opts.NativeExclusiveBounds,
	}), nil
}

func (s *SelectStatement) checkArity(values []types.Value) error {
	if len(values) != len(s.variables) {
		return errors.BoundArityError(len(s.variables), len(values))
	}
	return nil
}

// Execute runs the statement. Errors from r are returned unchanged, and
// nothing is returned on error.
func (s *SelectStatement) Execute(ctx context.Context, r storage.Reader, opts QueryOptions) (*resultset.ResultSet, error) {
	opts.enter(StageCompiled)
	if err := s.checkArity(opts.Values); err != nil {
		return nil, err
	}
	limit, limited, err := s.limit.Bind(opts.Values)
	if err != nil {
		return nil, err
	}

	rs := resultset.New(s.selection.Columns(), s.selection.HiddenCount())
	if limited && limit == 0 {
		rs.DropHidden()
		opts.enter(StageEmitted)
		return rs, nil
	}

	cmd, err := s.plan(opts, limit, limited)
	if err != nil {
		return nil, err
	}
	opts.enter(StagePlanned)
	if cmd.Empty {
		rs.DropHidden()
		opts.enter(StageEmitted)
		return rs, nil
	}

	res, err := r.ExecuteRead(ctx, cmd)
	if err != nil {
		return nil, err
	}
	opts.enter(StageRowsReceived)

	if err := s.assemble(rs, cmd, res, opts.Values); err != nil {
		return nil, err
	}
	opts.enter(StageAssembled)

	if s.comparator != nil {
		rs.Sort(s.comparator)
	}
	if cmd.Reversed && !res.NativeReversed {
		rs.Reverse()
	}
	if limited {
		rs.Trim(limit)
	}
	rs.DropHidden()
	opts.enter(StageEmitted)
	return rs, nil
}

// assemble folds the fetched partitions into rows.
func (s *SelectStatement) assemble(rs *resultset.ResultSet, cmd *plan.ReadCommand, res *storage.Result, values []types.Value) error {
	for _, p := range res.Partitions {
		if len(p.Rows) == 0 {
			// a partition holding only static cells yields one row, unless
			// the query looked for specific rows
			if p.Static == nil || s.restrictions.UsesSecondaryIndexing() || s.restrictions.HasClusteringColumnsRestriction() {
				continue
			}
			if err := s.addRow(rs, cmd, selection.Input{PartitionKey: p.Key, Static: p.Static}, values); err != nil {
				return err
			}
			continue
		}
		for _, row := range p.Rows {
			if cmd.IsExcluded(row.Clustering) {
				continue
			}
			in := selection.Input{
				PartitionKey: p.Key,
				Clustering:   row.Clustering,
				Cells:        row.Cells,
				Static:       p.Static,
			}
			if err := s.addRow(rs, cmd, in, values); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SelectStatement) addRow(rs *resultset.ResultSet, cmd *plan.ReadCommand, in selection.Input, values []types.Value) error {
	if !cmd.Filter.Matches(in.Value) {
		return nil
	}
	row, err := s.selection.AssembleRow(in, values)
	if err != nil {
		return err
	}
	rs.Add(row)
	return nil
}
