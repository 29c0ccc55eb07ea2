// Package storage defines the read collaborator the query core executes
// plans against.
package storage

import (
	"context"

	"github.com/dshills/QuantaCQL/internal/cql/plan"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
)

// ErrClosed is returned when reading from a closed store.
var ErrClosed = errors.New(errors.ServerError, "storage is closed").WithClass(errors.ClassExecution)

// Reader executes read commands. Errors such as read timeouts or
// unavailable replicas are returned as *errors.Error of class execution
// and are passed to the client unchanged.
type Reader interface {
	ExecuteRead(ctx context.Context, cmd *plan.ReadCommand) (*Result, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, cmd *plan.ReadCommand) (*Result, error)

func (f ReaderFunc) ExecuteRead(ctx context.Context, cmd *plan.ReadCommand) (*Result, error) {
	return f(ctx, cmd)
}

// Row is one clustering row. Cells holds the requested regular columns
// present in the row.
type Row struct {
	Clustering []types.Value
	Cells      map[string]types.Value
}

// Partition is the part of one partition that matched a read. Static is
// nil unless the read requested static columns and the partition has a
// static row.
type Partition struct {
	Key    []types.Value
	Static map[string]types.Value
	Rows   []Row
}

// Result is the answer to a read command.
type Result struct {
	Partitions []Partition
	// NativeReversed is set when rows of a reversed command already come
	// back in reverse clustering order.
	NativeReversed bool
}

// RowCount returns the number of clustering rows in the result.
func (r *Result) RowCount() int {
	n := 0
	for _, p := range r.Partitions {
		n += len(p.Rows)
	}
	return n
}
