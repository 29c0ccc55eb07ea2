// Package query is the entry point of the read path: it resolves the
// table of a statement, prepares and caches it, and executes it against
// storage.
package query

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/QuantaCQL/internal/catalog"
	"github.com/dshills/QuantaCQL/internal/config"
	"github.com/dshills/QuantaCQL/internal/cql/ast"
	"github.com/dshills/QuantaCQL/internal/cql/plan"
	"github.com/dshills/QuantaCQL/internal/cql/resultset"
	"github.com/dshills/QuantaCQL/internal/cql/statements"
	"github.com/dshills/QuantaCQL/internal/cql/types"
	"github.com/dshills/QuantaCQL/internal/errors"
	"github.com/dshills/QuantaCQL/internal/log"
	"github.com/dshills/QuantaCQL/internal/metrics"
	"github.com/dshills/QuantaCQL/internal/storage"
)

// Subscriber is implemented by catalogs that report schema changes.
type Subscriber interface {
	Subscribe(l catalog.Listener)
}

// Processor prepares, caches and executes SELECT statements. It is safe
// for concurrent use.
type Processor struct {
	catalog catalog.Catalog
	reader  storage.Reader
	cfg     config.QueryConfig
	cache   *StatementCache
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  log.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithMetrics sets the collectors. The default is unregistered
// collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l log.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a processor. When cat reports schema changes the
// processor drops the statements of changed tables.
func NewProcessor(cat catalog.Catalog, r storage.Reader, cfg config.QueryConfig, opts ...Option) *Processor {
	p := &Processor{
		catalog: cat,
		reader:  r,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.cfg.StatementCacheSize <= 0 {
		p.cfg.StatementCacheSize = config.DefaultQueryConfig().StatementCacheSize
	}
	cache, err := NewStatementCache(p.cfg.StatementCacheSize, p.metrics)
	if err != nil {
		// unreachable with a positive size
		panic(err)
	}
	p.cache = cache

	if sub, ok := cat.(Subscriber); ok {
		sub.Subscribe(p.onSchemaChange)
	}
	return p
}

func (p *Processor) onSchemaChange(change catalog.SchemaChange) {
	n := p.InvalidateTable(change.Keyspace, change.Table)
	if n > 0 {
		p.logger.Info("prepared statements invalidated",
			log.Table(change.Keyspace, change.Table),
			log.String("change", change.Kind.String()),
			log.Int("statements", n))
	}
}

// InvalidateTable drops the prepared statements on keyspace.table.
func (p *Processor) InvalidateTable(keyspace, table string) int {
	return p.cache.InvalidateTable(keyspace, table)
}

// CachedStatements returns the number of cached statements.
func (p *Processor) CachedStatements() int {
	return p.cache.Len()
}

// Prepare compiles raw, or returns the cached statement with the same
// text. keyspace qualifies statements that name none. Concurrent
// preparations of one statement compile it once.
func (p *Processor) Prepare(ctx context.Context, keyspace string, raw *ast.SelectStatement) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw = raw.WithDefaultKeyspace(keyspace)
	if raw.Keyspace.IsZero() {
		return nil, errors.InvalidRequestf("no keyspace has been specified. USE a keyspace, or explicitly specify keyspace.tablename")
	}
	text := raw.String()
	id := ComputeID(raw.Keyspace.Name(), text)
	if prepared, ok := p.cache.Get(id); ok {
		return prepared, nil
	}

	ch := p.group.DoChan(id.String(), func() (interface{}, error) {
		if prepared, ok := p.cache.Peek(id); ok {
			return prepared, nil
		}
		return p.prepare(id, text, raw)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Prepared), nil
	}
}

func (p *Processor) prepare(id StatementID, text string, raw *ast.SelectStatement) (*Prepared, error) {
	keyspace, table := raw.Keyspace.Name(), raw.Table.Name()
	logger := p.logger.With(log.Table(keyspace, table))

	generation := p.cache.Generation(keyspace, table)
	schema, err := p.catalog.GetTable(keyspace, table)
	if err != nil {
		p.metrics.Prepares.WithLabelValues("error").Inc()
		return nil, err
	}
	stmt, err := statements.Prepare(schema, p.catalog, raw)
	if err != nil {
		p.metrics.Prepares.WithLabelValues("error").Inc()
		logger.Debug("statement rejected", log.String("statement", text), log.Err(err))
		return nil, err
	}

	prepared := &Prepared{
		ID:         id,
		Keyspace:   schema.Keyspace,
		Table:      schema.Name,
		Text:       text,
		Statement:  stmt,
		PreparedAt: time.Now(),
	}
	p.metrics.Prepares.WithLabelValues("ok").Inc()
	if !p.cache.Add(prepared, generation) {
		// the schema changed while compiling: serve this caller, cache nothing
		logger.Info("statement not cached, schema changed during preparation",
			log.String("statement_id", id.String()))
		return prepared, nil
	}
	logger.Debug("statement prepared",
		log.String("statement_id", id.String()),
		log.Int("bound_terms", stmt.BoundTermCount()),
		log.String("selection", stmt.Selection().String()),
		log.Bool("secondary_index", stmt.Restrictions().UsesSecondaryIndexing()),
		log.Bool("post_sort", stmt.HasComparator()))
	return prepared, nil
}

// Execute runs a cached statement. An unknown id yields an Unprepared
// error; the client is expected to prepare again.
func (p *Processor) Execute(ctx context.Context, id StatementID, values []types.Value) (*resultset.ResultSet, error) {
	prepared, ok := p.cache.Get(id)
	if !ok {
		return nil, errors.UnpreparedError(id.String())
	}
	return p.run(ctx, prepared, values)
}

// Process prepares raw, through the cache, and runs it.
func (p *Processor) Process(ctx context.Context, keyspace string, raw *ast.SelectStatement, values []types.Value) (*resultset.ResultSet, error) {
	prepared, err := p.Prepare(ctx, keyspace, raw)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, prepared, values)
}

// Explanation is a prepared statement with the read command one
// execution of it would issue.
type Explanation struct {
	Prepared *Prepared
	Command  *plan.ReadCommand
}

func (e *Explanation) String() string {
	return e.Prepared.Statement.String() + e.Command.String()
}

// Explain prepares raw and returns the read command values would run.
func (p *Processor) Explain(ctx context.Context, keyspace string, raw *ast.SelectStatement, values []types.Value) (*Explanation, error) {
	prepared, err := p.Prepare(ctx, keyspace, raw)
	if err != nil {
		return nil, err
	}
	cmd, err := prepared.Statement.Plan(p.options(values, time.Now()))
	if err != nil {
		return nil, err
	}
	return &Explanation{Prepared: prepared, Command: cmd}, nil
}

func (p *Processor) options(values []types.Value, start time.Time) statements.QueryOptions {
	return statements.QueryOptions{
		Values:                values,
		PageSize:              p.cfg.DefaultPageSize,
		NativeExclusiveBounds: p.cfg.NativeExclusiveBounds,
		OnStage: func(s statements.Stage) {
			p.metrics.StageDuration.WithLabelValues(s.String()).Observe(time.Since(start).Seconds())
		},
	}
}

func (p *Processor) run(ctx context.Context, prepared *Prepared, values []types.Value) (*resultset.ResultSet, error) {
	start := time.Now()
	rs, err := prepared.Statement.Execute(ctx, p.storageReader(), p.options(values, start))
	p.metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := "execution_error"
		if errors.IsClass(err, errors.ClassBind) {
			outcome = "bind_error"
		} else {
			p.logger.Warn("read failed",
				log.Table(prepared.Keyspace, prepared.Table),
				log.String("statement_id", prepared.ID.String()),
				log.Duration("elapsed", time.Since(start)),
				log.Err(err))
		}
		p.metrics.Executions.WithLabelValues(outcome).Inc()
		return nil, err
	}
	p.metrics.Executions.WithLabelValues("ok").Inc()
	p.metrics.RowsReturned.Observe(float64(rs.Size()))
	return rs, nil
}

// storageReader bounds each read by the configured storage timeout. A
// read cut short by it fails with a read timeout.
func (p *Processor) storageReader() storage.Reader {
	timeout := p.cfg.StorageTimeout
	if timeout <= 0 {
		return p.reader
	}
	return storage.ReaderFunc(func(ctx context.Context, cmd *plan.ReadCommand) (*storage.Result, error) {
		readCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		res, err := p.reader.ExecuteRead(readCtx, cmd)
		if err != nil && stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.ReadTimeoutError(0, 1).WithCause(err)
		}
		return res, err
	})
}
