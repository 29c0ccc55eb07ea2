// Package cli implements the cqlplan command line.
package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/dshills/QuantaCQL/internal/config"
	"github.com/dshills/QuantaCQL/internal/log"
	"github.com/dshills/QuantaCQL/internal/metrics"
	"github.com/dshills/QuantaCQL/internal/scenario"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	LogLevel   string
	Format     string // "json" | "text"
	Query      string
	Metrics    bool

	// Registry receives the query metrics when Metrics is set.
	Registry *prometheus.Registry
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cqlplan",
		Short: "Plan and run CQL SELECT statements against scenario files",
		Long: `cqlplan loads a scenario file (a keyspace schema, rows and queries)
into an in-memory store and either explains the read each query issues or
runs the queries and checks their expected results.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Query, "query", "q", "", "only the named query")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "print the query metrics after the queries, in Prometheus text format")

	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is a loaded scenario ready to run.
type session struct {
	cfg      *config.Config
	scenario *scenario.Scenario
	env      *scenario.Environment
	queries  []scenario.Query
}

// open loads configuration and the scenario at path and builds its
// environment. Logs go to errOut.
func (o *RootOptions) open(path string, errOut io.Writer) (*session, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --log-level", err)
		}
	}
	logger := log.Build(cfg.Log, errOut)

	m := metrics.Nop()
	if o.Metrics {
		if !cfg.Metrics.Enabled {
			return nil, NewExitError(ExitCommandError, "--metrics requires metrics.enabled in the configuration")
		}
		if o.Registry == nil {
			o.Registry = prometheus.NewRegistry()
		}
		m = metrics.New(o.Registry, cfg.Metrics.Namespace)
	}

	s, err := scenario.LoadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	queries := s.Queries
	if o.Query != "" {
		q, ok := s.Find(o.Query)
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenario %s has no query named %s", s.Name, o.Query))
		}
		queries = []scenario.Query{q}
	}

	env, err := scenario.Setup(s, cfg, logger, m)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up scenario", err)
	}
	logger.Debug("scenario loaded",
		"scenario", s.Name,
		"keyspace", env.Keyspace,
		"queries", len(queries))

	return &session{cfg: cfg, scenario: s, env: env, queries: queries}, nil
}

// writeMetrics prints the gathered query metrics when --metrics is set.
func (o *RootOptions) writeMetrics(w io.Writer) error {
	if !o.Metrics || o.Registry == nil {
		return nil
	}
	families, err := o.Registry.Gather()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to gather metrics", err)
	}
	fmt.Fprintln(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
