package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/QuantaCQL/internal/scenario"
)

// QueryResult holds the result of a single query.
type QueryResult struct {
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	Rows     int      `json:"rows"`
	Problems []string `json:"problems,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scenario string        `json:"scenario"`
	Queries  []QueryResult `json:"queries"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run the queries of a scenario and check their results",
		Long: `Load the scenario rows, run each query and compare the outcome with
its expectation.

Exit codes:
  0 - All queries met their expectation
  1 - One or more queries did not
  2 - Command error (bad config, unreadable scenario, etc.)

Examples:
  cqlplan run scenarios/sensors.yaml
  cqlplan run scenarios/sensors.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, opts, args[0])
		},
	}
}

func runScenario(cmd *cobra.Command, opts *RootOptions, path string) error {
	sess, err := opts.open(path, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	text := opts.Format != "json"
	result := RunResult{Scenario: sess.scenario.Name}
	for i, q := range sess.queries {
		outcome := sess.env.Run(cmd.Context(), q)
		qr := QueryResult{Name: q.Label(i), Problems: scenario.Check(q, outcome)}
		qr.Pass = len(qr.Problems) == 0
		if outcome.Result != nil {
			qr.Rows = outcome.Result.Size()
		}
		if qr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Queries = append(result.Queries, qr)

		if !text {
			continue
		}
		fmt.Fprintf(out, "-- %s\n%s\n", qr.Name, q.CQL)
		switch {
		case outcome.Err != nil:
			fmt.Fprintf(out, "error: %v\n", outcome.Err)
		case outcome.Result != nil:
			fmt.Fprint(out, outcome.Result.String())
		}
		for _, p := range qr.Problems {
			fmt.Fprintf(out, "FAIL: %s\n", p)
		}
		fmt.Fprintln(out)
	}

	if text {
		fmt.Fprintf(out, "%s: %d passed, %d failed\n", result.Scenario, result.Passed, result.Failed)
	} else if err := writeJSON(out, result); err != nil {
		return err
	}
	if err := opts.writeMetrics(out); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d queries failed", result.Failed, len(result.Queries)))
	}
	return nil
}
