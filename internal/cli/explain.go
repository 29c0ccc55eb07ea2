package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// explainEntry is the JSON form of one explained query.
type explainEntry struct {
	Query   string   `json:"query"`
	CQL     string   `json:"cql"`
	Bound   []string `json:"bound,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Plan    string   `json:"plan,omitempty"`
	Error   string   `json:"error,omitempty"`

	text string
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <scenario>",
		Short: "Print the compiled statement and read command of each query",
		Long: `Compile each query of the scenario, bind its values and print the
compiled statement with the read command it would send to storage.
Nothing is read.

Examples:
  cqlplan explain scenarios/sensors.yaml
  cqlplan explain scenarios/sensors.yaml --query latest`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, opts, args[0])
		},
	}
}

func runExplain(cmd *cobra.Command, opts *RootOptions, path string) error {
	sess, err := opts.open(path, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var entries []explainEntry
	failed := 0
	for i, q := range sess.queries {
		entry := explainEntry{Query: q.Label(i), CQL: q.CQL}
		expl, err := sess.env.Explain(cmd.Context(), q)
		if err != nil {
			entry.Error = err.Error()
			failed++
			entries = append(entries, entry)
			continue
		}
		stmt := expl.Prepared.Statement
		for _, v := range stmt.Variables() {
			entry.Bound = append(entry.Bound, v.String())
		}
		for _, c := range stmt.ResultColumns() {
			entry.Columns = append(entry.Columns, c.Name)
		}
		entry.Plan = expl.Command.String()
		entry.text = expl.String()
		entries = append(entries, entry)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSON(out, entries); err != nil {
			return err
		}
	} else {
		for _, e := range entries {
			fmt.Fprintf(out, "-- %s\n%s\n", e.Query, e.CQL)
			if e.Error != "" {
				fmt.Fprintf(out, "error: %s\n\n", e.Error)
				continue
			}
			fmt.Fprintln(out, e.text)
		}
	}
	if err := opts.writeMetrics(out); err != nil {
		return err
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d queries failed to compile", failed, len(entries)))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
