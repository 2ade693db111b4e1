package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesokit/converge/internal/journal"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Journal  string
	Scenario string
	Limit    int
}

// ReportRow is one journaled run in report output.
type ReportRow struct {
	ID       int64    `json:"id"`
	Scenario string   `json:"scenario"`
	Pass     bool     `json:"pass"`
	Steps    int      `json:"steps"`
	Started  string   `json:"started"`
	Elapsed  string   `json:"elapsed"`
	Errors   []string `json:"errors,omitempty"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "List journaled scenario runs",
		Long: `List past scenario runs from a journal database, newest first.

Examples:
  converge report --journal runs.db
  converge report --journal runs.db --scenario app-converges --limit 10
  converge report --journal runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database path (required)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only runs of this scenario")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list, 0 for all")
	cmd.MarkFlagRequired("journal")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Journal); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Journal))
	}

	jnl, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer jnl.Close()

	records, err := jnl.ListRuns(cmd.Context(), opts.Scenario, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "list runs", err)
	}

	rows := make([]ReportRow, len(records))
	for i, rec := range records {
		rows[i] = ReportRow{
			ID:       rec.ID,
			Scenario: rec.Scenario,
			Pass:     rec.Pass,
			Steps:    rec.Steps,
			Started:  rec.StartedAt.Format(time.RFC3339),
			Elapsed:  rec.Elapsed.String(),
			Errors:   rec.Errors,
		}
		if len(rows[i].Errors) == 0 {
			rows[i].Errors = nil
		}
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: rows})
	}

	w := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, row := range rows {
		status := "ok  "
		if !row.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%4d  %s  %-30s  %2d steps  %8s  %s\n",
			row.ID, status, row.Scenario, row.Steps, row.Elapsed, row.Started)
	}
	return nil
}
