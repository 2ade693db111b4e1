package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesokit/converge/internal/journal"
	"github.com/mesokit/converge/internal/marathon"
	"github.com/mesokit/converge/internal/scenario"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	URL     string // cluster API endpoint
	Journal string // journal database path, empty disables journaling
	Filter  string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name      string   `json:"name"`
	Pass      bool     `json:"pass"`
	Steps     int      `json:"steps"`
	Elapsed   string   `json:"elapsed"`
	Errors    []string `json:"errors,omitempty"`
	JournalID int64    `json:"journal_id,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenarios-dir-or-file>...",
		Short: "Run verification scenarios against a cluster",
		Long: `Run verification scenarios against a live cluster endpoint.

Each scenario submits app or group definitions, waits for deployments
to drain, and asserts on observed state until it matches or the
attempt budget runs out.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreachable journal, etc.)

Examples:
  converge check ./scenarios --url http://leader.mesos:8080
  converge check ./scenarios --url http://leader.mesos:8080 --filter "app-*"
  converge check ./scenarios --url http://leader.mesos:8080 --journal runs.db
  converge check app.yaml --url http://leader.mesos:8080 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "cluster API endpoint (required)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database path (optional)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	client, err := marathon.NewClient(opts.URL)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --url", err)
	}

	var jnl *journal.Journal
	if opts.Journal != "" {
		jnl, err = journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "open journal", err)
		}
		defer jnl.Close()
	}

	scenarioFiles, err := collectScenarioFiles(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputCheckJSON(cmd, CheckResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	runner := scenario.NewRunner(client, scenario.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))

	result := CheckResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, file := range scenarioFiles {
		scenResult := runOneScenario(cmd, opts, runner, jnl, file)
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputCheckJSON(cmd, result)
	}
	return outputCheckText(cmd, result)
}

// collectScenarioFiles expands the given paths into YAML scenario files.
// Directories are walked; plain files are taken as-is.
func collectScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			ext := filepath.Ext(path)
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			if filter != "" {
				name := strings.TrimSuffix(filepath.Base(path), ext)
				matched, err := filepath.Match(filter, name)
				if err != nil {
					return fmt.Errorf("invalid filter pattern: %w", err)
				}
				if !matched {
					return nil
				}
			}

			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// runOneScenario loads and runs a single scenario file, journaling the
// outcome when a journal is configured.
func runOneScenario(cmd *cobra.Command, opts *CheckOptions, runner *scenario.Runner, jnl *journal.Journal, file string) ScenarioResult {
	w := cmd.OutOrStdout()

	sc, err := scenario.Load(file)
	if err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(w, "FAIL %s\n", filepath.Base(file))
			fmt.Fprintf(w, "  load error: %v\n", err)
		}
		return ScenarioResult{
			Name:   filepath.Base(file),
			Pass:   false,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	started := time.Now()
	result := runner.Run(cmd.Context(), sc)

	scenResult := ScenarioResult{
		Name:    sc.Name,
		Pass:    result.Pass,
		Steps:   len(result.Trace),
		Elapsed: result.Elapsed.Round(time.Millisecond).String(),
		Errors:  result.Errors,
	}
	if len(scenResult.Errors) == 0 {
		scenResult.Errors = nil
	}

	if jnl != nil {
		id, err := jnl.WriteRun(cmd.Context(), journal.RunRecord{
			Scenario:  sc.Name,
			Pass:      result.Pass,
			Steps:     len(result.Trace),
			Errors:    result.Errors,
			StartedAt: started,
			Elapsed:   result.Elapsed,
		})
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: journal write failed for %s: %v\n", sc.Name, err)
		} else {
			scenResult.JournalID = id
		}
	}

	if opts.Format != "json" {
		if result.Pass {
			fmt.Fprintf(w, "ok   %s (%d steps, %s)\n", sc.Name, len(result.Trace), scenResult.Elapsed)
		} else {
			fmt.Fprintf(w, "FAIL %s\n", sc.Name)
			for _, e := range result.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}

	return scenResult
}

// outputCheckJSON outputs the check result as JSON.
func outputCheckJSON(cmd *cobra.Command, result CheckResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputCheckText outputs the check result as text.
func outputCheckText(cmd *cobra.Command, result CheckResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "All scenarios passed")
	return nil
}
