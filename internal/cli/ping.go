package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesokit/converge/internal/eventually"
	"github.com/mesokit/converge/internal/marathon"
)

// PingOptions holds flags for the ping command.
type PingOptions struct {
	*RootOptions
	URL      string
	Attempts int
	Interval time.Duration
}

// PingResult is the payload for ping output.
type PingResult struct {
	URL      string `json:"url"`
	Attempts int    `json:"attempts"`
	Elapsed  string `json:"elapsed"`
}

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Wait for the cluster endpoint to come up",
		Long: `Poll the cluster /ping endpoint until it answers 200 OK.

Exit codes:
  0 - Endpoint answered within the attempt budget
  1 - Endpoint never came up
  2 - Command error (invalid flags)

Examples:
  converge ping --url http://leader.mesos:8080
  converge ping --url http://leader.mesos:8080 --attempts 60 --interval 2s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "cluster API endpoint (required)")
	cmd.Flags().IntVar(&opts.Attempts, "attempts", eventually.DefaultMaxAttempts, "attempt budget")
	cmd.Flags().DurationVar(&opts.Interval, "interval", eventually.DefaultWaitInterval, "wait between attempts")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runPing(opts *PingOptions, cmd *cobra.Command) error {
	client, err := marathon.NewClient(opts.URL, marathon.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --url", err)
	}
	if opts.Attempts < 1 {
		return NewExitError(ExitCommandError, "--attempts must be at least 1")
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	probe := func() (any, error) {
		return client.Ping(cmd.Context())
	}
	outcome, err := eventually.Verify(probe, eventually.EqualTo(http.StatusOK), eventually.Policy{
		WaitInterval: opts.Interval,
		MaxAttempts:  opts.Attempts,
	})
	if err != nil {
		formatter.Error("E_ENDPOINT_DOWN", fmt.Sprintf("endpoint did not come up: %v", err), nil)
		return NewExitError(ExitFailure, "endpoint did not come up")
	}

	if opts.Format == "json" {
		return formatter.Success(PingResult{
			URL:      opts.URL,
			Attempts: outcome.Attempts,
			Elapsed:  outcome.Elapsed.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "endpoint up after %d attempt(s) (%s)\n",
		outcome.Attempts, outcome.Elapsed.Round(time.Millisecond))
	return nil
}
