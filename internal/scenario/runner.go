package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/mesokit/converge/internal/eventually"
	"github.com/mesokit/converge/internal/fixture"
	"github.com/mesokit/converge/internal/marathon"
)

// Runner executes scenarios against one cluster endpoint.
type Runner struct {
	client *marathon.Client
	logger *slog.Logger
	sleep  func(time.Duration)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithSleep replaces the inter-attempt delay for every verification the
// runner performs. Tests inject a recorder here.
func WithSleep(sleep func(time.Duration)) RunnerOption {
	return func(r *Runner) { r.sleep = sleep }
}

// NewRunner creates a runner backed by the given client.
func NewRunner(client *marathon.Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a scenario's steps in order, stopping at the first failure.
// Failures are reported through the Result, not an error: a failing step
// is an observation about the cluster, not a harness malfunction.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *Result {
	result := NewResult(sc.Name)
	start := time.Now()

	// Original app id -> uniquified id, filled by unique_suffix creates.
	aliases := map[string]string{}

	for i, step := range sc.Steps {
		event := TraceEvent{Step: i, Action: step.Action}

		attempts, detail, err := r.runStep(ctx, sc, step, aliases)
		event.Target = resolveID(aliases, stepTarget(step))
		event.Attempts = attempts
		if err != nil {
			event.Outcome = "failed"
			event.Detail = err.Error()
			result.AddTrace(event)
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Action, err))
			r.logger.Error("step failed", "scenario", sc.Name, "step", i, "action", step.Action, "error", err)
			break
		}

		event.Outcome = "ok"
		event.Detail = detail
		result.AddTrace(event)
		r.logger.Info("step completed", "scenario", sc.Name, "step", i, "action", step.Action, "attempts", attempts)
	}

	result.Elapsed = time.Since(start)
	return result
}

// runStep dispatches one step. It returns the attempt count for steps that
// poll, and a short human-readable detail for the trace. App ids pass
// through the alias map so steps targeting a unique_suffix create resolve
// to the id actually submitted.
func (r *Runner) runStep(ctx context.Context, sc *Scenario, step Step, aliases map[string]string) (int, string, error) {
	switch step.Action {
	case ActionCreateApp:
		def, err := decodeApp(step.App)
		if err != nil {
			return 0, "", err
		}
		if step.UniqueSuffix {
			base := def.ID
			def.ID = fixture.MakeIDIn(path.Dir(base), path.Base(base))
			aliases[base] = def.ID
		}
		app, err := r.client.CreateApp(ctx, def)
		if err != nil {
			return 0, "", err
		}
		return 0, fmt.Sprintf("created %s", app.ID), nil

	case ActionUpdateApp:
		def, err := decodeApp(step.App)
		if err != nil {
			return 0, "", err
		}
		def.ID = resolveID(aliases, def.ID)
		resp, err := r.client.UpdateApp(ctx, def, step.Force)
		if err != nil {
			return 0, "", err
		}
		return 0, fmt.Sprintf("deployment %s", resp.DeploymentID), nil

	case ActionScaleApp:
		resp, err := r.client.ScaleApp(ctx, resolveID(aliases, step.AppID), *step.Instances, step.Force)
		if err != nil {
			return 0, "", err
		}
		return 0, fmt.Sprintf("scaled to %d, deployment %s", *step.Instances, resp.DeploymentID), nil

	case ActionRestartApp:
		resp, err := r.client.RestartApp(ctx, resolveID(aliases, step.AppID), step.Force)
		if err != nil {
			return 0, "", err
		}
		return 0, fmt.Sprintf("deployment %s", resp.DeploymentID), nil

	case ActionDeleteApp:
		if _, err := r.client.DeleteApp(ctx, resolveID(aliases, step.AppID), step.Force); err != nil {
			return 0, "", err
		}
		return 0, "deleted", nil

	case ActionKillTasks:
		if err := r.client.KillTasks(ctx, resolveID(aliases, step.AppID), step.TaskIDs, step.Scale); err != nil {
			return 0, "", err
		}
		return 0, fmt.Sprintf("killed %d task(s)", len(step.TaskIDs)), nil

	case ActionCreateGroup:
		group, err := decodeGroup(step.Group)
		if err != nil {
			return 0, "", err
		}
		resp, err := r.client.CreateGroup(ctx, group)
		if err != nil {
			return 0, "", err
		}
		return 0, fmt.Sprintf("deployment %s", resp.DeploymentID), nil

	case ActionDeleteGroup:
		if _, err := r.client.DeleteGroup(ctx, step.GroupID, step.Force); err != nil {
			return 0, "", err
		}
		return 0, "deleted", nil

	case ActionWaitDeployments:
		scope := marathon.DeploymentScope{AppID: resolveID(aliases, step.AppID)}
		outcome, err := r.client.WaitForDeployments(ctx, scope, r.policyFor(sc, step))
		if err != nil {
			return 0, "", err
		}
		return outcome.Attempts, "no deployments in flight", nil

	case ActionAssertApp:
		probe := func() (any, error) {
			return r.client.GetApp(ctx, resolveID(aliases, step.AppID))
		}
		outcome, err := eventually.Verify(probe, eventually.HasFields(step.Expect), r.policyFor(sc, step))
		if err != nil {
			return 0, "", err
		}
		return outcome.Attempts, "app state matched", nil

	case ActionAssertTasks:
		probe := func() (any, error) {
			return r.client.Tasks(ctx, resolveID(aliases, step.AppID))
		}
		outcome, err := eventually.Verify(probe, eventually.HasLen(*step.Count), r.policyFor(sc, step))
		if err != nil {
			return 0, "", err
		}
		return outcome.Attempts, fmt.Sprintf("%d task(s) running", *step.Count), nil

	case ActionPing:
		probe := func() (any, error) {
			return r.client.Ping(ctx)
		}
		outcome, err := eventually.Verify(probe, eventually.EqualTo(http.StatusOK), r.policyFor(sc, step))
		if err != nil {
			return 0, "", err
		}
		return outcome.Attempts, "endpoint up", nil

	default:
		// Load validation rejects unknown actions; reaching this is a
		// harness bug.
		return 0, "", fmt.Errorf("unknown action %q", step.Action)
	}
}

// policyFor builds the retry policy for a polling step: scenario defaults,
// overridden per step, always with the API fault classifier.
func (r *Runner) policyFor(sc *Scenario, step Step) eventually.Policy {
	policy := eventually.Policy{
		WaitInterval: sc.Defaults.WaitInterval.Std(),
		MaxAttempts:  sc.Defaults.MaxAttempts,
		Retryable:    marathon.Retryable,
		Sleep:        r.sleep,
	}
	if step.WaitInterval > 0 {
		policy.WaitInterval = step.WaitInterval.Std()
	}
	if step.MaxAttempts > 0 {
		policy.MaxAttempts = step.MaxAttempts
	}
	return policy
}

// resolveID maps an original app id to the uniquified id a unique_suffix
// create submitted. Ids without an alias pass through unchanged.
func resolveID(aliases map[string]string, id string) string {
	if unique, ok := aliases[id]; ok {
		return unique
	}
	return id
}

func stepTarget(step Step) string {
	switch {
	case step.AppID != "":
		return step.AppID
	case step.GroupID != "":
		return step.GroupID
	case step.App != nil:
		if id, ok := step.App["id"].(string); ok {
			return id
		}
	case step.Group != nil:
		if id, ok := step.Group["id"].(string); ok {
			return id
		}
	}
	return ""
}

// decodeApp converts a raw YAML app definition into the typed wire form.
// The round trip through JSON applies the same field names the API uses,
// so scenario files read like /v2/apps payloads.
func decodeApp(raw map[string]any) (marathon.AppDefinition, error) {
	var def marathon.AppDefinition
	if err := reencode(raw, &def); err != nil {
		return def, fmt.Errorf("decode app definition: %w", err)
	}
	if def.ID == "" {
		return def, fmt.Errorf("app definition needs an id")
	}
	return def, nil
}

func decodeGroup(raw map[string]any) (marathon.Group, error) {
	var group marathon.Group
	if err := reencode(raw, &group); err != nil {
		return group, fmt.Errorf("decode group definition: %w", err)
	}
	if group.ID == "" {
		return group, fmt.Errorf("group definition needs an id")
	}
	return group, nil
}

func reencode(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
