// Package scenario defines declarative verification scenarios and runs
// them against a live cluster.
//
// A scenario is a YAML file: a named sequence of steps that submit app or
// group definitions, wait for deployments to drain, and assert on observed
// state. Every assertion step builds its own retry policy from the
// scenario defaults plus per-step overrides, so the attempt cap is always
// explicit at the step that needs it.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Step action names.
const (
	ActionCreateApp       = "create_app"
	ActionUpdateApp       = "update_app"
	ActionScaleApp        = "scale_app"
	ActionRestartApp      = "restart_app"
	ActionDeleteApp       = "delete_app"
	ActionKillTasks       = "kill_tasks"
	ActionCreateGroup     = "create_group"
	ActionDeleteGroup     = "delete_group"
	ActionWaitDeployments = "wait_deployments"
	ActionAssertApp       = "assert_app"
	ActionAssertTasks     = "assert_tasks"
	ActionPing            = "ping"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "500ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("duration %q must be positive", raw)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Scenario is one verification scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it keys journal entries
	// and golden files.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Defaults applies to every assertion/wait step unless the step
	// overrides it.
	Defaults PolicyDefaults `yaml:"defaults,omitempty"`

	// Steps run in order; the first failing step stops the scenario.
	Steps []Step `yaml:"steps"`
}

// PolicyDefaults is the scenario-wide retry policy.
type PolicyDefaults struct {
	WaitInterval Duration `yaml:"wait_interval,omitempty"`
	MaxAttempts  int      `yaml:"max_attempts,omitempty"`
}

// Step is a single scenario step. Which fields apply depends on Action;
// validation enforces the per-action requirements.
type Step struct {
	// Action selects the step behavior (see the Action constants).
	Action string `yaml:"action"`

	// AppID targets an existing app (scale, restart, delete, assert,
	// wait, kill).
	AppID string `yaml:"app_id,omitempty"`

	// GroupID targets an existing group.
	GroupID string `yaml:"group_id,omitempty"`

	// App is a raw application definition (create_app, update_app).
	App map[string]any `yaml:"app,omitempty"`

	// UniqueSuffix rewrites the created app's id with a random suffix so
	// concurrent runs against a shared cluster never collide. Later steps
	// that name the original id are rewritten to match. create_app only.
	UniqueSuffix bool `yaml:"unique_suffix,omitempty"`

	// Group is a raw group definition (create_group).
	Group map[string]any `yaml:"group,omitempty"`

	// Instances is the target count for scale_app.
	Instances *int `yaml:"instances,omitempty"`

	// Expect is the field map an assert_app step matches against the
	// observed app state (subset semantics, exact equality per field).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the task count an assert_tasks step requires.
	Count *int `yaml:"count,omitempty"`

	// TaskIDs lists tasks for kill_tasks.
	TaskIDs []string `yaml:"task_ids,omitempty"`

	// Scale makes kill_tasks shrink the instance count.
	Scale bool `yaml:"scale,omitempty"`

	// Force overrides an in-flight deployment on mutating steps.
	Force bool `yaml:"force,omitempty"`

	// WaitInterval and MaxAttempts override the scenario defaults for
	// this step only.
	WaitInterval Duration `yaml:"wait_interval,omitempty"`
	MaxAttempts  int      `yaml:"max_attempts,omitempty"`
}

// Load reads and parses a scenario YAML file. The document is checked
// against the embedded CUE schema first, then decoded with strict field
// validation so typos like "step:" vs "steps:" fail loudly.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse parses scenario YAML from memory.
func Parse(data []byte) (*Scenario, error) {
	// Schema validation works on the raw document shape.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// validateScenario enforces the semantic rules the schema can't express.
func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range sc.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Action {
	case ActionCreateApp, ActionUpdateApp:
		if len(s.App) == 0 {
			return fmt.Errorf("steps[%d]: app definition is required for %s", index, s.Action)
		}
	case ActionScaleApp:
		if s.AppID == "" {
			return fmt.Errorf("steps[%d]: app_id is required for %s", index, s.Action)
		}
		if s.Instances == nil || *s.Instances < 0 {
			return fmt.Errorf("steps[%d]: instances must be a non-negative count for %s", index, s.Action)
		}
	case ActionRestartApp, ActionDeleteApp, ActionAssertTasks:
		if s.AppID == "" {
			return fmt.Errorf("steps[%d]: app_id is required for %s", index, s.Action)
		}
		if s.Action == ActionAssertTasks && (s.Count == nil || *s.Count < 0) {
			return fmt.Errorf("steps[%d]: count must be a non-negative task count for %s", index, s.Action)
		}
	case ActionKillTasks:
		if s.AppID == "" {
			return fmt.Errorf("steps[%d]: app_id is required for %s", index, s.Action)
		}
		if len(s.TaskIDs) == 0 {
			return fmt.Errorf("steps[%d]: task_ids is required for %s", index, s.Action)
		}
	case ActionCreateGroup:
		if len(s.Group) == 0 {
			return fmt.Errorf("steps[%d]: group definition is required for %s", index, s.Action)
		}
	case ActionDeleteGroup:
		if s.GroupID == "" {
			return fmt.Errorf("steps[%d]: group_id is required for %s", index, s.Action)
		}
	case ActionAssertApp:
		if s.AppID == "" {
			return fmt.Errorf("steps[%d]: app_id is required for %s", index, s.Action)
		}
		if len(s.Expect) == 0 {
			return fmt.Errorf("steps[%d]: expect map is required for %s", index, s.Action)
		}
	case ActionWaitDeployments:
		// app_id narrows the wait; empty waits for all current
		// deployments to drain.
		if s.GroupID != "" {
			return fmt.Errorf("steps[%d]: %s scopes by app_id, not group_id", index, s.Action)
		}
	case ActionPing:
		// No required fields.
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}

	if s.UniqueSuffix && s.Action != ActionCreateApp {
		return fmt.Errorf("steps[%d]: unique_suffix only applies to %s", index, ActionCreateApp)
	}
	if s.MaxAttempts < 0 {
		return fmt.Errorf("steps[%d]: max_attempts must be non-negative", index)
	}
	return nil
}
